package directory

// Record is a listed legal service provider. Records come from the seed and are
// never mutated at runtime.
type Record struct {
	ID             int      `yaml:"id" json:"id" validate:"gt=0"`
	Name           string   `yaml:"name" json:"name" validate:"required"`
	Photo          string   `yaml:"photo" json:"photo" validate:"omitempty,url"`
	Specialization []string `yaml:"specialization" json:"specialization" validate:"min=1,dive,required"`
	Qualification  []string `yaml:"qualification" json:"qualification" validate:"dive,required"`
	Experience     int      `yaml:"experience" json:"experience" validate:"gte=0"`
	Languages      []string `yaml:"languages" json:"languages" validate:"min=1,dive,required"`
	Fees           Fees     `yaml:"fees" json:"fees"`
	Location       Location `yaml:"location" json:"location"`
	Rating         float64  `yaml:"rating" json:"rating" validate:"gte=0,lte=5"`
	Reviews        int      `yaml:"reviews" json:"reviews" validate:"gte=0"`
	Contact        Contact  `yaml:"contact" json:"contact"`
	About          string   `yaml:"about" json:"about"`
	Verified       bool     `yaml:"verified" json:"verified"`
}

type Fees struct {
	Consultation float64    `yaml:"consultation" json:"consultation" validate:"gte=0"`
	Hourly       *float64   `yaml:"hourly,omitempty" json:"hourly,omitempty" validate:"omitempty,gte=0"`
	Fixed        []FixedFee `yaml:"fixed,omitempty" json:"fixed,omitempty" validate:"dive"`
}

type FixedFee struct {
	Service string  `yaml:"service" json:"service" validate:"required"`
	Amount  float64 `yaml:"amount" json:"amount" validate:"gte=0"`
}

type Location struct {
	City    string `yaml:"city" json:"city" validate:"required"`
	State   string `yaml:"state" json:"state" validate:"required"`
	Address string `yaml:"address" json:"address"`
}

type Contact struct {
	Phone   string `yaml:"phone" json:"phone"`
	Email   string `yaml:"email" json:"email" validate:"omitempty,email"`
	Website string `yaml:"website,omitempty" json:"website,omitempty"`
}

// Clone returns a deep copy so callers cannot mutate shared seed data.
func (r Record) Clone() Record {
	r.Specialization = append([]string(nil), r.Specialization...)
	r.Qualification = append([]string(nil), r.Qualification...)
	r.Languages = append([]string(nil), r.Languages...)
	if r.Fees.Hourly != nil {
		h := *r.Fees.Hourly
		r.Fees.Hourly = &h
	}
	r.Fees.Fixed = append([]FixedFee(nil), r.Fees.Fixed...)
	return r
}

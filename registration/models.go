package registration

import (
	"fmt"
	"strings"

	"legalpulse/store"
)

type Status = store.Status

const (
	StatusPending  = store.StatusPending
	StatusApproved = store.StatusApproved
	StatusRejected = store.StatusRejected
)

// Registration is a persisted LSP registration submission.
type Registration = store.Registration

// Form is the data an applicant submits. Password is only used, and then
// required, when the submission provisions a new account.
type Form struct {
	FirstName       string   `json:"firstName" yaml:"firstName" validate:"required,min=2"`
	LastName        string   `json:"lastName" yaml:"lastName" validate:"required,min=2"`
	Email           string   `json:"email" yaml:"email" validate:"required,email"`
	Phone           string   `json:"phone" yaml:"phone" validate:"required,min=10"`
	Designation     string   `json:"designation" yaml:"designation" validate:"required,min=2"`
	Experience      string   `json:"experience" yaml:"experience" validate:"required,nonneg_int"`
	Specialization  string   `json:"specialization" yaml:"specialization" validate:"required"`
	Languages       []string `json:"languages" yaml:"languages" validate:"min=1,dive,required"`
	About           string   `json:"about" yaml:"about" validate:"required,min=30"`
	City            string   `json:"city" yaml:"city" validate:"required,min=2"`
	State           string   `json:"state" yaml:"state" validate:"required,min=2"`
	ConsultationFee string   `json:"consultationFee" yaml:"consultationFee" validate:"required,nonneg_number"`
	TermsAccepted   bool     `json:"termsAccepted" yaml:"termsAccepted" validate:"accepted"`
	Password        string   `json:"password,omitempty" yaml:"password" validate:"omitempty,min=8"`
}

// Normalize trims every text field and drops blank language entries so the
// rules are checked against what will be stored. Password is kept as typed.
func (f Form) Normalize() Form {
	for _, field := range []*string{
		&f.FirstName, &f.LastName, &f.Email, &f.Phone, &f.Designation, &f.Experience,
		&f.Specialization, &f.About, &f.City, &f.State, &f.ConsultationFee,
	} {
		*field = strings.TrimSpace(*field)
	}
	f.Languages = cleanLanguages(f.Languages)
	return f
}

func cleanLanguages(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, lang := range in {
		if lang = strings.TrimSpace(lang); lang != "" {
			out = append(out, lang)
		}
	}
	return out
}

// ProfilePatch lists the fields an LSP may edit on their own registration.
// Nil fields are left unchanged.
type ProfilePatch struct {
	FirstName       *string  `json:"firstName,omitempty"`
	LastName        *string  `json:"lastName,omitempty"`
	Phone           *string  `json:"phone,omitempty"`
	Designation     *string  `json:"designation,omitempty"`
	Experience      *string  `json:"experience,omitempty"`
	Specialization  *string  `json:"specialization,omitempty"`
	Languages       []string `json:"languages,omitempty"`
	About           *string  `json:"about,omitempty"`
	City            *string  `json:"city,omitempty"`
	State           *string  `json:"state,omitempty"`
	ConsultationFee *string  `json:"consultationFee,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p ProfilePatch) Empty() bool {
	return p.FirstName == nil && p.LastName == nil && p.Phone == nil && p.Designation == nil &&
		p.Experience == nil && p.Specialization == nil && p.Languages == nil && p.About == nil &&
		p.City == nil && p.State == nil && p.ConsultationFee == nil
}

// StatusFilter narrows the admin listing.
type StatusFilter string

const (
	FilterAll      StatusFilter = "all"
	FilterPending  StatusFilter = StatusFilter(StatusPending)
	FilterApproved StatusFilter = StatusFilter(StatusApproved)
	FilterRejected StatusFilter = StatusFilter(StatusRejected)
)

// ParseStatusFilter maps user input to a filter; the empty string means all.
func ParseStatusFilter(s string) (StatusFilter, error) {
	switch f := StatusFilter(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FilterAll, nil
	case FilterAll, FilterPending, FilterApproved, FilterRejected:
		return f, nil
	default:
		return "", fmt.Errorf("registration: unknown status filter %q", s)
	}
}

// ListFilter drives ListAll. Query matches names, email, specialization, city
// and state case-insensitively.
type ListFilter struct {
	Query  string
	Status StatusFilter
}

// SubmitResult reports what Submit created. Provisioned is true when a new lsp
// account was created for the applicant.
type SubmitResult struct {
	Registration Registration
	User         store.User
	Provisioned  bool
}

package store

import "time"

// Keys of the persisted state layout.
const (
	KeyCurrentUser   = "currentUser"
	KeyUsers         = "users"
	KeyRegistrations = "lspRegistrations"
)

// SessionKey returns the key holding the signed-in account for a session. The
// empty id names the single local session stored under currentUser.
func SessionKey(sessionID string) string {
	if sessionID == "" {
		return KeyCurrentUser
	}
	return KeyCurrentUser + ":" + sessionID
}

type Role string

const (
	RoleClient Role = "client"
	RoleLSP    Role = "lsp"
	RoleAdmin  Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleLSP, RoleAdmin:
		return true
	default:
		return false
	}
}

// User is a persisted account. PasswordHash never leaves the users collection:
// session copies are stored without it.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"passwordHash,omitempty"`
	Role         Role      `json:"userType"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Public returns the account without credential material.
func (u User) Public() User {
	u.PasswordHash = ""
	return u
}

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	default:
		return false
	}
}

// Active reports whether the status blocks a new submission by the same user.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusApproved
}

// Registration is a persisted LSP registration submission.
type Registration struct {
	ID              string    `json:"id"`
	UserID          string    `json:"userId"`
	FirstName       string    `json:"firstName"`
	LastName        string    `json:"lastName"`
	Email           string    `json:"email"`
	Phone           string    `json:"phone"`
	Designation     string    `json:"designation"`
	Experience      string    `json:"experience"`
	Specialization  string    `json:"specialization"`
	Languages       []string  `json:"languages"`
	About           string    `json:"about"`
	City            string    `json:"city"`
	State           string    `json:"state"`
	ConsultationFee string    `json:"consultationFee"`
	Status          Status    `json:"status"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Clone returns a copy that shares no slices with r.
func (r Registration) Clone() Registration {
	r.Languages = append([]string(nil), r.Languages...)
	return r
}

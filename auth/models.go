package auth

import "legalpulse/store"

type Role = store.Role

const (
	RoleClient = store.RoleClient
	RoleLSP    = store.RoleLSP
	RoleAdmin  = store.RoleAdmin
)

// User is the persisted account. Presentation layers should expose
// User.Public() so the password hash never leaves the service.
type User = store.User

// SignupRequest contains client signup data supplied by callers.
type SignupRequest struct {
	Name            string `json:"name" validate:"required,min=2"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

// LoginRequest contains login credentials and the account type the caller
// claims to sign in as.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	UserType Role   `json:"userType" validate:"required,oneof=client lsp admin"`
}

// AdminAccount describes the administrator bootstrapped at start-up.
type AdminAccount struct {
	Name     string `validate:"required"`
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8"`
}

package auth

import "errors"

var (
	// ErrNotAuthenticated signals a session-only operation invoked anonymously.
	ErrNotAuthenticated = errors.New("auth: not authenticated")
	// ErrPermissionDenied signals a non-admin invoking an admin-only operation.
	ErrPermissionDenied = errors.New("auth: permission denied")
)

// RequireUser fails when there is no signed-in account.
func RequireUser(actor *User) error {
	if actor == nil || actor.ID == "" {
		return ErrNotAuthenticated
	}
	return nil
}

// RequireAdmin fails unless actor is a signed-in administrator.
func RequireAdmin(actor *User) error {
	if err := RequireUser(actor); err != nil {
		return err
	}
	if actor.Role != RoleAdmin {
		return ErrPermissionDenied
	}
	return nil
}

package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"legalpulse/auth"
	"legalpulse/directory"
	"legalpulse/logging"
	"legalpulse/notify"
	"legalpulse/registration"
	"legalpulse/session"
	"legalpulse/store"
	"legalpulse/validation"
)

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

type listResponse[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

type userResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	UserType  string `json:"userType"`
	CreatedAt string `json:"createdAt,omitempty"`
}

type registrationResponse struct {
	ID              string   `json:"id"`
	UserID          string   `json:"userId"`
	FirstName       string   `json:"firstName"`
	LastName        string   `json:"lastName"`
	Email           string   `json:"email"`
	Phone           string   `json:"phone"`
	Designation     string   `json:"designation"`
	Experience      string   `json:"experience"`
	Specialization  string   `json:"specialization"`
	Languages       []string `json:"languages"`
	About           string   `json:"about"`
	City            string   `json:"city"`
	State           string   `json:"state"`
	ConsultationFee string   `json:"consultationFee"`
	Status          string   `json:"status"`
	CreatedAt       string   `json:"createdAt"`
}

type sessionResponse struct {
	Token      string                `json:"token,omitempty"`
	User       *userResponse         `json:"user"`
	LSPProfile *registrationResponse `json:"lspProfile"`
	Updated    *bool                 `json:"updated,omitempty"`
}

func newUserResponse(u store.User) userResponse {
	resp := userResponse{ID: u.ID, Name: u.Name, Email: u.Email, UserType: string(u.Role)}
	if !u.CreatedAt.IsZero() {
		resp.CreatedAt = u.CreatedAt.Format(time.RFC3339)
	}
	return resp
}

func newRegistrationResponse(r registration.Registration) registrationResponse {
	return registrationResponse{
		ID:              r.ID,
		UserID:          r.UserID,
		FirstName:       r.FirstName,
		LastName:        r.LastName,
		Email:           r.Email,
		Phone:           r.Phone,
		Designation:     r.Designation,
		Experience:      r.Experience,
		Specialization:  r.Specialization,
		Languages:       r.Languages,
		About:           r.About,
		City:            r.City,
		State:           r.State,
		ConsultationFee: r.ConsultationFee,
		Status:          string(r.Status),
		CreatedAt:       r.CreatedAt.Format(time.RFC3339),
	}
}

func newRegistrationList(regs []registration.Registration) listResponse[registrationResponse] {
	items := make([]registrationResponse, 0, len(regs))
	for _, r := range regs {
		items = append(items, newRegistrationResponse(r))
	}
	return listResponse[registrationResponse]{Items: items, Total: len(items)}
}

func newSessionResponse(sess *session.Session, token string) sessionResponse {
	resp := sessionResponse{Token: token}
	if u, ok := sess.User(); ok {
		user := newUserResponse(u)
		resp.User = &user
	}
	if reg, ok := sess.LSPProfile(); ok {
		profile := newRegistrationResponse(reg)
		resp.LSPProfile = &profile
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError maps service errors to status codes. Unexpected errors are logged
// and answered with a generic message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := classify(err)

	var verr *validation.Error
	if errors.As(err, &verr) {
		writeJSON(w, status, errorResponse{Error: message, Fields: verr.Fields})
	} else {
		writeJSON(w, status, errorResponse{Error: message})
	}

	if status == http.StatusInternalServerError {
		logging.WithError(s.requestLogger(r), err).ErrorContext(r.Context(), "request failed", "path", r.URL.Path)
	}
	s.notifier.Notify(r.Context(), http.StatusText(status), message, notify.SeverityDestructive)
}

func classify(err error) (int, string) {
	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity, "validation failed"
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid email, password or account type"
	case errors.Is(err, auth.ErrNotAuthenticated), errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, "authentication required"
	case errors.Is(err, auth.ErrPermissionDenied):
		return http.StatusForbidden, "administrator access required"
	case errors.Is(err, auth.ErrTooManyAttempts):
		return http.StatusTooManyRequests, "too many login attempts, try again later"
	case errors.Is(err, registration.ErrNotFound):
		return http.StatusNotFound, "registration not found"
	case errors.Is(err, directory.ErrNotFound):
		return http.StatusNotFound, "provider not found"
	case errors.Is(err, auth.ErrDuplicateEmail):
		return http.StatusConflict, "an account with this email already exists, please log in"
	case errors.Is(err, registration.ErrAlreadyRegistered):
		return http.StatusConflict, "you already have an active registration"
	case errors.Is(err, registration.ErrInvalidTransition):
		return http.StatusConflict, "registration has already been decided"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// Package session tracks the signed-in account and, for LSP accounts, the
// registration that represents them.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"legalpulse/auth"
	"legalpulse/notify"
	"legalpulse/registration"
	"legalpulse/store"
)

// Session is one authenticated context. The CLI uses the single local session
// stored under currentUser; the API keeps one per bearer token.
type Session struct {
	store    *store.Store
	regs     *registration.Service
	notifier notify.Notifier
	logger   *slog.Logger
	key      string

	mu      sync.RWMutex
	user    *store.User
	profile *registration.Registration
}

func New(st *store.Store, regs *registration.Service, notifier notify.Notifier) *Session {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Session{
		store:    st,
		regs:     regs,
		notifier: notifier,
		logger:   slog.Default(),
		key:      store.SessionKey(""),
	}
}

// WithID scopes the session to its own persisted slot.
func (s *Session) WithID(sessionID string) *Session {
	s.key = store.SessionKey(sessionID)
	return s
}

func (s *Session) WithLogger(logger *slog.Logger) *Session {
	s.logger = logger
	return s
}

// Key is the persisted slot holding this session's account.
func (s *Session) Key() string {
	return s.key
}

// Restore re-derives the session from persisted state. A missing slot leaves
// the session anonymous.
func (s *Session) Restore(ctx context.Context) error {
	var (
		user  store.User
		found bool
	)
	err := s.store.View(ctx, func(tx *store.Tx) error {
		var err error
		user, found, err = tx.Session(s.key)
		return err
	})
	if err != nil {
		return fmt.Errorf("session: restore: %w", err)
	}

	s.mu.Lock()
	s.profile = nil
	if found {
		s.user = &user
	} else {
		s.user = nil
	}
	s.mu.Unlock()

	if !found {
		return nil
	}
	return s.FetchProfile(ctx)
}

// Login makes user the signed-in account. Credentials are checked by
// auth.Service.VerifyCredentials beforehand; an identity without id, email or
// a known role is ignored.
func (s *Session) Login(ctx context.Context, user store.User) error {
	if user.ID == "" || user.Email == "" || !user.Role.Valid() {
		s.logger.DebugContext(ctx, "ignoring login with malformed identity", "user_id", user.ID)
		return nil
	}
	public := user.Public()

	err := s.store.Update(ctx, func(tx *store.Tx) error {
		tx.SetSession(s.key, public)
		return nil
	})
	if err != nil {
		return fmt.Errorf("session: login: %w", err)
	}

	s.mu.Lock()
	s.user = &public
	s.profile = nil
	s.mu.Unlock()

	if err := s.FetchProfile(ctx); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "signed in", "user_id", public.ID, "role", public.Role)
	s.notifier.Notify(ctx, "Login successful", "Welcome back, "+public.Name+".", notify.SeverityDefault)
	return nil
}

// Logout clears the account and the cached registration.
func (s *Session) Logout(ctx context.Context) error {
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		tx.ClearSession(s.key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("session: logout: %w", err)
	}

	s.mu.Lock()
	wasSignedIn := s.user != nil
	s.user = nil
	s.profile = nil
	s.mu.Unlock()

	if wasSignedIn {
		s.notifier.Notify(ctx, "Logged out", "You have been signed out.", notify.SeverityDefault)
	}
	return nil
}

// FetchProfile refreshes the cached registration of an LSP session. It does
// nothing for anonymous or non-LSP sessions.
func (s *Session) FetchProfile(ctx context.Context) error {
	s.mu.RLock()
	user := s.user
	s.mu.RUnlock()
	if user == nil || user.Role != store.RoleLSP {
		return nil
	}

	reg, ok, err := s.regs.ProfileFor(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("session: fetch profile: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil || s.user.ID != user.ID {
		return nil
	}
	if ok {
		s.profile = &reg
	} else {
		s.profile = nil
	}
	return nil
}

// UpdateProfile patches the cached registration and its persisted entry. The
// bool result is false when there was nothing to update, including when the
// cached submission is no longer active.
func (s *Session) UpdateProfile(ctx context.Context, patch registration.ProfilePatch) (registration.Registration, bool, error) {
	s.mu.RLock()
	user, profile := s.user, s.profile
	s.mu.RUnlock()
	if user == nil || profile == nil || patch.Empty() {
		return registration.Registration{}, false, nil
	}

	updated, err := s.regs.UpdateProfile(ctx, user.ID, profile.ID, patch)
	if errors.Is(err, registration.ErrNotFound) {
		// the cached submission was rejected or replaced since it was fetched
		return registration.Registration{}, false, s.FetchProfile(ctx)
	}
	if err != nil {
		return registration.Registration{}, false, err
	}

	s.mu.Lock()
	s.profile = &updated
	s.mu.Unlock()

	s.notifier.Notify(ctx, "Profile updated", "Your profile changes have been saved.", notify.SeverityDefault)
	return updated, true, nil
}

// Submit files a registration as the current account. When a new account is
// provisioned for the applicant the session signs into it.
func (s *Session) Submit(ctx context.Context, form registration.Form) (registration.SubmitResult, error) {
	s.mu.RLock()
	actor := s.user
	s.mu.RUnlock()

	res, err := s.regs.Submit(ctx, actor, form)
	if err != nil {
		return registration.SubmitResult{}, err
	}

	if res.Provisioned {
		if err := s.Login(ctx, res.User); err != nil {
			return res, err
		}
	} else if err := s.FetchProfile(ctx); err != nil {
		return res, err
	}

	s.notifier.Notify(ctx, "Registration submitted", "Your application is pending review.", notify.SeverityDefault)
	return res, nil
}

// User returns the signed-in account.
func (s *Session) User() (store.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return store.User{}, false
	}
	return *s.user, true
}

// Actor is the signed-in account in the form the services take, nil when
// anonymous.
func (s *Session) Actor() *store.User {
	u, ok := s.User()
	if !ok {
		return nil
	}
	return &u
}

// LSPProfile returns the cached registration, if any.
func (s *Session) LSPProfile() (registration.Registration, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return registration.Registration{}, false
	}
	return s.profile.Clone(), true
}

func (s *Session) IsAuthenticated() bool {
	_, ok := s.User()
	return ok
}

func (s *Session) IsLSP() bool { return s.hasRole(auth.RoleLSP) }

func (s *Session) IsAdmin() bool { return s.hasRole(auth.RoleAdmin) }

func (s *Session) hasRole(role store.Role) bool {
	u, ok := s.User()
	return ok && u.Role == role
}

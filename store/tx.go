package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"legalpulse/kv"
)

// Tx is the working copy handed to View and Update callbacks. Accessors return
// copies; changes only reach the backend through the mutators below.
type Tx struct {
	ctx     context.Context
	backend kv.Store

	users              []User
	registrations      []Registration
	usersDirty         bool
	registrationsDirty bool
	sessions           map[string]*sessionSlot
}

type sessionSlot struct {
	user  *User
	dirty bool
}

// Users returns every account in insertion order.
func (tx *Tx) Users() []User {
	return append([]User(nil), tx.users...)
}

// UserByEmail matches emails case-insensitively.
func (tx *Tx) UserByEmail(email string) (User, bool) {
	email = strings.TrimSpace(email)
	for _, u := range tx.users {
		if strings.EqualFold(u.Email, email) {
			return u, true
		}
	}
	return User{}, false
}

func (tx *Tx) UserByID(id string) (User, bool) {
	for _, u := range tx.users {
		if u.ID == id {
			return u, true
		}
	}
	return User{}, false
}

// InsertUser appends an account, enforcing unique ids and emails.
func (tx *Tx) InsertUser(u User) error {
	if u.ID == "" || u.Email == "" {
		return fmt.Errorf("store: insert user: id and email required")
	}
	if !u.Role.Valid() {
		return fmt.Errorf("store: insert user: invalid role %q", u.Role)
	}
	if _, exists := tx.UserByEmail(u.Email); exists {
		return fmt.Errorf("%w: email %s", ErrUniqueViolation, u.Email)
	}
	if _, exists := tx.UserByID(u.ID); exists {
		return fmt.Errorf("%w: user id %s", ErrUniqueViolation, u.ID)
	}
	tx.users = append(tx.users, u)
	tx.usersDirty = true
	return nil
}

// Registrations returns every submission in insertion order.
func (tx *Tx) Registrations() []Registration {
	out := make([]Registration, len(tx.registrations))
	for i, r := range tx.registrations {
		out[i] = r.Clone()
	}
	return out
}

// RegistrationsForUser returns the user's submissions in insertion order.
func (tx *Tx) RegistrationsForUser(userID string) []Registration {
	out := make([]Registration, 0, 2)
	for _, r := range tx.registrations {
		if r.UserID == userID {
			out = append(out, r.Clone())
		}
	}
	return out
}

func (tx *Tx) RegistrationByID(id string) (Registration, bool) {
	for _, r := range tx.registrations {
		if r.ID == id {
			return r.Clone(), true
		}
	}
	return Registration{}, false
}

// InsertRegistration appends a submission. The referenced user must exist.
func (tx *Tx) InsertRegistration(r Registration) error {
	if r.ID == "" {
		return fmt.Errorf("store: insert registration: id required")
	}
	if !r.Status.Valid() {
		return fmt.Errorf("store: insert registration: invalid status %q", r.Status)
	}
	if _, exists := tx.UserByID(r.UserID); !exists {
		return fmt.Errorf("%w: %s", ErrForeignKey, r.UserID)
	}
	if _, exists := tx.RegistrationByID(r.ID); exists {
		return fmt.Errorf("%w: registration id %s", ErrUniqueViolation, r.ID)
	}
	tx.registrations = append(tx.registrations, r.Clone())
	tx.registrationsDirty = true
	return nil
}

// ReplaceRegistration overwrites the submission with the same id in place,
// keeping its position in the collection.
func (tx *Tx) ReplaceRegistration(r Registration) error {
	if !r.Status.Valid() {
		return fmt.Errorf("store: replace registration: invalid status %q", r.Status)
	}
	for i := range tx.registrations {
		if tx.registrations[i].ID == r.ID {
			if tx.registrations[i].UserID != r.UserID {
				return fmt.Errorf("store: replace registration: user id is immutable")
			}
			tx.registrations[i] = r.Clone()
			tx.registrationsDirty = true
			return nil
		}
	}
	return fmt.Errorf("%w: registration %s", ErrNoRecord, r.ID)
}

// Session returns the account signed in under key, if any.
func (tx *Tx) Session(key string) (User, bool, error) {
	slot, err := tx.sessionSlot(key)
	if err != nil {
		return User{}, false, err
	}
	if slot.user == nil {
		return User{}, false, nil
	}
	return *slot.user, true, nil
}

// SetSession records u as signed in under key, without credential material.
func (tx *Tx) SetSession(key string, u User) {
	public := u.Public()
	tx.sessions[key] = &sessionSlot{user: &public, dirty: true}
}

// ClearSession removes the session stored under key.
func (tx *Tx) ClearSession(key string) {
	tx.sessions[key] = &sessionSlot{dirty: true}
}

func (tx *Tx) sessionSlot(key string) (*sessionSlot, error) {
	if slot, ok := tx.sessions[key]; ok {
		return slot, nil
	}

	slot := &sessionSlot{}
	raw, err := tx.backend.Get(tx.ctx, key)
	switch {
	case errors.Is(err, kv.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("store: load %s: %w", key, err)
	default:
		var u User
		if err := json.Unmarshal(raw, &u); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, key, err)
		}
		slot.user = &u
	}
	tx.sessions[key] = slot
	return slot, nil
}

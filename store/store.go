// Package store persists accounts, registration submissions and sessions on top
// of a kv backend. Every mutation runs inside Update, which serialises
// read-modify-write sequences and writes nothing when the callback fails.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"legalpulse/kv"
)

var (
	// ErrUniqueViolation signals a duplicate account email or record id.
	ErrUniqueViolation = errors.New("store: unique violation")
	// ErrForeignKey signals a registration whose user does not exist.
	ErrForeignKey = errors.New("store: unknown user reference")
	// ErrNoRecord signals an update of a record that does not exist.
	ErrNoRecord = errors.New("store: record not found")
	// ErrCorrupt signals a persisted value that cannot be decoded.
	ErrCorrupt = errors.New("store: corrupt persisted value")
)

// Store is the injected repository shared by auth, registration and session.
type Store struct {
	backend kv.Store
	mu      sync.RWMutex
}

func New(backend kv.Store) *Store {
	return &Store{backend: backend}
}

// View runs fn against a consistent snapshot. Mutations made by fn are discarded.
func (s *Store) View(ctx context.Context, fn func(*Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	return fn(tx)
}

// Update runs fn under the store lock and persists its changes in one atomic
// put when fn returns nil.
func (s *Store) Update(ctx context.Context, fn func(*Tx) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if locker, ok := s.backend.(kv.Locker); ok {
		unlock, lockErr := locker.Lock(ctx)
		if lockErr != nil {
			return fmt.Errorf("store: lock: %w", lockErr)
		}
		defer func() {
			if unlockErr := unlock(context.WithoutCancel(ctx)); unlockErr != nil && err == nil {
				err = fmt.Errorf("store: unlock: %w", unlockErr)
			}
		}()
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		return err
	}
	return s.commit(ctx, tx)
}

func (s *Store) Close() error {
	return s.backend.Close()
}

func (s *Store) begin(ctx context.Context) (*Tx, error) {
	tx := &Tx{
		ctx:      ctx,
		backend:  s.backend,
		sessions: make(map[string]*sessionSlot),
	}
	// both collections come from one read so a concurrent commit is seen whole
	raw, err := s.backend.GetMany(ctx, KeyUsers, KeyRegistrations)
	if err != nil {
		return nil, fmt.Errorf("store: load: %w", err)
	}
	if err := decode(raw, KeyUsers, &tx.users); err != nil {
		return nil, err
	}
	if err := decode(raw, KeyRegistrations, &tx.registrations); err != nil {
		return nil, err
	}
	return tx, nil
}

func decode(raw map[string][]byte, key string, dst any) error {
	value, ok := raw[key]
	if !ok {
		return nil
	}
	if err := json.Unmarshal(value, dst); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorrupt, key, err)
	}
	return nil
}

func (s *Store) commit(ctx context.Context, tx *Tx) error {
	var (
		puts    []kv.Entry
		deletes []string
	)
	if tx.usersDirty {
		raw, err := json.Marshal(tx.users)
		if err != nil {
			return fmt.Errorf("store: encode users: %w", err)
		}
		puts = append(puts, kv.Entry{Key: KeyUsers, Value: raw})
	}
	if tx.registrationsDirty {
		raw, err := json.Marshal(tx.registrations)
		if err != nil {
			return fmt.Errorf("store: encode registrations: %w", err)
		}
		puts = append(puts, kv.Entry{Key: KeyRegistrations, Value: raw})
	}
	for key, slot := range tx.sessions {
		if !slot.dirty {
			continue
		}
		if slot.user == nil {
			deletes = append(deletes, key)
			continue
		}
		raw, err := json.Marshal(slot.user)
		if err != nil {
			return fmt.Errorf("store: encode session: %w", err)
		}
		puts = append(puts, kv.Entry{Key: key, Value: raw})
	}

	if err := s.backend.Put(ctx, puts...); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	if err := s.backend.Delete(ctx, deletes...); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

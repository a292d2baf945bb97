// Package kv is the persistence substrate: a keyed byte store whose Put applies
// every entry of a call atomically.
package kv

import (
	"context"
	"errors"
)

// ErrNotFound signals that the key has no stored value.
var ErrNotFound = errors.New("kv: key not found")

// Entry is a single key/value pair written by Put.
type Entry struct {
	Key   string
	Value []byte
}

// Store is implemented by every backend.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// GetMany reads the keys from one consistent snapshot. Missing keys are
	// absent from the result.
	GetMany(ctx context.Context, keys ...string) (map[string][]byte, error)
	// Put writes all entries or none of them.
	Put(ctx context.Context, entries ...Entry) error
	// Delete removes the keys; missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

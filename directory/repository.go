package directory

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound signals the requested provider does not exist.
var ErrNotFound = errors.New("directory: not found")

// SeedRepository serves records loaded once at start-up.
type SeedRepository struct {
	records []Record
	index   map[int]int
}

// NewSeedRepository indexes records by id. Records keep their seed order.
func NewSeedRepository(records []Record) (*SeedRepository, error) {
	index := make(map[int]int, len(records))
	for i, r := range records {
		if _, dup := index[r.ID]; dup {
			return nil, fmt.Errorf("directory: duplicate record id %d", r.ID)
		}
		index[r.ID] = i
	}

	owned := make([]Record, len(records))
	for i, r := range records {
		owned[i] = r.Clone()
	}
	return &SeedRepository{records: owned, index: index}, nil
}

// GetByID fetches a provider by its id.
func (r *SeedRepository) GetByID(_ context.Context, id int) (Record, error) {
	i, ok := r.index[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return r.records[i].Clone(), nil
}

// List returns every provider in seed order.
func (r *SeedRepository) List(_ context.Context) ([]Record, error) {
	out := make([]Record, len(r.records))
	for i, rec := range r.records {
		out[i] = rec.Clone()
	}
	return out, nil
}

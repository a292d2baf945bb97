package directory

import (
	"context"
	"slices"
	"strconv"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// RecordReader abstracts repository operations for the service.
type RecordReader interface {
	GetByID(ctx context.Context, id int) (Record, error)
	List(ctx context.Context) ([]Record, error)
}

const (
	DefaultCacheTTL      = 5 * time.Minute
	cacheCleanupInterval = 10 * time.Minute
)

var tracer = otel.Tracer("legalpulse/directory")

// Service exposes search over the provider directory. Search results are cached
// per normalised criteria; records are immutable so entries never go stale.
type Service struct {
	repo  RecordReader
	cache *gocache.Cache
}

// NewService builds a Service. A non-positive ttl disables caching.
func NewService(repo RecordReader, ttl time.Duration) *Service {
	s := &Service{repo: repo}
	if ttl > 0 {
		s.cache = gocache.New(ttl, cacheCleanupInterval)
	}
	return s
}

// Search filters and sorts the directory.
func (s *Service) Search(ctx context.Context, c Criteria) ([]Record, error) {
	ctx, span := tracer.Start(ctx, "directory.Search")
	defer span.End()

	key := cacheKey(c)
	if s.cache != nil {
		if hit, ok := s.cache.Get(key); ok {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return cloneAll(hit.([]Record)), nil
		}
	}

	records, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := Filter(records, c)
	span.SetAttributes(attribute.Int("results", len(out)))

	if s.cache != nil {
		s.cache.SetDefault(key, cloneAll(out))
	}
	return out, nil
}

// GetByID returns the provider with the given id.
func (s *Service) GetByID(ctx context.Context, id int) (Record, error) {
	return s.repo.GetByID(ctx, id)
}

// Facets returns the filter options offered by the directory.
func (s *Service) Facets(ctx context.Context) (Facets, error) {
	records, err := s.repo.List(ctx)
	if err != nil {
		return Facets{}, err
	}
	return BuildFacets(records), nil
}

// Suggest returns type-ahead suggestions for term.
func (s *Service) Suggest(ctx context.Context, term string) (Suggestions, error) {
	records, err := s.repo.List(ctx)
	if err != nil {
		return Suggestions{}, err
	}
	return Suggest(records, term), nil
}

func cacheKey(c Criteria) string {
	norm := func(values []string) string {
		v := slices.Clone(values)
		slices.Sort(v)
		return strings.Join(slices.Compact(v), "\x1f")
	}
	sort := c.Sort
	if sort == "" {
		sort = SortRelevance
	}
	return strings.Join([]string{
		strings.ToLower(strings.TrimSpace(c.Search)),
		norm(c.Specializations),
		norm(c.States),
		norm(c.Languages),
		strconv.FormatBool(c.VerifiedOnly),
		string(sort),
	}, "\x1e")
}

func cloneAll(records []Record) []Record {
	out := make([]Record, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return out
}

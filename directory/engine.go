package directory

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

type SortKey string

const (
	SortRelevance      SortKey = "relevance"
	SortRatingHigh     SortKey = "rating-high"
	SortExperienceHigh SortKey = "experience-high"
	SortFeeLow         SortKey = "fee-low"
	SortFeeHigh        SortKey = "fee-high"
)

// SortKeys lists every accepted key in display order.
var SortKeys = []SortKey{SortRelevance, SortRatingHigh, SortExperienceHigh, SortFeeLow, SortFeeHigh}

// ParseSortKey maps user input to a key; the empty string means relevance.
func ParseSortKey(s string) (SortKey, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return SortRelevance, nil
	}
	for _, k := range SortKeys {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("directory: unknown sort key %q", s)
}

// Criteria describes a filter and a sort order. Categories are combined with AND,
// values inside a category with OR; an empty category does not filter.
type Criteria struct {
	Search          string
	Specializations []string
	States          []string
	Languages       []string
	VerifiedOnly    bool
	Sort            SortKey
}

// Filter returns the matching records in the requested order. It never modifies
// records and never returns a record that is not in records.
func Filter(records []Record, c Criteria) []Record {
	term := strings.ToLower(strings.TrimSpace(c.Search))
	specs := toSet(c.Specializations)
	states := toSet(c.States)
	langs := toSet(c.Languages)

	out := make([]Record, 0, len(records))
	for _, r := range records {
		if term != "" && !matchesTerm(r, term) {
			continue
		}
		if len(specs) > 0 && !intersects(r.Specialization, specs) {
			continue
		}
		if len(states) > 0 {
			if _, ok := states[r.Location.State]; !ok {
				continue
			}
		}
		if len(langs) > 0 && !intersects(r.Languages, langs) {
			continue
		}
		if c.VerifiedOnly && !r.Verified {
			continue
		}
		out = append(out, r)
	}

	sortRecords(out, c.Sort)
	return out
}

func matchesTerm(r Record, term string) bool {
	if containsFold(r.Name, term) || containsFold(r.Location.City, term) || containsFold(r.Location.State, term) {
		return true
	}
	for _, s := range r.Specialization {
		if containsFold(s, term) {
			return true
		}
	}
	return false
}

// containsFold expects term to be lower-cased already.
func containsFold(s, term string) bool {
	return strings.Contains(strings.ToLower(s), term)
}

func toSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func intersects(values []string, set map[string]struct{}) bool {
	for _, v := range values {
		if _, ok := set[v]; ok {
			return true
		}
	}
	return false
}

// sortRecords is stable: equal keys keep their seed order.
func sortRecords(records []Record, key SortKey) {
	var compare func(a, b Record) int
	switch key {
	case SortRatingHigh:
		compare = func(a, b Record) int { return cmp.Compare(b.Rating, a.Rating) }
	case SortExperienceHigh:
		compare = func(a, b Record) int { return cmp.Compare(b.Experience, a.Experience) }
	case SortFeeLow:
		compare = func(a, b Record) int { return cmp.Compare(a.Fees.Consultation, b.Fees.Consultation) }
	case SortFeeHigh:
		compare = func(a, b Record) int { return cmp.Compare(b.Fees.Consultation, a.Fees.Consultation) }
	default:
		return
	}
	slices.SortStableFunc(records, compare)
}

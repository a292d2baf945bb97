package directory

import (
	"slices"
	"strings"
)

// SuggestionLimit caps every suggestion group.
const SuggestionLimit = 5

// Facets holds the distinct filter options present in the records.
type Facets struct {
	Specializations []string `json:"specializations"`
	States          []string `json:"states"`
	Languages       []string `json:"languages"`
}

// BuildFacets collects unique values, each list sorted lexicographically.
func BuildFacets(records []Record) Facets {
	var specs, states, langs []string
	for _, r := range records {
		specs = append(specs, r.Specialization...)
		states = append(states, r.Location.State)
		langs = append(langs, r.Languages...)
	}
	return Facets{
		Specializations: uniqueSorted(specs),
		States:          uniqueSorted(states),
		Languages:       uniqueSorted(langs),
	}
}

func uniqueSorted(values []string) []string {
	out := slices.Clone(values)
	slices.Sort(out)
	return slices.Compact(out)
}

// NameHit is a provider name suggestion that resolves directly to a record.
type NameHit struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Suggestions groups type-ahead matches for a search box.
type Suggestions struct {
	Names           []NameHit `json:"names"`
	Specializations []string  `json:"specializations"`
	States          []string  `json:"states"`
	Cities          []string  `json:"cities"`
}

// Suggest returns up to SuggestionLimit case-insensitive substring matches per
// group, in seed order with duplicates removed. A blank term yields empty groups.
func Suggest(records []Record, term string) Suggestions {
	s := Suggestions{
		Names:           []NameHit{},
		Specializations: []string{},
		States:          []string{},
		Cities:          []string{},
	}
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return s
	}

	seenSpec := map[string]struct{}{}
	seenState := map[string]struct{}{}
	seenCity := map[string]struct{}{}
	for _, r := range records {
		if len(s.Names) < SuggestionLimit && containsFold(r.Name, term) {
			s.Names = append(s.Names, NameHit{ID: r.ID, Name: r.Name})
		}
		for _, spec := range r.Specialization {
			s.Specializations = appendHit(s.Specializations, seenSpec, spec, term)
		}
		s.States = appendHit(s.States, seenState, r.Location.State, term)
		s.Cities = appendHit(s.Cities, seenCity, r.Location.City, term)
	}
	return s
}

func appendHit(dst []string, seen map[string]struct{}, value, term string) []string {
	if len(dst) >= SuggestionLimit || !containsFold(value, term) {
		return dst
	}
	if _, dup := seen[value]; dup {
		return dst
	}
	seen[value] = struct{}{}
	return append(dst, value)
}

package domain

import (
	"sort"
)

// FilterSet is the raw dashboard filter state: dimension -> value -> checked.
type FilterSet map[string]map[string]bool

// Clone deep-copies the set, keeping only checked values.
func (f FilterSet) Clone() FilterSet {
	out := make(FilterSet, len(f))
	for dim, values := range f {
		kept := make(map[string]bool, len(values))
		for v, on := range values {
			if on {
				kept[v] = true
			}
		}
		if len(kept) > 0 {
			out[dim] = kept
		}
	}
	return out
}

// Dimensions returns the dimension keys in sorted order.
func (f FilterSet) Dimensions() []string {
	dims := make([]string, 0, len(f))
	for dim := range f {
		dims = append(dims, dim)
	}
	sort.Strings(dims)
	return dims
}

// Accepted returns the checked values of a dimension in sorted order.
func (f FilterSet) Accepted(dim string) []string {
	values := make([]string, 0, len(f[dim]))
	for v, on := range f[dim] {
		if on {
			values = append(values, v)
		}
	}
	sort.Strings(values)
	return values
}

// NpsCategory buckets an NPS answer.
type NpsCategory string

const (
	NpsPromoter  NpsCategory = "promoter"
	NpsPassive   NpsCategory = "passive"
	NpsDetractor NpsCategory = "detractor"
)

// CategoryForScore classifies a 0-10 score.
func CategoryForScore(v float64) NpsCategory {
	switch {
	case v >= 9:
		return NpsPromoter
	case v <= 6:
		return NpsDetractor
	default:
		return NpsPassive
	}
}

// NormalizedFilters is the canonical filter descriptor used for querying and cache keys.
type NormalizedFilters struct {
	Filters           FilterSet       `json:"filters"`
	CustomNpsFilter   map[string]bool `json:"customNpsFilter,omitempty"`
	IsCustomNpsFilter bool            `json:"isCustomNpsFilter"`
	SurveyProgress    []string        `json:"surveyProgress,omitempty"`
}

// NpsCategories returns the selected custom NPS categories, or nil when the filter is off.
func (n NormalizedFilters) NpsCategories() []NpsCategory {
	if !n.IsCustomNpsFilter {
		return nil
	}
	var out []NpsCategory
	for _, c := range []NpsCategory{NpsPromoter, NpsPassive, NpsDetractor} {
		if n.CustomNpsFilter[string(c)] {
			out = append(out, c)
		}
	}
	return out
}

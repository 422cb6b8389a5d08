// Package filters canonicalizes raw dashboard filter state.
package filters

import (
	"sort"
	"strings"

	"survey-dashboard-service/internal/domain"
)

// Reserved dimension keys that are not question filters.
const (
	CustomNpsKey      = "custom_nps_filter"
	SurveyProgressKey = "survey_progress"
)

// Normalize splits the reserved keys out of a raw filter map.
// Unchecked values and empty dimensions are dropped, and the extra survey progress
// values are merged with the ones found under SurveyProgressKey.
func Normalize(raw domain.FilterSet, surveyProgress []string) domain.NormalizedFilters {
	general := raw.Clone()

	var custom map[string]bool
	if sub, ok := general[CustomNpsKey]; ok {
		custom = sub
		delete(general, CustomNpsKey)
	}

	progress := make(map[string]struct{}, len(surveyProgress))
	for _, p := range surveyProgress {
		if p = strings.TrimSpace(p); p != "" {
			progress[p] = struct{}{}
		}
	}
	for v := range general[SurveyProgressKey] {
		progress[v] = struct{}{}
	}
	delete(general, SurveyProgressKey)

	out := domain.NormalizedFilters{Filters: general}
	if len(general) > 0 && len(custom) > 0 {
		out.CustomNpsFilter = custom
		out.IsCustomNpsFilter = true
	}
	if len(progress) > 0 {
		out.SurveyProgress = make([]string, 0, len(progress))
		for p := range progress {
			out.SurveyProgress = append(out.SurveyProgress, p)
		}
		sort.Strings(out.SurveyProgress)
	}
	return out
}

// Raw folds a normalized descriptor back into raw form, so Normalize(Raw(n)) == n.
func Raw(n domain.NormalizedFilters) (domain.FilterSet, []string) {
	raw := n.Filters.Clone()
	if n.IsCustomNpsFilter && len(n.CustomNpsFilter) > 0 {
		sub := make(map[string]bool, len(n.CustomNpsFilter))
		for k, v := range n.CustomNpsFilter {
			sub[k] = v
		}
		raw[CustomNpsKey] = sub
	}
	return raw, append([]string(nil), n.SurveyProgress...)
}

// NormalizeSchoolTypes lower-cases, replaces spaces with underscores, dedupes and sorts.
func NormalizeSchoolTypes(schools []string) []string {
	seen := make(map[string]struct{}, len(schools))
	out := make([]string, 0, len(schools))
	for _, s := range schools {
		s = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_")
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

package app

import (
	"fmt"

	"survey-dashboard-service/internal/domain"
	"survey-dashboard-service/internal/filters"
)

// PermissionViewBenchmark gates fleet comparisons.
const PermissionViewBenchmark = "view_benchmark"

// ReportRequest carries every input of a report as plain values.
type ReportRequest struct {
	TenantID         int64
	UserID           int64
	ModuleType       domain.ModuleType
	Period           domain.PeriodSelection
	Comparison       *domain.PeriodSelection
	Filters          domain.NormalizedFilters
	ActiveModules    []domain.ModuleType
	Permissions      map[string]bool
	BenchmarkSchools []string
	// ApplyBenchmark asks for a percentile; results computed with it are never cached.
	ApplyBenchmark bool
	// Empty asks for neutral results and clears the user's mirror.
	Empty bool
}

// Can reports whether the permission is granted. A nil permission map grants everything.
func (r ReportRequest) Can(permission string) bool {
	if r.Permissions == nil {
		return true
	}
	return r.Permissions[permission]
}

// Modules expands pulse to the active modules.
func (r ReportRequest) Modules() []domain.ModuleType {
	if r.ModuleType != domain.ModulePulse {
		return []domain.ModuleType{r.ModuleType}
	}
	if len(r.ActiveModules) == 0 {
		return append([]domain.ModuleType(nil), domain.SurveyModules...)
	}
	out := make([]domain.ModuleType, 0, len(r.ActiveModules))
	for _, m := range r.ActiveModules {
		if m != domain.ModulePulse {
			out = append(out, m)
		}
	}
	return out
}

// query builds the tenant-scoped answer query shared by every report.
func (r ReportRequest) query(kind domain.AnswerKind, rng domain.DateRange) (AnswerQuery, error) {
	dims, err := dimensionFilters(r.Filters.Filters)
	if err != nil {
		return AnswerQuery{}, err
	}
	return AnswerQuery{
		TenantID:       r.TenantID,
		Modules:        r.Modules(),
		Kind:           kind,
		Range:          rng,
		Filters:        dims,
		NpsCategories:  r.Filters.NpsCategories(),
		SurveyProgress: r.Filters.SurveyProgress,
	}, nil
}

func dimensionFilters(f domain.FilterSet) ([]DimensionFilter, error) {
	var out []DimensionFilter
	for _, dim := range f.Dimensions() {
		values := f.Accepted(dim)
		if len(values) == 0 {
			continue
		}
		ref, err := domain.ParseQuestionRef(dim)
		if err != nil {
			return nil, fmt.Errorf("filter dimension: %w", err)
		}
		out = append(out, DimensionFilter{Question: ref, Values: values})
	}
	return out, nil
}

// schoolTypes is the normalized benchmark school filter.
func (r ReportRequest) schoolTypes() []string {
	return filters.NormalizeSchoolTypes(r.BenchmarkSchools)
}

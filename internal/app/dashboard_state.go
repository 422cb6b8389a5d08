package app

import (
	"fmt"

	"survey-dashboard-service/internal/domain"
	"survey-dashboard-service/internal/filters"
)

// Scope is who is looking at the dashboard.
type Scope struct {
	TenantID      int64
	UserID        int64
	ActiveModules []domain.ModuleType
	Permissions   map[string]bool
}

// DashboardSessionState is the mutable widget state of one dashboard, owned by its caller.
type DashboardSessionState struct {
	ModuleType       domain.ModuleType
	Period           domain.PeriodSelection
	Comparison       *domain.PeriodSelection
	Filters          domain.FilterSet
	SurveyProgress   []string
	BenchmarkSchools []string
	ApplyBenchmark   bool
	Empty            bool
}

func NewDashboardSessionState(module domain.ModuleType) *DashboardSessionState {
	return &DashboardSessionState{
		ModuleType: module,
		Period:     domain.PeriodSelection{Token: domain.DefaultPeriodToken},
		Filters:    domain.FilterSet{},
	}
}

func (s *DashboardSessionState) SetPeriod(token domain.PeriodToken, customRange string) {
	s.Period = domain.PeriodSelection{Token: token}
	if token == domain.PeriodCustom {
		s.Period.CustomRange = customRange
	}
	s.Empty = false
}

func (s *DashboardSessionState) SetComparison(sel *domain.PeriodSelection) {
	s.Comparison = sel
}

func (s *DashboardSessionState) SetModule(module domain.ModuleType) error {
	if !module.Valid() {
		return fmt.Errorf("unknown module %q", module)
	}
	s.ModuleType = module
	return nil
}

// ToggleFilter checks or unchecks one value of a dimension.
func (s *DashboardSessionState) ToggleFilter(dimension, value string, checked bool) {
	if s.Filters == nil {
		s.Filters = domain.FilterSet{}
	}
	if s.Filters[dimension] == nil {
		s.Filters[dimension] = map[string]bool{}
	}
	s.Filters[dimension][value] = checked
	s.Empty = false
}

func (s *DashboardSessionState) ClearFilters() {
	s.Filters = domain.FilterSet{}
	s.SurveyProgress = nil
}

// Request snapshots the state for one computation. ApplyBenchmark is one-shot and is reset here.
func (s *DashboardSessionState) Request(scope Scope) ReportRequest {
	req := s.Peek(scope)
	s.ApplyBenchmark = false
	return req
}

// Peek snapshots the state without consuming ApplyBenchmark.
func (s *DashboardSessionState) Peek(scope Scope) ReportRequest {
	return ReportRequest{
		TenantID:         scope.TenantID,
		UserID:           scope.UserID,
		ModuleType:       s.ModuleType,
		Period:           s.Period,
		Comparison:       s.Comparison,
		Filters:          filters.Normalize(s.Filters, s.SurveyProgress),
		ActiveModules:    scope.ActiveModules,
		Permissions:      scope.Permissions,
		BenchmarkSchools: append([]string(nil), s.BenchmarkSchools...),
		ApplyBenchmark:   s.ApplyBenchmark,
		Empty:            s.Empty,
	}
}

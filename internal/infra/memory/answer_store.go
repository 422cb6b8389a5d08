package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"survey-dashboard-service/internal/app"
	"survey-dashboard-service/internal/domain"
	"survey-dashboard-service/internal/filters"
)

// AnswerStore is an in-memory implementation of app.AnswerStore (useful for tests/demos).
type AnswerStore struct {
	mu          sync.RWMutex
	answers     []domain.SurveyAnswer
	schoolTypes map[int64]string
}

func NewAnswerStore(answers ...domain.SurveyAnswer) *AnswerStore {
	return &AnswerStore{
		answers:     append([]domain.SurveyAnswer(nil), answers...),
		schoolTypes: make(map[int64]string),
	}
}

func (s *AnswerStore) Add(answers ...domain.SurveyAnswer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers = append(s.answers, answers...)
}

// SetSchoolType records the tenant attribute benchmark school filters match against.
func (s *AnswerStore) SetSchoolType(tenantID int64, schoolType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schoolTypes[tenantID] = schoolType
}

func (s *AnswerStore) NpsCounts(_ context.Context, q app.AnswerQuery) (domain.NpsCounts, error) {
	return tally(s.latest(q)), nil
}

func (s *AnswerStore) NpsCountsByRange(ctx context.Context, q app.AnswerQuery, ranges []domain.DateRange) ([]domain.NpsCounts, error) {
	out := make([]domain.NpsCounts, len(ranges))
	for i, r := range ranges {
		sub := q
		sub.Range = r
		out[i] = tally(s.latest(sub))
	}
	return out, nil
}

func (s *AnswerStore) NpsCountsByTenant(_ context.Context, q app.AnswerQuery) ([]domain.TenantNpsCounts, error) {
	byTenant := map[int64][]domain.SurveyAnswer{}
	for _, a := range s.latest(q) {
		byTenant[a.TenantID] = append(byTenant[a.TenantID], a)
	}
	out := make([]domain.TenantNpsCounts, 0, len(byTenant))
	for tenant, answers := range byTenant {
		out = append(out, domain.TenantNpsCounts{TenantID: tenant, Counts: tally(answers)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TenantID < out[j].TenantID })
	return out, nil
}

func (s *AnswerStore) MonthlyAverages(_ context.Context, q app.AnswerQuery) ([]domain.MonthlyAggregate, error) {
	loc := q.Range.End.Location()
	sums := map[int]float64{}
	counts := map[int]int{}
	for _, a := range s.latest(q) {
		m := int(a.UpdatedAt.In(loc).Month())
		sums[m] += a.Value
		counts[m]++
	}
	out := make([]domain.MonthlyAggregate, 0, len(counts))
	for m, n := range counts {
		out = append(out, domain.MonthlyAggregate{Month: m, Average: sums[m] / float64(n), Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out, nil
}

func (s *AnswerStore) MonthlyNpsCounts(_ context.Context, q app.AnswerQuery) ([]domain.MonthlyNpsCounts, error) {
	loc := q.Range.End.Location()
	byMonth := map[int][]domain.SurveyAnswer{}
	for _, a := range s.latest(q) {
		m := int(a.UpdatedAt.In(loc).Month())
		byMonth[m] = append(byMonth[m], a)
	}
	out := make([]domain.MonthlyNpsCounts, 0, len(byMonth))
	for m, answers := range byMonth {
		out = append(out, domain.MonthlyNpsCounts{Month: m, Counts: tally(answers)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out, nil
}

func (s *AnswerStore) CategoryCounts(_ context.Context, q app.AnswerQuery) ([]domain.CategoryCount, error) {
	sums := map[string]float64{}
	counts := map[string]int{}
	for _, a := range s.latest(q) {
		sums[a.Category] += a.Value
		counts[a.Category]++
	}
	out := make([]domain.CategoryCount, 0, len(counts))
	for c, n := range counts {
		out = append(out, domain.CategoryCount{Category: c, Count: n, Average: sums[c] / float64(n)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out, nil
}

type latestKey struct {
	tenant, respondent, survey int64
	question                   domain.QuestionRef
}

// latest keeps the most recently updated matching answer per respondent, survey and question.
func (s *AnswerStore) latest(q app.AnswerQuery) []domain.SurveyAnswer {
	s.mu.RLock()
	defer s.mu.RUnlock()

	picked := map[latestKey]domain.SurveyAnswer{}
	for _, a := range s.answers {
		if !s.matches(q, a) {
			continue
		}
		k := latestKey{a.TenantID, a.RespondentID, a.SurveyID, a.Question}
		if cur, ok := picked[k]; !ok || a.UpdatedAt.After(cur.UpdatedAt) {
			picked[k] = a
		}
	}
	out := make([]domain.SurveyAnswer, 0, len(picked))
	for _, a := range picked {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *AnswerStore) matches(q app.AnswerQuery, a domain.SurveyAnswer) bool {
	if q.TenantID != 0 && a.TenantID != q.TenantID {
		return false
	}
	if len(q.Modules) > 0 && !contains(q.Modules, a.ModuleType) {
		return false
	}
	if q.Kind != "" && a.Kind != q.Kind {
		return false
	}
	if q.Question != nil && a.Question != *q.Question {
		return false
	}
	if !inRange(q.Range, a.UpdatedAt) {
		return false
	}
	if len(q.SurveyProgress) > 0 && !contains(q.SurveyProgress, a.SurveyStatus) {
		return false
	}
	if q.ActiveSurveyOnly && !a.SurveyActive {
		return false
	}
	if len(q.SchoolTypes) > 0 {
		types := filters.NormalizeSchoolTypes([]string{s.schoolTypes[a.TenantID]})
		if len(types) == 0 || !contains(q.SchoolTypes, types[0]) {
			return false
		}
	}
	for _, d := range q.Filters {
		if !s.answeredWith(a, d) {
			return false
		}
	}
	if len(q.NpsCategories) > 0 && !s.inNpsCategory(a, q.NpsCategories) {
		return false
	}
	return true
}

// answeredWith reports whether the same respondent answered the dimension question
// with an accepted value in the same survey.
func (s *AnswerStore) answeredWith(a domain.SurveyAnswer, d app.DimensionFilter) bool {
	for _, b := range s.answers {
		if sameSubmission(a, b) && b.Question == d.Question && contains(d.Values, b.Category) {
			return true
		}
	}
	return false
}

func (s *AnswerStore) inNpsCategory(a domain.SurveyAnswer, cats []domain.NpsCategory) bool {
	for _, b := range s.answers {
		if sameSubmission(a, b) && b.Kind == domain.AnswerNps && contains(cats, domain.CategoryForScore(b.Value)) {
			return true
		}
	}
	return false
}

func sameSubmission(a, b domain.SurveyAnswer) bool {
	return a.TenantID == b.TenantID && a.RespondentID == b.RespondentID && a.SurveyID == b.SurveyID
}

func inRange(r domain.DateRange, t time.Time) bool {
	if r.End.IsZero() {
		return true
	}
	return r.Contains(t)
}

func tally(answers []domain.SurveyAnswer) domain.NpsCounts {
	var c domain.NpsCounts
	for _, a := range answers {
		switch domain.CategoryForScore(a.Value) {
		case domain.NpsPromoter:
			c.Promoters++
		case domain.NpsDetractor:
			c.Detractors++
		default:
			c.Passives++
		}
	}
	return c
}

func contains[T comparable](items []T, v T) bool {
	for _, item := range items {
		if item == v {
			return true
		}
	}
	return false
}

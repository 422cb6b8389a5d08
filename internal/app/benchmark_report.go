package app

import (
	"context"
	"errors"
	"fmt"
	"math"

	"survey-dashboard-service/internal/domain"
	"survey-dashboard-service/internal/period"
)

// NpsBenchmarkReport compares the tenant's NPS with one row per tenant of the fleet.
type NpsBenchmarkReport struct {
	answers   AnswerStore
	questions QuestionResolver
	periods   *period.Resolver
	req       ReportRequest
}

func NewNpsBenchmarkReport(answers AnswerStore, questions QuestionResolver, periods *period.Resolver, req ReportRequest) *NpsBenchmarkReport {
	return &NpsBenchmarkReport{answers: answers, questions: questions, periods: periods, req: req}
}

// CalculateNpsBenchmark returns the rounded fleet mean and, when ApplyBenchmark is set,
// the share of tenants scoring below this tenant. Non-comparable filters yield N/A for both.
func (r *NpsBenchmarkReport) CalculateNpsBenchmark(ctx context.Context) (domain.BenchmarkResult, error) {
	resolved, err := r.periods.Resolve(r.req.Period)
	if err != nil {
		return domain.BenchmarkResult{}, err
	}
	if !r.req.Can(PermissionViewBenchmark) {
		return domain.NotComparableBenchmark(), nil
	}
	if err := r.checkComparable(ctx); err != nil {
		if errors.Is(err, domain.ErrBenchmarkNotComparable) {
			return domain.NotComparableBenchmark(), nil
		}
		return domain.BenchmarkResult{}, err
	}

	q, err := r.req.query(domain.AnswerNps, resolved.Range)
	if err != nil {
		return domain.BenchmarkResult{}, err
	}
	current, err := r.answers.NpsCounts(ctx, q)
	if err != nil {
		return domain.BenchmarkResult{}, fmt.Errorf("benchmark current score: %w", err)
	}

	fleet := q
	fleet.TenantID = 0
	fleet.SchoolTypes = r.req.schoolTypes()
	tallies, err := r.answers.NpsCountsByTenant(ctx, fleet)
	if err != nil {
		return domain.BenchmarkResult{}, fmt.Errorf("benchmark rows: %w", err)
	}
	rows := make([]domain.BenchmarkRow, 0, len(tallies))
	for _, t := range tallies {
		if t.Counts.Total() == 0 {
			continue
		}
		rows = append(rows, domain.BenchmarkRow{TenantID: t.TenantID, Score: t.Counts.Score()})
	}

	result := Benchmark(rows, current.Score(), r.req.ApplyBenchmark)
	result.Current = current.Score()
	return result, nil
}

// Benchmark reduces fleet rows to the average and, if requested, the percentile of current.
func Benchmark(rows []domain.BenchmarkRow, current int, withPercentile bool) domain.BenchmarkResult {
	result := domain.BenchmarkResult{
		Benchmark:  domain.NotApplicableMetric(),
		Percentile: domain.NotApplicableMetric(),
		Tenants:    len(rows),
	}
	if len(rows) == 0 {
		return result
	}
	sum, below := 0, 0
	for _, row := range rows {
		sum += row.Score
		if row.Score < current {
			below++
		}
	}
	n := float64(len(rows))
	result.Benchmark = domain.MetricOf(int(math.Round(float64(sum) / n)))
	if withPercentile {
		result.Percentile = domain.MetricOf(int(math.Round(100 * float64(below) / n)))
	}
	return result
}

// checkComparable rejects custom questions and editable demographics the tenant customised.
func (r *NpsBenchmarkReport) checkComparable(ctx context.Context) error {
	dims, err := dimensionFilters(r.req.Filters.Filters)
	if err != nil {
		return err
	}
	for _, d := range dims {
		if d.Question.IsCustom() {
			return fmt.Errorf("%w: %s", domain.ErrBenchmarkNotComparable, d.Question)
		}
		info, err := r.questions.Resolve(ctx, r.req.TenantID, d.Question)
		if err != nil {
			return err
		}
		if info.Demographic && info.EditableByClient && info.HasCustomAnswer {
			return fmt.Errorf("%w: %s", domain.ErrBenchmarkNotComparable, d.Question)
		}
	}
	return nil
}

package app

import (
	"context"
	"fmt"

	"survey-dashboard-service/internal/domain"
	"survey-dashboard-service/internal/period"
)

// maxComparableDays is the longest custom range whose previous period is still reported.
const maxComparableDays = 365

// NpsReport computes NPS for the selected period, the period before it and its per-bucket series.
type NpsReport struct {
	answers AnswerStore
	periods *period.Resolver
	req     ReportRequest
}

func NewNpsReport(answers AnswerStore, periods *period.Resolver, req ReportRequest) *NpsReport {
	return &NpsReport{answers: answers, periods: periods, req: req}
}

// CurrentPeriod is the NPS over the selected period.
func (r *NpsReport) CurrentPeriod(ctx context.Context) (domain.NpsResult, error) {
	resolved, err := r.periods.Resolve(r.req.Period)
	if err != nil {
		return domain.NpsResult{}, err
	}
	counts, err := r.counts(ctx, resolved.Range)
	if err != nil {
		return domain.NpsResult{}, err
	}
	return domain.NewNpsResult(counts, resolved.Range), nil
}

// PreviousPeriod is the NPS over the comparison period, or the equal-length window before
// the selection when no comparison is set. Custom ranges longer than a year report zero shares.
func (r *NpsReport) PreviousPeriod(ctx context.Context) (domain.NpsResult, error) {
	var (
		resolved domain.ResolvedPeriod
		err      error
	)
	if r.req.Comparison != nil {
		resolved, err = r.periods.Resolve(*r.req.Comparison)
		if err != nil {
			return domain.NpsResult{}, err
		}
	} else {
		var ok bool
		resolved, ok, err = r.periods.Previous(r.req.Period)
		if err != nil {
			return domain.NpsResult{}, err
		}
		if !ok {
			return domain.NpsResult{}, nil
		}
	}

	counts, err := r.counts(ctx, resolved.Range)
	if err != nil {
		return domain.NpsResult{}, err
	}
	result := domain.NewNpsResult(counts, resolved.Range)
	if r.exceedsComparableSpan() {
		result.Score = 0
		result.PromotersPercentage = 0
		result.PassivesPercentage = 0
		result.DetractorsPercentage = 0
	}
	return result, nil
}

// Series is the NPS of every bucket of the selected period, oldest first.
func (r *NpsReport) Series(ctx context.Context) ([]domain.SeriesPoint, error) {
	resolved, err := r.periods.Resolve(r.req.Period)
	if err != nil {
		return nil, err
	}
	q, err := r.req.query(domain.AnswerNps, resolved.Range)
	if err != nil {
		return nil, err
	}
	tallies, err := r.answers.NpsCountsByRange(ctx, q, resolved.Buckets)
	if err != nil {
		return nil, fmt.Errorf("nps series: %w", err)
	}
	points := make([]domain.SeriesPoint, len(resolved.Buckets))
	for i, b := range resolved.Buckets {
		var c domain.NpsCounts
		if i < len(tallies) {
			c = tallies[i]
		}
		points[i] = domain.SeriesPoint{Start: b.Start, End: b.End, Score: c.Score(), Total: c.Total()}
	}
	return points, nil
}

func (r *NpsReport) counts(ctx context.Context, rng domain.DateRange) (domain.NpsCounts, error) {
	q, err := r.req.query(domain.AnswerNps, rng)
	if err != nil {
		return domain.NpsCounts{}, err
	}
	counts, err := r.answers.NpsCounts(ctx, q)
	if err != nil {
		return domain.NpsCounts{}, fmt.Errorf("nps counts: %w", err)
	}
	return counts, nil
}

func (r *NpsReport) exceedsComparableSpan() bool {
	for _, sel := range []*domain.PeriodSelection{&r.req.Period, r.req.Comparison} {
		if sel == nil || sel.Token != domain.PeriodCustom {
			continue
		}
		rng, err := period.ParseCustomRange(sel.CustomRange, r.periods.Location())
		if err == nil && rng.Days() > maxComparableDays {
			return true
		}
	}
	return false
}

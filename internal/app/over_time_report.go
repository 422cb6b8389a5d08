package app

import (
	"context"
	"fmt"
	"math"

	"survey-dashboard-service/internal/domain"
	"survey-dashboard-service/internal/period"
)

// ScoreOverTimeReport averages one question's answers per calendar month of a year.
type ScoreOverTimeReport struct {
	answers  AnswerStore
	periods  *period.Resolver
	req      ReportRequest
	year     int
	question domain.QuestionRef
}

func NewScoreOverTimeReport(answers AnswerStore, periods *period.Resolver, req ReportRequest, year int, question domain.QuestionRef) *ScoreOverTimeReport {
	return &ScoreOverTimeReport{answers: answers, periods: periods, req: req, year: year, question: question}
}

// MonthlyGrouped always returns 12 slots; months without answers are {0, 0}.
func (r *ScoreOverTimeReport) MonthlyGrouped(ctx context.Context) (domain.MonthlySeries, error) {
	q, err := r.req.query("", r.periods.Year(r.year))
	if err != nil {
		return domain.MonthlySeries{}, err
	}
	ref := r.question
	q.Question = &ref
	aggs, err := r.answers.MonthlyAverages(ctx, q)
	if err != nil {
		return domain.MonthlySeries{}, fmt.Errorf("score over time: %w", err)
	}
	var series domain.MonthlySeries
	for _, a := range aggs {
		if a.Month < 1 || a.Month > 12 {
			continue
		}
		series[a.Month-1] = domain.MonthlyPoint{Y: math.Round(a.Average*100) / 100, TotalQuantity: a.Count}
	}
	return series, nil
}

// NpsOverTimeReport computes NPS per calendar month of a year.
type NpsOverTimeReport struct {
	answers AnswerStore
	periods *period.Resolver
	req     ReportRequest
	year    int
}

func NewNpsOverTimeReport(answers AnswerStore, periods *period.Resolver, req ReportRequest, year int) *NpsOverTimeReport {
	return &NpsOverTimeReport{answers: answers, periods: periods, req: req, year: year}
}

// MonthlyGrouped always returns 12 slots; months without answers are {0, 0}.
func (r *NpsOverTimeReport) MonthlyGrouped(ctx context.Context) (domain.MonthlySeries, error) {
	q, err := r.req.query(domain.AnswerNps, r.periods.Year(r.year))
	if err != nil {
		return domain.MonthlySeries{}, err
	}
	months, err := r.answers.MonthlyNpsCounts(ctx, q)
	if err != nil {
		return domain.MonthlySeries{}, fmt.Errorf("nps over time: %w", err)
	}
	var series domain.MonthlySeries
	for _, m := range months {
		if m.Month < 1 || m.Month > 12 {
			continue
		}
		series[m.Month-1] = domain.MonthlyPoint{Y: float64(m.Counts.Score()), TotalQuantity: m.Counts.Total()}
	}
	return series, nil
}

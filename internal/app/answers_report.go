package app

import (
	"context"
	"fmt"
	"math"
	"sort"

	"survey-dashboard-service/internal/domain"
	"survey-dashboard-service/internal/period"
)

// LikertAnswersReport is the answer distribution and mean score of a Likert question.
type LikertAnswersReport struct {
	answers      AnswerStore
	questions    QuestionResolver
	periods      *period.Resolver
	req          ReportRequest
	question     domain.QuestionRef
	activeSurvey bool
}

func NewLikertAnswersReport(answers AnswerStore, questions QuestionResolver, periods *period.Resolver, req ReportRequest, question domain.QuestionRef, activeSurvey bool) *LikertAnswersReport {
	return &LikertAnswersReport{answers: answers, questions: questions, periods: periods, req: req, question: question, activeSurvey: activeSurvey}
}

func (r *LikertAnswersReport) Answers(ctx context.Context) (domain.LikertResult, error) {
	info, counts, err := distribution(ctx, r.answers, r.questions, r.periods, r.req, r.question, domain.AnswerLikert, r.activeSurvey)
	if err != nil {
		return domain.LikertResult{}, err
	}
	// Likert options read low to high.
	sort.SliceStable(counts, func(i, j int) bool { return counts[i].Average < counts[j].Average })

	options, total := shares(counts)
	var weighted float64
	for _, c := range counts {
		weighted += c.Average * float64(c.Count)
	}
	var avg float64
	if total > 0 {
		avg = math.Round(weighted/float64(total)*100) / 100
	}
	return domain.LikertResult{Question: r.question, Title: info.Title, Options: options, Average: avg, Total: total}, nil
}

// MultipleChoiceAnswersReport is the option distribution of a multiple-choice question.
type MultipleChoiceAnswersReport struct {
	answers      AnswerStore
	questions    QuestionResolver
	periods      *period.Resolver
	req          ReportRequest
	question     domain.QuestionRef
	activeSurvey bool
}

func NewMultipleChoiceAnswersReport(answers AnswerStore, questions QuestionResolver, periods *period.Resolver, req ReportRequest, question domain.QuestionRef, activeSurvey bool) *MultipleChoiceAnswersReport {
	return &MultipleChoiceAnswersReport{answers: answers, questions: questions, periods: periods, req: req, question: question, activeSurvey: activeSurvey}
}

func (r *MultipleChoiceAnswersReport) Answers(ctx context.Context) (domain.MultipleChoiceResult, error) {
	info, counts, err := distribution(ctx, r.answers, r.questions, r.periods, r.req, r.question, domain.AnswerMultipleChoice, r.activeSurvey)
	if err != nil {
		return domain.MultipleChoiceResult{}, err
	}
	sort.SliceStable(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Category < counts[j].Category
	})
	options, total := shares(counts)
	return domain.MultipleChoiceResult{Question: r.question, Title: info.Title, Options: options, Total: total}, nil
}

func distribution(ctx context.Context, answers AnswerStore, questions QuestionResolver, periods *period.Resolver, req ReportRequest, ref domain.QuestionRef, kind domain.AnswerKind, activeSurvey bool) (domain.QuestionInfo, []domain.CategoryCount, error) {
	info, err := questions.Resolve(ctx, req.TenantID, ref)
	if err != nil {
		return domain.QuestionInfo{}, nil, err
	}
	resolved, err := periods.Resolve(req.Period)
	if err != nil {
		return domain.QuestionInfo{}, nil, err
	}
	q, err := req.query(kind, resolved.Range)
	if err != nil {
		return domain.QuestionInfo{}, nil, err
	}
	q.Question = &ref
	q.ActiveSurveyOnly = activeSurvey
	counts, err := answers.CategoryCounts(ctx, q)
	if err != nil {
		return domain.QuestionInfo{}, nil, fmt.Errorf("%s distribution: %w", kind, err)
	}
	return info, counts, nil
}

func shares(counts []domain.CategoryCount) ([]domain.CategoryShare, int) {
	total := 0
	for _, c := range counts {
		total += c.Count
	}
	out := make([]domain.CategoryShare, 0, len(counts))
	for _, c := range counts {
		var pct float64
		if total > 0 {
			pct = math.Round(float64(c.Count)/float64(total)*10000) / 100
		}
		out = append(out, domain.CategoryShare{Category: c.Category, Count: c.Count, Percentage: pct})
	}
	return out, total
}

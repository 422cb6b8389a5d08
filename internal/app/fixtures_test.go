package app_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"survey-dashboard-service/internal/app"
	"survey-dashboard-service/internal/domain"
	"survey-dashboard-service/internal/infra/memory"
	"survey-dashboard-service/internal/period"
)

var (
	fixedNow    = time.Date(2026, time.October, 17, 12, 0, 0, 0, time.UTC)
	npsQuestion = domain.QuestionRef{Kind: domain.QuestionStandard, ID: 1}
	genderRef   = domain.QuestionRef{Kind: domain.QuestionStandard, ID: 2}
	likertRef   = domain.QuestionRef{Kind: domain.QuestionStandard, ID: 3}
	choiceRef   = domain.QuestionRef{Kind: domain.QuestionStandard, ID: 4}
	editableRef = domain.QuestionRef{Kind: domain.QuestionStandard, ID: 5}
	customRef   = domain.QuestionRef{Kind: domain.QuestionCustom, ID: 9}
)

var nextRespondent int64

type fixture struct {
	answers   *memory.AnswerStore
	counting  *countingStore
	questions *memory.StaticQuestionResolver
	cache     *memory.ResultCache
	mirror    *memory.MirrorStore
	periods   *period.Resolver
	service   *app.ReportService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		answers: memory.NewAnswerStore(),
		questions: memory.NewStaticQuestionResolver(
			domain.QuestionInfo{Ref: npsQuestion, Title: "How likely are you to recommend us?", Kind: domain.AnswerNps},
			domain.QuestionInfo{Ref: genderRef, Title: "Gender", Kind: domain.AnswerDemographic, Demographic: true},
			domain.QuestionInfo{Ref: likertRef, Title: "Communication is clear", Kind: domain.AnswerLikert},
			domain.QuestionInfo{Ref: choiceRef, Title: "Preferred channel", Kind: domain.AnswerMultipleChoice},
			domain.QuestionInfo{Ref: editableRef, Title: "Year group", Kind: domain.AnswerDemographic, Demographic: true, EditableByClient: true},
		),
		cache:   memory.NewResultCache(),
		mirror:  memory.NewMirrorStore(),
		periods: period.NewResolverWithClock(time.UTC, func() time.Time { return fixedNow }),
	}
	f.questions.AddCustom(1, domain.QuestionInfo{Ref: customRef, Title: "Bus service", Kind: domain.AnswerDemographic})
	f.counting = &countingStore{AnswerStore: f.answers}
	logger := zaptest.NewLogger(t)
	f.service = app.NewReportService(f.counting, f.questions, f.periods, app.NewReportCache(f.cache, logger), f.mirror, time.Minute, logger)
	return f
}

func baseRequest(tenant int64) app.ReportRequest {
	return app.ReportRequest{
		TenantID:   tenant,
		UserID:     100,
		ModuleType: domain.ModuleParent,
		Period:     domain.PeriodSelection{Token: domain.PeriodLast30Days},
	}
}

// seedNps adds one NPS answer per respondent: promoters score 10, passives 8, detractors 3.
func seedNps(store *memory.AnswerStore, tenant int64, promoters, passives, detractors int, at time.Time) []int64 {
	var respondents []int64
	add := func(n int, value float64) {
		for i := 0; i < n; i++ {
			id := atomic.AddInt64(&nextRespondent, 1)
			respondents = append(respondents, id)
			store.Add(domain.SurveyAnswer{
				ID:           id * 10,
				TenantID:     tenant,
				ModuleType:   domain.ModuleParent,
				Question:     npsQuestion,
				Kind:         domain.AnswerNps,
				RespondentID: id,
				SurveyID:     tenant*1000 + 1,
				SurveyStatus: "completed",
				SurveyActive: true,
				Value:        value,
				UpdatedAt:    at,
			})
		}
	}
	add(promoters, 10)
	add(passives, 8)
	add(detractors, 3)
	return respondents
}

type countingStore struct {
	app.AnswerStore
	npsCalls atomic.Int32
}

func (c *countingStore) NpsCounts(ctx context.Context, q app.AnswerQuery) (domain.NpsCounts, error) {
	c.npsCalls.Add(1)
	return c.AnswerStore.NpsCounts(ctx, q)
}

type failingCache struct{}

var errCacheDown = errors.New("cache down")

func (failingCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, errCacheDown }
func (failingCache) Put(context.Context, string, []byte, time.Duration) error {
	return errCacheDown
}
func (failingCache) Invalidate(context.Context, string) error       { return errCacheDown }
func (failingCache) InvalidatePrefix(context.Context, string) error { return errCacheDown }

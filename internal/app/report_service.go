package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"survey-dashboard-service/internal/cachekey"
	"survey-dashboard-service/internal/domain"
	"survey-dashboard-service/internal/period"
)

// MirrorFamily names a last-good-value slot.
type MirrorFamily string

const (
	FamilyCurrent   MirrorFamily = "current"
	FamilyPrevious  MirrorFamily = "previous"
	FamilyBenchmark MirrorFamily = "benchmark"
)

// ReportService is the cached entry point to every report.
type ReportService struct {
	answers   AnswerStore
	questions QuestionResolver
	periods   *period.Resolver
	cache     *ReportCache
	mirror    MirrorStore
	ttl       time.Duration
	logger    *zap.Logger
}

func NewReportService(answers AnswerStore, questions QuestionResolver, periods *period.Resolver, cache *ReportCache, mirror MirrorStore, ttl time.Duration, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		answers:   answers,
		questions: questions,
		periods:   periods,
		cache:     cache,
		mirror:    mirror,
		ttl:       ttl,
		logger:    logger,
	}
}

func (s *ReportService) CurrentPeriod(ctx context.Context, req ReportRequest) (domain.NpsResult, error) {
	if req.Empty {
		s.clearMirror(ctx, req, FamilyCurrent)
		return domain.NpsResult{}, nil
	}
	if _, err := s.periods.Resolve(req.Period); err != nil {
		return domain.NpsResult{}, err
	}
	result, err := getOrCompute(ctx, s.cache, s.currentKey(req), s.ttl, false, func(ctx context.Context) (domain.NpsResult, error) {
		defer s.timed("nps-current", req)()
		return NewNpsReport(s.answers, s.periods, req).CurrentPeriod(ctx)
	})
	if err != nil {
		return domain.NpsResult{}, err
	}
	s.saveMirror(ctx, req, FamilyCurrent, result)
	return result, nil
}

func (s *ReportService) PreviousPeriod(ctx context.Context, req ReportRequest) (domain.NpsResult, error) {
	if req.Empty {
		s.clearMirror(ctx, req, FamilyPrevious)
		return domain.NpsResult{}, nil
	}
	if _, err := s.periods.Resolve(req.Period); err != nil {
		return domain.NpsResult{}, err
	}
	result, err := getOrCompute(ctx, s.cache, s.previousKey(req), s.ttl, false, func(ctx context.Context) (domain.NpsResult, error) {
		defer s.timed("nps-previous", req)()
		return NewNpsReport(s.answers, s.periods, req).PreviousPeriod(ctx)
	})
	if err != nil {
		return domain.NpsResult{}, err
	}
	s.saveMirror(ctx, req, FamilyPrevious, result)
	return result, nil
}

// Benchmark never caches when a percentile is requested.
func (s *ReportService) Benchmark(ctx context.Context, req ReportRequest) (domain.BenchmarkResult, error) {
	if req.Empty {
		s.clearMirror(ctx, req, FamilyBenchmark)
		return domain.NotComparableBenchmark(), nil
	}
	if _, err := s.periods.Resolve(req.Period); err != nil {
		return domain.BenchmarkResult{}, err
	}
	result, err := getOrCompute(ctx, s.cache, s.benchmarkKey(req), s.ttl, req.ApplyBenchmark, func(ctx context.Context) (domain.BenchmarkResult, error) {
		defer s.timed("nps-benchmark", req)()
		return NewNpsBenchmarkReport(s.answers, s.questions, s.periods, req).CalculateNpsBenchmark(ctx)
	})
	if err != nil {
		return domain.BenchmarkResult{}, err
	}
	s.saveMirror(ctx, req, FamilyBenchmark, result)
	return result, nil
}

func (s *ReportService) NpsSeries(ctx context.Context, req ReportRequest) ([]domain.SeriesPoint, error) {
	if req.Empty {
		return []domain.SeriesPoint{}, nil
	}
	if _, err := s.periods.Resolve(req.Period); err != nil {
		return nil, err
	}
	return getOrCompute(ctx, s.cache, s.seriesKey(req), s.ttl, false, func(ctx context.Context) ([]domain.SeriesPoint, error) {
		defer s.timed("nps-series", req)()
		return NewNpsReport(s.answers, s.periods, req).Series(ctx)
	})
}

func (s *ReportService) ScoreOverTime(ctx context.Context, req ReportRequest, year int, question domain.QuestionRef) (domain.MonthlySeries, error) {
	if req.Empty {
		return domain.MonthlySeries{}, nil
	}
	p := s.keyParams("score-over-time", req)
	p.Extra = []string{question.String(), strconv.Itoa(year)}
	return getOrCompute(ctx, s.cache, cachekey.Build(p), s.ttl, false, func(ctx context.Context) (domain.MonthlySeries, error) {
		defer s.timed("score-over-time", req)()
		return NewScoreOverTimeReport(s.answers, s.periods, req, year, question).MonthlyGrouped(ctx)
	})
}

func (s *ReportService) NpsOverTime(ctx context.Context, req ReportRequest, year int) (domain.MonthlySeries, error) {
	if req.Empty {
		return domain.MonthlySeries{}, nil
	}
	p := s.keyParams("nps-over-time", req)
	p.Extra = []string{strconv.Itoa(year)}
	return getOrCompute(ctx, s.cache, cachekey.Build(p), s.ttl, false, func(ctx context.Context) (domain.MonthlySeries, error) {
		defer s.timed("nps-over-time", req)()
		return NewNpsOverTimeReport(s.answers, s.periods, req, year).MonthlyGrouped(ctx)
	})
}

// Likert returns the Likert distribution; activeSurvey limits it to currently active survey cycles.
func (s *ReportService) Likert(ctx context.Context, req ReportRequest, question domain.QuestionRef, activeSurvey bool) (domain.LikertResult, error) {
	if _, err := s.periods.Resolve(req.Period); err != nil {
		return domain.LikertResult{}, err
	}
	p := s.keyParams("likert", req)
	p.Extra = []string{question.String(), "active=" + strconv.FormatBool(activeSurvey)}
	return getOrCompute(ctx, s.cache, cachekey.Build(p), s.ttl, false, func(ctx context.Context) (domain.LikertResult, error) {
		defer s.timed("likert", req)()
		return NewLikertAnswersReport(s.answers, s.questions, s.periods, req, question, activeSurvey).Answers(ctx)
	})
}

func (s *ReportService) MultipleChoice(ctx context.Context, req ReportRequest, question domain.QuestionRef, activeSurvey bool) (domain.MultipleChoiceResult, error) {
	if _, err := s.periods.Resolve(req.Period); err != nil {
		return domain.MultipleChoiceResult{}, err
	}
	p := s.keyParams("multiple-choice", req)
	p.Extra = []string{question.String(), "active=" + strconv.FormatBool(activeSurvey)}
	return getOrCompute(ctx, s.cache, cachekey.Build(p), s.ttl, false, func(ctx context.Context) (domain.MultipleChoiceResult, error) {
		defer s.timed("multiple-choice", req)()
		return NewMultipleChoiceAnswersReport(s.answers, s.questions, s.periods, req, question, activeSurvey).Answers(ctx)
	})
}

// Dashboard computes everything the NPS widgets show for one request.
func (s *ReportService) Dashboard(ctx context.Context, req ReportRequest) (domain.DashboardSnapshot, error) {
	var snap domain.DashboardSnapshot
	if !req.Empty {
		resolved, err := s.periods.Resolve(req.Period)
		if err != nil {
			return snap, err
		}
		snap.Period = resolved
	}
	var err error
	if snap.Current, err = s.CurrentPeriod(ctx, req); err != nil {
		return snap, err
	}
	if snap.Previous, err = s.PreviousPeriod(ctx, req); err != nil {
		return snap, err
	}
	if snap.Benchmark, err = s.Benchmark(ctx, req); err != nil {
		return snap, err
	}
	if snap.Series, err = s.NpsSeries(ctx, req); err != nil {
		return snap, err
	}
	return snap, nil
}

// LastGood returns the value the user's dashboard last rendered for a family.
func (s *ReportService) LastGood(ctx context.Context, tenantID, userID int64, family MirrorFamily) (json.RawMessage, bool, error) {
	if s.mirror == nil {
		return nil, false, nil
	}
	raw, ok, err := s.mirror.Load(ctx, cachekey.MirrorKey(tenantID, userID, string(family)))
	if err != nil || !ok {
		return nil, ok, err
	}
	return json.RawMessage(raw), true, nil
}

// Refresh drops the cached dashboard reports of one request so the next Dashboard recomputes them.
// Other users and filter combinations of the tenant keep their entries.
func (s *ReportService) Refresh(ctx context.Context, req ReportRequest) error {
	for _, key := range []string{s.currentKey(req), s.previousKey(req), s.benchmarkKey(req), s.seriesKey(req)} {
		if err := s.cache.Forget(ctx, key); err != nil {
			return fmt.Errorf("forget %s: %w", key, err)
		}
	}
	return nil
}

// InvalidateTenant drops every cached report of a tenant.
func (s *ReportService) InvalidateTenant(ctx context.Context, tenantID int64) error {
	return s.cache.ForgetPrefix(ctx, cachekey.TenantPrefix(tenantID))
}

func (s *ReportService) currentKey(req ReportRequest) string {
	return cachekey.Build(s.keyParams("nps-current", req))
}

func (s *ReportService) previousKey(req ReportRequest) string {
	p := s.keyParams("nps-previous", req)
	p.Comparison = req.Comparison
	return cachekey.Build(p)
}

func (s *ReportService) benchmarkKey(req ReportRequest) string {
	p := s.keyParams("nps-benchmark", req)
	p.BenchmarkSchools = req.BenchmarkSchools
	p.Extra = []string{"perm=" + strconv.FormatBool(req.Can(PermissionViewBenchmark))}
	return cachekey.Build(p)
}

func (s *ReportService) seriesKey(req ReportRequest) string {
	return cachekey.Build(s.keyParams("nps-series", req))
}

func (s *ReportService) keyParams(kind string, req ReportRequest) cachekey.Params {
	p := cachekey.Params{
		Kind:       kind,
		TenantID:   req.TenantID,
		ModuleType: req.ModuleType,
		Period:     req.Period,
		Filters:    req.Filters,
	}
	if req.ModuleType == domain.ModulePulse {
		p.Modules = req.Modules()
	}
	return p
}

func (s *ReportService) saveMirror(ctx context.Context, req ReportRequest, family MirrorFamily, value any) {
	if s.mirror == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	key := cachekey.MirrorKey(req.TenantID, req.UserID, string(family))
	if err := s.mirror.Save(ctx, key, data); err != nil {
		s.logger.Warn("mirror write failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *ReportService) clearMirror(ctx context.Context, req ReportRequest, family MirrorFamily) {
	if s.mirror == nil {
		return
	}
	key := cachekey.MirrorKey(req.TenantID, req.UserID, string(family))
	if err := s.mirror.Clear(ctx, key); err != nil {
		s.logger.Warn("mirror clear failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *ReportService) timed(kind string, req ReportRequest) func() {
	start := time.Now()
	return func() {
		s.logger.Debug("report computed",
			zap.String("report", kind),
			zap.Int64("tenant", req.TenantID),
			zap.String("module", string(req.ModuleType)),
			zap.String("period", string(req.Period.Token)),
			zap.Duration("took", time.Since(start)),
		)
	}
}

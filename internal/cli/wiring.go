package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"survey-dashboard-service/internal/app"
	"survey-dashboard-service/internal/config"
	"survey-dashboard-service/internal/domain"
	"survey-dashboard-service/internal/infra/memory"
	"survey-dashboard-service/internal/infra/postgres"
	infraredis "survey-dashboard-service/internal/infra/redis"
	"survey-dashboard-service/internal/period"
)

// services is everything a command needs, built from config.
type services struct {
	reports  *app.ReportService
	trackers *app.TrackerService
	periods  *period.Resolver
	closers  []func()
}

func (s *services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Log.Development {
		zc = zap.NewDevelopmentConfig()
	}
	if cfg.Log.Level != "" {
		level, err := zapcore.ParseLevel(cfg.Log.Level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		zc.Level = zap.NewAtomicLevelAt(level)
	}
	return zc.Build()
}

// buildServices uses redis and postgres when configured, in-memory stores otherwise.
func buildServices(ctx context.Context, cfg config.Config, logger *zap.Logger) (*services, error) {
	s := &services{periods: period.NewResolver(cfg.Location())}

	var (
		cache  app.ResultCache
		mirror app.MirrorStore
	)
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		s.closers = append(s.closers, func() { _ = client.Close() })
		cache = infraredis.NewResultCache(client)
		mirrorTTL := config.TTLDuration(cfg.Cache.MirrorTTL, config.TTLDuration(cfg.Redis.TTL, 24*time.Hour))
		mirror = infraredis.NewMirrorStore(client, mirrorTTL)
	} else {
		cache = memory.NewResultCache()
		mirror = memory.NewMirrorStore()
	}

	var (
		answers   app.AnswerStore
		questions app.QuestionResolver
		repo      app.TrackerRepository
	)
	if cfg.Postgres.URL != "" {
		db := postgres.OpenDB(cfg.Postgres.URL)
		s.closers = append(s.closers, func() { _ = db.Close() })
		if _, err := postgres.Migrate(ctx, db); err != nil {
			s.Close()
			return nil, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		s.closers = append(s.closers, pool.Close)
		answers = postgres.NewAnswerStore(db)
		questions = postgres.NewQuestionResolver(pool)
		repo = postgres.NewTrackerRepository(db)
	} else {
		logger.Info("postgres not configured, serving the sample dataset")
		answers = memory.NewAnswerStore(sampleAnswers(time.Now().In(cfg.Location()))...)
		questions = memory.NewStaticQuestionResolver(sampleQuestions()...)
		repo = memory.NewTrackerRepository()
	}

	ttl := config.TTLDuration(cfg.Cache.ReportTTL, 10*time.Minute)
	s.reports = app.NewReportService(answers, questions, s.periods, app.NewReportCache(cache, logger), mirror, ttl, logger)
	s.trackers = app.NewTrackerService(repo, questions, s.reports)
	return s, nil
}

var (
	sampleNps    = domain.QuestionRef{Kind: domain.QuestionStandard, ID: 1}
	sampleLikert = domain.QuestionRef{Kind: domain.QuestionStandard, ID: 2}
	sampleChoice = domain.QuestionRef{Kind: domain.QuestionStandard, ID: 3}
)

func sampleQuestions() []domain.QuestionInfo {
	return []domain.QuestionInfo{
		{Ref: sampleNps, Title: "How likely are you to recommend the school?", Kind: domain.AnswerNps},
		{Ref: sampleLikert, Title: "The school communicates clearly", Kind: domain.AnswerLikert},
		{Ref: sampleChoice, Title: "Preferred contact channel", Kind: domain.AnswerMultipleChoice},
	}
}

// sampleAnswers spreads a small parent survey for two tenants over the last year.
func sampleAnswers(now time.Time) []domain.SurveyAnswer {
	channels := []string{"email", "app", "phone"}
	var out []domain.SurveyAnswer
	var id int64
	for tenant := int64(1); tenant <= 2; tenant++ {
		for r := int64(1); r <= 24; r++ {
			respondent := tenant*1000 + r
			at := now.AddDate(0, -int(r%12), -int(r%5))
			base := domain.SurveyAnswer{
				TenantID: tenant, ModuleType: domain.ModuleParent, RespondentID: respondent,
				SurveyID: tenant*100 + 1, SurveyStatus: "completed", SurveyActive: true, UpdatedAt: at,
			}
			id++
			nps := base
			nps.ID, nps.Question, nps.Kind, nps.Value = id, sampleNps, domain.AnswerNps, float64((r*7+tenant)%11)
			id++
			likert := base
			likert.ID, likert.Question, likert.Kind, likert.Value = id, sampleLikert, domain.AnswerLikert, float64(1+(r+tenant)%5)
			id++
			choice := base
			choice.ID, choice.Question, choice.Kind, choice.Category = id, sampleChoice, domain.AnswerMultipleChoice, channels[r%3]
			out = append(out, nps, likert, choice)
		}
	}
	return out
}

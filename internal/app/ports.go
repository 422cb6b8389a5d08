package app

import (
	"context"
	"time"

	"github.com/google/uuid"

	"survey-dashboard-service/internal/domain"
)

// DimensionFilter restricts respondents to those who answered Question with one of Values.
type DimensionFilter struct {
	Question domain.QuestionRef
	Values   []string
}

// AnswerQuery describes one aggregation over latest answers.
// A zero TenantID means fleet-wide.
type AnswerQuery struct {
	TenantID         int64
	Modules          []domain.ModuleType
	Kind             domain.AnswerKind
	Question         *domain.QuestionRef
	Range            domain.DateRange
	Filters          []DimensionFilter
	NpsCategories    []domain.NpsCategory
	SurveyProgress   []string
	ActiveSurveyOnly bool
	SchoolTypes      []string
}

// AnswerStore runs read-only aggregations over survey answers.
// Every method counts only the latest answer per respondent, survey and question.
type AnswerStore interface {
	NpsCounts(ctx context.Context, q AnswerQuery) (domain.NpsCounts, error)
	// NpsCountsByRange returns one tally per range, in the same order.
	NpsCountsByRange(ctx context.Context, q AnswerQuery, ranges []domain.DateRange) ([]domain.NpsCounts, error)
	NpsCountsByTenant(ctx context.Context, q AnswerQuery) ([]domain.TenantNpsCounts, error)
	MonthlyAverages(ctx context.Context, q AnswerQuery) ([]domain.MonthlyAggregate, error)
	MonthlyNpsCounts(ctx context.Context, q AnswerQuery) ([]domain.MonthlyNpsCounts, error)
	CategoryCounts(ctx context.Context, q AnswerQuery) ([]domain.CategoryCount, error)
}

// QuestionResolver looks up catalog metadata for a question reference.
type QuestionResolver interface {
	Resolve(ctx context.Context, tenantID int64, ref domain.QuestionRef) (domain.QuestionInfo, error)
}

// ResultCache is the shared TTL store behind getOrCompute.
type ResultCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
	InvalidatePrefix(ctx context.Context, prefix string) error
}

// MirrorStore keeps the last value each user's dashboard rendered.
type MirrorStore interface {
	Save(ctx context.Context, key string, value []byte) error
	Load(ctx context.Context, key string) ([]byte, bool, error)
	Clear(ctx context.Context, key string) error
}

// TrackerRepository persists trackers; Create must reject duplicates with domain.ErrDuplicateTracker.
type TrackerRepository interface {
	Create(ctx context.Context, t domain.Tracker) error
	Exists(ctx context.Context, userID int64, ref domain.QuestionRef, module domain.ModuleType) (bool, error)
	ListByUser(ctx context.Context, tenantID, userID int64) ([]domain.Tracker, error)
	Delete(ctx context.Context, tenantID, userID int64, id uuid.UUID) error
}

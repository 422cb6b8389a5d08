package app

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"survey-dashboard-service/internal/domain"
)

// TrackerService manages the questions users pin to their dashboards.
type TrackerService struct {
	repo      TrackerRepository
	questions QuestionResolver
	reports   *ReportService
	validate  *validator.Validate
	clock     func() time.Time
}

func NewTrackerService(repo TrackerRepository, questions QuestionResolver, reports *ReportService) *TrackerService {
	return &TrackerService{
		repo:      repo,
		questions: questions,
		reports:   reports,
		validate:  newValidator(),
		clock:     time.Now,
	}
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Create validates and stores a tracker. A second tracker for the same
// (user, question, module) fails with a field error wrapping domain.ErrDuplicateTracker.
func (s *TrackerService) Create(ctx context.Context, in domain.NewTracker) (domain.Tracker, error) {
	if err := s.validate.Struct(in); err != nil {
		return domain.Tracker{}, toValidationErrors(err)
	}
	if _, err := s.questions.Resolve(ctx, in.TenantID, in.Question); err != nil {
		if errors.Is(err, domain.ErrUnresolvableQuestionReference) {
			return domain.Tracker{}, domain.ValidationErrors{{Field: "question", Rule: "exists", Message: "question does not exist", Err: err}}
		}
		return domain.Tracker{}, err
	}
	exists, err := s.repo.Exists(ctx, in.UserID, in.Question, in.ModuleType)
	if err != nil {
		return domain.Tracker{}, fmt.Errorf("check tracker: %w", err)
	}
	if exists {
		return domain.Tracker{}, duplicateTracker()
	}

	t := domain.Tracker{
		ID:         uuid.New(),
		TenantID:   in.TenantID,
		UserID:     in.UserID,
		Question:   in.Question,
		ModuleType: in.ModuleType,
		CreatedAt:  s.clock().UTC(),
	}
	if err := s.repo.Create(ctx, t); err != nil {
		if errors.Is(err, domain.ErrDuplicateTracker) {
			return domain.Tracker{}, duplicateTracker()
		}
		return domain.Tracker{}, fmt.Errorf("create tracker: %w", err)
	}
	return t, nil
}

func (s *TrackerService) List(ctx context.Context, tenantID, userID int64) ([]domain.Tracker, error) {
	return s.repo.ListByUser(ctx, tenantID, userID)
}

func (s *TrackerService) Delete(ctx context.Context, tenantID, userID int64, id uuid.UUID) error {
	return s.repo.Delete(ctx, tenantID, userID, id)
}

// Score is the tracked question's Likert result across all survey cycles of the period.
func (s *TrackerService) Score(ctx context.Context, t domain.Tracker, req ReportRequest) (domain.LikertResult, error) {
	return s.reports.Likert(ctx, trackerRequest(t, req), t.Question, false)
}

// MultipleChoiceScore is the tracked question's option distribution across all survey cycles.
func (s *TrackerService) MultipleChoiceScore(ctx context.Context, t domain.Tracker, req ReportRequest) (domain.MultipleChoiceResult, error) {
	return s.reports.MultipleChoice(ctx, trackerRequest(t, req), t.Question, false)
}

// TrackerScore is one tracker with the report matching its question kind.
type TrackerScore struct {
	Tracker        domain.Tracker               `json:"tracker"`
	Kind           domain.AnswerKind            `json:"kind"`
	Likert         *domain.LikertResult         `json:"likert,omitempty"`
	MultipleChoice *domain.MultipleChoiceResult `json:"multipleChoice,omitempty"`
}

// ScoreOf picks the Likert or multiple-choice report by the tracked question's kind.
func (s *TrackerService) ScoreOf(ctx context.Context, t domain.Tracker, req ReportRequest) (TrackerScore, error) {
	info, err := s.questions.Resolve(ctx, t.TenantID, t.Question)
	if err != nil {
		return TrackerScore{}, fmt.Errorf("resolve tracked question %s: %w", t.Question, err)
	}
	out := TrackerScore{Tracker: t, Kind: info.Kind}
	if info.Kind == domain.AnswerMultipleChoice {
		mc, err := s.MultipleChoiceScore(ctx, t, req)
		if err != nil {
			return TrackerScore{}, err
		}
		out.MultipleChoice = &mc
		return out, nil
	}
	likert, err := s.Score(ctx, t, req)
	if err != nil {
		return TrackerScore{}, err
	}
	out.Likert = &likert
	return out, nil
}

// Scores scores every tracker of the user.
func (s *TrackerService) Scores(ctx context.Context, tenantID, userID int64, req ReportRequest) ([]TrackerScore, error) {
	trackers, err := s.List(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	scores := make([]TrackerScore, 0, len(trackers))
	for _, t := range trackers {
		score, err := s.ScoreOf(ctx, t, req)
		if err != nil {
			return nil, err
		}
		scores = append(scores, score)
	}
	return scores, nil
}

func trackerRequest(t domain.Tracker, req ReportRequest) ReportRequest {
	req.TenantID = t.TenantID
	req.ModuleType = t.ModuleType
	return req
}

func duplicateTracker() error {
	return domain.ValidationErrors{{
		Field:   "question",
		Rule:    "unique",
		Message: "this question is already tracked for the module",
		Err:     domain.ErrDuplicateTracker,
	}}
}

func toValidationErrors(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := make(domain.ValidationErrors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, domain.FieldError{
			Field:   fieldPath(fe.Namespace()),
			Rule:    fe.Tag(),
			Message: validationMessage(fe),
		})
	}
	return out
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	}
	return "is invalid"
}

// fieldPath drops the top-level struct name: "NewTracker.question.id" becomes "question.id".
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

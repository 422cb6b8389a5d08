package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ModuleType identifies which survey audience a report or tracker covers.
type ModuleType string

const (
	ModuleParent   ModuleType = "parent"
	ModuleStudent  ModuleType = "student"
	ModuleEmployee ModuleType = "employee"
	// ModulePulse aggregates over the tenant's active modules.
	ModulePulse ModuleType = "pulse"
)

// SurveyModules lists the concrete modules pulse expands to when no active list is given.
var SurveyModules = []ModuleType{ModuleParent, ModuleStudent, ModuleEmployee}

func (m ModuleType) Valid() bool {
	switch m {
	case ModuleParent, ModuleStudent, ModuleEmployee, ModulePulse:
		return true
	}
	return false
}

// QuestionKind tags which catalog a QuestionRef points into.
type QuestionKind string

const (
	QuestionStandard QuestionKind = "standard"
	QuestionCustom   QuestionKind = "custom"
)

// QuestionRef is either a standard catalog question or a tenant-defined one.
type QuestionRef struct {
	Kind QuestionKind `json:"kind" validate:"oneof=standard custom"`
	ID   int64        `json:"id" validate:"gt=0"`
}

func (q QuestionRef) String() string {
	return string(q.Kind) + ":" + strconv.FormatInt(q.ID, 10)
}

func (q QuestionRef) IsCustom() bool { return q.Kind == QuestionCustom }

// ParseQuestionRef reads the "standard:12" / "custom:5" form used as filter dimension keys.
func ParseQuestionRef(raw string) (QuestionRef, error) {
	kind, id, ok := strings.Cut(raw, ":")
	if !ok {
		return QuestionRef{}, fmt.Errorf("%w: %q", ErrUnresolvableQuestionReference, raw)
	}
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return QuestionRef{}, fmt.Errorf("%w: %q", ErrUnresolvableQuestionReference, raw)
	}
	switch QuestionKind(kind) {
	case QuestionStandard, QuestionCustom:
		return QuestionRef{Kind: QuestionKind(kind), ID: n}, nil
	}
	return QuestionRef{}, fmt.Errorf("%w: %q", ErrUnresolvableQuestionReference, raw)
}

// AnswerKind is the question type an answer belongs to.
type AnswerKind string

const (
	AnswerNps            AnswerKind = "nps"
	AnswerLikert         AnswerKind = "likert"
	AnswerMultipleChoice AnswerKind = "multiple_choice"
	AnswerDemographic    AnswerKind = "demographic"
)

// SurveyAnswer is one respondent's answer to one question in one survey cycle.
// Reports only read answers; ingestion lives elsewhere.
type SurveyAnswer struct {
	ID           int64       `json:"id"`
	TenantID     int64       `json:"tenantId"`
	ModuleType   ModuleType  `json:"moduleType"`
	Question     QuestionRef `json:"question"`
	Kind         AnswerKind  `json:"kind"`
	RespondentID int64       `json:"respondentId"`
	SurveyID     int64       `json:"surveyId"`
	SurveyStatus string      `json:"surveyStatus"`
	SurveyActive bool        `json:"surveyActive"`
	Value        float64     `json:"value"`
	Category     string      `json:"category"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

// QuestionInfo is what the question catalog knows about a reference.
type QuestionInfo struct {
	Ref              QuestionRef `json:"ref"`
	Title            string      `json:"title"`
	Kind             AnswerKind  `json:"kind"`
	Demographic      bool        `json:"demographic"`
	EditableByClient bool        `json:"editableByClient"`
	// HasCustomAnswer is true when the tenant recorded its own answer options for an editable question.
	HasCustomAnswer bool `json:"hasCustomAnswer"`
}

// Tracker pins a question to a user's dashboard for one module.
type Tracker struct {
	ID         uuid.UUID   `json:"id"`
	TenantID   int64       `json:"tenantId"`
	UserID     int64       `json:"userId"`
	Question   QuestionRef `json:"question"`
	ModuleType ModuleType  `json:"moduleType"`
	CreatedAt  time.Time   `json:"createdAt"`
}

// NewTracker is the validated input for creating a tracker.
type NewTracker struct {
	TenantID   int64       `json:"tenantId" validate:"required,gt=0"`
	UserID     int64       `json:"userId" validate:"required,gt=0"`
	Question   QuestionRef `json:"question" validate:"required"`
	ModuleType ModuleType  `json:"moduleType" validate:"required,oneof=parent student employee pulse"`
}

package domain

import (
	"errors"
	"strings"
)

var (
	// ErrInvalidPeriod is returned for a period token outside the fixed token table.
	ErrInvalidPeriod = errors.New("invalid period")
	// ErrInvalidCustomRange is returned when a custom period has no parseable range.
	ErrInvalidCustomRange = errors.New("invalid custom range")
	// ErrDuplicateTracker signals that a user already tracks the question for that module.
	ErrDuplicateTracker = errors.New("tracker already exists")
	// ErrUnresolvableQuestionReference indicates the questionable lookup returned nothing.
	ErrUnresolvableQuestionReference = errors.New("unresolvable question reference")
	// ErrBenchmarkNotComparable marks a filter set that cannot be compared across tenants.
	// It never fails a request; callers render it as NotApplicable.
	ErrBenchmarkNotComparable = errors.New("benchmark not comparable")
	// ErrTrackerNotFound is returned when deleting a tracker the user does not own.
	ErrTrackerNotFound = errors.New("tracker not found")
)

// FieldError is a single field-level validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e FieldError) Error() string {
	return e.Field + ": " + e.Message
}

func (e FieldError) Unwrap() error { return e.Err }

// ValidationErrors groups field errors so callers can render them per input.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, fe := range v {
		parts = append(parts, fe.Error())
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Unwrap exposes the wrapped sentinels to errors.Is.
func (v ValidationErrors) Unwrap() []error {
	errs := make([]error, 0, len(v))
	for _, fe := range v {
		if fe.Err != nil {
			errs = append(errs, fe.Err)
		}
	}
	return errs
}

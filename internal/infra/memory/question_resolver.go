package memory

import (
	"context"
	"fmt"
	"sync"

	"survey-dashboard-service/internal/domain"
)

// StaticQuestionResolver is a question catalog backed by an in-memory map (useful for tests/demos).
type StaticQuestionResolver struct {
	mu        sync.RWMutex
	questions map[domain.QuestionRef]domain.QuestionInfo
	// custom maps a custom question to its owning tenant.
	owners        map[domain.QuestionRef]int64
	customAnswers map[tenantQuestion]bool
}

type tenantQuestion struct {
	tenant   int64
	question domain.QuestionRef
}

func NewStaticQuestionResolver(questions ...domain.QuestionInfo) *StaticQuestionResolver {
	r := &StaticQuestionResolver{
		questions:     make(map[domain.QuestionRef]domain.QuestionInfo),
		owners:        make(map[domain.QuestionRef]int64),
		customAnswers: make(map[tenantQuestion]bool),
	}
	for _, q := range questions {
		r.questions[q.Ref] = q
	}
	return r
}

// AddCustom registers a tenant-defined question.
func (r *StaticQuestionResolver) AddCustom(tenantID int64, q domain.QuestionInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.questions[q.Ref] = q
	r.owners[q.Ref] = tenantID
}

// MarkCustomAnswer records that a tenant supplied its own options for an editable question.
func (r *StaticQuestionResolver) MarkCustomAnswer(tenantID int64, ref domain.QuestionRef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.customAnswers[tenantQuestion{tenantID, ref}] = true
}

func (r *StaticQuestionResolver) Resolve(_ context.Context, tenantID int64, ref domain.QuestionRef) (domain.QuestionInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.questions[ref]
	if !ok {
		return domain.QuestionInfo{}, fmt.Errorf("%w: %s", domain.ErrUnresolvableQuestionReference, ref)
	}
	if owner, custom := r.owners[ref]; custom && owner != tenantID {
		return domain.QuestionInfo{}, fmt.Errorf("%w: %s", domain.ErrUnresolvableQuestionReference, ref)
	}
	info.HasCustomAnswer = r.customAnswers[tenantQuestion{tenantID, ref}]
	return info, nil
}

package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"survey-dashboard-service/internal/domain"
)

// TrackerRepository is an in-memory implementation of app.TrackerRepository.
type TrackerRepository struct {
	mu       sync.RWMutex
	trackers map[uuid.UUID]domain.Tracker
}

func NewTrackerRepository() *TrackerRepository {
	return &TrackerRepository{trackers: make(map[uuid.UUID]domain.Tracker)}
}

func (r *TrackerRepository) Create(_ context.Context, t domain.Tracker) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.trackers {
		if sameTracker(existing, t.UserID, t.Question, t.ModuleType) {
			return domain.ErrDuplicateTracker
		}
	}
	r.trackers[t.ID] = t
	return nil
}

func (r *TrackerRepository) Exists(_ context.Context, userID int64, ref domain.QuestionRef, module domain.ModuleType) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, existing := range r.trackers {
		if sameTracker(existing, userID, ref, module) {
			return true, nil
		}
	}
	return false, nil
}

func (r *TrackerRepository) ListByUser(_ context.Context, tenantID, userID int64) ([]domain.Tracker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []domain.Tracker{}
	for _, t := range r.trackers {
		if t.TenantID == tenantID && t.UserID == userID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *TrackerRepository) Delete(_ context.Context, tenantID, userID int64, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.trackers[id]
	if !ok || t.TenantID != tenantID || t.UserID != userID {
		return domain.ErrTrackerNotFound
	}
	delete(r.trackers, id)
	return nil
}

func sameTracker(t domain.Tracker, userID int64, ref domain.QuestionRef, module domain.ModuleType) bool {
	return t.UserID == userID && t.Question == ref && t.ModuleType == module
}

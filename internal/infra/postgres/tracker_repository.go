package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"

	"survey-dashboard-service/internal/domain"
)

type trackerRow struct {
	bun.BaseModel `bun:"table:trackers,alias:tr"`

	ID               uuid.UUID `bun:"id,pk,type:uuid"`
	TenantID         int64     `bun:"tenant_id"`
	UserID           int64     `bun:"user_id"`
	QuestionableType string    `bun:"questionable_type"`
	QuestionableID   int64     `bun:"questionable_id"`
	ModuleType       string    `bun:"module_type"`
	CreatedAt        time.Time `bun:"created_at"`
}

func (r trackerRow) toDomain() domain.Tracker {
	return domain.Tracker{
		ID:         r.ID,
		TenantID:   r.TenantID,
		UserID:     r.UserID,
		Question:   domain.QuestionRef{Kind: domain.QuestionKind(r.QuestionableType), ID: r.QuestionableID},
		ModuleType: domain.ModuleType(r.ModuleType),
		CreatedAt:  r.CreatedAt,
	}
}

// TrackerRepository stores trackers with bun; the unique constraint backs duplicate detection.
type TrackerRepository struct {
	db *bun.DB
}

func NewTrackerRepository(db *bun.DB) *TrackerRepository {
	return &TrackerRepository{db: db}
}

func (r *TrackerRepository) Create(ctx context.Context, t domain.Tracker) error {
	row := trackerRow{
		ID:               t.ID,
		TenantID:         t.TenantID,
		UserID:           t.UserID,
		QuestionableType: string(t.Question.Kind),
		QuestionableID:   t.Question.ID,
		ModuleType:       string(t.ModuleType),
		CreatedAt:        t.CreatedAt,
	}
	if _, err := r.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		var pgErr pgdriver.Error
		if errors.As(err, &pgErr) && pgErr.IntegrityViolation() {
			return domain.ErrDuplicateTracker
		}
		return fmt.Errorf("insert tracker: %w", err)
	}
	return nil
}

func (r *TrackerRepository) Exists(ctx context.Context, userID int64, ref domain.QuestionRef, module domain.ModuleType) (bool, error) {
	return r.db.NewSelect().
		Model((*trackerRow)(nil)).
		Where("tr.user_id = ?", userID).
		Where("tr.questionable_type = ? AND tr.questionable_id = ?", ref.Kind, ref.ID).
		Where("tr.module_type = ?", module).
		Exists(ctx)
}

func (r *TrackerRepository) ListByUser(ctx context.Context, tenantID, userID int64) ([]domain.Tracker, error) {
	var rows []trackerRow
	err := r.db.NewSelect().
		Model(&rows).
		Where("tr.tenant_id = ? AND tr.user_id = ?", tenantID, userID).
		Order("tr.created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list trackers: %w", err)
	}
	out := make([]domain.Tracker, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *TrackerRepository) Delete(ctx context.Context, tenantID, userID int64, id uuid.UUID) error {
	res, err := r.db.NewDelete().
		Model((*trackerRow)(nil)).
		Where("id = ? AND tenant_id = ? AND user_id = ?", id, tenantID, userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete tracker: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrTrackerNotFound
	}
	return nil
}

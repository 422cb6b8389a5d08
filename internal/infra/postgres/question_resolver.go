package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"survey-dashboard-service/internal/domain"
)

// QuestionResolver reads the standard and tenant question catalogs from Postgres.
type QuestionResolver struct {
	pool *pgxpool.Pool
}

func NewQuestionResolver(pool *pgxpool.Pool) *QuestionResolver {
	return &QuestionResolver{pool: pool}
}

func (r *QuestionResolver) Resolve(ctx context.Context, tenantID int64, ref domain.QuestionRef) (domain.QuestionInfo, error) {
	info := domain.QuestionInfo{Ref: ref}
	var (
		kind string
		err  error
	)
	switch ref.Kind {
	case domain.QuestionStandard:
		err = r.pool.QueryRow(ctx, `
			SELECT q.title, q.kind, q.demographic, q.editable_by_client,
			       EXISTS (SELECT 1 FROM tenant_custom_answers c WHERE c.question_id = q.id AND c.tenant_id = $2)
			FROM questions q
			WHERE q.id = $1`, ref.ID, tenantID).
			Scan(&info.Title, &kind, &info.Demographic, &info.EditableByClient, &info.HasCustomAnswer)
	case domain.QuestionCustom:
		err = r.pool.QueryRow(ctx, `
			SELECT title, kind FROM tenant_questions WHERE id = $1 AND tenant_id = $2`, ref.ID, tenantID).
			Scan(&info.Title, &kind)
	default:
		return domain.QuestionInfo{}, fmt.Errorf("%w: %s", domain.ErrUnresolvableQuestionReference, ref)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.QuestionInfo{}, fmt.Errorf("%w: %s", domain.ErrUnresolvableQuestionReference, ref)
	}
	if err != nil {
		return domain.QuestionInfo{}, fmt.Errorf("resolve question %s: %w", ref, err)
	}
	info.Kind = domain.AnswerKind(kind)
	return info, nil
}

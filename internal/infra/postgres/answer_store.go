package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"survey-dashboard-service/internal/app"
	"survey-dashboard-service/internal/domain"
)

const (
	promoterCond  = "a.value >= 9"
	passiveCond   = "a.value > 6 AND a.value < 9"
	detractorCond = "a.value <= 6"
)

// AnswerStore aggregates survey_answers with bun. Every query runs over a
// DISTINCT ON subquery that keeps the latest answer per respondent, survey and question.
type AnswerStore struct {
	db *bun.DB
}

func NewAnswerStore(db *bun.DB) *AnswerStore {
	return &AnswerStore{db: db}
}

type npsRow struct {
	Bucket     int   `bun:"bucket"`
	Month      int   `bun:"month"`
	TenantID   int64 `bun:"tenant_id"`
	Promoters  int   `bun:"promoters"`
	Passives   int   `bun:"passives"`
	Detractors int   `bun:"detractors"`
}

func (r npsRow) counts() domain.NpsCounts {
	return domain.NpsCounts{Promoters: r.Promoters, Passives: r.Passives, Detractors: r.Detractors}
}

func (s *AnswerStore) NpsCounts(ctx context.Context, q app.AnswerQuery) (domain.NpsCounts, error) {
	var row npsRow
	if err := s.npsSelect(q).Scan(ctx, &row); err != nil {
		return domain.NpsCounts{}, fmt.Errorf("select nps counts: %w", err)
	}
	return row.counts(), nil
}

// NpsCountsByRange issues one UNION ALL with a select per range, tagged by bucket index.
func (s *AnswerStore) NpsCountsByRange(ctx context.Context, q app.AnswerQuery, ranges []domain.DateRange) ([]domain.NpsCounts, error) {
	out := make([]domain.NpsCounts, len(ranges))
	if len(ranges) == 0 {
		return out, nil
	}
	var union *bun.SelectQuery
	for i, r := range ranges {
		sub := q
		sub.Range = r
		part := s.npsSelect(sub).ColumnExpr("? AS bucket", i)
		if union == nil {
			union = part
		} else {
			union = union.UnionAll(part)
		}
	}
	var rows []npsRow
	if err := union.Scan(ctx, &rows); err != nil {
		return nil, fmt.Errorf("select nps buckets: %w", err)
	}
	for _, row := range rows {
		if row.Bucket >= 0 && row.Bucket < len(out) {
			out[row.Bucket] = row.counts()
		}
	}
	return out, nil
}

func (s *AnswerStore) NpsCountsByTenant(ctx context.Context, q app.AnswerQuery) ([]domain.TenantNpsCounts, error) {
	var rows []npsRow
	err := s.npsSelect(q).
		ColumnExpr("a.tenant_id").
		GroupExpr("a.tenant_id").
		OrderExpr("a.tenant_id").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("select nps by tenant: %w", err)
	}
	out := make([]domain.TenantNpsCounts, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.TenantNpsCounts{TenantID: row.TenantID, Counts: row.counts()})
	}
	return out, nil
}

func (s *AnswerStore) MonthlyAverages(ctx context.Context, q app.AnswerQuery) ([]domain.MonthlyAggregate, error) {
	var rows []struct {
		Month   int     `bun:"month"`
		Average float64 `bun:"average"`
		Count   int     `bun:"count"`
	}
	err := s.db.NewSelect().
		TableExpr("(?) AS a", s.latest(q)).
		ColumnExpr("EXTRACT(MONTH FROM a.updated_at AT TIME ZONE ?)::int AS month", zoneName(q.Range.End.Location())).
		ColumnExpr("AVG(a.value) AS average").
		ColumnExpr("COUNT(*) AS count").
		GroupExpr("month").
		OrderExpr("month").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("select monthly averages: %w", err)
	}
	out := make([]domain.MonthlyAggregate, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.MonthlyAggregate{Month: r.Month, Average: r.Average, Count: r.Count})
	}
	return out, nil
}

func (s *AnswerStore) MonthlyNpsCounts(ctx context.Context, q app.AnswerQuery) ([]domain.MonthlyNpsCounts, error) {
	var rows []npsRow
	err := s.npsSelect(q).
		ColumnExpr("EXTRACT(MONTH FROM a.updated_at AT TIME ZONE ?)::int AS month", zoneName(q.Range.End.Location())).
		GroupExpr("month").
		OrderExpr("month").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("select monthly nps: %w", err)
	}
	out := make([]domain.MonthlyNpsCounts, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.MonthlyNpsCounts{Month: r.Month, Counts: r.counts()})
	}
	return out, nil
}

func (s *AnswerStore) CategoryCounts(ctx context.Context, q app.AnswerQuery) ([]domain.CategoryCount, error) {
	var rows []struct {
		Category string  `bun:"category"`
		Count    int     `bun:"count"`
		Average  float64 `bun:"average"`
	}
	err := s.db.NewSelect().
		TableExpr("(?) AS a", s.latest(q)).
		ColumnExpr("a.category").
		ColumnExpr("COUNT(*) AS count").
		ColumnExpr("AVG(a.value) AS average").
		GroupExpr("a.category").
		OrderExpr("a.category").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("select category counts: %w", err)
	}
	out := make([]domain.CategoryCount, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.CategoryCount{Category: r.Category, Count: r.Count, Average: r.Average})
	}
	return out, nil
}

func (s *AnswerStore) npsSelect(q app.AnswerQuery) *bun.SelectQuery {
	return s.db.NewSelect().
		TableExpr("(?) AS a", s.latest(q)).
		ColumnExpr("COUNT(*) FILTER (WHERE " + promoterCond + ") AS promoters").
		ColumnExpr("COUNT(*) FILTER (WHERE " + passiveCond + ") AS passives").
		ColumnExpr("COUNT(*) FILTER (WHERE " + detractorCond + ") AS detractors")
}

// latest selects the most recent matching answer per respondent, survey and question.
func (s *AnswerStore) latest(q app.AnswerQuery) *bun.SelectQuery {
	sel := s.db.NewSelect().
		TableExpr("survey_answers AS sa").
		DistinctOn("sa.tenant_id, sa.respondent_id, sa.survey_id, sa.questionable_type, sa.questionable_id").
		ColumnExpr("sa.*").
		Join("JOIN surveys AS sv ON sv.id = sa.survey_id")

	if q.TenantID != 0 {
		sel = sel.Where("sa.tenant_id = ?", q.TenantID)
	}
	if len(q.Modules) > 0 {
		sel = sel.Where("sa.module_type IN (?)", bun.In(q.Modules))
	}
	if q.Kind != "" {
		sel = sel.Where("sa.answer_kind = ?", q.Kind)
	}
	if q.Question != nil {
		sel = sel.Where("sa.questionable_type = ? AND sa.questionable_id = ?", q.Question.Kind, q.Question.ID)
	}
	if !q.Range.Start.IsZero() {
		sel = sel.Where("sa.updated_at >= ?", q.Range.Start)
	}
	if !q.Range.End.IsZero() {
		sel = sel.Where("sa.updated_at <= ?", q.Range.End)
	}
	if len(q.SurveyProgress) > 0 {
		sel = sel.Where("sa.survey_status IN (?)", bun.In(q.SurveyProgress))
	}
	if q.ActiveSurveyOnly {
		sel = sel.Where("sv.active")
	}
	if len(q.SchoolTypes) > 0 {
		sel = sel.Join("JOIN tenants AS t ON t.id = sa.tenant_id").
			Where("LOWER(REPLACE(TRIM(t.school_type), ' ', '_')) IN (?)", bun.In(q.SchoolTypes))
	}
	for _, d := range q.Filters {
		sel = sel.Where(`EXISTS (
			SELECT 1 FROM survey_answers AS f
			WHERE f.tenant_id = sa.tenant_id AND f.respondent_id = sa.respondent_id AND f.survey_id = sa.survey_id
			  AND f.questionable_type = ? AND f.questionable_id = ? AND f.category IN (?))`,
			d.Question.Kind, d.Question.ID, bun.In(d.Values))
	}
	if conds := npsCategoryConds(q.NpsCategories); conds != "" {
		sel = sel.Where(`EXISTS (
			SELECT 1 FROM survey_answers AS a
			WHERE a.tenant_id = sa.tenant_id AND a.respondent_id = sa.respondent_id AND a.survey_id = sa.survey_id
			  AND a.answer_kind = ? AND (`+conds+`))`, domain.AnswerNps)
	}

	return sel.OrderExpr("sa.tenant_id, sa.respondent_id, sa.survey_id, sa.questionable_type, sa.questionable_id, sa.updated_at DESC, sa.id DESC")
}

// zoneName is the IANA name Postgres buckets months in, matching the year range's location.
// time.Local has no portable name and falls back to UTC.
func zoneName(loc *time.Location) string {
	if loc == nil || loc == time.Local || loc.String() == "Local" {
		return "UTC"
	}
	return loc.String()
}

func npsCategoryConds(cats []domain.NpsCategory) string {
	parts := make([]string, 0, len(cats))
	for _, c := range cats {
		switch c {
		case domain.NpsPromoter:
			parts = append(parts, "("+promoterCond+")")
		case domain.NpsPassive:
			parts = append(parts, "("+passiveCond+")")
		case domain.NpsDetractor:
			parts = append(parts, "("+detractorCond+")")
		}
	}
	return strings.Join(parts, " OR ")
}

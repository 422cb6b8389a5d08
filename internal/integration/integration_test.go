package integration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"go.uber.org/zap/zaptest"

	"survey-dashboard-service/internal/app"
	"survey-dashboard-service/internal/domain"
	"survey-dashboard-service/internal/filters"
	"survey-dashboard-service/internal/infra/postgres"
	infraredis "survey-dashboard-service/internal/infra/redis"
	"survey-dashboard-service/internal/period"
)

var fixedNow = time.Date(2026, time.October, 17, 12, 0, 0, 0, time.UTC)

func TestReportsAgainstPostgresAndRedis(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	db := postgres.OpenDB(pgURL)
	defer db.Close()
	_, err := postgres.Migrate(ctx, db)
	require.NoError(t, err)
	seedSurvey(t, ctx, db)

	pool, err := pgxpool.Connect(ctx, pgURL)
	require.NoError(t, err)
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	require.NoError(t, err)
	defer redisClient.Close()

	logger := zaptest.NewLogger(t)
	questions := postgres.NewQuestionResolver(pool)
	reports := app.NewReportService(
		postgres.NewAnswerStore(db),
		questions,
		period.NewResolverWithClock(time.UTC, func() time.Time { return fixedNow }),
		app.NewReportCache(infraredis.NewResultCache(redisClient), logger),
		infraredis.NewMirrorStore(redisClient, time.Hour),
		5*time.Minute,
		logger,
	)

	req := app.ReportRequest{
		TenantID:   1,
		UserID:     7,
		ModuleType: domain.ModuleParent,
		Period:     domain.PeriodSelection{Token: domain.PeriodLast30Days},
	}

	// Respondent 5 answered 2 then 10; only the latest counts.
	current, err := reports.CurrentPeriod(ctx, req)
	require.NoError(t, err)
	require.Equal(t, 5, current.Total)
	require.Equal(t, 60, current.Score)

	keys, err := redisClient.Keys(ctx, "report:t1:*").Result()
	require.NoError(t, err)
	require.NotEmpty(t, keys)
	mirrored, ok, err := reports.LastGood(ctx, 1, 7, app.FamilyCurrent)
	require.NoError(t, err)
	require.True(t, ok)
	require.Contains(t, string(mirrored), `"score":60`)

	filtered := req
	filtered.Filters = filters.Normalize(domain.FilterSet{"standard:2": {"female": true, "male": false}}, nil)
	female, err := reports.CurrentPeriod(ctx, filtered)
	require.NoError(t, err)
	require.Equal(t, 2, female.Total)
	require.Equal(t, 100, female.Score)

	// Only respondents whose NPS answer is a promoter; respondent 4 (detractor) drops out.
	promoters := req
	promoters.Filters = filters.Normalize(domain.FilterSet{
		"standard:2":         {"female": true, "male": true},
		filters.CustomNpsKey: {"promoter": true},
	}, nil)
	require.True(t, promoters.Filters.IsCustomNpsFilter)
	promoted, err := reports.CurrentPeriod(ctx, promoters)
	require.NoError(t, err)
	require.Equal(t, 3, promoted.Total)
	require.Equal(t, 100, promoted.Score)

	quarter := req
	quarter.Period = domain.PeriodSelection{Token: domain.PeriodLast3Months}
	buckets, err := reports.NpsSeries(ctx, quarter)
	require.NoError(t, err)
	require.Len(t, buckets, 4)
	for i, b := range buckets[:3] {
		require.Zerof(t, b.Total, "bucket %d starting %s", i, b.Start)
	}
	require.Equal(t, time.October, buckets[3].Start.Month())
	require.Equal(t, 5, buckets[3].Total)
	require.Equal(t, 60, buckets[3].Score)

	likertRef := domain.QuestionRef{Kind: domain.QuestionStandard, ID: 3}
	scores, err := reports.ScoreOverTime(ctx, req, 2026, likertRef)
	require.NoError(t, err)
	require.Equal(t, domain.MonthlyPoint{Y: 3.5, TotalQuantity: 4}, scores[9])
	require.Zero(t, scores[8].TotalQuantity)

	likert, err := reports.Likert(ctx, req, likertRef, false)
	require.NoError(t, err)
	require.Equal(t, "The school keeps me informed", likert.Title)
	require.Equal(t, 4, likert.Total)
	require.Equal(t, 3.5, likert.Average)
	require.Len(t, likert.Options, 3)
	require.Equal(t, "strongly_disagree", likert.Options[0].Category)
	require.Equal(t, domain.CategoryShare{Category: "agree", Count: 2, Percentage: 50}, likert.Options[1])

	choices, err := reports.MultipleChoice(ctx, req, domain.QuestionRef{Kind: domain.QuestionStandard, ID: 4}, true)
	require.NoError(t, err)
	require.Equal(t, 3, choices.Total)
	require.Equal(t, domain.CategoryShare{Category: "email", Count: 2, Percentage: 66.67}, choices.Options[0])

	series, err := reports.NpsOverTime(ctx, req, 2026)
	require.NoError(t, err)
	require.Equal(t, float64(60), series[9].Y)
	require.Equal(t, 5, series[9].TotalQuantity)
	require.Zero(t, series[8].TotalQuantity)

	applied := req
	applied.ApplyBenchmark = true
	bench, err := reports.Benchmark(ctx, applied)
	require.NoError(t, err)
	require.Equal(t, domain.MetricOf(-20), bench.Benchmark)
	require.Equal(t, domain.MetricOf(50), bench.Percentile)

	applied.BenchmarkSchools = []string{"Primary School"}
	primary, err := reports.Benchmark(ctx, applied)
	require.NoError(t, err)
	require.Equal(t, domain.MetricOf(60), primary.Benchmark)
	require.Equal(t, domain.MetricOf(0), primary.Percentile)

	// New answers arrive: invalidation must drop tenant 1's cached reports.
	_, err = db.ExecContext(ctx, `INSERT INTO survey_answers
		(tenant_id, module_type, questionable_type, questionable_id, answer_kind, respondent_id, survey_id, value, updated_at)
		VALUES (1, 'parent', 'standard', 1, 'nps', 6, 11, 0, ?)`, fixedNow.Add(-time.Hour))
	require.NoError(t, err)
	stale, err := reports.CurrentPeriod(ctx, req)
	require.NoError(t, err)
	require.Equal(t, 5, stale.Total)
	require.NoError(t, reports.InvalidateTenant(ctx, 1))
	fresh, err := reports.CurrentPeriod(ctx, req)
	require.NoError(t, err)
	require.Equal(t, 6, fresh.Total)
	require.Equal(t, 33, fresh.Score)
}

func TestMonthBucketsFollowResolverTimezone(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	amsterdam, err := time.LoadLocation("Europe/Amsterdam")
	if err != nil {
		t.Skipf("tzdata not available: %v", err)
	}

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()

	db := postgres.OpenDB(pgURL)
	defer db.Close()
	_, err = postgres.Migrate(ctx, db)
	require.NoError(t, err)
	seedSurvey(t, ctx, db)

	// 23:30 UTC on New Year's Eve is already January in Amsterdam.
	newYear := time.Date(2025, time.December, 31, 23, 30, 0, 0, time.UTC)
	for _, q := range []struct {
		id    int64
		kind  string
		value float64
	}{{1, "nps", 10}, {3, "likert", 5}} {
		_, err = db.ExecContext(ctx, `INSERT INTO survey_answers
			(tenant_id, module_type, questionable_type, questionable_id, answer_kind, respondent_id, survey_id, value, updated_at)
			VALUES (1, 'parent', 'standard', ?, ?, 7, 11, ?, ?)`, q.id, q.kind, q.value, newYear)
		require.NoError(t, err)
	}

	pool, err := pgxpool.Connect(ctx, pgURL)
	require.NoError(t, err)
	defer pool.Close()

	local := app.NewReportService(
		postgres.NewAnswerStore(db),
		postgres.NewQuestionResolver(pool),
		period.NewResolverWithClock(amsterdam, func() time.Time { return fixedNow }),
		nil, nil, 0, zaptest.NewLogger(t),
	)
	req := app.ReportRequest{TenantID: 1, UserID: 7, ModuleType: domain.ModuleParent}

	nps, err := local.NpsOverTime(ctx, req, 2026)
	require.NoError(t, err)
	require.Equal(t, domain.MonthlyPoint{Y: 100, TotalQuantity: 1}, nps[0])
	require.Zero(t, nps[11].TotalQuantity)

	likert, err := local.ScoreOverTime(ctx, req, 2026, domain.QuestionRef{Kind: domain.QuestionStandard, ID: 3})
	require.NoError(t, err)
	require.Equal(t, domain.MonthlyPoint{Y: 5, TotalQuantity: 1}, likert[0])

	// The same instant stays in December 2025 for a UTC resolver.
	utc := app.NewReportService(
		postgres.NewAnswerStore(db),
		postgres.NewQuestionResolver(pool),
		period.NewResolverWithClock(time.UTC, func() time.Time { return fixedNow }),
		nil, nil, 0, zaptest.NewLogger(t),
	)
	last, err := utc.NpsOverTime(ctx, req, 2025)
	require.NoError(t, err)
	require.Equal(t, 1, last[11].TotalQuantity)
	first, err := utc.NpsOverTime(ctx, req, 2026)
	require.NoError(t, err)
	require.Zero(t, first[0].TotalQuantity)
}

func TestTrackerUniquenessInPostgres(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()

	db := postgres.OpenDB(pgURL)
	defer db.Close()
	_, err := postgres.Migrate(ctx, db)
	require.NoError(t, err)
	seedSurvey(t, ctx, db)

	pool, err := pgxpool.Connect(ctx, pgURL)
	require.NoError(t, err)
	defer pool.Close()

	repo := postgres.NewTrackerRepository(db)
	questions := postgres.NewQuestionResolver(pool)
	reports := app.NewReportService(
		postgres.NewAnswerStore(db),
		questions,
		period.NewResolverWithClock(time.UTC, func() time.Time { return fixedNow }),
		nil, nil, 0, zaptest.NewLogger(t),
	)
	trackers := app.NewTrackerService(repo, questions, reports)

	in := domain.NewTracker{
		TenantID:   1,
		UserID:     7,
		Question:   domain.QuestionRef{Kind: domain.QuestionStandard, ID: 2},
		ModuleType: domain.ModuleParent,
	}
	created, err := trackers.Create(ctx, in)
	require.NoError(t, err)

	_, err = trackers.Create(ctx, in)
	require.ErrorIs(t, err, domain.ErrDuplicateTracker)

	// A racing insert that slipped past the existence check hits the unique constraint.
	err = repo.Create(ctx, domain.Tracker{
		ID: uuid.New(), TenantID: 1, UserID: 7, Question: in.Question, ModuleType: in.ModuleType, CreatedAt: fixedNow,
	})
	require.ErrorIs(t, err, domain.ErrDuplicateTracker)

	listed, err := trackers.List(ctx, 1, 7)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, created.ID, listed[0].ID)

	_, err = trackers.Create(ctx, domain.NewTracker{
		TenantID: 1, UserID: 7, Question: domain.QuestionRef{Kind: domain.QuestionCustom, ID: 404}, ModuleType: domain.ModuleParent,
	})
	var verrs domain.ValidationErrors
	require.True(t, errors.As(err, &verrs))
	require.ErrorIs(t, err, domain.ErrUnresolvableQuestionReference)

	// Each tracker is scored by its own question kind.
	for _, id := range []int64{3, 4} {
		_, err = trackers.Create(ctx, domain.NewTracker{
			TenantID: 1, UserID: 8, Question: domain.QuestionRef{Kind: domain.QuestionStandard, ID: id}, ModuleType: domain.ModuleParent,
		})
		require.NoError(t, err)
	}
	scored, err := trackers.Scores(ctx, 1, 8, app.ReportRequest{
		TenantID: 1, UserID: 8, ModuleType: domain.ModuleParent,
		Period: domain.PeriodSelection{Token: domain.PeriodLast30Days},
	})
	require.NoError(t, err)
	require.Len(t, scored, 2)
	byKind := map[domain.AnswerKind]app.TrackerScore{}
	for _, s := range scored {
		byKind[s.Kind] = s
	}
	require.NotNil(t, byKind[domain.AnswerLikert].Likert)
	require.Equal(t, 4, byKind[domain.AnswerLikert].Likert.Total)
	require.NotNil(t, byKind[domain.AnswerMultipleChoice].MultipleChoice)
	require.Equal(t, 3, byKind[domain.AnswerMultipleChoice].MultipleChoice.Total)
}

// seedSurvey loads two tenants: tenant 1 (primary school) scores 60, tenant 2 (secondary) scores -100.
// Tenant 1 also answers a Likert question (mean 3.5) and a multiple-choice question.
func seedSurvey(t *testing.T, ctx context.Context, db *bun.DB) {
	t.Helper()
	stmts := []string{
		`INSERT INTO tenants (id, name, school_type) VALUES (1, 'North', 'Primary School'), (2, 'South', 'secondary')`,
		`INSERT INTO questions (id, title, kind, demographic) VALUES
			(1, 'How likely are you to recommend us?', 'nps', false),
			(2, 'Gender', 'demographic', true),
			(3, 'The school keeps me informed', 'likert', false),
			(4, 'Preferred contact channel', 'multiple_choice', false)`,
		`INSERT INTO surveys (id, tenant_id, module_type, active) VALUES (11, 1, 'parent', true), (21, 2, 'parent', true)`,
	}
	for _, stmt := range stmts {
		_, err := db.ExecContext(ctx, stmt)
		require.NoError(t, err)
	}

	type row struct {
		tenant, respondent, survey int64
		question                   int64
		kind                       string
		value                      float64
		category                   string
		at                         time.Time
	}
	day := func(d int) time.Time { return time.Date(2026, time.October, d, 9, 0, 0, 0, time.UTC) }
	rows := []row{
		{1, 1, 11, 1, "nps", 10, "", day(10)},
		{1, 2, 11, 1, "nps", 9, "", day(10)},
		{1, 3, 11, 1, "nps", 10, "", day(11)},
		{1, 4, 11, 1, "nps", 3, "", day(11)},
		{1, 5, 11, 1, "nps", 2, "", day(1)},
		{1, 5, 11, 1, "nps", 10, "", day(12)},
		{1, 1, 11, 2, "demographic", 0, "female", day(10)},
		{1, 2, 11, 2, "demographic", 0, "female", day(10)},
		{1, 3, 11, 2, "demographic", 0, "male", day(11)},
		{1, 4, 11, 2, "demographic", 0, "male", day(11)},
		{1, 1, 11, 3, "likert", 5, "strongly_agree", day(10)},
		{1, 2, 11, 3, "likert", 4, "agree", day(10)},
		{1, 3, 11, 3, "likert", 4, "agree", day(11)},
		{1, 4, 11, 3, "likert", 1, "strongly_disagree", day(11)},
		{1, 1, 11, 4, "multiple_choice", 0, "email", day(10)},
		{1, 2, 11, 4, "multiple_choice", 0, "app", day(10)},
		{1, 3, 11, 4, "multiple_choice", 0, "email", day(11)},
		{2, 101, 21, 1, "nps", 3, "", day(5)},
		{2, 102, 21, 1, "nps", 3, "", day(6)},
	}
	for _, r := range rows {
		_, err := db.ExecContext(ctx, `INSERT INTO survey_answers
			(tenant_id, module_type, questionable_type, questionable_id, answer_kind, respondent_id, survey_id, value, category, updated_at)
			VALUES (?, 'parent', 'standard', ?, ?, ?, ?, ?, ?, ?)`,
			r.tenant, r.question, r.kind, r.respondent, r.survey, r.value, r.category, r.at)
		require.NoError(t, err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "survey", "POSTGRES_PASSWORD": "surveypass", "POSTGRES_DB": "surveydb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://survey:surveypass@%s:%s/surveydb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}

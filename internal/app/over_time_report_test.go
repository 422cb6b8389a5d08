package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"survey-dashboard-service/internal/domain"
)

func TestScoreOverTimeMonthlyGrouped(t *testing.T) {
	f := newFixture(t)
	for i, v := range []float64{7, 8, 9} {
		f.answers.Add(domain.SurveyAnswer{
			ID: int64(100 + i), TenantID: 1, ModuleType: domain.ModuleParent, Question: likertRef, Kind: domain.AnswerLikert,
			RespondentID: int64(100 + i), SurveyID: 1, Value: v, UpdatedAt: time.Date(2026, time.March, 5+i, 0, 0, 0, 0, time.UTC),
		})
	}

	series, err := f.service.ScoreOverTime(context.Background(), baseRequest(1), 2026, likertRef)
	require.NoError(t, err)
	require.Len(t, series, 12)
	require.Equal(t, domain.MonthlyPoint{Y: 8, TotalQuantity: 3}, series[2])
	for i, p := range series {
		if i != 2 {
			require.Equal(t, domain.MonthlyPoint{}, p, "month %d", i+1)
		}
	}
}

func TestNpsOverTimeMonthlyGrouped(t *testing.T) {
	f := newFixture(t)
	seedNps(f.answers, 1, 6, 2, 2, time.Date(2026, time.February, 14, 0, 0, 0, 0, time.UTC))
	seedNps(f.answers, 1, 0, 0, 1, time.Date(2025, time.February, 14, 0, 0, 0, 0, time.UTC))

	series, err := f.service.NpsOverTime(context.Background(), baseRequest(1), 2026)
	require.NoError(t, err)
	require.Equal(t, domain.MonthlyPoint{Y: 40, TotalQuantity: 10}, series[1])
	require.Equal(t, domain.MonthlyPoint{}, series[0])

	empty, err := f.service.NpsOverTime(context.Background(), baseRequest(1), 2019)
	require.NoError(t, err)
	require.Equal(t, domain.MonthlySeries{}, empty)
}

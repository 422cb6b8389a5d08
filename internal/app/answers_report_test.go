package app_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"survey-dashboard-service/internal/domain"
)

func seedLikert(f *fixture) {
	at := fixedNow.AddDate(0, 0, -2)
	rows := []struct {
		value    float64
		category string
		active   bool
	}{
		{5, "strongly agree", true},
		{4, "agree", true},
		{4, "agree", false},
		{1, "strongly disagree", true},
	}
	for i, r := range rows {
		f.answers.Add(domain.SurveyAnswer{
			ID: int64(300 + i), TenantID: 1, ModuleType: domain.ModuleParent, Question: likertRef, Kind: domain.AnswerLikert,
			RespondentID: int64(300 + i), SurveyID: 1, SurveyActive: r.active, Value: r.value, Category: r.category, UpdatedAt: at,
		})
	}
}

func TestLikertDistribution(t *testing.T) {
	f := newFixture(t)
	seedLikert(f)

	got, err := f.service.Likert(context.Background(), baseRequest(1), likertRef, false)
	require.NoError(t, err)
	require.Equal(t, "Communication is clear", got.Title)
	require.Equal(t, 4, got.Total)
	require.Equal(t, 3.5, got.Average)
	require.Equal(t, []domain.CategoryShare{
		{Category: "strongly disagree", Count: 1, Percentage: 25},
		{Category: "agree", Count: 2, Percentage: 50},
		{Category: "strongly agree", Count: 1, Percentage: 25},
	}, got.Options)

	active, err := f.service.Likert(context.Background(), baseRequest(1), likertRef, true)
	require.NoError(t, err)
	require.Equal(t, 3, active.Total)
}

func TestMultipleChoiceDistribution(t *testing.T) {
	f := newFixture(t)
	at := fixedNow.AddDate(0, 0, -2)
	for i, c := range []string{"email", "sms", "email", "app", "email"} {
		f.answers.Add(domain.SurveyAnswer{
			ID: int64(400 + i), TenantID: 1, ModuleType: domain.ModuleParent, Question: choiceRef, Kind: domain.AnswerMultipleChoice,
			RespondentID: int64(400 + i), SurveyID: 1, Category: c, UpdatedAt: at,
		})
	}

	got, err := f.service.MultipleChoice(context.Background(), baseRequest(1), choiceRef, false)
	require.NoError(t, err)
	require.Equal(t, 5, got.Total)
	require.Equal(t, "email", got.Options[0].Category)
	require.Equal(t, 60.0, got.Options[0].Percentage)
	require.Equal(t, []string{"app", "sms"}, []string{got.Options[1].Category, got.Options[2].Category})
}

func TestUnknownQuestionIsUnresolvable(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.Likert(context.Background(), baseRequest(1), domain.QuestionRef{Kind: domain.QuestionStandard, ID: 404}, false)
	require.True(t, errors.Is(err, domain.ErrUnresolvableQuestionReference))

	// custom questions resolve only for their owner
	_, err = f.service.MultipleChoice(context.Background(), baseRequest(2), customRef, false)
	require.True(t, errors.Is(err, domain.ErrUnresolvableQuestionReference))
}

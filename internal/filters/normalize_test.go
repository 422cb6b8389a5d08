package filters

import (
	"testing"

	"github.com/stretchr/testify/require"

	"survey-dashboard-service/internal/domain"
)

func TestNormalizeExtractsReservedKeys(t *testing.T) {
	raw := domain.FilterSet{
		"standard:4":      {"female": true, "male": false},
		CustomNpsKey:      {"promoter": true, "detractor": false},
		SurveyProgressKey: {"completed": true, "in_progress": true},
	}

	got := Normalize(raw, []string{"completed"})

	require.Equal(t, domain.FilterSet{"standard:4": {"female": true}}, got.Filters)
	require.True(t, got.IsCustomNpsFilter)
	require.Equal(t, map[string]bool{"promoter": true}, got.CustomNpsFilter)
	require.Equal(t, []string{"completed", "in_progress"}, got.SurveyProgress)
	require.Equal(t, []domain.NpsCategory{domain.NpsPromoter}, got.NpsCategories())
}

func TestNormalizeClearsCustomNpsWithoutGeneralFilters(t *testing.T) {
	raw := domain.FilterSet{
		CustomNpsKey:      {"promoter": true},
		SurveyProgressKey: {"completed": true},
	}

	got := Normalize(raw, nil)

	require.Empty(t, got.Filters)
	require.False(t, got.IsCustomNpsFilter)
	require.Nil(t, got.CustomNpsFilter)
	require.Equal(t, []string{"completed"}, got.SurveyProgress)
}

func TestNormalizeIsIdempotent(t *testing.T) {
	inputs := []domain.FilterSet{
		{},
		{"standard:4": {"female": true}},
		{"custom:9": {"a": true, "b": true}, CustomNpsKey: {"passive": true}},
		{CustomNpsKey: {"promoter": true}, SurveyProgressKey: {"completed": true}},
	}
	for _, in := range inputs {
		first := Normalize(in, []string{"started"})
		second := Normalize(Raw(first))
		require.Equal(t, first, second)
	}
}

func TestNormalizeSchoolTypes(t *testing.T) {
	got := NormalizeSchoolTypes([]string{"Secondary School", "primary school", " ", "secondary school"})
	require.Equal(t, []string{"primary_school", "secondary_school"}, got)
}

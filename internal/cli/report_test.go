package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestReportFlagsBuildNormalizedRequest(t *testing.T) {
	f := &reportFlags{
		tenantID: 3,
		module:   "student",
		period:   "last-30-days",
		filters:  []string{"standard:2=female", "survey_progress=completed"},
	}
	req, err := f.request()
	require.NoError(t, err)
	require.Equal(t, int64(3), req.TenantID)
	require.Equal(t, []string{"female"}, req.Filters.Filters.Accepted("standard:2"))
	require.Equal(t, []string{"completed"}, req.Filters.SurveyProgress)

	f.filters = []string{"nodimension"}
	_, err = f.request()
	require.Error(t, err)

	f.filters = nil
	f.module = "staff"
	_, err = f.request()
	require.Error(t, err)
}

func TestReportCommandPrintsSampleNps(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--config", "", "report", "current", "--tenant", "1"})
	require.NoError(t, cmd.Execute())

	var result map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	require.Contains(t, result, "score")
	require.Greater(t, result["total"].(float64), 0.0)
}

func TestReportOverTimeWritesWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nps.xlsx")
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--config", "", "report", "over-time", "--tenant", "1", "--xlsx", path})
	require.NoError(t, cmd.Execute())

	var series []map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &series))
	require.Len(t, series, 12)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Report")
	require.NoError(t, err)
	require.Len(t, rows, 14)
}

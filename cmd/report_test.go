package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/prdash/internal/models"
)

// seedReportData caches a few PRs and captures command output.
func seedReportData(t *testing.T) *bytes.Buffer {
	t.Helper()
	s, err := getStore()
	require.NoError(t, err)

	prs := []*models.PullRequest{
		{
			Owner: "acme", Repo: "api", Number: 1,
			Title: "Add request tracing", Author: "alice",
			State:     models.PRStateOpen,
			CreatedAt: "2026-08-01T09:00:00Z",
			UnresolvedThreads: 1,
		},
		{
			Owner: "acme", Repo: "api", Number: 2,
			Title: "Fix panic in worker pool", Author: "bob",
			State:     models.PRStateMerged,
			CreatedAt: "2026-08-05T09:00:00Z",
			MergedAt:  "2026-08-07T09:00:00Z",
		},
	}
	require.NoError(t, s.SavePullRequests(context.Background(), prs))

	var buf bytes.Buffer
	ui.Out = &buf
	return &buf
}

func TestReportActions_JSON(t *testing.T) {
	testEnv(t)
	buf := seedReportData(t)

	reportFormat = "json"
	reportRepo = ""
	require.NoError(t, reportActionsRun())

	var rows []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rows))
	require.Len(t, rows, 1, "only open PRs appear in the actions report")
	assert.EqualValues(t, 1, rows[0]["number"])
	assert.NotNil(t, rows[0]["action_info"])
}

func TestReportActions_Markdown(t *testing.T) {
	testEnv(t)
	buf := seedReportData(t)

	reportFormat = "markdown"
	reportRepo = ""
	require.NoError(t, reportActionsRun())

	out := buf.String()
	assert.Contains(t, out, "# Open PR Actions")
	assert.Contains(t, out, "acme/api#1")
	assert.Contains(t, out, "Add request tracing")
}

func TestReportActions_BadRepo(t *testing.T) {
	testEnv(t)
	seedReportData(t)

	reportFormat = "table"
	reportRepo = "not-a-repo"
	defer func() { reportRepo = "" }()

	err := reportActionsRun()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected owner/name")
}

func TestReportRisk_CSV(t *testing.T) {
	testEnv(t)
	buf := seedReportData(t)

	reportFormat = "csv"
	reportRepo = ""
	reportMinScore = 1
	require.NoError(t, reportRiskRun())

	out := buf.String()
	assert.Contains(t, out, "Score")
	assert.Contains(t, out, "Add request tracing")
	assert.NotContains(t, out, "Fix panic", "merged PRs carry no risk score")
}

func TestReportFourKeys_JSON(t *testing.T) {
	testEnv(t)
	buf := seedReportData(t)

	reportFormat = "json"
	reportRepo = ""
	require.NoError(t, reportFourKeysRun())

	var result map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &result))
	assert.Contains(t, result, "metrics")
}

func TestReportStats_Markdown(t *testing.T) {
	testEnv(t)
	buf := seedReportData(t)

	reportFormat = "markdown"
	reportRepo = ""
	require.NoError(t, reportStatsRun())

	assert.Contains(t, buf.String(), "# Period Statistics")
}

func TestReportIssues_EmptyTable(t *testing.T) {
	testEnv(t)
	seedReportData(t)

	reportFormat = "table"
	reportRepo = ""
	require.NoError(t, reportIssuesRun())
}

func TestReport_UnknownFormat(t *testing.T) {
	testEnv(t)
	seedReportData(t)

	reportFormat = "xml"
	reportRepo = ""
	err := reportActionsRun()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "exactly-10", truncate("exactly-10", 10))
	assert.Equal(t, "longer-...", truncate("longer-than-ten", 10))
}

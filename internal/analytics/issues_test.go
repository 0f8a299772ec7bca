package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/prdash/internal/models"
)

func TestEnrichIssues(t *testing.T) {
	preset := 99.0
	issues := []*models.Issue{
		{State: models.IssueStateClosed, CreatedAt: "2026-08-01T00:00:00Z", ClosedAt: "2026-08-02T12:00:00Z"},
		{State: models.IssueStateOpen, CreatedAt: "2026-08-01T00:00:00Z"},
		{State: models.IssueStateClosed, CreatedAt: "bad", ClosedAt: "2026-08-02T00:00:00Z"},
		{State: models.IssueStateClosed, CreatedAt: "2026-08-01T00:00:00Z", ClosedAt: "2026-08-05T00:00:00Z", CycleTimeHours: &preset},
	}

	EnrichIssues(issues)

	require.NotNil(t, issues[0].CycleTimeHours)
	assert.InDelta(t, 36.0, *issues[0].CycleTimeHours, 1e-9)
	assert.Nil(t, issues[1].CycleTimeHours)
	assert.Nil(t, issues[2].CycleTimeHours)
	// Idempotent: an already-set value stays put.
	assert.InDelta(t, 99.0, *issues[3].CycleTimeHours, 1e-9)
}

func TestComputeIssueStats(t *testing.T) {
	ct12, ct36 := 12.0, 36.0
	issues := []*models.Issue{
		{State: models.IssueStateClosed, CycleTimeHours: &ct12, Milestone: &models.Milestone{Title: "v1.0"}},
		{State: models.IssueStateClosed, CycleTimeHours: &ct36, Milestone: &models.Milestone{Title: "v1.0"}},
		{State: models.IssueStateOpen, Milestone: &models.Milestone{Title: "v1.0"}},
		{State: models.IssueStateOpen, Milestone: &models.Milestone{Title: "backlog"}},
		{State: models.IssueStateOpen},
	}

	stats := ComputeIssueStats(issues)

	assert.Equal(t, 5, stats.TotalIssues)
	assert.Equal(t, 3, stats.OpenIssues)
	assert.Equal(t, 2, stats.ClosedIssues)
	assert.InDelta(t, 24.0, stats.AvgCycleTimeHours, 1e-9)
	assert.InDelta(t, 24.0, stats.MedianCycleTimeHours, 1e-9)

	require.Len(t, stats.Milestones, 2)
	assert.Equal(t, "backlog", stats.Milestones[0].Title)
	v1 := stats.Milestones[1]
	assert.Equal(t, "v1.0", v1.Title)
	assert.Equal(t, 3, v1.Total)
	assert.Equal(t, 2, v1.Closed)
	assert.InDelta(t, 66.666, v1.CompletePct, 0.01)
}

func TestComputeIssueStats_Empty(t *testing.T) {
	stats := ComputeIssueStats(nil)
	assert.Zero(t, stats.TotalIssues)
	assert.Zero(t, stats.AvgCycleTimeHours)
	assert.Empty(t, stats.Milestones)
}

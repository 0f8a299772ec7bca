package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/prdash/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	err = s.Migrate(context.Background())
	require.NoError(t, err)

	t.Cleanup(func() { s.Close() })
	return s
}

func testPR(repo string, number int, state models.PRState) *models.PullRequest {
	return &models.PullRequest{
		Owner:     "acme",
		Repo:      repo,
		Number:    number,
		Title:     "Test PR",
		State:     state,
		CreatedAt: "2026-08-01T00:00:00Z",
	}
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "subdir", "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(filepath.Join(dir, "subdir"))
	assert.NoError(t, err, "should create parent directory")
}

func TestMigrate_Idempotent(t *testing.T) {
	s := newTestStore(t)

	// Running migrations a second time must be a no-op.
	err := s.Migrate(context.Background())
	assert.NoError(t, err)
}

func TestSaveAndListPullRequests(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	prs := []*models.PullRequest{
		testPR("api", 1, models.PRStateMerged),
		testPR("api", 2, models.PRStateOpen),
		testPR("web", 5, models.PRStateOpen),
	}
	require.NoError(t, s.SavePullRequests(ctx, prs))

	all, err := s.ListPullRequests(ctx, PRFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	open, err := s.ListPullRequests(ctx, PRFilter{State: models.PRStateOpen})
	require.NoError(t, err)
	assert.Len(t, open, 2)

	api, err := s.ListPullRequests(ctx, PRFilter{Owner: "acme", Repo: "api"})
	require.NoError(t, err)
	require.Len(t, api, 2)
	// Descending number within a repo.
	assert.Equal(t, 2, api[0].Number)
	assert.Equal(t, 1, api[1].Number)
}

func TestSavePullRequests_Upsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	pr := testPR("api", 1, models.PRStateOpen)
	require.NoError(t, s.SavePullRequests(ctx, []*models.PullRequest{pr}))

	// Refetching the same PR after it merged replaces the row.
	pr.State = models.PRStateMerged
	pr.MergedAt = "2026-08-02T00:00:00Z"
	pr.Title = "Test PR (updated)"
	require.NoError(t, s.SavePullRequests(ctx, []*models.PullRequest{pr}))

	all, err := s.ListPullRequests(ctx, PRFilter{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, models.PRStateMerged, all[0].State)
	assert.Equal(t, "Test PR (updated)", all[0].Title)
}

func TestSavePullRequests_RoundTripsFullRecord(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	pr := testPR("api", 7, models.PRStateOpen)
	pr.ReviewDetails = []models.Review{
		{Author: "bob", State: models.ReviewChangesRequested, CreatedAt: "2026-08-02T00:00:00Z"},
	}
	pr.RequestedReviewers = []string{"carol"}
	pr.ChangesRequested = 1
	pr.Labels = []string{"bug"}
	require.NoError(t, s.SavePullRequests(ctx, []*models.PullRequest{pr}))

	all, err := s.ListPullRequests(ctx, PRFilter{})
	require.NoError(t, err)
	require.Len(t, all, 1)

	got := all[0]
	require.Len(t, got.ReviewDetails, 1)
	assert.Equal(t, models.ReviewChangesRequested, got.ReviewDetails[0].State)
	assert.Equal(t, []string{"carol"}, got.RequestedReviewers)
	assert.Equal(t, []string{"bug"}, got.Labels)
}

func TestSaveAndListIssues(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	issues := []*models.Issue{
		{Owner: "acme", Repo: "api", Number: 10, State: models.IssueStateOpen, CreatedAt: "2026-08-01T00:00:00Z"},
		{Owner: "acme", Repo: "api", Number: 11, State: models.IssueStateClosed, CreatedAt: "2026-08-01T00:00:00Z", ClosedAt: "2026-08-03T00:00:00Z"},
	}
	require.NoError(t, s.SaveIssues(ctx, issues))

	closed, err := s.ListIssues(ctx, IssueFilter{State: models.IssueStateClosed})
	require.NoError(t, err)
	require.Len(t, closed, 1)
	assert.Equal(t, 11, closed[0].Number)
}

func TestFetchRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	started := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	run := &FetchRun{
		Owner: "acme", Repo: "api", Kind: "prs", RecordCount: 42,
		StartedAt: started, FinishedAt: started.Add(3 * time.Second),
	}
	require.NoError(t, s.RecordFetchRun(ctx, run))
	assert.NotEmpty(t, run.ID, "should assign a ULID")

	runs, err := s.ListFetchRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 42, runs[0].RecordCount)
	assert.Equal(t, "prs", runs[0].Kind)
}

func TestCacheInfo(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SavePullRequests(ctx, []*models.PullRequest{
		testPR("api", 1, models.PRStateMerged),
		testPR("api", 2, models.PRStateOpen),
		testPR("web", 3, models.PRStateOpen),
	}))
	require.NoError(t, s.SaveIssues(ctx, []*models.Issue{
		{Owner: "acme", Repo: "api", Number: 10, State: models.IssueStateOpen},
	}))
	now := time.Now().UTC()
	require.NoError(t, s.RecordFetchRun(ctx, &FetchRun{
		Owner: "acme", Repo: "api", Kind: "prs", RecordCount: 2,
		StartedAt: now, FinishedAt: now,
	}))

	info, err := s.CacheInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, info.TotalPRs)
	assert.Equal(t, 1, info.TotalIssues)

	require.Len(t, info.Repos, 2)
	api := info.Repos[0]
	assert.Equal(t, "api", api.Repo)
	assert.Equal(t, 2, api.PRCount)
	assert.Equal(t, 1, api.IssueCount)
	assert.NotEmpty(t, api.LastFetched)

	web := info.Repos[1]
	assert.Equal(t, "web", web.Repo)
	assert.Empty(t, web.LastFetched)
}

func TestCacheInfo_Empty(t *testing.T) {
	s := newTestStore(t)

	info, err := s.CacheInfo(context.Background())
	require.NoError(t, err)
	assert.Zero(t, info.TotalPRs)
	assert.Empty(t, info.Repos)
}

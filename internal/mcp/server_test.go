package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/prdash/internal/analytics"
	"github.com/joescharf/prdash/internal/models"
	"github.com/joescharf/prdash/internal/store"
)

// ---------------------------------------------------------------------------
// Mock store
// ---------------------------------------------------------------------------

type mockStore struct {
	prs    []*models.PullRequest
	issues []*models.Issue

	// Optional error injection.
	listPRsErr   error
	cacheInfoErr error
}

func (m *mockStore) SavePullRequests(_ context.Context, prs []*models.PullRequest) error {
	m.prs = append(m.prs, prs...)
	return nil
}

func (m *mockStore) ListPullRequests(_ context.Context, filter store.PRFilter) ([]*models.PullRequest, error) {
	if m.listPRsErr != nil {
		return nil, m.listPRsErr
	}
	var out []*models.PullRequest
	for _, pr := range m.prs {
		if filter.Owner != "" && pr.Owner != filter.Owner {
			continue
		}
		if filter.Repo != "" && pr.Repo != filter.Repo {
			continue
		}
		if filter.State != "" && pr.State != filter.State {
			continue
		}
		out = append(out, pr)
	}
	return out, nil
}

func (m *mockStore) SaveIssues(_ context.Context, issues []*models.Issue) error {
	m.issues = append(m.issues, issues...)
	return nil
}

func (m *mockStore) ListIssues(_ context.Context, filter store.IssueFilter) ([]*models.Issue, error) {
	return m.issues, nil
}

func (m *mockStore) RecordFetchRun(_ context.Context, _ *store.FetchRun) error { return nil }

func (m *mockStore) ListFetchRuns(_ context.Context, _ int) ([]*store.FetchRun, error) {
	return nil, nil
}

func (m *mockStore) CacheInfo(_ context.Context) (*store.CacheInfo, error) {
	if m.cacheInfoErr != nil {
		return nil, m.cacheInfoErr
	}
	info := &store.CacheInfo{Repos: []store.RepoCacheInfo{}}
	seen := map[string]int{}
	for _, pr := range m.prs {
		seen[pr.Owner+"/"+pr.Repo]++
		info.TotalPRs++
	}
	for key, n := range seen {
		owner, repo, _ := strings.Cut(key, "/")
		info.Repos = append(info.Repos, store.RepoCacheInfo{Owner: owner, Repo: repo, PRCount: n})
	}
	return info, nil
}

func (m *mockStore) Migrate(_ context.Context) error { return nil }
func (m *mockStore) Close() error                    { return nil }

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

var testNow = time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

func newTestServer(ms *mockStore) *Server {
	srv := NewServer(ms)
	srv.now = func() time.Time { return testNow }
	return srv
}

// callToolReq builds a mcpgo.CallToolRequest with the given name and arguments.
func callToolReq(name string, args map[string]any) mcpgo.CallToolRequest {
	return mcpgo.CallToolRequest{
		Params: mcpgo.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// resultText extracts the concatenated text from a CallToolResult.
func resultText(t *testing.T, result *mcpgo.CallToolResult) string {
	t.Helper()
	var b strings.Builder
	for _, c := range result.Content {
		if tc, ok := c.(mcpgo.TextContent); ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

func seedPRs() *mockStore {
	return &mockStore{prs: []*models.PullRequest{
		{
			Owner: "acme", Repo: "api", Number: 1, Title: "Add rate limiter",
			State: models.PRStateOpen, Author: "alice",
			CreatedAt: "2026-08-05T00:00:00Z", UnresolvedThreads: 2,
		},
		{
			Owner: "acme", Repo: "api", Number: 2, Title: "Fix crash",
			State: models.PRStateMerged, Author: "bob",
			CreatedAt: "2026-08-01T00:00:00Z", MergedAt: "2026-08-02T00:00:00Z",
		},
		{
			Owner: "acme", Repo: "web", Number: 7, Title: "Restyle header",
			State: models.PRStateOpen, Author: "carol",
			CreatedAt: "2026-08-19T00:00:00Z",
		},
	}}
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestMCPServer_RegistersTools(t *testing.T) {
	srv := newTestServer(&mockStore{})
	assert.NotNil(t, srv.MCPServer())
}

func TestListPRs(t *testing.T) {
	srv := newTestServer(seedPRs())

	result, err := srv.handleListPRs(context.Background(), callToolReq("prdash_list_prs", nil))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var out []map[string]any
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &out))
	require.Len(t, out, 3)
	assert.Equal(t, "acme/api", out[0]["repo"])
	assert.NotNil(t, out[0]["danger"], "open PR should carry a danger assessment")
	assert.Nil(t, out[1]["danger"], "merged PR should not")
}

func TestListPRs_FilterByRepoAndState(t *testing.T) {
	srv := newTestServer(seedPRs())

	result, err := srv.handleListPRs(context.Background(), callToolReq("prdash_list_prs", map[string]any{
		"repo":  "acme/api",
		"state": "open",
	}))
	require.NoError(t, err)

	var out []map[string]any
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &out))
	require.Len(t, out, 1)
	assert.Equal(t, float64(1), out[0]["number"])
}

func TestListPRs_BadRepoArg(t *testing.T) {
	srv := newTestServer(seedPRs())

	result, err := srv.handleListPRs(context.Background(), callToolReq("prdash_list_prs", map[string]any{
		"repo": "not-a-repo",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestActionSummary(t *testing.T) {
	srv := newTestServer(seedPRs())

	result, err := srv.handleActionSummary(context.Background(), callToolReq("prdash_action_summary", nil))
	require.NoError(t, err)

	var out map[string][]analytics.UserAction
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &out))

	// Alice owes action on her PR (unresolved threads), carol on hers (no
	// review requested).
	assert.Contains(t, out, "alice")
	assert.Contains(t, out, "carol")
	assert.NotContains(t, out, "bob")
}

func TestRiskyPRs(t *testing.T) {
	srv := newTestServer(seedPRs())

	result, err := srv.handleRiskyPRs(context.Background(), callToolReq("prdash_risky_prs", nil))
	require.NoError(t, err)

	var out []map[string]any
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &out))

	// Only the stale PR with unresolved threads clears the default
	// threshold; the fresh one scores 0.
	require.Len(t, out, 1)
	assert.Equal(t, float64(1), out[0]["number"])
}

func TestRiskyPRs_MinScoreZero(t *testing.T) {
	srv := newTestServer(seedPRs())

	result, err := srv.handleRiskyPRs(context.Background(), callToolReq("prdash_risky_prs", map[string]any{
		"min_score": 0,
	}))
	require.NoError(t, err)

	var out []map[string]any
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &out))
	require.Len(t, out, 2)
	// Highest score first.
	first := out[0]["danger"].(map[string]any)
	second := out[1]["danger"].(map[string]any)
	assert.GreaterOrEqual(t, first["score"].(float64), second["score"].(float64))
}

func TestFourKeys(t *testing.T) {
	srv := newTestServer(seedPRs())

	result, err := srv.handleFourKeys(context.Background(), callToolReq("prdash_fourkeys", nil))
	require.NoError(t, err)

	var out analytics.FourKeysResult
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &out))
	assert.Equal(t, 1, out.Metrics.DeploymentFrequency.TotalDeployments)
	// "Fix crash" trips the failure keyword heuristic.
	assert.Equal(t, 1, out.Metrics.ChangeFailureRate.Failures)
}

func TestStatistics(t *testing.T) {
	srv := newTestServer(seedPRs())

	result, err := srv.handleStatistics(context.Background(), callToolReq("prdash_statistics", nil))
	require.NoError(t, err)

	var out struct {
		Statistics      analytics.Stats            `json:"statistics"`
		Insights        []analytics.Insight        `json:"insights"`
		Recommendations []analytics.Recommendation `json:"recommendations"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &out))
	assert.Equal(t, 3, out.Statistics.TotalPRs)
	assert.NotNil(t, out.Recommendations)
}

func TestCacheInfo(t *testing.T) {
	srv := newTestServer(seedPRs())

	result, err := srv.handleCacheInfo(context.Background(), callToolReq("prdash_cache_info", nil))
	require.NoError(t, err)

	var out store.CacheInfo
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &out))
	assert.Equal(t, 3, out.TotalPRs)
}

func TestCacheInfo_StoreError(t *testing.T) {
	srv := newTestServer(&mockStore{cacheInfoErr: assert.AnError})

	result, err := srv.handleCacheInfo(context.Background(), callToolReq("prdash_cache_info", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

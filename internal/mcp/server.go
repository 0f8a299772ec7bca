package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/prdash/internal/analytics"
	"github.com/joescharf/prdash/internal/dashboard"
	"github.com/joescharf/prdash/internal/models"
	"github.com/joescharf/prdash/internal/store"
)

// Server wraps the PR cache and exposes the analytics engines as MCP tools.
type Server struct {
	store store.Store
	now   func() time.Time
}

// NewServer creates the MCP server wrapper.
func NewServer(s store.Store) *Server {
	return &Server{store: s, now: time.Now}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("prdash", "1.0.0", server.WithToolCapabilities(true))

	srv.AddTool(s.listPRsTool())
	srv.AddTool(s.actionSummaryTool())
	srv.AddTool(s.riskyPRsTool())
	srv.AddTool(s.fourKeysTool())
	srv.AddTool(s.statisticsTool())
	srv.AddTool(s.cacheInfoTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

func (s *Server) loadPRs(ctx context.Context, repo string, state models.PRState) ([]*models.PullRequest, error) {
	filter := store.PRFilter{State: state}
	if repo != "" {
		owner, name, ok := strings.Cut(repo, "/")
		if !ok {
			return nil, fmt.Errorf("repo must be owner/name, got %q", repo)
		}
		filter.Owner, filter.Repo = owner, name
	}
	return s.store.ListPullRequests(ctx, filter)
}

func jsonResult(payload any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// prdash_list_prs
func (s *Server) listPRsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("prdash_list_prs",
		mcp.WithDescription("List cached pull requests with their action owner and risk assessment. Returns a JSON array."),
		mcp.WithString("repo", mcp.Description("Filter by repository as owner/name")),
		mcp.WithString("state", mcp.Description("Filter by state: OPEN, MERGED, or CLOSED")),
	)
	return tool, s.handleListPRs
}

func (s *Server) handleListPRs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	repo := request.GetString("repo", "")
	state := models.PRState(strings.ToUpper(request.GetString("state", "")))

	prs, err := s.loadPRs(ctx, repo, state)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list pull requests: %v", err)), nil
	}

	now := s.now()
	analytics.Enrich(prs, now)

	type prOut struct {
		Repo       string               `json:"repo"`
		Number     int                  `json:"number"`
		Title      string               `json:"title"`
		State      models.PRState       `json:"state"`
		Author     string               `json:"author"`
		AgeHours   float64              `json:"age_hours"`
		ActionInfo analytics.ActionInfo `json:"action_info"`
		Danger     *analytics.Danger    `json:"danger,omitempty"`
		URL        string               `json:"url"`
	}

	out := make([]prOut, len(prs))
	for i, pr := range prs {
		out[i] = prOut{
			Repo:       pr.Owner + "/" + pr.Repo,
			Number:     pr.Number,
			Title:      pr.Title,
			State:      pr.State,
			Author:     pr.Author,
			AgeHours:   pr.AgeHours,
			ActionInfo: analytics.DetermineActionOwner(pr),
			URL:        pr.URL,
		}
		if pr.State == models.PRStateOpen {
			danger := analytics.ComputeDangerScore(pr, now)
			out[i].Danger = &danger
		}
	}

	return jsonResult(out)
}

// prdash_action_summary
func (s *Server) actionSummaryTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("prdash_action_summary",
		mcp.WithDescription("Group open pull requests by the user who owes the next action. Returns a JSON object keyed by username."),
		mcp.WithString("repo", mcp.Description("Filter by repository as owner/name")),
	)
	return tool, s.handleActionSummary
}

func (s *Server) handleActionSummary(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prs, err := s.loadPRs(ctx, request.GetString("repo", ""), "")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list pull requests: %v", err)), nil
	}

	analytics.Enrich(prs, s.now())
	return jsonResult(analytics.BuildActionSummary(prs))
}

// prdash_risky_prs
func (s *Server) riskyPRsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("prdash_risky_prs",
		mcp.WithDescription("List open pull requests ordered by danger score, highest risk first. Returns a JSON array with score, level, and warnings."),
		mcp.WithString("repo", mcp.Description("Filter by repository as owner/name")),
		mcp.WithNumber("min_score", mcp.Description("Only include PRs at or above this score (default 15)")),
	)
	return tool, s.handleRiskyPRs
}

func (s *Server) handleRiskyPRs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	minScore := request.GetInt("min_score", 15)

	prs, err := s.loadPRs(ctx, request.GetString("repo", ""), models.PRStateOpen)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list pull requests: %v", err)), nil
	}

	now := s.now()
	analytics.Enrich(prs, now)

	type riskyOut struct {
		Repo   string           `json:"repo"`
		Number int              `json:"number"`
		Title  string           `json:"title"`
		Author string           `json:"author"`
		Danger analytics.Danger `json:"danger"`
		URL    string           `json:"url"`
	}

	out := []riskyOut{}
	for _, pr := range prs {
		danger := analytics.ComputeDangerScore(pr, now)
		if danger.Score < minScore {
			continue
		}
		out = append(out, riskyOut{
			Repo:   pr.Owner + "/" + pr.Repo,
			Number: pr.Number,
			Title:  pr.Title,
			Author: pr.Author,
			Danger: danger,
			URL:    pr.URL,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Danger.Score > out[j].Danger.Score })

	return jsonResult(out)
}

// prdash_fourkeys
func (s *Server) fourKeysTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("prdash_fourkeys",
		mcp.WithDescription("Compute DORA Four Keys metrics (deployment frequency, lead time, change failure rate, MTTR) from merged pull requests. Returns JSON."),
		mcp.WithString("repo", mcp.Description("Filter by repository as owner/name")),
	)
	return tool, s.handleFourKeys
}

func (s *Server) handleFourKeys(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prs, err := s.loadPRs(ctx, request.GetString("repo", ""), "")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list pull requests: %v", err)), nil
	}
	return jsonResult(analytics.ComputeFourKeys(prs))
}

// prdash_statistics
func (s *Server) statisticsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("prdash_statistics",
		mcp.WithDescription("Compute period statistics for the last 30 days against the 30 days before, with insights and recommendations. Returns JSON."),
		mcp.WithString("repo", mcp.Description("Filter by repository as owner/name")),
	)
	return tool, s.handleStatistics
}

func (s *Server) handleStatistics(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prs, err := s.loadPRs(ctx, request.GetString("repo", ""), "")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list pull requests: %v", err)), nil
	}

	snap := dashboard.BuildSnapshot(prs, nil, s.now())
	return jsonResult(struct {
		Statistics      analytics.Stats            `json:"statistics"`
		Insights        []analytics.Insight        `json:"insights"`
		Recommendations []analytics.Recommendation `json:"recommendations"`
	}{snap.Analytics.Statistics, snap.Analytics.Insights, snap.Analytics.Recommendations})
}

// prdash_cache_info
func (s *Server) cacheInfoTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("prdash_cache_info",
		mcp.WithDescription("Summarize the local cache: per-repository record counts and last fetch times. Returns JSON."),
	)
	return tool, s.handleCacheInfo
}

func (s *Server) handleCacheInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	info, err := s.store.CacheInfo(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read cache info: %v", err)), nil
	}
	return jsonResult(info)
}

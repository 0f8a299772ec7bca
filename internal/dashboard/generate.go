// Package dashboard assembles the analytics engines' output into the JSON
// documents a static dashboard (or the MCP tools) consume.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joescharf/prdash/internal/analytics"
	"github.com/joescharf/prdash/internal/models"
	"github.com/joescharf/prdash/internal/store"
)

// EnrichedPR is a PR record with its derived assessments attached.
type EnrichedPR struct {
	*models.PullRequest
	ActionInfo analytics.ActionInfo `json:"action_info"`
	Danger     *analytics.Danger    `json:"danger,omitempty"`
}

// Correlations relates PR shape to merge speed over the merged records.
type Correlations struct {
	SizeVsLeadTime    float64 `json:"sizeVsLeadTime"`
	ReviewsVsLeadTime float64 `json:"reviewsVsLeadTime"`
}

// AnalyticsDocument is the full analytics.json payload.
type AnalyticsDocument struct {
	GeneratedAt     string                            `json:"generated_at"`
	Statistics      analytics.Stats                   `json:"statistics"`
	Insights        []analytics.Insight               `json:"insights"`
	Recommendations []analytics.Recommendation        `json:"recommendations"`
	ActionSummary   map[string][]analytics.UserAction `json:"action_summary"`
	Correlations    Correlations                      `json:"correlations"`
	Issues          analytics.IssueStats              `json:"issues"`
}

// ConfigDocument is the config.json payload.
type ConfigDocument struct {
	Repositories []string `json:"repositories"`
	GeneratedAt  string   `json:"generated_at"`
}

// Snapshot is everything the generator derives from one cache read.
type Snapshot struct {
	PRs       []*EnrichedPR
	Analytics AnalyticsDocument
	FourKeys  analytics.FourKeysResult
}

// BuildSnapshot runs every engine over the given records. The current
// period covers the 30 days before now, the previous period the 30 days
// before that, mirroring the dashboard's month-over-month comparison.
func BuildSnapshot(prs []*models.PullRequest, issues []*models.Issue, now time.Time) *Snapshot {
	analytics.Enrich(prs, now)
	analytics.EnrichIssues(issues)

	enriched := make([]*EnrichedPR, len(prs))
	for i, pr := range prs {
		e := &EnrichedPR{PullRequest: pr, ActionInfo: analytics.DetermineActionOwner(pr)}
		if pr.State == models.PRStateOpen {
			danger := analytics.ComputeDangerScore(pr, now)
			e.Danger = &danger
		}
		enriched[i] = e
	}

	current, previous := splitPeriods(prs, now)
	stats := analytics.ComputeStatistics(current, previous)

	doc := AnalyticsDocument{
		GeneratedAt:     now.UTC().Format(time.RFC3339),
		Statistics:      stats,
		Insights:        analytics.GenerateInsights(stats, prs, now),
		Recommendations: analytics.GenerateRecommendations(stats),
		ActionSummary:   analytics.BuildActionSummary(prs),
		Correlations:    computeCorrelations(prs),
		Issues:          analytics.ComputeIssueStats(issues),
	}

	return &Snapshot{
		PRs:       enriched,
		Analytics: doc,
		FourKeys:  analytics.ComputeFourKeys(prs),
	}
}

// splitPeriods buckets PRs into the last 30 days and the 30 days before.
func splitPeriods(prs []*models.PullRequest, now time.Time) (current, previous []*models.PullRequest) {
	periodStart := now.AddDate(0, 0, -30)
	previousStart := now.AddDate(0, 0, -60)

	for _, pr := range prs {
		created, ok := models.ParseTime(pr.CreatedAt)
		if !ok {
			continue
		}
		switch {
		case !created.Before(periodStart):
			current = append(current, pr)
		case !created.Before(previousStart):
			previous = append(previous, pr)
		}
	}
	return current, previous
}

// computeCorrelations relates merged PR size and review count to lead time.
func computeCorrelations(prs []*models.PullRequest) Correlations {
	var sizes, reviews, leads []float64
	for _, pr := range prs {
		if pr.State != models.PRStateMerged {
			continue
		}
		created, okC := models.ParseTime(pr.CreatedAt)
		merged, okM := models.ParseTime(pr.MergedAt)
		if !okC || !okM {
			continue
		}
		sizes = append(sizes, float64(pr.TotalChanges()))
		reviews = append(reviews, float64(len(pr.ReviewDetails)))
		leads = append(leads, merged.Sub(created).Hours()/24)
	}
	return Correlations{
		SizeVsLeadTime:    analytics.PearsonCorrelation(sizes, leads),
		ReviewsVsLeadTime: analytics.PearsonCorrelation(reviews, leads),
	}
}

// Generator writes dashboard data files from the cache.
type Generator struct {
	store store.Store
}

// NewGenerator returns a Generator backed by the given store.
func NewGenerator(s store.Store) *Generator {
	return &Generator{store: s}
}

// Generate reads the whole cache, runs the engines, and writes the data
// files into dir: config.json, prs.json, issues.json, analytics.json,
// fourkeys.json, and cache_info.json.
func (g *Generator) Generate(ctx context.Context, dir string, repositories []string, now time.Time) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	prs, err := g.store.ListPullRequests(ctx, store.PRFilter{})
	if err != nil {
		return err
	}
	issues, err := g.store.ListIssues(ctx, store.IssueFilter{})
	if err != nil {
		return err
	}
	cacheInfo, err := g.store.CacheInfo(ctx)
	if err != nil {
		return err
	}

	snap := BuildSnapshot(prs, issues, now)

	files := map[string]any{
		"config.json": ConfigDocument{
			Repositories: repositories,
			GeneratedAt:  now.UTC().Format(time.RFC3339),
		},
		"prs.json":       snap.PRs,
		"issues.json":    issues,
		"analytics.json": snap.Analytics,
		"fourkeys.json":  snap.FourKeys,
		"cache_info.json": struct {
			*store.CacheInfo
			GeneratedAt string `json:"generated_at"`
		}{cacheInfo, now.UTC().Format(time.RFC3339)},
	}

	for name, payload := range files {
		if err := writeJSON(filepath.Join(dir, name), payload); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(path string, payload any) error {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

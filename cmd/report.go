package cmd

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/joescharf/prdash/internal/analytics"
	"github.com/joescharf/prdash/internal/dashboard"
	"github.com/joescharf/prdash/internal/models"
	"github.com/joescharf/prdash/internal/output"
	"github.com/joescharf/prdash/internal/store"
)

var (
	reportFormat   string
	reportRepo     string
	reportMinScore int
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate reports from cached PR data",
	Long:  "Generate action, risk, fourkeys, stats, and issue reports in table, JSON, CSV, or Markdown formats.",
}

var reportActionsCmd = &cobra.Command{
	Use:   "actions",
	Short: "Show who owes the next action on each open PR",
	RunE: func(cmd *cobra.Command, args []string) error {
		return reportActionsRun()
	},
}

var reportRiskCmd = &cobra.Command{
	Use:   "risk",
	Short: "Show risk scores for open PRs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return reportRiskRun()
	},
}

var reportFourKeysCmd = &cobra.Command{
	Use:   "fourkeys",
	Short: "Show DORA Four Keys metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		return reportFourKeysRun()
	},
}

var reportStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show period statistics, insights, and recommendations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return reportStatsRun()
	},
}

var reportIssuesCmd = &cobra.Command{
	Use:   "issues",
	Short: "Show issue cycle times and milestone progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		return reportIssuesRun()
	},
}

func init() {
	reportCmd.PersistentFlags().StringVar(&reportFormat, "format", "table", "Output format: table, json, csv, markdown")
	reportCmd.PersistentFlags().StringVar(&reportRepo, "repo", "", "Limit to one repository (owner/name)")
	reportRiskCmd.Flags().IntVar(&reportMinScore, "min-score", 15, "Minimum risk score to include")
	reportCmd.AddCommand(reportActionsCmd)
	reportCmd.AddCommand(reportRiskCmd)
	reportCmd.AddCommand(reportFourKeysCmd)
	reportCmd.AddCommand(reportStatsCmd)
	reportCmd.AddCommand(reportIssuesCmd)
	rootCmd.AddCommand(reportCmd)
}

func reportPRFilter(state models.PRState) (store.PRFilter, error) {
	filter := store.PRFilter{State: state}
	if reportRepo != "" {
		owner, name, ok := strings.Cut(reportRepo, "/")
		if !ok || owner == "" || name == "" {
			return filter, fmt.Errorf("invalid repository %q: expected owner/name", reportRepo)
		}
		filter.Owner = owner
		filter.Repo = name
	}
	return filter, nil
}

func renderJSON(v any) error {
	enc := json.NewEncoder(ui.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func reportActionsRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	filter, err := reportPRFilter(models.PRStateOpen)
	if err != nil {
		return err
	}
	prs, err := s.ListPullRequests(ctx, filter)
	if err != nil {
		return err
	}
	analytics.Enrich(prs, time.Now())

	type actionRow struct {
		*models.PullRequest
		Action analytics.ActionInfo `json:"action_info"`
	}
	rows := make([]actionRow, 0, len(prs))
	for _, pr := range prs {
		rows = append(rows, actionRow{PullRequest: pr, Action: analytics.DetermineActionOwner(pr)})
	}

	switch reportFormat {
	case "json":
		return renderJSON(rows)
	case "csv":
		w := csv.NewWriter(ui.Out)
		w.Write([]string{"Repo", "PR", "Title", "Author", "Action", "WaitingFor", "Reason"})
		for _, r := range rows {
			w.Write([]string{
				fmt.Sprintf("%s/%s", r.Owner, r.Repo),
				fmt.Sprintf("%d", r.Number),
				r.Title, r.Author,
				string(r.Action.Action),
				strings.Join(r.Action.WaitingFor, " "),
				r.Action.Reason,
			})
		}
		w.Flush()
		return w.Error()
	case "markdown":
		fmt.Fprintln(ui.Out, "# Open PR Actions")
		fmt.Fprintln(ui.Out)
		fmt.Fprintln(ui.Out, "| PR | Title | Action | Waiting For | Reason |")
		fmt.Fprintln(ui.Out, "|----|-------|--------|-------------|--------|")
		for _, r := range rows {
			fmt.Fprintf(ui.Out, "| %s/%s#%d | %s | %s | %s | %s |\n",
				r.Owner, r.Repo, r.Number, r.Title, r.Action.Action,
				strings.Join(r.Action.WaitingFor, ", "), r.Action.Reason)
		}
		return nil
	case "table":
		if len(rows) == 0 {
			ui.Info("No open pull requests in cache")
			return nil
		}
		table := ui.Table([]string{"PR", "Title", "Author", "Action", "Waiting For"})
		for _, r := range rows {
			table.Append([]string{
				fmt.Sprintf("%s/%s#%d", r.Owner, r.Repo, r.Number),
				truncate(r.Title, 50),
				r.Author,
				output.ActionColor(string(r.Action.Action)),
				strings.Join(r.Action.WaitingFor, ", "),
			})
		}
		table.Render()
		return nil
	default:
		return fmt.Errorf("unknown format: %s", reportFormat)
	}
}

func reportRiskRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()
	now := time.Now()

	filter, err := reportPRFilter(models.PRStateOpen)
	if err != nil {
		return err
	}
	prs, err := s.ListPullRequests(ctx, filter)
	if err != nil {
		return err
	}
	analytics.Enrich(prs, now)

	type riskRow struct {
		*models.PullRequest
		Danger analytics.Danger `json:"danger"`
	}
	rows := []riskRow{}
	for _, pr := range prs {
		danger := analytics.ComputeDangerScore(pr, now)
		if danger.Score < reportMinScore {
			continue
		}
		rows = append(rows, riskRow{PullRequest: pr, Danger: danger})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Danger.Score > rows[j].Danger.Score
	})

	switch reportFormat {
	case "json":
		return renderJSON(rows)
	case "csv":
		w := csv.NewWriter(ui.Out)
		w.Write([]string{"Repo", "PR", "Title", "Score", "Level", "Warnings"})
		for _, r := range rows {
			w.Write([]string{
				fmt.Sprintf("%s/%s", r.Owner, r.Repo),
				fmt.Sprintf("%d", r.Number),
				r.Title,
				fmt.Sprintf("%d", r.Danger.Score),
				string(r.Danger.Level),
				strings.Join(r.Danger.Warnings, "; "),
			})
		}
		w.Flush()
		return w.Error()
	case "markdown":
		fmt.Fprintln(ui.Out, "# PR Risk Report")
		fmt.Fprintln(ui.Out)
		fmt.Fprintln(ui.Out, "| PR | Title | Score | Level | Warnings |")
		fmt.Fprintln(ui.Out, "|----|-------|-------|-------|----------|")
		for _, r := range rows {
			fmt.Fprintf(ui.Out, "| %s/%s#%d | %s | %d | %s | %s |\n",
				r.Owner, r.Repo, r.Number, r.Title, r.Danger.Score, r.Danger.Level,
				strings.Join(r.Danger.Warnings, "; "))
		}
		return nil
	case "table":
		if len(rows) == 0 {
			ui.Success("No open PRs at or above risk score %d", reportMinScore)
			return nil
		}
		table := ui.Table([]string{"PR", "Title", "Score", "Level", "Warnings"})
		for _, r := range rows {
			table.Append([]string{
				fmt.Sprintf("%s/%s#%d", r.Owner, r.Repo, r.Number),
				truncate(r.Title, 40),
				fmt.Sprintf("%d", r.Danger.Score),
				output.DangerColor(string(r.Danger.Level)),
				strings.Join(r.Danger.Warnings, "; "),
			})
		}
		table.Render()
		return nil
	default:
		return fmt.Errorf("unknown format: %s", reportFormat)
	}
}

func reportFourKeysRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	filter, err := reportPRFilter("")
	if err != nil {
		return err
	}
	prs, err := s.ListPullRequests(ctx, filter)
	if err != nil {
		return err
	}
	result := analytics.ComputeFourKeys(prs)

	switch reportFormat {
	case "json":
		return renderJSON(result)
	case "markdown":
		fmt.Fprintln(ui.Out, "# Four Keys")
		fmt.Fprintln(ui.Out)
		fmt.Fprintln(ui.Out, "| Metric | Value | Tier |")
		fmt.Fprintln(ui.Out, "|--------|-------|------|")
		for _, m := range fourKeysRows(result.Metrics) {
			fmt.Fprintf(ui.Out, "| %s | %s | %s |\n", m.name, m.value, m.tier)
		}
		return nil
	case "table":
		table := ui.Table([]string{"Metric", "Value", "Tier"})
		for _, m := range fourKeysRows(result.Metrics) {
			table.Append([]string{m.name, m.value, output.TierColor(m.tier)})
		}
		table.Render()
		return nil
	default:
		return fmt.Errorf("unknown format: %s", reportFormat)
	}
}

type fourKeysRow struct {
	name  string
	value string
	tier  string
}

func fourKeysRows(m analytics.FourKeysMetrics) []fourKeysRow {
	return []fourKeysRow{
		{"Deployment Frequency", fmt.Sprintf("%.1f %s", m.DeploymentFrequency.Value, m.DeploymentFrequency.Unit), m.DeploymentFrequency.Classification.Level},
		{"Lead Time", fmt.Sprintf("%.1f %s", m.LeadTime.Value, m.LeadTime.Unit), m.LeadTime.Classification.Level},
		{"Change Failure Rate", fmt.Sprintf("%.1f%%", m.ChangeFailureRate.Value), m.ChangeFailureRate.Classification.Level},
		{"MTTR", fmt.Sprintf("%.1f %s", m.MTTR.Value, m.MTTR.Unit), m.MTTR.Classification.Level},
	}
}

func reportStatsRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	filter, err := reportPRFilter("")
	if err != nil {
		return err
	}
	prs, err := s.ListPullRequests(ctx, filter)
	if err != nil {
		return err
	}
	issueFilter := store.IssueFilter{Owner: filter.Owner, Repo: filter.Repo}
	issues, err := s.ListIssues(ctx, issueFilter)
	if err != nil {
		return err
	}

	snap := dashboard.BuildSnapshot(prs, issues, time.Now())
	doc := snap.Analytics

	switch reportFormat {
	case "json":
		return renderJSON(doc)
	case "markdown":
		fmt.Fprintln(ui.Out, "# Period Statistics")
		fmt.Fprintln(ui.Out)
		fmt.Fprintf(ui.Out, "- PRs last 30 days: %d (%+.0f%% vs previous)\n", doc.Statistics.TotalPRs, doc.Statistics.TotalChangePct)
		fmt.Fprintf(ui.Out, "- Median lead time: %.1f days\n", doc.Statistics.AvgLeadTime)
		fmt.Fprintf(ui.Out, "- Merge rate: %.0f%%\n", doc.Statistics.MergeRate)
		fmt.Fprintf(ui.Out, "- Active authors: %d\n", doc.Statistics.ActiveAuthors)
		fmt.Fprintf(ui.Out, "- Reviews per PR: %.1f\n", doc.Statistics.AvgReviewsPerPR)
		fmt.Fprintln(ui.Out)
		if len(doc.Insights) > 0 {
			fmt.Fprintln(ui.Out, "## Insights")
			for _, in := range doc.Insights {
				fmt.Fprintf(ui.Out, "- **%s**: %s\n", in.Title, in.Message)
			}
			fmt.Fprintln(ui.Out)
		}
		if len(doc.Recommendations) > 0 {
			fmt.Fprintln(ui.Out, "## Recommendations")
			for _, rec := range doc.Recommendations {
				fmt.Fprintf(ui.Out, "- **%s**\n", rec.Title)
				for _, a := range rec.Actions {
					fmt.Fprintf(ui.Out, "  - %s\n", a)
				}
			}
		}
		return nil
	case "table":
		table := ui.Table([]string{"Statistic", "Value"})
		table.Append([]string{"PRs (30 days)", fmt.Sprintf("%d", doc.Statistics.TotalPRs)})
		table.Append([]string{"Change vs previous", fmt.Sprintf("%+.0f%%", doc.Statistics.TotalChangePct)})
		table.Append([]string{"Open / Merged / Closed", fmt.Sprintf("%d / %d / %d", doc.Statistics.OpenPRs, doc.Statistics.MergedPRs, doc.Statistics.ClosedPRs)})
		table.Append([]string{"Median lead time (days)", fmt.Sprintf("%.1f", doc.Statistics.AvgLeadTime)})
		table.Append([]string{"Merge rate", fmt.Sprintf("%.0f%%", doc.Statistics.MergeRate)})
		table.Append([]string{"Active authors", fmt.Sprintf("%d", doc.Statistics.ActiveAuthors)})
		table.Append([]string{"Reviews per PR", fmt.Sprintf("%.1f", doc.Statistics.AvgReviewsPerPR)})
		table.Append([]string{"Avg time to first review (h)", fmt.Sprintf("%.1f", doc.Statistics.AvgReviewTimeHours)})
		table.Append([]string{"Avg PR size (lines)", fmt.Sprintf("%.0f", doc.Statistics.AvgPRSize)})
		table.Render()

		for _, in := range doc.Insights {
			switch in.Type {
			case analytics.InsightWarning:
				ui.Warning("%s: %s", in.Title, in.Message)
			case analytics.InsightSuccess:
				ui.Success("%s: %s", in.Title, in.Message)
			default:
				ui.Info("%s: %s", in.Title, in.Message)
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown format: %s", reportFormat)
	}
}

func reportIssuesRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	filter := store.IssueFilter{}
	if reportRepo != "" {
		owner, name, ok := strings.Cut(reportRepo, "/")
		if !ok || owner == "" || name == "" {
			return fmt.Errorf("invalid repository %q: expected owner/name", reportRepo)
		}
		filter.Owner = owner
		filter.Repo = name
	}
	issues, err := s.ListIssues(ctx, filter)
	if err != nil {
		return err
	}
	analytics.EnrichIssues(issues)
	stats := analytics.ComputeIssueStats(issues)

	switch reportFormat {
	case "json":
		return renderJSON(stats)
	case "markdown":
		fmt.Fprintln(ui.Out, "# Issues")
		fmt.Fprintln(ui.Out)
		fmt.Fprintf(ui.Out, "- Total: %d (%d open, %d closed)\n", stats.TotalIssues, stats.OpenIssues, stats.ClosedIssues)
		fmt.Fprintf(ui.Out, "- Avg cycle time: %.1f h (median %.1f h)\n", stats.AvgCycleTimeHours, stats.MedianCycleTimeHours)
		if len(stats.Milestones) > 0 {
			fmt.Fprintln(ui.Out)
			fmt.Fprintln(ui.Out, "| Milestone | Due | Progress |")
			fmt.Fprintln(ui.Out, "|-----------|-----|----------|")
			for _, m := range stats.Milestones {
				fmt.Fprintf(ui.Out, "| %s | %s | %d/%d (%.0f%%) |\n", m.Title, m.DueOn, m.Closed, m.Total, m.CompletePct)
			}
		}
		return nil
	case "table":
		if stats.TotalIssues == 0 {
			ui.Info("No issues in cache")
			return nil
		}
		table := ui.Table([]string{"Statistic", "Value"})
		table.Append([]string{"Total issues", fmt.Sprintf("%d", stats.TotalIssues)})
		table.Append([]string{"Open / Closed", fmt.Sprintf("%d / %d", stats.OpenIssues, stats.ClosedIssues)})
		table.Append([]string{"Avg cycle time (h)", fmt.Sprintf("%.1f", stats.AvgCycleTimeHours)})
		table.Append([]string{"Median cycle time (h)", fmt.Sprintf("%.1f", stats.MedianCycleTimeHours)})
		table.Render()

		if len(stats.Milestones) > 0 {
			mt := ui.Table([]string{"Milestone", "Due", "Closed", "Total", "Complete"})
			for _, m := range stats.Milestones {
				mt.Append([]string{m.Title, m.DueOn,
					fmt.Sprintf("%d", m.Closed), fmt.Sprintf("%d", m.Total),
					fmt.Sprintf("%.0f%%", m.CompletePct)})
			}
			mt.Render()
		}
		return nil
	default:
		return fmt.Errorf("unknown format: %s", reportFormat)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joescharf/prdash/internal/analytics"
	"github.com/joescharf/prdash/internal/models"
	"github.com/joescharf/prdash/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show cache and open-PR overview",
	Long: `Show a summary of the local cache and the open pull requests in it:
per-repository record counts, last fetch times, and how many open PRs
wait on authors versus reviewers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return statusRun(cmd)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func statusRun(cmd *cobra.Command) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	info, err := s.CacheInfo(ctx)
	if err != nil {
		return err
	}

	if info.TotalPRs == 0 && info.TotalIssues == 0 {
		ui.Info("Cache is empty. Use 'prdash fetch <owner/repo>' to get started.")
		return nil
	}

	table := ui.Table([]string{"Repository", "PRs", "Issues", "Last Fetched"})
	for _, repo := range info.Repos {
		lastFetched := repo.LastFetched
		if lastFetched == "" {
			lastFetched = "-"
		}
		table.Append([]string{
			repo.Owner + "/" + repo.Repo,
			fmt.Sprintf("%d", repo.PRCount),
			fmt.Sprintf("%d", repo.IssueCount),
			lastFetched,
		})
	}
	if err := table.Render(); err != nil {
		return err
	}
	fmt.Fprintln(ui.Out)

	prs, err := s.ListPullRequests(ctx, store.PRFilter{State: models.PRStateOpen})
	if err != nil {
		return err
	}
	if len(prs) == 0 {
		ui.Success("No open pull requests")
		return nil
	}

	analytics.Enrich(prs, time.Now())

	counts := map[analytics.ActionKind]int{}
	risky := 0
	for _, pr := range prs {
		info := analytics.DetermineActionOwner(pr)
		counts[info.Action]++
		if danger := analytics.ComputeDangerScore(pr, time.Now()); danger.Level != analytics.DangerSafe {
			risky++
		}
	}

	ui.Info("%d open PRs: %d waiting on authors, %d waiting on reviewers, %d ready to merge",
		len(prs), counts[analytics.ActionAuthor], counts[analytics.ActionReviewers], counts[analytics.ActionReadyToMerge])
	if risky > 0 {
		ui.Warning("%d open PRs need attention (see 'prdash report risk')", risky)
	}

	return nil
}

package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/prdash/internal/github"
	"github.com/joescharf/prdash/internal/store"
)

var (
	fetchLimit    int
	fetchNoIssues bool
)

// fetchClientFunc returns the GitHub client, replaceable in tests.
var fetchClientFunc = func() github.Client { return github.NewClient() }

var fetchCmd = &cobra.Command{
	Use:   "fetch [owner/repo...]",
	Short: "Fetch PRs and issues from GitHub into the local cache",
	Long: `Fetch pull requests and issues through the gh CLI and cache them in
the local SQLite database. Without arguments, fetches every repository
configured under 'repositories'.

Requires an authenticated gh (run 'gh auth login' first).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return fetchRun(cmd.Context(), args)
	},
}

func init() {
	fetchCmd.Flags().IntVar(&fetchLimit, "limit", 0, "Max records per repository (default from config)")
	fetchCmd.Flags().BoolVar(&fetchNoIssues, "no-issues", false, "Skip fetching issues")
	rootCmd.AddCommand(fetchCmd)
}

func fetchRun(ctx context.Context, args []string) error {
	repos := args
	if len(repos) == 0 {
		repos = repositories()
	}
	if len(repos) == 0 {
		return fmt.Errorf("no repositories given; pass owner/repo or set 'repositories' in config")
	}

	limit := fetchLimit
	if limit <= 0 {
		limit = viper.GetInt("fetch.limit")
	}
	includeIssues := !fetchNoIssues && viper.GetBool("fetch.include_issues")

	if dryRun {
		for _, repo := range repos {
			ui.DryRunMsg("Would fetch up to %d PRs from %s", limit, repo)
		}
		return nil
	}

	s, err := getStore()
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	client := fetchClientFunc()

	for _, repo := range repos {
		owner, name, ok := strings.Cut(repo, "/")
		if !ok {
			return fmt.Errorf("invalid repository %q: expected owner/name", repo)
		}

		if err := fetchRepo(ctx, s, client, owner, name, limit, includeIssues); err != nil {
			return fmt.Errorf("fetch %s: %w", repo, err)
		}
	}

	return nil
}

func fetchRepo(ctx context.Context, s store.Store, client github.Client, owner, name string, limit int, includeIssues bool) error {
	ui.VerboseLog("Fetching pull requests from %s/%s", owner, name)

	started := time.Now()
	prs, err := client.FetchPullRequests(ctx, owner, name, limit)
	if err != nil {
		return err
	}
	if err := s.SavePullRequests(ctx, prs); err != nil {
		return err
	}
	if err := s.RecordFetchRun(ctx, &store.FetchRun{
		Owner: owner, Repo: name, Kind: "prs", RecordCount: len(prs),
		StartedAt: started, FinishedAt: time.Now(),
	}); err != nil {
		return err
	}
	ui.Success("%s/%s: cached %d pull requests", owner, name, len(prs))

	if !includeIssues {
		return nil
	}

	started = time.Now()
	issues, err := client.FetchIssues(ctx, owner, name, limit)
	if err != nil {
		return err
	}
	if err := s.SaveIssues(ctx, issues); err != nil {
		return err
	}
	if err := s.RecordFetchRun(ctx, &store.FetchRun{
		Owner: owner, Repo: name, Kind: "issues", RecordCount: len(issues),
		StartedAt: started, FinishedAt: time.Now(),
	}); err != nil {
		return err
	}
	ui.Success("%s/%s: cached %d issues", owner, name, len(issues))

	return nil
}

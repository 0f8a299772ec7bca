package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joescharf/prdash/internal/models"
)

var importType string

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import PR or issue records from a JSON file",
	Long: `Import records from a JSON array file into the local cache. The file
format matches what 'prdash generate' writes and what the GitHub fetch
produces, so data can be moved between machines without API access.

Each record must carry owner, repo, and number.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return importRun(args[0])
	},
}

func init() {
	importCmd.Flags().StringVar(&importType, "type", "prs", "Record type: prs or issues")
	rootCmd.AddCommand(importCmd)
}

func importRun(file string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	switch importType {
	case "prs":
		var prs []*models.PullRequest
		if err := json.Unmarshal(data, &prs); err != nil {
			return fmt.Errorf("parse %s: %w", file, err)
		}
		if err := validatePRs(prs); err != nil {
			return err
		}
		if dryRun {
			ui.DryRunMsg("Would import %d pull requests from %s", len(prs), file)
			return nil
		}
		if err := s.SavePullRequests(ctx, prs); err != nil {
			return err
		}
		ui.Success("Imported %d pull requests from %s", len(prs), file)
		return nil

	case "issues":
		var issues []*models.Issue
		if err := json.Unmarshal(data, &issues); err != nil {
			return fmt.Errorf("parse %s: %w", file, err)
		}
		if err := validateIssues(issues); err != nil {
			return err
		}
		if dryRun {
			ui.DryRunMsg("Would import %d issues from %s", len(issues), file)
			return nil
		}
		if err := s.SaveIssues(ctx, issues); err != nil {
			return err
		}
		ui.Success("Imported %d issues from %s", len(issues), file)
		return nil

	default:
		return fmt.Errorf("unknown import type: %s (use: prs, issues)", importType)
	}
}

func validatePRs(prs []*models.PullRequest) error {
	for i, pr := range prs {
		if pr.Owner == "" || pr.Repo == "" || pr.Number == 0 {
			return fmt.Errorf("record %d: missing owner, repo, or number", i)
		}
	}
	return nil
}

func validateIssues(issues []*models.Issue) error {
	for i, issue := range issues {
		if issue.Owner == "" || issue.Repo == "" || issue.Number == 0 {
			return fmt.Errorf("record %d: missing owner, repo, or number", i)
		}
	}
	return nil
}

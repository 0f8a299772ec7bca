package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/prdash/internal/dashboard"
)

var generateOut string

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate static dashboard data files",
	Long: `Generate the JSON data files the dashboard serves: enriched PRs with
action owners and risk scores, period statistics, Four Keys metrics,
issue stats, and cache metadata. Files are written to the data
directory (config key 'data_dir') unless --out is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return generateRun()
	},
}

func init() {
	generateCmd.Flags().StringVar(&generateOut, "out", "", "Output directory (default: data_dir from config)")
	rootCmd.AddCommand(generateCmd)
}

func generateRun() error {
	dir := generateOut
	if dir == "" {
		dir = viper.GetString("data_dir")
	}

	if dryRun {
		ui.DryRunMsg("Would generate dashboard data in %s", dir)
		return nil
	}

	s, err := getStore()
	if err != nil {
		return err
	}

	gen := dashboard.NewGenerator(s)
	if err := gen.Generate(context.Background(), dir, repositories(), time.Now()); err != nil {
		return err
	}

	ui.Success("Dashboard data written to %s", dir)
	return nil
}

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/joescharf/prdash/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server for Claude Code integration",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This allows Claude Code to query cached PR data natively. Configure in
Claude Code with:

  {
    "mcpServers": {
      "prdash": { "command": "prdash", "args": ["mcp"] }
    }
  }

Available tools: prdash_list_prs, prdash_action_summary, prdash_risky_prs,
prdash_fourkeys, prdash_statistics, prdash_cache_info`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := getStore()
		if err != nil {
			return err
		}
		return mcp.NewServer(s).ServeStdio(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/joescharf/crev/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server for coding agent integration",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets a coding agent request reviews and rewrites through crev,
using the session stored by 'crev login'. Configure it with:

  {
    "mcpServers": {
      "crev": { "command": "crev", "args": ["mcp"] }
    }
  }

Available tools: crev_review, crev_rewrite, crev_whoami, crev_health`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return mcpRun(cmd)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func mcpRun(cmd *cobra.Command) error {
	g, err := newGateway()
	if err != nil {
		return err
	}
	o, err := newOrchestrator()
	if err != nil {
		return err
	}
	srv := mcp.NewServer(o, g, newBackendClient(), buildVersion)
	return srv.ServeStdio(commandContext(cmd))
}

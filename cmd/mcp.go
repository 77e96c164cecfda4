package cmd

import (
	"github.com/covtrail/covtrail/internal/mcp"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command.
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the covtrail MCP server",
	Long:  `Launch an MCP server over stdio that lets agents fetch coverage history through standard tools.`,
	// Logs go to stderr; stdout carries the protocol.
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		return mcp.StartMCPServer(rootCtx, cfg, runManager, logger, version)
	},
}

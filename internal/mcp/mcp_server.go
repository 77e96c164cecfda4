// Package mcp provides the Model Context Protocol (MCP) server implementation.
package mcp

import (
	"context"

	"github.com/covtrail/covtrail/internal/contract"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// NewMCPServer initializes and configures the covtrail MCP server without starting it.
// This is exposed for unit testing.
func NewMCPServer(baseCfg *contract.Config, mgr contract.RunManager, logger *zap.Logger, version string) *server.MCPServer {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := server.NewMCPServer(
		"Covtrail Coverage Server",
		version,
		server.WithLogging(),
	)

	h := &toolHandler{
		baseCfg: baseCfg,
		mgr:     mgr,
		logger:  logger,
	}

	// --- 1. Tool: fetch_coverage ---
	s.AddTool(mcp.NewTool("fetch_coverage",
		mcp.WithDescription("Fetch the full build coverage history of a repository from Coveralls, newest first."),
		mcp.WithString("repo", mcp.Description("Repository path as <host>/<owner>/<name>, e.g. github/chaoss/grimoirelab-perceval."), mcp.Required()),
		mcp.WithString("tag", mcp.Description("Label attached to every item. Defaults to the repository path.")),
		mcp.WithBoolean("ssl_verify", mcp.Description("Verify the TLS certificate of Coveralls. Defaults to true.")),
		mcp.WithNumber("limit", mcp.Description("Return only the first N builds.")),
	), h.handleFetchCoverage)

	// --- 2. Tool: list_backends ---
	s.AddTool(mcp.NewTool("list_backends",
		mcp.WithDescription("List the registered backends with their categories and capabilities."),
	), h.handleListBackends)

	return s
}

// StartMCPServer starts the covtrail MCP server on stdio.
func StartMCPServer(_ context.Context, baseCfg *contract.Config, mgr contract.RunManager, logger *zap.Logger, version string) error {
	s := NewMCPServer(baseCfg, mgr, logger, version)
	return server.ServeStdio(s)
}

package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/covtrail/covtrail/core"
	"github.com/covtrail/covtrail/internal/contract"
	"github.com/covtrail/covtrail/schema"
	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"
)

// toolHandler holds common dependencies for MCP tool handlers.
type toolHandler struct {
	baseCfg *contract.Config
	mgr     contract.RunManager
	logger  *zap.Logger
}

func (h *toolHandler) handleFetchCoverage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg := h.baseCfg.Clone()
	cfg.Repo = request.GetString("repo", "")
	cfg.Tag = request.GetString("tag", "")
	cfg.SSLVerify = request.GetBool("ssl_verify", cfg.SSLVerify)
	limit := request.GetInt("limit", 0)

	if err := contract.ValidateRepository(cfg.Repo); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid fetch parameters: %v", err)), nil
	}
	if limit < 0 {
		return mcp.NewToolResultError("invalid fetch parameters: limit must not be negative"), nil
	}

	// Kafka publishing is a CLI concern; the tool only reads
	items, err := core.TrackedFetch(ctx, cfg, h.mgr, nil, h.logger, nil)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("fetch failed: %v", contract.WrapError(err))), nil
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	if items == nil {
		items = []schema.Item{}
	}

	jsonData, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding failed: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonData)), nil
}

func (h *toolHandler) handleListBackends(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jsonData, _ := json.MarshalIndent(core.Backends(), "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}

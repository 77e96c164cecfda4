package mcp_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/covtrail/covtrail/internal/contract"
	_ "github.com/covtrail/covtrail/internal/coveralls" // registers the coveralls backend
	mcp_internal "github.com/covtrail/covtrail/internal/mcp"
	"github.com/covtrail/covtrail/internal/runstore"
	"github.com/covtrail/covtrail/schema"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// newOrigin serves the three-page coveralls fixture.
func newOrigin(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/github/user/repo.json") {
			http.NotFound(w, r)
			return
		}
		data, err := os.ReadFile("../coveralls/testdata/builds_page_" + r.URL.Query().Get("page") + ".json")
		if err != nil {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(data)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func baseConfig(baseURL string) *contract.Config {
	return &contract.Config{
		BackendName: contract.DefaultBackendName,
		Category:    schema.TestCoverageCategory,
		SSLVerify:   true,
		BaseURL:     baseURL,
		Output:      schema.JSONOut,
	}
}

func callTool(t *testing.T, cfg *contract.Config, mgr contract.RunManager, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	s := mcp_internal.NewMCPServer(cfg, mgr, nil, "test")
	tool := s.GetTool(name)
	require.NotNil(t, tool, "Tool %s should exist", name)

	req := mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
	res, err := tool.Handler(context.Background(), req)
	require.NoError(t, err, "The MCP handler should not return a raw error for tool logic failures")
	require.NotNil(t, res)
	return res
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestFetchCoverageTool(t *testing.T) {
	srv := newOrigin(t)
	cfg := baseConfig(srv.URL + "/")

	res := callTool(t, cfg, nil, "fetch_coverage", map[string]any{
		"repo": "github/user/repo",
		"tag":  "nightly",
	})
	require.False(t, res.IsError, resultText(t, res))

	var items []schema.Item
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &items))
	require.Len(t, items, 15)
	assert.Equal(t, "nightly", items[0].Tag)
	assert.Equal(t, "github/user/repo", items[0].Origin)
	assert.True(t, strings.HasPrefix(items[0].Data.CommitSHA, "47891c0d"))

	// The base config is never mutated by a call
	assert.Empty(t, cfg.Repo)
}

func TestFetchCoverageTool_Limit(t *testing.T) {
	srv := newOrigin(t)
	res := callTool(t, baseConfig(srv.URL+"/"), nil, "fetch_coverage", map[string]any{
		"repo":  "github/user/repo",
		"limit": 4.0,
	})
	require.False(t, res.IsError)

	var items []schema.Item
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &items))
	assert.Len(t, items, 4)
}

func TestFetchCoverageTool_TracksRun(t *testing.T) {
	srv := newOrigin(t)

	store := &runstore.MockRunStore{}
	store.On("BeginRun", mock.Anything, "coveralls", "github/user/repo", schema.TestCoverageCategory, mock.Anything).Return(int64(11), nil)
	store.On("RecordItems", int64(11), mock.Anything).Return(nil)
	store.On("EndRun", int64(11), mock.Anything, 15, nil).Return(nil)
	mgr := &runstore.MockRunManager{}
	mgr.On("GetRunStore").Return(store)

	res := callTool(t, baseConfig(srv.URL+"/"), mgr, "fetch_coverage", map[string]any{"repo": "github/user/repo"})
	require.False(t, res.IsError)
	store.AssertExpectations(t)
}

func TestFetchCoverageTool_Errors(t *testing.T) {
	srv := newOrigin(t)
	cfg := baseConfig(srv.URL + "/")

	t.Run("missing repo", func(t *testing.T) {
		res := callTool(t, cfg, nil, "fetch_coverage", map[string]any{"repo": ""})
		assert.True(t, res.IsError, "The response should indicate an error state")
		assert.Contains(t, resultText(t, res), "repository is required")
	})

	t.Run("negative limit", func(t *testing.T) {
		res := callTool(t, cfg, nil, "fetch_coverage", map[string]any{"repo": "github/user/repo", "limit": -1.0})
		assert.True(t, res.IsError)
		assert.Contains(t, resultText(t, res), "limit must not be negative")
	})

	t.Run("unknown repository", func(t *testing.T) {
		res := callTool(t, cfg, nil, "fetch_coverage", map[string]any{"repo": "github/user/missing"})
		assert.True(t, res.IsError)
		assert.Contains(t, resultText(t, res), "Repository not found on Coveralls")
	})
}

func TestListBackendsTool(t *testing.T) {
	res := callTool(t, baseConfig(contract.DefaultBaseURL), nil, "list_backends", nil)
	require.False(t, res.IsError)

	var infos []schema.BackendInfo
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &infos))
	require.NotEmpty(t, infos)

	var found bool
	for _, info := range infos {
		if info.Name == "coveralls" {
			found = true
			assert.Equal(t, []schema.Category{schema.TestCoverageCategory}, info.Categories)
			assert.False(t, info.HasArchiving)
			assert.False(t, info.HasResuming)
		}
	}
	assert.True(t, found)
}

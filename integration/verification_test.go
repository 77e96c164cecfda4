//go:build basic

// Package integration contains integration tests for covtrail.
// These tests are excluded from normal test runs due to build tags.
// To run these tests: go test -tags basic ./integration
package integration

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/covtrail/covtrail/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCoverallsFetchVerification fetches the fixture history and checks the emitted items.
func TestCoverallsFetchVerification(t *testing.T) {
	srv := newFixtureOrigin(t)

	out, code := runCovtrail(t, nil, "coveralls", "github/user/repo", "--base-url", srv.URL+"/", "--output", "json")
	require.Equal(t, 0, code)

	var items []schema.Item
	require.NoError(t, json.Unmarshal(out, &items))
	require.Len(t, items, 15)

	seen := make(map[string]bool, len(items))
	for i, item := range items {
		assert.Equal(t, "github/user/repo", item.Origin)
		assert.Equal(t, "github/user/repo", item.Tag)
		assert.Equal(t, schema.TestCoverageCategory, item.Category)
		assert.Len(t, item.UUID, 40)
		assert.False(t, seen[item.UUID], "duplicate uuid at %d", i)
		seen[item.UUID] = true
	}
	assert.Equal(t, "47891c0d6dd2512169bb9c8d1c0eca5ddda5ee9b", items[0].Data.CommitSHA)
}

func TestCoverallsFetchCSV(t *testing.T) {
	srv := newFixtureOrigin(t)

	out, code := runCovtrail(t, nil, "coveralls", "github/user/repo", "--base-url", srv.URL+"/", "--output", "csv", "--tag", "nightly")
	require.Equal(t, 0, code)

	records, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 16)
	assert.Equal(t, "uuid", records[0][0])
	assert.Equal(t, "nightly", records[1][2])
}

func TestCoverallsRunLedgerSQLite(t *testing.T) {
	srv := newFixtureOrigin(t)
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	env := []string{"COVTRAIL_RUN_BACKEND=sqlite", "COVTRAIL_RUN_DB_CONNECT=" + dbPath}

	_, code := runCovtrail(t, env, "coveralls", "github/user/repo", "--base-url", srv.URL+"/")
	require.Equal(t, 0, code)

	out, code := runCovtrail(t, env, "runs", "status")
	require.Equal(t, 0, code)
	assert.Contains(t, string(out), "Total Runs:")
	assert.Contains(t, string(out), "Total Items:")

	exportBase := filepath.Join(t.TempDir(), "ledger")
	_, code = runCovtrail(t, env, "runs", "export", "--output-file", exportBase)
	require.Equal(t, 0, code)
	_, err := os.Stat(exportBase + ".fetch_runs.parquet")
	assert.NoError(t, err)
	_, err = os.Stat(exportBase + ".fetch_items.parquet")
	assert.NoError(t, err)

	_, code = runCovtrail(t, env, "runs", "clear")
	require.Equal(t, 0, code)
	_, err = os.Stat(dbPath)
	assert.True(t, os.IsNotExist(err))
}

func TestCoverallsExitCodes(t *testing.T) {
	srv := newFixtureOrigin(t)

	t.Run("invalid repository", func(t *testing.T) {
		out, code := runCovtrail(t, nil, "coveralls", "/leading/slash", "--base-url", srv.URL+"/")
		assert.Equal(t, 2, code)
		assert.Empty(t, out)
	})

	t.Run("unknown repository", func(t *testing.T) {
		out, code := runCovtrail(t, nil, "coveralls", "github/user/missing", "--base-url", srv.URL+"/")
		assert.Equal(t, 1, code)
		assert.Empty(t, out)
	})

	t.Run("invalid output", func(t *testing.T) {
		_, code := runCovtrail(t, nil, "coveralls", "github/user/repo", "--output", "xml")
		assert.Equal(t, 2, code)
	})
}

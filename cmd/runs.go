package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/covtrail/covtrail/internal/contract"
	"github.com/covtrail/covtrail/internal/runstore"
	"github.com/covtrail/covtrail/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// runsBackend reads the run ledger settings without the fetch validation.
func runsBackend() (schema.DatabaseBackend, string, error) {
	if err := loadConfigFile(); err != nil {
		return "", "", err
	}

	backend := schema.DatabaseBackend(strings.ToLower(viper.GetString("run-backend")))
	if backend == "" {
		backend = schema.NoneBackend
	}
	if _, ok := schema.ValidDatabaseBackends[backend]; !ok {
		return "", "", contract.NewConfigurationError("invalid run backend '%s'. must be sqlite, mysql, postgresql, none", backend)
	}
	connStr := viper.GetString("run-db-connect")
	if err := contract.ValidateDatabaseConnectionString(backend, connStr); err != nil {
		return "", "", err
	}
	return backend, connStr, nil
}

// runsSetup opens the run ledger for the status and export commands.
func runsSetup(_ *cobra.Command, _ []string) error {
	backend, connStr, err := runsBackend()
	if err != nil {
		return err
	}
	cfg.RunBackend = backend
	cfg.RunDBConnect = connStr
	cfg.OutputFile = viper.GetString("output-file")

	if backend == schema.NoneBackend {
		return nil
	}
	if err := runstore.InitStores(backend, connStr); err != nil {
		return fmt.Errorf("failed to initialize run tracking: %w", err)
	}
	return nil
}

// runsMigrateSetup leaves the ledger closed so migrations can run on a fresh database.
func runsMigrateSetup(_ *cobra.Command, _ []string) error {
	backend, connStr, err := runsBackend()
	if err != nil {
		return err
	}
	if backend == schema.SQLiteBackend && connStr == "" {
		connStr = contract.GetRunDBFilePath()
	}
	cfg.RunBackend = backend
	cfg.RunDBConnect = connStr
	return nil
}

// runsCmd groups the run ledger commands.
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Manage the ledger of fetch runs",
	Long: `Manage the history of fetch runs recorded by covtrail.

When --run-backend is set, every fetch is recorded with:
- Run metadata (backend, repository, category, timing, parameters)
- The outcome (succeeded or failed, with the error message)
- One row per emitted item (uuid, commit, coverage)

Supported backends: SQLite, MySQL, PostgreSQL, or None (disabled, default)

Subcommands:
  status  - Show run ledger statistics
  export  - Export runs and items to Parquet
  clear   - Remove all recorded runs
  migrate - Run database schema migrations

Examples:
  # Check the ledger
  covtrail runs status --run-backend sqlite

  # Export for analysis in pandas/DuckDB
  covtrail runs export --run-backend sqlite --output-file runs`,
}

// runsStatusCmd shows ledger statistics.
var runsStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display run ledger statistics and connection details",
	Long: `Show the state of the run ledger.

Displays:
- Backend type and connection status
- Total and failed runs
- Last and oldest run timestamps
- Total items recorded
- Table sizes`,
	PreRunE: runsSetup,
	RunE: func(_ *cobra.Command, _ []string) error {
		store := runstore.Manager.GetRunStore()
		if store == nil {
			return contract.NewConfigurationError("run tracking is disabled; set --run-backend")
		}
		status, err := store.GetStatus()
		if err != nil {
			return fmt.Errorf("failed to get run status: %w", err)
		}
		runstore.PrintRunStatus(os.Stdout, status)
		return nil
	},
}

// runsExportCmd exports the ledger to Parquet files.
var runsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export recorded runs and items to Parquet",
	Long: `Export the run ledger to two Parquet files next to --output-file:

- <file>.fetch_runs.parquet  - one row per fetch run
- <file>.fetch_items.parquet - one row per emitted item

Examples:
  covtrail runs export --run-backend sqlite --output-file ledger
  duckdb -c "SELECT origin, count(*) FROM read_parquet('ledger.fetch_runs.parquet') GROUP BY 1"`,
	PreRunE: runsSetup,
	RunE: func(_ *cobra.Command, _ []string) error {
		return runstore.ExecuteRunExport(os.Stdout, runstore.Manager, cfg.OutputFile)
	},
}

// runsClearCmd removes the ledger.
var runsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all recorded fetch runs",
	Long: `Delete every recorded run and item.

For SQLite the database file is removed. For MySQL and PostgreSQL the
ledger tables are dropped.

WARNING: This action cannot be undone. Consider exporting data first.`,
	PreRunE: runsMigrateSetup,
	RunE: func(_ *cobra.Command, _ []string) error {
		dbFilePath := ""
		if cfg.RunBackend == schema.SQLiteBackend {
			dbFilePath = cfg.RunDBConnect
		}
		if err := runstore.ClearRuns(cfg.RunBackend, dbFilePath, cfg.RunDBConnect); err != nil {
			return err
		}
		fmt.Println("Run ledger cleared successfully.")
		return nil
	},
}

// runsMigrateCmd runs schema migrations for the ledger.
var runsMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database schema migrations (upgrades/downgrades)",
	Long: `Manage schema versions of the run ledger.

By default, migrates to the latest version. Use --target-version for specific versions.

Examples:
  # Migrate to latest version (default)
  covtrail runs migrate --run-backend sqlite

  # Rollback to the initial state
  covtrail runs migrate --run-backend sqlite --target-version 0`,
	PreRunE: runsMigrateSetup,
	RunE: func(_ *cobra.Command, _ []string) error {
		return runstore.MigrateRuns(os.Stdout, cfg.RunBackend, cfg.RunDBConnect, viper.GetInt("target-version"))
	},
}

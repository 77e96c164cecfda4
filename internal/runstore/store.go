package runstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/covtrail/covtrail/internal/contract"
	"github.com/covtrail/covtrail/schema"
	"github.com/go-sql-driver/mysql"   // MySQL driver
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	_ "modernc.org/sqlite"             // SQLite driver
)

// Table names for run tracking.
const (
	fetchRunsTable  = "covtrail_fetch_runs"
	fetchItemsTable = "covtrail_fetch_items"
	migrationsTable = "covtrail_schema_migrations"
)

// RunStoreImpl implements the RunStore interface.
type RunStoreImpl struct {
	db         *sql.DB
	backend    schema.DatabaseBackend
	driverName string
}

var _ contract.RunStore = &RunStoreImpl{} // Compile-time check

// NewRunStore creates a new RunStore with the specified backend.
func NewRunStore(backend schema.DatabaseBackend, connStr string) (contract.RunStore, error) {
	driverName, dsn, err := openParams(backend, connStr)
	if err != nil {
		return nil, err
	}
	if backend == schema.NoneBackend {
		// Return a no-op store for disabled tracking
		return &RunStoreImpl{backend: backend}, nil
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w. %s", backend, err, connectionHint(backend))
	}
	if backend == schema.SQLiteBackend {
		// Limit SQLite to a single open connection to avoid "database is locked" errors
		db.SetMaxOpenConns(1)
	}

	// Ping to verify connection
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w. %s", backend, err, connectionHint(backend))
	}

	if err := createRunTables(db, backend); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create run tables: %w", err)
	}

	return &RunStoreImpl{
		db:         db,
		backend:    backend,
		driverName: driverName,
	}, nil
}

// openParams resolves the database/sql driver name and DSN for a backend.
func openParams(backend schema.DatabaseBackend, connStr string) (driverName, dsn string, err error) {
	switch backend {
	case schema.SQLiteBackend:
		if connStr == "" {
			connStr = contract.GetRunDBFilePath()
		}
		return "sqlite", connStr, nil

	case schema.MySQLBackend:
		cfg, err := mysql.ParseDSN(connStr)
		if err != nil {
			return "", "", contract.NewConfigurationError("invalid MySQL connection string: %v", err)
		}
		// DATETIME columns are scanned into time.Time
		cfg.ParseTime = true
		return "mysql", cfg.FormatDSN(), nil

	case schema.PostgreSQLBackend:
		return "pgx", connStr, nil

	case schema.NoneBackend:
		return "", "", nil

	default:
		return "", "", contract.NewConfigurationError("unsupported run backend: %s. Must be sqlite, mysql, postgresql, or none", backend)
	}
}

func connectionHint(backend schema.DatabaseBackend) string {
	switch backend {
	case schema.MySQLBackend:
		return "Check that MySQL is running and the connection string is correct: user:password@tcp(host:port)/dbname"
	case schema.PostgreSQLBackend:
		return "Check that PostgreSQL is running and the connection string is correct: host=... dbname=... user=..."
	case schema.SQLiteBackend:
		return "Check that the directory is writable."
	default:
		return "Verify the database server is running and accessible."
	}
}

// quoteTableName quotes an identifier for the backend's SQL dialect.
func quoteTableName(name string, backend schema.DatabaseBackend) string {
	if backend == schema.MySQLBackend {
		return "`" + name + "`"
	}
	return `"` + name + `"`
}

// bindVar returns the n-th (1-based) placeholder for the backend.
func bindVar(backend schema.DatabaseBackend, n int) string {
	if backend == schema.PostgreSQLBackend {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// formatTime converts t to the value stored in a time column.
// SQLite keeps times as RFC3339 text; MySQL and PostgreSQL use native types.
func formatTime(t time.Time, backend schema.DatabaseBackend) any {
	if backend == schema.SQLiteBackend {
		return t.UTC().Format(time.RFC3339Nano)
	}
	return t.UTC()
}

// createRunTables creates the run tracking tables.
func createRunTables(db *sql.DB, backend schema.DatabaseBackend) error {
	tables := []struct {
		name  string
		query string
	}{
		{fetchRunsTable, getCreateFetchRunsQuery(backend)},
		{fetchItemsTable, getCreateFetchItemsQuery(backend)},
	}

	for _, table := range tables {
		if _, err := db.Exec(table.query); err != nil {
			return fmt.Errorf("failed to create table %s: %w", table.name, err)
		}
	}
	return nil
}

// getCreateFetchRunsQuery returns the CREATE TABLE query for covtrail_fetch_runs.
func getCreateFetchRunsQuery(backend schema.DatabaseBackend) string {
	quotedTableName := quoteTableName(fetchRunsTable, backend)

	switch backend {
	case schema.MySQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id BIGINT AUTO_INCREMENT PRIMARY KEY,
				backend_name VARCHAR(64) NOT NULL,
				origin VARCHAR(512) NOT NULL,
				category VARCHAR(64) NOT NULL,
				start_time DATETIME(6) NOT NULL,
				end_time DATETIME(6),
				run_duration_ms BIGINT,
				total_items BIGINT,
				status VARCHAR(16) NOT NULL,
				error_message TEXT,
				config_params TEXT
			)
		`, quotedTableName)

	case schema.PostgreSQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id BIGSERIAL PRIMARY KEY,
				backend_name TEXT NOT NULL,
				origin TEXT NOT NULL,
				category TEXT NOT NULL,
				start_time TIMESTAMPTZ NOT NULL,
				end_time TIMESTAMPTZ,
				run_duration_ms BIGINT,
				total_items BIGINT,
				status TEXT NOT NULL,
				error_message TEXT,
				config_params TEXT
			)
		`, quotedTableName)

	default: // SQLite
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id INTEGER PRIMARY KEY AUTOINCREMENT,
				backend_name TEXT NOT NULL,
				origin TEXT NOT NULL,
				category TEXT NOT NULL,
				start_time TEXT NOT NULL,
				end_time TEXT,
				run_duration_ms INTEGER,
				total_items INTEGER,
				status TEXT NOT NULL,
				error_message TEXT,
				config_params TEXT
			)
		`, quotedTableName)
	}
}

// getCreateFetchItemsQuery returns the CREATE TABLE query for covtrail_fetch_items.
func getCreateFetchItemsQuery(backend schema.DatabaseBackend) string {
	quotedTableName := quoteTableName(fetchItemsTable, backend)

	switch backend {
	case schema.MySQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id BIGINT NOT NULL,
				seq INT NOT NULL,
				item_uuid CHAR(40) NOT NULL,
				commit_sha VARCHAR(64) NOT NULL,
				retrieved_on DATETIME(6) NOT NULL,
				covered_percent DOUBLE,
				PRIMARY KEY (run_id, seq)
			)
		`, quotedTableName)

	case schema.PostgreSQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id BIGINT NOT NULL,
				seq INT NOT NULL,
				item_uuid TEXT NOT NULL,
				commit_sha TEXT NOT NULL,
				retrieved_on TIMESTAMPTZ NOT NULL,
				covered_percent DOUBLE PRECISION,
				PRIMARY KEY (run_id, seq)
			)
		`, quotedTableName)

	default: // SQLite
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id INTEGER NOT NULL,
				seq INTEGER NOT NULL,
				item_uuid TEXT NOT NULL,
				commit_sha TEXT NOT NULL,
				retrieved_on TEXT NOT NULL,
				covered_percent REAL,
				PRIMARY KEY (run_id, seq)
			)
		`, quotedTableName)
	}
}

// BeginRun creates a new fetch run in the running state and returns its ID.
func (rs *RunStoreImpl) BeginRun(startTime time.Time, backendName, origin string, category schema.Category, configParams map[string]any) (int64, error) {
	// Skip for NoneBackend
	if rs.backend == schema.NoneBackend || rs.db == nil {
		return 0, nil
	}

	configJSON, err := json.Marshal(configParams)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal config params: %w", err)
	}

	quotedTableName := quoteTableName(fetchRunsTable, rs.backend)
	args := []any{backendName, origin, string(category), formatTime(startTime, rs.backend), string(schema.RunRunning), string(configJSON)}

	var runID int64
	switch rs.backend {
	case schema.PostgreSQLBackend:
		query := fmt.Sprintf(`INSERT INTO %s (backend_name, origin, category, start_time, status, config_params)
			VALUES ($1, $2, $3, $4, $5, $6) RETURNING run_id`, quotedTableName)
		err = rs.db.QueryRow(query, args...).Scan(&runID)
	default: // SQLite and MySQL
		query := fmt.Sprintf(`INSERT INTO %s (backend_name, origin, category, start_time, status, config_params)
			VALUES (?, ?, ?, ?, ?, ?)`, quotedTableName)
		var result sql.Result
		result, err = rs.db.Exec(query, args...)
		if err == nil {
			runID, err = result.LastInsertId()
		}
	}

	if err != nil {
		return 0, fmt.Errorf("failed to insert fetch run: %w", err)
	}
	return runID, nil
}

// RecordItems stores the items of a run in emission order within one transaction.
func (rs *RunStoreImpl) RecordItems(runID int64, items []schema.Item) error {
	// Skip for NoneBackend
	if rs.backend == schema.NoneBackend || rs.db == nil || len(items) == 0 {
		return nil
	}

	tx, err := rs.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := fmt.Sprintf(`INSERT INTO %s (run_id, seq, item_uuid, commit_sha, retrieved_on, covered_percent) VALUES (%s, %s, %s, %s, %s, %s)`,
		quoteTableName(fetchItemsTable, rs.backend),
		bindVar(rs.backend, 1), bindVar(rs.backend, 2), bindVar(rs.backend, 3),
		bindVar(rs.backend, 4), bindVar(rs.backend, 5), bindVar(rs.backend, 6),
	)
	stmt, err := tx.Prepare(query)
	if err != nil {
		return fmt.Errorf("failed to prepare item insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for seq, item := range items {
		var covered sql.NullFloat64
		if pct, ok := item.Data.Float(schema.CoveredPercentField); ok {
			covered = sql.NullFloat64{Float64: pct, Valid: true}
		}
		if _, err := stmt.Exec(runID, seq, item.UUID, item.Data.CommitSHA, formatTime(item.Data.RetrievedOn, rs.backend), covered); err != nil {
			return fmt.Errorf("failed to insert item %d of run %d: %w", seq, runID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit items of run %d: %w", runID, err)
	}
	return nil
}

// EndRun marks the run as succeeded or failed and records its duration.
func (rs *RunStoreImpl) EndRun(runID int64, endTime time.Time, totalItems int, fetchErr error) error {
	// Skip for NoneBackend
	if rs.backend == schema.NoneBackend || rs.db == nil {
		return nil
	}

	quotedTableName := quoteTableName(fetchRunsTable, rs.backend)
	query := fmt.Sprintf(`SELECT start_time FROM %s WHERE run_id = %s`, quotedTableName, bindVar(rs.backend, 1))
	startTime, err := rs.scanTime(rs.db.QueryRow(query, runID))
	if err != nil {
		return fmt.Errorf("failed to get start_time for run %d: %w", runID, err)
	}

	durationMs := endTime.Sub(startTime).Milliseconds()
	status := schema.RunSucceeded
	var errorMessage sql.NullString
	if fetchErr != nil {
		status = schema.RunFailed
		errorMessage = sql.NullString{String: fetchErr.Error(), Valid: true}
	}

	updateQuery := fmt.Sprintf(`UPDATE %s SET end_time = %s, run_duration_ms = %s, total_items = %s, status = %s, error_message = %s WHERE run_id = %s`,
		quotedTableName,
		bindVar(rs.backend, 1), bindVar(rs.backend, 2), bindVar(rs.backend, 3),
		bindVar(rs.backend, 4), bindVar(rs.backend, 5), bindVar(rs.backend, 6),
	)
	result, err := rs.db.Exec(updateQuery, formatTime(endTime, rs.backend), durationMs, totalItems, string(status), errorMessage, runID)
	if err != nil {
		return fmt.Errorf("failed to update fetch run: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("fetch run %d not found", runID)
	}
	return nil
}

// scanTime reads a single time column, parsing SQLite's text encoding.
func (rs *RunStoreImpl) scanTime(row *sql.Row) (time.Time, error) {
	if rs.backend == schema.SQLiteBackend {
		var s string
		if err := row.Scan(&s); err != nil {
			return time.Time{}, err
		}
		return time.Parse(time.RFC3339Nano, s)
	}
	var t time.Time
	err := row.Scan(&t)
	return t, err
}

// parseNullTime converts a nullable text column into a time pointer.
func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Close closes the underlying connection.
func (rs *RunStoreImpl) Close() error {
	if rs.db != nil {
		return rs.db.Close()
	}
	return nil
}

// GetStatus returns status information about the run store.
func (rs *RunStoreImpl) GetStatus() (schema.RunStatus, error) {
	status := schema.RunStatus{
		Backend:    string(rs.backend),
		Connected:  rs.db != nil,
		TableSizes: make(map[string]int64),
	}

	if rs.backend == schema.NoneBackend || rs.db == nil {
		return status, nil
	}

	runsTable := quoteTableName(fetchRunsTable, rs.backend)

	if err := rs.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", runsTable)).Scan(&status.TotalRuns); err != nil {
		return status, fmt.Errorf("failed to get total runs: %w", err)
	}

	if status.TotalRuns > 0 {
		failedQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE status = %s", runsTable, bindVar(rs.backend, 1))
		if err := rs.db.QueryRow(failedQuery, string(schema.RunFailed)).Scan(&status.FailedRuns); err != nil {
			return status, fmt.Errorf("failed to get failed runs: %w", err)
		}

		lastIDQuery := fmt.Sprintf("SELECT MAX(run_id) FROM %s", runsTable)
		if err := rs.db.QueryRow(lastIDQuery).Scan(&status.LastRunID); err != nil {
			return status, fmt.Errorf("failed to get last run id: %w", err)
		}

		var err error
		lastRunQuery := fmt.Sprintf("SELECT start_time FROM %s ORDER BY run_id DESC LIMIT 1", runsTable)
		if status.LastRunTime, err = rs.scanTime(rs.db.QueryRow(lastRunQuery)); err != nil {
			return status, fmt.Errorf("failed to get last run time: %w", err)
		}

		oldestRunQuery := fmt.Sprintf("SELECT start_time FROM %s ORDER BY run_id ASC LIMIT 1", runsTable)
		if status.OldestRunTime, err = rs.scanTime(rs.db.QueryRow(oldestRunQuery)); err != nil {
			return status, fmt.Errorf("failed to get oldest run time: %w", err)
		}
	}

	for _, table := range []string{fetchRunsTable, fetchItemsTable} {
		countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteTableName(table, rs.backend))
		var count int64
		if err := rs.db.QueryRow(countQuery).Scan(&count); err != nil {
			return status, fmt.Errorf("failed to get count for table %s: %w", table, err)
		}
		status.TableSizes[table] = count
	}
	status.TotalItems = int(status.TableSizes[fetchItemsTable])

	return status, nil
}

// GetAllRuns retrieves every fetch run ordered by ID.
func (rs *RunStoreImpl) GetAllRuns() ([]schema.RunRecord, error) {
	// Skip for NoneBackend
	if rs.backend == schema.NoneBackend || rs.db == nil {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT run_id, backend_name, origin, category, start_time, end_time,
		run_duration_ms, total_items, status, error_message, config_params FROM %s ORDER BY run_id`,
		quoteTableName(fetchRunsTable, rs.backend))

	rows, err := rs.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query fetch runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []schema.RunRecord
	for rows.Next() {
		var (
			rec          schema.RunRecord
			status       string
			durationMs   sql.NullInt64
			totalItems   sql.NullInt64
			errorMessage sql.NullString
			configParams sql.NullString
		)

		if rs.backend == schema.SQLiteBackend {
			var startStr string
			var endStr sql.NullString
			if err := rows.Scan(&rec.RunID, &rec.BackendName, &rec.Origin, &rec.Category, &startStr, &endStr,
				&durationMs, &totalItems, &status, &errorMessage, &configParams); err != nil {
				return nil, fmt.Errorf("failed to scan fetch run: %w", err)
			}
			if rec.StartTime, err = time.Parse(time.RFC3339Nano, startStr); err != nil {
				return nil, fmt.Errorf("failed to parse start_time of run %d: %w", rec.RunID, err)
			}
			if rec.EndTime, err = parseNullTime(endStr); err != nil {
				return nil, fmt.Errorf("failed to parse end_time of run %d: %w", rec.RunID, err)
			}
		} else {
			var endTime sql.NullTime
			if err := rows.Scan(&rec.RunID, &rec.BackendName, &rec.Origin, &rec.Category, &rec.StartTime, &endTime,
				&durationMs, &totalItems, &status, &errorMessage, &configParams); err != nil {
				return nil, fmt.Errorf("failed to scan fetch run: %w", err)
			}
			if endTime.Valid {
				t := endTime.Time
				rec.EndTime = &t
			}
		}

		rec.Status = schema.RunState(status)
		if durationMs.Valid {
			rec.RunDurationMs = &durationMs.Int64
		}
		if totalItems.Valid {
			rec.TotalItems = &totalItems.Int64
		}
		if errorMessage.Valid {
			rec.ErrorMessage = &errorMessage.String
		}
		if configParams.Valid {
			rec.ConfigParams = &configParams.String
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fetch runs: %w", err)
	}
	return records, nil
}

// GetAllItems retrieves every recorded item ordered by run and position.
func (rs *RunStoreImpl) GetAllItems() ([]schema.ItemRecord, error) {
	// Skip for NoneBackend
	if rs.backend == schema.NoneBackend || rs.db == nil {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT run_id, seq, item_uuid, commit_sha, retrieved_on, covered_percent FROM %s ORDER BY run_id, seq`,
		quoteTableName(fetchItemsTable, rs.backend))

	rows, err := rs.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query fetch items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []schema.ItemRecord
	for rows.Next() {
		var rec schema.ItemRecord
		var covered sql.NullFloat64

		if rs.backend == schema.SQLiteBackend {
			var retrievedStr string
			if err := rows.Scan(&rec.RunID, &rec.Seq, &rec.ItemUUID, &rec.CommitSHA, &retrievedStr, &covered); err != nil {
				return nil, fmt.Errorf("failed to scan fetch item: %w", err)
			}
			if rec.RetrievedOn, err = time.Parse(time.RFC3339Nano, retrievedStr); err != nil {
				return nil, fmt.Errorf("failed to parse retrieved_on: %w", err)
			}
		} else if err := rows.Scan(&rec.RunID, &rec.Seq, &rec.ItemUUID, &rec.CommitSHA, &rec.RetrievedOn, &covered); err != nil {
			return nil, fmt.Errorf("failed to scan fetch item: %w", err)
		}

		if covered.Valid {
			rec.CoveredPercent = &covered.Float64
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fetch items: %w", err)
	}
	return records, nil
}

package schema

// Custom string types for type safety.
type (
	// OutputMode represents the format of the output.
	OutputMode string

	// DatabaseBackend represents the database backend for run tracking.
	DatabaseBackend string

	// Category represents the kind of item a backend produces.
	Category string

	// RunState represents the lifecycle state of a fetch run.
	RunState string
)

// All output modes supported.
const (
	CSVOut     OutputMode = "csv"
	TextOut    OutputMode = "text"
	JSONOut    OutputMode = "json" // default
	ParquetOut OutputMode = "parquet"
)

// All item categories supported.
const (
	TestCoverageCategory Category = "test_coverage"
)

// All run tracking backends supported.
const (
	SQLiteBackend     DatabaseBackend = "sqlite"
	MySQLBackend      DatabaseBackend = "mysql"
	PostgreSQLBackend DatabaseBackend = "postgresql"
	NoneBackend       DatabaseBackend = "none" // default
)

// All run states recorded by the run ledger.
const (
	RunRunning   RunState = "running"
	RunSucceeded RunState = "succeeded"
	RunFailed    RunState = "failed"
)

// Well-known field names inside a build coverage record.
const (
	CommitSHAField      = "commit_sha"
	RetrievedOnField    = "retrieved_on"
	URLField            = "url"
	BranchField         = "branch"
	CoveredPercentField = "covered_percent"
	CoverageChangeField = "coverage_change"
	CreatedAtField      = "created_at"
	CommitMessageField  = "commit_message"
	CommitterNameField  = "committer_name"
)

// DefaultSearchField is the conventional lookup key in an item's search fields.
const DefaultSearchField = "item_id"

// ValidOutputModes lists all valid output modes.
var ValidOutputModes = map[OutputMode]struct{}{
	CSVOut:     {},
	TextOut:    {},
	JSONOut:    {},
	ParquetOut: {},
}

// ValidDatabaseBackends lists all valid run tracking backends.
var ValidDatabaseBackends = map[DatabaseBackend]struct{}{
	SQLiteBackend:     {},
	MySQLBackend:      {},
	PostgreSQLBackend: {},
	NoneBackend:       {},
}

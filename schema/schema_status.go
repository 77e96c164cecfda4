package schema

import "time"

// RunStatus represents the status of the run ledger.
type RunStatus struct {
	Backend       string           `json:"backend"`
	Connected     bool             `json:"connected"`
	TotalRuns     int              `json:"total_runs"`
	FailedRuns    int              `json:"failed_runs"`
	LastRunID     int64            `json:"last_run_id"`
	LastRunTime   time.Time        `json:"last_run_time"`
	OldestRunTime time.Time        `json:"oldest_run_time"`
	TotalItems    int              `json:"total_items"`
	TableSizes    map[string]int64 `json:"table_sizes"`
}

// RunRecord represents a row from the covtrail_fetch_runs table.
type RunRecord struct {
	RunID         int64
	BackendName   string
	Origin        string
	Category      string
	StartTime     time.Time
	EndTime       *time.Time
	RunDurationMs *int64
	TotalItems    *int64
	Status        RunState
	ErrorMessage  *string
	ConfigParams  *string
}

// ItemRecord represents a row from the covtrail_fetch_items table.
type ItemRecord struct {
	RunID          int64
	Seq            int
	ItemUUID       string
	CommitSHA      string
	RetrievedOn    time.Time
	CoveredPercent *float64
}

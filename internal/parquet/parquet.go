// Package parquet provides data structures and functions for exporting covtrail
// items and run ledger data to Parquet files using github.com/parquet-go/parquet-go.
package parquet

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/covtrail/covtrail/schema"
	"github.com/parquet-go/parquet-go"
)

// CoverageItem is one fetched item flattened for columnar storage.
// Well-known build fields get their own columns; the full record stays in Data.
type CoverageItem struct {
	UUID           string  `parquet:"uuid,snappy"`
	Origin         string  `parquet:"origin,snappy,dict"`
	Tag            string  `parquet:"tag,snappy,dict"`
	Category       string  `parquet:"category,snappy,dict"`
	BackendName    string  `parquet:"backend_name,snappy,dict"`
	BackendVersion string  `parquet:"backend_version,snappy,dict"`
	Timestamp      float64 `parquet:"timestamp,snappy"`
	UpdatedOn      float64 `parquet:"updated_on,snappy"`

	// CommitSHA is the item identity
	CommitSHA string `parquet:"commit_sha,snappy"`

	// Branch, percentages and creation time are copied when the origin reports them
	Branch         *string  `parquet:"branch,optional,snappy,dict"`
	CoveredPercent *float64 `parquet:"covered_percent,optional,snappy"`
	CoverageChange *float64 `parquet:"coverage_change,optional,snappy"`
	CreatedAt      *string  `parquet:"created_at,optional,snappy"`

	// RetrievedOn is the fetch instant (stored as TIMESTAMP with nanosecond precision)
	RetrievedOn time.Time `parquet:"retrieved_on,snappy"`

	// Data is the JSON-encoded build record
	Data string `parquet:"data,snappy"`
}

// FetchRun represents a single fetch run with metadata.
// This struct maps to the covtrail_fetch_runs database table.
type FetchRun struct {
	// RunID is the unique identifier for this fetch run
	RunID int64 `parquet:"run_id,snappy"`

	BackendName string `parquet:"backend_name,snappy,dict"`
	Origin      string `parquet:"origin,snappy,dict"`
	Category    string `parquet:"category,snappy,dict"`

	// StartTime is when the fetch began
	StartTime time.Time `parquet:"start_time,snappy"`

	// EndTime is when the fetch completed (nullable)
	EndTime *time.Time `parquet:"end_time,optional,snappy"`

	// RunDurationMs is the duration of the run in milliseconds (nullable)
	RunDurationMs *int64 `parquet:"run_duration_ms,optional,snappy"`

	// TotalItems is the number of items emitted (nullable while running)
	TotalItems *int64 `parquet:"total_items,optional,snappy"`

	// Status is running, succeeded or failed
	Status string `parquet:"status,snappy,dict"`

	// ErrorMessage is set for failed runs
	ErrorMessage *string `parquet:"error_message,optional,snappy"`

	// ConfigParams contains the JSON-encoded configuration parameters (nullable)
	ConfigParams *string `parquet:"config_params,optional,snappy"`
}

// FetchItem represents one item emitted by a run.
// This struct maps to the covtrail_fetch_items database table.
type FetchItem struct {
	RunID          int64     `parquet:"run_id,snappy"`
	Seq            int32     `parquet:"seq,snappy"`
	ItemUUID       string    `parquet:"item_uuid,snappy"`
	CommitSHA      string    `parquet:"commit_sha,snappy"`
	RetrievedOn    time.Time `parquet:"retrieved_on,snappy"`
	CoveredPercent *float64  `parquet:"covered_percent,optional,snappy"`
}

// writeParquet writes rows of T to outputPath, inferring the schema from T's struct tags.
func writeParquet[T any](data []T, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = file.Close() }()

	writer := parquet.NewGenericWriter[T](file)
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return nil
}

// WriteCoverageItemsParquet writes fetched items to a Parquet file.
func WriteCoverageItemsParquet(data []CoverageItem, outputPath string) error {
	return writeParquet(data, outputPath)
}

// WriteFetchRunsParquet writes a slice of FetchRun structs to a Parquet file.
func WriteFetchRunsParquet(data []FetchRun, outputPath string) error {
	return writeParquet(data, outputPath)
}

// WriteFetchItemsParquet writes a slice of FetchItem structs to a Parquet file.
func WriteFetchItemsParquet(data []FetchItem, outputPath string) error {
	return writeParquet(data, outputPath)
}

// ConvertItems flattens items into CoverageItem rows.
func ConvertItems(items []schema.Item) ([]CoverageItem, error) {
	result := make([]CoverageItem, len(items))
	for i, item := range items {
		data, err := json.Marshal(item.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to encode item %s: %w", item.UUID, err)
		}
		result[i] = CoverageItem{
			UUID:           item.UUID,
			Origin:         item.Origin,
			Tag:            item.Tag,
			Category:       string(item.Category),
			BackendName:    item.BackendName,
			BackendVersion: item.BackendVersion,
			Timestamp:      item.Timestamp,
			UpdatedOn:      item.UpdatedOn,
			CommitSHA:      item.Data.CommitSHA,
			Branch:         optionalString(item.Data, schema.BranchField),
			CoveredPercent: optionalFloat(item.Data, schema.CoveredPercentField),
			CoverageChange: optionalFloat(item.Data, schema.CoverageChangeField),
			CreatedAt:      optionalString(item.Data, schema.CreatedAtField),
			RetrievedOn:    item.Data.RetrievedOn,
			Data:           string(data),
		}
	}
	return result, nil
}

func optionalString(b schema.BuildCoverage, key string) *string {
	if s, ok := b.Fields[key].(string); ok {
		return &s
	}
	return nil
}

func optionalFloat(b schema.BuildCoverage, key string) *float64 {
	if f, ok := b.Float(key); ok {
		return &f
	}
	return nil
}

// ConvertRunRecords converts schema.RunRecord to FetchRun for Parquet export.
func ConvertRunRecords(records []schema.RunRecord) []FetchRun {
	result := make([]FetchRun, len(records))
	for i, record := range records {
		result[i] = FetchRun{
			RunID:         record.RunID,
			BackendName:   record.BackendName,
			Origin:        record.Origin,
			Category:      record.Category,
			StartTime:     record.StartTime,
			EndTime:       record.EndTime,
			RunDurationMs: record.RunDurationMs,
			TotalItems:    record.TotalItems,
			Status:        string(record.Status),
			ErrorMessage:  record.ErrorMessage,
			ConfigParams:  record.ConfigParams,
		}
	}
	return result
}

// ConvertItemRecords converts schema.ItemRecord to FetchItem for Parquet export.
func ConvertItemRecords(records []schema.ItemRecord) []FetchItem {
	result := make([]FetchItem, len(records))
	for i, record := range records {
		result[i] = FetchItem{
			RunID:          record.RunID,
			Seq:            int32(record.Seq),
			ItemUUID:       record.ItemUUID,
			CommitSHA:      record.CommitSHA,
			RetrievedOn:    record.RetrievedOn,
			CoveredPercent: record.CoveredPercent,
		}
	}
	return result
}

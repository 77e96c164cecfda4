// Package contract provides interfaces and shared utilities for internal architecture.
package contract

import (
	"context"
	"time"

	"github.com/covtrail/covtrail/schema"
)

// Backend defines a data source that produces normalized items for the host.
// Every accessor is pure and may be called any number of times per record.
type Backend interface {
	// --- Identity ---

	// Name returns the registry name of the backend (e.g. "coveralls").
	Name() string

	// Version returns the backend's own version string.
	Version() string

	// Origin returns the identifier of the data source being fetched.
	Origin() string

	// Tag returns the label attached to every item; defaults to Origin.
	Tag() string

	// Categories lists the item categories this backend can produce.
	Categories() []schema.Category

	// --- Fetching ---

	// FetchAll retrieves the full record history for the given category.
	// Any error aborts the whole fetch and no records are returned.
	FetchAll(ctx context.Context, category schema.Category) ([]schema.BuildCoverage, error)

	// --- Per-record accessors ---

	// Identity returns the unique identifier of a record.
	Identity(rec schema.BuildCoverage) string

	// Category returns the category of a record.
	Category(rec schema.BuildCoverage) schema.Category

	// Timestamp returns the freshness time of a record.
	Timestamp(rec schema.BuildCoverage) time.Time

	// SearchFields returns the indexing keys of a record.
	SearchFields(rec schema.BuildCoverage) map[string]string

	// --- Capabilities ---

	// HasArchiving reports whether fetched raw responses can be archived and replayed.
	HasArchiving() bool

	// HasResuming reports whether an interrupted fetch can be resumed.
	HasResuming() bool
}

// PageFetcher translates a repository and a page number into one decoded envelope.
// This allows the collector to be tested without a real origin.
type PageFetcher interface {
	FetchPage(ctx context.Context, repo string, page int) (*schema.Envelope, error)
}

// RunManager gives access to the run ledger.
// This allows the persistence layer to be mocked for testing.
type RunManager interface {
	GetRunStore() RunStore
}

// RunStore defines the interface for recording fetch runs and the items they emitted.
type RunStore interface {
	// BeginRun creates a new fetch run and returns its unique ID
	BeginRun(startTime time.Time, backendName, origin string, category schema.Category, configParams map[string]any) (int64, error)

	// RecordItems stores the emitted items of a run in order
	RecordItems(runID int64, items []schema.Item) error

	// EndRun marks the run finished; fetchErr is nil on success
	EndRun(runID int64, endTime time.Time, totalItems int, fetchErr error) error

	// GetStatus returns status information about the run store
	GetStatus() (schema.RunStatus, error)

	// GetAllRuns returns every stored run ordered by ID
	GetAllRuns() ([]schema.RunRecord, error)

	// GetAllItems returns every stored item ordered by run and position
	GetAllItems() ([]schema.ItemRecord, error)

	// Close closes the underlying connection
	Close() error
}

// ItemSink receives the items of a successful fetch.
type ItemSink interface {
	Publish(ctx context.Context, items []schema.Item) error
	Close() error
}

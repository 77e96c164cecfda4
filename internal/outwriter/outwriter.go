// Package outwriter has output and writer logic.
package outwriter

import (
	"time"

	"github.com/covtrail/covtrail/internal/contract"
	"github.com/covtrail/covtrail/schema"
)

// OutWriter provides a unified interface for all output operations.
// It encapsulates the various output formats and provides a clean API for the core logic.
type OutWriter struct{}

// NewOutWriter creates a new instance of the output writer.
func NewOutWriter() *OutWriter {
	return &OutWriter{}
}

// WriteItems prints fetched items using the configured output format.
func (ow *OutWriter) WriteItems(items []schema.Item, cfg *contract.Config, duration time.Duration) error {
	return WriteItemResults(items, cfg, duration)
}

// WriteBackends prints the registered backends using the configured output format.
func (ow *OutWriter) WriteBackends(infos []schema.BackendInfo, cfg *contract.Config) error {
	return WriteBackendList(infos, cfg)
}

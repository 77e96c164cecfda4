package core

import (
	"context"
	"time"

	"github.com/covtrail/covtrail/internal/contract"
	"github.com/covtrail/covtrail/internal/outwriter"
	"github.com/covtrail/covtrail/schema"
	"go.uber.org/zap"
)

// EmitFunc consumes the items of a successful fetch.
type EmitFunc func(items []schema.Item) error

// ExecuteFetch runs one CLI fetch and writes the items in the configured format.
// mgr and sink may be nil.
func ExecuteFetch(ctx context.Context, cfg *contract.Config, mgr contract.RunManager, sink contract.ItemSink, logger *zap.Logger) error {
	start := time.Now()
	_, err := TrackedFetch(ctx, cfg, mgr, sink, logger, func(items []schema.Item) error {
		return outwriter.NewOutWriter().WriteItems(items, cfg, time.Since(start))
	})
	return err
}

// TrackedFetch builds the backend, tracks the run in the ledger, fetches,
// records and publishes the items, then hands them to emit (which may be nil).
// A failure in any step after the fetch still returns the fetched items.
func TrackedFetch(
	ctx context.Context,
	cfg *contract.Config,
	mgr contract.RunManager,
	sink contract.ItemSink,
	logger *zap.Logger,
	emit EmitFunc,
) ([]schema.Item, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	backend, err := NewBackend(cfg, logger)
	if err != nil {
		return nil, err
	}

	// --- 0. Begin Run Tracking (if configured) ---
	var runStore contract.RunStore
	if mgr != nil {
		runStore = mgr.GetRunStore()
	}
	var runID int64
	if runStore != nil {
		runID, err = runStore.BeginRun(time.Now(), backend.Name(), backend.Origin(), cfg.Category, contract.DescribeConfig(cfg))
		if err != nil {
			logger.Warn("Run tracking initialization failed", zap.Error(err))
			runID = 0
		} else if runID > 0 {
			ctx = contract.WithRunID(ctx, runID)
		}
	}

	// --- 1. Fetch, record, publish and emit ---
	items, runErr := runTrackedFetch(ctx, cfg, backend, runStore, runID, sink, logger, emit)

	// --- 2. End Run Tracking ---
	if runStore != nil && runID > 0 {
		if err := runStore.EndRun(runID, time.Now(), len(items), runErr); err != nil {
			logger.Warn("Failed to finalize run tracking", zap.Int64("run_id", runID), zap.Error(err))
		}
	}

	return items, runErr
}

// runTrackedFetch is the body of a tracked run.
func runTrackedFetch(
	ctx context.Context,
	cfg *contract.Config,
	backend contract.Backend,
	runStore contract.RunStore,
	runID int64,
	sink contract.ItemSink,
	logger *zap.Logger,
	emit EmitFunc,
) ([]schema.Item, error) {
	items, err := Fetch(ctx, backend, cfg.Category)
	if err != nil {
		return nil, err
	}
	logger.Info("Fetched items",
		zap.String("backend", backend.Name()),
		zap.String("origin", backend.Origin()),
		zap.Int("items", len(items)),
	)

	if runStore != nil && runID > 0 {
		if err := runStore.RecordItems(runID, items); err != nil {
			logger.Warn("Failed to record run items", zap.Int64("run_id", runID), zap.Error(err))
		}
	}

	if sink != nil {
		if err := sink.Publish(ctx, items); err != nil {
			return items, err
		}
	}

	if emit != nil {
		if err := emit(items); err != nil {
			return items, err
		}
	}
	return items, nil
}

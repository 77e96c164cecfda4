package contract

import "context"

// Context keys for fetch options
type contextKey string

const runIDKey contextKey = "runID"

// WithRunID attaches the ledger run ID of the current fetch.
func WithRunID(ctx context.Context, runID int64) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// RunIDFromContext returns the ledger run ID, or 0 when the fetch is not tracked.
func RunIDFromContext(ctx context.Context) int64 {
	val := ctx.Value(runIDKey)
	if val == nil {
		return 0 // default: untracked
	}
	id, ok := val.(int64)
	if !ok {
		return 0
	}
	return id
}

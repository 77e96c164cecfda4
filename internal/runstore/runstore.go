// Package runstore records fetch runs and the items they emitted.
package runstore

import (
	"sync"

	"github.com/covtrail/covtrail/internal/contract"
)

// RunStoreManager holds the process-wide run ledger.
type RunStoreManager struct {
	sync.RWMutex // Protects the store pointer during initialization
	runs         contract.RunStore
}

var _ contract.RunManager = &RunStoreManager{} // Compile-time check

// GetRunStore returns the run ledger, or nil when it was never initialized.
func (mgr *RunStoreManager) GetRunStore() contract.RunStore {
	mgr.RLock()
	defer mgr.RUnlock()
	return mgr.runs
}

package contract

import (
	"fmt"
	"sort"
	"sync"

	"github.com/covtrail/covtrail/schema"
	"go.uber.org/zap"
)

// BackendFactory builds a backend from a validated config.
type BackendFactory func(cfg *Config, logger *zap.Logger) (Backend, error)

// BackendSpec describes a registered backend.
type BackendSpec struct {
	Info schema.BackendInfo
	New  BackendFactory
}

var (
	registryMu sync.RWMutex
	registry   = map[string]BackendSpec{}
)

// RegisterBackend makes a backend available by name. It panics on duplicates,
// like database/sql.Register.
func RegisterBackend(spec BackendSpec) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if spec.New == nil {
		panic("contract: RegisterBackend factory is nil")
	}
	if _, dup := registry[spec.Info.Name]; dup {
		panic("contract: RegisterBackend called twice for backend " + spec.Info.Name)
	}
	registry[spec.Info.Name] = spec
}

// LookupBackend returns the registered backend with the given name.
func LookupBackend(name string) (BackendSpec, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	spec, ok := registry[name]
	if !ok {
		return BackendSpec{}, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
	}
	return spec, nil
}

// RegisteredBackends returns the info of every backend, sorted by name.
func RegisteredBackends() []schema.BackendInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]schema.BackendInfo, 0, len(registry))
	for _, spec := range registry {
		out = append(out, spec.Info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

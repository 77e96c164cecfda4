// Package core wraps backend records into items and orchestrates a fetch run.
package core

import (
	"context"
	"slices"
	"time"

	"github.com/covtrail/covtrail/internal/contract"
	"github.com/covtrail/covtrail/schema"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Version is stamped into every item as covtrail_version.
var Version = "dev"

// now is replaced in tests.
var now = time.Now

// NewBackend builds the backend named by cfg.BackendName.
func NewBackend(cfg *contract.Config, logger *zap.Logger) (contract.Backend, error) {
	spec, err := contract.LookupBackend(cfg.BackendName)
	if err != nil {
		return nil, err
	}
	return spec.New(cfg, logger)
}

// Backends lists every registered backend.
func Backends() []schema.BackendInfo {
	return contract.RegisteredBackends()
}

// Fetch retrieves every record of category from backend and wraps each one in an item.
// Items keep the backend's order. Any failure returns no items.
func Fetch(ctx context.Context, backend contract.Backend, category schema.Category) ([]schema.Item, error) {
	if !slices.Contains(backend.Categories(), category) {
		return nil, contract.NewConfigurationError("backend %s does not support category %q", backend.Name(), category)
	}

	records, err := backend.FetchAll(ctx, category)
	if err != nil {
		return nil, err
	}

	items := make([]schema.Item, 0, len(records))
	for _, rec := range records {
		item, err := NewItem(backend, rec)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// NewItem wraps one record in the item envelope.
func NewItem(backend contract.Backend, rec schema.BuildCoverage) (schema.Item, error) {
	identity := backend.Identity(rec)
	uuid, err := UUID(backend.Origin(), identity)
	if err != nil {
		return schema.Item{}, errors.Wrapf(err, "cannot identify record %q", identity)
	}

	return schema.Item{
		BackendName:     backend.Name(),
		BackendVersion:  backend.Version(),
		CovtrailVersion: Version,
		Timestamp:       schema.EpochSeconds(now()),
		Origin:          backend.Origin(),
		UUID:            uuid,
		UpdatedOn:       schema.EpochSeconds(backend.Timestamp(rec)),
		Category:        backend.Category(rec),
		SearchFields:    backend.SearchFields(rec),
		Tag:             backend.Tag(),
		Data:            rec,
	}, nil
}

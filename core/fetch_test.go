package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/covtrail/covtrail/internal/contract"
	"github.com/covtrail/covtrail/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func withFixedNow(t *testing.T, at time.Time) {
	t.Helper()
	orig := now
	now = func() time.Time { return at }
	t.Cleanup(func() { now = orig })
}

func TestNewItem(t *testing.T) {
	fetchedAt := time.Date(2024, 3, 1, 12, 0, 5, 0, time.UTC)
	withFixedNow(t, fetchedAt)

	retrieved := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := stubRecords(retrieved)[0]

	item, err := NewItem(&stubBackend{}, rec)
	require.NoError(t, err)

	expectedUUID, err := UUID("stub-origin", rec.CommitSHA)
	require.NoError(t, err)

	assert.Equal(t, "stub", item.BackendName)
	assert.Equal(t, "9.9.9", item.BackendVersion)
	assert.Equal(t, Version, item.CovtrailVersion)
	assert.Equal(t, "stub-origin", item.Origin)
	assert.Equal(t, "stub-tag", item.Tag)
	assert.Equal(t, expectedUUID, item.UUID)
	assert.Equal(t, schema.TestCoverageCategory, item.Category)
	assert.Equal(t, float64(1709294405), item.Timestamp)
	assert.Equal(t, float64(1709294400), item.UpdatedOn)
	assert.Equal(t, map[string]string{"item_id": rec.CommitSHA}, item.SearchFields)
	assert.Equal(t, rec, item.Data)
}

func TestNewItemRejectsEmptyIdentity(t *testing.T) {
	_, err := NewItem(&stubBackend{}, schema.BuildCoverage{})
	assert.Error(t, err)
}

func TestFetch(t *testing.T) {
	retrieved := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	backend := &stubBackend{records: stubRecords(retrieved)}

	items, err := Fetch(context.Background(), backend, schema.TestCoverageCategory)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "47891c0d6dd2512169bb9c8d1c0eca5ddda5ee9b", items[0].Data.CommitSHA)
	assert.Equal(t, "eed8d1d332eb3a8385188a0a32dcadc9c032a924", items[1].Data.CommitSHA)
	assert.NotEqual(t, items[0].UUID, items[1].UUID)
}

func TestFetchKeepsDuplicates(t *testing.T) {
	retrieved := time.Now()
	rec := stubRecords(retrieved)[0]
	backend := &stubBackend{records: []schema.BuildCoverage{rec, rec}}

	items, err := Fetch(context.Background(), backend, schema.TestCoverageCategory)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, items[0].UUID, items[1].UUID)
}

func TestFetchErrors(t *testing.T) {
	t.Run("unsupported category", func(t *testing.T) {
		backend := &stubBackend{}
		items, err := Fetch(context.Background(), backend, "commit")
		assert.ErrorIs(t, err, contract.ErrConfiguration)
		assert.Nil(t, items)
		assert.Equal(t, 0, backend.calls)
	})

	t.Run("backend failure", func(t *testing.T) {
		cause := contract.NewTransportError("https://coveralls.io/github/a/b.json?page=2", 2, 502, nil)
		backend := &stubBackend{err: cause}
		items, err := Fetch(context.Background(), backend, schema.TestCoverageCategory)
		assert.Nil(t, items)
		assert.True(t, errors.Is(err, contract.ErrTransport))
	})

	t.Run("record without identity", func(t *testing.T) {
		backend := &stubBackend{records: []schema.BuildCoverage{{}}}
		items, err := Fetch(context.Background(), backend, schema.TestCoverageCategory)
		assert.Error(t, err)
		assert.Nil(t, items)
	})
}

func TestNewBackend(t *testing.T) {
	backend, err := NewBackend(&contract.Config{BackendName: stubBackendName}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, stubBackendName, backend.Name())

	_, err = NewBackend(&contract.Config{BackendName: "gitlab"}, zap.NewNop())
	assert.ErrorIs(t, err, contract.ErrUnknownBackend)
}

func TestBackends(t *testing.T) {
	var names []string
	for _, info := range Backends() {
		names = append(names, info.Name)
	}
	assert.Contains(t, names, stubBackendName)
}

package core

import (
	"context"
	"time"

	"github.com/covtrail/covtrail/internal/contract"
	"github.com/covtrail/covtrail/schema"
	"go.uber.org/zap"
)

const stubBackendName = "stub"

// stubBackend serves a fixed record list or a fixed error.
type stubBackend struct {
	records []schema.BuildCoverage
	err     error
	calls   int
}

var _ contract.Backend = &stubBackend{}

// activeStub is returned by the registered stub factory.
var activeStub = &stubBackend{}

func init() {
	contract.RegisterBackend(contract.BackendSpec{
		Info: schema.BackendInfo{Name: stubBackendName, Version: "9.9.9", Categories: []schema.Category{schema.TestCoverageCategory}},
		New: func(_ *contract.Config, _ *zap.Logger) (contract.Backend, error) {
			return activeStub, nil
		},
	})
}

func (s *stubBackend) Name() string                  { return stubBackendName }
func (s *stubBackend) Version() string               { return "9.9.9" }
func (s *stubBackend) Origin() string                { return "stub-origin" }
func (s *stubBackend) Tag() string                   { return "stub-tag" }
func (s *stubBackend) Categories() []schema.Category { return []schema.Category{schema.TestCoverageCategory} }
func (s *stubBackend) HasArchiving() bool            { return false }
func (s *stubBackend) HasResuming() bool             { return false }

func (s *stubBackend) FetchAll(_ context.Context, _ schema.Category) ([]schema.BuildCoverage, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.records, nil
}

func (s *stubBackend) Identity(rec schema.BuildCoverage) string { return rec.CommitSHA }

func (s *stubBackend) Category(_ schema.BuildCoverage) schema.Category {
	return schema.TestCoverageCategory
}

func (s *stubBackend) Timestamp(rec schema.BuildCoverage) time.Time { return rec.RetrievedOn }

func (s *stubBackend) SearchFields(rec schema.BuildCoverage) map[string]string {
	return map[string]string{schema.DefaultSearchField: rec.CommitSHA}
}

func stubRecords(retrieved time.Time) []schema.BuildCoverage {
	return []schema.BuildCoverage{
		{CommitSHA: "47891c0d6dd2512169bb9c8d1c0eca5ddda5ee9b", RetrievedOn: retrieved, Fields: map[string]any{"branch": "main"}},
		{CommitSHA: "eed8d1d332eb3a8385188a0a32dcadc9c032a924", RetrievedOn: retrieved, Fields: map[string]any{"branch": "master"}},
	}
}

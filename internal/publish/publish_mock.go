package publish

import (
	"context"

	"github.com/covtrail/covtrail/internal/contract"
	"github.com/covtrail/covtrail/schema"
	"github.com/stretchr/testify/mock"
)

// MockItemSink is a mock implementation of ItemSink for testing.
type MockItemSink struct {
	mock.Mock
}

var _ contract.ItemSink = &MockItemSink{} // Compile-time check

// Publish implements the ItemSink interface.
func (m *MockItemSink) Publish(ctx context.Context, items []schema.Item) error {
	args := m.Called(ctx, items)
	return args.Error(0)
}

// Close implements the ItemSink interface.
func (m *MockItemSink) Close() error {
	args := m.Called()
	return args.Error(0)
}

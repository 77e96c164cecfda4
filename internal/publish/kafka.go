// Package publish forwards fetched items to a Kafka-compatible broker.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/covtrail/covtrail/internal/contract"
	"github.com/covtrail/covtrail/schema"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
)

// Record header names set on every produced item.
const (
	HeaderBackend = "covtrail-backend"
	HeaderRunID   = "covtrail-run-id"
)

// producer is the subset of *kgo.Client used by KafkaSink.
type producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// KafkaSink produces each item as one record, keyed by the item uuid.
type KafkaSink struct {
	client producer
	topic  string
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
}

var _ contract.ItemSink = &KafkaSink{} // Compile-time check

// NewKafkaSink connects a producer to brokers (e.g. ["localhost:19092"]).
func NewKafkaSink(brokers []string, topic string, logger *zap.Logger) (*KafkaSink, error) {
	if len(brokers) == 0 {
		return nil, contract.NewConfigurationError("at least one kafka broker address is required")
	}
	if topic == "" {
		return nil, contract.NewConfigurationError("kafka topic is required")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.AllowAutoTopicCreation(),
		kgo.RecordPartitioner(kgo.StickyKeyPartitioner(nil)),
	)
	if err != nil {
		return nil, contract.NewConfigurationError("failed to create kafka client: %v", err)
	}
	return newKafkaSink(client, topic, logger), nil
}

func newKafkaSink(client producer, topic string, logger *zap.Logger) *KafkaSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaSink{client: client, topic: topic, logger: logger}
}

// Topic returns the topic items are produced to.
func (s *KafkaSink) Topic() string { return s.topic }

// Publish produces items synchronously and in order.
// Nothing is sent when an item cannot be encoded.
func (s *KafkaSink) Publish(ctx context.Context, items []schema.Item) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return fmt.Errorf("%w: kafka sink is closed", contract.ErrTransport)
	}
	if len(items) == 0 {
		return nil
	}

	records, err := s.buildRecords(ctx, items)
	if err != nil {
		return err
	}

	results := s.client.ProduceSync(ctx, records...)
	if err := results.FirstErr(); err != nil {
		return fmt.Errorf("%w: producing %d items to %s: %w", contract.ErrTransport, len(records), s.topic, err)
	}

	s.logger.Info("Published items",
		zap.String("topic", s.topic),
		zap.Int("items", len(records)),
	)
	return nil
}

func (s *KafkaSink) buildRecords(ctx context.Context, items []schema.Item) ([]*kgo.Record, error) {
	var runHeader []kgo.RecordHeader
	if runID := contract.RunIDFromContext(ctx); runID > 0 {
		runHeader = []kgo.RecordHeader{{Key: HeaderRunID, Value: []byte(strconv.FormatInt(runID, 10))}}
	}

	records := make([]*kgo.Record, 0, len(items))
	for i, item := range items {
		value, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("%w: encoding item %d (%s): %w", contract.ErrTransport, i, item.UUID, err)
		}
		headers := append([]kgo.RecordHeader{{Key: HeaderBackend, Value: []byte(item.BackendName)}}, runHeader...)
		records = append(records, &kgo.Record{
			Topic:   s.topic,
			Key:     []byte(item.UUID),
			Value:   value,
			Headers: headers,
		})
	}
	return records, nil
}

// Close flushes and shuts down the producer. It is safe to call more than once.
func (s *KafkaSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.client.Close()
	return nil
}

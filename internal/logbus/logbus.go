// Package logbus abstracts the durable partitioned message log every service
// publishes to and consumes from, backed by segmentio/kafka-go.
package logbus

import (
	"context"
)

// Record is a decoded-ready message pulled off a partition.
type Record struct {
	Topic     string
	Partition int
	Offset    int64
	Key       string
	Value     []byte
}

// Producer publishes records keyed by partition key. Every service that
// produces onto the log (ingestion, the Alert Publisher) depends on this
// interface rather than the kafka-go client directly.
type Producer interface {
	Publish(ctx context.Context, topic, key string, value []byte) error
	Close() error
}

// Consumer fetches and acknowledges records from one consumer group. Fetch
// and Ack are split so a caller can finish processing before committing the
// offset (SPEC_FULL.md §5/§12's manual-acknowledgement requirement).
type Consumer interface {
	Fetch(ctx context.Context) (Record, error)
	Ack(ctx context.Context, r Record) error
	Close() error
}

// Consumer group names, one per topic/subscriber pairing in SPEC_FULL.md §5.
const (
	GroupProcessingMetrics  = "processing.metrics"
	GroupNotificationAlerts = "notification.alerts"
	GroupStreamingMetrics   = "streaming.metrics"
	GroupStreamingAlerts    = "streaming.alerts"
)

// Package ingestion implements the Ingestion HTTP Surface: validates
// incoming metric samples and publishes accepted ones onto metrics.raw
// (SPEC_FULL.md §18).
package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/qiniu/monitorflow/internal/eventbus"
	"github.com/qiniu/monitorflow/internal/logbus"
)

// Publisher encodes and emits MetricEvents keyed by serviceName.
type Publisher struct {
	producer logbus.Producer
	topic    string
}

func NewPublisher(producer logbus.Producer, topic string) *Publisher {
	return &Publisher{producer: producer, topic: topic}
}

// Publish mints eventId/createdAt for requests that arrive without them (the
// documented request contract has neither field) before encoding and
// emitting m, matching the original validateAndTransform step.
func (p *Publisher) Publish(ctx context.Context, m eventbus.MetricEvent) error {
	if m.EventID == "" {
		m.EventID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = eventbus.NewWireTime(time.Now())
	}

	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode metric event: %w", err)
	}
	if err := p.producer.Publish(ctx, p.topic, m.ServiceName, payload); err != nil {
		return fmt.Errorf("publish metric for %s: %w", m.ServiceName, err)
	}
	return nil
}

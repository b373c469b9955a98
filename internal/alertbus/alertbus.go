// Package alertbus is the Alert Publisher / Alert Consumer pair: the two
// endpoints of the `alerts` topic (SPEC_FULL.md §13).
package alertbus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/qiniu/monitorflow/internal/eventbus"
	"github.com/qiniu/monitorflow/internal/logbus"
)

// Publisher emits AlertEvents keyed by serviceName.
type Publisher struct {
	producer logbus.Producer
	topic    string
}

func NewPublisher(producer logbus.Producer, topic string) *Publisher {
	return &Publisher{producer: producer, topic: topic}
}

// Publish treats the underlying send as failed iff the producer itself
// reports an error (broker error or timeout); success is silent, matching
// SPEC_FULL.md §13.
func (p *Publisher) Publish(ctx context.Context, a eventbus.AlertEvent) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode alert event: %w", err)
	}
	if err := p.producer.Publish(ctx, p.topic, a.ServiceName, payload); err != nil {
		return fmt.Errorf("publish alert %s: %w", a.AlertID, err)
	}
	log.Debug().Str("alertId", a.AlertID).Str("status", string(a.Status)).Msg("alertbus: published")
	return nil
}

// Consumer decodes alerts topic records for a subscriber (streaming service
// or notification service, each with its own consumer group).
type Consumer struct {
	consumer logbus.Consumer
}

func NewConsumer(consumer logbus.Consumer) *Consumer {
	return &Consumer{consumer: consumer}
}

// Next fetches and decodes the next record. A decode failure is not
// acknowledged by this call; the caller decides its own ack policy.
func (c *Consumer) Next(ctx context.Context) (eventbus.AlertEvent, logbus.Record, error) {
	rec, err := c.consumer.Fetch(ctx)
	if err != nil {
		return eventbus.AlertEvent{}, logbus.Record{}, err
	}
	var a eventbus.AlertEvent
	if err := json.Unmarshal(rec.Value, &a); err != nil {
		return eventbus.AlertEvent{}, rec, fmt.Errorf("decode alert record: %w", err)
	}
	return a, rec, nil
}

func (c *Consumer) Ack(ctx context.Context, r logbus.Record) error {
	return c.consumer.Ack(ctx, r)
}

func (c *Consumer) Close() error {
	return c.consumer.Close()
}

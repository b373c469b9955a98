// Package processing implements the Metric Consumer: drains metrics.raw and
// drives the Aggregator and Alert Engine concurrently per event, acking only
// on full success (SPEC_FULL.md §12).
package processing

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/qiniu/monitorflow/internal/aggregator"
	"github.com/qiniu/monitorflow/internal/alertengine"
	"github.com/qiniu/monitorflow/internal/eventbus"
	"github.com/qiniu/monitorflow/internal/logbus"
	"github.com/qiniu/monitorflow/internal/selfmetrics"
)

// Consumer drains metrics.raw with the processing.metrics group.
type Consumer struct {
	source     logbus.Consumer
	aggregator *aggregator.Aggregator
	engine     *alertengine.Engine
}

func New(source logbus.Consumer, agg *aggregator.Aggregator, engine *alertengine.Engine) *Consumer {
	return &Consumer{source: source, aggregator: agg, engine: engine}
}

// Run loops until ctx is cancelled, processing one record at a time. Within
// one partition, delivery order is preserved by the log itself; this loop
// does not fan out across partitions on its own, matching the teacher's
// single-goroutine-per-worker consumer style — run multiple Consumer
// instances (one per partition assignment) for partition-level concurrency.
func (c *Consumer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		rec, err := c.source.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Msg("processing: fetch failed, retrying")
			continue
		}

		if err := c.handle(ctx, rec); err != nil {
			log.Error().Err(err).Int64("offset", rec.Offset).Msg("processing: record left unacknowledged for redelivery")
			continue
		}

		if err := c.source.Ack(ctx, rec); err != nil {
			log.Error().Err(err).Int64("offset", rec.Offset).Msg("processing: ack failed")
		}
		selfmetrics.RecordsProcessed.Inc()
	}
}

func (c *Consumer) handle(ctx context.Context, rec logbus.Record) error {
	var m eventbus.MetricEvent
	if err := json.Unmarshal(rec.Value, &m); err != nil {
		// Codec failure on a processing-group record is ambiguous about
		// safety to skip, so the record is left unacknowledged.
		return fmt.Errorf("decode metric record: %w", err)
	}

	var alertErr error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		c.aggregator.Process(ctx, m)
	}()

	go func() {
		defer wg.Done()
		alertErr = c.engine.Evaluate(ctx, m)
	}()

	wg.Wait()

	return alertErr
}

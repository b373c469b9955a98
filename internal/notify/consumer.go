// Package notify implements the Notification Dispatch Surface: consumes the
// alerts topic, throttles, and fans triggered/resolved alerts out to the
// enabled channel sinks (SPEC_FULL.md §17).
package notify

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/qiniu/monitorflow/internal/alertbus"
	"github.com/qiniu/monitorflow/internal/eventbus"
	"github.com/qiniu/monitorflow/internal/notify/throttle"
)

// Dispatcher drains alerts with the notification.alerts group.
type Dispatcher struct {
	consumer  *alertbus.Consumer
	throttler *throttle.Throttler
	sinks     []Sink
}

func NewDispatcher(consumer *alertbus.Consumer, throttler *throttle.Throttler, sinks []Sink) *Dispatcher {
	return &Dispatcher{consumer: consumer, throttler: throttler, sinks: sinks}
}

// Run loops until ctx is cancelled, dispatching one alert at a time. A
// decode failure is logged and acknowledged (the record can never become
// decodable on redelivery); a sink failure is logged but does not block
// acking the other sinks or the record itself, since delivery to external
// channels is explicitly best-effort (SPEC_FULL.md §17).
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		alert, rec, err := d.consumer.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Msg("notify: fetch/decode failed")
			if rec.Value != nil {
				_ = d.consumer.Ack(ctx, rec)
			}
			continue
		}

		d.dispatch(ctx, alert)

		if err := d.consumer.Ack(ctx, rec); err != nil {
			log.Error().Err(err).Int64("offset", rec.Offset).Msg("notify: ack failed")
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, alert eventbus.AlertEvent) {
	if !d.throttler.Should(alert) {
		log.Debug().Str("alertId", alert.AlertID).Str("service", alert.ServiceName).Msg("notify: throttled")
		return
	}
	for _, sink := range d.sinks {
		if err := sink.Send(ctx, alert); err != nil {
			log.Error().Err(err).Str("channel", sink.Name()).Str("alertId", alert.AlertID).Msg("notify: sink send failed")
		}
	}
}

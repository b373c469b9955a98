package notify

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/qiniu/monitorflow/internal/eventbus"
)

// Sink delivers a triggered or resolved alert to an external channel.
// Real delivery (SMTP, webhook signing, Slack formatting) is out of scope
// per SPEC_FULL.md §17 — these sinks log the formatted message and report
// success.
type Sink interface {
	Name() string
	Send(ctx context.Context, alert eventbus.AlertEvent) error
}

type SlackSink struct{ WebhookURL string }

func (s SlackSink) Name() string { return "slack" }

func (s SlackSink) Send(_ context.Context, alert eventbus.AlertEvent) error {
	log.Info().
		Str("channel", "slack").
		Str("alertId", alert.AlertID).
		Str("service", alert.ServiceName).
		Str("message", alert.Message).
		Msg("notify: dispatched")
	return nil
}

type EmailSink struct{ Recipients []string }

func (s EmailSink) Name() string { return "email" }

func (s EmailSink) Send(_ context.Context, alert eventbus.AlertEvent) error {
	log.Info().
		Str("channel", "email").
		Str("alertId", alert.AlertID).
		Str("service", alert.ServiceName).
		Strs("recipients", s.Recipients).
		Str("message", alert.Message).
		Msg("notify: dispatched")
	return nil
}

type WebhookSink struct{ URL string }

func (s WebhookSink) Name() string { return "webhook" }

func (s WebhookSink) Send(_ context.Context, alert eventbus.AlertEvent) error {
	log.Info().
		Str("channel", "webhook").
		Str("alertId", alert.AlertID).
		Str("service", alert.ServiceName).
		Str("url", s.URL).
		Str("message", alert.Message).
		Msg("notify: dispatched")
	return nil
}

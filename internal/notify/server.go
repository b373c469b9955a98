package notify

import (
	"github.com/rs/zerolog/log"

	"github.com/qiniu/monitorflow/internal/config"
	"github.com/qiniu/monitorflow/internal/notify/throttle"
)

// BuildSinks resolves the configured channel names into concrete Sinks.
// Unknown channel names are skipped with a log line rather than rejected,
// matching the teacher's tolerant-config style elsewhere in this repo.
func BuildSinks(cfg config.NotificationsConfig) []Sink {
	sinks := make([]Sink, 0, len(cfg.EnabledChannels))
	for _, name := range cfg.EnabledChannels {
		switch name {
		case "slack":
			sinks = append(sinks, SlackSink{})
		case "email":
			sinks = append(sinks, EmailSink{})
		case "webhook":
			sinks = append(sinks, WebhookSink{})
		default:
			log.Warn().Str("channel", name).Msg("notify: skipping unknown notification channel")
		}
	}
	return sinks
}

// ThrottleConfig adapts the notification config's throttling block to the
// throttle package's Config shape.
func ThrottleConfig(cfg config.ThrottlingConfig) throttle.Config {
	return throttle.Config{
		Enabled:                     cfg.Enabled,
		DuplicateSuppressionMinutes: cfg.DuplicateSuppressionMinutes,
		MaxNotificationsPerHour:     cfg.MaxNotificationsPerHour,
	}
}

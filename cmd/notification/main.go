package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/qiniu/monitorflow/internal/alertbus"
	"github.com/qiniu/monitorflow/internal/config"
	"github.com/qiniu/monitorflow/internal/logbus"
	"github.com/qiniu/monitorflow/internal/notify"
	"github.com/qiniu/monitorflow/internal/notify/throttle"
	"github.com/qiniu/monitorflow/internal/selfmetrics"
)

func main() {
	log.Info().Msg("Starting monitorflow notification server")
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setLogLevel(cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	alertsConsumer := logbus.NewKafkaConsumer(logbus.KafkaConsumerConfig{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.Topics.Alerts,
		GroupID: logbus.GroupNotificationAlerts,
	})
	defer alertsConsumer.Close()

	consumer := alertbus.NewConsumer(alertsConsumer)
	throttler := throttle.New(notify.ThrottleConfig(cfg.Notifications.Throttling))
	sinks := notify.BuildSinks(cfg.Notifications)

	go serveMetrics(cfg.Server.BindAddr)

	dispatcher := notify.NewDispatcher(consumer, throttler, sinks)
	log.Info().Strs("channels", cfg.Notifications.EnabledChannels).Msg("notification: dispatcher loop starting")
	dispatcher.Run(ctx)
	log.Info().Msg("monitorflow notification server exit...")
}

func serveMetrics(bindAddr string) {
	router := gin.New()
	router.Use(gin.Recovery())
	selfmetrics.Register(router)
	if err := router.Run(bindAddr); err != nil {
		log.Error().Err(err).Msg("notification: self-metrics server exited")
	}
}

func setLogLevel(level string) {
	switch strings.ToLower(level) {
	case "trace":
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn", "warning":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

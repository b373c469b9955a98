package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/qiniu/monitorflow/internal/cache"
	"github.com/qiniu/monitorflow/internal/config"
	"github.com/qiniu/monitorflow/internal/logbus"
	"github.com/qiniu/monitorflow/internal/streaming"
)

func main() {
	log.Info().Msg("Starting monitorflow streaming server")
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setLogLevel(cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)

	bufferSize := cfg.Streaming.BufferSize
	metricsHub := streaming.NewHub(bufferSize)
	alertsHub := streaming.NewHub(bufferSize)
	latestHub := streaming.NewHub(bufferSize)

	server := &streaming.Server{
		Metrics:               metricsHub,
		Alerts:                alertsHub,
		LatestMetrics:         latestHub,
		HeartbeatIntervalSecs: cfg.Streaming.HeartbeatIntervalSeconds,
	}

	metricsConsumer := logbus.NewKafkaConsumer(logbus.KafkaConsumerConfig{
		Brokers:      cfg.Kafka.Brokers,
		Topic:        cfg.Kafka.Topics.MetricsRaw,
		GroupID:      logbus.GroupStreamingMetrics,
		LatestOffset: true,
	})
	defer metricsConsumer.Close()
	alertsConsumer := logbus.NewKafkaConsumer(logbus.KafkaConsumerConfig{
		Brokers:      cfg.Kafka.Brokers,
		Topic:        cfg.Kafka.Topics.Alerts,
		GroupID:      logbus.GroupStreamingAlerts,
		LatestOffset: true,
	})
	defer alertsConsumer.Close()

	streaming.StartTopicHubs(ctx, metricsConsumer, alertsConsumer, server)

	reader := &streaming.LatestMetricReader{
		Cache:    redisClient,
		Hub:      latestHub,
		Interval: time.Duration(cfg.Streaming.HeartbeatIntervalSeconds) * time.Second,
	}
	go reader.Run(ctx)

	router := streaming.BuildRouter(server)
	log.Info().Msgf("Starting streaming server on %s", cfg.Streaming.BindAddr)
	if err := router.Run(cfg.Streaming.BindAddr); err != nil {
		log.Fatal().Err(err).Msg("streaming server exited with error")
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

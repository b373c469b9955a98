package main

import (
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/qiniu/monitorflow/internal/config"
	"github.com/qiniu/monitorflow/internal/ingestion"
	"github.com/qiniu/monitorflow/internal/logbus"
	"github.com/qiniu/monitorflow/internal/middleware"
)

func main() {
	log.Info().Msg("Starting monitorflow ingestion server")
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setLogLevel(cfg.Logging.Level)

	producer := logbus.NewKafkaProducer(cfg.Kafka.Brokers)
	defer producer.Close()

	validator := ingestion.NewValidator(cfg.Ingestion.MaxValue, cfg.Validation.AllowedEnvironments)
	publisher := ingestion.NewPublisher(producer, cfg.Kafka.Topics.MetricsRaw)
	handler := ingestion.NewHandler(validator, publisher, cfg.Ingestion.MaxBatchSize)
	limiter := middleware.NewIngestLimiter(cfg.Ingestion.RateLimitPerSecond, cfg.Ingestion.RateLimitBurst)

	router := ingestion.BuildRouter(handler, limiter)
	log.Info().Msgf("Starting ingestion server on %s", cfg.Ingestion.BindAddr)
	if err := router.Run(cfg.Ingestion.BindAddr); err != nil {
		log.Fatal().Err(err).Msg("ingestion server exited with error")
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

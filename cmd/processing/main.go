package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/qiniu/monitorflow/internal/aggregator"
	"github.com/qiniu/monitorflow/internal/alertbus"
	"github.com/qiniu/monitorflow/internal/alertdb"
	"github.com/qiniu/monitorflow/internal/alertengine"
	"github.com/qiniu/monitorflow/internal/cache"
	"github.com/qiniu/monitorflow/internal/config"
	"github.com/qiniu/monitorflow/internal/logbus"
	"github.com/qiniu/monitorflow/internal/processing"
	"github.com/qiniu/monitorflow/internal/selfmetrics"
	"github.com/qiniu/monitorflow/internal/store/alertstore"
	"github.com/qiniu/monitorflow/internal/store/metricstore"
	"github.com/qiniu/monitorflow/internal/store/rulestore"
)

func main() {
	log.Info().Msg("Starting monitorflow processing & alert server")
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setLogLevel(cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := alertdb.New(cfg.Database.GetDSN())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to alert database")
	}
	defer db.Close()

	metricStore, err := metricstore.New(ctx, cfg.Database.GetDSN())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to metric history store")
	}
	defer metricStore.Close()

	redisClient := cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)

	rules := rulestore.NewPgStore(db)
	if err := rules.EnsureSeeded(ctx); err != nil {
		log.Error().Err(err).Msg("failed to seed default alert rules")
	}
	history := alertstore.NewPgStore(db)

	alertProducer := logbus.NewKafkaProducer(cfg.Kafka.Brokers)
	defer alertProducer.Close()
	publisher := alertbus.NewPublisher(alertProducer, cfg.Kafka.Topics.Alerts)

	ttl := time.Duration(cfg.Cache.TTLMinutes) * time.Minute
	agg := aggregator.New(redisClient, metricStore, ttl)
	engine := alertengine.New(rules, redisClient, history, publisher)

	metricConsumer := logbus.NewKafkaConsumer(logbus.KafkaConsumerConfig{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.Topics.MetricsRaw,
		GroupID: logbus.GroupProcessingMetrics,
	})
	defer metricConsumer.Close()

	go serveMetrics(cfg.Server.BindAddr)

	consumer := processing.New(metricConsumer, agg, engine)
	log.Info().Msg("processing: consumer loop starting")
	consumer.Run(ctx)
	log.Info().Msg("monitorflow processing server exit...")
}

func serveMetrics(bindAddr string) {
	router := gin.New()
	router.Use(gin.Recovery())
	selfmetrics.Register(router)
	if err := router.Run(bindAddr); err != nil {
		log.Error().Err(err).Msg("processing: self-metrics server exited")
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

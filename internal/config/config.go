package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

type Config struct {
	Server        ServerConfig        `json:"server"`
	Database      DatabaseConfig      `json:"database"`
	Logging       LoggingConfig       `json:"logging"`
	Redis         RedisConfig         `json:"redis"`
	Kafka         KafkaConfig         `json:"kafka"`
	Cache         CacheConfig         `json:"cache"`
	Ingestion     IngestionConfig     `json:"ingestion"`
	Validation    ValidationConfig    `json:"validation"`
	Streaming     StreamingConfig     `json:"streaming"`
	Notifications NotificationsConfig `json:"notifications"`
}

type ServerConfig struct {
	BindAddr string `json:"bindAddr"`
}

type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

// GetDSN builds a lib/pq-style connection string, matching the teacher's
// per-service DSN assembly.
func (d DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

type LoggingConfig struct {
	Level string `json:"level"`
}

type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type KafkaConfig struct {
	Brokers []string    `json:"brokers"`
	Topics  TopicConfig `json:"topics"`
}

type TopicConfig struct {
	MetricsRaw string `json:"metrics-raw"`
	Alerts     string `json:"alerts"`
}

type CacheConfig struct {
	TTLMinutes int `json:"ttlMinutes"`
}

type IngestionConfig struct {
	MaxValue            float64 `json:"maxValue"`
	MaxBatchSize        int     `json:"maxBatchSize"`
	BindAddr            string  `json:"bindAddr"`
	RateLimitPerSecond  float64 `json:"rateLimitPerSecond"`
	RateLimitBurst      int     `json:"rateLimitBurst"`
}

type ValidationConfig struct {
	AllowedEnvironments []string `json:"allowedEnvironments"`
}

type StreamingConfig struct {
	HeartbeatIntervalSeconds int `json:"heartbeatIntervalSeconds"`
	BufferSize               int `json:"bufferSize"`
	BindAddr                 string `json:"bindAddr"`
}

type NotificationsConfig struct {
	EnabledChannels []string         `json:"enabledChannels"`
	Throttling      ThrottlingConfig `json:"throttling"`
}

type ThrottlingConfig struct {
	Enabled                     bool `json:"enabled"`
	DuplicateSuppressionMinutes int  `json:"duplicateSuppressionMinutes"`
	MaxNotificationsPerHour     int  `json:"maxNotificationsPerHour"`
}

func Load() (*Config, error) {
	configFile := flag.String("f", "", "Path to configuration file")
	flag.Parse()

	cfg := &Config{
		Server: ServerConfig{
			BindAddr: getEnv("SERVER_BIND_ADDR", "0.0.0.0:8080"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "admin"),
			Password: getEnv("DB_PASSWORD", "password"),
			DBName:   getEnv("DB_NAME", "monitorflow"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "debug"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvList("KAFKA_BROKERS", []string{"localhost:9092"}),
			Topics: TopicConfig{
				MetricsRaw: getEnv("KAFKA_TOPIC_METRICS_RAW", "metrics.raw"),
				Alerts:     getEnv("KAFKA_TOPIC_ALERTS", "alerts"),
			},
		},
		Cache: CacheConfig{
			TTLMinutes: getEnvInt("CACHE_TTL_MINUTES", 10),
		},
		Ingestion: IngestionConfig{
			MaxValue:           getEnvFloat("INGESTION_MAX_VALUE", 1_000_000),
			MaxBatchSize:       getEnvInt("INGESTION_MAX_BATCH_SIZE", 100),
			BindAddr:           getEnv("INGESTION_BIND_ADDR", "0.0.0.0:8081"),
			RateLimitPerSecond: getEnvFloat("INGESTION_RATE_LIMIT_PER_SECOND", 50),
			RateLimitBurst:     getEnvInt("INGESTION_RATE_LIMIT_BURST", 100),
		},
		Validation: ValidationConfig{
			AllowedEnvironments: getEnvList("VALIDATION_ALLOWED_ENVIRONMENTS", []string{"dev", "staging", "production", "unknown"}),
		},
		Streaming: StreamingConfig{
			HeartbeatIntervalSeconds: getEnvInt("STREAMING_HEARTBEAT_INTERVAL_SECONDS", 15),
			BufferSize:               getEnvInt("STREAMING_BUFFER_SIZE", 256),
			BindAddr:                 getEnv("STREAMING_BIND_ADDR", "0.0.0.0:8082"),
		},
		Notifications: NotificationsConfig{
			EnabledChannels: getEnvList("NOTIFICATIONS_ENABLED_CHANNELS", []string{"slack"}),
			Throttling: ThrottlingConfig{
				Enabled:                     getEnvBool("NOTIFICATIONS_THROTTLING_ENABLED", true),
				DuplicateSuppressionMinutes: getEnvInt("NOTIFICATIONS_DUPLICATE_SUPPRESSION_MINUTES", 15),
				MaxNotificationsPerHour:     getEnvInt("NOTIFICATIONS_MAX_PER_HOUR", 10),
			},
		},
	}

	if *configFile != "" {
		if err := loadFromFile(cfg, *configFile); err != nil {
			log.Err(err)
			return nil, err
		}
	}

	applyDefaults(cfg)

	return cfg, nil
}

// applyDefaults fills reasonable values for anything the file omitted, the
// same belt-and-suspenders pass the teacher's Load() does after a file merge.
func applyDefaults(cfg *Config) {
	if cfg.Server.BindAddr == "" {
		cfg.Server.BindAddr = "0.0.0.0:8080"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "debug"
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{"localhost:9092"}
	}
	if cfg.Kafka.Topics.MetricsRaw == "" {
		cfg.Kafka.Topics.MetricsRaw = "metrics.raw"
	}
	if cfg.Kafka.Topics.Alerts == "" {
		cfg.Kafka.Topics.Alerts = "alerts"
	}
	if cfg.Cache.TTLMinutes <= 0 {
		cfg.Cache.TTLMinutes = 10
	}
	if cfg.Ingestion.MaxValue <= 0 {
		cfg.Ingestion.MaxValue = 1_000_000
	}
	if cfg.Ingestion.MaxBatchSize <= 0 {
		cfg.Ingestion.MaxBatchSize = 100
	}
	if cfg.Ingestion.RateLimitPerSecond <= 0 {
		cfg.Ingestion.RateLimitPerSecond = 50
	}
	if cfg.Ingestion.RateLimitBurst <= 0 {
		cfg.Ingestion.RateLimitBurst = 100
	}
	if cfg.Streaming.HeartbeatIntervalSeconds <= 0 {
		cfg.Streaming.HeartbeatIntervalSeconds = 15
	}
	if cfg.Streaming.BufferSize <= 0 {
		cfg.Streaming.BufferSize = 256
	}
	if cfg.Notifications.Throttling.DuplicateSuppressionMinutes <= 0 {
		cfg.Notifications.Throttling.DuplicateSuppressionMinutes = 15
	}
	if cfg.Notifications.Throttling.MaxNotificationsPerHour <= 0 {
		cfg.Notifications.Throttling.MaxNotificationsPerHour = 10
	}
}

func loadFromFile(cfg *Config, filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", filePath, err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", filePath, err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}

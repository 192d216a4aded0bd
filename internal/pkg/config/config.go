package config

import (
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	PostgresURL string `env:"POSTGRES_URL,required"`
	RedisAddr   string `env:"REDIS_ADDR,required"`

	APIServerAddr string  `env:"API_SERVER_ADDR" envDefault:":8080"`
	MetricsAddr   string  `env:"METRICS_ADDR" envDefault:":9091"`
	APIRateLimit  float64 `env:"API_RATE_LIMIT_RPS" envDefault:"100"`
	APIRateBurst  int     `env:"API_RATE_LIMIT_BURST" envDefault:"200"`
	MaxBodySize   int64   `env:"MAX_BODY_SIZE_BYTES" envDefault:"262144"` // 256KB

	TagCacheTTL      time.Duration `env:"TAG_CACHE_TTL" envDefault:"5m"`
	SanitizedTags    string        `env:"SANITIZED_HTML_TAGS" envDefault:"script,iframe,object,embed"`
	EventStreamGroup string        `env:"EVENT_STREAM_GROUP" envDefault:"tag-usage-projectors"`
	EventDLQStream   string        `env:"EVENT_DLQ_STREAM" envDefault:"question_events_dlq"`
	LedgerRetention  time.Duration `env:"LEDGER_RETENTION" envDefault:"168h"` // 7 days

	RelayBatchSize  int           `env:"RELAY_BATCH_SIZE" envDefault:"256"`
	RelayInterval   time.Duration `env:"RELAY_INTERVAL" envDefault:"1s"`
	RelayPublishRPS int           `env:"RELAY_PUBLISH_RPS" envDefault:"1000"`

	ProjectorBatchSize int           `env:"PROJECTOR_BATCH_SIZE" envDefault:"128"`
	ProjectorInterval  time.Duration `env:"PROJECTOR_INTERVAL" envDefault:"1s"`
	ReclaimMinIdle     time.Duration `env:"RECLAIM_MIN_IDLE" envDefault:"1m"`
	ReclaimInterval    time.Duration `env:"RECLAIM_INTERVAL" envDefault:"30s"`
	StreamMaxLen       int64         `env:"STREAM_MAX_LEN" envDefault:"1000000"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

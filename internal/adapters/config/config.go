package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"janus/pkg/errors"
)

type Config struct {
	App           AppConfig
	Postgres      PostgresConfig
	ClickHouse    ClickHouseConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	Fred          FredConfig
	MarketData    MarketDataConfig
	ErrorTracking ErrorTrackingConfig
	Metrics       MetricsConfig
	Workers       WorkerConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"janus"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" required:"true"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" required:"true"`
	Password string `envconfig:"POSTGRES_PASSWORD" required:"true"`
	Database string `envconfig:"POSTGRES_DB" required:"true"`
	SSLMode  string `envconfig:"POSTGRES_SSL_MODE" default:"disable"`
	MaxConns int    `envconfig:"POSTGRES_MAX_CONNS" default:"10"`
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

type ClickHouseConfig struct {
	Host     string `envconfig:"CLICKHOUSE_HOST" required:"true"`
	Port     int    `envconfig:"CLICKHOUSE_PORT" default:"9000"`
	User     string `envconfig:"CLICKHOUSE_USER" default:"default"`
	Password string `envconfig:"CLICKHOUSE_PASSWORD"`
	Database string `envconfig:"CLICKHOUSE_DB" default:"janus"`
}

type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" required:"true"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type KafkaConfig struct {
	// Empty broker list disables event publishing (no-op publisher)
	Brokers []string `envconfig:"KAFKA_BROKERS"`
}

// FredConfig configures the statistics-source API (series observations)
type FredConfig struct {
	APIKey   string        `envconfig:"FRED_API_KEY"`
	BaseURL  string        `envconfig:"FRED_BASE_URL" default:"https://api.stlouisfed.org"`
	Lookback int           `envconfig:"FRED_LOOKBACK_POINTS" default:"48"`
	Timeout  time.Duration `envconfig:"FRED_TIMEOUT" default:"15s"`
}

// MarketDataConfig configures the market-data provider (candles, funding, OI)
type MarketDataConfig struct {
	BaseURL         string        `envconfig:"MARKET_DATA_BASE_URL" required:"true"`
	APIKey          string        `envconfig:"MARKET_DATA_API_KEY"`
	Symbol          string        `envconfig:"MARKET_DATA_SYMBOL" default:"BTCUSDT"`
	Exchange        string        `envconfig:"MARKET_DATA_EXCHANGE" default:"binance"`
	Timeout         time.Duration `envconfig:"MARKET_DATA_TIMEOUT" default:"20s"`
	CallDelay       time.Duration `envconfig:"MARKET_DATA_CALL_DELAY" default:"300ms"`
	OccurrenceDelay time.Duration `envconfig:"MARKET_DATA_OCCURRENCE_DELAY" default:"2s"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"true"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

type MetricsConfig struct {
	Enabled bool `envconfig:"METRICS_ENABLED" default:"true"`
	Port    int  `envconfig:"METRICS_PORT" default:"9091"`
}

// WorkerConfig contains intervals for the background jobs.
// All jobs are idempotent batch passes, so the intervals only trade
// freshness against provider quota.
type WorkerConfig struct {
	ScheduleExtendInterval   time.Duration `envconfig:"WORKER_SCHEDULE_EXTEND_INTERVAL" default:"24h"`
	ObservedSyncInterval     time.Duration `envconfig:"WORKER_OBSERVED_SYNC_INTERVAL" default:"1h"`
	ReactionBackfillInterval time.Duration `envconfig:"WORKER_REACTION_BACKFILL_INTERVAL" default:"6h"`

	ScheduleExtendEnabled   bool `envconfig:"WORKER_SCHEDULE_EXTEND_ENABLED" default:"true"`
	ObservedSyncEnabled     bool `envconfig:"WORKER_OBSERVED_SYNC_ENABLED" default:"true"`
	ReactionBackfillEnabled bool `envconfig:"WORKER_REACTION_BACKFILL_ENABLED" default:"true"`
}

// Load reads configuration from environment variables.
// It first tries to load a .env file (useful for local development).
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	return &cfg, nil
}

package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"consilium/pkg/errors"
)

type Config struct {
	App           AppConfig
	Consensus     ConsensusConfig
	Postgres      PostgresConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	Metrics       MetricsConfig
	ErrorTracking ErrorTrackingConfig
	Worker        WorkerConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"consilium"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool   `envconfig:"DEBUG" default:"false"`
}

// ConsensusConfig holds aggregation thresholds. Defaults mirror the values the
// engine was calibrated with; override only with recalibrated numbers.
type ConsensusConfig struct {
	BullishThreshold   float64       `envconfig:"CONSENSUS_BULLISH_THRESHOLD" default:"65"`
	BearishThreshold   float64       `envconfig:"CONSENSUS_BEARISH_THRESHOLD" default:"35"`
	ConflictScoreGap   float64       `envconfig:"CONSENSUS_CONFLICT_SCORE_GAP" default:"25"`
	ConflictMaxDoubt   float64       `envconfig:"CONSENSUS_CONFLICT_MAX_DOUBT" default:"0.5"`
	ParallelInvocation bool          `envconfig:"CONSENSUS_PARALLEL_INVOCATION" default:"true"`
	ModuleTimeout      time.Duration `envconfig:"CONSENSUS_MODULE_TIMEOUT" default:"10s"`
}

type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" required:"true"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" required:"true"`
	Password string `envconfig:"POSTGRES_PASSWORD" required:"true"`
	Database string `envconfig:"POSTGRES_DB" required:"true"`
	SSLMode  string `envconfig:"POSTGRES_SSL_MODE" default:"disable"`
	MaxConns int    `envconfig:"POSTGRES_MAX_CONNS" default:"25"`
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
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
	Brokers []string `envconfig:"KAFKA_BROKERS" required:"true"`
	GroupID string   `envconfig:"KAFKA_GROUP_ID" default:"consilium"`
}

type MetricsConfig struct {
	Enabled bool   `envconfig:"METRICS_ENABLED" default:"true"`
	Addr    string `envconfig:"METRICS_ADDR" default:":9090"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"true"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// WorkerConfig contains settings for the periodic consensus sweep
type WorkerConfig struct {
	Symbols       []string      `envconfig:"WORKER_SYMBOLS" default:"BTC-USDT,ETH-USDT"`
	SweepInterval time.Duration `envconfig:"WORKER_SWEEP_INTERVAL" default:"5m"`
	RatePerSecond float64       `envconfig:"WORKER_RATE_PER_SECOND" default:"2"`
	RateBurst     int           `envconfig:"WORKER_RATE_BURST" default:"1"`
}

// Load reads configuration from environment variables.
// A local .env file is applied first when present (development convenience).
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Consensus.BearishThreshold >= c.Consensus.BullishThreshold {
		return errors.Newf(
			"bearish threshold %.1f must be below bullish threshold %.1f",
			c.Consensus.BearishThreshold, c.Consensus.BullishThreshold,
		)
	}
	if c.Consensus.ConflictScoreGap <= 0 || c.Consensus.ConflictScoreGap > 100 {
		return errors.Newf("conflict score gap %.1f out of (0,100]", c.Consensus.ConflictScoreGap)
	}
	return nil
}

package config

import (
	"time"
)

type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Logging        LoggingConfig        `mapstructure:"logging"`
	Draw           DrawConfig           `mapstructure:"draw"`
	Audit          AuditConfig          `mapstructure:"audit"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Broker         BrokerConfig         `mapstructure:"broker"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	API            APIConfig            `mapstructure:"api"`
	Tracing        TracingConfig        `mapstructure:"tracing"`
}

type ServerConfig struct {
	Port                int           `mapstructure:"port"`
	ReadTimeoutSeconds  time.Duration `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds time.Duration `mapstructure:"write_timeout_seconds"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DrawConfig holds service-wide draw limits. Per-draw rules live in draw
// config files, not here.
type DrawConfig struct {
	Epsilon        float64 `mapstructure:"epsilon"`
	MaxWinners     int     `mapstructure:"max_winners"`
	DefaultEventID string  `mapstructure:"default_event_id"`
}

type AuditConfig struct {
	Backend         string `mapstructure:"backend"` // "file", "postgres", "mongodb", "redis"
	Directory       string `mapstructure:"directory"`
	RedisStream     string `mapstructure:"redis_stream"`
	MongoCollection string `mapstructure:"mongo_collection"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig `mapstructure:"postgres"`
	Redis         RedisConfig    `mapstructure:"redis"`
	MongoDB       MongoDBConfig  `mapstructure:"mongodb"`
	RunMigrations bool           `mapstructure:"run_migrations"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MongoDBConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type BrokerConfig struct {
	Type  string      `mapstructure:"type"` // "" disables notifications, "kafka"
	Kafka KafkaConfig `mapstructure:"kafka"`
}

type KafkaConfig struct {
	Brokers         []string    `mapstructure:"brokers"`
	DrawEventsTopic string      `mapstructure:"draw_events_topic"`
	Retry           RetryConfig `mapstructure:"retry"`
}

type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time"`
}

type CircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	MinRequests  uint32        `mapstructure:"min_requests"`
}

type APIConfig struct {
	RateLimit     RateLimitConfig `mapstructure:"rate_limit"`
	MaxPopulation int             `mapstructure:"max_population"`
}

type RateLimitConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	RPS             float64 `mapstructure:"rps"`
	Burst           int     `mapstructure:"burst"`
	CleanupInterval int     `mapstructure:"cleanup_interval"`
	MaxAge          int     `mapstructure:"max_age"`
}

type TracingConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	ServiceName string        `mapstructure:"service_name"`
	OTLP        OTLPConfig    `mapstructure:"otlp"`
	Sampler     SamplerConfig `mapstructure:"sampler"`
}

type OTLPConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`
}

type SamplerConfig struct {
	Type  string  `mapstructure:"type"`
	Param float64 `mapstructure:"param"`
}

func Load(configFile string) (*Config, error) {
	return LoadConfig(configFile)
}

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"raffle/internal/constants"
)

// LoadConfig reads configFile (YAML) on top of built-in defaults and
// environment overrides. An empty configFile yields defaults + env only,
// which is enough for the file-backed CLI.
func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()

	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindEnvVariables(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(v, &cfg)

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout_seconds", 15*time.Second)
	v.SetDefault("server.write_timeout_seconds", 15*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("draw.epsilon", constants.DefaultEpsilon)
	v.SetDefault("draw.max_winners", constants.DefaultMaxWinners)
	v.SetDefault("draw.default_event_id", constants.DefaultEventID)

	v.SetDefault("audit.backend", constants.AuditBackendFile)
	v.SetDefault("audit.directory", constants.DefaultAuditDirectory)
	v.SetDefault("audit.redis_stream", constants.DefaultAuditStream)
	v.SetDefault("audit.mongo_collection", constants.DefaultAuditCollection)

	v.SetDefault("database.mongodb.database", constants.DefaultMongoDBName)
	v.SetDefault("database.postgres.sslmode", "disable")

	v.SetDefault("broker.kafka.draw_events_topic", constants.DefaultDrawEventsTopic)
	v.SetDefault("broker.kafka.retry.max_attempts", 3)
	v.SetDefault("broker.kafka.retry.initial_interval", 200*time.Millisecond)
	v.SetDefault("broker.kafka.retry.max_interval", 5*time.Second)
	v.SetDefault("broker.kafka.retry.multiplier", 2.0)

	v.SetDefault("api.max_population", constants.DefaultMaxPopulation)
	v.SetDefault("api.rate_limit.rps", 10.0)
	v.SetDefault("api.rate_limit.burst", 20)
	v.SetDefault("api.rate_limit.cleanup_interval", 300)
	v.SetDefault("api.rate_limit.max_age", 600)
}

func bindEnvVariables(v *viper.Viper) {
	v.BindEnv("audit.backend", "AUDIT_BACKEND")
	v.BindEnv("audit.directory", "AUDIT_DIRECTORY")

	v.BindEnv("database.postgres.host", "DATABASE_POSTGRES_HOST")
	v.BindEnv("database.postgres.port", "DATABASE_POSTGRES_PORT")
	v.BindEnv("database.postgres.user", "DATABASE_POSTGRES_USER")
	v.BindEnv("database.postgres.password", "DATABASE_POSTGRES_PASSWORD")
	v.BindEnv("database.postgres.dbname", "DATABASE_POSTGRES_DBNAME")
	v.BindEnv("database.postgres.sslmode", "DATABASE_POSTGRES_SSLMODE")

	v.BindEnv("database.redis.host", "DATABASE_REDIS_HOST")
	v.BindEnv("database.redis.port", "DATABASE_REDIS_PORT")
	v.BindEnv("database.redis.password", "DATABASE_REDIS_PASSWORD")
	v.BindEnv("database.redis.db", "DATABASE_REDIS_DB")

	v.BindEnv("database.mongodb.uri", "DATABASE_MONGODB_URI")
	v.BindEnv("database.mongodb.database", "DATABASE_MONGODB_DATABASE")

	v.BindEnv("broker.type", "BROKER_TYPE")
	v.BindEnv("broker.kafka.draw_events_topic", "BROKER_KAFKA_DRAW_EVENTS_TOPIC")

	v.BindEnv("server.port", "SERVER_PORT")

	v.BindEnv("logging.level", "LOGGING_LEVEL")
	v.BindEnv("logging.format", "LOGGING_FORMAT")

	v.BindEnv("tracing.otlp.endpoint", "TRACING_OTLP_ENDPOINT")
	v.BindEnv("tracing.otlp.insecure", "TRACING_OTLP_INSECURE")
	v.BindEnv("tracing.enabled", "TRACING_ENABLED")
	v.BindEnv("tracing.service_name", "TRACING_SERVICE_NAME")
}

func applyEnvOverrides(v *viper.Viper, cfg *Config) {
	if brokersEnv := v.GetString("BROKER_KAFKA_BROKERS"); brokersEnv != "" {
		brokers := strings.Split(brokersEnv, ",")
		for i := range brokers {
			brokers[i] = strings.TrimSpace(brokers[i])
		}
		if len(brokers) > 0 && brokers[0] != "" {
			cfg.Broker.Kafka.Brokers = brokers
		}
	}
}

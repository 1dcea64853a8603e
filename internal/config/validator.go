package config

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"raffle/internal/constants"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var sslModes = []string{"disable", "allow", "prefer", "require", "verify-ca", "verify-full"}

// problems collects every violation instead of stopping at the first.
type problems []error

func (p *problems) add(field, format string, args ...interface{}) {
	*p = append(*p, &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (p *problems) port(field string, port int) {
	if port < 1 || port > 65535 {
		p.add(field, "port must be between 1 and 65535, got %d", port)
	}
}

// ValidateStatic checks the settings that can be judged without connecting
// to anything. All violations are reported together.
func ValidateStatic(cfg *Config) error {
	var p problems

	p.port("server.port", cfg.Server.Port)
	if cfg.Server.ReadTimeoutSeconds <= 0 {
		p.add("server.read_timeout_seconds", "must be positive")
	}
	if cfg.Server.WriteTimeoutSeconds <= 0 {
		p.add("server.write_timeout_seconds", "must be positive")
	}

	if math.IsNaN(cfg.Draw.Epsilon) || cfg.Draw.Epsilon <= 0 {
		p.add("draw.epsilon", "must be strictly positive, got %v", cfg.Draw.Epsilon)
	}
	if cfg.Draw.MaxWinners < 0 {
		p.add("draw.max_winners", "must be non-negative (0 disables the limit)")
	}

	p.audit(cfg.Audit, cfg.Database)
	p.database(cfg.Database)
	p.broker(cfg.Broker)

	return errors.Join(p...)
}

func (p *problems) audit(cfg AuditConfig, db DatabaseConfig) {
	switch cfg.Backend {
	case constants.AuditBackendFile:
		if cfg.Directory == "" {
			p.add("audit.directory", "required for the file audit backend")
		}
	case constants.AuditBackendPostgres:
		if db.Postgres.Host == "" {
			p.add("database.postgres.host", "required for the postgres audit backend")
		}
	case constants.AuditBackendMongoDB:
		if db.MongoDB.URI == "" {
			p.add("database.mongodb.uri", "required for the mongodb audit backend")
		}
	case constants.AuditBackendRedis:
		if db.Redis.Host == "" {
			p.add("database.redis.host", "required for the redis audit backend")
		}
		if cfg.RedisStream == "" {
			p.add("audit.redis_stream", "required for the redis audit backend")
		}
	default:
		p.add("audit.backend", "unknown backend %q (supported: file, postgres, mongodb, redis)", cfg.Backend)
	}
}

func (p *problems) database(cfg DatabaseConfig) {
	if pg := cfg.Postgres; pg.Host != "" {
		p.port("database.postgres.port", pg.Port)
		if pg.User == "" {
			p.add("database.postgres.user", "required")
		}
		if pg.DBName == "" {
			p.add("database.postgres.dbname", "required")
		}
		if pg.SSLMode != "" && !slices.Contains(sslModes, strings.ToLower(pg.SSLMode)) {
			p.add("database.postgres.sslmode", "invalid mode %q (valid: %s)", pg.SSLMode, strings.Join(sslModes, ", "))
		}
	}

	if cfg.Redis.Host != "" {
		p.port("database.redis.port", cfg.Redis.Port)
	}

	if uri := cfg.MongoDB.URI; uri != "" && !strings.HasPrefix(uri, "mongodb://") && !strings.HasPrefix(uri, "mongodb+srv://") {
		p.add("database.mongodb.uri", "must start with mongodb:// or mongodb+srv://")
	}
}

func (p *problems) broker(cfg BrokerConfig) {
	switch cfg.Type {
	case "":
		return
	case "kafka":
	default:
		p.add("broker.type", "unknown broker %q (supported: kafka)", cfg.Type)
		return
	}

	k := cfg.Kafka
	if len(k.Brokers) == 0 {
		p.add("broker.kafka.brokers", "at least one broker is required")
	}
	for i, addr := range k.Brokers {
		if addr == "" {
			p.add(fmt.Sprintf("broker.kafka.brokers[%d]", i), "empty address")
		}
	}
	if k.DrawEventsTopic == "" {
		p.add("broker.kafka.draw_events_topic", "required")
	}

	r := k.Retry
	if r.MaxAttempts < 0 {
		p.add("broker.kafka.retry.max_attempts", "must be non-negative")
	}
	if r.MaxInterval > 0 && r.InitialInterval > 0 && r.MaxInterval < r.InitialInterval {
		p.add("broker.kafka.retry.max_interval", "must not be below initial_interval")
	}
	if r.Multiplier <= 0 {
		p.add("broker.kafka.retry.multiplier", "must be positive")
	}
}

package constants

import "time"

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	ShutdownTimeout = 5 * time.Second
	HealthTimeout   = 5 * time.Second
)

const (
	AuditBackendFile     = "file"
	AuditBackendPostgres = "postgres"
	AuditBackendMongoDB  = "mongodb"
	AuditBackendRedis    = "redis"
)

const (
	DefaultAuditDirectory  = "runs"
	DefaultAuditStream     = "raffle:audits"
	DefaultAuditCollection = "draw_audits"
	DefaultMongoDBName     = "raffle"
)

const (
	DefaultDrawEventsTopic = "draw_events"
	DrawEventSource        = "raffle"
)

const (
	// DefaultEpsilon is the weight floor applied to non-positive products.
	DefaultEpsilon       = 1e-12
	DefaultFactor        = 1.0
	DefaultMaxWinners    = 100000
	DefaultMaxPopulation = 1000000
	DefaultEventID       = "default"
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

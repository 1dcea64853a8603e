package health

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.mongodb.org/mongo-driver/mongo"

	"raffle/internal/constants"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

type Checker interface {
	Check(ctx context.Context) error
	Name() string
}

type Health struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
}

type CheckResult struct {
	Status    Status    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Optional  bool      `json:"optional,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type registered struct {
	checker  Checker
	optional bool
}

// CheckerRegistry runs every registered check. A failing required check makes
// the service unhealthy; a failing optional one only degrades it.
type CheckerRegistry struct {
	mu       sync.RWMutex
	checkers []registered
}

func NewCheckerRegistry() *CheckerRegistry {
	return &CheckerRegistry{
		checkers: make([]registered, 0),
	}
}

func (r *CheckerRegistry) Register(checker Checker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkers = append(r.checkers, registered{checker: checker})
}

// RegisterOptional adds a check for a dependency draws can run without,
// such as the event broker.
func (r *CheckerRegistry) RegisterOptional(checker Checker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkers = append(r.checkers, registered{checker: checker, optional: true})
}

func (r *CheckerRegistry) Check(ctx context.Context) Health {
	r.mu.RLock()
	checkers := make([]registered, len(r.checkers))
	copy(checkers, r.checkers)
	r.mu.RUnlock()

	results := make(map[string]CheckResult, len(checkers))
	allHealthy := true
	anyDegraded := false

	for _, c := range checkers {
		err := c.checker.Check(ctx)
		result := CheckResult{
			Optional:  c.optional,
			Timestamp: time.Now(),
		}

		switch {
		case err == nil:
			result.Status = StatusHealthy
		case c.optional:
			result.Status = StatusDegraded
			result.Message = err.Error()
			anyDegraded = true
		default:
			result.Status = StatusUnhealthy
			result.Message = err.Error()
			allHealthy = false
		}

		results[c.checker.Name()] = result
	}

	overallStatus := StatusHealthy
	if !allHealthy {
		overallStatus = StatusUnhealthy
	} else if anyDegraded {
		overallStatus = StatusDegraded
	}

	return Health{
		Status:    overallStatus,
		Timestamp: time.Now(),
		Checks:    results,
	}
}

type PostgreSQLChecker struct {
	db *sql.DB
}

func NewPostgreSQLChecker(db *sql.DB) *PostgreSQLChecker {
	return &PostgreSQLChecker{db: db}
}

func (c *PostgreSQLChecker) Name() string {
	return "postgresql"
}

func (c *PostgreSQLChecker) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, constants.HealthTimeout)
	defer cancel()

	if err := c.db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgresql ping failed: %w", err)
	}
	return nil
}

type RedisChecker struct {
	client *redis.Client
}

func NewRedisChecker(client *redis.Client) *RedisChecker {
	return &RedisChecker{client: client}
}

func (c *RedisChecker) Name() string {
	return "redis"
}

func (c *RedisChecker) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, constants.HealthTimeout)
	defer cancel()

	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

type MongoDBChecker struct {
	client *mongo.Client
}

func NewMongoDBChecker(client *mongo.Client) *MongoDBChecker {
	return &MongoDBChecker{client: client}
}

func (c *MongoDBChecker) Name() string {
	return "mongodb"
}

func (c *MongoDBChecker) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, constants.HealthTimeout)
	defer cancel()

	if err := c.client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("mongodb ping failed: %w", err)
	}
	return nil
}

// KafkaChecker dials the first reachable broker.
type KafkaChecker struct {
	brokers []string
}

func NewKafkaChecker(brokers []string) *KafkaChecker {
	return &KafkaChecker{brokers: brokers}
}

func (c *KafkaChecker) Name() string {
	return "kafka"
}

func (c *KafkaChecker) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, constants.HealthTimeout)
	defer cancel()

	var lastErr error
	for _, addr := range c.brokers {
		conn, err := kafka.DialContext(ctx, "tcp", addr)
		if err != nil {
			lastErr = err
			continue
		}
		return conn.Close()
	}
	if lastErr == nil {
		return fmt.Errorf("no kafka brokers configured")
	}
	return fmt.Errorf("kafka dial failed: %w", lastErr)
}

// DirectoryChecker verifies the file audit directory exists and accepts new
// files.
type DirectoryChecker struct {
	dir string
}

func NewDirectoryChecker(dir string) *DirectoryChecker {
	return &DirectoryChecker{dir: dir}
}

func (c *DirectoryChecker) Name() string {
	return "audit_directory"
}

func (c *DirectoryChecker) Check(context.Context) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("audit directory unavailable: %w", err)
	}
	f, err := os.CreateTemp(c.dir, ".healthcheck-*")
	if err != nil {
		return fmt.Errorf("audit directory not writable: %w", err)
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

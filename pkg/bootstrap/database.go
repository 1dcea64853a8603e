package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"raffle/internal/config"
	"raffle/internal/logger"
	apperrors "raffle/pkg/errors"
	"raffle/pkg/retry"
)

// connectPolicy bounds how long startup waits for an audit database.
var connectPolicy = retry.Policy{
	MaxAttempts:     3,
	InitialInterval: 500 * time.Millisecond,
	MaxInterval:     2 * time.Second,
	Multiplier:      2,
}

// DatabaseConnector opens the connection an audit backend needs. Each Open
// method fails with a configuration error when its connection is not
// configured.
type DatabaseConnector struct {
	Config *config.Config
	Logger logger.Logger
}

func NewDatabaseConnector(cfg *config.Config, log logger.Logger) *DatabaseConnector {
	return &DatabaseConnector{Config: cfg, Logger: log}
}

// PostgresDSN renders cfg as a lib/pq connection URL. Credentials are escaped;
// a zero port is left to the driver default.
func PostgresDSN(cfg config.PostgresConfig) string {
	host := cfg.Host
	if cfg.Port > 0 {
		host = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	}
	sslmode := cfg.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     host,
		Path:     "/" + cfg.DBName,
		RawQuery: url.Values{"sslmode": {sslmode}}.Encode(),
	}
	return u.String()
}

func (dc *DatabaseConnector) OpenPostgres(ctx context.Context) (*sql.DB, error) {
	pg := dc.Config.Database.Postgres
	if pg.Host == "" {
		return nil, notConfigured("database.postgres.host")
	}

	db, err := sql.Open("postgres", PostgresDSN(pg))
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := dc.ping(ctx, "postgres", db.PingContext); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres at %s unreachable: %w", pg.Host, err)
	}

	dc.Logger.Infow("PostgreSQL connected", "host", pg.Host, "dbname", pg.DBName)
	return db, nil
}

func (dc *DatabaseConnector) OpenRedis(ctx context.Context) (*redis.Client, error) {
	rc := dc.Config.Database.Redis
	if rc.Host == "" {
		return nil, notConfigured("database.redis.host")
	}

	addr := rc.Host
	if rc.Port > 0 {
		addr = net.JoinHostPort(rc.Host, strconv.Itoa(rc.Port))
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: rc.Password, DB: rc.DB})

	if err := dc.ping(ctx, "redis", func(ctx context.Context) error { return client.Ping(ctx).Err() }); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis at %s unreachable: %w", addr, err)
	}

	dc.Logger.Infow("Redis connected", "addr", addr, "db", rc.DB)
	return client, nil
}

func (dc *DatabaseConnector) OpenMongo(ctx context.Context) (*mongo.Client, error) {
	mc := dc.Config.Database.MongoDB
	if mc.URI == "" {
		return nil, notConfigured("database.mongodb.uri")
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mc.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := dc.ping(ctx, "mongodb", func(ctx context.Context) error { return client.Ping(ctx, nil) }); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("mongodb unreachable: %w", err)
	}

	dc.Logger.Infow("MongoDB connected", "database", mc.Database)
	return client, nil
}

func (dc *DatabaseConnector) ping(ctx context.Context, name string, ping func(context.Context) error) error {
	return retry.Do(ctx, connectPolicy, func() error {
		return ping(ctx)
	}, func(attempt int, err error, next time.Duration) {
		dc.Logger.Warnw("Database not reachable yet",
			"database", name,
			"attempt", attempt,
			"next_delay", next,
			"error", err,
		)
	})
}

func notConfigured(key string) error {
	return apperrors.ErrConfiguration.WithMessage("%s is not set", key).WithDetail("key", key)
}

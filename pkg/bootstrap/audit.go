package bootstrap

import (
	"context"
	"fmt"

	"raffle/internal/audit"
	"raffle/internal/constants"
	"raffle/pkg/health"
	"raffle/pkg/migrations"
)

// AuditBackend is the configured audit store plus the connection behind it.
type AuditBackend struct {
	Store audit.Store
	close func(context.Context) error
}

// InitAuditStore connects the configured audit backend, prepares its schema
// when migrations are enabled and registers its health check. Remote
// backends sit behind a circuit breaker; every backend is instrumented.
func (dc *DatabaseConnector) InitAuditStore(ctx context.Context, registry *health.CheckerRegistry) (*AuditBackend, error) {
	cfg := dc.Config
	backend := &AuditBackend{}

	var store audit.Store
	switch cfg.Audit.Backend {
	case constants.AuditBackendFile, "":
		dir := cfg.Audit.Directory
		if dir == "" {
			dir = constants.DefaultAuditDirectory
		}
		store = audit.NewFileStore(dir)
		registry.Register(health.NewDirectoryChecker(dir))

	case constants.AuditBackendPostgres:
		db, err := dc.OpenPostgres(ctx)
		if err != nil {
			return nil, err
		}
		backend.close = func(context.Context) error { return db.Close() }
		if cfg.Database.RunMigrations {
			if err := migrations.MigratePostgres(db); err != nil {
				db.Close()
				return nil, err
			}
		}
		store = audit.NewCircuitBreakerStore(audit.NewPostgresStore(db), cfg.CircuitBreaker)
		registry.Register(health.NewPostgreSQLChecker(db))

	case constants.AuditBackendMongoDB:
		client, err := dc.OpenMongo(ctx)
		if err != nil {
			return nil, err
		}
		backend.close = client.Disconnect

		dbName := cfg.Database.MongoDB.Database
		if dbName == "" {
			dbName = constants.DefaultMongoDBName
		}
		collection := cfg.Audit.MongoCollection
		if collection == "" {
			collection = constants.DefaultAuditCollection
		}
		db := client.Database(dbName)
		if cfg.Database.RunMigrations {
			if err := migrations.EnsureAuditCollection(ctx, db, collection); err != nil {
				client.Disconnect(ctx)
				return nil, err
			}
		}
		store = audit.NewCircuitBreakerStore(audit.NewMongoStore(db, collection), cfg.CircuitBreaker)
		registry.Register(health.NewMongoDBChecker(client))

	case constants.AuditBackendRedis:
		client, err := dc.OpenRedis(ctx)
		if err != nil {
			return nil, err
		}
		backend.close = func(context.Context) error { return client.Close() }

		stream := cfg.Audit.RedisStream
		if stream == "" {
			stream = constants.DefaultAuditStream
		}
		store = audit.NewCircuitBreakerStore(audit.NewRedisStore(client, stream), cfg.CircuitBreaker)
		registry.Register(health.NewRedisChecker(client))

	default:
		return nil, fmt.Errorf("unknown audit backend: %s", cfg.Audit.Backend)
	}

	backend.Store = audit.NewInstrumentedStore(store, dc.Logger)
	dc.Logger.Infow("Audit store ready", "backend", store.Name())
	return backend, nil
}

// Close releases the connection opened for the backend. A nil backend is a
// no-op so callers can defer it before initialization succeeds.
func (b *AuditBackend) Close(ctx context.Context) error {
	if b == nil || b.close == nil {
		return nil
	}
	if err := b.close(ctx); err != nil {
		return fmt.Errorf("close %s audit store: %w", b.Store.Name(), err)
	}
	return nil
}

package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/shestoi/paygate/internal/config"
	"github.com/shestoi/paygate/internal/repository"
	"github.com/shestoi/paygate/internal/repository/memory"
	mongorepo "github.com/shestoi/paygate/internal/repository/mongo"
	"github.com/shestoi/paygate/internal/repository/postgres"
	"github.com/shestoi/paygate/internal/session"
	sessionmemory "github.com/shestoi/paygate/internal/session/memory"
	sessionredis "github.com/shestoi/paygate/internal/session/redis"
	"github.com/shestoi/paygate/migrations"
	platformshutdown "github.com/shestoi/paygate/platform/shutdown"
)

const connectTimeout = 5 * time.Second

// backends holds the opened stores and the pings used for readiness.
type backends struct {
	sessions session.Store
	payments repository.PaymentRepository
	audit    repository.AuditRepository
	pings    []func(context.Context) error
}

func openBackends(ctx context.Context, cfg config.Config, logger *zap.Logger, shutdownMgr *platformshutdown.Manager) (*backends, error) {
	b := &backends{}

	switch cfg.StorageBackend {
	case config.BackendPostgres:
		pool, err := openPostgres(ctx, cfg.PostgresDSN, logger)
		if err != nil {
			return nil, err
		}
		shutdownMgr.Add("postgres_pool", platformshutdown.ClosePool(pool))
		b.payments = postgres.NewPaymentRepository(pool)
		b.audit = postgres.NewAuditRepository(pool)
		b.pings = append(b.pings, pool.Ping)
	default:
		logger.Warn("Using in-memory payment storage, records are lost on restart")
		b.payments = memory.NewPaymentRepository()
		b.audit = memory.NewAuditRepository()
	}

	switch cfg.SessionBackend {
	case config.BackendRedis:
		logger.Info("Connecting to Redis", zap.String("addr", cfg.RedisAddr))
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		logger.Info("Redis connection established")
		shutdownMgr.Add("redis_client", platformshutdown.Close(client))
		b.sessions = sessionredis.NewStore(client, cfg.SessionTTL, logger)
		b.pings = append(b.pings, func(ctx context.Context) error { return client.Ping(ctx).Err() })
	default:
		b.sessions = sessionmemory.NewStore()
	}

	if cfg.AuditBackend == config.BackendMongo {
		logger.Info("Connecting to MongoDB", zap.String("database", cfg.MongoDatabase))
		connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()
		client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to mongo: %w", err)
		}
		if err := client.Ping(connectCtx, nil); err != nil {
			_ = client.Disconnect(ctx)
			return nil, fmt.Errorf("failed to ping mongo: %w", err)
		}
		shutdownMgr.Add("mongo_client", platformshutdown.DisconnectMongo(client))

		audit, err := mongorepo.NewAuditRepository(connectCtx, client, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		logger.Info("MongoDB connection established")
		b.audit = audit
		b.pings = append(b.pings, func(ctx context.Context) error { return client.Ping(ctx, nil) })
	}

	return b, nil
}

// openPostgres connects the pool and applies the embedded migrations.
func openPostgres(ctx context.Context, dsn string, logger *zap.Logger) (*pgxpool.Pool, error) {
	logger.Info("Connecting to PostgreSQL")
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	logger.Info("PostgreSQL connection established")

	if err := migrate(dsn); err != nil {
		pool.Close()
		return nil, err
	}
	logger.Info("Database migrations applied successfully")
	return pool, nil
}

func migrate(dsn string) error {
	db, err := goose.OpenDBWithDriver("pgx", dsn)
	if err != nil {
		return fmt.Errorf("failed to open migration connection: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	defer goose.SetBaseFS(nil)
	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// ready reports whether every backend answers within timeout.
func (b *backends) ready(timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	for _, ping := range b.pings {
		if err := ping(ctx); err != nil {
			return false
		}
	}
	return true
}

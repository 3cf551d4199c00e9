package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Driver string
	TTL    time.Duration

	RedisAddr     string
	RedisPassword string

	MongoURI    string
	MongoDBName string

	Postgres   Credentials
	SQLitePath string
}

// Open connects the configured adapter. The returned close function releases
// the underlying connection and is never nil.
func Open(ctx context.Context, cfg Config) (Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Driver {
	case "", DriverMemory:
		return NewMemoryStore(), noop, nil

	case DriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, noop, fmt.Errorf("redis connection failed: %w", err)
		}
		return NewRedisStore(client, cfg.TTL), client.Close, nil

	case DriverMongo:
		db, err := ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			return nil, noop, err
		}
		store := NewMongoStore(db)
		if err := store.CreateIndexes(ctx, cfg.TTL); err != nil {
			_ = db.Client().Disconnect(ctx)
			return nil, noop, err
		}
		return store, func() error { return db.Client().Disconnect(context.Background()) }, nil

	case DriverPostgres, DriverSQLite:
		dsn := cfg.SQLitePath
		if cfg.Driver == DriverPostgres {
			dsn = cfg.Postgres.DSN()
		}
		store, err := NewSQLStore(cfg.Driver, dsn)
		if err != nil {
			return nil, noop, err
		}
		if err := store.RunMigrations(); err != nil {
			_ = store.Close()
			return nil, noop, err
		}
		return store, store.Close, nil
	}

	return nil, noop, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}

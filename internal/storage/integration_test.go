package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()

	_, err := s.Get(ctx, "ws1:cart")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, "ws1:cart", []byte(`[{"_id":"p1","quantity":1}]`)))
	require.NoError(t, s.Set(ctx, "ws1:cart", []byte(`[{"_id":"p1","quantity":3}]`)))

	v, err := s.Get(ctx, "ws1:cart")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"_id":"p1","quantity":3}]`, string(v))

	require.NoError(t, s.Delete(ctx, "ws1:cart"))
	_, err = s.Get(ctx, "ws1:cart")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMongoStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	mongoContainer, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)
	defer func() {
		if err := mongoContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}()

	uri, err := mongoContainer.ConnectionString(ctx)
	require.NoError(t, err)

	db, err := ConnectMongoDB(ctx, uri, "testdb")
	require.NoError(t, err)
	defer db.Client().Disconnect(ctx)

	store := NewMongoStore(db)
	require.NoError(t, store.CreateIndexes(ctx, 24*time.Hour))

	exerciseStore(t, store)
}

func TestPostgresStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}()

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	s, closeFn, err := Open(ctx, Config{
		Driver: DriverPostgres,
		Postgres: Credentials{
			Host:     host,
			Port:     port.Int(),
			User:     "testuser",
			Password: "testpass",
			DBName:   "testdb",
		},
	})
	require.NoError(t, err)
	defer closeFn()

	exerciseStore(t, s)
}

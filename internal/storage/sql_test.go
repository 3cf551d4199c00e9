package storage

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*SQLStore, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSQLStoreFromDB(db, DialectPostgres), mock
}

func TestSQLStore_Get(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT value FROM kv_entries WHERE key = $1`)).
		WithArgs("ws1:cart").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow([]byte(`[]`)))

	v, err := store.Get(context.Background(), "ws1:cart")
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(v))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_GetMissing(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT value FROM kv_entries WHERE key = $1`)).
		WithArgs("ws1:cart").
		WillReturnError(sql.ErrNoRows)

	_, err := store.Get(context.Background(), "ws1:cart")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLStore_GetError(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT value FROM kv_entries WHERE key = $1`)).
		WillReturnError(errors.New("connection reset"))

	_, err := store.Get(context.Background(), "ws1:cart")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.ErrorContains(t, err, "connection reset")
}

func TestSQLStore_SetUpserts(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO kv_entries (key, value, updated_at) VALUES ($1, $2, $3)`)).
		WithArgs("ws1:cart", []byte(`[1]`), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Set(context.Background(), "ws1:cart", []byte(`[1]`)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_Delete(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM kv_entries WHERE key = $1`)).
		WithArgs("ws1:cart").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Delete(context.Background(), "ws1:cart"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_PurgeOlderThan(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM kv_entries WHERE updated_at < $1`)).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := store.PurgeOlderThan(context.Background(), time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestSQLStore_SQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLStore(DialectSQLite, filepath.Join(t.TempDir(), "storefront.db"))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.RunMigrations())
	// second run is a no-op
	require.NoError(t, store.RunMigrations())

	_, err = store.Get(ctx, "ws1:cart")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Set(ctx, "ws1:cart", []byte(`[{"_id":"p1"}]`)))
	require.NoError(t, store.Set(ctx, "ws1:cart", []byte(`[{"_id":"p2"}]`)))

	v, err := store.Get(ctx, "ws1:cart")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"_id":"p2"}]`, string(v))

	require.NoError(t, store.Delete(ctx, "ws1:cart"))
	_, err = store.Get(ctx, "ws1:cart")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNewSQLStore_UnsupportedDialect(t *testing.T) {
	_, err := NewSQLStore("oracle", "whatever")
	assert.ErrorContains(t, err, "unsupported sql dialect")
}

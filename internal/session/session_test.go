package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/storage"
	"github.com/fjod/go_cart/storefront/pkg/logger"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, sub string, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   sub,
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	s, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

type brokenStore struct{}

func (brokenStore) Get(context.Context, string) ([]byte, error) { return nil, errors.New("boom") }
func (brokenStore) Set(context.Context, string, []byte) error  { return errors.New("boom") }
func (brokenStore) Delete(context.Context, string) error       { return errors.New("boom") }

func TestNew_Anonymous(t *testing.T) {
	s := New(context.Background(), storage.NewMemoryStore(), logger.Nop())

	tok, ok := s.Token()
	assert.False(t, ok)
	assert.Empty(t, tok)
	assert.False(t, s.IsAuthenticated())
}

func TestNew_RestoresStoredCredential(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()
	require.NoError(t, kv.Set(ctx, CredentialKey, []byte("opaque-token")))

	s := New(ctx, kv, logger.Nop())
	tok, ok := s.Token()
	assert.True(t, ok)
	assert.Equal(t, "opaque-token", tok)
}

func TestNew_DropsExpiredJWT(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()
	require.NoError(t, kv.Set(ctx, CredentialKey, []byte(signedToken(t, "u1", time.Now().Add(-time.Hour)))))

	s := New(ctx, kv, logger.Nop())
	assert.False(t, s.IsAuthenticated())

	_, err := kv.Get(ctx, CredentialKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestLoginLogout(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()
	s := New(ctx, kv, logger.Nop())

	var states []State
	s.Subscribe(func(st State) { states = append(states, st) })

	token := signedToken(t, "user-42", time.Now().Add(time.Hour))
	require.NoError(t, s.Login(ctx, token))
	assert.True(t, s.IsAuthenticated())
	assert.Equal(t, "user-42", s.Subject())

	raw, err := kv.Get(ctx, CredentialKey)
	require.NoError(t, err)
	assert.Equal(t, token, string(raw))

	s.SetProfile(domain.User{ID: "user-42", FirstName: "Ada"})
	u, ok := s.Profile()
	require.True(t, ok)
	assert.Equal(t, "Ada", u.FirstName)

	s.Logout(ctx)
	assert.False(t, s.IsAuthenticated())
	_, ok = s.Profile()
	assert.False(t, ok)
	_, err = kv.Get(ctx, CredentialKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.Len(t, states, 3)
	assert.True(t, states[0].Authenticated)
	assert.NotNil(t, states[1].User)
	assert.False(t, states[2].Authenticated)
}

func TestLogin_EmptyToken(t *testing.T) {
	s := New(context.Background(), storage.NewMemoryStore(), logger.Nop())
	assert.ErrorIs(t, s.Login(context.Background(), ""), ErrEmptyToken)
}

func TestLogin_StorageFailureStillAuthenticates(t *testing.T) {
	s := New(context.Background(), brokenStore{}, logger.Nop())
	require.NoError(t, s.Login(context.Background(), "opaque"))
	assert.True(t, s.IsAuthenticated())
}

func TestToken_ExpiresWhileHeld(t *testing.T) {
	now := time.Now()
	s := New(context.Background(), storage.NewMemoryStore(), logger.Nop(), WithClock(func() time.Time { return now }))
	require.NoError(t, s.Login(context.Background(), signedToken(t, "u1", now.Add(time.Minute))))
	assert.True(t, s.IsAuthenticated())

	now = now.Add(2 * time.Minute)
	assert.False(t, s.IsAuthenticated())
}

func TestSetProfile_IgnoredWhenLoggedOut(t *testing.T) {
	s := New(context.Background(), storage.NewMemoryStore(), logger.Nop())
	s.SetProfile(domain.User{ID: "u1"})
	_, ok := s.Profile()
	assert.False(t, ok)
}

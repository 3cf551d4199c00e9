// Package session is the authenticated-session state of one storefront
// visitor: the bearer credential kept in durable storage and the profile of
// the logged-in user.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/storage"
	"github.com/fjod/go_cart/storefront/pkg/logger"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// CredentialKey is the fixed storage key of the bearer credential.
const CredentialKey = "access_token"

var ErrEmptyToken = errors.New("empty access token")

// State is what subscribers observe.
type State struct {
	Authenticated bool
	User          *domain.User
}

type Session struct {
	mu    sync.Mutex
	token string
	user  *domain.User

	kv  storage.Store
	log *logger.Logger
	now func() time.Time

	subs   map[int]func(State)
	nextID int
}

type Option func(*Session)

// WithClock replaces time.Now for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// New reads the stored credential once. An expired JWT is discarded and
// removed from storage; opaque tokens are kept as-is.
func New(ctx context.Context, kv storage.Store, log *logger.Logger, opts ...Option) *Session {
	s := &Session{
		kv:   kv,
		log:  log.Named("session"),
		now:  time.Now,
		subs: make(map[int]func(State)),
	}
	for _, o := range opts {
		o(s)
	}

	raw, err := kv.Get(ctx, CredentialKey)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		s.log.Warn(ctx, "credential read failed", zap.Error(err))
	case s.expired(string(raw)):
		s.log.Info(ctx, "stored credential expired, dropping it")
		if err := kv.Delete(ctx, CredentialKey); err != nil {
			s.log.Warn(ctx, "credential delete failed", zap.Error(err))
		}
	default:
		s.token = string(raw)
	}
	return s
}

// Token implements gateway.AuthContext.
func (s *Session) Token() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" || s.expired(s.token) {
		return "", false
	}
	return s.token, true
}

func (s *Session) IsAuthenticated() bool {
	_, ok := s.Token()
	return ok
}

// Login stores the credential returned by /auth/login or /auth/verify-email.
// A storage failure is logged; the session stays authenticated in memory.
func (s *Session) Login(ctx context.Context, token string) error {
	if token == "" {
		return ErrEmptyToken
	}
	if err := s.kv.Set(ctx, CredentialKey, []byte(token)); err != nil {
		s.log.Warn(ctx, "credential write failed", zap.Error(err))
	}

	s.mu.Lock()
	s.token = token
	s.user = nil
	s.mu.Unlock()

	s.notify()
	return nil
}

// Logout clears the credential and the cached profile.
func (s *Session) Logout(ctx context.Context) {
	if err := s.kv.Delete(ctx, CredentialKey); err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.log.Warn(ctx, "credential delete failed", zap.Error(err))
	}

	s.mu.Lock()
	s.token = ""
	s.user = nil
	s.mu.Unlock()

	s.notify()
}

// SetProfile caches the current user. Ignored when logged out.
func (s *Session) SetProfile(u domain.User) {
	s.mu.Lock()
	if s.token == "" {
		s.mu.Unlock()
		return
	}
	s.user = &u
	s.mu.Unlock()

	s.notify()
}

// Profile returns the cached current user, if any.
func (s *Session) Profile() (domain.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return domain.User{}, false
	}
	return *s.user, true
}

// Subject is the "sub" claim of the credential when it is a JWT.
func (s *Session) Subject() string {
	tok, ok := s.Token()
	if !ok {
		return ""
	}
	claims, ok := parseClaims(tok)
	if !ok {
		return ""
	}
	return claims.Subject
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Session) Subscribe(fn func(State)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Session) stateLocked() State {
	st := State{Authenticated: s.token != "" && !s.expired(s.token)}
	if s.user != nil {
		u := *s.user
		st.User = &u
	}
	return st
}

func (s *Session) notify() {
	s.mu.Lock()
	st := s.stateLocked()
	subs := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(st)
	}
}

func (s *Session) expired(token string) bool {
	claims, ok := parseClaims(token)
	if !ok || claims.ExpiresAt == nil {
		return false
	}
	return !s.now().Before(claims.ExpiresAt.Time)
}

// parseClaims reads the claims without verifying the signature; the backend
// is the one that checks it.
func parseClaims(token string) (*jwt.RegisteredClaims, bool) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, false
	}
	return claims, true
}

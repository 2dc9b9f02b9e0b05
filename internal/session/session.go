// Package session owns the console's authentication sessions.
//
// A Session replaces the browser's persisted auth blob
// ({accessToken, isLogin, user}). It is created on login, resolved on every
// request by its opaque console token, and torn down wholesale on logout or
// when the backend rejects its access token. Sessions are persisted through
// a Store so a restart does not log every user out; the same stores also
// hold the audit trail.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/assetconsole/internal/core"
)

var (
	ErrNotFound = errors.New("session: not found")
	ErrExpired  = errors.New("session: expired")
)

// DefaultTTL is how long a session lives without a refresh.
const DefaultTTL = 12 * time.Hour

// Session is one logged-in console user.
type Session struct {
	Token       string    `json:"-"`
	BearerToken string    `json:"-"`
	User        core.User `json:"user"`
	CreatedAt   time.Time `json:"createdAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// AccessToken returns the backend bearer token. It makes a Session usable
// as backend credentials.
func (s *Session) AccessToken() string {
	if s == nil {
		return ""
	}
	return s.BearerToken
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Store persists sessions and the audit trail.
type Store interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, token string) (*Session, error)
	Delete(ctx context.Context, token string) error
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
	core.AuditStore
	Close() error
}

// TeardownFunc is called after a session is torn down.
type TeardownFunc func(token string)

// Manager drives the session lifecycle over a Store.
type Manager struct {
	store Store
	ttl   time.Duration
	now   func() time.Time

	mu       sync.RWMutex
	teardown []TeardownFunc
}

// NewManager creates a manager. A non-positive ttl uses DefaultTTL.
func NewManager(store Store, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{store: store, ttl: ttl, now: time.Now}
}

// Store returns the underlying store.
func (m *Manager) Store() Store { return m.store }

// OnTeardown registers fn to run whenever a session ends.
func (m *Manager) OnTeardown(fn TeardownFunc) {
	m.mu.Lock()
	m.teardown = append(m.teardown, fn)
	m.mu.Unlock()
}

// Open starts a session for a user the backend just authenticated.
func (m *Manager) Open(ctx context.Context, bearer string, user core.User) (*Session, error) {
	now := m.now()
	s := &Session{
		Token:       uuid.NewString(),
		BearerToken: bearer,
		User:        user,
		CreatedAt:   now,
		ExpiresAt:   now.Add(m.ttl),
	}
	if err := m.store.Create(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Resolve returns the live session for token. Expired sessions are torn
// down and reported as ErrExpired.
func (m *Manager) Resolve(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	s, err := m.store.Get(ctx, token)
	if err != nil {
		return nil, err
	}
	if s.Expired(m.now()) {
		m.Teardown(ctx, token)
		return nil, ErrExpired
	}
	return s, nil
}

// Teardown ends a session: it is removed from the store and every
// teardown hook runs. Tearing down an unknown token is not an error.
func (m *Manager) Teardown(ctx context.Context, token string) {
	if token == "" {
		return
	}
	if err := m.store.Delete(ctx, token); err != nil && !errors.Is(err, ErrNotFound) {
		slog.Error("session delete failed", "error", err)
	}
	m.mu.RLock()
	hooks := append([]TeardownFunc(nil), m.teardown...)
	m.mu.RUnlock()
	for _, fn := range hooks {
		fn(token)
	}
}

// PurgeExpired removes expired sessions from the store and returns how many
// were removed. Their workspaces are left to the idle sweeper.
func (m *Manager) PurgeExpired(ctx context.Context) (int, error) {
	return m.store.DeleteExpired(ctx, m.now())
}

// Package tokenstore is the client's single source of truth for the current
// credential pair, cached in memory and optionally written through to a backend.
package tokenstore

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fedtaxi/hojaruta/internal/tokens"
	"github.com/fedtaxi/hojaruta/pkg/logger"
	"go.uber.org/zap"
)

// Fixed backend keys.
const (
	AccessTokenKey  = "access_token"
	RefreshTokenKey = "refresh_token"
)

// ErrNoRefreshToken is returned when a refresh needs a token the store does not hold.
var ErrNoRefreshToken = errors.New("no refresh token stored")

// Backend is durable key/value storage for credentials. Get returns "" for a missing key.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

// Presence reports what InitializeFromStorage found.
type Presence struct {
	HasAccessToken  bool
	HasRefreshToken bool
}

// Store caches credentials in memory. A Store without a backend keeps the access
// token for the life of the process only.
type Store struct {
	backend      Backend
	allowRefresh bool
	log          *zap.SugaredLogger

	mu            sync.Mutex
	access        string
	refresh       string
	accessLoaded  bool
	refreshLoaded bool
}

// NewPersistent returns a store that writes both tokens through to backend (mobile).
func NewPersistent(backend Backend, log *zap.SugaredLogger) *Store {
	if log == nil {
		log = logger.L("tokenstore")
	}
	return &Store{backend: backend, allowRefresh: true, log: log}
}

// NewVolatile returns a memory-only store that never holds a refresh token (web).
// The refresh credential lives in the HTTP cookie jar instead.
func NewVolatile(log *zap.SugaredLogger) *Store {
	if log == nil {
		log = logger.L("tokenstore")
	}
	return &Store{log: log, accessLoaded: true, refreshLoaded: true}
}

// HoldsRefreshToken reports whether this store keeps refresh tokens at all.
func (s *Store) HoldsRefreshToken() bool { return s.allowRefresh }

// read loads key from the backend; failures count as "no token".
func (s *Store) read(ctx context.Context, key string) string {
	if s.backend == nil {
		return ""
	}
	v, err := s.backend.Get(ctx, key)
	if err != nil {
		s.log.Warnw("credential read failed; treating as absent", "key", key, "error", err)
		return ""
	}
	return v
}

// AccessToken returns the cached token, reading the backend once on first use.
func (s *Store) AccessToken(ctx context.Context) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.accessLoaded {
		s.access = s.read(ctx, AccessTokenKey)
		s.accessLoaded = true
	}
	return s.access
}

// RefreshToken returns the cached refresh token ("" for stores that never hold one).
func (s *Store) RefreshToken(ctx context.Context) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.refreshLoaded {
		s.refresh = s.read(ctx, RefreshTokenKey)
		s.refreshLoaded = true
	}
	return s.refresh
}

// SetTokens replaces the access token and, when refresh is non-empty, the refresh token.
// The cache is updated even if the backend write fails; the write error is returned.
func (s *Store) SetTokens(ctx context.Context, access, refresh string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if refresh != "" && !s.allowRefresh {
		s.log.Warn("dropping refresh token offered to a store that must not hold one")
		refresh = ""
	}
	s.access, s.accessLoaded = access, true
	if refresh != "" {
		s.refresh, s.refreshLoaded = refresh, true
	}
	if exp, err := tokens.ExpiresAt(access); err == nil {
		s.log.Debugw("access token set", "len", len(access), "expires_in", time.Until(exp).Round(time.Second).String(), "rotated_refresh", refresh != "")
	}

	if s.backend == nil {
		return nil
	}
	var errs []error
	if err := s.backend.Set(ctx, AccessTokenKey, access); err != nil {
		errs = append(errs, err)
	}
	if refresh != "" {
		if err := s.backend.Set(ctx, RefreshTokenKey, refresh); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Clear forgets both tokens. Safe to call on an empty store.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access, s.refresh = "", ""
	s.accessLoaded, s.refreshLoaded = true, true
	if s.backend == nil {
		return nil
	}
	return s.backend.Delete(ctx, AccessTokenKey, RefreshTokenKey)
}

// InitializeFromStorage re-reads both tokens from the backend, replacing the cache.
func (s *Store) InitializeFromStorage(ctx context.Context) Presence {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.backend != nil {
		s.access = s.read(ctx, AccessTokenKey)
		if s.allowRefresh {
			s.refresh = s.read(ctx, RefreshTokenKey)
		}
	}
	s.accessLoaded, s.refreshLoaded = true, true
	return Presence{HasAccessToken: s.access != "", HasRefreshToken: s.refresh != ""}
}

package sessions

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"
)

// Service wraps repository operations with business logic
type Service struct {
	repo Repository
	ttl  time.Duration
}

func NewService(r Repository, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Service{repo: r, ttl: ttl}
}

// TTL returns the refresh session lifetime.
func (s *Service) TTL() time.Duration { return s.ttl }

func newRefreshToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// CreateSession stores a new refresh session and returns the refresh token
func (s *Service) CreateSession(ctx context.Context, userID, clientType string) (string, error) {
	r, err := newRefreshToken()
	if err != nil {
		return "", err
	}
	now := time.Now().UTC()
	sess := &Session{
		RefreshToken: r,
		UserID:       userID,
		ClientType:   clientType,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.ttl),
	}
	if err := s.repo.Create(ctx, sess); err != nil {
		return "", err
	}
	return r, nil
}

// Rotate consumes refresh and issues a replacement for the same user. It returns
// (nil, "", nil) when refresh is unknown, expired or already consumed.
func (s *Service) Rotate(ctx context.Context, refresh string) (*Session, string, error) {
	if refresh == "" {
		return nil, "", nil
	}
	sess, err := s.repo.TakeByRefresh(ctx, refresh)
	if err != nil {
		return nil, "", err
	}
	if sess == nil || time.Now().UTC().After(sess.ExpiresAt) {
		return nil, "", nil
	}
	next, err := s.CreateSession(ctx, sess.UserID, sess.ClientType)
	if err != nil {
		return nil, "", err
	}
	return sess, next, nil
}

func (s *Service) DeleteRefresh(ctx context.Context, refresh string) error {
	return s.repo.DeleteByRefresh(ctx, refresh)
}

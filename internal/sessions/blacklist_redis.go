package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Blacklist records revoked access tokens until they would have expired anyway.
// A nil Redis client falls back to an in-process map.
type Blacklist struct {
	client redis.UniversalClient

	mu    sync.Mutex
	local map[string]time.Time
	now   func() time.Time
}

func NewBlacklist(client redis.UniversalClient) *Blacklist {
	return &Blacklist{client: client, local: map[string]time.Time{}, now: time.Now}
}

func blacklistKey(token string) string { return "blacklist:access:" + token }

// Add revokes token for ttl. Non-positive ttl is a no-op.
func (b *Blacklist) Add(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if b.client != nil {
		return b.client.Set(ctx, blacklistKey(token), "1", ttl).Err()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.local[token] = b.now().Add(ttl)
	return nil
}

// Contains returns true when the token is currently revoked.
func (b *Blacklist) Contains(ctx context.Context, token string) (bool, error) {
	if b.client != nil {
		exists, err := b.client.Exists(ctx, blacklistKey(token)).Result()
		if err != nil {
			return false, err
		}
		return exists > 0, nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	exp, ok := b.local[token]
	if !ok {
		return false, nil
	}
	if b.now().After(exp) {
		delete(b.local, token)
		return false, nil
	}
	return true, nil
}

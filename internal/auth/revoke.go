package auth

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationSet invalidates token ids before natural expiry. Implementations
// must allow concurrent reads with occasional writes; last writer wins.
type RevocationSet interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
}

// MemoryRevocationSet is a mutex-guarded in-process set. Entries drop out
// once the token they refer to would have expired anyway.
type MemoryRevocationSet struct {
	mu      sync.RWMutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewMemoryRevocationSet constructs an empty in-memory set.
func NewMemoryRevocationSet() *MemoryRevocationSet {
	return &MemoryRevocationSet{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// IsRevoked reports whether the token id was revoked and is still unexpired.
func (m *MemoryRevocationSet) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	m.mu.RLock()
	expiresAt, ok := m.entries[tokenID]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if m.now().After(expiresAt) {
		m.mu.Lock()
		delete(m.entries, tokenID)
		m.mu.Unlock()
		return false, nil
	}
	return true, nil
}

// Revoke marks the token id invalid until expiresAt, purging dead entries
// opportunistically.
func (m *MemoryRevocationSet) Revoke(_ context.Context, tokenID string, expiresAt time.Time) error {
	if tokenID == "" {
		return nil
	}
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, exp := range m.entries {
		if now.After(exp) {
			delete(m.entries, id)
		}
	}
	if expiresAt.After(now) {
		m.entries[tokenID] = expiresAt
	}
	return nil
}

// RedisRevocationSet shares revocations across instances. Keys carry a TTL
// equal to the remaining token life, so the set cleans itself up.
type RedisRevocationSet struct {
	client *redis.Client
	prefix string
}

// NewRedisRevocationSet wraps an existing Redis client.
func NewRedisRevocationSet(client *redis.Client) *RedisRevocationSet {
	return &RedisRevocationSet{client: client, prefix: "revoked:"}
}

func (r *RedisRevocationSet) key(tokenID string) string { return r.prefix + tokenID }

// IsRevoked checks for the token id key.
func (r *RedisRevocationSet) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	_, err := r.client.Get(ctx, r.key(tokenID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Revoke stores the token id with the remaining lifetime as TTL. Already
// expired tokens need no entry.
func (r *RedisRevocationSet) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if tokenID == "" || ttl <= 0 {
		return nil
	}
	return r.client.Set(ctx, r.key(tokenID), "1", ttl).Err()
}

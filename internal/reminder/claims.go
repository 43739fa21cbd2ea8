package reminder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Claims guards a (registration, day) pair while a reminder is being
// delivered, so replicas sharing a store do not mail the same reminder twice
// before the mark is persisted.
type Claims interface {
	// Claim reports whether the caller now owns the pair.
	Claim(ctx context.Context, id uuid.UUID, day int) (bool, error)
	// Release gives the pair up after a failed delivery.
	Release(ctx context.Context, id uuid.UUID, day int) error
}

const defaultClaimTTL = 24 * time.Hour

func claimKey(id uuid.UUID, day int) string {
	return fmt.Sprintf("onboarding:reminder:%s:%d", id, day)
}

// RedisClaims holds claims as expiring Redis keys.
type RedisClaims struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisClaims(client redis.Cmdable, ttl time.Duration) *RedisClaims {
	if ttl <= 0 {
		ttl = defaultClaimTTL
	}
	return &RedisClaims{client: client, ttl: ttl}
}

func (c *RedisClaims) Claim(ctx context.Context, id uuid.UUID, day int) (bool, error) {
	ok, err := c.client.SetNX(ctx, claimKey(id, day), time.Now().UTC().Format(time.RFC3339), c.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim reminder: %w", err)
	}
	return ok, nil
}

func (c *RedisClaims) Release(ctx context.Context, id uuid.UUID, day int) error {
	if err := c.client.Del(ctx, claimKey(id, day)).Err(); err != nil {
		return fmt.Errorf("release reminder claim: %w", err)
	}
	return nil
}

// InMemoryClaims is the single-process Claims.
type InMemoryClaims struct {
	mu   sync.Mutex
	held map[string]time.Time
	ttl  time.Duration
	now  func() time.Time
}

func NewInMemoryClaims(ttl time.Duration) *InMemoryClaims {
	if ttl <= 0 {
		ttl = defaultClaimTTL
	}
	return &InMemoryClaims{held: make(map[string]time.Time), ttl: ttl, now: time.Now}
}

func (c *InMemoryClaims) Claim(_ context.Context, id uuid.UUID, day int) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for k, expires := range c.held {
		if !now.Before(expires) {
			delete(c.held, k)
		}
	}
	key := claimKey(id, day)
	if _, ok := c.held[key]; ok {
		return false, nil
	}
	c.held[key] = now.Add(c.ttl)
	return true, nil
}

func (c *InMemoryClaims) Release(_ context.Context, id uuid.UUID, day int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.held, claimKey(id, day))
	return nil
}

package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCooldownActive rejects a send to a phone contacted inside the short
// burst-protection window. This is independent of the dedupe ledger: the
// window is seconds (double-click protection), the ledger is months
// (re-contact policy).
var ErrCooldownActive = errors.New("phone was contacted moments ago")

// Cooldown reserves a phone number for one send inside the window.
type Cooldown interface {
	// Reserve claims the phone for a send. Returns ErrCooldownActive
	// (wrapped with the remaining wait) when the window is still open.
	Reserve(ctx context.Context, phone string) error
}

// RedisCooldown enforces the window across processes with SET NX PX.
type RedisCooldown struct {
	client *redis.Client
	window time.Duration
}

// NewRedisCooldown creates a Redis-backed cooldown.
func NewRedisCooldown(client *redis.Client, window time.Duration) *RedisCooldown {
	return &RedisCooldown{client: client, window: window}
}

func (c *RedisCooldown) Reserve(ctx context.Context, phone string) error {
	key := "cooldown:phone:" + phone
	ok, err := c.client.SetNX(ctx, key, "1", c.window).Result()
	if err != nil {
		return fmt.Errorf("cooldown reserve for %s: %w", phone, err)
	}
	if !ok {
		ttl, _ := c.client.PTTL(ctx, key).Result()
		return fmt.Errorf("%w: retry in %s", ErrCooldownActive, ttl.Round(time.Second))
	}
	return nil
}

// MemCooldown is the single-process fallback used when Redis is not
// configured.
type MemCooldown struct {
	mu     sync.Mutex
	window time.Duration
	seen   map[string]time.Time
}

// NewMemCooldown creates an in-memory cooldown.
func NewMemCooldown(window time.Duration) *MemCooldown {
	return &MemCooldown{window: window, seen: make(map[string]time.Time)}
}

func (c *MemCooldown) Reserve(_ context.Context, phone string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	if until, ok := c.seen[phone]; ok && now.Before(until) {
		return fmt.Errorf("%w: retry in %s", ErrCooldownActive, until.Sub(now).Round(time.Second))
	}
	c.seen[phone] = now.Add(c.window)
	// Opportunistic cleanup keeps the map from growing across long runs.
	for p, until := range c.seen {
		if now.After(until) {
			delete(c.seen, p)
		}
	}
	return nil
}

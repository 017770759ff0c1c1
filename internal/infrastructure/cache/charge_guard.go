package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sectionhub-shopify-layer/internal/ports"

	"github.com/redis/go-redis/v9"
)

const chargeGuardPrefix = "charge_inflight:"

// DefaultChargeGuardTTL bounds how long a crashed request can block a retry
const DefaultChargeGuardTTL = 30 * time.Second

type keyStore interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisChargeGuard marks a (shop, target) charge creation as in flight with SET NX
type RedisChargeGuard struct {
	client keyStore
	ttl    time.Duration
}

var _ ports.ChargeGuard = (*RedisChargeGuard)(nil)

// NewRedisChargeGuard creates a guard backed by Redis
func NewRedisChargeGuard(client redis.Cmdable, ttl time.Duration) *RedisChargeGuard {
	if ttl <= 0 {
		ttl = DefaultChargeGuardTTL
	}
	return &RedisChargeGuard{client: client, ttl: ttl}
}

// Acquire returns false when another request holds the key
func (g *RedisChargeGuard) Acquire(ctx context.Context, key string) (bool, error) {
	ok, err := g.client.SetNX(ctx, chargeGuardPrefix+key, "1", g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire charge guard: %w", err)
	}
	return ok, nil
}

// Release frees the key
func (g *RedisChargeGuard) Release(ctx context.Context, key string) error {
	if err := g.client.Del(ctx, chargeGuardPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to release charge guard: %w", err)
	}
	return nil
}

// LocalChargeGuard is the in-process guard used when no Redis address is configured.
// It only protects a single replica.
type LocalChargeGuard struct {
	mu      sync.Mutex
	held    map[string]time.Time
	ttl     time.Duration
	nowFunc func() time.Time
}

var _ ports.ChargeGuard = (*LocalChargeGuard)(nil)

// NewLocalChargeGuard creates an in-process guard
func NewLocalChargeGuard(ttl time.Duration) *LocalChargeGuard {
	if ttl <= 0 {
		ttl = DefaultChargeGuardTTL
	}
	return &LocalChargeGuard{held: make(map[string]time.Time), ttl: ttl, nowFunc: time.Now}
}

func (g *LocalChargeGuard) Acquire(_ context.Context, key string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.nowFunc()
	if until, ok := g.held[key]; ok && now.Before(until) {
		return false, nil
	}
	g.held[key] = now.Add(g.ttl)
	return true, nil
}

func (g *LocalChargeGuard) Release(_ context.Context, key string) error {
	g.mu.Lock()
	delete(g.held, key)
	g.mu.Unlock()
	return nil
}

package clinic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultCacheTTL bounds how long a cached clinic row may be served after a
// staff edit that bypassed Invalidate.
const DefaultCacheTTL = 5 * time.Minute

// Cache keeps clinic settings in Redis in front of the relational store.
type Cache struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a new clinic settings cache.
func NewCache(redisClient *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{redis: redisClient, ttl: ttl}
}

func (c *Cache) key(clinicID string) string {
	return fmt.Sprintf("clinic:settings:%s", clinicID)
}

// Get returns the cached clinic; ok is false on a miss.
func (c *Cache) Get(ctx context.Context, clinicID string) (*Clinic, bool, error) {
	if c == nil || c.redis == nil {
		return nil, false, nil
	}
	data, err := c.redis.Get(ctx, c.key(clinicID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("clinic: cache get: %w", err)
	}

	var cl Clinic
	if err := json.Unmarshal(data, &cl); err != nil {
		return nil, false, fmt.Errorf("clinic: cache unmarshal: %w", err)
	}
	return &cl, true, nil
}

// Put stores the clinic settings.
func (c *Cache) Put(ctx context.Context, cl *Clinic) error {
	if c == nil || c.redis == nil || cl == nil {
		return nil
	}
	data, err := json.Marshal(cl)
	if err != nil {
		return fmt.Errorf("clinic: cache marshal: %w", err)
	}
	if err := c.redis.Set(ctx, c.key(cl.ID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("clinic: cache set: %w", err)
	}
	return nil
}

// Invalidate drops the cached clinic settings.
func (c *Cache) Invalidate(ctx context.Context, clinicID string) error {
	if c == nil || c.redis == nil {
		return nil
	}
	if err := c.redis.Del(ctx, c.key(clinicID)).Err(); err != nil {
		return fmt.Errorf("clinic: cache delete: %w", err)
	}
	return nil
}

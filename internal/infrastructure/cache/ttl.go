package cache

import (
	"context"
	"time"

	"tanktrace/internal/ports"
)

type ttlCache struct {
	ports.Cache
	ttl time.Duration
}

// WithDefaultTTL applies ttl to writes that do not set their own.
func WithDefaultTTL(c ports.Cache, ttl time.Duration) ports.Cache {
	if ttl <= 0 {
		return c
	}
	return ttlCache{Cache: c, ttl: ttl}
}

func (c ttlCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttl
	}
	return c.Cache.Set(ctx, key, value, ttl)
}

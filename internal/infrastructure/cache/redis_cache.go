package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"tanktrace/internal/errs"
	"tanktrace/internal/ports"
)

type RedisCache struct {
	rdb    *goredis.Client
	prefix string
}

var _ ports.Cache = (*RedisCache)(nil)

// NewRedisCache builds a client for addr. Keys are stored under prefix + ":".
func NewRedisCache(addr string, prefix string) (*RedisCache, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("redis address is required")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	return &RedisCache{rdb: rdb, prefix: strings.TrimSpace(prefix)}, nil
}

func (c *RedisCache) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return errs.Wrap(err, "redis ping")
	}
	return nil
}

func (c *RedisCache) Close() error {
	return c.rdb.Close()
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	key, err := checkKey(ctx, key)
	if err != nil {
		return "", false, err
	}
	value, err := c.rdb.Get(ctx, c.key(key)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", false, nil
		}
		return "", false, errs.Wrap(err, "redis get")
	}
	return value, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	key, err := checkKey(ctx, key)
	if err != nil {
		return err
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := c.rdb.Set(ctx, c.key(key), value, ttl).Err(); err != nil {
		return errs.Wrap(err, "redis set")
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	key, err := checkKey(ctx, key)
	if err != nil {
		return err
	}
	if err := c.rdb.Del(ctx, c.key(key)).Err(); err != nil {
		return errs.Wrap(err, "redis del")
	}
	return nil
}

func (c *RedisCache) key(key string) string {
	if c.prefix == "" {
		return key
	}
	return c.prefix + ":" + key
}

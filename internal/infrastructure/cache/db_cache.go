package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tanktrace/internal/errs"
	"tanktrace/internal/infrastructure/persistence/gormstore/model"
	"tanktrace/internal/ports"
)

// DBCache keeps cache entries in the kv_entries table of the main database.
type DBCache struct {
	db  *gorm.DB
	now func() time.Time
}

var _ ports.Cache = (*DBCache)(nil)

func NewDBCache(db *gorm.DB) *DBCache {
	return &DBCache{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (c *DBCache) Get(ctx context.Context, key string) (string, bool, error) {
	key, err := checkKey(ctx, key)
	if err != nil {
		return "", false, err
	}

	var row model.KVEntry
	if err := c.db.WithContext(ctx).Where("key = ?", key).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, errs.Wrap(err, "query cache by key")
	}
	if row.ExpiresAt != nil && !c.now().Before(*row.ExpiresAt) {
		return "", false, nil
	}
	return row.Value, true, nil
}

// Set upserts the entry. A zero ttl keeps it until overwritten or deleted.
func (c *DBCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	key, err := checkKey(ctx, key)
	if err != nil {
		return err
	}

	now := c.now()
	row := model.KVEntry{Key: key, Value: value, UpdatedAt: now}
	if ttl > 0 {
		expires := now.Add(ttl)
		row.ExpiresAt = &expires
	}

	if err := c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.Assignments(map[string]any{
			"value":      row.Value,
			"expires_at": row.ExpiresAt,
			"updated_at": row.UpdatedAt,
		}),
	}).Create(&row).Error; err != nil {
		return errs.Wrap(err, "upsert cache key")
	}
	return nil
}

func (c *DBCache) Delete(ctx context.Context, key string) error {
	key, err := checkKey(ctx, key)
	if err != nil {
		return err
	}
	if err := c.db.WithContext(ctx).Where("key = ?", key).Delete(&model.KVEntry{}).Error; err != nil {
		return errs.Wrap(err, "delete cache key")
	}
	return nil
}

// Purge removes expired entries and reports how many were dropped.
func (c *DBCache) Purge(ctx context.Context) (int64, error) {
	res := c.db.WithContext(ctx).Where("expires_at IS NOT NULL AND expires_at <= ?", c.now()).Delete(&model.KVEntry{})
	if res.Error != nil {
		return 0, errs.Wrap(res.Error, "purge expired cache keys")
	}
	return res.RowsAffected, nil
}

func checkKey(ctx context.Context, key string) (string, error) {
	if ctx == nil {
		return "", errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return "", errs.Wrap(err, "check context")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("key is required")
	}
	return key, nil
}

package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tanktrace/internal/bootstrap/config"
	"tanktrace/internal/bootstrap/logging"
	"tanktrace/internal/errs"
)

func Open(ctx context.Context, cfg config.DatabaseConfig) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithComponent(ctx, "bootstrap.database")
	gormCfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}

	switch strings.ToLower(cfg.Driver) {
	case "sqlite", "sqlite3":
		if err := ensureSQLiteDirectory(logCtx, cfg.DSN); err != nil {
			return nil, errs.Wrap(err, "ensure sqlite directory")
		}

		db, err := gorm.Open(gormsqlite.Open(SQLiteDSN(cfg.DSN)), gormCfg)
		if err != nil {
			return nil, errs.Wrap(err, "open sqlite db")
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, errs.Wrap(err, "get sqlite handle")
		}
		// One writer connection; transactions queue behind each other.
		sqlDB.SetMaxOpenConns(1)

		logging.Info(logCtx, "database opened", slog.String("driver", "sqlite"), slog.String("dsn", cfg.DSN))
		return db, nil
	case "postgres", "postgresql":
		db, err := gorm.Open(postgres.Open(cfg.DSN), gormCfg)
		if err != nil {
			return nil, errs.Wrap(err, "open postgres db")
		}
		if cfg.MaxOpenConns > 0 {
			sqlDB, err := db.DB()
			if err != nil {
				return nil, errs.Wrap(err, "get postgres handle")
			}
			sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		}

		logging.Info(logCtx, "database opened", slog.String("driver", "postgres"))
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// SQLiteDSN appends the pragmas the engine relies on unless the caller set
// them already.
func SQLiteDSN(dsn string) string {
	dsn = strings.TrimSpace(dsn)
	if dsn == ":memory:" {
		return dsn
	}
	pragmas := []string{"_pragma=busy_timeout(5000)", "_pragma=foreign_keys(1)"}
	out := dsn
	for _, p := range pragmas {
		if strings.Contains(dsn, p[:strings.Index(p, "(")]) {
			continue
		}
		if strings.Contains(out, "?") {
			out += "&" + p
		} else {
			out += "?" + p
		}
	}
	return out
}

func ensureSQLiteDirectory(ctx context.Context, dsn string) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}

	candidate := strings.TrimSpace(dsn)
	if candidate == "" || candidate == ":memory:" {
		return nil
	}

	if strings.HasPrefix(strings.ToLower(candidate), "file:") {
		candidate = strings.TrimPrefix(candidate, "file:")
	}
	if idx := strings.Index(candidate, "?"); idx >= 0 {
		candidate = candidate[:idx]
	}

	dir := filepath.Dir(candidate)
	if dir == "" || dir == "." {
		return nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.Wrapf(err, "create sqlite directory %q", dir)
	}

	logging.Info(logging.WithComponent(ctx, "bootstrap.database"), "sqlite directory ensured", slog.String("dir", dir))
	return nil
}

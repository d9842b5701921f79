package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tanktrace/internal/bootstrap/config"
	"tanktrace/internal/bootstrap/logging"
	"tanktrace/internal/errs"
	"tanktrace/internal/infrastructure/persistence/gormstore/model"
)

// SchemaVersion is stamped into schema_meta by InitSchema.
const SchemaVersion = "1"

const schemaVersionKey = "schema_version"

type App struct {
	Config config.Config
	DB     *gorm.DB
}

// InitSchema migrates every table and stamps the schema version.
func (a *App) InitSchema(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}

	logCtx := logging.WithComponent(ctx, "bootstrap.app")
	logging.Info(logCtx, "start schema migration")

	if err := a.DB.WithContext(ctx).AutoMigrate(model.All()...); err != nil {
		return errs.Wrap(err, "auto migrate schema")
	}

	stamp := model.SchemaMeta{Key: schemaVersionKey, Value: SchemaVersion, UpdatedAt: time.Now().UTC()}
	if err := a.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&stamp).Error; err != nil {
		return errs.Wrap(err, "stamp schema version")
	}

	logging.Info(logCtx, "schema migration completed", slog.String("schema_version", SchemaVersion))
	return nil
}

// StoredSchemaVersion returns the stamped version, or "" before init-db ran.
func (a *App) StoredSchemaVersion(ctx context.Context) (string, error) {
	if !a.DB.WithContext(ctx).Migrator().HasTable(&model.SchemaMeta{}) {
		return "", nil
	}
	var row model.SchemaMeta
	err := a.DB.WithContext(ctx).Where("key = ?", schemaVersionKey).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", errs.Wrap(err, "read schema version")
	}
	return row.Value, nil
}

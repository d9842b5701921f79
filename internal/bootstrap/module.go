package bootstrap

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"tanktrace/internal/bootstrap/config"
	"tanktrace/internal/bootstrap/database"
	"tanktrace/internal/bootstrap/logging"
	"tanktrace/internal/errs"
	cacheinfra "tanktrace/internal/infrastructure/cache"
	"tanktrace/internal/infrastructure/export"
	"tanktrace/internal/infrastructure/messaging"
	"tanktrace/internal/infrastructure/metrics"
	"tanktrace/internal/infrastructure/persistence/gormstore/repository"
	"tanktrace/internal/infrastructure/persistence/gormstore/uow"
	"tanktrace/internal/ports"
	"tanktrace/internal/usecase/assembly"
	"tanktrace/internal/usecase/identity"
	"tanktrace/internal/usecase/queue"
	"tanktrace/internal/usecase/traceability"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideLogger),
	fx.Provide(provideDatabase),
	fx.Provide(provideApp),
	fx.Provide(
		fx.Annotate(
			repository.NewGenealogyRepository,
			fx.As(new(ports.GenealogyRepository)),
			fx.As(new(ports.GenealogyReadRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			repository.NewQueueRepository,
			fx.As(new(ports.QueueRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			repository.NewReferenceRepository,
			fx.As(new(ports.ReferenceRepository)),
			fx.As(new(ports.ReferenceSeeder)),
		),
	),
	fx.Provide(
		fx.Annotate(
			uow.NewUnitOfWork,
			fx.As(new(ports.UnitOfWork)),
		),
	),
	fx.Provide(provideCache),
	fx.Provide(providePublisher),
	fx.Provide(metrics.NewRecorder),
	fx.Provide(provideMetrics),
	fx.Provide(identity.NewResolver),
	fx.Provide(queue.NewService),
	fx.Provide(assembly.NewService),
	fx.Provide(provideTraceability),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	ctx := logging.WithComponent(p.Ctx, "bootstrap.fx")
	return config.Load(ctx, p.ConfigFile)
}

func provideLogger(cfg config.Config) *slog.Logger {
	return logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format).
		With(slog.String("app", cfg.App.Name), slog.String("env", cfg.App.Env))
}

func provideDatabase(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	logCtx := logging.WithComponent(ctx, "bootstrap.fx")

	db, err := database.Open(logCtx, cfg.Database)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	return db, nil
}

func provideApp(cfg config.Config, db *gorm.DB) *App {
	return &App{
		Config: cfg,
		DB:     db,
	}
}

// provideCache returns nil for the "none" driver; usecases treat a nil cache
// as disabled.
func provideCache(lc fx.Lifecycle, ctx context.Context, cfg config.Config, db *gorm.DB) ports.Cache {
	logCtx := logging.WithComponent(ctx, "bootstrap.cache")

	var c ports.Cache
	switch strings.ToLower(strings.TrimSpace(cfg.Cache.Driver)) {
	case "", "none":
		return nil
	case "redis":
		rc, err := cacheinfra.NewRedisCache(cfg.Cache.RedisAddr, cfg.App.Name)
		if err != nil {
			logging.Warn(logCtx, "redis cache unavailable, caching disabled", slog.Any("err", errs.Loggable(err)))
			return nil
		}
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				if err := rc.Ping(ctx); err != nil {
					logging.Warn(logCtx, "redis ping failed", slog.Any("err", errs.Loggable(err)))
				}
				return nil
			},
			OnStop: func(context.Context) error { return rc.Close() },
		})
		c = rc
	default:
		c = cacheinfra.NewDBCache(db)
	}
	return cacheinfra.WithDefaultTTL(c, cfg.Cache.TTL)
}

// providePublisher falls back to a no-op publisher when NATS is not
// configured or cannot be reached at startup.
func providePublisher(lc fx.Lifecycle, ctx context.Context, cfg config.Config) ports.EventPublisher {
	if strings.TrimSpace(cfg.Messaging.NATSURL) == "" {
		return ports.NopPublisher{}
	}
	pub, err := messaging.Connect(cfg.Messaging.NATSURL, cfg.Messaging.SubjectPrefix, cfg.App.Name)
	if err != nil {
		logging.Warn(
			logging.WithComponent(ctx, "bootstrap.messaging"),
			"nats unavailable, events will not be published",
			slog.Any("err", errs.Loggable(err)),
		)
		return ports.NopPublisher{}
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pub.Close()
			return nil
		},
	})
	return pub
}

func provideMetrics(cfg config.Config, rec *metrics.Recorder) ports.Metrics {
	if !cfg.Metrics.Enabled {
		return ports.NopMetrics{}
	}
	return rec
}

type traceabilityParams struct {
	fx.In

	Config    config.Config
	Genealogy ports.GenealogyRepository
	Queues    ports.QueueRepository
	Reference ports.ReferenceRepository
	UoW       ports.UnitOfWork
	Resolver  *identity.Resolver
	Metrics   ports.Metrics
}

func provideTraceability(p traceabilityParams) *traceability.Service {
	return traceability.NewService(
		p.Genealogy,
		p.Queues,
		p.Reference,
		p.UoW,
		p.Resolver,
		p.Metrics,
		export.XLSXRenderer{},
		p.Config.Lookup.MaxNodes,
	)
}

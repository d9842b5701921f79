package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"go.uber.org/fx"

	"tanktrace/internal/bootstrap/config"
	"tanktrace/internal/bootstrap/logging"
	"tanktrace/internal/errs"
	"tanktrace/internal/infrastructure/metrics"
	"tanktrace/internal/transport/httpapi"
	"tanktrace/internal/usecase/assembly"
	"tanktrace/internal/usecase/queue"
	"tanktrace/internal/usecase/traceability"
)

// ServerModule adds the HTTP API on top of Module. The listener is bound in
// OnStart so address errors fail startup.
var ServerModule = fx.Options(
	fx.Provide(provideRouter),
	fx.Provide(provideServer),
	fx.Invoke(registerServer),
)

type routerParams struct {
	fx.In

	Config       config.Config
	Logger       *slog.Logger
	Queue        *queue.Service
	Assembly     *assembly.Service
	Traceability *traceability.Service
	Recorder     *metrics.Recorder
}

func provideRouter(p routerParams) http.Handler {
	deps := httpapi.Deps{
		Queue:        p.Queue,
		Assembly:     p.Assembly,
		Traceability: p.Traceability,
		Logger:       p.Logger,
		PlantID:      p.Config.App.PlantID,
	}
	if p.Config.Metrics.Enabled {
		deps.Metrics = p.Recorder
	}
	return httpapi.NewRouter(deps)
}

func provideServer(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}
}

func registerServer(lc fx.Lifecycle, ctx context.Context, cfg config.Config, logger *slog.Logger, srv *http.Server) {
	logCtx := logging.WithAttrs(
		logging.WithComponent(logging.WithLogger(ctx, logger), "bootstrap.http"),
		slog.String("addr", srv.Addr),
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return errs.Wrapf(err, "listen %s", srv.Addr)
			}
			logging.Info(logCtx, "http server listening")
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logging.Error(logCtx, "http server stopped", slog.Any("err", errs.Loggable(err)))
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			shutdownCtx := stopCtx
			if cfg.HTTP.ShutdownTimeout > 0 {
				var cancel context.CancelFunc
				shutdownCtx, cancel = context.WithTimeout(stopCtx, cfg.HTTP.ShutdownTimeout)
				defer cancel()
			}
			logging.Info(logCtx, "http server shutting down")
			return srv.Shutdown(shutdownCtx)
		},
	})
}

package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"tanktrace/internal/bootstrap"
	"tanktrace/internal/bootstrap/logging"
	"tanktrace/internal/errs"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API until interrupted",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var logger *slog.Logger
		var app *bootstrap.App
		fxApp := newFxApp(ctx, cmd, &logger, bootstrap.ServerModule, fx.Populate(&app))

		startCtx, cancelStart := context.WithTimeout(ctx, 15*time.Second)
		defer cancelStart()
		if err := fxApp.Start(startCtx); err != nil {
			logging.Error(ctx, "start server failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "start fx application")
		}
		ctx = logging.WithLogger(ctx, logger)
		if stored, err := app.StoredSchemaVersion(ctx); err != nil || stored != bootstrap.SchemaVersion {
			logging.Warn(ctx, "database schema is not current, run init-db",
				slog.String("stored", stored),
				slog.String("want", bootstrap.SchemaVersion),
			)
		}
		logging.Info(ctx, "server started")

		<-ctx.Done()

		stopCtx, cancelStop := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancelStop()
		if err := fxApp.Stop(stopCtx); err != nil {
			logging.Error(ctx, "server stop failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "stop fx application")
		}
		logging.Info(ctx, "server stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

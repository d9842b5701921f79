package cmd

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"tanktrace/internal/bootstrap"
	"tanktrace/internal/bootstrap/logging"
	"tanktrace/internal/errs"
	"tanktrace/internal/ports"
	"tanktrace/internal/usecase/assembly"
	"tanktrace/internal/usecase/queue"
	"tanktrace/internal/usecase/traceability"
)

type services struct {
	App          *bootstrap.App
	Queue        *queue.Service
	Assembly     *assembly.Service
	Traceability *traceability.Service
	Seeder       ports.ReferenceSeeder
}

// configFile returns "" when --config was left at its default, so a missing
// default file falls back to defaults and env.
func configFile(cmd *cobra.Command) string {
	if f := cmd.Flags().Lookup("config"); f != nil && !f.Changed {
		return ""
	}
	return cfgFile
}

func newFxApp(ctx context.Context, cmd *cobra.Command, logger **slog.Logger, opts ...fx.Option) *fx.App {
	file := configFile(cmd)
	base := []fx.Option{
		bootstrap.Module,
		fx.NopLogger,
		fx.Provide(func() context.Context { return ctx }),
		fx.Provide(
			fx.Annotate(
				func() string { return file },
				fx.ResultTags(`name:"configFile"`),
			),
		),
		fx.Populate(logger),
	}
	return fx.New(append(base, opts...)...)
}

func withApp(run func(cmd *cobra.Command, args []string, svc services) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("config_file", configFile(cmd)))

		var svc services
		var logger *slog.Logger
		fxApp := newFxApp(ctx, cmd, &logger,
			fx.Populate(&svc.App, &svc.Queue, &svc.Assembly, &svc.Traceability, &svc.Seeder),
		)

		startCtx, cancelStart := context.WithTimeout(ctx, 10*time.Second)
		defer cancelStart()
		if err := fxApp.Start(startCtx); err != nil {
			logging.Error(ctx, "bootstrap application failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "start fx application")
		}

		defer func() {
			stopCtx, cancelStop := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancelStop()
			if err := fxApp.Stop(stopCtx); err != nil {
				logging.Error(ctx, "fx application stop failed", slog.Any("err", errs.Loggable(err)))
			}
		}()

		cmd.SetContext(logging.WithLogger(ctx, logger))
		if err := run(cmd, args, svc); err != nil {
			return errs.Wrap(err, "run command")
		}
		return nil
	}
}

/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"tanktrace/internal/bootstrap"
	"tanktrace/internal/bootstrap/logging"
	"tanktrace/internal/errs"
)

var (
	cfgFile  string
	logLevel string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:          "tanktrace",
	Short:        "Tank genealogy and material queue engine",
	Long:         "Records material queues, tank assemblies and their genealogy. Cobra + Viper + GORM + fx.",
	Version:      "schema " + bootstrap.SchemaVersion,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if cmd.Flags().Changed("log-level") {
			ctx = logging.WithLogger(ctx, logging.New(cmd.ErrOrStderr(), logLevel, "text"))
		}
		cmd.SetContext(logging.WithAttrs(ctx, slog.String("command", cmd.CommandPath())))
		return nil
	},
}

// Execute runs the command selected by os.Args. Lines logged before the
// config is loaded go to stderr at --log-level.
func Execute(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	ctx = logging.WithLogger(ctx, logging.New(rootCmd.ErrOrStderr(), logLevel, "text"))
	ctx = logging.WithAttrs(ctx, slog.String("app", "tanktrace"))

	rootCmd.SetContext(ctx)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logging.Error(ctx, "command execution failed", slog.Any("err", errs.Loggable(err)))
		return errs.Wrap(err, "execute root command")
	}

	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "configs/config.yaml", "Config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Bootstrap log level (debug, info, warn, error)")
}

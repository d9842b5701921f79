package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"tanktrace/internal/bootstrap/logging"
	"tanktrace/internal/errs"
	"tanktrace/internal/infrastructure/referencefile"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load plants, work centers, products, vendors and users from a TOML file",
	RunE: withApp(func(cmd *cobra.Command, _ []string, svc services) error {
		ctx := cmd.Context()

		file, _ := cmd.Flags().GetString("file")
		data, err := referencefile.Load(file)
		if err != nil {
			return errs.Wrapf(err, "load reference file %s", file)
		}
		if err := svc.Seeder.Seed(ctx, data); err != nil {
			return errs.Wrap(err, "seed reference data")
		}

		logging.Info(ctx, "reference data seeded",
			slog.Int("plants", len(data.Plants)),
			slog.Int("work_centers", len(data.WorkCenters)),
			slog.Int("products", len(data.Products)),
			slog.Int("vendors", len(data.Vendors)),
			slog.Int("users", len(data.Users)),
		)
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "seeded %d plants, %d work centers, %d products, %d vendors, %d users\n",
			len(data.Plants), len(data.WorkCenters), len(data.Products), len(data.Vendors), len(data.Users))
		return err
	}),
}

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().String("file", "seed.toml", "Reference data file")
}

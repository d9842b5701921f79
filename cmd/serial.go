package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tanktrace/internal/errs"
	"tanktrace/internal/usecase/traceability"
)

var serialCmd = &cobra.Command{
	Use:   "serial",
	Short: "Register, inspect and trace serial numbers",
}

var serialRegisterCmd = &cobra.Command{
	Use:   "register SERIAL",
	Short: "Register a shell rolled from a drawn coil",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, svc services) error {
		coil, _ := cmd.Flags().GetString("coil")
		wc, _ := cmd.Flags().GetUint64("wc")
		product, _ := cmd.Flags().GetUint64("product")
		actor, _ := cmd.Flags().GetString("actor")
		rawWelders, _ := cmd.Flags().GetStringSlice("welder")
		welders, err := parseIDs("welderIds", rawWelders)
		if err != nil {
			return err
		}

		node, err := svc.Traceability.RegisterShell(cmd.Context(), traceability.RegisterShellInput{
			Serial:       args[0],
			CoilSerial:   coil,
			WorkCenterID: wc,
			ProductID:    product,
			OperatorID:   optionalID(cmd, "operator"),
			WelderIDs:    welders,
			Actor:        actor,
		})
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "shell %s registered from coil %s\n", node.Serial, node.CoilNumber)
		return err
	}),
}

var serialContextCmd = &cobra.Command{
	Use:   "context SERIAL",
	Short: "Show what a scanned serial is and which assembly holds it",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, svc services) error {
		sc, err := svc.Traceability.GetContext(cmd.Context(), args[0], svc.App.Config.App.PlantID)
		if err != nil {
			return err
		}
		return printJSON(cmd, sc)
	}),
}

var serialLookupCmd = &cobra.Command{
	Use:   "lookup SERIAL",
	Short: "Print the genealogy tree of a serial, or write it to a workbook",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, svc services) error {
		ctx := cmd.Context()
		plantID := svc.App.Config.App.PlantID
		out, _ := cmd.Flags().GetString("xlsx")
		if out == "" {
			lookup, err := svc.Traceability.GetLookup(ctx, args[0], plantID)
			if err != nil {
				return err
			}
			return printJSON(cmd, lookup)
		}

		f, err := os.Create(out)
		if err != nil {
			return errs.Wrapf(err, "create %s", out)
		}
		if err := svc.Traceability.ExportLookup(ctx, args[0], plantID, f); err != nil {
			_ = f.Close()
			_ = os.Remove(out)
			return err
		}
		if err := f.Close(); err != nil {
			return errs.Wrapf(err, "close %s", out)
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "lookup of %s written to %s\n", args[0], out)
		return err
	}),
}

var serialEventCmd = &cobra.Command{
	Use:   "event SERIAL ACTION",
	Short: "Record a station event such as hydro or x-ray",
	Args:  cobra.ExactArgs(2),
	RunE: withApp(func(cmd *cobra.Command, args []string, svc services) error {
		wc, _ := cmd.Flags().GetUint64("wc")
		result, _ := cmd.Flags().GetString("result")
		notes, _ := cmd.Flags().GetString("notes")
		rawWelders, _ := cmd.Flags().GetStringSlice("welder")
		welders, err := parseIDs("welderIds", rawWelders)
		if err != nil {
			return err
		}

		rec, err := svc.Traceability.RecordEvent(cmd.Context(), traceability.EventInput{
			Serial:       args[0],
			PlantID:      svc.App.Config.App.PlantID,
			WorkCenterID: wc,
			OperatorID:   optionalID(cmd, "operator"),
			WelderIDs:    welders,
			Action:       args[1],
			Result:       result,
			Notes:        notes,
		})
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s recorded on %s (record %d)\n", rec.Action, args[0], rec.ID)
		return err
	}),
}

func init() {
	rootCmd.AddCommand(serialCmd)
	serialCmd.AddCommand(serialRegisterCmd, serialContextCmd, serialLookupCmd, serialEventCmd)

	for _, c := range []*cobra.Command{serialRegisterCmd, serialEventCmd} {
		c.Flags().Uint64("wc", 0, "Work center id")
		c.Flags().Uint64("operator", 0, "Operator user id")
		c.Flags().StringSlice("welder", nil, "Welder user ids")
		_ = c.MarkFlagRequired("wc")
	}
	serialRegisterCmd.Flags().String("coil", "", "Serial of the drawn coil")
	serialRegisterCmd.Flags().Uint64("product", 0, "Shell product id")
	serialRegisterCmd.Flags().String("actor", "", "Name recorded as creator")
	serialEventCmd.Flags().String("result", "", "Outcome, e.g. pass or fail")
	serialEventCmd.Flags().String("notes", "", "Free text")
	serialLookupCmd.Flags().String("xlsx", "", "Write the lookup to this workbook instead of stdout")
}

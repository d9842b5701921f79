package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"tanktrace/internal/usecase/assembly"
)

var assemblyCmd = &cobra.Command{
	Use:   "assembly",
	Short: "Create, rebuild and inspect tank assemblies",
}

var assemblyCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Weld shells and two head lots into a new alpha-coded assembly",
	RunE: withApp(func(cmd *cobra.Command, _ []string, svc services) error {
		shells, _ := cmd.Flags().GetStringSlice("shell")
		left, _ := cmd.Flags().GetString("left-head")
		right, _ := cmd.Flags().GetString("right-head")
		tankSize, _ := cmd.Flags().GetInt("tank-size")
		wc, _ := cmd.Flags().GetUint64("wc")
		actor, _ := cmd.Flags().GetString("actor")
		rawWelders, _ := cmd.Flags().GetStringSlice("welder")
		welders, err := parseIDs("welderIds", rawWelders)
		if err != nil {
			return err
		}

		res, err := svc.Assembly.Create(cmd.Context(), assembly.CreateInput{
			Shells:           shells,
			LeftHeadLotID:    left,
			RightHeadLotID:   right,
			TankSize:         tankSize,
			WorkCenterID:     wc,
			AssetID:          optionalID(cmd, "asset"),
			ProductionLineID: optionalID(cmd, "line"),
			OperatorID:       optionalID(cmd, "operator"),
			WelderIDs:        welders,
			Actor:            actor,
		})
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "assembly %s created (id %d)\n", res.AlphaCode, res.ID)
		return err
	}),
}

var assemblyReassembleCmd = &cobra.Command{
	Use:   "reassemble ALPHA",
	Short: "Swap components of an existing assembly, keeping its alpha code",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, svc services) error {
		shells, _ := cmd.Flags().GetStringSlice("shell")
		left, _ := cmd.Flags().GetString("left-head")
		right, _ := cmd.Flags().GetString("right-head")
		actor, _ := cmd.Flags().GetString("actor")
		rawWelders, _ := cmd.Flags().GetStringSlice("welder")
		welders, err := parseIDs("welderIds", rawWelders)
		if err != nil {
			return err
		}

		res, err := svc.Assembly.Reassemble(cmd.Context(), assembly.ReassembleInput{
			AlphaCode:      args[0],
			PlantID:        svc.App.Config.App.PlantID,
			Shells:         shells,
			LeftHeadLotID:  left,
			RightHeadLotID: right,
			OperatorID:     optionalID(cmd, "operator"),
			WelderIDs:      welders,
			Actor:          actor,
		})
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "assembly %s reassembled\n", res.AlphaCode)
		return err
	}),
}

var assemblyShowCmd = &cobra.Command{
	Use:   "show ALPHA",
	Short: "Print the current bindings of an assembly",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, svc services) error {
		view, err := svc.Assembly.Get(cmd.Context(), svc.App.Config.App.PlantID, args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, view)
	}),
}

func init() {
	rootCmd.AddCommand(assemblyCmd)
	assemblyCmd.AddCommand(assemblyCreateCmd, assemblyReassembleCmd, assemblyShowCmd)

	for _, c := range []*cobra.Command{assemblyCreateCmd, assemblyReassembleCmd} {
		c.Flags().StringSlice("shell", nil, "Shell serials in position order; blank keeps a slot on reassemble")
		c.Flags().String("left-head", "", "Left head lot or heat")
		c.Flags().String("right-head", "", "Right head lot or heat")
		c.Flags().Uint64("operator", 0, "Operator user id")
		c.Flags().StringSlice("welder", nil, "Welder user ids")
		c.Flags().String("actor", "", "Name recorded as creator or modifier")
	}
	assemblyCreateCmd.Flags().Int("tank-size", 0, "Tank size in gallons")
	assemblyCreateCmd.Flags().Uint64("wc", 0, "Work center id")
	assemblyCreateCmd.Flags().Uint64("asset", 0, "Asset id")
	assemblyCreateCmd.Flags().Uint64("line", 0, "Production line id")
	_ = assemblyCreateCmd.MarkFlagRequired("wc")
}

package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	domainqueue "tanktrace/internal/domain/queue"
	"tanktrace/internal/errs"
	"tanktrace/internal/usecase/queue"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Work the material queue of a work center",
}

var queueAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Append an item to the tail of the queue",
	RunE: withApp(func(cmd *cobra.Command, _ []string, svc services) error {
		wc, _ := cmd.Flags().GetUint64("wc")
		rawQty, _ := cmd.Flags().GetString("quantity")
		qty := decimal.Zero
		if rawQty != "" {
			var err error
			if qty, err = decimal.NewFromString(rawQty); err != nil {
				return errs.Validation("quantity", "%q is not a number", rawQty)
			}
		}
		str := func(name string) string {
			v, _ := cmd.Flags().GetString(name)
			return v
		}

		item, err := svc.Queue.Enqueue(cmd.Context(), queue.EnqueueInput{
			WorkCenterID: wc,
			Details: domainqueue.Details{
				ProductID:         optionalID(cmd, "product"),
				MillVendorID:      optionalID(cmd, "mill"),
				ProcessorVendorID: optionalID(cmd, "processor"),
				HeadVendorID:      optionalID(cmd, "head-vendor"),
				HeatNumber:        str("heat"),
				CoilNumber:        str("coil"),
				LotNumber:         str("lot"),
				CardCode:          str("card"),
				Description:       str("description"),
				Quantity:          qty,
			},
			Operator: str("operator"),
		})
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "queued item %d at position %d\n", item.ID, item.Position)
		return err
	}),
}

var queueAdvanceCmd = &cobra.Command{
	Use:   "advance",
	Short: "Consume the head of the queue",
	RunE: withApp(func(cmd *cobra.Command, _ []string, svc services) error {
		wc, _ := cmd.Flags().GetUint64("wc")
		operator, _ := cmd.Flags().GetString("operator")
		res, err := svc.Queue.Advance(cmd.Context(), wc, operator)
		if err != nil {
			return err
		}
		return printJSON(cmd, res)
	}),
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show pending items in queue order",
	RunE: withApp(func(cmd *cobra.Command, _ []string, svc services) error {
		wc, _ := cmd.Flags().GetUint64("wc")
		items, err := svc.Queue.List(cmd.Context(), wc)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tPOS\tCARD\tHEAT\tCOIL\tLOT\tQTY")
		for _, it := range items {
			d := it.Details
			fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\t%s\t%s\n",
				it.ID, it.Position, d.CardCode, d.HeatNumber, d.CoilNumber, d.LotNumber, d.Quantity)
		}
		return tw.Flush()
	}),
}

var queueTxCmd = &cobra.Command{
	Use:   "tx",
	Short: "Show the queue audit trail, newest first",
	RunE: withApp(func(cmd *cobra.Command, _ []string, svc services) error {
		wc, _ := cmd.Flags().GetUint64("wc")
		limit, _ := cmd.Flags().GetInt("limit")
		rows, err := svc.Queue.Transactions(cmd.Context(), wc, limit)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "WHEN\tACTION\tOPERATOR\tSUMMARY")
		for _, tx := range rows {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", tx.CreatedAt.Format("2006-01-02 15:04:05"), tx.Action, tx.Operator, tx.Summary)
		}
		return tw.Flush()
	}),
}

func init() {
	rootCmd.AddCommand(queueCmd)
	queueCmd.AddCommand(queueAddCmd, queueAdvanceCmd, queueListCmd, queueTxCmd)

	queueCmd.PersistentFlags().Uint64("wc", 0, "Work center id")
	_ = queueCmd.MarkPersistentFlagRequired("wc")

	queueAddCmd.Flags().Uint64("product", 0, "Product id")
	queueAddCmd.Flags().Uint64("mill", 0, "Mill vendor id (rolls)")
	queueAddCmd.Flags().Uint64("processor", 0, "Processor vendor id (rolls)")
	queueAddCmd.Flags().Uint64("head-vendor", 0, "Head vendor id (fit-up)")
	queueAddCmd.Flags().String("heat", "", "Heat number")
	queueAddCmd.Flags().String("coil", "", "Coil number (rolls)")
	queueAddCmd.Flags().String("lot", "", "Lot number (fit-up)")
	queueAddCmd.Flags().String("card", "", "Card code (fit-up)")
	queueAddCmd.Flags().String("description", "", "Free text")
	queueAddCmd.Flags().String("quantity", "", "Quantity; fit-up defaults to 1")
	for _, c := range []*cobra.Command{queueAddCmd, queueAdvanceCmd} {
		c.Flags().String("operator", "", "Operator name for the audit trail")
	}
	queueTxCmd.Flags().Int("limit", 50, "Maximum rows")
}

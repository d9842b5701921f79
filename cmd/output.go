package cmd

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"tanktrace/internal/errs"
)

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return errs.Wrap(err, "write output")
	}
	return nil
}

// optionalID returns nil unless the flag was set.
func optionalID(cmd *cobra.Command, name string) *uint64 {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetUint64(name)
	return &v
}

func parseIDs(field string, raw []string) ([]uint64, error) {
	ids := make([]uint64, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		id, err := strconv.ParseUint(r, 10, 64)
		if err != nil {
			return nil, errs.Validation(field, "%q is not an id", r)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

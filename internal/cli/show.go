package cli

import (
	"github.com/spf13/cobra"

	"groupfeed/internal/app"
)

var (
	showGroup string
	showField string
	showRuns  bool
	showLimit int
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the cached snapshot or recent refresh runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Show(cmd.Context(), app.ShowOptions{
			Group: showGroup,
			Field: showField,
			Runs:  showRuns,
			Limit: showLimit,
		})
	},
}

func init() {
	showCmd.Flags().StringVar(&showGroup, "group", "", "Group address (defaults to ledger.group_address)")
	showCmd.Flags().StringVar(&showField, "field", "", "Limit output to a single cache field (group, banks, priceInfos, tokenDatas, feedIdMap)")
	showCmd.Flags().BoolVar(&showRuns, "runs", false, "List recent refresh runs instead of the snapshot")
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Maximum number of runs to list")
}

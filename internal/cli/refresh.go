package cli

import (
	"github.com/spf13/cobra"

	"groupfeed/internal/app"
)

var (
	refreshGroup string
	refreshBanks []string
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Run a single refresh cycle and publish the snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().RefreshOnce(cmd.Context(), app.RefreshOptions{
			Group:     refreshGroup,
			Allowlist: refreshBanks,
		})
	},
}

func init() {
	refreshCmd.Flags().StringVar(&refreshGroup, "group", "", "Group address (defaults to ledger.group_address)")
	refreshCmd.Flags().StringSliceVar(&refreshBanks, "bank", nil, "Explicit bank allowlist; may be repeated")
}

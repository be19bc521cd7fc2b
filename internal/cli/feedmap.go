package cli

import (
	"github.com/spf13/cobra"

	"groupfeed/internal/app"
)

var feedMapGroup string

var feedMapCmd = &cobra.Command{
	Use:   "feedmap",
	Short: "Resolve and print the oracle feed map for a group",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().FetchFeedMap(cmd.Context(), app.FeedMapOptions{
			Group: feedMapGroup,
		})
	},
}

func init() {
	feedMapCmd.Flags().StringVar(&feedMapGroup, "group", "", "Group address (defaults to ledger.group_address)")
}

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// FeedMapOptions configure the standalone feed-map fetch.
type FeedMapOptions struct {
	Group string
}

// FetchFeedMap resolves and prints the group's feed map. This path honors
// the configured exclusion denylist; the refresh pipeline does not.
func (a *App) FetchFeedMap(ctx context.Context, opts FeedMapOptions) error {
	group, err := a.resolveGroup(opts.Group)
	if err != nil {
		return err
	}

	svc, _, _, cleanup, err := a.newService(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	feedMap, err := svc.FetchFeedMap(ctx, group)
	if err != nil {
		return err
	}

	out := make(map[string]string, len(feedMap))
	for bankAddress, feed := range feedMap {
		out[bankAddress.String()] = feed.String()
	}

	encoded, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, string(encoded))
	return nil
}

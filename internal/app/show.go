package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"groupfeed/internal/cache"
)

// ShowOptions configure the show command.
type ShowOptions struct {
	Group string
	// Field optionally narrows output to a single cache field.
	Field string
	// Runs switches to printing the recent run journal instead of the
	// cached snapshot.
	Runs  bool
	Limit int
}

// Show prints a group's cached snapshot entry, or the recent run journal.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	if opts.Runs {
		return a.showRuns(ctx, opts.Limit)
	}
	return a.showSnapshot(ctx, opts)
}

func (a *App) showSnapshot(ctx context.Context, opts ShowOptions) error {
	group, err := a.resolveGroup(opts.Group)
	if err != nil {
		return err
	}

	redisCache, closeCache, err := a.openCache()
	if err != nil {
		return err
	}
	if redisCache == nil {
		return errors.New("cache.redis_url not configured; cannot show snapshot")
	}
	defer closeCache()

	fields, err := redisCache.Fetch(ctx, group)
	if err != nil {
		return err
	}
	if len(fields) == 0 {
		fmt.Fprintf(os.Stdout, "no cached snapshot for group %s\n", group)
		return nil
	}

	order := []string{cache.FieldGroup, cache.FieldBanks, cache.FieldPriceInfos, cache.FieldTokenDatas, cache.FieldFeedIDMap}
	for _, field := range order {
		if opts.Field != "" && opts.Field != field {
			continue
		}
		doc, ok := fields[field]
		if !ok {
			doc = "{}"
		}
		fmt.Fprintf(os.Stdout, "-- %s --\n%s\n", field, prettyJSON(doc))
	}
	return nil
}

func (a *App) showRuns(ctx context.Context, limit int) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show runs")
	}
	if closeStore != nil {
		defer closeStore()
	}

	if limit <= 0 {
		limit = 20
	}
	runs, err := store.ListRecentRefreshRuns(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(os.Stdout, "no refresh runs found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Started (UTC)\tGroup\tBanks\tStale\tAdjusted\tDegraded\tDuration\tStatus\tError")

	for _, run := range runs {
		errMsg := ""
		if run.Error != nil {
			errMsg = sanitizeInline(*run.Error)
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%d\t%d\t%d\t%d\t%s\t%s\t%s\n",
			run.StartedAt.UTC().Format(time.RFC3339),
			run.GroupAddress,
			run.BankCount,
			run.StaleCount,
			run.AdjustedCount,
			run.DegradedCount,
			run.Duration,
			run.Status,
			errMsg,
		)
	}

	writer.Flush()
	return nil
}

func prettyJSON(doc string) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(doc), "", "  "); err != nil {
		return doc
	}
	return buf.String()
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}

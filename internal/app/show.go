package app

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"mmn-tracker/internal/extract"
	"mmn-tracker/internal/storage"
)

// Show prints the latest cached snapshot per commodity, or every snapshot
// with --all.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	snaps, err := store.ListSnapshots(ctx)
	if err != nil {
		return err
	}
	if len(snaps) == 0 {
		fmt.Fprintln(os.Stdout, "no cached prices")
		return nil
	}

	if !opts.All {
		snaps = latestPerCommodity(snaps)
	}
	sort.Slice(snaps, func(i, j int) bool {
		if snaps[i].Commodity != snaps[j].Commodity {
			return snaps[i].Commodity < snaps[j].Commodity
		}
		return extract.NewerReportDate(snaps[i].ReportedAt, snaps[j].ReportedAt)
	})

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Commodity\tPrice\tUnit\tReport Date\tSource")
	for _, snap := range snaps {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\n",
			snap.Commodity,
			formatPrice(snap),
			orNA(snap.Unit),
			snap.ReportedAt,
			strings.ToUpper(snap.Source),
		)
	}
	writer.Flush()

	if a.Config.Tracker.AttributionText != "" {
		fmt.Fprintln(os.Stdout, a.Config.Tracker.AttributionText)
	}
	return nil
}

// latestPerCommodity keeps the most recent snapshot by reported_at for each
// commodity.
func latestPerCommodity(snaps []storage.Snapshot) []storage.Snapshot {
	latest := make(map[string]storage.Snapshot)
	for _, snap := range snaps {
		if prev, ok := latest[snap.Commodity]; !ok || extract.NewerReportDate(snap.ReportedAt, prev.ReportedAt) {
			latest[snap.Commodity] = snap
		}
	}
	result := make([]storage.Snapshot, 0, len(latest))
	for _, snap := range latest {
		result = append(result, snap)
	}
	return result
}

func formatPrice(snap storage.Snapshot) string {
	if snap.Price == nil {
		return "N/A"
	}
	return "$" + snap.Price.StringFixed(2)
}

func orNA(v *string) string {
	if v == nil || *v == "" {
		return "N/A"
	}
	return *v
}

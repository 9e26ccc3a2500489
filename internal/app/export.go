package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"mmn-tracker/internal/extract"
	"mmn-tracker/internal/storage"
)

// Export serialises cached snapshots as CSV and/or a PNG price-history
// chart. A pure read-only projection of the store.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxRows = a.Config.ResolveMaxRows(opts.MaxRows)

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
		a.Logger.Info().Msg("no snapshots to export")
		return nil
	}

	sort.Slice(snaps, func(i, j int) bool {
		if snaps[i].Commodity != snaps[j].Commodity {
			return snaps[i].Commodity < snaps[j].Commodity
		}
		return extract.NewerReportDate(snaps[j].ReportedAt, snaps[i].ReportedAt)
	})
	if len(snaps) > opts.MaxRows {
		snaps = snaps[:opts.MaxRows]
	}

	a.Logger.Info().Int("rows", len(snaps)).Msg("exporting snapshots")

	if opts.CSVPath != "" {
		if err := writeSnapshotsCSV(opts.CSVPath, snaps); err != nil {
			return err
		}
	}
	if opts.PNGPath != "" {
		if err := writeSnapshotsPNG(opts.PNGPath, snaps); err != nil {
			return err
		}
	}

	if a.Config.Tracker.AttributionText != "" {
		fmt.Fprintln(os.Stdout, a.Config.Tracker.AttributionText)
	}
	return nil
}

var csvHeader = []string{"Commodity", "Price", "Unit", "Report Date", "Fetched Date", "Source"}

func writeSnapshotsCSV(path string, snaps []storage.Snapshot) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write(csvHeader); err != nil {
		return err
	}
	for _, snap := range snaps {
		record := []string{
			snap.Commodity,
			csvPrice(snap),
			orNA(snap.Unit),
			snap.ReportedAt,
			snap.FetchedAt,
			snap.Source,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	return writer.Error()
}

func csvPrice(snap storage.Snapshot) string {
	if snap.Price == nil {
		return "N/A"
	}
	return snap.Price.String()
}

// writeSnapshotsPNG renders one price time series per commodity. Snapshots
// without a parseable report date or price are skipped; a chart needs at
// least two plottable points overall.
func writeSnapshotsPNG(path string, snaps []storage.Snapshot) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	byCommodity := make(map[string][]storage.Snapshot)
	var order []string
	for _, snap := range snaps {
		if snap.Price == nil {
			continue
		}
		if _, ok := byCommodity[snap.Commodity]; !ok {
			order = append(order, snap.Commodity)
		}
		byCommodity[snap.Commodity] = append(byCommodity[snap.Commodity], snap)
	}

	var series []chart.Series
	plottable := 0
	for _, commodity := range order {
		var x []time.Time
		var y []float64
		for _, snap := range byCommodity[commodity] {
			ts, err := parseReportDate(snap.ReportedAt)
			if err != nil {
				continue
			}
			x = append(x, ts)
			y = append(y, snap.Price.InexactFloat64())
		}
		if len(x) == 0 {
			continue
		}
		plottable += len(x)
		series = append(series, chart.TimeSeries{
			Name:    commodity,
			XValues: x,
			YValues: y,
		})
	}
	if plottable < 2 {
		return errors.New("not enough plottable snapshots for a chart")
	}

	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name: "Price (USD)",
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.2f")
			},
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func parseReportDate(raw string) (time.Time, error) {
	return extract.ParseReportDate(raw)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

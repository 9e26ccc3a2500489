package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"

	"mmn-tracker/internal/alerting"
	"mmn-tracker/internal/storage"
)

// Set applies preference changes to the stored settings. Only the provided
// fields are touched.
func (a *App) Set(ctx context.Context, opts SetOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	settings, err := store.LoadSettings(ctx)
	if err != nil {
		return err
	}

	if opts.Zip != nil {
		settings.PreferredZip = *opts.Zip
	}
	if len(opts.Commodities) > 0 {
		settings.PreferredCommodities = opts.Commodities
	}
	if opts.Unit != nil {
		settings.Unit = *opts.Unit
	}
	if opts.Interval != nil {
		if *opts.Interval < 1 {
			return fmt.Errorf("poll interval must be at least 1 minute")
		}
		settings.PollInterval = *opts.Interval
	}
	if opts.Retention != nil {
		if *opts.Retention < 1 {
			return fmt.Errorf("retention must be at least 1 day")
		}
		settings.MaxRetentionDays = *opts.Retention
	}

	if err := store.SaveSettings(ctx, settings); err != nil {
		return err
	}
	a.Logger.Info().Msg("settings updated")
	return nil
}

// AddAlert validates and stores a new price alert.
func (a *App) AddAlert(ctx context.Context, commodity, condition string) error {
	if commodity == "" {
		return fmt.Errorf("commodity is required")
	}
	if _, err := alerting.ParseCondition(condition); err != nil {
		return err
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	alert := storage.Alert{
		ID:        uuid.New().String(),
		Commodity: commodity,
		Condition: condition,
	}
	if err := store.SaveAlert(ctx, alert); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "alert %s created: %s %s\n", alert.ID, commodity, condition)
	return nil
}

// ListAlerts prints all stored alerts.
func (a *App) ListAlerts(ctx context.Context) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	alerts, err := store.ListAlerts(ctx)
	if err != nil {
		return err
	}
	if len(alerts) == 0 {
		fmt.Fprintln(os.Stdout, "no alerts configured")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tCommodity\tCondition\tLast Triggered")
	for _, alert := range alerts {
		triggered := "never"
		if alert.LastTriggeredAt != nil {
			triggered = *alert.LastTriggeredAt
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n", alert.ID, alert.Commodity, alert.Condition, triggered)
	}
	return writer.Flush()
}

// RemoveAlert deletes an alert by id.
func (a *App) RemoveAlert(ctx context.Context, id string) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	return store.Alerts().Remove(ctx, id)
}

// Clear empties the snapshot, location, and alert collections. With
// ResetSettings the settings singleton is also restored to host defaults.
func (a *App) Clear(ctx context.Context, opts ClearOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	for _, col := range []*storage.Collection{store.Snapshots(), store.Locations(), store.Alerts()} {
		if err := col.Clear(ctx); err != nil {
			return err
		}
	}
	if opts.ResetSettings {
		if err := store.SaveSettings(ctx, a.defaultSettings()); err != nil {
			return err
		}
	}

	a.Logger.Info().Bool("settings_reset", opts.ResetSettings).Msg("local data cleared")
	return nil
}

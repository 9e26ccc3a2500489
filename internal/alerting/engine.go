package alerting

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"mmn-tracker/internal/extract"
	"mmn-tracker/internal/storage"
)

// timeNow is swapped in tests asserting last_triggered_at updates.
var timeNow = time.Now

// Engine evaluates stored alert conditions against the latest snapshot per
// commodity and fires notifications.
type Engine struct {
	store    *storage.Store
	notifier Notifier
	enabled  bool
	logger   zerolog.Logger
}

// NewEngine constructs the alert engine. notifier may be nil; enabled gates
// the notification side effect, not the evaluation itself.
func NewEngine(store *storage.Store, notifier Notifier, enabled bool, logger zerolog.Logger) *Engine {
	return &Engine{
		store:    store,
		notifier: notifier,
		enabled:  enabled,
		logger:   logger.With().Str("component", "alert_engine").Logger(),
	}
}

// Check full-scans all alerts and evaluates each against the most recent
// snapshot for its commodity. A satisfied alert fires on every qualifying
// check; only last_triggered_at records the repetition.
func (e *Engine) Check(ctx context.Context) error {
	alerts, err := e.store.ListAlerts(ctx)
	if err != nil {
		return fmt.Errorf("scan alerts: %w", err)
	}

	for _, alert := range alerts {
		if err := e.evaluate(ctx, alert); err != nil {
			e.logger.Error().Err(err).
				Str("alert_id", alert.ID).
				Str("commodity", alert.Commodity).
				Msg("alert evaluation failed")
		}
	}
	return nil
}

func (e *Engine) evaluate(ctx context.Context, alert storage.Alert) error {
	cond, err := ParseCondition(alert.Condition)
	if err != nil {
		return err
	}

	latest, err := e.latestSnapshot(ctx, alert.Commodity)
	if err != nil {
		return err
	}
	if latest == nil || latest.Price == nil {
		return nil
	}
	if !cond.Matches(*latest.Price) {
		return nil
	}

	triggeredAt := timeNow().UTC()
	if e.enabled && e.notifier != nil {
		note := Notification{
			Commodity:   alert.Commodity,
			Price:       *latest.Price,
			Condition:   alert.Condition,
			ReportedAt:  latest.ReportedAt,
			TriggeredAt: triggeredAt,
		}
		if latest.Unit != nil {
			note.Unit = *latest.Unit
		}
		if latest.LocationID != nil {
			note.LocationID = *latest.LocationID
		}
		if err := e.notifier.Notify(ctx, note); err != nil {
			e.logger.Error().Err(err).Str("commodity", alert.Commodity).Msg("failed to dispatch alert")
		}
	}

	stamp := triggeredAt.Format(time.RFC3339)
	alert.LastTriggeredAt = &stamp
	if err := e.store.SaveAlert(ctx, alert); err != nil {
		return fmt.Errorf("persist last_triggered_at: %w", err)
	}

	e.logger.Info().
		Str("commodity", alert.Commodity).
		Str("condition", cond.String()).
		Str("price", latest.Price.String()).
		Msg("alert triggered")
	return nil
}

// latestSnapshot full-scans the snapshot collection for the commodity's most
// recent snapshot by reported_at.
func (e *Engine) latestSnapshot(ctx context.Context, commodity string) (*storage.Snapshot, error) {
	var latest *storage.Snapshot
	err := e.store.ForEachSnapshot(ctx, func(_ string, snap storage.Snapshot) error {
		if snap.Commodity != commodity {
			return nil
		}
		if latest == nil || extract.NewerReportDate(snap.ReportedAt, latest.ReportedAt) {
			copied := snap
			latest = &copied
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return latest, nil
}

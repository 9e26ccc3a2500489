// Package snapshot turns raw report entries into stored price snapshots,
// enforcing natural-key uniqueness and the retention window.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"mmn-tracker/internal/extract"
	"mmn-tracker/internal/storage"
)

// timeNow is swapped in retention tests.
var timeNow = time.Now

// Recorder persists normalised snapshots.
type Recorder struct {
	store  *storage.Store
	logger zerolog.Logger
}

// NewRecorder constructs a Recorder over the shared store.
func NewRecorder(store *storage.Store, logger zerolog.Logger) *Recorder {
	return &Recorder{
		store:  store,
		logger: logger.With().Str("component", "snapshot_recorder").Logger(),
	}
}

// Save normalises raw, persists it as a snapshot unless one already exists
// for the same (commodity, reported_at) pair, then purges snapshots past the
// retention window. First write wins; a duplicate is silently discarded.
// Purge runs after every save attempt, inserted or not.
func (r *Recorder) Save(ctx context.Context, commodity string, raw json.RawMessage, settings storage.Settings) error {
	doc := extract.Parse(raw)

	unit := extract.Unit(doc)
	if unit == nil && settings.Unit != "" {
		fallback := settings.Unit
		unit = &fallback
	}

	snap := storage.Snapshot{
		ID:         uuid.New().String(),
		Commodity:  commodity,
		Source:     extract.Source,
		LocationID: extract.LocationID(doc),
		Price:      extract.Price(doc),
		Unit:       unit,
		ReportedAt: extract.ReportDate(doc),
		FetchedAt:  timeNow().UTC().Format(time.RFC3339),
		Meta:       raw,
	}

	exists, err := r.exists(ctx, snap.Commodity, snap.ReportedAt)
	if err != nil {
		return fmt.Errorf("dedup scan: %w", err)
	}
	if exists {
		r.logger.Debug().
			Str("commodity", snap.Commodity).
			Str("reported_at", snap.ReportedAt).
			Msg("snapshot already captured, discarding")
	} else {
		if err := r.store.InsertSnapshot(ctx, snap); err != nil {
			return fmt.Errorf("insert snapshot: %w", err)
		}
		r.logger.Info().
			Str("commodity", snap.Commodity).
			Str("reported_at", snap.ReportedAt).
			Msg("snapshot stored")
	}

	return r.Purge(ctx, settings.MaxRetentionDays)
}

// exists performs the pre-insert existence scan over the natural key.
func (r *Recorder) exists(ctx context.Context, commodity, reportedAt string) (bool, error) {
	found := false
	err := r.store.ForEachSnapshot(ctx, func(_ string, snap storage.Snapshot) error {
		if snap.Commodity == commodity && snap.ReportedAt == reportedAt {
			found = true
		}
		return nil
	})
	return found, err
}

// Purge removes every snapshot fetched before now minus the retention
// window. Snapshots with unparseable fetched_at timestamps are left in place.
func (r *Recorder) Purge(ctx context.Context, retentionDays int) error {
	if retentionDays < 1 {
		return nil
	}
	cutoff := timeNow().UTC().AddDate(0, 0, -retentionDays)

	var stale []string
	err := r.store.ForEachSnapshot(ctx, func(key string, snap storage.Snapshot) error {
		fetched, err := time.Parse(time.RFC3339, snap.FetchedAt)
		if err != nil {
			return nil
		}
		if fetched.Before(cutoff) {
			stale = append(stale, key)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("retention scan: %w", err)
	}

	for _, key := range stale {
		if err := r.store.Snapshots().Remove(ctx, key); err != nil {
			return fmt.Errorf("purge snapshot %s: %w", key, err)
		}
	}
	if len(stale) > 0 {
		r.logger.Info().Int("purged", len(stale)).Int("retention_days", retentionDays).Msg("stale snapshots purged")
	}
	return nil
}

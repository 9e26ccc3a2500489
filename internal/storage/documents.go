package storage

import (
	"context"
	"encoding/json"
	"fmt"
)

// LoadSettings reads the settings singleton.
func (s *Store) LoadSettings(ctx context.Context) (Settings, error) {
	var settings Settings
	if err := s.Settings().Get(ctx, SettingsKey, &settings); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

// SaveSettings replaces the settings singleton.
func (s *Store) SaveSettings(ctx context.Context, settings Settings) error {
	return s.Settings().Set(ctx, SettingsKey, settings)
}

// InsertSnapshot stores a snapshot under its generated id.
func (s *Store) InsertSnapshot(ctx context.Context, snap Snapshot) error {
	return s.Snapshots().Set(ctx, snap.ID, snap)
}

// ForEachSnapshot full-scans the snapshot collection with typed decoding.
func (s *Store) ForEachSnapshot(ctx context.Context, visit func(key string, snap Snapshot) error) error {
	return s.Snapshots().ForEach(ctx, func(key string, raw json.RawMessage) error {
		var snap Snapshot
		if err := json.Unmarshal(raw, &snap); err != nil {
			return fmt.Errorf("decode snapshot %q: %w", key, err)
		}
		return visit(key, snap)
	})
}

// ListSnapshots materialises the full snapshot collection.
func (s *Store) ListSnapshots(ctx context.Context) ([]Snapshot, error) {
	var snaps []Snapshot
	err := s.ForEachSnapshot(ctx, func(_ string, snap Snapshot) error {
		snaps = append(snaps, snap)
		return nil
	})
	return snaps, err
}

// SaveAlert upserts an alert under its id.
func (s *Store) SaveAlert(ctx context.Context, alert Alert) error {
	return s.Alerts().Set(ctx, alert.ID, alert)
}

// ForEachAlert full-scans the alert collection with typed decoding.
func (s *Store) ForEachAlert(ctx context.Context, visit func(key string, alert Alert) error) error {
	return s.Alerts().ForEach(ctx, func(key string, raw json.RawMessage) error {
		var alert Alert
		if err := json.Unmarshal(raw, &alert); err != nil {
			return fmt.Errorf("decode alert %q: %w", key, err)
		}
		return visit(key, alert)
	})
}

// ListAlerts materialises the full alert collection.
func (s *Store) ListAlerts(ctx context.Context) ([]Alert, error) {
	var alerts []Alert
	err := s.ForEachAlert(ctx, func(_ string, alert Alert) error {
		alerts = append(alerts, alert)
		return nil
	})
	return alerts, err
}

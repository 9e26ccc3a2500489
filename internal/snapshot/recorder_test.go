package snapshot

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"mmn-tracker/internal/config"
	"mmn-tracker/internal/storage"
)

func testStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.Open(config.StorageConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "tracker.db"),
	})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func testSettings() storage.Settings {
	return storage.Settings{
		PreferredCommodities: []string{"corn"},
		Unit:                 "bushel",
		PollInterval:         60,
		MaxRetentionDays:     365,
	}
}

func TestSaveNormalisesPayload(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	rec := NewRecorder(store, zerolog.Nop())

	raw := json.RawMessage(`{"price": "4.25", "unit": "bushel", "reportDate": "2024-01-15", "market": "Des Moines"}`)
	if err := rec.Save(ctx, "corn", raw, testSettings()); err != nil {
		t.Fatalf("save: %v", err)
	}

	snaps, err := store.ListSnapshots(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 1 {
		t.Fatalf("expected one snapshot, got %d", len(snaps))
	}
	snap := snaps[0]
	if snap.Commodity != "corn" || snap.Source != "mmn" {
		t.Fatalf("unexpected identity fields: %+v", snap)
	}
	if snap.Price == nil || !snap.Price.Equal(decimal.RequireFromString("4.25")) {
		t.Fatalf("price not extracted: %v", snap.Price)
	}
	if snap.Unit == nil || *snap.Unit != "bushel" {
		t.Fatalf("unit not extracted: %v", snap.Unit)
	}
	if snap.ReportedAt != "2024-01-15" {
		t.Fatalf("report date not extracted: %q", snap.ReportedAt)
	}
	if snap.LocationID == nil || *snap.LocationID != "market_des_moines" {
		t.Fatalf("location id not derived: %v", snap.LocationID)
	}
	if snap.ID == "" || snap.FetchedAt == "" {
		t.Fatalf("id and fetched_at must be set: %+v", snap)
	}
	if string(snap.Meta) != string(raw) {
		t.Fatalf("raw payload must be retained verbatim")
	}
}

func TestSaveUnitFallsBackToSettings(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	rec := NewRecorder(store, zerolog.Nop())

	if err := rec.Save(ctx, "corn", json.RawMessage(`{"price": 1, "reportDate": "2024-01-15"}`), testSettings()); err != nil {
		t.Fatal(err)
	}
	snaps, _ := store.ListSnapshots(ctx)
	if snaps[0].Unit == nil || *snaps[0].Unit != "bushel" {
		t.Fatalf("unit should fall back to settings, got %v", snaps[0].Unit)
	}
}

func TestSaveDeduplicatesNaturalKey(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	rec := NewRecorder(store, zerolog.Nop())
	settings := testSettings()

	first := json.RawMessage(`{"price": "4.25", "reportDate": "2024-01-15"}`)
	second := json.RawMessage(`{"price": "9.99", "reportDate": "2024-01-15"}`)
	for _, raw := range []json.RawMessage{first, second, first} {
		if err := rec.Save(ctx, "corn", raw, settings); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	// Same report date for another commodity is a distinct natural key.
	if err := rec.Save(ctx, "wheat", first, settings); err != nil {
		t.Fatal(err)
	}

	snaps, _ := store.ListSnapshots(ctx)
	if len(snaps) != 2 {
		t.Fatalf("expected two snapshots (corn+wheat), got %d", len(snaps))
	}
	for _, snap := range snaps {
		if snap.Commodity == "corn" && !snap.Price.Equal(decimal.RequireFromString("4.25")) {
			t.Fatalf("first write must win, got %s", snap.Price)
		}
	}
}

func TestPurgeDropsSnapshotsPastRetention(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	rec := NewRecorder(store, zerolog.Nop())

	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	orig := timeNow
	timeNow = func() time.Time { return now }
	defer func() { timeNow = orig }()

	fresh := storage.Snapshot{ID: "fresh", Commodity: "corn", ReportedAt: "2024-05-30",
		FetchedAt: now.AddDate(0, 0, -2).Format(time.RFC3339)}
	stale := storage.Snapshot{ID: "stale", Commodity: "corn", ReportedAt: "2024-01-01",
		FetchedAt: now.AddDate(0, 0, -40).Format(time.RFC3339)}
	for _, snap := range []storage.Snapshot{fresh, stale} {
		if err := store.InsertSnapshot(ctx, snap); err != nil {
			t.Fatal(err)
		}
	}

	settings := testSettings()
	settings.MaxRetentionDays = 30
	if err := rec.Save(ctx, "corn", json.RawMessage(`{"price": 1, "reportDate": "2024-06-01"}`), settings); err != nil {
		t.Fatal(err)
	}

	snaps, _ := store.ListSnapshots(ctx)
	for _, snap := range snaps {
		if snap.ID == "stale" {
			t.Fatal("snapshot past the retention window should have been purged")
		}
	}
	if len(snaps) != 2 {
		t.Fatalf("expected fresh + new snapshot, got %d", len(snaps))
	}
}

package alerting

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"mmn-tracker/internal/config"
	"mmn-tracker/internal/storage"
)

type stubNotifier struct {
	notes []Notification
	err   error
}

func (s *stubNotifier) Notify(_ context.Context, note Notification) error {
	s.notes = append(s.notes, note)
	return s.err
}

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

func insertSnapshot(t *testing.T, store *storage.Store, id, commodity, reportedAt, priceStr string) {
	t.Helper()
	snap := storage.Snapshot{
		ID:         id,
		Commodity:  commodity,
		Source:     "mmn",
		ReportedAt: reportedAt,
		FetchedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	if priceStr != "" {
		p := decimal.RequireFromString(priceStr)
		snap.Price = &p
	}
	if err := store.InsertSnapshot(context.Background(), snap); err != nil {
		t.Fatal(err)
	}
}

func TestCheckFiresOnLatestSnapshot(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	notifier := &stubNotifier{}

	insertSnapshot(t, store, "old", "corn", "2024-01-10", "9.99")
	insertSnapshot(t, store, "new", "corn", "2024-01-15", "4.25")
	if err := store.SaveAlert(ctx, storage.Alert{ID: "a1", Commodity: "corn", Condition: "<=5.00"}); err != nil {
		t.Fatal(err)
	}

	fixed := time.Date(2024, 1, 16, 9, 0, 0, 0, time.UTC)
	orig := timeNow
	timeNow = func() time.Time { return fixed }
	defer func() { timeNow = orig }()

	engine := NewEngine(store, notifier, true, zerolog.Nop())
	if err := engine.Check(ctx); err != nil {
		t.Fatalf("check: %v", err)
	}

	if len(notifier.notes) != 1 {
		t.Fatalf("expected one notification, got %d", len(notifier.notes))
	}
	note := notifier.notes[0]
	if note.Commodity != "corn" || !note.Price.Equal(decimal.RequireFromString("4.25")) {
		t.Fatalf("notification should carry the latest snapshot: %+v", note)
	}

	alerts, _ := store.ListAlerts(ctx)
	if alerts[0].LastTriggeredAt == nil || *alerts[0].LastTriggeredAt != "2024-01-16T09:00:00Z" {
		t.Fatalf("last_triggered_at not persisted: %+v", alerts[0])
	}
}

func TestCheckOrdersSlashDatesAcrossYears(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	notifier := &stubNotifier{}

	// "12/30/2024" sorts after "01/02/2025" as a string; the engine must
	// still treat the January snapshot as the latest.
	insertSnapshot(t, store, "dec", "corn", "12/30/2024", "9.99")
	insertSnapshot(t, store, "jan", "corn", "01/02/2025", "4.25")
	if err := store.SaveAlert(ctx, storage.Alert{ID: "a1", Commodity: "corn", Condition: "<=5.00"}); err != nil {
		t.Fatal(err)
	}

	engine := NewEngine(store, notifier, true, zerolog.Nop())
	if err := engine.Check(ctx); err != nil {
		t.Fatalf("check: %v", err)
	}

	if len(notifier.notes) != 1 {
		t.Fatalf("expected one notification, got %d", len(notifier.notes))
	}
	if !notifier.notes[0].Price.Equal(decimal.RequireFromString("4.25")) {
		t.Fatalf("latest snapshot should be the January one: %+v", notifier.notes[0])
	}
}

func TestCheckSkipsUnsatisfiedAndNullPrice(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	notifier := &stubNotifier{}

	insertSnapshot(t, store, "s1", "corn", "2024-01-15", "8.49")
	insertSnapshot(t, store, "s2", "wheat", "2024-01-15", "")
	_ = store.SaveAlert(ctx, storage.Alert{ID: "a1", Commodity: "corn", Condition: ">=8.50"})
	_ = store.SaveAlert(ctx, storage.Alert{ID: "a2", Commodity: "wheat", Condition: ">=0"})
	_ = store.SaveAlert(ctx, storage.Alert{ID: "a3", Commodity: "hogs", Condition: ">=0"})

	engine := NewEngine(store, notifier, true, zerolog.Nop())
	if err := engine.Check(ctx); err != nil {
		t.Fatalf("check: %v", err)
	}

	if len(notifier.notes) != 0 {
		t.Fatalf("no alert should fire, got %d", len(notifier.notes))
	}
	alerts, _ := store.ListAlerts(ctx)
	for _, alert := range alerts {
		if alert.LastTriggeredAt != nil {
			t.Fatalf("alert %s should not have triggered", alert.ID)
		}
	}
}

func TestCheckDisabledStillRecordsTrigger(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	notifier := &stubNotifier{}

	insertSnapshot(t, store, "s1", "corn", "2024-01-15", "9.00")
	_ = store.SaveAlert(ctx, storage.Alert{ID: "a1", Commodity: "corn", Condition: ">=8.50"})

	engine := NewEngine(store, notifier, false, zerolog.Nop())
	if err := engine.Check(ctx); err != nil {
		t.Fatalf("check: %v", err)
	}

	if len(notifier.notes) != 0 {
		t.Fatal("disabled engine must not notify")
	}
	alerts, _ := store.ListAlerts(ctx)
	if alerts[0].LastTriggeredAt == nil {
		t.Fatal("trigger timestamp should still be recorded")
	}
}

func TestCheckRefiresOnEveryQualifyingRun(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	notifier := &stubNotifier{}

	insertSnapshot(t, store, "s1", "corn", "2024-01-15", "9.00")
	_ = store.SaveAlert(ctx, storage.Alert{ID: "a1", Commodity: "corn", Condition: ">=8.50"})

	engine := NewEngine(store, notifier, true, zerolog.Nop())
	for i := 0; i < 3; i++ {
		if err := engine.Check(ctx); err != nil {
			t.Fatalf("check %d: %v", i, err)
		}
	}
	if len(notifier.notes) != 3 {
		t.Fatalf("alert should fire on every qualifying check, got %d", len(notifier.notes))
	}
}

package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"mmn-tracker/internal/alerting"
	"mmn-tracker/internal/config"
	"mmn-tracker/internal/mmn"
	"mmn-tracker/internal/snapshot"
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
	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func seed(t *testing.T, store *storage.Store, commodities ...string) {
	t.Helper()
	err := store.SeedSettings(context.Background(), storage.Settings{
		PreferredZip:         "50309",
		PreferredCommodities: commodities,
		Unit:                 "bushel",
		PollInterval:         60,
		MaxRetentionDays:     365,
	})
	if err != nil {
		t.Fatal(err)
	}
}

// proxyStub answers reportsByState with one report and reportDetails with
// one fixed entry, counting every request it sees.
func proxyStub(t *testing.T, detail map[string]any) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	calls := &atomic.Int64{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode proxy request: %v", err)
		}
		switch req["action"] {
		case "reportsByState":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"results": []map[string]any{{"slug_id": "AMS_2850"}},
			})
		case "reportDetails":
			if req["lastDays"] != float64(7) {
				t.Errorf("expected trailing 7-day window, got %v", req["lastDays"])
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"results": []any{detail},
			})
		default:
			t.Fatalf("unexpected action %v", req["action"])
		}
	}))
	t.Cleanup(srv.Close)
	return srv, calls
}

func newService(store *storage.Store, baseURL string, probe ConnectivityProbe) *Service {
	logger := zerolog.Nop()
	client := mmn.NewClient(mmn.Options{BaseURL: baseURL, Timeout: time.Second}, logger)
	return New(Options{
		Store:    store,
		Fetcher:  client,
		Recorder: snapshot.NewRecorder(store, logger),
		Alerts:   alerting.NewEngine(store, nil, false, logger),
		Probe:    probe,
	}, logger)
}

func TestRefreshStoresOneSnapshot(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	seed(t, store, "corn")

	srv, _ := proxyStub(t, map[string]any{
		"price": "4.25", "unit": "bushel", "reportDate": "2024-01-15",
	})

	svc := newService(store, srv.URL, nil)
	if err := svc.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	snaps, err := store.ListSnapshots(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 1 {
		t.Fatalf("expected exactly one snapshot, got %d", len(snaps))
	}
	snap := snaps[0]
	if snap.Commodity != "corn" {
		t.Errorf("commodity = %q", snap.Commodity)
	}
	if snap.Price == nil || !snap.Price.Equal(decimal.RequireFromString("4.25")) {
		t.Errorf("price = %v", snap.Price)
	}
	if snap.Unit == nil || *snap.Unit != "bushel" {
		t.Errorf("unit = %v", snap.Unit)
	}
	if snap.ReportedAt != "2024-01-15" {
		t.Errorf("reported_at = %q", snap.ReportedAt)
	}

	settings, _ := store.LoadSettings(ctx)
	if settings.LastSyncAt == nil {
		t.Error("last_sync_at should be set after a successful refresh")
	}
	if svc.Status() != StatusIdle {
		t.Errorf("status = %s, want idle", svc.Status())
	}
}

func TestRefreshTwiceKeepsNaturalKeyUnique(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	seed(t, store, "corn")

	srv, _ := proxyStub(t, map[string]any{
		"price": "4.25", "unit": "bushel", "reportDate": "2024-01-15",
	})

	svc := newService(store, srv.URL, nil)
	for i := 0; i < 2; i++ {
		if err := svc.Refresh(ctx); err != nil {
			t.Fatalf("refresh %d: %v", i, err)
		}
	}

	snaps, _ := store.ListSnapshots(ctx)
	if len(snaps) != 1 {
		t.Fatalf("natural key must stay unique across refreshes, got %d snapshots", len(snaps))
	}
}

func TestRefreshOfflineMakesNoNetworkCalls(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	seed(t, store, "corn")

	srv, calls := proxyStub(t, map[string]any{"price": "1"})

	offline := ProbeFunc(func(context.Context) bool { return false })
	svc := newService(store, srv.URL, offline)
	if err := svc.Refresh(ctx); err != nil {
		t.Fatalf("offline refresh should be non-fatal: %v", err)
	}

	if calls.Load() != 0 {
		t.Fatalf("offline refresh must not touch the network, saw %d calls", calls.Load())
	}
	if svc.Status() != StatusOffline {
		t.Fatalf("status = %s, want offline", svc.Status())
	}
	settings, _ := store.LoadSettings(ctx)
	if settings.LastSyncAt != nil {
		t.Fatal("offline refresh must not record a sync")
	}
}

func TestRefreshPartialFailureContinuesLoop(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	seed(t, store, "corn", "wheat")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["commodity"] == "corn" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		switch req["action"] {
		case "reportsByState":
			_ = json.NewEncoder(w).Encode(map[string]any{"results": []map[string]any{{"reportId": "w1"}}})
		default:
			_ = json.NewEncoder(w).Encode(map[string]any{
				"results": []map[string]any{{"price": "6.10", "reportDate": "2024-01-15"}},
			})
		}
	}))
	defer srv.Close()

	svc := newService(store, srv.URL, nil)
	if err := svc.Refresh(ctx); err != nil {
		t.Fatalf("partial failure must not abort refresh: %v", err)
	}

	snaps, _ := store.ListSnapshots(ctx)
	if len(snaps) != 1 || snaps[0].Commodity != "wheat" {
		t.Fatalf("wheat should sync despite corn failing: %+v", snaps)
	}
	if svc.Status() != StatusDegraded {
		t.Fatalf("status = %s, want degraded", svc.Status())
	}
	settings, _ := store.LoadSettings(ctx)
	if settings.LastSyncAt == nil {
		t.Fatal("last_sync_at should still be recorded after partial success")
	}
}

func TestRefreshSurfacesRateLimitStatus(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	seed(t, store, "corn")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	svc := newService(store, srv.URL, nil)
	if err := svc.Refresh(ctx); err != nil {
		t.Fatalf("rate limiting must be non-fatal: %v", err)
	}
	if svc.Status() != StatusRateLimited {
		t.Fatalf("status = %s, want rate_limited", svc.Status())
	}
}

func TestRefreshSurfacesServiceUnavailableStatus(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	seed(t, store, "corn")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	svc := newService(store, srv.URL, nil)
	if err := svc.Refresh(ctx); err != nil {
		t.Fatalf("misconfiguration must be non-fatal: %v", err)
	}
	if svc.Status() != StatusServiceUnavailable {
		t.Fatalf("status = %s, want service_unavailable", svc.Status())
	}
}

func TestRefreshRunsAlertEngine(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	seed(t, store, "corn")
	if err := store.SaveAlert(ctx, storage.Alert{ID: "a1", Commodity: "corn", Condition: "<=5.00"}); err != nil {
		t.Fatal(err)
	}

	srv, _ := proxyStub(t, map[string]any{"price": "4.25", "reportDate": "2024-01-15"})

	svc := newService(store, srv.URL, nil)
	if err := svc.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	alerts, _ := store.ListAlerts(ctx)
	if alerts[0].LastTriggeredAt == nil {
		t.Fatal("refresh should run the alert engine after syncing")
	}
}

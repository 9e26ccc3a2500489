package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"mmn-tracker/internal/alerting"
	"mmn-tracker/internal/extract"
	"mmn-tracker/internal/mmn"
	"mmn-tracker/internal/region"
	"mmn-tracker/internal/scheduler"
	"mmn-tracker/internal/snapshot"
	"mmn-tracker/internal/storage"
)

// timeNow is swapped in tests asserting last_sync_at updates.
var timeNow = time.Now

// Service orchestrates the fetch→normalise→store pipeline and alerting.
type Service struct {
	store      *storage.Store
	fetcher    mmn.ReportsFetcher
	recorder   *snapshot.Recorder
	alerts     *alerting.Engine
	probe      ConnectivityProbe
	logger     zerolog.Logger
	windowDays int

	mu     sync.Mutex
	status Status
}

// Options wire the service's collaborators.
type Options struct {
	Store      *storage.Store
	Fetcher    mmn.ReportsFetcher
	Recorder   *snapshot.Recorder
	Alerts     *alerting.Engine
	Probe      ConnectivityProbe
	WindowDays int
}

// New constructs the sync orchestrator.
func New(opts Options, logger zerolog.Logger) *Service {
	probe := opts.Probe
	if probe == nil {
		probe = AlwaysOnline
	}
	windowDays := opts.WindowDays
	if windowDays <= 0 {
		windowDays = 7
	}
	return &Service{
		store:      opts.Store,
		fetcher:    opts.Fetcher,
		recorder:   opts.Recorder,
		alerts:     opts.Alerts,
		probe:      probe,
		logger:     logger.With().Str("component", "service").Logger(),
		windowDays: windowDays,
		status:     StatusIdle,
	}
}

// Status reports the current user-visible state.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Service) setStatus(status Status) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

// Run drives periodic refreshes. The poll interval is re-read from stored
// settings before each cycle, so preference changes re-arm the timer.
func (s *Service) Run(ctx context.Context, startupDelay time.Duration) error {
	if startupDelay > 0 {
		timer := time.NewTimer(startupDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	// First cycle runs up front so cached data is fresh before the
	// interval timer arms.
	if err := s.Refresh(ctx); err != nil {
		s.logger.Error().Err(err).Msg("initial refresh failed")
	}

	sched := scheduler.New(scheduler.Options{
		IntervalFunc: s.currentInterval,
	}, s.logger)
	return sched.Run(ctx, s.Refresh)
}

func (s *Service) currentInterval() time.Duration {
	settings, err := s.store.LoadSettings(context.Background())
	if err != nil || settings.PollInterval < 1 {
		return time.Hour
	}
	return time.Duration(settings.PollInterval) * time.Minute
}

// Refresh executes one sync cycle: resolve the region, then fetch, normalise
// and store the latest report entry for each preferred commodity in order.
// Per-commodity failures are logged and skipped; no error from the fetch loop
// crosses this boundary.
func (s *Service) Refresh(ctx context.Context) error {
	if !s.probe.Online(ctx) {
		s.setStatus(StatusOffline)
		s.logger.Warn().Msg("offline; skipping sync, cached data remains available")
		return nil
	}

	s.setStatus(StatusSyncing)

	settings, err := s.store.LoadSettings(ctx)
	if err != nil {
		s.setStatus(StatusDegraded)
		return fmt.Errorf("load settings: %w", err)
	}

	state := region.Resolve(settings.PreferredZip)
	s.logger.Info().
		Str("state", state).
		Strs("commodities", settings.PreferredCommodities).
		Msg("starting sync cycle")

	worst := StatusIdle
	for _, commodity := range settings.PreferredCommodities {
		if err := s.syncCommodity(ctx, commodity, state, settings); err != nil {
			s.logger.Error().Err(err).Str("commodity", commodity).Msg("commodity sync failed")
			worst = worseStatus(worst, classify(err))
		}
	}

	syncedAt := timeNow().UTC().Format(time.RFC3339)
	settings.LastSyncAt = &syncedAt
	if err := s.store.SaveSettings(ctx, settings); err != nil {
		s.logger.Error().Err(err).Msg("failed to persist last_sync_at")
	}

	if count, err := s.store.Snapshots().Count(ctx); err == nil {
		s.logger.Info().Int64("cached_snapshots", count).Msg("sync cycle finished")
	}

	if s.alerts != nil {
		if err := s.alerts.Check(ctx); err != nil {
			s.logger.Error().Err(err).Msg("alert check failed")
		}
	}

	s.setStatus(worst)
	return nil
}

// syncCommodity picks the first report listed for the commodity/state pair
// and records its most recent detail entry.
func (s *Service) syncCommodity(ctx context.Context, commodity, state string, settings storage.Settings) error {
	reports, err := s.fetcher.ReportsByState(ctx, commodity, state)
	if err != nil {
		return fmt.Errorf("list reports: %w", err)
	}
	if len(reports) == 0 {
		s.logger.Debug().Str("commodity", commodity).Str("state", state).Msg("no reports listed")
		return nil
	}

	reportID := extractReportID(reports[0])
	if reportID == "" {
		return fmt.Errorf("report listing carries no usable id")
	}

	entries, err := s.fetcher.ReportDetails(ctx, reportID, s.windowDays)
	if err != nil {
		return fmt.Errorf("fetch report %s: %w", reportID, err)
	}
	if len(entries) == 0 {
		s.logger.Debug().Str("commodity", commodity).Str("report_id", reportID).Msg("report has no entries")
		return nil
	}

	if err := s.recorder.Save(ctx, commodity, entries[0], settings); err != nil {
		return fmt.Errorf("record snapshot: %w", err)
	}
	return nil
}

func extractReportID(raw json.RawMessage) string {
	return extract.ReportID(extract.Parse(raw))
}

func classify(err error) Status {
	switch {
	case errors.Is(err, mmn.ErrServiceUnavailable):
		return StatusServiceUnavailable
	case errors.Is(err, mmn.ErrRateLimited):
		return StatusRateLimited
	default:
		return StatusDegraded
	}
}

// worseStatus ranks failure states so the banner shows the most actionable
// one: misconfiguration over rate limiting over generic degradation.
func worseStatus(a, b Status) Status {
	rank := map[Status]int{
		StatusIdle:               0,
		StatusSyncing:            0,
		StatusDegraded:           1,
		StatusRateLimited:        2,
		StatusServiceUnavailable: 3,
	}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

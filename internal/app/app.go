package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"mmn-tracker/internal/alerting"
	"mmn-tracker/internal/config"
	"mmn-tracker/internal/mmn"
	"mmn-tracker/internal/service"
	"mmn-tracker/internal/snapshot"
	"mmn-tracker/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

// openStore opens the configured backend, provisions the collections, and
// seeds default settings from host configuration on first run.
func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	store, err := storage.Open(a.Config.Storage)
	if err != nil {
		return nil, nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, nil, err
	}
	if err := store.SeedSettings(ctx, a.defaultSettings()); err != nil {
		store.Close()
		return nil, nil, err
	}

	closer := func() {
		if err := store.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("failed to close store")
		}
	}
	return store, closer, nil
}

func (a *App) defaultSettings() storage.Settings {
	return storage.Settings{
		PreferredZip:         a.Config.Tracker.DefaultZip,
		PreferredCommodities: a.Config.Tracker.DefaultCommodities,
		Unit:                 a.Config.Tracker.DefaultUnit,
		PollInterval:         a.Config.Tracker.PollInterval,
		MaxRetentionDays:     a.Config.Tracker.MaxRetentionDays,
	}
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) newService(store *storage.Store, probe service.ConnectivityProbe) *service.Service {
	client := mmn.NewClient(mmn.Options{
		BaseURL:   a.Config.Proxy.BaseURL,
		Timeout:   a.Config.Proxy.RequestTimeout,
		UserAgent: a.Config.Proxy.UserAgent,
	}, a.Logger)

	return service.New(service.Options{
		Store:      store,
		Fetcher:    client,
		Recorder:   snapshot.NewRecorder(store, a.Logger),
		Alerts:     alerting.NewEngine(store, a.newNotifier(), a.Config.Alerting.Enabled, a.Logger),
		Probe:      probe,
		WindowDays: a.Config.Tracker.ReportWindowDays,
	}, a.Logger)
}

// Run executes the long-running polling service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	probe := service.DialProbe(a.Config.Proxy.BaseURL, 3*time.Second)
	svc := a.newService(store, probe)

	a.Logger.Info().Msg("starting price tracker service")
	err = svc.Run(ctx, a.Config.Tracker.StartupDelay)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("price tracker service stopped")
	return nil
}

// Refresh executes one sync cycle and returns.
func (a *App) Refresh(ctx context.Context) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	probe := service.DialProbe(a.Config.Proxy.BaseURL, 3*time.Second)
	svc := a.newService(store, probe)

	if err := svc.Refresh(ctx); err != nil {
		return err
	}
	a.Logger.Info().Str("status", string(svc.Status())).Msg("refresh completed")
	return nil
}

// ExportOptions hold parameters for exporting cached snapshots.
type ExportOptions struct {
	CSVPath string
	PNGPath string
	MaxRows int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	All bool
}

// SetOptions carry preference changes; nil fields are left untouched.
type SetOptions struct {
	Zip         *string
	Commodities []string
	Unit        *string
	Interval    *int
	Retention   *int
}

// ClearOptions configure the clear command.
type ClearOptions struct {
	ResetSettings bool
}

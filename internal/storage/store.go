// Package storage provides the durable key-value collections backing the
// tracker: settings, locations, price snapshots, and alerts. Values are JSON
// documents; a full-scan ForEach is the only query mechanism.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"mmn-tracker/internal/config"
)

// ErrNotConfigured indicates the store was not initialised.
var ErrNotConfigured = errors.New("storage: store not configured")

// Collection names. Locations is provisioned for future location metadata
// and is not populated by any sync operation.
const (
	CollectionSettings  = "settings"
	CollectionLocations = "locations"
	CollectionSnapshots = "price_snapshots"
	CollectionAlerts    = "alerts"
)

// SettingsKey is the key of the settings singleton document.
const SettingsKey = "local-settings"

var collectionNames = []string{
	CollectionSettings,
	CollectionLocations,
	CollectionSnapshots,
	CollectionAlerts,
}

// Store aggregates the four durable collections over one database handle.
type Store struct {
	db       *sql.DB
	postgres bool
}

// Open connects the configured backend: a local SQLite file by default, or
// Postgres when a shared store is wanted across hosts.
func Open(cfg config.StorageConfig) (*Store, error) {
	var (
		db       *sql.DB
		err      error
		postgres bool
	)

	switch cfg.Driver {
	case "sqlite":
		if cfg.Path == "" {
			return nil, fmt.Errorf("storage.path is required")
		}
		db, err = sql.Open("sqlite", cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		for _, pragma := range []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA busy_timeout=5000",
			"PRAGMA synchronous=NORMAL",
		} {
			if _, err := db.Exec(pragma); err != nil {
				db.Close()
				return nil, fmt.Errorf("exec %s: %w", pragma, err)
			}
		}
	case "postgres":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("storage.dsn is required")
		}
		db, err = sql.Open("pgx", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		postgres = true
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	return &Store{db: db, postgres: postgres}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Migrate provisions all collections. Idempotent; safe to run on every start.
func (s *Store) Migrate(ctx context.Context) error {
	if s == nil || s.db == nil {
		return ErrNotConfigured
	}
	for _, name := range collectionNames {
		stmt := fmt.Sprintf(
			"CREATE TABLE IF NOT EXISTS %s (k TEXT PRIMARY KEY, v TEXT NOT NULL)", name)
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("provision collection %s: %w", name, err)
		}
	}
	return nil
}

// SeedSettings writes the default settings document only if none exists.
// The insert is conflict-tolerant, so concurrent first runs race safely and
// exactly one seed wins.
func (s *Store) SeedSettings(ctx context.Context, defaults Settings) error {
	raw, err := json.Marshal(defaults)
	if err != nil {
		return fmt.Errorf("marshal default settings: %w", err)
	}
	stmt := s.rebind("INSERT INTO settings (k, v) VALUES (?, ?) ON CONFLICT DO NOTHING")
	if _, err := s.db.ExecContext(ctx, stmt, SettingsKey, string(raw)); err != nil {
		return fmt.Errorf("seed settings: %w", err)
	}
	return nil
}

// Collection returns a handle on one named collection.
func (s *Store) Collection(name string) *Collection {
	return &Collection{store: s, table: name}
}

func (s *Store) Settings() *Collection  { return s.Collection(CollectionSettings) }
func (s *Store) Locations() *Collection { return s.Collection(CollectionLocations) }
func (s *Store) Snapshots() *Collection { return s.Collection(CollectionSnapshots) }
func (s *Store) Alerts() *Collection    { return s.Collection(CollectionAlerts) }

// rebind rewrites ? placeholders to $n for the postgres driver.
func (s *Store) rebind(query string) string {
	if !s.postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

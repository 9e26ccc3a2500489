package storage

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Settings is the singleton preferences document, seeded from host defaults
// on first run and mutated on preference changes and successful syncs.
type Settings struct {
	PreferredZip         string   `json:"preferred_zip"`
	PreferredCommodities []string `json:"preferred_commodities"`
	Unit                 string   `json:"unit"`
	LastSyncAt           *string  `json:"last_sync_at"`
	PollInterval         int      `json:"poll_interval"`
	MaxRetentionDays     int      `json:"max_retention_days"`
}

// Snapshot is one captured price observation. Immutable once written; the
// (Commodity, ReportedAt) pair is its natural key and must stay unique in the
// snapshot collection.
type Snapshot struct {
	ID         string           `json:"id"`
	Commodity  string           `json:"commodity"`
	Source     string           `json:"source"`
	LocationID *string          `json:"location_id"`
	Price      *decimal.Decimal `json:"price"`
	Unit       *string          `json:"unit"`
	ReportedAt string           `json:"reported_at"`
	FetchedAt  string           `json:"fetched_at"`
	Meta       json.RawMessage  `json:"meta"`
}

// Alert is a stored price condition, e.g. ">=8.50" on "corn".
type Alert struct {
	ID              string  `json:"id"`
	Commodity       string  `json:"commodity"`
	Condition       string  `json:"condition"`
	LastTriggeredAt *string `json:"last_triggered_at"`
}

// Location is reserved for future market metadata. The collection is
// provisioned but no sync operation populates it.
type Location struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	State string `json:"state"`
}

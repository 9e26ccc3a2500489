// Package extract normalises heterogeneous MMN report payloads. Upstream
// report entries do not share a schema, so each accessor probes an ordered
// list of candidate fields and returns the first usable value.
package extract

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Source tags every snapshot captured from the MMN proxy.
const Source = "mmn"

const locationPrefix = "market_"

var (
	priceFields      = []string{"price", "value", "amount", "pricePerUnit"}
	unitFields       = []string{"unit", "units", "priceUnit"}
	reportDateFields = []string{"reportDate", "date", "reportedAt", "published", "report_date"}
	locationFields   = []string{"market", "marketCity"}
	reportIDFields   = []string{"slug_id", "reportId"}
)

var whitespaceRE = regexp.MustCompile(`\s+`)

// timeNow is swapped in tests exercising the report-date fallback.
var timeNow = time.Now

// Document is one untyped upstream payload.
type Document map[string]any

// Parse decodes a raw payload into a Document. A payload that is not a JSON
// object yields an empty document rather than an error; every accessor then
// falls through to its null/fallback value.
func Parse(raw json.RawMessage) Document {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Document{}
	}
	return doc
}

// Price probes the candidate fields, then one level into a reportSection
// list, and parses the first PRESENT candidate. A present value that does not
// parse as a number yields nil; later candidates are never consulted.
func Price(doc Document) *decimal.Decimal {
	for _, field := range priceFields {
		if v, ok := doc[field]; ok {
			if d, ok := toDecimal(v); ok {
				return &d
			}
			return nil
		}
	}

	if sections, ok := doc["reportSection"].([]any); ok {
		for _, entry := range sections {
			section, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			if v, ok := section["price"]; ok {
				if d, ok := toDecimal(v); ok {
					return &d
				}
				return nil
			}
		}
	}

	return nil
}

// Unit returns the source unit, or nil when the payload carries none.
func Unit(doc Document) *string {
	for _, field := range unitFields {
		if s, ok := toString(doc[field]); ok && s != "" {
			return &s
		}
	}
	return nil
}

// ReportDate returns the upstream report timestamp. When no candidate field
// is present it falls back to the current UTC time; callers must treat that
// as a capture-time placeholder, not an authoritative report date.
func ReportDate(doc Document) string {
	for _, field := range reportDateFields {
		if s, ok := toString(doc[field]); ok && s != "" {
			return s
		}
	}
	return timeNow().UTC().Format(time.RFC3339)
}

// LocationID derives a stable location identifier from the market name, or
// nil when the payload names no market.
func LocationID(doc Document) *string {
	for _, field := range locationFields {
		if s, ok := toString(doc[field]); ok && s != "" {
			id := locationPrefix + whitespaceRE.ReplaceAllString(strings.ToLower(s), "_")
			return &id
		}
	}
	return nil
}

// reportDateLayouts are the report date shapes observed upstream.
var reportDateLayouts = []string{time.RFC3339, "2006-01-02", "01/02/2006"}

// ParseReportDate parses a stored report date in any upstream shape.
func ParseReportDate(raw string) (time.Time, error) {
	var lastErr error
	for _, layout := range reportDateLayouts {
		ts, err := time.Parse(layout, raw)
		if err == nil {
			return ts, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// NewerReportDate reports whether a is more recent than b. Dates compare as
// timestamps when both parse; otherwise string order decides, which is
// correct for the ISO-8601 values the fallback path stores.
func NewerReportDate(a, b string) bool {
	ta, errA := ParseReportDate(a)
	tb, errB := ParseReportDate(b)
	if errA == nil && errB == nil {
		return ta.After(tb)
	}
	return a > b
}

// ReportID returns the identifier used to query report details, or the empty
// string when the listing entry carries none.
func ReportID(doc Document) string {
	for _, field := range reportIDFields {
		if s, ok := toString(doc[field]); ok && s != "" {
			return s
		}
	}
	return ""
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch val := v.(type) {
	case float64:
		return decimal.NewFromFloat(val), true
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(val))
		if err != nil {
			return decimal.Decimal{}, false
		}
		return d, true
	case json.Number:
		d, err := decimal.NewFromString(val.String())
		if err != nil {
			return decimal.Decimal{}, false
		}
		return d, true
	default:
		return decimal.Decimal{}, false
	}
}

func toString(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case float64:
		return decimal.NewFromFloat(val).String(), true
	case json.Number:
		return val.String(), true
	default:
		return "", false
	}
}

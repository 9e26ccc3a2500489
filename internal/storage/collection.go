package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound reports a missing key.
var ErrNotFound = errors.New("storage: key not found")

// Collection is one durable key-value namespace. All operations hit the
// database directly; callers must treat them as suspension points.
type Collection struct {
	store *Store
	table string
}

// Visitor is invoked for every entry of a full-scan traversal. Returning an
// error stops the scan and propagates.
type Visitor func(key string, value json.RawMessage) error

// Get unmarshals the value stored under key into dest. Returns ErrNotFound
// when the key is absent.
func (c *Collection) Get(ctx context.Context, key string, dest any) error {
	stmt := c.store.rebind(fmt.Sprintf("SELECT v FROM %s WHERE k = ?", c.table))
	var raw string
	err := c.store.db.QueryRowContext(ctx, stmt, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%s: get %q: %w", c.table, key, err)
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return fmt.Errorf("%s: decode %q: %w", c.table, key, err)
	}
	return nil
}

// Set upserts value under key.
func (c *Collection) Set(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%s: encode %q: %w", c.table, key, err)
	}
	stmt := c.store.rebind(fmt.Sprintf(
		"INSERT INTO %s (k, v) VALUES (?, ?) ON CONFLICT (k) DO UPDATE SET v = excluded.v", c.table))
	if _, err := c.store.db.ExecContext(ctx, stmt, key, string(raw)); err != nil {
		return fmt.Errorf("%s: set %q: %w", c.table, key, err)
	}
	return nil
}

// Remove deletes key. Removing an absent key is not an error.
func (c *Collection) Remove(ctx context.Context, key string) error {
	stmt := c.store.rebind(fmt.Sprintf("DELETE FROM %s WHERE k = ?", c.table))
	if _, err := c.store.db.ExecContext(ctx, stmt, key); err != nil {
		return fmt.Errorf("%s: remove %q: %w", c.table, key, err)
	}
	return nil
}

// Clear removes every key in this collection only.
func (c *Collection) Clear(ctx context.Context) error {
	if _, err := c.store.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", c.table)); err != nil {
		return fmt.Errorf("%s: clear: %w", c.table, err)
	}
	return nil
}

// ForEach traverses every entry, in no guaranteed order. This is the
// collection's only query mechanism; no secondary indexes are maintained.
func (c *Collection) ForEach(ctx context.Context, visit Visitor) error {
	rows, err := c.store.db.QueryContext(ctx, fmt.Sprintf("SELECT k, v FROM %s", c.table))
	if err != nil {
		return fmt.Errorf("%s: scan: %w", c.table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return fmt.Errorf("%s: scan row: %w", c.table, err)
		}
		if err := visit(key, json.RawMessage(raw)); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Count reports the number of entries.
func (c *Collection) Count(ctx context.Context) (int64, error) {
	var count int64
	err := c.store.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", c.table)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%s: count: %w", c.table, err)
	}
	return count, nil
}

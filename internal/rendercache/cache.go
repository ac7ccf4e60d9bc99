// Package rendercache provides persistent caching for rendered page payloads.
// All payloads are stored as msgpack blobs with expiration timestamps for
// cache-first behavior. msgpack round-trips the NaN gap markers in galaxy
// traces, which encoding/json cannot.
package rendercache

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// AllTables lists all tables in cache.db holding rendered payloads.
var AllTables = []string{
	"plot_traces",
	"galaxy_snapshots",
	"ledger_pages",
}

// validTables is a set for O(1) table name validation.
var validTables = func() map[string]bool {
	m := make(map[string]bool, len(AllTables))
	for _, t := range AllTables {
		m[t] = true
	}
	return m
}()

// Cache provides expiring storage for rendered payloads.
type Cache struct {
	db *sql.DB
}

// NewCache creates a new render cache over cache.db.
func NewCache(db *sql.DB) *Cache {
	return &Cache{db: db}
}

// validateTable ensures the table name is in our allowed list.
// This prevents SQL injection through table names.
func validateTable(table string) error {
	if !validTables[table] {
		return fmt.Errorf("invalid table name: %s", table)
	}
	return nil
}

// Store saves a payload with expiration = now + ttl.
// Uses INSERT OR REPLACE to upsert data.
func (c *Cache) Store(table, key string, value interface{}, ttl time.Duration) error {
	if err := validateTable(table); err != nil {
		return err
	}

	blob, err := msgpack.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	expiresAt := time.Now().Add(ttl).Unix()

	query := fmt.Sprintf(
		"INSERT OR REPLACE INTO %s (cache_key, data, expires_at) VALUES (?, ?, ?)",
		table,
	)

	if _, err := c.db.Exec(query, key, blob, expiresAt); err != nil {
		return fmt.Errorf("failed to store payload in %s: %w", table, err)
	}

	return nil
}

// GetIfFresh decodes the payload into out only if expires_at > now.
// Returns false if the key doesn't exist or the payload is expired.
// Use Get() to retrieve stale payloads as a fallback.
func (c *Cache) GetIfFresh(table, key string, out interface{}) (bool, error) {
	if err := validateTable(table); err != nil {
		return false, err
	}

	now := time.Now().Unix()

	query := fmt.Sprintf(
		"SELECT data FROM %s WHERE cache_key = ? AND expires_at > ?",
		table,
	)

	var blob []byte
	err := c.db.QueryRow(query, key, now).Scan(&blob)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get payload from %s: %w", table, err)
	}

	if err := msgpack.Unmarshal(blob, out); err != nil {
		return false, fmt.Errorf("failed to unmarshal payload from %s: %w", table, err)
	}

	return true, nil
}

// Get decodes the payload into out regardless of expiration status.
// Returns false if the key doesn't exist.
func (c *Cache) Get(table, key string, out interface{}) (bool, error) {
	if err := validateTable(table); err != nil {
		return false, err
	}

	query := fmt.Sprintf(
		"SELECT data FROM %s WHERE cache_key = ?",
		table,
	)

	var blob []byte
	err := c.db.QueryRow(query, key).Scan(&blob)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get payload from %s: %w", table, err)
	}

	if err := msgpack.Unmarshal(blob, out); err != nil {
		return false, fmt.Errorf("failed to unmarshal payload from %s: %w", table, err)
	}

	return true, nil
}

// Delete removes a specific entry.
func (c *Cache) Delete(table, key string) error {
	if err := validateTable(table); err != nil {
		return err
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE cache_key = ?", table)

	if _, err := c.db.Exec(query, key); err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}

	return nil
}

// DeleteExpired removes all rows where expires_at < now.
// Returns the number of rows deleted.
func (c *Cache) DeleteExpired(table string) (int64, error) {
	if err := validateTable(table); err != nil {
		return 0, err
	}

	now := time.Now().Unix()

	query := fmt.Sprintf("DELETE FROM %s WHERE expires_at < ?", table)

	result, err := c.db.Exec(query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired from %s: %w", table, err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected for %s: %w", table, err)
	}

	return deleted, nil
}

// DeleteAllExpired removes all expired entries from all tables.
// Returns a map of table name to number of rows deleted.
func (c *Cache) DeleteAllExpired() (map[string]int64, error) {
	results := make(map[string]int64)

	for _, table := range AllTables {
		deleted, err := c.DeleteExpired(table)
		if err != nil {
			return results, fmt.Errorf("failed to delete expired from %s: %w", table, err)
		}
		results[table] = deleted
	}

	return results, nil
}

// Reset drops every cached payload from every table.
// Returns the total number of rows deleted.
func (c *Cache) Reset() (int64, error) {
	var total int64

	for _, table := range AllTables {
		query := fmt.Sprintf("DELETE FROM %s", table)
		result, err := c.db.Exec(query)
		if err != nil {
			return total, fmt.Errorf("failed to reset %s: %w", table, err)
		}

		deleted, err := result.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("failed to get rows affected for %s: %w", table, err)
		}
		total += deleted
	}

	return total, nil
}

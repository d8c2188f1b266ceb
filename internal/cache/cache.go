// Package cache is the derived full-text and relational cache over the
// primary store. It never owns entity truth: every row is re-derivable
// from the store, and coherence is tracked by the stored loro_version.
package cache

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/skeletor-js/medulla/internal/types"
)

// CacheFile is the SQLite database inside the .medulla directory.
const CacheFile = "cache.db"

// Thresholds above which queries may noticeably slow down; crossing them
// is logged, never fatal.
const (
	EntityWarningThreshold   = 1000
	LoroSizeWarningThreshold = 10 * 1024 * 1024
)

// Cache wraps the SQLite database. Like the store, it is not safe for
// concurrent use; the protocol server serialises access behind its cache
// lock.
type Cache struct {
	db   *sql.DB
	path string
}

// Open opens or creates the cache database inside medullaDir and ensures
// the schema. A schema-version mismatch drops every table so the next
// sync rebuilds from the primary store.
func Open(medullaDir string) (*Cache, error) {
	path := filepath.Join(medullaDir, CacheFile)
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, types.Storagef("open cache", err)
	}
	// The cache is single-writer; one connection avoids SQLITE_BUSY
	// between the FTS triggers and the readers.
	db.SetMaxOpenConns(1)

	c := &Cache{db: db, path: path}
	if err := c.initSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Cache) initSchema(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, schema); err != nil {
		return types.Storagef("create schema", err)
	}

	stored, err := c.getMeta(ctx, "schema_version")
	if err != nil {
		return err
	}
	if stored != "" && stored != schemaVersion {
		for _, table := range allTables {
			if _, err := c.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
				return types.Storagef("drop stale table "+table, err)
			}
		}
		if _, err := c.db.ExecContext(ctx, schema); err != nil {
			return types.Storagef("recreate schema", err)
		}
	}
	return c.setMeta(ctx, "schema_version", schemaVersion)
}

// Close closes the database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Path returns the cache database path.
func (c *Cache) Path() string { return c.path }

func (c *Cache) getMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := c.db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", types.Storagef("read meta "+key, err)
	}
	return value, nil
}

func (c *Cache) setMeta(ctx context.Context, key, value string) error {
	_, err := c.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)", key, value)
	if err != nil {
		return types.Storagef("write meta "+key, err)
	}
	return nil
}

// LoroVersion returns the stored primary-store version, or "" when the
// cache has never been synced.
func (c *Cache) LoroVersion(ctx context.Context) (string, error) {
	return c.getMeta(ctx, "loro_version")
}

// SetLoroVersion records the primary-store version the cache now
// reflects.
func (c *Cache) SetLoroVersion(ctx context.Context, version string) error {
	return c.setMeta(ctx, "loro_version", version)
}

// Clear truncates every entity and relation table plus the version row,
// for a full rebuild. The schema version survives.
func (c *Cache) Clear(ctx context.Context) error {
	for _, table := range entityTables {
		if _, err := c.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return types.Storagef("clear "+table, err)
		}
	}
	if _, err := c.db.ExecContext(ctx, "DELETE FROM relations"); err != nil {
		return types.Storagef("clear relations", err)
	}
	if _, err := c.db.ExecContext(ctx, "DELETE FROM meta WHERE key = 'loro_version'"); err != nil {
		return types.Storagef("clear version", err)
	}
	return nil
}

// Stats summarises cache contents for the stats resource and threshold
// warnings.
type Stats struct {
	Decisions  int `json:"decisions"`
	Tasks      int `json:"tasks"`
	Notes      int `json:"notes"`
	Prompts    int `json:"prompts"`
	Components int `json:"components"`
	Links      int `json:"links"`
	Relations  int `json:"relations"`
	Entities   int `json:"entities"`
}

// GetStats counts rows per table.
func (c *Cache) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	targets := map[string]*int{
		"decisions":  &stats.Decisions,
		"tasks":      &stats.Tasks,
		"notes":      &stats.Notes,
		"prompts":    &stats.Prompts,
		"components": &stats.Components,
		"links":      &stats.Links,
		"relations":  &stats.Relations,
	}
	for table, dst := range targets {
		if err := c.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(dst); err != nil {
			return nil, types.Storagef("count "+table, err)
		}
	}
	stats.Entities = stats.Decisions + stats.Tasks + stats.Notes +
		stats.Prompts + stats.Components + stats.Links
	return stats, nil
}

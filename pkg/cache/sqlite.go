package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/lepinkainen/blog-mirror/pkg/database"
)

// DefaultSQLiteTable is the table used when none is configured
const DefaultSQLiteTable = "feed_cache"

// SQLiteStore persists entries in a local SQLite file so the cache survives restarts
type SQLiteStore struct {
	db    *database.Database
	cache *database.Cache
}

// NewSQLiteStore opens (or creates) the database at path
func NewSQLiteStore(path, table string) (*SQLiteStore, error) {
	if table == "" {
		table = DefaultSQLiteTable
	}

	db, err := database.NewDatabase(database.Config{Path: path})
	if err != nil {
		return nil, err
	}

	c, err := database.NewCache(db, table)
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("Failed to close database", "error", closeErr)
		}
		return nil, err
	}

	if err := c.CleanupExpired(context.Background()); err != nil {
		slog.Warn("Failed to cleanup expired cache entries", "path", path, "error", err)
	}

	return &SQLiteStore{db: db, cache: c}, nil
}

// Get returns the stored value if present and not expired
func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return s.cache.Get(ctx, key)
}

// Put replaces the value stored under key
func (s *SQLiteStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.cache.Set(ctx, key, value, ttl)
}

// Close closes the underlying database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

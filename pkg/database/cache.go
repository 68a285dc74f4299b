package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"
)

// ErrClosed is returned when the database has already been closed
var ErrClosed = errors.New("database is closed")

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Cache provides a key/value table with per-row expiry on top of the database.
// Values are opaque blobs; expiry is stored as unix milliseconds.
type Cache struct {
	db        *Database
	tableName string
	now       func() time.Time
}

// NewCache creates a new cache instance and makes sure its table exists
func NewCache(db *Database, tableName string) (*Cache, error) {
	if !tableNamePattern.MatchString(tableName) {
		return nil, fmt.Errorf("invalid cache table name %q", tableName)
	}

	c := &Cache{
		db:        db,
		tableName: tableName,
		now:       time.Now,
	}

	if err := c.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize cache table: %w", err)
	}

	return c, nil
}

func (c *Cache) initialize() error {
	schema := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			key TEXT PRIMARY KEY,
			value BLOB NOT NULL,
			expires_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_%s_expires ON %s(expires_at);
	`, c.tableName, c.tableName, c.tableName)

	return c.db.ExecuteSchema(schema)
}

func (c *Cache) conn() (*sql.DB, error) {
	conn := c.db.DB()
	if conn == nil {
		return nil, ErrClosed
	}
	return conn, nil
}

// Get retrieves a value from the cache. Expired rows are reported as absent.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	conn, err := c.conn()
	if err != nil {
		return nil, false, err
	}

	query := fmt.Sprintf(`SELECT value FROM %s WHERE key = ? AND expires_at > ?`, c.tableName)

	var value []byte
	err = conn.QueryRowContext(ctx, query, key, c.now().UnixMilli()).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get cache value: %w", err)
	}

	return value, true, nil
}

// Set stores a value in the cache, replacing any previous row for the key
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	conn, err := c.conn()
	if err != nil {
		return err
	}

	now := c.now()
	query := fmt.Sprintf(`
		INSERT OR REPLACE INTO %s (key, value, expires_at, updated_at)
		VALUES (?, ?, ?, ?)
	`, c.tableName)

	if _, err := conn.ExecContext(ctx, query, key, value, now.Add(ttl).UnixMilli(), now.UnixMilli()); err != nil {
		return fmt.Errorf("failed to set cache value: %w", err)
	}

	return nil
}

// CleanupExpired removes expired entries from the cache
func (c *Cache) CleanupExpired(ctx context.Context) error {
	conn, err := c.conn()
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE expires_at <= ?`, c.tableName)

	result, err := conn.ExecContext(ctx, query, c.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to cleanup expired entries: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected > 0 {
		slog.Debug("Cleaned up expired cache entries", "table", c.tableName, "count", rowsAffected)
	}

	return nil
}

// Package database provides the SQLite connection used by the persistent cache backend.
package database

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/lepinkainen/blog-mirror/pkg/filesystem"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// Database represents a thread-safe database connection
type Database struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// Config holds database configuration
type Config struct {
	Path        string
	Driver      string
	BusyTimeout time.Duration
}

// DefaultConfig returns the default database configuration
func DefaultConfig() Config {
	return Config{
		Driver:      "sqlite",
		BusyTimeout: 5 * time.Second,
	}
}

// NewDatabase opens a connection owned by the caller. Openers of the same
// path get separate handles, so closing one never affects another.
func NewDatabase(config Config) (*Database, error) {
	if config.Driver == "" {
		config.Driver = "sqlite"
	}
	if config.BusyTimeout <= 0 {
		config.BusyTimeout = DefaultConfig().BusyTimeout
	}

	if err := filesystem.EnsureDirectoryExists(config.Path); err != nil {
		return nil, err
	}

	db, err := sql.Open(config.Driver, config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if config.Driver == "sqlite" {
		if err := configureSQLite(db, config.BusyTimeout); err != nil {
			closeQuietly(db)
			return nil, err
		}
	}

	// The cache holds a single small row, a handful of connections is plenty
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		closeQuietly(db)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	database := &Database{
		db:     db,
		dbPath: config.Path,
	}

	slog.Debug("Opened database", "path", config.Path)
	return database, nil
}

// configureSQLite applies the pragmas for concurrent readers and writers
func configureSQLite(db *sql.DB, busyTimeout time.Duration) error {
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeout.Milliseconds())); err != nil {
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}

	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to read journal mode: %w", err)
	}

	if !strings.EqualFold(journalMode, "wal") {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			return fmt.Errorf("failed to enable WAL: %w", err)
		}
	}

	pragmas := []string{
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=memory",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	return nil
}

func closeQuietly(db *sql.DB) {
	if closeErr := db.Close(); closeErr != nil {
		slog.Error("Failed to close database", "error", closeErr)
	}
}

// Close closes the database connection
func (db *Database) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.db != nil {
		err := db.db.Close()
		db.db = nil
		return err
	}
	return nil
}

// DB returns the underlying sql.DB instance (thread-safe)
func (db *Database) DB() *sql.DB {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.db
}

// Path returns the database file path
func (db *Database) Path() string {
	return db.dbPath
}

// ExecuteSchema executes a schema statement
func (db *Database) ExecuteSchema(schema string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.db == nil {
		return ErrClosed
	}

	_, err := db.db.Exec(schema)
	return err
}

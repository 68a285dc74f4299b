// Package cache provides the key/value stores backing the blog feed cache.
//
// Every backend stores opaque byte blobs with a per-entry TTL. Absence is a
// normal result and is reported as found == false with a nil error.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotConfigured is returned by the disabled backend for every call
var ErrNotConfigured = errors.New("cache store not configured")

// Backend names accepted by Open
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendNone   = "none"
)

// Store is a key/value store with expiring entries
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close() error
}

// Options selects and configures a backend
type Options struct {
	Backend     string
	MemorySize  int
	SQLitePath  string
	SQLiteTable string
	RedisURL    string
}

// Open creates the backend named in opts.Backend
func Open(opts Options) (Store, error) {
	switch strings.ToLower(opts.Backend) {
	case "", BackendMemory:
		return NewMemoryStore(opts.MemorySize)
	case BackendSQLite:
		return NewSQLiteStore(opts.SQLitePath, opts.SQLiteTable)
	case BackendRedis:
		return NewRedisStore(opts.RedisURL)
	case BackendNone:
		return Disabled{}, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", opts.Backend)
	}
}

// Disabled is a Store that is never available
type Disabled struct{}

// Get always fails with ErrNotConfigured
func (Disabled) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, ErrNotConfigured
}

// Put always fails with ErrNotConfigured
func (Disabled) Put(context.Context, string, []byte, time.Duration) error {
	return ErrNotConfigured
}

// Close does nothing
func (Disabled) Close() error {
	return nil
}

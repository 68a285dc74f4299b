package blog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/lepinkainen/blog-mirror/pkg/cache"
	"github.com/lepinkainen/blog-mirror/pkg/metrics"
)

// Defaults for GatewayConfig
const (
	DefaultTTL      = 10 * time.Minute
	DefaultCacheKey = "blog:posts"
)

// Store is the key/value collaborator holding the cached record set
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// GatewayConfig controls caching behaviour
type GatewayConfig struct {
	TTL      time.Duration
	CacheKey string
	// Coalesce makes concurrent cache misses share one upstream fetch
	Coalesce bool
}

// Result is the current record set and where it came from
type Result struct {
	Records   []Record
	Cached    bool
	UpdatedAt time.Time
}

// cacheEntry is the blob written to the store
type cacheEntry struct {
	Records  []Record  `json:"records"`
	CachedAt time.Time `json:"cachedAt"`
}

// Gateway serves the parsed feed through a time-boxed cache.
// Cache failures are logged and never reach the caller; upstream failures
// always do.
type Gateway struct {
	source Source
	parser *Parser
	store  Store
	config GatewayConfig
	group  singleflight.Group
	now    func() time.Time

	mu     sync.Mutex
	flight *flight
}

// flight is the context shared by callers waiting on one coalesced refresh.
// It is cancelled when the last waiter leaves.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// NewGateway wires a gateway. A nil store behaves like an unconfigured cache.
func NewGateway(source Source, parser *Parser, store Store, config GatewayConfig) *Gateway {
	if parser == nil {
		parser = NewParser(nil)
	}
	if store == nil {
		store = cache.Disabled{}
	}
	if config.TTL <= 0 {
		config.TTL = DefaultTTL
	}
	if config.CacheKey == "" {
		config.CacheKey = DefaultCacheKey
	}

	return &Gateway{
		source: source,
		parser: parser,
		store:  store,
		config: config,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Get returns the cached record set while it is fresh, otherwise fetches,
// parses and caches a new one. The error is non-nil only when the upstream
// document could not be obtained or ctx ended.
//
// With Coalesce set, concurrent misses share one refresh. A waiter that gives
// up gets ctx.Err() and the refresh carries on for the others; once every
// waiter has gone the fetch is abandoned and nothing is written.
func (g *Gateway) Get(ctx context.Context) (*Result, error) {
	if result, ok := g.lookup(ctx); ok {
		return result, nil
	}

	if !g.config.Coalesce {
		return g.refresh(ctx)
	}
	return g.coalesced(ctx)
}

func (g *Gateway) coalesced(ctx context.Context) (*Result, error) {
	f := g.join(ctx)
	defer g.leave(f)

	ch := g.group.DoChan(g.config.CacheKey, func() (any, error) {
		return g.refresh(f.ctx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		shared := res.Val.(*Result)
		return &Result{Records: shared.Records, Cached: shared.Cached, UpdatedAt: shared.UpdatedAt}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// join registers a waiter on the current flight, starting one if needed.
// The flight keeps the first caller's values but not its cancellation.
func (g *Gateway) join(ctx context.Context) *flight {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.flight == nil {
		flightCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		g.flight = &flight{ctx: flightCtx, cancel: cancel}
	}
	g.flight.waiters++
	return g.flight
}

// leave drops a waiter. The last one out cancels the flight and forgets the
// shared call so later callers start a fresh one.
func (g *Gateway) leave(f *flight) {
	g.mu.Lock()
	defer g.mu.Unlock()

	f.waiters--
	if f.waiters > 0 {
		return
	}

	f.cancel()
	g.group.Forget(g.config.CacheKey)
	if g.flight == f {
		g.flight = nil
	}
}

func (g *Gateway) lookup(ctx context.Context) (*Result, bool) {
	blob, found, err := g.store.Get(ctx, g.config.CacheKey)
	if err != nil {
		metrics.RecordCacheLookup(metrics.CacheError)
		slog.Warn("Cache read failed, fetching upstream", "key", g.config.CacheKey, "error", err)
		return nil, false
	}
	if !found {
		metrics.RecordCacheLookup(metrics.CacheMiss)
		return nil, false
	}

	var entry cacheEntry
	if err := json.Unmarshal(blob, &entry); err != nil {
		metrics.RecordCacheLookup(metrics.CacheError)
		slog.Warn("Discarding undecodable cache entry", "key", g.config.CacheKey, "error", err)
		return nil, false
	}

	if g.now().Sub(entry.CachedAt) >= g.config.TTL {
		metrics.RecordCacheLookup(metrics.CacheMiss)
		slog.Debug("Cache entry expired", "cachedAt", entry.CachedAt)
		return nil, false
	}

	metrics.RecordCacheLookup(metrics.CacheHit)
	return &Result{Records: entry.Records, Cached: true, UpdatedAt: entry.CachedAt}, true
}

func (g *Gateway) refresh(ctx context.Context) (*Result, error) {
	document, err := g.source.Fetch(ctx)
	if err != nil {
		if !errors.Is(err, ErrUpstreamUnavailable) {
			err = fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
		}
		return nil, err
	}

	// An aborted request must not leave a cache write behind
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records := g.parser.Parse(document)
	metrics.RecordParsed(len(records))

	now := g.now()
	if len(records) > 0 {
		g.save(ctx, records, now)
	} else {
		slog.Info("Feed contained no items, skipping cache write")
	}

	return &Result{Records: records, Cached: false, UpdatedAt: now}, nil
}

func (g *Gateway) save(ctx context.Context, records []Record, cachedAt time.Time) {
	blob, err := json.Marshal(cacheEntry{Records: records, CachedAt: cachedAt})
	if err == nil {
		err = g.store.Put(ctx, g.config.CacheKey, blob, g.config.TTL)
	}

	metrics.RecordCacheWrite(err)
	if err != nil {
		slog.Warn("Cache write failed, serving uncached records", "key", g.config.CacheKey, "error", err)
	}
}

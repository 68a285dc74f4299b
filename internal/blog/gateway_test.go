package blog

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lepinkainen/blog-mirror/pkg/cache"
)

const twoItemFeed = `<rss><channel>
<item><title><![CDATA[Older]]></title><link>https://example.com/older</link><pubDate>2024-01-01</pubDate></item>
<item><title><![CDATA[Newer]]></title><link>https://example.com/newer</link><pubDate>2024-06-01</pubDate></item>
</channel></rss>`

type stubSource struct {
	document string
	err      error
	calls    atomic.Int32
	aborted  atomic.Int32
	// gate, when set, blocks Fetch until closed
	gate chan struct{}
}

func (s *stubSource) Fetch(ctx context.Context) (string, error) {
	s.calls.Add(1)
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			s.aborted.Add(1)
			return "", ctx.Err()
		}
	}
	return s.document, s.err
}

type mapStore struct {
	mu      sync.Mutex
	entries map[string][]byte
	ttls    map[string]time.Duration
	getErr  error
	putErr  error
	puts    int
}

func newMapStore() *mapStore {
	return &mapStore{entries: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (s *mapStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, false, s.getErr
	}
	v, ok := s.entries[key]
	return v, ok, nil
}

func (s *mapStore) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts++
	if s.putErr != nil {
		return s.putErr
	}
	s.entries[key] = value
	s.ttls[key] = ttl
	return nil
}

func newTestGateway(source Source, store Store, config GatewayConfig) (*Gateway, *time.Time) {
	g := NewGateway(source, nil, store, config)
	clock := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return clock }
	return g, &clock
}

func TestGatewayServesFromCacheWithinTTL(t *testing.T) {
	source := &stubSource{document: twoItemFeed}
	store := newMapStore()
	g, clock := newTestGateway(source, store, GatewayConfig{})

	first, err := g.Get(context.Background())
	require.NoError(t, err)
	assert.False(t, first.Cached)
	require.Len(t, first.Records, 2)
	assert.Equal(t, "Newer", first.Records[0].Title)

	*clock = clock.Add(9 * time.Minute)

	second, err := g.Get(context.Background())
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.True(t, first.UpdatedAt.Equal(second.UpdatedAt), "updatedAt %v != %v", first.UpdatedAt, second.UpdatedAt)
	assert.Equal(t, first.Records, second.Records)
	assert.Equal(t, int32(1), source.calls.Load())
	assert.Equal(t, DefaultTTL, store.ttls[DefaultCacheKey])
}

func TestGatewayRefetchesAfterTTL(t *testing.T) {
	source := &stubSource{document: twoItemFeed}
	g, clock := newTestGateway(source, newMapStore(), GatewayConfig{TTL: time.Minute})

	first, err := g.Get(context.Background())
	require.NoError(t, err)

	*clock = clock.Add(time.Minute)

	second, err := g.Get(context.Background())
	require.NoError(t, err)
	assert.False(t, second.Cached)
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt))
	assert.Equal(t, int32(2), source.calls.Load())
}

func TestGatewayCacheReadFailureFallsThrough(t *testing.T) {
	source := &stubSource{document: twoItemFeed}
	store := newMapStore()
	store.getErr = errors.New("connection refused")
	g, _ := newTestGateway(source, store, GatewayConfig{})

	result, err := g.Get(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Cached)
	assert.Len(t, result.Records, 2)
	assert.Equal(t, int32(1), source.calls.Load())
}

func TestGatewayCorruptEntryIsAMiss(t *testing.T) {
	source := &stubSource{document: twoItemFeed}
	store := newMapStore()
	store.entries[DefaultCacheKey] = []byte("{not json")
	g, _ := newTestGateway(source, store, GatewayConfig{})

	result, err := g.Get(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Cached)
	assert.Equal(t, int32(1), source.calls.Load())

	var entry cacheEntry
	require.NoError(t, json.Unmarshal(store.entries[DefaultCacheKey], &entry))
	assert.Len(t, entry.Records, 2)
}

func TestGatewayCacheWriteFailureStillReturnsRecords(t *testing.T) {
	store := newMapStore()
	store.putErr = errors.New("read-only replica")
	g, _ := newTestGateway(&stubSource{document: twoItemFeed}, store, GatewayConfig{})

	result, err := g.Get(context.Background())
	require.NoError(t, err)
	assert.Len(t, result.Records, 2)
	assert.Equal(t, 1, store.puts)
}

func TestGatewayWithoutStore(t *testing.T) {
	source := &stubSource{document: twoItemFeed}
	g, _ := newTestGateway(source, nil, GatewayConfig{})

	for range 2 {
		result, err := g.Get(context.Background())
		require.NoError(t, err)
		assert.False(t, result.Cached)
		assert.Len(t, result.Records, 2)
	}
	assert.Equal(t, int32(2), source.calls.Load())
}

func TestGatewayUpstreamFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "already classified", err: ErrUpstreamUnavailable},
		{name: "plain error", err: errors.New("dial tcp: connection refused")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMapStore()
			g, _ := newTestGateway(&stubSource{err: tt.err}, store, GatewayConfig{})

			result, err := g.Get(context.Background())
			assert.Nil(t, result)
			assert.ErrorIs(t, err, ErrUpstreamUnavailable)
			assert.Zero(t, store.puts)
		})
	}
}

func TestGatewayUpstreamFailureDoesNotServeStale(t *testing.T) {
	source := &stubSource{document: twoItemFeed}
	g, clock := newTestGateway(source, newMapStore(), GatewayConfig{})

	_, err := g.Get(context.Background())
	require.NoError(t, err)

	*clock = clock.Add(time.Hour)
	source.err = ErrUpstreamUnavailable

	result, err := g.Get(context.Background())
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
}

func TestGatewayEmptyFeedIsNotCached(t *testing.T) {
	source := &stubSource{document: `<rss><channel></channel></rss>`}
	store := newMapStore()
	g, _ := newTestGateway(source, store, GatewayConfig{})

	result, err := g.Get(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, result.Records)
	assert.Empty(t, result.Records)
	assert.False(t, result.Cached)
	assert.Zero(t, store.puts)
}

func TestGatewayCancelledAfterFetchSkipsWrite(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	source := &cancellingSource{document: twoItemFeed, cancel: cancel}
	store := newMapStore()
	g, _ := newTestGateway(source, store, GatewayConfig{})

	result, err := g.Get(ctx)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, store.puts)
}

// cancellingSource returns a document but cancels the caller first
type cancellingSource struct {
	document string
	cancel   context.CancelFunc
}

func (s *cancellingSource) Fetch(context.Context) (string, error) {
	s.cancel()
	return s.document, nil
}

func TestGatewayCustomKey(t *testing.T) {
	store := newMapStore()
	g, _ := newTestGateway(&stubSource{document: twoItemFeed}, store, GatewayConfig{CacheKey: "custom"})

	_, err := g.Get(context.Background())
	require.NoError(t, err)
	assert.Contains(t, store.entries, "custom")
	assert.NotContains(t, store.entries, DefaultCacheKey)
}

func TestGatewayWithMemoryStore(t *testing.T) {
	store, err := cache.NewMemoryStore(4)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	source := &stubSource{document: twoItemFeed}
	g := NewGateway(source, nil, store, GatewayConfig{})

	first, err := g.Get(context.Background())
	require.NoError(t, err)
	second, err := g.Get(context.Background())
	require.NoError(t, err)

	assert.False(t, first.Cached)
	assert.True(t, second.Cached)
	assert.True(t, first.UpdatedAt.Equal(second.UpdatedAt))
	assert.Equal(t, int32(1), source.calls.Load())
}

func TestGatewayCoalescesConcurrentMisses(t *testing.T) {
	source := &stubSource{document: twoItemFeed, gate: make(chan struct{})}
	store := newMapStore()
	g, _ := newTestGateway(source, store, GatewayConfig{Coalesce: true})

	const callers = 8
	var wg sync.WaitGroup
	results := make([]*Result, callers)
	errs := make([]error, callers)

	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = g.Get(context.Background())
		}()
	}

	require.Eventually(t, func() bool { return source.calls.Load() == 1 }, time.Second, time.Millisecond)
	// let the stragglers join the in-flight call before releasing it
	time.Sleep(20 * time.Millisecond)
	close(source.gate)
	wg.Wait()

	for i := range callers {
		require.NoError(t, errs[i])
		assert.Len(t, results[i].Records, 2)
	}
	assert.Equal(t, int32(1), source.calls.Load())
	assert.Equal(t, 1, store.puts)
}

func TestGatewayCoalescedFetchAbandonedWhenAllWaitersLeave(t *testing.T) {
	source := &stubSource{document: twoItemFeed, gate: make(chan struct{})}
	store := newMapStore()
	g, _ := newTestGateway(source, store, GatewayConfig{Coalesce: true})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := g.Get(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.Eventually(t, func() bool { return source.aborted.Load() == 1 }, time.Second, time.Millisecond)
	close(source.gate)

	store.mu.Lock()
	assert.Zero(t, store.puts)
	store.mu.Unlock()

	result, err := g.Get(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Cached)
	assert.Len(t, result.Records, 2)
	assert.Equal(t, int32(2), source.calls.Load())
	assert.Equal(t, 1, store.puts)
}

func TestGatewayCoalescedFetchSurvivesOneWaiterLeaving(t *testing.T) {
	source := &stubSource{document: twoItemFeed, gate: make(chan struct{})}
	store := newMapStore()
	g, _ := newTestGateway(source, store, GatewayConfig{Coalesce: true})

	leaving, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	var leftErr, stayedErr error
	var stayed *Result

	wg.Add(2)
	go func() {
		defer wg.Done()
		_, leftErr = g.Get(leaving)
	}()
	go func() {
		defer wg.Done()
		stayed, stayedErr = g.Get(context.Background())
	}()

	require.Eventually(t, func() bool { return source.calls.Load() == 1 }, time.Second, time.Millisecond)
	// let the second caller join the in-flight call
	time.Sleep(20 * time.Millisecond)
	cancel()
	time.Sleep(10 * time.Millisecond)
	close(source.gate)
	wg.Wait()

	assert.ErrorIs(t, leftErr, context.Canceled)
	require.NoError(t, stayedErr)
	assert.Len(t, stayed.Records, 2)
	assert.Equal(t, int32(1), source.calls.Load())
	assert.Zero(t, source.aborted.Load())
	assert.Equal(t, 1, store.puts)
}

package cache_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/market-comps/internal/cache"
	"github.com/donaldgifford/market-comps/internal/kv"
	domain "github.com/donaldgifford/market-comps/pkg/types"
)

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newStore(t *testing.T) (*cache.Store, *kv.MemoryStore, *clock) {
	t.Helper()
	backend := kv.NewMemoryStore()
	clk := newClock()
	return cache.NewStore(backend, cache.WithNowFunc(clk.Now)), backend, clk
}

func TestCache_RoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, _, clk := newStore(t)
	c := cache.New[domain.SearchResponse](s, "market")

	price := 42.5
	resp := domain.SearchResponse{Engine: "google_shopping"}
	resp.SetListings(domain.KindShoppingResult, []domain.Listing{
		{ID: "a", Kind: domain.KindShoppingResult, Position: 1, Title: "Jacket", PriceUSD: &price},
	})

	require.NoError(t, c.Put(ctx, "market_x_true", resp, cache.Indefinite()))

	e, ok := c.GetEntry(ctx, "market_x_true")
	require.True(t, ok)
	assert.Equal(t, "google_shopping", e.Value.Engine)
	require.Len(t, e.Value.Listings(domain.KindShoppingResult), 1)
	assert.InDelta(t, 42.5, *e.Value.Listings(domain.KindShoppingResult)[0].PriceUSD, 0)
	assert.True(t, e.CachedAt.Equal(clk.Now()))
	assert.True(t, e.Policy.Indefinite)
}

func TestCache_Expiry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		policy  cache.Policy
		advance time.Duration
		want    bool
	}{
		{name: "fixed duration expired", policy: cache.FixedDuration(7 * 24 * time.Hour), advance: 8 * 24 * time.Hour, want: false},
		{name: "fixed duration fresh", policy: cache.FixedDuration(7 * 24 * time.Hour), advance: 6 * 24 * time.Hour, want: true},
		{name: "fixed duration boundary", policy: cache.FixedDuration(time.Hour), advance: time.Hour, want: false},
		{name: "indefinite after a year", policy: cache.Indefinite(), advance: 365 * 24 * time.Hour, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			s, _, clk := newStore(t)
			c := cache.New[string](s, "text")

			require.NoError(t, c.Put(ctx, "k", "v", tt.policy))
			clk.Advance(tt.advance)

			got, ok := c.Get(ctx, "k")
			assert.Equal(t, tt.want, ok)
			if tt.want {
				assert.Equal(t, "v", got)
			}
		})
	}
}

func TestCache_CorruptEntryIsMiss(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, backend, _ := newStore(t)
	c := cache.New[string](s, "text")

	require.NoError(t, backend.Set(ctx, "text/bad", []byte{0xc1, 0x00, 0xff}))

	got, ok := c.Get(ctx, "bad")
	assert.False(t, ok)
	assert.Empty(t, got)
}

func TestCache_WrongPayloadTypeIsMiss(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, _, _ := newStore(t)

	require.NoError(t, cache.New[string](s, "shared").Put(ctx, "k", "not a struct", cache.Indefinite()))

	_, ok := cache.New[domain.SearchResponse](s, "shared").Get(ctx, "k")
	assert.False(t, ok)
}

func TestCache_PutCollectsExpiredAndCorrupt(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, backend, clk := newStore(t)
	text := cache.New[string](s, "text")
	other := cache.New[string](s, "other")

	require.NoError(t, text.Put(ctx, "old", "a", cache.FixedDuration(time.Hour)))
	require.NoError(t, text.Put(ctx, "forever", "b", cache.Indefinite()))
	require.NoError(t, other.Put(ctx, "old", "c", cache.FixedDuration(time.Hour)))
	require.NoError(t, backend.Set(ctx, "text/garbage", []byte{0xc1}))

	clk.Advance(2 * time.Hour)
	require.NoError(t, text.Put(ctx, "new", "d", cache.FixedDuration(time.Hour)))

	keys, err := text.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"forever", "new"}, keys)

	otherKeys, err := other.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"old"}, otherKeys, "collection stays inside the namespace")
}

func TestCache_PutCollectsWrongPayloadType(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, _, _ := newStore(t)
	market := cache.New[domain.SearchResponse](s, "market")

	require.NoError(t, cache.New[string](s, "market").Put(ctx, "stray", "not a response", cache.Indefinite()))
	require.NoError(t, market.Put(ctx, "item", domain.SearchResponse{Engine: "google_shopping"}, cache.Indefinite()))

	keys, err := market.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"item"}, keys)
}

func TestCache_PutOverwritesExpiredSameKey(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, _, clk := newStore(t)
	c := cache.New[string](s, "text")

	require.NoError(t, c.Put(ctx, "k", "old", cache.FixedDuration(time.Hour)))
	clk.Advance(2 * time.Hour)
	require.NoError(t, c.Put(ctx, "k", "new", cache.FixedDuration(time.Hour)))

	got, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "new", got)
}

func TestCache_Collect(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, _, clk := newStore(t)
	c := cache.New[int](s, "n")

	require.NoError(t, c.Put(ctx, "a", 1, cache.FixedDuration(time.Minute)))
	require.NoError(t, c.Put(ctx, "b", 2, cache.FixedDuration(time.Minute)))
	clk.Advance(time.Hour)

	n, err := c.Collect(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestCache_Remove(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, _, _ := newStore(t)
	c := cache.New[string](s, "text")

	require.NoError(t, c.Put(ctx, "k", "v", cache.Indefinite()))
	require.NoError(t, c.Remove(ctx, "k"))
	require.NoError(t, c.Remove(ctx, "k"))

	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
	assert.Equal(t, "text", c.Name())
}

func TestCache_ConcurrentPuts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, _, _ := newStore(t)
	c := cache.New[int](s, "n")

	var wg sync.WaitGroup
	for i := range 25 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, c.Put(ctx, "shared", i, cache.Indefinite()))
		}(i)
	}
	wg.Wait()

	_, ok := c.Get(ctx, "shared")
	assert.True(t, ok)
}

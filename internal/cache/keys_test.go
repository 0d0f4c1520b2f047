package cache_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/donaldgifford/market-comps/internal/cache"
)

func TestTextKey_Idempotent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b string
	}{
		{name: "case and padding", a: " Foo BAR ", b: "foo_bar"},
		{name: "tabs and runs", a: "foo \t  bar", b: "FOO BAR"},
		{name: "full width", a: "ＦＯＯ bar", b: "foo_bar"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, cache.TextKey("appraisal", tt.a), cache.TextKey("appraisal", tt.b))
		})
	}
}

func TestTextKey_Distinguishes(t *testing.T) {
	t.Parallel()

	assert.NotEqual(t, cache.TextKey("appraisal", "foo"), cache.TextKey("listing_copy", "foo"))
	assert.NotEqual(t, cache.TextKey("appraisal", "foo bar"), cache.TextKey("appraisal", "foobar"))
}

func TestNormalizeInput(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "foo_bar", cache.NormalizeInput(" Foo BAR "))
	assert.Empty(t, cache.NormalizeInput("   "))
}

func TestMarketKey(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "market_item-1_true", cache.MarketKey("item-1", true))
	assert.Equal(t, "market_item-1_false", cache.MarketKey("item-1", false))
}

func TestQueryKey(t *testing.T) {
	t.Parallel()

	a := cache.QueryKey("Vintage Levi's Jacket", false)
	assert.Equal(t, a, cache.QueryKey("  vintage levi's   jacket", false))
	assert.NotEqual(t, a, cache.QueryKey("Vintage Levi's Jacket", true))
	assert.Regexp(t, `^query_[0-9a-f]{24}_false$`, a)
}

package kv_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/market-comps/internal/kv"
)

// runStoreSuite exercises the Store contract against any backend.
func runStoreSuite(t *testing.T, s kv.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		v, ok, err := s.Get(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, v)
	})

	t.Run("set get overwrite", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "market_a_true", []byte("one")))
		v, ok, err := s.Get(ctx, "market_a_true")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []byte("one"), v)

		require.NoError(t, s.Set(ctx, "market_a_true", []byte("two")))
		v, _, err = s.Get(ctx, "market_a_true")
		require.NoError(t, err)
		assert.Equal(t, []byte("two"), v)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "gone", []byte("x")))
		require.NoError(t, s.Delete(ctx, "gone"))
		require.NoError(t, s.Delete(ctx, "gone"))
		_, ok, err := s.Get(ctx, "gone")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("prefix scan", func(t *testing.T) {
		for _, k := range []string{"p/b", "p/a", "p/c", "q/a", "p*/literal"} {
			require.NoError(t, s.Set(ctx, k, []byte(k)))
		}

		keys, err := s.KeysWithPrefix(ctx, "p/")
		require.NoError(t, err)
		assert.Equal(t, []string{"p/a", "p/b", "p/c"}, keys)

		keys, err = s.KeysWithPrefix(ctx, "p*")
		require.NoError(t, err)
		assert.Equal(t, []string{"p*/literal"}, keys, "glob characters are literal")

		keys, err = s.KeysWithPrefix(ctx, "zzz")
		require.NoError(t, err)
		assert.Empty(t, keys)
	})

	t.Run("concurrent writers", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := range 20 {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				assert.NoError(t, s.Set(ctx, fmt.Sprintf("c/%02d", i), []byte{byte(i)}))
			}(i)
		}
		wg.Wait()

		keys, err := s.KeysWithPrefix(ctx, "c/")
		require.NoError(t, err)
		assert.Len(t, keys, 20)
	})
}

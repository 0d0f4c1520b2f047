package kv_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/market-comps/internal/kv"
)

func TestBoltStore(t *testing.T) {
	t.Parallel()

	s, err := kv.NewBoltStore(filepath.Join(t.TempDir(), "nested", "market.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	runStoreSuite(t, s)
}

func TestBoltStore_Reopen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "market.db")

	s, err := kv.NewBoltStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "curation/item-1", []byte(`{"x":1}`)))
	require.NoError(t, s.Close())

	s, err = kv.NewBoltStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	v, ok, err := s.Get(ctx, "curation/item-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"x":1}`, string(v))
}

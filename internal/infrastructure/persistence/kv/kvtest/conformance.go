// Package kvtest holds a conformance suite shared by every kv.Store backend.
package kvtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/educa-hub/pei-hub/internal/infrastructure/persistence/kv"
)

// Run exercises the kv.Store contract. The store must start empty.
func Run(t *testing.T, store kv.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("get missing key", func(t *testing.T) {
		_, err := store.Get(ctx, "pei:missing")
		assert.ErrorIs(t, err, kv.ErrKeyNotFound)
	})

	t.Run("set then get", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "pei:a", []byte(`{"id":"a"}`)))
		got, err := store.Get(ctx, "pei:a")
		require.NoError(t, err)
		assert.JSONEq(t, `{"id":"a"}`, string(got))
	})

	t.Run("set overwrites", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "pei:a", []byte(`{"id":"a","title":"v2"}`)))
		got, err := store.Get(ctx, "pei:a")
		require.NoError(t, err)
		assert.JSONEq(t, `{"id":"a","title":"v2"}`, string(got))
	})

	t.Run("scan prefix sorted", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "pei:c", []byte(`{"id":"c"}`)))
		require.NoError(t, store.Set(ctx, "pei:b", []byte(`{"id":"b"}`)))
		require.NoError(t, store.Set(ctx, "other:x", []byte(`{"id":"x"}`)))

		entries, err := store.ScanPrefix(ctx, "pei:")
		require.NoError(t, err)

		keys := make([]string, 0, len(entries))
		for _, e := range entries {
			keys = append(keys, e.Key)
		}
		assert.Equal(t, []string{"pei:a", "pei:b", "pei:c"}, keys)
	})

	t.Run("scan without matches", func(t *testing.T) {
		entries, err := store.ScanPrefix(ctx, "nothing:")
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "pei:b"))
		_, err := store.Get(ctx, "pei:b")
		assert.ErrorIs(t, err, kv.ErrKeyNotFound)
		assert.ErrorIs(t, store.Delete(ctx, "pei:b"), kv.ErrKeyNotFound)
	})
}

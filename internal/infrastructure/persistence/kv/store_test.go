package kv_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/educa-hub/pei-hub/internal/infrastructure/persistence/kv"
	"github.com/educa-hub/pei-hub/internal/infrastructure/persistence/kv/kvtest"
)

func TestMemoryStore_Conformance(t *testing.T) {
	kvtest.Run(t, kv.NewMemoryStore())
}

func TestMemoryStore_CopiesValues(t *testing.T) {
	ctx := context.Background()
	s := kv.NewMemoryStore()

	value := []byte("abc")
	require.NoError(t, s.Set(ctx, "k", value))
	value[0] = 'x'

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))

	got[1] = 'y'
	again, _ := s.Get(ctx, "k")
	assert.Equal(t, "abc", string(again))
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := kv.NewMemoryStore().Get(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBackendName(t *testing.T) {
	assert.Equal(t, "memory", kv.BackendName(kv.NewMemoryStore()))
	assert.Equal(t, "memory", kv.BackendName(kv.NewInstrumentedStore(kv.NewMemoryStore(), nil)))
}

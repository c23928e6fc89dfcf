package messaging

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/educa-hub/pei-hub/internal/domain/shared"
	"github.com/educa-hub/pei-hub/internal/infrastructure/telemetry"
)

func TestInMemoryEventBus_SyncDelivery(t *testing.T) {
	bus := NewInMemoryEventBus(DefaultInMemoryEventBusConfig())
	defer bus.Close()

	var got []string
	require.NoError(t, bus.Subscribe(shared.EventPEISaved, func(e shared.Event) error {
		got = append(got, "saved:"+e.AggregateID())
		return nil
	}))
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		got = append(got, "all:"+string(e.EventType()))
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewPEISavedEvent("p1", "s1", 2)))
	require.NoError(t, bus.Publish(shared.NewPEIDeletedEvent("p1")))

	assert.Equal(t, []string{"saved:p1", "all:pei.saved", "all:pei.deleted"}, got)
}

func TestInMemoryEventBus_HandlerFailuresAreContained(t *testing.T) {
	bus := NewInMemoryEventBus(DefaultInMemoryEventBusConfig())
	defer bus.Close()

	calls := 0
	require.NoError(t, bus.Subscribe(shared.EventPEIDeleted, func(shared.Event) error {
		return errors.New("boom")
	}))
	require.NoError(t, bus.Subscribe(shared.EventPEIDeleted, func(shared.Event) error {
		panic("handler bug")
	}))
	require.NoError(t, bus.Subscribe(shared.EventPEIDeleted, func(shared.Event) error {
		calls++
		return nil
	}))

	assert.NoError(t, bus.Publish(shared.NewPEIDeletedEvent("p1")))
	assert.Equal(t, 1, calls)
}

func TestInMemoryEventBus_AsyncCloseDrains(t *testing.T) {
	cfg := DefaultInMemoryEventBusConfig()
	cfg.AsyncMode = true
	cfg.WorkerPoolSize = 2
	bus := NewInMemoryEventBus(cfg)

	var n atomic.Int32
	var wg sync.WaitGroup
	wg.Add(10)
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		defer wg.Done()
		n.Add(1)
		return nil
	}))

	for range 10 {
		require.NoError(t, bus.Publish(shared.NewPEIDeletedEvent("p")))
	}
	require.NoError(t, bus.Close())
	wg.Wait()
	assert.Equal(t, int32(10), n.Load())
}

func TestInMemoryEventBus_Closed(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{})
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	assert.ErrorIs(t, bus.Publish(shared.NewPEIDeletedEvent("p")), ErrEventBusClosed)
	assert.ErrorIs(t, bus.Subscribe(shared.EventPEISaved, func(shared.Event) error { return nil }), ErrEventBusClosed)
	assert.Error(t, bus.SubscribeAll(nil))
	assert.Error(t, bus.Publish(nil))
}

func TestInMemoryEventBus_CountsPublishedEvents(t *testing.T) {
	metrics := telemetry.NewMetrics(telemetry.DefaultMetricsConfig())
	cfg := DefaultInMemoryEventBusConfig()
	cfg.Metrics = metrics
	bus := NewInMemoryEventBus(cfg)
	defer bus.Close()

	require.NoError(t, bus.Publish(shared.NewPEICreatedEvent("p1", "s1", "")))
	require.NoError(t, bus.Publish(shared.NewPEICreatedEvent("p2", "s1", "")))

	families, err := metrics.Registry().Gather()
	require.NoError(t, err)
	found := false
	for _, f := range families {
		if f.GetName() == "pei_events_published_total" {
			found = true
			require.Len(t, f.GetMetric(), 1)
			assert.Equal(t, 2.0, f.GetMetric()[0].GetCounter().GetValue())
		}
	}
	assert.True(t, found)
}

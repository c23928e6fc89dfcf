package kv_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/educa-hub/pei-hub/internal/domain/pei"
	"github.com/educa-hub/pei-hub/internal/domain/shared"
	"github.com/educa-hub/pei-hub/internal/infrastructure/persistence/kv"
	"github.com/educa-hub/pei-hub/internal/infrastructure/telemetry"
)

var errBackendDown = errors.New("backend down")

// gatewayFlakyStore fails the first failures calls of every operation.
type gatewayFlakyStore struct {
	*kv.MemoryStore
	mu       sync.Mutex
	failures int
	calls    int
}

func (s *gatewayFlakyStore) fail() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failures {
		return errBackendDown
	}
	return nil
}

func (s *gatewayFlakyStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := s.fail(); err != nil {
		return nil, err
	}
	return s.MemoryStore.Get(ctx, key)
}

func (s *gatewayFlakyStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.fail(); err != nil {
		return err
	}
	return s.MemoryStore.Set(ctx, key, value)
}

func samplePEI(id, student string, created time.Time) pei.PEI {
	return pei.PEI{
		ID:          id,
		StudentID:   student,
		StudentName: "Ana",
		Title:       "Plano " + id,
		CreatedDate: created,
		Status:      pei.StatusActive,
		TeamMembers: []string{"Professora"},
		Goals: []pei.Goal{{
			ID:         "g1",
			Domain:     "motor",
			Title:      "Correr",
			Status:     pei.GoalInProgress,
			Strategies: []pei.Strategy{{ID: "s1", Description: "Circuito"}},
			Progress: []pei.ProgressRecord{{
				ID:     "r1",
				Date:   created,
				Status: pei.ProgressMinor,
				Author: "user",
			}},
		}},
	}
}

func TestGateway_SaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	g := kv.NewGateway(kv.NewMemoryStore(), kv.GatewayConfig{})
	p := samplePEI("p1", "s1", time.Date(2024, time.January, 5, 10, 0, 0, 0, time.UTC))

	require.NoError(t, g.Save(ctx, p))
	got, err := g.Load(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestGateway_StoresCamelCaseJSON(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	g := kv.NewGateway(store, kv.GatewayConfig{})

	require.NoError(t, g.Save(ctx, samplePEI("p1", "s1", time.Date(2024, time.January, 5, 0, 0, 0, 0, time.UTC))))

	raw, err := store.Get(ctx, "pei:p1")
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"studentId":"s1"`)
	assert.Contains(t, string(raw), `"createdDate":"2024-01-05T00:00:00Z"`)
}

func TestGateway_LoadMissing(t *testing.T) {
	g := kv.NewGateway(kv.NewMemoryStore(), kv.GatewayConfig{})
	_, err := g.Load(context.Background(), "nope")
	assert.ErrorIs(t, err, pei.ErrPEINotFound)
	assert.True(t, shared.IsNotFound(err))
}

func TestGateway_SaveRequiresID(t *testing.T) {
	g := kv.NewGateway(kv.NewMemoryStore(), kv.GatewayConfig{})
	err := g.Save(context.Background(), pei.PEI{})
	assert.ErrorIs(t, err, shared.ErrInvalidID)
}

func TestGateway_StorageErrorPreservesCause(t *testing.T) {
	store := &gatewayFlakyStore{MemoryStore: kv.NewMemoryStore(), failures: 1}
	g := kv.NewGateway(store, kv.GatewayConfig{})

	err := g.Save(context.Background(), samplePEI("p1", "s1", time.Now()))
	assert.ErrorIs(t, err, shared.ErrStorage)
	assert.ErrorIs(t, err, errBackendDown)
}

func TestGateway_ListByStudent(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	var logs bytes.Buffer
	g := kv.NewGateway(store, kv.GatewayConfig{Logger: slog.New(slog.NewTextHandler(&logs, nil))})

	jan := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, g.Save(ctx, samplePEI("old", "s1", jan)))
	require.NoError(t, g.Save(ctx, samplePEI("new", "s1", jan.AddDate(0, 2, 0))))
	require.NoError(t, g.Save(ctx, samplePEI("other", "s2", jan.AddDate(0, 1, 0))))
	require.NoError(t, store.Set(ctx, "pei:broken", []byte("{not json")))
	require.NoError(t, store.Set(ctx, "unrelated:1", []byte(`{"id":"x","studentId":"s1"}`)))

	plans, err := g.ListByStudent(ctx, "s1")
	require.NoError(t, err)

	require.Len(t, plans, 2)
	assert.Equal(t, "new", plans[0].ID)
	assert.Equal(t, "old", plans[1].ID)
	assert.Contains(t, logs.String(), "skipping malformed plan entry")
	assert.Contains(t, logs.String(), "pei:broken")

	none, err := g.ListByStudent(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestGateway_NormalizesOldSnapshots(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	g := kv.NewGateway(store, kv.GatewayConfig{})
	require.NoError(t, store.Set(ctx, "pei:legacy", []byte(`{"id":"legacy","studentId":"s1","goals":[{"id":"g","status":"not_started"}]}`)))

	p, err := g.Load(ctx, "legacy")
	require.NoError(t, err)
	assert.Equal(t, pei.DefaultStudentName, p.StudentName)
	assert.NotNil(t, p.Goals[0].Strategies)
	assert.NotNil(t, p.Goals[0].Progress)
}

func TestGateway_RejectsOutOfSetStatuses(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	var logs bytes.Buffer
	g := kv.NewGateway(store, kv.GatewayConfig{Logger: slog.New(slog.NewTextHandler(&logs, nil))})

	require.NoError(t, g.Save(ctx, samplePEI("good", "s1", time.Now().UTC())))
	require.NoError(t, store.Set(ctx, "pei:edited", []byte(
		`{"id":"edited","studentId":"s1","status":"active","goals":[{"id":"g","status":"done"}]}`)))

	_, err := g.Load(ctx, "edited")
	assert.ErrorIs(t, err, shared.ErrStorage)
	assert.ErrorIs(t, err, pei.ErrInvalidGoalStatus)

	plans, err := g.ListByStudent(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, "good", plans[0].ID)
	assert.Contains(t, logs.String(), "pei:edited")
}

func TestGateway_Delete(t *testing.T) {
	ctx := context.Background()
	g := kv.NewGateway(kv.NewMemoryStore(), kv.GatewayConfig{KeyPrefix: "school1:pei:"})
	require.NoError(t, g.Save(ctx, samplePEI("p1", "s1", time.Now().UTC())))
	assert.Equal(t, "school1:pei:p1", g.Key("p1"))

	require.NoError(t, g.Delete(ctx, "p1"))
	_, err := g.Load(ctx, "p1")
	assert.ErrorIs(t, err, pei.ErrPEINotFound)
	assert.ErrorIs(t, g.Delete(ctx, "p1"), pei.ErrPEINotFound)
}

// ══════════════════════════════════════════════════════════════════════════════
// DECORATORS
// ══════════════════════════════════════════════════════════════════════════════

func TestRetryStore_RecoversFromTransientErrors(t *testing.T) {
	ctx := context.Background()
	flaky := &gatewayFlakyStore{MemoryStore: kv.NewMemoryStore(), failures: 2}
	metrics := telemetry.NewMetrics(telemetry.DefaultMetricsConfig())
	store := kv.NewRetryStore(flaky, kv.RetryConfig{Attempts: 3, Metrics: metrics})

	require.NoError(t, store.Set(ctx, "pei:a", []byte("1")))
	assert.Equal(t, 3, flaky.calls)
}

func TestGatewayRetryStore_GivesUp(t *testing.T) {
	flaky := &gatewayFlakyStore{MemoryStore: kv.NewMemoryStore(), failures: 10}
	store := kv.NewRetryStore(flaky, kv.RetryConfig{Attempts: 2})

	err := store.Set(context.Background(), "pei:a", []byte("1"))
	assert.ErrorIs(t, err, errBackendDown)
	assert.Equal(t, 2, flaky.calls)
}

func TestRetryStore_DoesNotRetryMissingKey(t *testing.T) {
	flaky := &gatewayFlakyStore{MemoryStore: kv.NewMemoryStore()}
	store := kv.NewRetryStore(flaky, kv.RetryConfig{Attempts: 5})

	_, err := store.Get(context.Background(), "pei:none")
	assert.ErrorIs(t, err, kv.ErrKeyNotFound)
	assert.Equal(t, 1, flaky.calls)
}

func TestInstrumentedStore_PassesThrough(t *testing.T) {
	ctx := context.Background()
	metrics := telemetry.NewMetrics(telemetry.DefaultMetricsConfig())
	store := kv.NewInstrumentedStore(kv.NewMemoryStore(), metrics)

	require.NoError(t, store.Set(ctx, "pei:a", []byte("1")))
	_, err := store.Get(ctx, "pei:missing")
	assert.ErrorIs(t, err, kv.ErrKeyNotFound)

	var buf bytes.Buffer
	require.NoError(t, metrics.WriteText(&buf))
	assert.Contains(t, buf.String(), `pei_store_operations_total{backend="memory",op="get",outcome="not_found"} 1`)
	assert.Contains(t, buf.String(), `pei_store_operations_total{backend="memory",op="set",outcome="success"} 1`)
}

package telemetry

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_StoreOps(t *testing.T) {
	m := NewMetrics(DefaultMetricsConfig())

	m.ObserveStoreOp("memory", "get", OutcomeSuccess, time.Millisecond)
	m.ObserveStoreOp("memory", "get", OutcomeSuccess, time.Millisecond)
	m.ObserveStoreOp("memory", "get", OutcomeNotFound, time.Millisecond)
	m.RecordStoreRetry("set")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.storeOps.WithLabelValues("memory", "get", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.storeOps.WithLabelValues("memory", "get", OutcomeNotFound)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.storeRetries.WithLabelValues("set")))
}

func TestMetrics_FacadeOps(t *testing.T) {
	m := NewMetrics(DefaultMetricsConfig())

	m.RecordOperation("AddGoal", nil)
	m.RecordOperation("SavePEI", errors.New("boom"))
	m.RecordNotification("error")
	m.RecordEvent("pei.saved")
	m.SetGoalsTracked(4)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.facadeOps.WithLabelValues("AddGoal", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.facadeOps.WithLabelValues("SavePEI", OutcomeError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notifications.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.events.WithLabelValues("pei.saved")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.goalsTracked))
}

func TestMetrics_DisabledIsNoop(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	assert.NotPanics(t, func() {
		m.ObserveStoreOp("memory", "get", OutcomeSuccess, time.Millisecond)
		m.RecordOperation("AddGoal", nil)
		m.SetGoalsTracked(1)
	})
	assert.Nil(t, m.Registry())

	var nilMetrics *Metrics
	assert.NotPanics(t, func() { nilMetrics.RecordEvent("x") })

	var buf bytes.Buffer
	require.NoError(t, m.WriteText(&buf))
	assert.Empty(t, buf.String())
}

func TestMetrics_HandlerAndText(t *testing.T) {
	m := NewMetrics(DefaultMetricsConfig())
	m.RecordOperation("CreatePEI", nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pei_operations_total")

	var buf bytes.Buffer
	require.NoError(t, m.WriteText(&buf))
	assert.Contains(t, buf.String(), `pei_operations_total{op="CreatePEI",outcome="success"} 1`)
}

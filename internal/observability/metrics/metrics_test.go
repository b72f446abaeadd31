package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sample returns the value of the first series of name whose labels match.
func sample(t *testing.T, m *Metrics, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := m.Gatherer().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	series:
		for _, s := range mf.GetMetric() {
			got := map[string]string{}
			for _, lp := range s.GetLabel() {
				got[lp.GetName()] = lp.GetValue()
			}
			for k, v := range labels {
				if got[k] != v {
					continue series
				}
			}
			switch {
			case s.GetCounter() != nil:
				return s.GetCounter().GetValue()
			case s.GetGauge() != nil:
				return s.GetGauge().GetValue()
			case s.GetHistogram() != nil:
				return float64(s.GetHistogram().GetSampleCount())
			}
		}
	}
	t.Fatalf("metric %s %v not found", name, labels)
	return 0
}

func TestObserveCycle(t *testing.T) {
	m := newWith(prometheus.NewRegistry())

	m.ObserveCycle(TriggerSchedule, ResultOK, 200*time.Millisecond, 3, 10)
	m.ObserveCycle(TriggerManual, ResultFetchError, time.Second, 0, 10)

	assert.Equal(t, 1.0, sample(t, m, "gamewatch_cycles_total", map[string]string{"trigger": TriggerSchedule, "result": ResultOK}))
	assert.Equal(t, 1.0, sample(t, m, "gamewatch_cycles_total", map[string]string{"trigger": TriggerManual, "result": ResultFetchError}))
	assert.Equal(t, 3.0, sample(t, m, "gamewatch_new_entries_total", nil))
	assert.Equal(t, 10.0, sample(t, m, "gamewatch_known_entries", nil))
	assert.Equal(t, 2.0, sample(t, m, "gamewatch_fetch_duration_seconds", nil))
}

func TestObserveDeliveriesAndReset(t *testing.T) {
	m := newWith(prometheus.NewRegistry())

	m.ObserveDeliveries(2, 1)
	m.SetKnown(5)
	m.ObserveReset()

	assert.Equal(t, 2.0, sample(t, m, "gamewatch_deliveries_total", map[string]string{"result": "ok"}))
	assert.Equal(t, 1.0, sample(t, m, "gamewatch_deliveries_total", map[string]string{"result": "error"}))
	assert.Equal(t, 1.0, sample(t, m, "gamewatch_resets_total", nil))
	assert.Equal(t, 0.0, sample(t, m, "gamewatch_known_entries", nil))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveCycle(TriggerStartup, ResultEmpty, 0, 0, 0)
		m.ObserveDeliveries(1, 1)
		m.ObserveReset()
		m.SetKnown(1)
	})
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.ObserveCycle(TriggerSchedule, ResultOK, time.Millisecond, 1, 1)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "gamewatch_cycles_total")
	assert.Contains(t, body, "gamewatch_known_entries 1")
	assert.Contains(t, body, "go_goroutines")
}

package observe

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMetricsRegisterAndExpose(t *testing.T) {
	m := NewMetrics()
	m.WakeDetections.Inc()
	m.ChunksDropped.Inc()
	m.RecordTransition("idle", "listening")
	m.ConfirmationOutcomes.WithLabelValues("approved").Inc()

	recorder := httptest.NewRecorder()
	m.Handler().ServeHTTP(recorder, httptest.NewRequest("GET", "/metrics", nil))

	body := recorder.Body.String()
	require.Contains(t, body, "voxscribe_wake_detections_total 1")
	require.Contains(t, body, "voxscribe_chunks_dropped_total 1")
	require.Contains(t, body, `voxscribe_state_transitions_total{from="idle",to="listening"} 1`)
	require.Contains(t, body, `voxscribe_confirmation_outcomes_total{outcome="approved"} 1`)
}

func TestNewMetricsIndependentRegistries(t *testing.T) {
	require.NotPanics(t, func() {
		_ = NewMetrics()
		_ = NewMetrics()
	})
}

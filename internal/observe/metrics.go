// Package observe exposes Prometheus metrics for the dictation pipeline.
package observe

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains all Prometheus metrics for the voxscribe daemon.
type Metrics struct {
	registry *prometheus.Registry

	// capture/session metrics
	ChunksCaptured   prometheus.Counter
	ChunksDropped    prometheus.Counter
	StateTransitions *prometheus.CounterVec
	SessionActive    prometheus.Gauge

	// wake metrics
	WakeDetections prometheus.Counter

	// transcription metrics
	SegmentsSubmitted     prometheus.Counter
	TranscriptionFailures prometheus.Counter
	TranscriptionDuration prometheus.Histogram

	// power word metrics
	PowerWordsDetected   prometheus.Counter
	PowerWordsExecuted   prometheus.Counter
	PowerWordsDenied     prometheus.Counter
	ConfirmationOutcomes *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics on a fresh registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		ChunksCaptured: factory.NewCounter(prometheus.CounterOpts{
			Name: "voxscribe_chunks_captured_total",
			Help: "Total number of audio chunks accepted from the capture stream",
		}),
		ChunksDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "voxscribe_chunks_dropped_total",
			Help: "Total number of audio chunks dropped because a queue was full",
		}),
		StateTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voxscribe_state_transitions_total",
			Help: "Total number of session state transitions",
		}, []string{"from", "to"}),
		SessionActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "voxscribe_session_active",
			Help: "Whether a dictation session is currently active (0 or 1)",
		}),
		WakeDetections: factory.NewCounter(prometheus.CounterOpts{
			Name: "voxscribe_wake_detections_total",
			Help: "Total number of wake keyword detections",
		}),
		SegmentsSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "voxscribe_segments_submitted_total",
			Help: "Total number of audio segments submitted for transcription",
		}),
		TranscriptionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "voxscribe_transcription_failures_total",
			Help: "Total number of failed transcription attempts",
		}),
		TranscriptionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voxscribe_transcription_duration_seconds",
			Help:    "Wall-clock duration of transcription requests",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		PowerWordsDetected: factory.NewCounter(prometheus.CounterOpts{
			Name: "voxscribe_power_words_detected_total",
			Help: "Total number of power word phrases detected in transcripts",
		}),
		PowerWordsExecuted: factory.NewCounter(prometheus.CounterOpts{
			Name: "voxscribe_power_words_executed_total",
			Help: "Total number of power word commands executed",
		}),
		PowerWordsDenied: factory.NewCounter(prometheus.CounterOpts{
			Name: "voxscribe_power_words_denied_total",
			Help: "Total number of power word commands denied or failed validation",
		}),
		ConfirmationOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voxscribe_confirmation_outcomes_total",
			Help: "Confirmation requests by outcome",
		}, []string{"outcome"}),
	}
}

// RecordTransition counts one state transition.
func (m *Metrics) RecordTransition(from, to string) {
	if m == nil {
		return
	}
	m.StateTransitions.WithLabelValues(from, to).Inc()
}

// Handler returns the /metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve runs a metrics HTTP listener until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, listen string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	server := &http.Server{
		Addr:         listen,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	logger.Info("metrics listener started", "listen", listen)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

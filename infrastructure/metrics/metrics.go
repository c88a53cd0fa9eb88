// Package metrics provides Prometheus metrics for the relay.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	transfersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_transfers_total",
			Help: "Total number of settled transfers",
		},
		[]string{"outcome", "kind"},
	)

	transfersInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_transfers_in_flight",
			Help: "Number of transfers currently running",
		},
	)

	bytesFetched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_bytes_fetched_total",
			Help: "Total bytes downloaded from the messaging transport",
		},
	)

	bytesPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_bytes_published_total",
			Help: "Total bytes uploaded to the destination",
		},
	)

	phaseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_phase_duration_seconds",
			Help:    "Duration of a transfer phase in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"phase"},
	)

	publishErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_publish_errors_total",
			Help: "Publish failures by classification",
		},
		[]string{"kind"},
	)

	statusUpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_status_updates_total",
			Help: "Status messages sent or edited",
		},
		[]string{"status"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// TransferStarted marks a transfer as running.
func TransferStarted() {
	transfersInFlight.Inc()
}

// TransferSettled records the outcome of a transfer. kind is empty on success.
func TransferSettled(outcome, kind string) {
	transfersInFlight.Dec()
	transfersTotal.WithLabelValues(outcome, kind).Inc()
}

// RecordFetch records a completed download phase.
func RecordFetch(bytes uint64, duration time.Duration) {
	bytesFetched.Add(float64(bytes))
	phaseDuration.WithLabelValues("fetch").Observe(duration.Seconds())
}

// RecordPublish records a completed publish phase.
func RecordPublish(bytes int64, duration time.Duration) {
	bytesPublished.Add(float64(bytes))
	phaseDuration.WithLabelValues("publish").Observe(duration.Seconds())
}

// RecordPublishError counts a failed publish by its classification.
func RecordPublishError(kind string) {
	publishErrorsTotal.WithLabelValues(kind).Inc()
}

// RecordStatusUpdate counts a status send or edit.
func RecordStatusUpdate(success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	statusUpdatesTotal.WithLabelValues(status).Inc()
}

// Serve exposes /metrics on addr until ctx is done. An empty addr disables it.
func Serve(ctx context.Context, addr string) error {
	if addr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

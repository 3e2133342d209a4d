// Package metrics exposes Prometheus metrics for collection and evaluation.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"BandSentinel/internal/logger"
)

// Metrics holds the counters and histograms of one process.
type Metrics struct {
	EvalDuration     *prometheus.HistogramVec // labels: strategy
	SignalsTotal     *prometheus.CounterVec   // labels: strategy, direction
	InsufficientData *prometheus.CounterVec   // labels: strategy
	EvalErrors       *prometheus.CounterVec   // labels: strategy
	FetchErrors      prometheus.Counter
	BarsUpserted     prometheus.Counter
	NotifyErrors     prometheus.Counter
	LastUpdate       prometheus.Gauge

	gatherer prometheus.Gatherer
}

// New creates the metrics and registers them with reg, or with a fresh
// registry when reg is nil.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		EvalDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bandsentinel_eval_duration_seconds",
			Help:    "Indicator computation and signal detection latency per instrument",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"strategy"}),
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bandsentinel_signals_total",
			Help: "Signals detected on the latest bar",
		}, []string{"strategy", "direction"}),
		InsufficientData: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bandsentinel_insufficient_data_total",
			Help: "Evaluations skipped because the series was too short",
		}, []string{"strategy"}),
		EvalErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bandsentinel_eval_errors_total",
			Help: "Evaluations that failed for any other reason",
		}, []string{"strategy"}),
		FetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bandsentinel_fetch_errors_total",
			Help: "Failed daily bar fetches",
		}),
		BarsUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bandsentinel_bars_upserted_total",
			Help: "Daily bars written to the price store",
		}),
		NotifyErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bandsentinel_notify_errors_total",
			Help: "Notifications that could not be delivered",
		}),
		LastUpdate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bandsentinel_last_update_timestamp_seconds",
			Help: "Unix time of the last completed price update",
		}),
		gatherer: reg,
	}

	reg.MustRegister(
		m.EvalDuration,
		m.SignalsTotal,
		m.InsufficientData,
		m.EvalErrors,
		m.FetchErrors,
		m.BarsUpserted,
		m.NotifyErrors,
		m.LastUpdate,
	)
	return m
}

// ObserveEval records the latency of one evaluation started at start.
func (m *Metrics) ObserveEval(strategy string, start time.Time) {
	m.EvalDuration.WithLabelValues(strategy).Observe(time.Since(start).Seconds())
}

// Handler serves the registered metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log := logger.Component("metrics")
	log.Info().Str("addr", addr).Msg("metrics server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

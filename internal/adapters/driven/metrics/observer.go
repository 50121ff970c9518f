// Package metrics exports sync lifecycle metrics to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/custodia-labs/dirsync/internal/core/domain"
	"github.com/custodia-labs/dirsync/internal/core/ports/driven"
)

// Ensure Observer implements the interface.
var _ driven.SyncObserver = (*Observer)(nil)

// Sync outcomes used as the outcome label.
const (
	OutcomeSubmitted   = "submitted"
	OutcomeUnchanged   = "unchanged"
	OutcomeEmpty       = "empty"
	OutcomeNoDirectory = "no_directory"
	OutcomeError       = "error"
)

const namespace = "dirsync"

// Observer records sync metrics in its own registry.
type Observer struct {
	registry *prometheus.Registry

	runs        *prometheus.CounterVec
	duration    prometheus.Histogram
	requests    *prometheus.CounterVec
	entries     *prometheus.GaugeVec
	lastSuccess prometheus.Gauge
}

// NewObserver creates an observer with a fresh registry that also carries
// the Go runtime and process collectors.
func NewObserver() *Observer {
	o := &Observer{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_runs_total",
			Help:      "Total number of sync cycles by directory and outcome",
		}, []string{"directory", "outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_duration_seconds",
			Help:      "Time spent in one sync cycle",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_requests_total",
			Help:      "Total number of accepted import requests",
		}, []string{"directory"}),
		entries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "entries",
			Help:      "Entries returned by the last completed cycle",
		}, []string{"kind"}), // kind: "groups", "users"
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful sync cycle",
		}),
	}
	o.registry.MustRegister(
		o.runs,
		o.duration,
		o.requests,
		o.entries,
		o.lastSuccess,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return o
}

// Registry returns the registry metrics are recorded in.
func (o *Observer) Registry() *prometheus.Registry {
	return o.registry
}

// SyncFinished records one completed cycle.
func (o *Observer) SyncFinished(result *domain.SyncResult, duration time.Duration, err error) {
	directory := "none"
	if result != nil && result.SkipReason != domain.SkipNoDirectory {
		directory = result.Directory.String()
	}

	o.runs.WithLabelValues(directory, outcome(result, err)).Inc()
	o.duration.Observe(duration.Seconds())

	if err != nil || result == nil {
		return
	}
	if result.Groups != nil {
		o.entries.WithLabelValues("groups").Set(float64(len(result.Groups)))
	}
	if result.Users != nil {
		o.entries.WithLabelValues("users").Set(float64(len(result.Users)))
	}
	if !result.StartedAt.IsZero() {
		o.lastSuccess.Set(float64(result.StartedAt.Add(duration).Unix()))
	}
}

// RequestSubmitted counts one accepted import request.
func (o *Observer) RequestSubmitted(dt domain.DirectoryType) {
	o.requests.WithLabelValues(dt.String()).Inc()
}

// Handler serves /metrics and a /health probe.
func (o *Observer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(o.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func outcome(result *domain.SyncResult, err error) string {
	if err != nil || result == nil {
		return OutcomeError
	}
	switch result.SkipReason {
	case domain.SkipUnchanged:
		return OutcomeUnchanged
	case domain.SkipEmpty:
		return OutcomeEmpty
	case domain.SkipNoDirectory:
		return OutcomeNoDirectory
	default:
		return OutcomeSubmitted
	}
}

package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	appLaunches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "appmand",
			Subsystem: "app",
			Name:      "launches_total",
			Help:      "Number of successful application launches.",
		}, []string{"app"},
	)
	appLaunchFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "appmand",
			Subsystem: "app",
			Name:      "launch_failures_total",
			Help:      "Number of failed launch attempts, by failure kind.",
		}, []string{"app", "reason"},
	)
	appCloses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "appmand",
			Subsystem: "app",
			Name:      "closes_total",
			Help:      "Number of successful application closes.",
		}, []string{"app"},
	)
	sessionSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "appmand",
			Subsystem: "app",
			Name:      "session_seconds",
			Help:      "Observed session durations recorded at close.",
			Buckets:   prometheus.ExponentialBuckets(10, 4, 8),
		}, []string{"app"},
	)
	runningApps = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "appmand",
			Subsystem: "app",
			Name:      "running",
			Help:      "Number of catalog applications currently detected running.",
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{appLaunches, appLaunchFailures, appCloses, sessionSeconds, runningApps}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler that serves Prometheus metrics for the
// DefaultGatherer. The caller wires the route.
func Handler() http.Handler { return promhttp.Handler() }

// Helpers below no-op if Register hasn't been called.

func IncLaunch(app string) {
	if regOK.Load() {
		appLaunches.WithLabelValues(app).Inc()
	}
}

func IncLaunchFailure(app, reason string) {
	if regOK.Load() {
		appLaunchFailures.WithLabelValues(app, reason).Inc()
	}
}

func IncClose(app string) {
	if regOK.Load() {
		appCloses.WithLabelValues(app).Inc()
	}
}

func ObserveSession(app string, seconds float64) {
	if regOK.Load() {
		sessionSeconds.WithLabelValues(app).Observe(seconds)
	}
}

func SetRunningApps(n int) {
	if regOK.Load() {
		runningApps.Set(float64(n))
	}
}

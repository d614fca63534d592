package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/sim8085-launcher/internal/events"
)

// Namespace prefixes every metric name.
const Namespace = "sim8085_launcher"

// Failure reasons recorded in launch_failures_total.
const (
	ReasonNotFound     = "backend_not_found"
	ReasonSpawn        = "spawn_failed"
	ReasonUnhealthy    = "unhealthy"
	ReasonPortFallback = "port_fallback"
)

// Collector turns lifecycle events into Prometheus metrics.
type Collector struct {
	registry *prometheus.Registry

	spawns           prometheus.Counter
	failures         *prometheus.CounterVec
	shutdownOutcomes *prometheus.CounterVec
	unexpectedExits  prometheus.Counter
	backendUp        prometheus.Gauge
	healthAttempts   prometheus.Histogram
	healthWait       prometheus.Histogram
	startupDuration  prometheus.Histogram
	shutdownDuration *prometheus.HistogramVec
}

// NewCollector creates a Collector with a private registry that also
// carries the Go runtime and process collectors.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
	}

	c.spawns = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "backend_spawns_total",
		Help:      "Backend processes started.",
	})

	c.failures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "launch_failures_total",
		Help:      "Degraded startups by reason.",
	}, []string{"reason"})

	c.shutdownOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "backend_shutdowns_total",
		Help:      "Backend shutdowns by outcome.",
	}, []string{"outcome"})

	c.unexpectedExits = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "backend_unexpected_exits_total",
		Help:      "Backend exits observed while the shell was running.",
	})

	c.backendUp = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "backend_up",
		Help:      "1 while a supervised backend is running.",
	})

	c.healthAttempts = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "health_attempts",
		Help:      "Probe attempts used by the readiness check.",
		Buckets:   []float64{1, 2, 3, 4, 5, 10},
	})

	c.healthWait = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "health_wait_seconds",
		Help:      "Time spent waiting for the backend to accept connections.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.3, 0.6, 1, 2, 5},
	})

	c.startupDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "startup_duration_seconds",
		Help:      "Total time of the startup sequence.",
		Buckets:   prometheus.DefBuckets,
	})

	c.shutdownDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "shutdown_duration_seconds",
		Help:      "Time from shutdown request to process exit or abandonment.",
		Buckets:   []float64{0.01, 0.1, 0.5, 1, 2, 5, 7.5},
	}, []string{"outcome"})

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.spawns,
		c.failures,
		c.shutdownOutcomes,
		c.unexpectedExits,
		c.backendUp,
		c.healthAttempts,
		c.healthWait,
		c.startupDuration,
		c.shutdownDuration,
	)

	return c
}

// OnEvent implements events.Observer.
func (c *Collector) OnEvent(e events.Event) {
	switch e.Type {
	case events.PortSelected:
		if e.Fallback {
			c.failures.WithLabelValues(ReasonPortFallback).Inc()
		}
	case events.BackendNotFound:
		c.failures.WithLabelValues(ReasonNotFound).Inc()
	case events.SpawnFailed:
		c.failures.WithLabelValues(ReasonSpawn).Inc()
	case events.BackendStarted:
		c.spawns.Inc()
		c.backendUp.Set(1)
	case events.HealthChecked:
		c.healthAttempts.Observe(float64(e.Attempts))
		c.healthWait.Observe(e.Duration.Seconds())
		if !e.Healthy {
			c.failures.WithLabelValues(ReasonUnhealthy).Inc()
		}
	case events.StartupCompleted:
		if total, ok := e.Timings[events.PhaseTotal]; ok {
			c.startupDuration.Observe(total.Seconds())
		}
	case events.BackendExited:
		c.unexpectedExits.Inc()
		c.backendUp.Set(0)
	case events.BackendStopped:
		c.shutdownOutcomes.WithLabelValues(e.Outcome).Inc()
		c.shutdownDuration.WithLabelValues(e.Outcome).Observe(e.Duration.Seconds())
		c.backendUp.Set(0)
	}
}

// Registry returns the private registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		Registry: c.registry,
	})
}

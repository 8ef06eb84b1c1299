// Package metrics exposes a run's aggregate counters as Prometheus metrics,
// inverting the teacher's prometheus/client_golang usage from a query
// client (pkg/monitoring/prometheus in the teacher) to an exposition
// server, the natural role for a CI test harness that wants a single run's
// result scrapable without parsing stdout.
package metrics

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the run's Prometheus metric instruments.
type Collector struct {
	registry *prometheus.Registry

	modules  prometheus.Gauge
	tests    prometheus.Gauge
	variants prometheus.Gauge
	failures prometheus.Gauge
}

// NewCollector creates a Collector with a dedicated registry (not the
// global default, so multiple runs in one process don't collide).
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		registry: reg,
		modules: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ccheck",
			Name:      "modules_total",
			Help:      "Number of tester modules loaded in this run.",
		}),
		tests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ccheck",
			Name:      "tests_total",
			Help:      "Number of tests executed in this run.",
		}),
		variants: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ccheck",
			Name:      "variants_total",
			Help:      "Number of test-function invocations (variants) executed in this run.",
		}),
		failures: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ccheck",
			Name:      "failures_total",
			Help:      "Number of tests that failed in this run.",
		}),
	}

	reg.MustRegister(c.modules, c.tests, c.variants, c.failures)
	return c
}

// Set records the run's final aggregate counters.
func (c *Collector) Set(modules, tests, variants, failures uint64) {
	c.modules.Set(float64(modules))
	c.tests.Set(float64(tests))
	c.variants.Set(float64(variants))
	c.failures.Set(float64(failures))
}

// Server serves /metrics over HTTP for a Collector. A nil *Server, which is
// what NewServer returns when config.Metrics.ListenAddr is empty ("metrics
// disabled"), is a no-op for Start and Shutdown.
type Server struct {
	http *http.Server
}

// NewServer builds an HTTP server exposing c's registry on addr. Returns
// nil if addr is empty (metrics server disabled).
func NewServer(addr string, c *Collector) *Server {
	if addr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))

	return &Server{http: &http.Server{Addr: addr, Handler: mux}}
}

// Start begins serving in a background goroutine. errs receives the
// server's terminal error (nil on clean Shutdown), matching the common
// idiom of a single-element error channel populated on exit.
func (s *Server) Start() <-chan error {
	errs := make(chan error, 1)
	if s == nil {
		errs <- nil
		return errs
	}

	go func() {
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
			return
		}
		errs <- nil
	}()

	return errs
}

// Shutdown gracefully stops the metrics server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

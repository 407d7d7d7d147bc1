// Package observability collects Prometheus metrics for the dispatch
// pipeline.
package observability

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/relay-core/relay/internal/rpc"
)

// Metrics aggregates the Prometheus registry and core series.
type Metrics struct {
	registry     *prometheus.Registry
	handler      http.Handler
	callsTotal   *prometheus.CounterVec
	callDuration *prometheus.HistogramVec
}

// NewMetrics initialises the registry and base series.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	calls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_rpc_calls_total",
		Help: "RPC calls by procedure and transport code.",
	}, []string{"procedure", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "relay_rpc_call_duration_seconds",
		Help:    "RPC call duration by procedure.",
		Buckets: prometheus.DefBuckets,
	}, []string{"procedure"})
	registry.MustRegister(calls, duration)
	return &Metrics{
		registry:     registry,
		handler:      promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		callsTotal:   calls,
		callDuration: duration,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Observe records one finished call.
func (m *Metrics) Observe(procedure, code string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.callsTotal.WithLabelValues(procedure, code).Inc()
	m.callDuration.WithLabelValues(procedure).Observe(elapsed.Seconds())
}

// Middleware returns an observation-only pipeline stage. It never
// alters control flow.
func (m *Metrics) Middleware() rpc.Middleware {
	return func(ctx context.Context, call rpc.Ctx, next rpc.Next) (any, error) {
		start := time.Now()
		out, err := next(ctx, call)
		m.Observe(call.Procedure, codeForError(err), time.Since(start))
		return out, err
	}
}

// Registerer exposes the registry for custom series.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// codeForError labels a finished call with its transport code so the
// series shares one taxonomy with the wire responses.
func codeForError(err error) string {
	if err == nil {
		return "OK"
	}
	var domain *rpc.Error
	if errors.As(err, &domain) {
		return rpc.CodeFor(domain.Kind)
	}
	return rpc.CodeInternal
}

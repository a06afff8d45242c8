package telemetry

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rconsole-project/rconsole/internal/events"
)

// Metrics collects session activity counters for Prometheus scraping.
type Metrics struct {
	registry *prometheus.Registry

	commandsTotal   *prometheus.CounterVec
	commandDuration prometheus.Histogram
	sessionUp       prometheus.Gauge
	authFailures    prometheus.Counter
}

// NewMetrics creates the collectors on a private registry so tests can
// run multiple instances side by side.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rconsole",
			Name:      "commands_total",
			Help:      "Commands issued, partitioned by outcome.",
		}, []string{"outcome"}),
		commandDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "rconsole",
			Name:      "command_duration_seconds",
			Help:      "Time from sending a command to receiving its reply.",
			Buckets:   prometheus.DefBuckets,
		}),
		sessionUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rconsole",
			Name:      "session_up",
			Help:      "1 while the session is connected, 0 otherwise.",
		}),
		authFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rconsole",
			Name:      "auth_failures_total",
			Help:      "Authentication attempts rejected by the server.",
		}),
	}

	m.registry.MustRegister(m.commandsTotal, m.commandDuration, m.sessionUp, m.authFailures)
	return m
}

// Handler returns the scrape endpoint for this instance's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Attach subscribes the collectors to session events.
func (m *Metrics) Attach(bus *events.Bus) {
	bus.Subscribe(events.EventConnected, "metrics.connected", func(ctx context.Context, e events.Event) error {
		m.sessionUp.Set(1)
		return nil
	})
	bus.Subscribe(events.EventDisconnected, "metrics.disconnected", func(ctx context.Context, e events.Event) error {
		m.sessionUp.Set(0)
		return nil
	})
	bus.Subscribe(events.EventAuthFailed, "metrics.authFailed", func(ctx context.Context, e events.Event) error {
		m.authFailures.Inc()
		return nil
	})
	bus.Subscribe(events.EventCommandExecuted, "metrics.commandExecuted", func(ctx context.Context, e events.Event) error {
		m.observeCommand(e, "ok")
		return nil
	})
	bus.Subscribe(events.EventCommandFailed, "metrics.commandFailed", func(ctx context.Context, e events.Event) error {
		m.observeCommand(e, "error")
		return nil
	})
}

func (m *Metrics) observeCommand(e events.Event, outcome string) {
	m.commandsTotal.WithLabelValues(outcome).Inc()
	if payload, ok := e.Payload.(events.CommandPayload); ok {
		m.commandDuration.Observe(payload.Duration.Seconds())
	}
}

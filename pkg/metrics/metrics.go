package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics counts lifecycle operations and upstream calls.
type Metrics struct {
	operations   *prometheus.CounterVec
	upstreamCall *prometheus.CounterVec

	registry *prometheus.Registry
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "servio",
			Name:      "lifecycle_operations_total",
			Help:      "Lifecycle operations by kind and outcome.",
		}, []string{"operation", "outcome"}),
		upstreamCall: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "servio",
			Name:      "upstream_calls_total",
			Help:      "Calls to the provisioning gateway and directories by target and outcome.",
		}, []string{"target", "outcome"}),
		registry: registry,
	}

	registry.MustRegister(
		m.operations,
		m.upstreamCall,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

func (m *Metrics) ObserveOperation(operation, outcome string) {
	m.operations.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) ObserveUpstream(target, outcome string) {
	m.upstreamCall.WithLabelValues(target, outcome).Inc()
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

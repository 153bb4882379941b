// Package metrics implements the metrics half of C9: the exact counters,
// histograms, and gauges named in spec.md §4.9, registered against a
// private prometheus.Registry rather than the global default one.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics owns every Prometheus collector Jarvis exposes.
type Metrics struct {
	registry *prometheus.Registry

	ToolCallsTotal     *prometheus.CounterVec
	LLMCallsTotal      *prometheus.CounterVec
	AgentRestartsTotal *prometheus.CounterVec
	MeshMessagesTotal  *prometheus.CounterVec

	ToolCallLatencySeconds *prometheus.HistogramVec
	LLMLatencySeconds      *prometheus.HistogramVec

	AgentsReady    prometheus.Gauge
	PeersConnected prometheus.Gauge
}

// New builds and registers every collector under the given namespace.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "jarvis"
	}

	m := &Metrics{registry: prometheus.NewRegistry()}

	m.ToolCallsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tool_calls_total",
		Help:      "Total number of tool invocations.",
	}, []string{"tool", "outcome"})

	m.LLMCallsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "llm_calls_total",
		Help:      "Total number of LLM backend calls.",
	}, []string{"backend", "intent", "outcome"})

	m.AgentRestartsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "agent_restarts_total",
		Help:      "Total number of supervised agent restarts.",
	}, []string{"agent"})

	m.MeshMessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mesh_messages_total",
		Help:      "Total number of mesh messages sent or received.",
	}, []string{"kind", "outcome"})

	m.ToolCallLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "tool_call_latency_seconds",
		Help:      "Tool call latency in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"tool"})

	m.LLMLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "llm_latency_seconds",
		Help:      "LLM backend call latency in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"backend", "intent"})

	m.AgentsReady = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "agents_ready",
		Help:      "Number of supervised agents currently in the ready state.",
	})

	m.PeersConnected = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "peers_connected",
		Help:      "Number of mesh peers with an established session.",
	})

	m.registry.MustRegister(
		m.ToolCallsTotal,
		m.LLMCallsTotal,
		m.AgentRestartsTotal,
		m.MeshMessagesTotal,
		m.ToolCallLatencySeconds,
		m.LLMLatencySeconds,
		m.AgentsReady,
		m.PeersConnected,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	return m
}

// Registry exposes the underlying registry for the HTTP handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

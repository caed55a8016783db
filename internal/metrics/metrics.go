// Package metrics holds the Prometheus collectors for the agent pipeline and
// the HTTP server that exposes them.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the pipeline collectors. A nil *Metrics is valid and records
// nothing, so components can be constructed without a registry in tests.
type Metrics struct {
	ToolCalls    *prometheus.CounterVec   // tool invocations by tool and status
	Diagnoses    *prometheus.CounterVec   // fixed_diagnos results
	StateAppends *prometheus.CounterVec   // append_to_state calls by field
	RAGDuration  prometheus.Histogram     // query_rag_tool latency
	RAGCacheHits prometheus.Counter       // answers served from the RAG cache
	AgentEvents  *prometheus.CounterVec   // runner events by author
	EngineOps    *prometheus.HistogramVec // agent engine operations by kind
}

// NewMetrics creates and registers all collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ToolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "telcoagent_tool_calls_total",
			Help: "Tool invocations by tool name and status",
		}, []string{"tool", "status"}),
		Diagnoses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "telcoagent_diagnoses_total",
			Help: "Diagnosis results returned by fixed_diagnos",
		}, []string{"result"}),
		StateAppends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "telcoagent_state_appends_total",
			Help: "Values appended to session state by field",
		}, []string{"field"}),
		RAGDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "telcoagent_rag_query_duration_seconds",
			Help:    "Latency of RAG-grounded generate calls",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 8),
		}),
		RAGCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "telcoagent_rag_cache_hits_total",
			Help: "RAG answers served from the in-process cache",
		}),
		AgentEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "telcoagent_agent_events_total",
			Help: "Runner events by authoring agent",
		}, []string{"author"}),
		EngineOps: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "telcoagent_agent_engine_operation_seconds",
			Help:    "Duration of agent engine list, delete and deploy operations",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}, []string{"operation", "status"}),
	}

	reg.MustRegister(m.ToolCalls)
	reg.MustRegister(m.Diagnoses)
	reg.MustRegister(m.StateAppends)
	reg.MustRegister(m.RAGDuration)
	reg.MustRegister(m.RAGCacheHits)
	reg.MustRegister(m.AgentEvents)
	reg.MustRegister(m.EngineOps)
	return m
}

// ObserveTool counts one invocation of tool.
func (m *Metrics) ObserveTool(tool string, err error) {
	if m == nil {
		return
	}
	m.ToolCalls.WithLabelValues(tool, status(err)).Inc()
}

// ObserveDiagnosis counts one diagnosis result.
func (m *Metrics) ObserveDiagnosis(result string) {
	if m == nil {
		return
	}
	m.Diagnoses.WithLabelValues(result).Inc()
}

// ObserveAppend counts one append to field.
func (m *Metrics) ObserveAppend(field string) {
	if m == nil {
		return
	}
	m.StateAppends.WithLabelValues(field).Inc()
}

// ObserveRAG records the latency of one RAG query.
func (m *Metrics) ObserveRAG(d time.Duration) {
	if m == nil {
		return
	}
	m.RAGDuration.Observe(d.Seconds())
}

// ObserveRAGCacheHit counts one cached RAG answer.
func (m *Metrics) ObserveRAGCacheHit() {
	if m == nil {
		return
	}
	m.RAGCacheHits.Inc()
}

// ObserveEvent counts one runner event.
func (m *Metrics) ObserveEvent(author string) {
	if m == nil {
		return
	}
	m.AgentEvents.WithLabelValues(author).Inc()
}

// ObserveEngineOp records the duration of one agent engine operation.
func (m *Metrics) ObserveEngineOp(op string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.EngineOps.WithLabelValues(op, status(err)).Observe(d.Seconds())
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

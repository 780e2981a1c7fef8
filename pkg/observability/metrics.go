// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring workbridge orchestration runs.
package observability

import "github.com/prometheus/client_golang/prometheus"

// RPCBuckets covers remote call latencies from 50ms to 2 minutes; streamed
// tool calls sit at the upper end.
var RPCBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	// HTTPRequestsTotal counts requests to the serve endpoint by path and status class.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workbridge_http_requests_total",
			Help: "HTTP requests",
		},
		[]string{"path", "status"},
	)

	// AuthRejectedTotal counts requests refused by the serve endpoint's
	// authentication (unauthenticated, rate_limited).
	AuthRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workbridge_http_auth_rejected_total",
			Help: "HTTP requests rejected by authentication or rate limiting",
		},
		[]string{"reason"},
	)

	// RPCRequestsTotal counts JSON-RPC calls per target and method by outcome
	// (ok, network_error, protocol_error, validation_error).
	RPCRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workbridge_rpc_requests_total",
			Help: "JSON-RPC calls",
		},
		[]string{"target", "method", "outcome"},
	)

	// RPCRetriesTotal counts transport-level retry attempts per target.
	RPCRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workbridge_rpc_retries_total",
			Help: "JSON-RPC retries",
		},
		[]string{"target"},
	)

	// RPCLatency records full call latency including retries.
	RPCLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "workbridge_rpc_latency_seconds",
			Help:    "JSON-RPC call latency",
			Buckets: RPCBuckets,
		},
		[]string{"target"},
	)

	// StepsTotal counts orchestration step outcomes.
	StepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workbridge_steps_total",
			Help: "Orchestration step outcomes",
		},
		[]string{"step", "status"},
	)

	// AttachmentsTotal counts image attachment outcomes by method.
	AttachmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workbridge_attachments_total",
			Help: "Image attachment outcomes",
		},
		[]string{"method", "attached"},
	)

	// OrchestrationDuration records the duration of whole orchestration runs.
	OrchestrationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "workbridge_orchestration_duration_seconds",
			Help:    "Orchestration run duration",
			Buckets: RPCBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		AuthRejectedTotal,
		RPCRequestsTotal,
		RPCRetriesTotal,
		RPCLatency,
		StepsTotal,
		AttachmentsTotal,
		OrchestrationDuration,
	)
}

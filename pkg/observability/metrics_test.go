package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// TestMetricsRegistered verifies that all metrics are registered in the
// default registry once observed.
func TestMetricsRegistered(t *testing.T) {
	HTTPRequestsTotal.WithLabelValues("/healthz", "2xx").Inc()
	AuthRejectedTotal.WithLabelValues("unauthenticated").Inc()
	RPCRequestsTotal.WithLabelValues("wiki", "tools/call", "ok").Inc()
	RPCRetriesTotal.WithLabelValues("wiki").Inc()
	RPCLatency.WithLabelValues("wiki").Observe(0.1)
	StepsTotal.WithLabelValues("ticket", "success").Inc()
	AttachmentsTotal.WithLabelValues("fallback", "true").Inc()
	OrchestrationDuration.Observe(1)

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("unexpected gather error: %v", err)
	}

	expected := map[string]bool{
		"workbridge_http_requests_total":            false,
		"workbridge_http_auth_rejected_total":       false,
		"workbridge_rpc_requests_total":             false,
		"workbridge_rpc_retries_total":              false,
		"workbridge_rpc_latency_seconds":            false,
		"workbridge_steps_total":                    false,
		"workbridge_attachments_total":              false,
		"workbridge_orchestration_duration_seconds": false,
	}
	for _, mf := range families {
		if _, ok := expected[mf.GetName()]; ok {
			expected[mf.GetName()] = true
		}
	}
	for name, found := range expected {
		if !found {
			t.Errorf("metric %q not registered", name)
		}
	}
}

func TestMetricsMiddleware_CountsStatusClass(t *testing.T) {
	handler := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))

	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("/v1/workitems", "4xx"))

	req := httptest.NewRequest(http.MethodPost, "/v1/workitems", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("/v1/workitems", "4xx"))
	if after-before != 1 {
		t.Errorf("4xx counter delta = %v, want 1", after-before)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

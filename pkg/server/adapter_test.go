package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rhuss/workbridge/pkg/api"
	"github.com/rhuss/workbridge/pkg/orchestrator"
)

// recordingRunner returns a fixed result and remembers what it was given.
type recordingRunner struct {
	calls  atomic.Int32
	runID  string
	req    *api.WorkItemRequest
	result *api.OrchestrationResult
}

func (r *recordingRunner) Run(ctx context.Context, req *api.WorkItemRequest) *api.OrchestrationResult {
	r.calls.Add(1)
	r.runID = orchestrator.RunIDFromContext(ctx)
	r.req = req
	return r.result
}

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	return bytes.NewReader(data)
}

func validRequest() api.WorkItemRequest {
	return api.WorkItemRequest{
		Subject:         "Checkout Flow",
		ProjectKey:      "SHOP",
		SpaceKey:        "ENG",
		CreateArtifacts: true,
		Content: api.ContentPayload{
			Ticket: api.TicketContent{Summary: "Build checkout", Description: "desc"},
		},
	}
}

func successResult() *api.OrchestrationResult {
	return &api.OrchestrationResult{
		Jira: api.StepResult{Step: api.StepTicket, Status: api.StepSuccess, URL: "https://jira/browse/SHOP-1"},
		Wiki: api.StepResult{Step: api.StepImplPlan, Status: api.StepSuccess},
		QA:   api.StepResult{Step: api.StepQAPlan, Status: api.StepSuccess},
		Git:  api.StepResult{Step: api.StepBranch, Status: api.StepSkipped, Reason: "no vcs"},
	}
}

func TestRun_ReturnsEnvelope(t *testing.T) {
	runner := &recordingRunner{result: successResult()}
	handler := NewAdapter(runner, DefaultConfig()).Handler()

	req := httptest.NewRequest(http.MethodPost, "/v1/workitems", jsonBody(t, validRequest()))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body=%s", rec.Code, rec.Body.String())
	}

	var env api.Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Metadata.Orchestration == nil {
		t.Fatal("metadata.orchestration missing")
	}
	if env.Metadata.Orchestration.Jira.URL != "https://jira/browse/SHOP-1" {
		t.Errorf("jira url = %q", env.Metadata.Orchestration.Jira.URL)
	}
	if !api.ValidateRunID(env.Metadata.RunID) {
		t.Errorf("run id %q is not valid", env.Metadata.RunID)
	}
	if got := rec.Header().Get(HeaderRunID); got != env.Metadata.RunID {
		t.Errorf("header run id = %q, body run id = %q", got, env.Metadata.RunID)
	}
	if runner.runID != env.Metadata.RunID {
		t.Errorf("runner saw run id %q, want %q", runner.runID, env.Metadata.RunID)
	}
	if runner.req.Subject != "Checkout Flow" {
		t.Errorf("subject = %q", runner.req.Subject)
	}
}

func TestRun_PropagatesRunIDHeader(t *testing.T) {
	runner := &recordingRunner{result: successResult()}
	handler := NewAdapter(runner, DefaultConfig()).Handler()

	runID := "run_abcdefghijklmnopqrstuvwx"
	req := httptest.NewRequest(http.MethodPost, "/v1/workitems", jsonBody(t, validRequest()))
	req.Header.Set(HeaderRunID, runID)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if runner.runID != runID {
		t.Errorf("runner saw %q, want %q", runner.runID, runID)
	}
	if rec.Header().Get(HeaderRunID) != runID {
		t.Errorf("response header = %q", rec.Header().Get(HeaderRunID))
	}
}

func TestRun_InvalidRunIDHeaderIsReplaced(t *testing.T) {
	runner := &recordingRunner{result: successResult()}
	handler := NewAdapter(runner, DefaultConfig()).Handler()

	req := httptest.NewRequest(http.MethodPost, "/v1/workitems", jsonBody(t, validRequest()))
	req.Header.Set(HeaderRunID, "not-a-run-id")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if runner.runID == "not-a-run-id" || !api.ValidateRunID(runner.runID) {
		t.Errorf("runner saw %q, want a generated run id", runner.runID)
	}
}

func TestRun_FailedStepsStillAnswer200(t *testing.T) {
	runner := &recordingRunner{result: api.FailedResult(api.NewInternalError("boom"))}
	handler := NewAdapter(runner, DefaultConfig()).Handler()

	req := httptest.NewRequest(http.MethodPost, "/v1/workitems", jsonBody(t, validRequest()))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"internal_error"`) {
		t.Errorf("body does not carry the step error: %s", rec.Body.String())
	}
}

func TestRun_RejectsBadRequests(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		contentType string
		wantStatus  int
		wantType    api.ErrorType
	}{
		{
			name:       "invalid json",
			body:       `{"subject":`,
			wantStatus: http.StatusBadRequest,
			wantType:   api.ErrorTypeValidation,
		},
		{
			name:       "missing subject",
			body:       `{"project_key":"X","create_artifacts":true}`,
			wantStatus: http.StatusBadRequest,
			wantType:   api.ErrorTypeValidation,
		},
		{
			name:        "wrong content type",
			body:        `{}`,
			contentType: "text/plain",
			wantStatus:  http.StatusUnsupportedMediaType,
			wantType:    api.ErrorTypeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &recordingRunner{result: successResult()}
			handler := NewAdapter(runner, DefaultConfig()).Handler()

			req := httptest.NewRequest(http.MethodPost, "/v1/workitems", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d; body=%s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			var resp errorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Error == nil || resp.Error.Type != tt.wantType {
				t.Errorf("error = %+v, want type %s", resp.Error, tt.wantType)
			}
			if runner.calls.Load() != 0 {
				t.Errorf("runner called %d times, want 0", runner.calls.Load())
			}
		})
	}
}

func TestRun_BodyTooLarge(t *testing.T) {
	runner := &recordingRunner{result: successResult()}
	cfg := DefaultConfig()
	cfg.MaxBodySize = 64
	handler := NewAdapter(runner, cfg).Handler()

	body := `{"subject":"` + strings.Repeat("x", 200) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/workitems", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
}

func TestRun_DisabledRequestSkipsValidation(t *testing.T) {
	runner := &recordingRunner{result: api.SkippedResult("disabled")}
	handler := NewAdapter(runner, DefaultConfig()).Handler()

	req := httptest.NewRequest(http.MethodPost, "/v1/workitems", strings.NewReader(`{"create_artifacts":false}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if runner.calls.Load() != 1 {
		t.Errorf("runner called %d times, want 1", runner.calls.Load())
	}
}

func TestHealthz(t *testing.T) {
	handler := NewAdapter(&recordingRunner{}, DefaultConfig()).Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	handler := NewAdapter(&recordingRunner{}, DefaultConfig()).Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/workitems", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

// runnerFunc runs fn for every request and returns no result.
type runnerFunc func()

func (f runnerFunc) Run(context.Context, *api.WorkItemRequest) *api.OrchestrationResult {
	f()
	return nil
}

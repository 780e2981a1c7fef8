package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"

	"github.com/rhuss/workbridge/pkg/api"
	"github.com/rhuss/workbridge/pkg/orchestrator"
)

// HeaderRunID carries the run id on requests and responses.
const HeaderRunID = "X-Run-ID"

// Config holds configuration for the HTTP adapter.
type Config struct {
	MaxBodySize int64
	Validation  api.ValidationConfig
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		MaxBodySize: 16 << 20,
		Validation:  api.DefaultValidationConfig(),
	}
}

// Adapter routes HTTP requests to a Runner.
type Adapter struct {
	runner orchestrator.Runner
	config Config
	mux    *http.ServeMux
}

// NewAdapter creates an adapter. The runner is used as is; wrap it with
// orchestrator.NewRunner for logging, run ids and panic recovery.
func NewAdapter(runner orchestrator.Runner, cfg Config) *Adapter {
	a := &Adapter{
		runner: runner,
		config: cfg,
		mux:    http.NewServeMux(),
	}
	a.mux.HandleFunc("POST /v1/workitems", a.handleRun)
	a.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	return a
}

// Handler returns the HTTP handler of the adapter.
func (a *Adapter) Handler() http.Handler {
	return a.mux
}

// handleRun handles POST /v1/workitems.
func (a *Adapter) handleRun(w http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		if mt, _, _ := mime.ParseMediaType(ct); mt != "application/json" {
			writeError(w, api.NewValidationError("Content-Type must be application/json"), http.StatusUnsupportedMediaType)
			return
		}
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)

	var req api.WorkItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w,
				api.NewValidationError(fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize)),
				http.StatusRequestEntityTooLarge,
			)
			return
		}
		writeError(w, api.NewValidationError("invalid JSON: "+err.Error()), http.StatusBadRequest)
		return
	}

	if err := api.ValidateRequest(&req, a.config.Validation); err != nil {
		writeErrorInfo(w, api.ErrorFrom(err))
		return
	}

	ctx := r.Context()
	runID := r.Header.Get(HeaderRunID)
	if !api.ValidateRunID(runID) {
		runID = api.NewRunID()
	}
	ctx = orchestrator.ContextWithRunID(ctx, runID)

	result := a.runner.Run(ctx, &req)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(HeaderRunID, runID)
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(api.NewEnvelope(runID, result))
}

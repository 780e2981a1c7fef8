// Package server exposes the orchestrator over HTTP.
//
//	POST /v1/workitems   run one work item, respond with {"metadata":{"orchestration":...}}
//	GET  /healthz        liveness
//
// A run always answers 200 with the per-artifact outcome, including when
// every step failed. Only requests that cannot be decoded or fail
// validation are rejected with an error response.
package server

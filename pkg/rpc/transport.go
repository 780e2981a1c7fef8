package rpc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"

	"github.com/rhuss/workbridge/pkg/debug"
)

// exchange records what the wire saw during one attempt, so the attempt's
// failure can be classified after the MCP session has reduced it to an
// opaque error. The first failure wins.
type exchange struct {
	mu        sync.Mutex
	setupErr  error
	roundErr  error
	status    int
	message   string
	malformed error
}

type exchangeKey struct{}

func withExchange(ctx context.Context, ex *exchange) context.Context {
	return context.WithValue(ctx, exchangeKey{}, ex)
}

func exchangeFrom(ctx context.Context) *exchange {
	ex, _ := ctx.Value(exchangeKey{}).(*exchange)
	return ex
}

func (e *exchange) failed() bool {
	return e.setupErr != nil || e.roundErr != nil || e.status != 0 || e.malformed != nil
}

func (e *exchange) recordSetup(err error) {
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.failed() {
		e.setupErr = err
	}
}

func (e *exchange) recordRoundTrip(err error) {
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.failed() {
		e.roundErr = err
	}
}

func (e *exchange) recordStatus(status int, message string) {
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.failed() {
		e.status, e.message = status, message
	}
}

func (e *exchange) recordMalformed(err error) {
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.failed() {
		e.malformed = err
	}
}

// classify turns the recorded outcome into an Error. It returns nil when
// nothing was recorded.
func (e *exchange) classify(target, method string) *Error {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch {
	case e.setupErr != nil:
		return setupError(target, method, e.setupErr)
	case e.roundErr != nil:
		return networkError(target, method, e.roundErr)
	case e.status != 0:
		return statusError(target, method, e.status, e.message)
	case e.malformed != nil:
		return validationError(target, method, "%v", e.malformed)
	}
	return nil
}

// targetTransport is the http.RoundTripper for every request sent to one
// target. It adds static and auth headers and rewrites outgoing JSON-RPC
// calls through the target's shim table. A JSON-RPC error object answered
// with a non-2xx status is passed on as 200 so that the caller sees the
// error object rather than the status.
type targetTransport struct {
	base   http.RoundTripper
	target *target
}

func (rt *targetTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ex := exchangeFrom(req.Context())
	name := rt.target.cfg.Name

	out := req.Clone(req.Context())
	if err := rt.target.applyHeaders(req.Context(), out.Header); err != nil {
		ex.recordSetup(err)
		return nil, err
	}
	if req.Body != nil && req.Method == http.MethodPost {
		body, err := io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			ex.recordSetup(err)
			return nil, err
		}
		body, err = rt.shim(body)
		if err != nil {
			ex.recordSetup(err)
			return nil, err
		}
		debug.Body(debug.RPC, "rpc request", name, body)
		out.Body = io.NopCloser(bytes.NewReader(body))
		out.ContentLength = int64(len(body))
		out.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
	}

	resp, err := rt.base.RoundTrip(out)
	if err != nil {
		ex.recordRoundTrip(err)
		return nil, err
	}
	if req.Method != http.MethodPost {
		return resp, nil
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	success := resp.StatusCode >= 200 && resp.StatusCode < 300
	if success && mediaType != "application/json" {
		// Event streams are consumed incrementally by the reader.
		return resp, nil
	}

	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		ex.recordRoundTrip(err)
		return nil, err
	}
	resp.Body = io.NopCloser(bytes.NewReader(data))
	debug.Body(debug.RPC, "rpc response", name, data)

	if !success {
		if _, ok := rpcErrorBody(data); ok {
			debug.Log(debug.RPC, "json-rpc error with http status", "target", name, "status", resp.StatusCode)
			resp.StatusCode = http.StatusOK
			resp.Status = "200 OK"
			resp.Header.Set("Content-Type", "application/json")
			return resp, nil
		}
		ex.recordStatus(resp.StatusCode, extractErrorMessage(bytes.NewReader(data)))
		return resp, nil
	}
	if len(data) > 0 {
		if _, err := jsonrpc.DecodeMessage(data); err != nil {
			ex.recordMalformed(fmt.Errorf("%w: %v", errMalformed, err))
		}
	}
	return resp, nil
}

// shim applies the target's shim table to an outgoing JSON-RPC call.
// Other bodies are returned unchanged.
func (rt *targetTransport) shim(body []byte) ([]byte, error) {
	if len(rt.target.shims) == 0 || len(body) == 0 {
		return body, nil
	}
	msg, err := jsonrpc.DecodeMessage(body)
	if err != nil {
		return body, nil
	}
	call, ok := msg.(*jsonrpc.Request)
	if !ok || !call.IsCall() {
		return body, nil
	}

	params, changed, err := rt.target.shims.Apply(call.Method, call.Params)
	if err != nil {
		return nil, fmt.Errorf("applying compatibility shims: %w", err)
	}
	if len(changed) == 0 {
		return body, nil
	}
	debug.Log(debug.RPC, "compatibility shims applied", "target", rt.target.cfg.Name, "method", call.Method, "fields", changed)

	call.Params = params
	return jsonrpc.EncodeMessage(call)
}

func (rt *targetTransport) CloseIdleConnections() {
	type closeIdler interface{ CloseIdleConnections() }
	if ci, ok := rt.base.(closeIdler); ok {
		ci.CloseIdleConnections()
	}
}

package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/rhuss/workbridge/pkg/config"
	"github.com/rhuss/workbridge/pkg/debug"
	"github.com/rhuss/workbridge/pkg/observability"
)

// Version is reported as the client version during the MCP handshake.
var Version = "dev"

// Client sends JSON-RPC calls to the configured targets.
type Client struct {
	transport  config.TransportConfig
	httpClient *http.Client
	logger     *slog.Logger
	targets    map[string]*target
}

// target is the per-remote-system state held by a Client.
type target struct {
	cfg         *config.TargetConfig
	auth        AuthProvider
	shims       ShimTable
	limiter     *rate.Limiter
	longRunning map[string]bool
	httpClient  *http.Client

	// handshake is held while connecting so that concurrent first calls
	// share one session. mu guards session.
	handshake sync.Mutex
	mu        sync.Mutex
	session   *mcp.ClientSession
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client. Its Timeout should be zero;
// per-attempt deadlines are applied through the request context.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger used for retry and failure messages.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a Client for the given targets. Nil targets are ignored.
func New(tc config.TransportConfig, targets []*config.TargetConfig, opts ...Option) (*Client, error) {
	c := &Client{
		transport:  tc,
		httpClient: &http.Client{},
		logger:     slog.Default(),
		targets:    make(map[string]*target, len(targets)),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.transport.Timeout <= 0 {
		c.transport.Timeout = 30 * time.Second
	}
	if c.transport.StreamTimeout <= 0 {
		c.transport.StreamTimeout = c.transport.Timeout
	}

	for _, tcfg := range targets {
		if tcfg == nil {
			continue
		}
		if tcfg.Name == "" {
			return nil, fmt.Errorf("rpc: target with url %q has no name", tcfg.URL)
		}
		auth, err := NewAuthProvider(tcfg.Auth)
		if err != nil {
			return nil, fmt.Errorf("rpc: target %q: %w", tcfg.Name, err)
		}

		t := &target{
			cfg:         tcfg,
			auth:        auth,
			shims:       NewShimTable(tcfg.Quirks),
			longRunning: make(map[string]bool, len(tcfg.LongRunningTools)),
		}
		if tcfg.RateLimit > 0 {
			t.limiter = rate.NewLimiter(rate.Limit(tcfg.RateLimit), max(tcfg.Burst, 1))
		}
		for _, name := range tcfg.LongRunningTools {
			t.longRunning[name] = true
		}
		t.httpClient = c.targetHTTPClient(t)
		c.targets[tcfg.Name] = t
	}
	return c, nil
}

// Target returns the configuration of a target.
func (c *Client) Target(name string) (*config.TargetConfig, bool) {
	t, ok := c.targets[name]
	if !ok {
		return nil, false
	}
	return t.cfg, true
}

// targetHTTPClient wraps the shared client's transport for one target.
func (c *Client) targetHTTPClient(t *target) *http.Client {
	base := c.httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	return &http.Client{
		Transport:     &targetTransport{base: base, target: t},
		CheckRedirect: c.httpClient.CheckRedirect,
		Jar:           c.httpClient.Jar,
	}
}

// Headers returns the static and authentication headers for a target, for
// callers that talk to the target's native API directly.
func (c *Client) Headers(ctx context.Context, name string) (http.Header, error) {
	t, ok := c.targets[name]
	if !ok {
		return nil, fmt.Errorf("rpc: unknown target %q", name)
	}
	h := make(http.Header)
	if err := t.applyHeaders(ctx, h); err != nil {
		return nil, err
	}
	return h, nil
}

// Call sends a JSON-RPC request to the target and returns the raw result.
// params may be nil, a json.RawMessage, or any value encodable as JSON.
// MCP targets accept tools/call and tools/list, which run through the
// target's session.
func (c *Client) Call(ctx context.Context, targetName, method string, params any) (json.RawMessage, error) {
	t, ok := c.targets[targetName]
	if !ok {
		return nil, validationError(targetName, method, "unknown target (configured: %s)", c.targetNames())
	}

	payload, err := encodeParams(params)
	if err != nil {
		return nil, validationError(t.cfg.Name, method, "encoding params: %v", err)
	}

	if t.cfg.Protocol != "mcp" {
		var tool string
		if method == methodToolsCall {
			tool = gjson.GetBytes(payload, "name").String()
		}
		var result json.RawMessage
		err := c.do(ctx, t, method, c.attemptTimeout(t, method, tool), func(ctx context.Context, ex *exchange) *Error {
			res, rpcErr := c.post(ctx, t, method, payload, ex)
			result = res
			return rpcErr
		})
		if err != nil {
			return nil, err
		}
		return result, nil
	}

	switch method {
	case methodToolsCall:
		var p mcp.CallToolParams
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, validationError(t.cfg.Name, method, "decoding tool call params: %v", err)
		}
		res, err := c.callTool(ctx, t, &p)
		if err != nil {
			return nil, err
		}
		return marshalResult(t.cfg.Name, method, res)
	case methodToolsList:
		var res *mcp.ListToolsResult
		err := c.viaSession(ctx, t, method, c.attemptTimeout(t, method, ""), func(ctx context.Context, cs *mcp.ClientSession) error {
			var err error
			res, err = cs.ListTools(ctx, nil)
			return err
		})
		if err != nil {
			return nil, err
		}
		return marshalResult(t.cfg.Name, method, res)
	default:
		return nil, validationError(t.cfg.Name, method, "method is not available over an MCP session")
	}
}

// callTool runs tools/call through the target's session.
func (c *Client) callTool(ctx context.Context, t *target, params *mcp.CallToolParams) (*mcp.CallToolResult, error) {
	var res *mcp.CallToolResult
	err := c.viaSession(ctx, t, methodToolsCall, c.attemptTimeout(t, methodToolsCall, params.Name), func(ctx context.Context, cs *mcp.ClientSession) error {
		var err error
		res, err = cs.CallTool(ctx, params)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// viaSession runs fn against the target's MCP session with retries.
func (c *Client) viaSession(ctx context.Context, t *target, method string, timeout time.Duration, fn func(context.Context, *mcp.ClientSession) error) error {
	return c.do(ctx, t, method, timeout, func(ctx context.Context, ex *exchange) *Error {
		cs, reused, err := c.session(ctx, t)
		if err == nil {
			err = fn(ctx, cs)
		}
		if err != nil {
			return sessionError(ctx, t, method, ex, cs, reused, err)
		}
		return nil
	})
}

// do runs op with a per-attempt deadline and bounded retries, and records
// the call's metrics.
func (c *Client) do(ctx context.Context, t *target, method string, timeout time.Duration, op func(context.Context, *exchange) *Error) error {
	name := t.cfg.Name
	start := time.Now()

	attempts := 0
	attempt := func() error {
		attempts++
		if t.limiter != nil {
			if err := t.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(networkError(name, method, err))
			}
		}

		ex := &exchange{}
		attemptCtx, cancel := context.WithTimeout(withExchange(ctx, ex), timeout)
		defer cancel()

		if err := op(attemptCtx, ex); err != nil {
			if err.Retryable() && ctx.Err() == nil {
				return err
			}
			return backoff.Permanent(err)
		}
		return nil
	}

	notify := func(err error, wait time.Duration) {
		observability.RPCRetriesTotal.WithLabelValues(name).Inc()
		c.logger.Warn("retrying remote call after transient failure",
			"target", name,
			"method", method,
			"attempt", attempts,
			"backoff", wait,
			"error", err,
		)
	}

	err := backoff.RetryNotify(attempt, c.retryPolicy(ctx), notify)
	observability.RPCLatency.WithLabelValues(name).Observe(time.Since(start).Seconds())

	if err != nil {
		var rpcErr *Error
		if !errors.As(err, &rpcErr) {
			rpcErr = networkError(name, method, err)
		}
		observability.RPCRequestsTotal.WithLabelValues(name, method, string(rpcErr.Kind)+"_error").Inc()
		return rpcErr
	}

	observability.RPCRequestsTotal.WithLabelValues(name, method, "ok").Inc()
	return nil
}

// retryPolicy returns a bounded exponential backoff tied to ctx.
func (c *Client) retryPolicy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if c.transport.InitialBackoff > 0 {
		b.InitialInterval = c.transport.InitialBackoff
	}
	if c.transport.MaxBackoff > 0 {
		b.MaxInterval = c.transport.MaxBackoff
	}
	b.MaxElapsedTime = 0

	retries := c.transport.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

// attemptTimeout picks the per-attempt deadline. Tools listed as
// long-running get the stream timeout.
func (c *Client) attemptTimeout(t *target, method, tool string) time.Duration {
	timeout := c.transport.Timeout
	if t.cfg.Timeout > 0 {
		timeout = t.cfg.Timeout
	}
	if method == methodToolsCall && t.longRunning[tool] {
		timeout = c.transport.StreamTimeout
	}
	return timeout
}

// post performs one plain JSON-RPC exchange over HTTP POST.
func (c *Client) post(ctx context.Context, t *target, method string, params json.RawMessage, ex *exchange) (json.RawMessage, *Error) {
	name := t.cfg.Name

	call, err := newCall(method, params)
	if err != nil {
		return nil, validationError(name, method, "building request: %v", err)
	}
	body, err := jsonrpc.EncodeMessage(call)
	if err != nil {
		return nil, validationError(name, method, "encoding request: %v", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, setupError(name, method, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json, text/event-stream")

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		if rpcErr := ex.classify(name, method); rpcErr != nil {
			return nil, rpcErr
		}
		return nil, networkError(name, method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if msg, ok := rpcErrorBody(data); ok {
			return nil, protocolError(name, method, wireError(msg))
		}
		return nil, statusError(name, method, resp.StatusCode, extractErrorMessage(bytes.NewReader(data)))
	}

	msg, err := readResponse(ctx, resp, call.ID)
	if err != nil {
		if errors.Is(err, errMalformed) {
			return nil, validationError(name, method, "%v", err)
		}
		return nil, networkError(name, method, err)
	}
	debug.Log(debug.RPC, "rpc call completed", "target", name, "method", method, "id", idString(call.ID))

	if w := wireError(msg); w != nil {
		return nil, protocolError(name, method, w)
	}
	if msg.ID != call.ID {
		return nil, validationError(name, method, "response id %v does not match request id %v", msg.ID.Raw(), call.ID.Raw())
	}
	if len(msg.Result) == 0 {
		return nil, validationError(name, method, "response has neither result nor error")
	}
	return msg.Result, nil
}

var errMalformed = errors.New("malformed response")

// readResponse decodes either a single JSON body or an event stream.
func readResponse(ctx context.Context, resp *http.Response, id jsonrpc.ID) (*jsonrpc.Response, error) {
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))

	if mediaType == "text/event-stream" {
		msg, err := readEventStream(ctx, resp.Body, id)
		if err != nil {
			return nil, fmt.Errorf("reading event stream: %w", err)
		}
		return msg, nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	msg, err := decodeResponse(data)
	if errors.Is(err, errNotResponse) {
		return nil, fmt.Errorf("%w: %v", errMalformed, err)
	}
	return msg, err
}

func marshalResult(target, method string, v any) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, validationError(target, method, "encoding result: %v", err)
	}
	return data, nil
}

func (t *target) applyHeaders(ctx context.Context, h http.Header) error {
	for k, v := range t.cfg.Headers {
		h.Set(k, v)
	}
	if t.auth != nil {
		authHeaders, err := t.auth.GetHeaders(ctx)
		if err != nil {
			return fmt.Errorf("getting auth headers: %w", err)
		}
		for k, v := range authHeaders {
			h.Set(k, v)
		}
	}
	return nil
}

// Close terminates open MCP sessions and releases idle connections.
// Termination is best effort.
func (c *Client) Close(_ context.Context) error {
	for _, t := range c.targets {
		if err := t.closeSession(); err != nil {
			debug.Log(debug.RPC, "session termination failed", "target", t.cfg.Name, "error", err)
		}
		t.httpClient.CloseIdleConnections()
	}
	c.httpClient.CloseIdleConnections()
	return nil
}

func encodeParams(params any) (json.RawMessage, error) {
	switch p := params.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return p, nil
	case []byte:
		return p, nil
	default:
		return json.Marshal(p)
	}
}

// targetNames returns the configured target names, for error messages.
func (c *Client) targetNames() string {
	names := make([]string, 0, len(c.targets))
	for name := range c.targets {
		names = append(names, name)
	}
	return strings.Join(names, ", ")
}

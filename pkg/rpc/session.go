package rpc

import (
	"context"
	"errors"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rhuss/workbridge/pkg/debug"
)

const clientName = "workbridge"

// session returns the target's MCP session, connecting on first use. The
// handshake lock makes concurrent first calls share one session. reused
// reports whether the session existed before this call.
func (c *Client) session(ctx context.Context, t *target) (cs *mcp.ClientSession, reused bool, err error) {
	t.handshake.Lock()
	defer t.handshake.Unlock()

	t.mu.Lock()
	cs = t.session
	t.mu.Unlock()
	if cs != nil {
		return cs, true, nil
	}

	client := mcp.NewClient(
		&mcp.Implementation{Name: clientName, Version: Version},
		&mcp.ClientOptions{Capabilities: &mcp.ClientCapabilities{}},
	)
	transport := &mcp.StreamableClientTransport{
		Endpoint:             t.cfg.URL,
		HTTPClient:           t.httpClient,
		DisableStandaloneSSE: true,
	}

	cs, err = client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, false, err
	}

	t.mu.Lock()
	t.session = cs
	t.mu.Unlock()

	var server, version string
	if res := cs.InitializeResult(); res != nil {
		version = res.ProtocolVersion
		if res.ServerInfo != nil {
			server = res.ServerInfo.Name
		}
	}
	debug.Log(debug.RPC, "session established",
		"target", t.cfg.Name,
		"server", server,
		"protocol_version", version,
		"session", cs.ID(),
	)
	return cs, false, nil
}

// dropSession forgets cs so that the next call starts a new session. The
// old session is closed in the background.
func (t *target) dropSession(cs *mcp.ClientSession) {
	if cs == nil {
		return
	}
	t.mu.Lock()
	if t.session == cs {
		t.session = nil
	}
	t.mu.Unlock()
	go func() { _ = cs.Close() }()
}

// closeSession terminates the current session, if any.
func (t *target) closeSession() error {
	t.mu.Lock()
	cs := t.session
	t.session = nil
	t.mu.Unlock()
	if cs == nil {
		return nil
	}
	return cs.Close()
}

// sessionError classifies a failed session call. JSON-RPC error objects
// are protocol errors; everything else is read from the exchange record.
// Any non-protocol failure discards the session, since the SDK marks its
// connection broken after most of them.
func sessionError(ctx context.Context, t *target, method string, ex *exchange, cs *mcp.ClientSession, reused bool, err error) *Error {
	name := t.cfg.Name

	var wire *jsonrpc.Error
	if errors.As(err, &wire) {
		return protocolError(name, method, wire)
	}
	t.dropSession(cs)

	if rpcErr := ex.classify(name, method); rpcErr != nil {
		if rpcErr.Status == http.StatusNotFound && reused {
			// The server forgot the session. The next attempt starts a new one.
			rpcErr.retryable = true
		}
		return rpcErr
	}
	if ctx.Err() != nil {
		return networkError(name, method, ctx.Err())
	}
	return networkError(name, method, err)
}

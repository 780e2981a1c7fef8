// Package rpc is the single transport through which workbridge talks to
// every remote system.
//
// Targets speaking the Model Context Protocol ("mcp") are reached through
// an MCP SDK client session over the streamable HTTP transport, opened
// lazily on first use and replaced when the server drops it. Targets
// speaking plain JSON-RPC ("jsonrpc") get one HTTP POST per call, whose
// answer may be a single JSON body or a text/event-stream carrying the
// response among other messages; either way the result is matched by
// correlation id.
//
// Every request to a target passes through one http.RoundTripper that adds
// static and auth headers and applies the target's compatibility shims to
// the serialized call. Transient failures (transport errors, timeouts,
// HTTP 429 and 5xx) are retried with exponential backoff. JSON-RPC error
// objects, whatever the HTTP status they arrive with, malformed payloads
// and credentials that cannot be obtained are returned immediately as
// typed [Error] values.
package rpc

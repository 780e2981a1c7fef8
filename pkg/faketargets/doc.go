// Package faketargets provides in-memory stand-ins for the three remote
// systems a run talks to: a work tracker, a wiki and a code host. Each one
// serves its tools over MCP streamable HTTP at /mcp and, where the real
// system has one, the native REST attachment endpoint.
//
// They keep everything they are sent so tests can assert on the final
// state of the remote side.
package faketargets

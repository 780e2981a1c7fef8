// Package artifact maps artifact operations onto remote tool calls.
//
// Each adapter is a thin layer over [rpc.Client.CallTool]: it builds the
// tool arguments, invokes the tool configured for the operation and
// extracts the identifiers of the created artifact from the result. A
// result that lacks an expected field yields a [ValidationError] rather
// than a partially filled reference.
package artifact

package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ToolResult is the decoded outcome of a tools/call.
type ToolResult struct {
	// Text is the concatenated text content of the result.
	Text string
	// Structured is the structuredContent payload, if the tool returned one.
	Structured json.RawMessage
	// IsError is always false for results returned by CallTool.
	IsError bool
}

// JSON returns the best machine-readable form of the result: the
// structured content when present, else the text when it parses as JSON.
// It returns nil when the result holds neither.
func (r *ToolResult) JSON() []byte {
	if len(r.Structured) > 0 && string(r.Structured) != "null" {
		return r.Structured
	}
	text := strings.TrimSpace(r.Text)
	if json.Valid([]byte(text)) {
		return []byte(text)
	}
	return nil
}

// CallTool invokes an MCP tool on the target. A result flagged isError is
// returned as a protocol Error carrying the tool's text.
func (c *Client) CallTool(ctx context.Context, targetName, tool string, args map[string]any) (*ToolResult, error) {
	if args == nil {
		args = map[string]any{}
	}
	params := &mcp.CallToolParams{Name: tool, Arguments: args}

	var result *mcp.CallToolResult
	if t, ok := c.targets[targetName]; ok && t.cfg.Protocol == "mcp" {
		res, err := c.callTool(ctx, t, params)
		if err != nil {
			return nil, err
		}
		result = res
	} else {
		raw, err := c.Call(ctx, targetName, methodToolsCall, params)
		if err != nil {
			return nil, err
		}
		result = &mcp.CallToolResult{}
		if err := json.Unmarshal(raw, result); err != nil {
			return nil, validationError(targetName, methodToolsCall, "decoding %s result: %v", tool, err)
		}
	}

	out := convertResult(result)
	if out.IsError {
		msg := out.Text
		if msg == "" {
			msg = "tool reported an error"
		}
		return nil, &Error{
			Kind:    KindProtocol,
			Target:  targetName,
			Method:  fmt.Sprintf("%s %s", methodToolsCall, tool),
			Message: msg,
		}
	}
	return out, nil
}

func convertResult(result *mcp.CallToolResult) *ToolResult {
	var text strings.Builder
	for _, content := range result.Content {
		if tc, ok := content.(*mcp.TextContent); ok {
			if text.Len() > 0 {
				text.WriteString("\n")
			}
			text.WriteString(tc.Text)
		}
	}

	out := &ToolResult{
		Text:    text.String(),
		IsError: result.IsError,
	}
	if result.StructuredContent != nil {
		if data, err := json.Marshal(result.StructuredContent); err == nil {
			out.Structured = data
		}
	}
	return out
}

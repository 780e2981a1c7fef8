package faketargets

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/tidwall/gjson"
)

// Options configures a fake target.
type Options struct {
	// Token, when set, must be presented as a bearer token on every request.
	Token string

	// DenyREST makes the native attachment endpoint answer 401.
	DenyREST bool

	// Strict rejects tool arguments the real server does not accept.
	Strict bool

	// WebURL is the base of the browse links the fake returns. It defaults
	// to the URL the fake is reached at.
	WebURL string

	Logger *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// Attachment is an uploaded file.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
	// Via is "rest" or "tool".
	Via string
}

// Call records one tool invocation.
type Call struct {
	Tool      string
	Arguments json.RawMessage
}

// recorder keeps the tool calls seen by a fake.
type recorder struct {
	mu    sync.Mutex
	calls []Call
}

func (r *recorder) record(tool string, args json.RawMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Tool: tool, Arguments: append(json.RawMessage(nil), args...)})
}

// Calls returns a copy of the recorded tool calls.
func (r *recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// CallsTo returns the recorded calls to one tool.
func (r *recorder) CallsTo(tool string) []Call {
	var out []Call
	for _, c := range r.Calls() {
		if c.Tool == tool {
			out = append(out, c)
		}
	}
	return out
}

// tool is a handler that receives the decoded arguments.
type tool func(ctx context.Context, args gjson.Result) (string, error)

// newMCPHandler builds a streamable HTTP handler serving tools.
func newMCPHandler(name string, rec *recorder, tools map[string]tool) http.Handler {
	server := mcp.NewServer(&mcp.Implementation{Name: name, Version: "v1.0.0"}, nil)
	for toolName, fn := range tools {
		server.AddTool(&mcp.Tool{
			Name:        toolName,
			Description: name + " " + toolName,
			InputSchema: map[string]any{"type": "object"},
		}, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			rec.record(toolName, req.Params.Arguments)
			text, err := fn(ctx, gjson.ParseBytes(req.Params.Arguments))
			if err != nil {
				return &mcp.CallToolResult{
					Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
					IsError: true,
				}, nil
			}
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: text}},
			}, nil
		})
	}
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return server }, nil)
}

// requireToken rejects requests without the configured bearer token.
func requireToken(token string, next http.Handler) http.Handler {
	if token == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// readMultipartFile extracts the "file" part of an attachment upload.
func readMultipartFile(r *http.Request) (*Attachment, error) {
	if r.Header.Get("X-Atlassian-Token") != "no-check" {
		return nil, fmt.Errorf("missing X-Atlassian-Token header")
	}
	mt, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mt, "multipart/") {
		return nil, fmt.Errorf("expected multipart body")
	}
	mr := multipart.NewReader(r.Body, params["boundary"])
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return nil, fmt.Errorf("no file part")
		}
		if err != nil {
			return nil, err
		}
		if part.FormName() != "file" {
			continue
		}
		data, err := io.ReadAll(part)
		if err != nil {
			return nil, err
		}
		return &Attachment{
			Filename:    part.FileName(),
			ContentType: part.Header.Get("Content-Type"),
			Data:        data,
			Via:         "rest",
		}, nil
	}
}

// baseURL reconstructs the URL the request was addressed to.
func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

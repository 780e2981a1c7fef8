package artifact

import (
	"context"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/rhuss/workbridge/pkg/config"
	"github.com/rhuss/workbridge/pkg/rpc"
)

// Caller invokes remote tools. *rpc.Client implements it.
type Caller interface {
	CallTool(ctx context.Context, target, tool string, args map[string]any) (*rpc.ToolResult, error)
	Target(name string) (*config.TargetConfig, bool)
}

// base holds what every adapter needs to address its target.
type base struct {
	caller Caller
	target string
}

func (b base) config() *config.TargetConfig {
	cfg, ok := b.caller.Target(b.target)
	if !ok {
		return &config.TargetConfig{Name: b.target}
	}
	return cfg
}

func (b base) tool(operation, def string) string {
	return b.config().ToolName(operation, def)
}

func (b base) webURL() string {
	return strings.TrimRight(b.config().WebURL, "/")
}

// call invokes the tool for an operation and returns its JSON document.
func (b base) call(ctx context.Context, operation, tool string, args map[string]any) (gjson.Result, error) {
	res, err := b.caller.CallTool(ctx, b.target, tool, args)
	if err != nil {
		return gjson.Result{}, err
	}
	doc := res.JSON()
	if doc == nil {
		return gjson.Result{}, &ValidationError{Target: b.target, Operation: operation, Field: "JSON result"}
	}
	return gjson.ParseBytes(doc), nil
}

// first returns the first non-empty string among the given paths.
func first(doc gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := doc.Get(p); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

// absolute resolves a possibly relative link against the target web URL.
func absolute(link, webURL string) string {
	if link == "" || strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://") {
		return link
	}
	if webURL == "" {
		return link
	}
	return webURL + "/" + strings.TrimLeft(link, "/")
}

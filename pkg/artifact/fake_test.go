package artifact

import (
	"context"
	"sync"

	"github.com/rhuss/workbridge/pkg/config"
	"github.com/rhuss/workbridge/pkg/rpc"
)

type toolCall struct {
	Target string
	Tool   string
	Args   map[string]any
}

// fakeCaller answers tool calls from a table of canned results.
type fakeCaller struct {
	targets map[string]*config.TargetConfig
	results map[string]*rpc.ToolResult
	errs    map[string]error

	mu    sync.Mutex
	calls []toolCall
}

func newFakeCaller(targets ...*config.TargetConfig) *fakeCaller {
	f := &fakeCaller{
		targets: make(map[string]*config.TargetConfig),
		results: make(map[string]*rpc.ToolResult),
		errs:    make(map[string]error),
	}
	for _, t := range targets {
		f.targets[t.Name] = t
	}
	return f
}

func (f *fakeCaller) respond(tool, text string) {
	f.results[tool] = &rpc.ToolResult{Text: text}
}

func (f *fakeCaller) CallTool(_ context.Context, target, tool string, args map[string]any) (*rpc.ToolResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, toolCall{Target: target, Tool: tool, Args: args})
	f.mu.Unlock()

	if err := f.errs[tool]; err != nil {
		return nil, err
	}
	if res, ok := f.results[tool]; ok {
		return res, nil
	}
	return &rpc.ToolResult{Text: "{}"}, nil
}

func (f *fakeCaller) Target(name string) (*config.TargetConfig, bool) {
	t, ok := f.targets[name]
	return t, ok
}

func (f *fakeCaller) lastCall() toolCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

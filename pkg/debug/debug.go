// Package debug provides category-based debug logging for workbridge.
//
// Categories select WHAT is logged (WORKBRIDGE_DEBUG or log.debug in the
// config file); the level selects HOW MUCH (WORKBRIDGE_LOG_LEVEL or
// log.level). At TRACE, full JSON-RPC request and response bodies are logged.
//
//	debug.Log(debug.RPC, "sending request", "target", name, "method", method)
//	if debug.Enabled(debug.RPC) { /* expensive formatting */ }
//
// Categories: rpc, adapters, attach, orchestrator, config, all.
package debug

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// Known categories.
const (
	RPC          = "rpc"
	Adapters     = "adapters"
	Attach       = "attach"
	Orchestrator = "orchestrator"
	Config       = "config"
	All          = "all"
)

// LevelTrace sits below slog.LevelDebug.
const LevelTrace = slog.LevelDebug - 4

var categories atomic.Pointer[map[string]bool]

func init() {
	m := parseCategories(os.Getenv("WORKBRIDGE_DEBUG"))
	categories.Store(&m)
}

// Options configures logging at startup.
type Options struct {
	Categories string
	Level      string
	// Format is "text" or "json". Defaults to text.
	Format string
	Output io.Writer
}

// Init configures the debug categories and installs the default slog
// logger. Environment variables take precedence over opts.
func Init(opts Options) {
	cats := os.Getenv("WORKBRIDGE_DEBUG")
	if cats == "" {
		cats = opts.Categories
	}
	m := parseCategories(cats)
	categories.Store(&m)

	level := os.Getenv("WORKBRIDGE_LOG_LEVEL")
	if level == "" {
		level = opts.Level
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	handlerOpts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(opts.Format, "json") {
		handler = slog.NewJSONHandler(out, handlerOpts)
	} else {
		handler = slog.NewTextHandler(out, handlerOpts)
	}
	slog.SetDefault(slog.New(handler))
}

// Enabled reports whether debug output is active for the given category.
func Enabled(category string) bool {
	m := *categories.Load()
	return m[All] || m[category]
}

// Log emits a debug message for the given category.
func Log(category string, msg string, args ...any) {
	if !Enabled(category) {
		return
	}
	slog.Debug(msg, append([]any{"debug", category}, args...)...)
}

// Trace emits a trace-level message for the given category.
func Trace(category string, msg string, args ...any) {
	if !TraceEnabled(category) {
		return
	}
	slog.Log(context.Background(), LevelTrace, msg, append([]any{"debug", category}, args...)...)
}

// TraceEnabled reports whether TRACE level is active for the given category.
func TraceEnabled(category string) bool {
	if !Enabled(category) {
		return false
	}
	return slog.Default().Enabled(context.Background(), LevelTrace)
}

// Body logs a request or response body at TRACE, truncated at debug level.
func Body(category, direction, target string, body []byte) {
	if !Enabled(category) {
		return
	}
	if TraceEnabled(category) {
		Trace(category, direction, "target", target, "body", string(body))
		return
	}
	Log(category, direction, "target", target, "body", Truncate(string(body), 256))
}

// ParseLevel converts a level string to a slog.Level.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return LevelTrace
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Truncate returns s truncated to maxLen bytes, with "..." appended if truncated.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func parseCategories(s string) map[string]bool {
	m := make(map[string]bool)
	for _, cat := range strings.Split(s, ",") {
		cat = strings.TrimSpace(strings.ToLower(cat))
		if cat != "" {
			m[cat] = true
		}
	}
	return m
}

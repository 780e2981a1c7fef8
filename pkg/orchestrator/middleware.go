package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rhuss/workbridge/pkg/api"
)

// Runner runs one work item to completion.
type Runner interface {
	Run(ctx context.Context, req *api.WorkItemRequest) *api.OrchestrationResult
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, req *api.WorkItemRequest) *api.OrchestrationResult

// Run calls f(ctx, req).
func (f RunnerFunc) Run(ctx context.Context, req *api.WorkItemRequest) *api.OrchestrationResult {
	return f(ctx, req)
}

// Middleware wraps a Runner to add cross-cutting behavior.
type Middleware func(Runner) Runner

// Chain composes middleware. Chain(a, b, c) produces a(b(c(runner))).
func Chain(middlewares ...Middleware) Middleware {
	return func(next Runner) Runner {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

type runIDKeyType struct{}

var runIDKey = runIDKeyType{}

// RunIDFromContext returns the run id stored in ctx, or "".
func RunIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey).(string); ok {
		return id
	}
	return ""
}

// ContextWithRunID returns a context carrying the run id.
func ContextWithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey, id)
}

// RunID assigns a run id unless the context already carries one.
func RunID() Middleware {
	return func(next Runner) Runner {
		return RunnerFunc(func(ctx context.Context, req *api.WorkItemRequest) *api.OrchestrationResult {
			if RunIDFromContext(ctx) == "" {
				ctx = ContextWithRunID(ctx, api.NewRunID())
			}
			return next.Run(ctx, req)
		})
	}
}

// Logging logs one line per run with the status of every artifact.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Runner) Runner {
		return RunnerFunc(func(ctx context.Context, req *api.WorkItemRequest) *api.OrchestrationResult {
			start := time.Now()
			result := next.Run(ctx, req)

			attrs := []slog.Attr{
				slog.String("run_id", RunIDFromContext(ctx)),
				slog.String("subject", req.Subject),
				slog.Duration("duration", time.Since(start)),
				slog.String("jira", string(result.Jira.Status)),
				slog.String("wiki", string(result.Wiki.Status)),
				slog.String("qa", string(result.QA.Status)),
				slog.String("git", string(result.Git.Status)),
			}
			level := slog.LevelInfo
			for _, r := range []api.StepResult{result.Jira, result.Wiki, result.QA, result.Git} {
				if r.Status == api.StepFailed {
					level = slog.LevelWarn
					break
				}
			}
			logger.LogAttrs(ctx, level, "orchestration completed", attrs...)
			return result
		})
	}
}

// Recovery turns a panic in the runner into a result in which every step
// failed with an internal error.
func Recovery() Middleware {
	return func(next Runner) Runner {
		return RunnerFunc(func(ctx context.Context, req *api.WorkItemRequest) (result *api.OrchestrationResult) {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("orchestration panicked", "run_id", RunIDFromContext(ctx), "panic", r)
					result = api.FailedResult(api.NewInternalError(fmt.Sprintf("orchestration failed: %v", r)))
				}
			}()
			return next.Run(ctx, req)
		})
	}
}

// NewRunner wraps the orchestrator with run id assignment, logging and
// panic recovery.
func NewRunner(o *Orchestrator, logger *slog.Logger) Runner {
	return Chain(RunID(), Logging(logger), Recovery())(o)
}

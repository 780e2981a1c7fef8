package orchestrator

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/rhuss/workbridge/pkg/api"
)

func TestChainAppliesMiddlewareInOrder(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next Runner) Runner {
			return RunnerFunc(func(ctx context.Context, req *api.WorkItemRequest) *api.OrchestrationResult {
				order = append(order, name+":before")
				r := next.Run(ctx, req)
				order = append(order, name+":after")
				return r
			})
		}
	}
	runner := RunnerFunc(func(context.Context, *api.WorkItemRequest) *api.OrchestrationResult {
		order = append(order, "runner")
		return api.SkippedResult("test")
	})

	Chain(mw("first"), mw("second"))(runner).Run(context.Background(), &api.WorkItemRequest{})

	want := "first:before,second:before,runner,second:after,first:after"
	if got := strings.Join(order, ","); got != want {
		t.Errorf("order = %s, want %s", got, want)
	}
}

func TestRecoveryReturnsFailedResult(t *testing.T) {
	runner := RunnerFunc(func(context.Context, *api.WorkItemRequest) *api.OrchestrationResult {
		panic("graph defect")
	})

	result := Recovery()(runner).Run(context.Background(), &api.WorkItemRequest{})

	for _, r := range []api.StepResult{result.Jira, result.Wiki, result.QA, result.Git} {
		if r.Status != api.StepFailed || r.Error == nil || r.Error.Type != api.ErrorTypeInternal {
			t.Errorf("result = %+v", r)
		}
		if !strings.Contains(r.Error.Message, "graph defect") {
			t.Errorf("message = %q", r.Error.Message)
		}
	}
}

func TestRunIDAssignedOnce(t *testing.T) {
	var seen string
	runner := RunnerFunc(func(ctx context.Context, _ *api.WorkItemRequest) *api.OrchestrationResult {
		seen = RunIDFromContext(ctx)
		return api.SkippedResult("test")
	})

	RunID()(runner).Run(context.Background(), &api.WorkItemRequest{})
	if !api.ValidateRunID(seen) {
		t.Errorf("generated run id %q is not valid", seen)
	}

	ctx := ContextWithRunID(context.Background(), "run_keepme")
	RunID()(runner).Run(ctx, &api.WorkItemRequest{})
	if seen != "run_keepme" {
		t.Errorf("run id = %q, want the incoming one", seen)
	}
}

func TestLoggingLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	ok := RunnerFunc(func(context.Context, *api.WorkItemRequest) *api.OrchestrationResult {
		return api.SkippedResult("test")
	})
	Logging(logger)(ok).Run(ContextWithRunID(context.Background(), "run_a"), &api.WorkItemRequest{Subject: "s"})
	if !strings.Contains(buf.String(), "level=INFO") || !strings.Contains(buf.String(), "run_id=run_a") {
		t.Errorf("log = %s", buf.String())
	}

	buf.Reset()
	bad := RunnerFunc(func(context.Context, *api.WorkItemRequest) *api.OrchestrationResult {
		return api.FailedResult(api.NewInternalError("x"))
	})
	Logging(logger)(bad).Run(context.Background(), &api.WorkItemRequest{})
	if !strings.Contains(buf.String(), "level=WARN") {
		t.Errorf("log = %s", buf.String())
	}
}

func TestNewRunner(t *testing.T) {
	w := newWorld()
	runner := NewRunner(newTestOrchestrator(w.services()), quietLogger())

	result := runner.Run(context.Background(), testRequest())
	if result.Jira.Status != api.StepSuccess {
		t.Errorf("jira = %+v", result.Jira)
	}
}

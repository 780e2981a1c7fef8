package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/rhuss/workbridge/pkg/api"
	"github.com/rhuss/workbridge/pkg/artifact"
	wbdebug "github.com/rhuss/workbridge/pkg/debug"
	"github.com/rhuss/workbridge/pkg/observability"
)

const instrumentationName = "github.com/rhuss/workbridge/pkg/orchestrator"

// ReasonDisabled is the skip reason when artifact creation is turned off.
const ReasonDisabled = "artifact creation disabled"

// TicketService creates and updates tickets.
type TicketService interface {
	CreateTicket(ctx context.Context, f artifact.TicketFields) (*api.ArtifactReference, error)
	// AddRemoteLinks attempts every link; errs[i] is the outcome of links[i].
	AddRemoteLinks(ctx context.Context, ticketKey string, links []artifact.Link) (errs []error)
	UpdateDescription(ctx context.Context, ticketKey, description string) error
}

// PageService creates and updates wiki pages.
type PageService interface {
	CreatePage(ctx context.Context, spaceKey, parentID, title, body string) (*api.ArtifactReference, error)
	UpdatePageBody(ctx context.Context, pageID, title, body string) error
}

// BranchService creates branches.
type BranchService interface {
	CreateBranch(ctx context.Context, repo artifact.RepoTarget, name string) (*api.ArtifactReference, error)
	Repo() artifact.RepoTarget
}

// Attacher adds images to artifacts. It never fails the owning step.
type Attacher interface {
	AttachImage(ctx context.Context, ref *api.ArtifactReference, img *api.ImageRef) api.AttachmentOutcome
}

// Services are the collaborators of the orchestrator. A nil service means
// its target is not configured and the steps that need it are skipped.
type Services struct {
	Tickets   TicketService
	ImplPlans PageService
	QAPlans   PageService
	Branches  BranchService
	Attacher  Attacher
}

// Orchestrator runs the step graph.
type Orchestrator struct {
	services Services
	logger   *slog.Logger
	tracer   trace.Tracer
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithTracerProvider sets the tracer provider used for run and step spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *Orchestrator) { o.tracer = tp.Tracer(instrumentationName) }
}

// New creates an Orchestrator.
func New(services Services, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		services: services,
		logger:   slog.Default(),
		tracer:   otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes all steps for req and returns the aggregate result. It
// always returns a fully populated result. Remote failures are recorded
// per step; only a defect in the step graph itself panics.
func (o *Orchestrator) Run(ctx context.Context, req *api.WorkItemRequest) *api.OrchestrationResult {
	if !req.CreateArtifacts {
		wbdebug.Log(wbdebug.Orchestrator, "artifact creation disabled, nothing to do", "subject", req.Subject)
		return api.SkippedResult(ReasonDisabled)
	}

	start := time.Now()
	ctx, span := o.tracer.Start(ctx, "workbridge.orchestrate")
	defer span.End()
	span.SetAttributes(
		attribute.String("subject", req.Subject),
		attribute.String("project_key", req.ProjectKey),
		attribute.String("space_key", req.SpaceKey),
		attribute.String("run_id", RunIDFromContext(ctx)),
	)

	result := assemble(o.execute(ctx, req))
	observability.OrchestrationDuration.Observe(time.Since(start).Seconds())
	span.SetAttributes(
		attribute.String("jira.status", string(result.Jira.Status)),
		attribute.String("wiki.status", string(result.Wiki.Status)),
		attribute.String("qa.status", string(result.QA.Status)),
		attribute.String("git.status", string(result.Git.Status)),
	)
	return result
}

// execute runs the step graph and returns the recorded results.
func (o *Orchestrator) execute(ctx context.Context, req *api.WorkItemRequest) *StepContext {
	sc := NewStepContext()

	// D has no data dependency on the chain.
	var g errgroup.Group
	g.Go(func() error {
		o.runStep(ctx, sc, api.StepBranch, req, o.createBranch)
		return nil
	})

	o.runStep(ctx, sc, api.StepTicket, req, o.createTicket)
	o.runStep(ctx, sc, api.StepImplPlan, req, o.createImplPlan)
	o.runStep(ctx, sc, api.StepQAPlan, req, o.createQAPlan)
	if _, ok := sc.Reference(api.StepTicket); ok {
		o.runStep(ctx, sc, api.StepLinks, req, o.linkTicket)
	} else {
		wbdebug.Log(wbdebug.Orchestrator, "no ticket to link, step not run", "step", api.StepLinks.String())
	}

	_ = g.Wait()
	return sc
}

// stepFunc performs one step and returns its result. The Step field is
// filled in by runStep.
type stepFunc func(ctx context.Context, sc *StepContext, req *api.WorkItemRequest) api.StepResult

// runStep runs fn under its own span, recovers panics into an internal
// error and records the result.
func (o *Orchestrator) runStep(ctx context.Context, sc *StepContext, id api.StepID, req *api.WorkItemRequest, fn stepFunc) {
	ctx, span := o.tracer.Start(ctx, "workbridge.step."+id.String())
	defer span.End()
	span.SetAttributes(attribute.String("step", string(id)))

	start := time.Now()
	result := o.protect(ctx, id, req, sc, fn)
	result.Step = id

	span.SetAttributes(attribute.String("status", string(result.Status)))
	if result.Reference != nil {
		span.SetAttributes(attribute.String("artifact.url", result.Reference.URL))
	}
	if result.Error != nil {
		span.RecordError(result.Error)
		span.SetStatus(codes.Error, result.Error.Message)
	}
	observability.StepsTotal.WithLabelValues(id.String(), string(result.Status)).Inc()

	attrs := []any{
		"run_id", RunIDFromContext(ctx),
		"step", id.String(),
		"status", result.Status,
		"duration", time.Since(start),
	}
	switch result.Status {
	case api.StepFailed:
		o.logger.Warn("step failed", append(attrs, "error", result.Error)...)
	case api.StepSkipped:
		o.logger.Info("step skipped", append(attrs, "reason", result.Reason)...)
	default:
		o.logger.Info("step completed", append(attrs, "url", result.URL)...)
	}

	if err := sc.Set(result); err != nil {
		panic(err)
	}
}

func (o *Orchestrator) protect(ctx context.Context, id api.StepID, req *api.WorkItemRequest, sc *StepContext, fn stepFunc) (result api.StepResult) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("step panicked",
				"step", id.String(),
				"panic", r,
				"stack", string(debug.Stack()),
			)
			result = failed(api.NewInternalError(fmt.Sprintf("step %s panicked: %v", id.String(), r)))
		}
	}()
	return fn(ctx, sc, req)
}

// assemble builds the terminal result. Updates made by step C belong to
// the ticket.
func assemble(sc *StepContext) *api.OrchestrationResult {
	get := func(id api.StepID) api.StepResult {
		if r, ok := sc.Get(id); ok {
			return r
		}
		return api.StepResult{Step: id, Status: api.StepSkipped, Reason: "step did not run"}
	}

	result := &api.OrchestrationResult{
		Jira: get(api.StepTicket),
		Wiki: get(api.StepImplPlan),
		QA:   get(api.StepQAPlan),
		Git:  get(api.StepBranch),
	}
	if links, ok := sc.Get(api.StepLinks); ok {
		result.Jira.Updates = append(result.Jira.Updates, links.Updates...)
	}
	return result
}

func success(ref *api.ArtifactReference) api.StepResult {
	return api.StepResult{Status: api.StepSuccess, Reference: ref, URL: ref.URL}
}

func failed(info *api.ErrorInfo) api.StepResult {
	return api.StepResult{Status: api.StepFailed, Error: info}
}

func skipped(reason string) api.StepResult {
	return api.StepResult{Status: api.StepSkipped, Reason: reason}
}

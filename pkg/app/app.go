// Package app assembles a runnable orchestrator from configuration.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel/trace"

	"github.com/rhuss/workbridge/pkg/api"
	"github.com/rhuss/workbridge/pkg/artifact"
	"github.com/rhuss/workbridge/pkg/attach"
	"github.com/rhuss/workbridge/pkg/config"
	"github.com/rhuss/workbridge/pkg/orchestrator"
	"github.com/rhuss/workbridge/pkg/rpc"
	"github.com/rhuss/workbridge/pkg/server"
)

// App holds the long-lived collaborators built from one Config.
type App struct {
	cfg    *config.Config
	client *rpc.Client
	runner orchestrator.Runner
	logger *slog.Logger
}

// Option configures an App.
type Option func(*options)

type options struct {
	logger     *slog.Logger
	httpClient *http.Client
	tracer     trace.TracerProvider
}

// WithLogger sets the logger passed to every component.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithHTTPClient sets the HTTP client used for remote calls and uploads.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// WithTracerProvider sets the tracer provider for orchestration spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracer = tp }
}

// New builds the RPC client, the adapters for every configured target and
// the orchestrator. Targets that are not configured leave their services
// unset so the steps that need them are skipped.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	o := options{logger: slog.Default(), httpClient: &http.Client{}}
	for _, opt := range opts {
		opt(&o)
	}

	var targets []*config.TargetConfig
	for _, t := range cfg.Targets.All() {
		targets = append(targets, t)
	}
	client, err := rpc.New(cfg.Transport, targets,
		rpc.WithHTTPClient(o.httpClient),
		rpc.WithLogger(o.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("creating rpc client: %w", err)
	}

	var services orchestrator.Services
	if cfg.Targets.Jira != nil {
		services.Tickets = artifact.NewTicketAdapter(client, config.TargetJira)
	}
	if cfg.Targets.Wiki != nil {
		wiki := artifact.NewWikiAdapter(client, config.TargetWiki, api.ArtifactImplPlan)
		services.ImplPlans = wiki
		services.QAPlans = wiki.WithKind(api.ArtifactQAPlan)
	}
	if cfg.Targets.Git != nil {
		services.Branches = artifact.NewBranchAdapter(client, config.TargetGit)
	}
	services.Attacher = attach.New(client,
		attach.NewCache(cfg.Attachments, o.httpClient),
		attach.WithHTTPClient(o.httpClient),
		attach.WithUploadTimeout(cfg.Attachments.UploadTimeout),
		attach.WithLogger(o.logger),
	)

	orchOpts := []orchestrator.Option{orchestrator.WithLogger(o.logger)}
	if o.tracer != nil {
		orchOpts = append(orchOpts, orchestrator.WithTracerProvider(o.tracer))
	}
	orch := orchestrator.New(services, orchOpts...)

	o.logger.Info("workbridge configured",
		"jira", cfg.Targets.Jira != nil,
		"wiki", cfg.Targets.Wiki != nil,
		"git", cfg.Targets.Git != nil,
	)

	return &App{
		cfg:    cfg,
		client: client,
		runner: orchestrator.NewRunner(orch, o.logger),
		logger: o.logger,
	}, nil
}

// Runner returns the orchestrator wrapped with run ids, logging and panic
// recovery.
func (a *App) Runner() orchestrator.Runner {
	return a.runner
}

// Run executes one work item.
func (a *App) Run(ctx context.Context, req *api.WorkItemRequest) *api.OrchestrationResult {
	return a.runner.Run(ctx, req)
}

// Server returns an HTTP server for the runner configured from the server
// and observability sections.
func (a *App) Server() *server.Server {
	sc := server.DefaultServerConfig()
	sc.Addr = fmt.Sprintf(":%d", a.cfg.Server.Port)
	sc.ReadTimeout = a.cfg.Server.ReadTimeout
	sc.WriteTimeout = a.cfg.Server.WriteTimeout
	sc.Auth = a.cfg.Server.Auth
	if a.cfg.Observability.Metrics.Enabled {
		sc.MetricsPath = a.cfg.Observability.Metrics.Path
	} else {
		sc.MetricsPath = ""
	}
	return server.NewServer(a.runner, server.WithConfig(sc), server.WithLogger(a.logger))
}

// Close ends the remote sessions.
func (a *App) Close(ctx context.Context) error {
	return a.client.Close(ctx)
}

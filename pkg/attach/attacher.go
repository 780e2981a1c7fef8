package attach

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/rhuss/workbridge/pkg/api"
	"github.com/rhuss/workbridge/pkg/config"
	"github.com/rhuss/workbridge/pkg/debug"
	"github.com/rhuss/workbridge/pkg/observability"
	"github.com/rhuss/workbridge/pkg/rpc"
)

// OpUploadAttachment is the tool operation name of the fallback path.
const OpUploadAttachment = "upload_attachment"

// DefaultUploadTimeout bounds a direct upload when no timeout is set.
const DefaultUploadTimeout = 30 * time.Second

// Client is the subset of the transport client the attacher needs.
// *rpc.Client implements it.
type Client interface {
	CallTool(ctx context.Context, target, tool string, args map[string]any) (*rpc.ToolResult, error)
	Target(name string) (*config.TargetConfig, bool)
	Headers(ctx context.Context, target string) (http.Header, error)
}

// Attacher attaches images to tickets and wiki pages.
type Attacher struct {
	client        Client
	cache         *Cache
	httpClient    *http.Client
	uploadTimeout time.Duration
	logger        *slog.Logger
	targets       map[api.ArtifactKind]string
}

// Option configures an Attacher.
type Option func(*Attacher)

// WithHTTPClient sets the client used for direct uploads.
func WithHTTPClient(hc *http.Client) Option {
	return func(a *Attacher) { a.httpClient = hc }
}

// WithUploadTimeout bounds each direct upload. Zero keeps
// DefaultUploadTimeout.
func WithUploadTimeout(d time.Duration) Option {
	return func(a *Attacher) {
		if d > 0 {
			a.uploadTimeout = d
		}
	}
}

// WithLogger sets the logger for degraded attachments.
func WithLogger(l *slog.Logger) Option {
	return func(a *Attacher) { a.logger = l }
}

// New creates an Attacher. Tickets are attached through the jira target and
// pages through the wiki target.
func New(client Client, cache *Cache, opts ...Option) *Attacher {
	a := &Attacher{
		client:        client,
		cache:         cache,
		httpClient:    &http.Client{},
		uploadTimeout: DefaultUploadTimeout,
		logger:        slog.Default(),
		targets: map[api.ArtifactKind]string{
			api.ArtifactTicket:   config.TargetJira,
			api.ArtifactImplPlan: config.TargetWiki,
			api.ArtifactQAPlan:   config.TargetWiki,
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AttachImage attaches img to the artifact. The direct path is tried
// first, then the fallback tool. Failure of both is reported in the
// outcome and never returned as an error.
func (a *Attacher) AttachImage(ctx context.Context, ref *api.ArtifactReference, img *api.ImageRef) api.AttachmentOutcome {
	outcome := a.attach(ctx, ref, img)
	observability.AttachmentsTotal.WithLabelValues(string(outcome.Method), fmt.Sprint(outcome.Attached)).Inc()
	return outcome
}

func (a *Attacher) attach(ctx context.Context, ref *api.ArtifactReference, img *api.ImageRef) api.AttachmentOutcome {
	if ref == nil || img == nil {
		return api.AttachmentOutcome{Method: api.AttachNone}
	}

	target, ok := a.targets[ref.Kind]
	if !ok {
		return api.AttachmentOutcome{Method: api.AttachNone, Error: fmt.Sprintf("artifact kind %s does not take attachments", ref.Kind)}
	}
	cfg, ok := a.client.Target(target)
	if !ok {
		return api.AttachmentOutcome{Method: api.AttachNone, Error: fmt.Sprintf("target %s is not configured", target)}
	}

	image, err := a.cache.Load(ctx, img)
	if err != nil {
		a.logger.Warn("image could not be loaded, artifact left without image",
			"artifact", ref.Kind, "id", artifactID(ref), "error", err)
		return api.AttachmentOutcome{Method: api.AttachNone, Error: err.Error()}
	}

	directErr := a.uploadDirect(ctx, cfg, ref, image)
	if directErr == nil {
		debug.Log(debug.Attach, "image attached directly", "target", target, "id", artifactID(ref), "file", image.Filename)
		return api.AttachmentOutcome{Attached: true, Method: api.AttachDirect}
	}
	debug.Log(debug.Attach, "direct upload failed, trying fallback tool", "target", target, "error", directErr)

	fallbackErr := a.uploadTool(ctx, cfg, ref, image)
	if fallbackErr == nil {
		debug.Log(debug.Attach, "image attached through tool", "target", target, "id", artifactID(ref), "file", image.Filename)
		return api.AttachmentOutcome{Attached: true, Method: api.AttachFallback}
	}

	a.logger.Warn("image attachment failed on both paths",
		"target", target,
		"artifact", ref.Kind,
		"id", artifactID(ref),
		"direct_error", directErr,
		"fallback_error", fallbackErr,
	)
	return api.AttachmentOutcome{
		Method: api.AttachNone,
		Error:  errors.Join(directErr, fallbackErr).Error(),
	}
}

// uploadDirect posts a multipart upload to the native REST API. A stalled
// endpoint is abandoned after the upload timeout so that the fallback
// still runs.
func (a *Attacher) uploadDirect(ctx context.Context, cfg *config.TargetConfig, ref *api.ArtifactReference, img *Image) error {
	endpoint, err := directEndpoint(cfg, ref)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, a.uploadTimeout)
	defer cancel()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, img.Filename))
	h.Set("Content-Type", img.ContentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := part.Write(img.Data); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return err
	}
	headers, err := a.client.Headers(ctx, cfg.Name)
	if err != nil {
		return err
	}
	for k, v := range headers {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("X-Atlassian-Token", "no-check")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("direct upload: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("direct upload: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// uploadTool sends the image through the target's upload tool.
func (a *Attacher) uploadTool(ctx context.Context, cfg *config.TargetConfig, ref *api.ArtifactReference, img *Image) error {
	args := map[string]any{
		"filename":       img.Filename,
		"content_base64": base64.StdEncoding.EncodeToString(img.Data),
		"content_type":   img.ContentType,
	}
	def := "confluence_upload_attachment"
	if ref.Kind == api.ArtifactTicket {
		def = "jira_upload_attachment"
		args["issue_key"] = ref.Key
	} else {
		args["page_id"] = ref.ID
	}

	if _, err := a.client.CallTool(ctx, cfg.Name, cfg.ToolName(OpUploadAttachment, def), args); err != nil {
		return fmt.Errorf("fallback upload: %w", err)
	}
	return nil
}

func directEndpoint(cfg *config.TargetConfig, ref *api.ArtifactReference) (string, error) {
	base := strings.TrimRight(cfg.RESTURL, "/")
	if base == "" {
		return "", fmt.Errorf("target %s has no rest_url", cfg.Name)
	}
	switch ref.Kind {
	case api.ArtifactTicket:
		if ref.Key == "" {
			return "", errors.New("ticket reference has no key")
		}
		return base + "/rest/api/3/issue/" + url.PathEscape(ref.Key) + "/attachments", nil
	default:
		if ref.ID == "" {
			return "", errors.New("page reference has no id")
		}
		return base + "/wiki/rest/api/content/" + url.PathEscape(ref.ID) + "/child/attachment", nil
	}
}

func artifactID(ref *api.ArtifactReference) string {
	if ref.Key != "" {
		return ref.Key
	}
	return ref.ID
}

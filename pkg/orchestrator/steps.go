package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/rhuss/workbridge/pkg/api"
	"github.com/rhuss/workbridge/pkg/artifact"
	wbdebug "github.com/rhuss/workbridge/pkg/debug"
)

// Skip reasons for unconfigured targets.
const (
	ReasonNoTracker = "work-tracker target not configured"
	ReasonNoWiki    = "wiki target not configured"
	ReasonNoVCS     = "version-control target not configured"
)

// createTicket is step A.
func (o *Orchestrator) createTicket(ctx context.Context, sc *StepContext, req *api.WorkItemRequest) api.StepResult {
	if o.services.Tickets == nil {
		return skipped(ReasonNoTracker)
	}

	t := req.Content.Ticket
	summary := strings.TrimSpace(t.Summary)
	if summary == "" {
		summary = req.Subject
	}
	ref, err := o.services.Tickets.CreateTicket(ctx, artifact.TicketFields{
		ProjectKey:  req.ProjectKey,
		Summary:     summary,
		Description: Render(t.Description, linksFrom(sc)),
		IssueType:   t.IssueType,
		Priority:    t.Priority,
		Labels:      t.Labels,
		Components:  t.Components,
		Extra:       t.Fields,
	})
	if err != nil {
		return failed(api.ErrorFrom(err))
	}

	result := success(ref)
	result.Attachment = o.attach(ctx, ref, req.Image)
	return result
}

// createImplPlan is step B. A missing ticket degrades to placeholder links.
func (o *Orchestrator) createImplPlan(ctx context.Context, sc *StepContext, req *api.WorkItemRequest) api.StepResult {
	if o.services.ImplPlans == nil {
		return skipped(ReasonNoWiki)
	}

	p := req.Content.ImplPlan
	title := p.Title
	if title == "" {
		title = "Implementation Plan: " + req.Subject
	}
	ref, err := o.services.ImplPlans.CreatePage(ctx, req.SpaceKey, req.ParentPageID, title, implPlanBody(p.Body, linksFrom(sc)))
	if err != nil {
		return failed(api.ErrorFrom(err))
	}

	result := success(ref)
	result.Attachment = o.attach(ctx, ref, req.Image)
	return result
}

// createQAPlan is step E. After the page exists, the implementation plan
// is rewritten so it links the QA plan's real URL.
func (o *Orchestrator) createQAPlan(ctx context.Context, sc *StepContext, req *api.WorkItemRequest) api.StepResult {
	if o.services.QAPlans == nil {
		return skipped(ReasonNoWiki)
	}

	p := req.Content.QAPlan
	title := p.Title
	if title == "" {
		title = "QA Plan: " + req.Subject
	}
	ref, err := o.services.QAPlans.CreatePage(ctx, req.SpaceKey, req.ParentPageID, title, qaPlanBody(p.Body, linksFrom(sc)))
	if err != nil {
		return failed(api.ErrorFrom(err))
	}

	result := success(ref)
	if impl, ok := sc.Reference(api.StepImplPlan); ok && o.services.ImplPlans != nil {
		links := linksFrom(sc)
		links.QAPlanURL = ref.URL
		body := implPlanBody(req.Content.ImplPlan.Body, links)

		update := api.UpdateResult{Action: api.UpdateBackpatch, Target: impl.ID, Status: api.StepSuccess}
		if err := o.services.ImplPlans.UpdatePageBody(ctx, impl.ID, impl.Title, body); err != nil {
			update.Status = api.StepFailed
			update.Error = api.ErrorFrom(err)
			o.logger.Warn("back-patch of implementation plan failed", "page_id", impl.ID, "error", err)
		} else {
			wbdebug.Log(wbdebug.Orchestrator, "implementation plan back-patched", "page_id", impl.ID, "qa_url", ref.URL)
		}
		result.Updates = append(result.Updates, update)
	}
	return result
}

// linkTicket is step C. It only runs when the ticket exists. Failures are
// recorded as updates and do not change the ticket's status.
func (o *Orchestrator) linkTicket(ctx context.Context, sc *StepContext, req *api.WorkItemRequest) api.StepResult {
	ticket, ok := sc.Reference(api.StepTicket)
	if !ok {
		// Run guards this; reaching it is a graph defect.
		panic("ticket links requested without a ticket")
	}

	result := api.StepResult{Status: api.StepSuccess, Reference: ticket, URL: ticket.URL}
	record := func(u api.UpdateResult) {
		if u.Status == api.StepFailed {
			result.Status = api.StepFailed
			if result.Error == nil {
				result.Error = u.Error
			}
		}
		result.Updates = append(result.Updates, u)
	}

	var (
		links   []artifact.Link
		pending []int
		updates []api.UpdateResult
	)
	for _, target := range []struct {
		step  api.StepID
		title string
	}{
		{api.StepImplPlan, "Implementation Plan"},
		{api.StepQAPlan, "QA Plan"},
	} {
		ref, ok := sc.Reference(target.step)
		if !ok {
			updates = append(updates, api.UpdateResult{Action: api.UpdateRemoteLink, Target: target.step.String(), Status: api.StepSkipped})
			continue
		}
		pending = append(pending, len(updates))
		updates = append(updates, api.UpdateResult{Action: api.UpdateRemoteLink, Target: ref.URL, Status: api.StepSuccess})
		links = append(links, artifact.Link{URL: ref.URL, Title: fmt.Sprintf("%s: %s", target.title, ref.Title)})
	}
	if len(links) > 0 {
		errs := o.services.Tickets.AddRemoteLinks(ctx, ticket.Key, links)
		for i, err := range errs {
			if err != nil && i < len(pending) {
				updates[pending[i]].Status = api.StepFailed
				updates[pending[i]].Error = api.ErrorFrom(err)
			}
		}
	}
	for _, u := range updates {
		record(u)
	}

	description := ticketBody(req.Content.Ticket.Description, linksFrom(sc))
	u := api.UpdateResult{Action: api.UpdateRelatedResources, Target: ticket.Key, Status: api.StepSuccess}
	if err := o.services.Tickets.UpdateDescription(ctx, ticket.Key, description); err != nil {
		u.Status = api.StepFailed
		u.Error = api.ErrorFrom(err)
	}
	record(u)

	return result
}

// createBranch is step D. An unconfigured version-control target is an
// expected configuration and yields a skip without error.
func (o *Orchestrator) createBranch(ctx context.Context, _ *StepContext, req *api.WorkItemRequest) api.StepResult {
	if o.services.Branches == nil {
		return skipped(ReasonNoVCS)
	}

	name := req.Content.Branch.Name
	if name == "" {
		name = artifact.BranchName(req.ProjectKey, req.Subject)
	}
	if name == "" {
		return failed(api.NewValidationError("branch name could not be derived: subject and project key are empty"))
	}

	ref, err := o.services.Branches.CreateBranch(ctx, o.services.Branches.Repo(), name)
	if err != nil {
		return failed(api.ErrorFrom(err))
	}
	return success(ref)
}

// attach adds the request image to ref when both an image and an attacher
// are present.
func (o *Orchestrator) attach(ctx context.Context, ref *api.ArtifactReference, img *api.ImageRef) *api.AttachmentOutcome {
	if img == nil || o.services.Attacher == nil {
		return nil
	}
	outcome := o.services.Attacher.AttachImage(ctx, ref, img)
	return &outcome
}

package artifact

import (
	"context"
	"errors"
	"strings"

	"github.com/rhuss/workbridge/pkg/api"
	"github.com/rhuss/workbridge/pkg/debug"
)

// Tool operation names used as keys in the target tools map.
const (
	OpCreateIssue      = "create_issue"
	OpCreateRemoteLink = "create_remote_link"
	OpUpdateIssue      = "update_issue"
)

const defaultIssueType = "Task"

// TicketFields are the inputs of a ticket creation.
type TicketFields struct {
	ProjectKey  string
	Summary     string
	Description string
	IssueType   string
	Priority    string
	Labels      []string
	Components  []string
	Extra       map[string]any
}

// Link is a web link attached to a ticket.
type Link struct {
	URL   string
	Title string
}

// TicketAdapter creates and updates work-tracker tickets.
type TicketAdapter struct {
	base
}

// NewTicketAdapter returns an adapter for the named target.
func NewTicketAdapter(caller Caller, target string) *TicketAdapter {
	return &TicketAdapter{base{caller: caller, target: target}}
}

// CreateTicket creates a ticket and returns its reference.
func (a *TicketAdapter) CreateTicket(ctx context.Context, f TicketFields) (*api.ArtifactReference, error) {
	if f.ProjectKey == "" || f.Summary == "" {
		return nil, errors.New("create ticket: project key and summary are required")
	}

	issueType := f.IssueType
	if issueType == "" {
		issueType = defaultIssueType
	}
	args := map[string]any{
		"project_key": f.ProjectKey,
		"summary":     f.Summary,
		"issue_type":  issueType,
		"description": f.Description,
	}
	if len(f.Components) > 0 {
		args["components"] = strings.Join(f.Components, ",")
	}

	additional := make(map[string]any, len(f.Extra)+2)
	for k, v := range f.Extra {
		additional[k] = v
	}
	if f.Priority != "" {
		additional["priority"] = map[string]any{"name": f.Priority}
	}
	if len(f.Labels) > 0 {
		additional["labels"] = f.Labels
	}
	if len(additional) > 0 {
		args["additional_fields"] = additional
	}

	doc, err := a.call(ctx, OpCreateIssue, a.tool(OpCreateIssue, "jira_create_issue"), args)
	if err != nil {
		return nil, err
	}

	issue := doc.Get("issue")
	if !issue.Exists() {
		issue = doc
	}
	key := first(issue, "key")
	if key == "" {
		return nil, &ValidationError{Target: a.target, Operation: OpCreateIssue, Field: "issue key"}
	}

	url := first(issue, "url", "browse_url", "links.web")
	if url == "" {
		if web := a.webURL(); web != "" {
			url = web + "/browse/" + key
		}
	}
	if url == "" {
		return nil, &ValidationError{Target: a.target, Operation: OpCreateIssue, Field: "issue url"}
	}

	ref := &api.ArtifactReference{
		Kind:  api.ArtifactTicket,
		ID:    first(issue, "id"),
		Key:   key,
		URL:   url,
		Title: f.Summary,
	}
	debug.Log(debug.Adapters, "ticket created", "target", a.target, "key", ref.Key, "url", ref.URL)
	return ref, nil
}

// AddRemoteLink attaches one web link to a ticket.
func (a *TicketAdapter) AddRemoteLink(ctx context.Context, ticketKey string, link Link) error {
	args := map[string]any{
		"issue_key":    ticketKey,
		"url":          link.URL,
		"title":        link.Title,
		"relationship": "relates to",
	}
	_, err := a.caller.CallTool(ctx, a.target, a.tool(OpCreateRemoteLink, "jira_create_remote_issue_link"), args)
	if err != nil {
		return err
	}
	debug.Log(debug.Adapters, "remote link added", "target", a.target, "key", ticketKey, "url", link.URL)
	return nil
}

// AddRemoteLinks attaches each link to a ticket. All links are attempted
// in order; errs[i] is the outcome of links[i].
func (a *TicketAdapter) AddRemoteLinks(ctx context.Context, ticketKey string, links []Link) (errs []error) {
	errs = make([]error, len(links))
	for i, l := range links {
		errs[i] = a.AddRemoteLink(ctx, ticketKey, l)
	}
	return errs
}

// UpdateDescription replaces the description of a ticket.
func (a *TicketAdapter) UpdateDescription(ctx context.Context, ticketKey, description string) error {
	args := map[string]any{
		"issue_key": ticketKey,
		"fields":    map[string]any{"description": description},
	}
	_, err := a.caller.CallTool(ctx, a.target, a.tool(OpUpdateIssue, "jira_update_issue"), args)
	if err != nil {
		return err
	}
	debug.Log(debug.Adapters, "ticket description updated", "target", a.target, "key", ticketKey)
	return nil
}

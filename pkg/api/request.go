package api

// WorkItemRequest is the immutable input of one orchestration run. The
// content is produced by upstream collaborators and is treated as opaque
// apart from a small set of link tokens.
type WorkItemRequest struct {
	// Subject is the name of the selected design component.
	Subject string `json:"subject"`

	// ProjectKey is the work-tracker project the ticket is created in.
	ProjectKey string `json:"project_key"`

	// SpaceKey and ParentPageID locate the wiki pages.
	SpaceKey     string `json:"space_key"`
	ParentPageID string `json:"parent_page_id,omitempty"`

	Content ContentPayload `json:"content"`

	// Image is an optional reference to a rendered image of the selection.
	Image *ImageRef `json:"image,omitempty"`

	// CreateArtifacts enables active creation. When false nothing is
	// created and no remote system is contacted.
	CreateArtifacts bool `json:"create_artifacts"`
}

// ContentPayload holds the pre-rendered content for each artifact.
type ContentPayload struct {
	Ticket   TicketContent `json:"ticket"`
	ImplPlan PageContent   `json:"impl_plan"`
	QAPlan   PageContent   `json:"qa_plan"`
	Branch   BranchContent `json:"branch"`
}

// TicketContent is the pre-rendered ticket payload.
type TicketContent struct {
	Summary     string         `json:"summary"`
	Description string         `json:"description"`
	IssueType   string         `json:"issue_type,omitempty"`
	Priority    string         `json:"priority,omitempty"`
	Labels      []string       `json:"labels,omitempty"`
	Components  []string       `json:"components,omitempty"`
	Fields      map[string]any `json:"fields,omitempty"`
}

// PageContent is the pre-rendered wiki page payload.
type PageContent struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// BranchContent names the branch to create. An empty name is derived from
// the project key and subject.
type BranchContent struct {
	Name string `json:"name,omitempty"`
}

// ImageRef points at an image either inline or by URL. Data takes
// precedence over URL.
type ImageRef struct {
	URL         string `json:"url,omitempty"`
	Data        []byte `json:"data,omitempty"`
	Filename    string `json:"filename,omitempty"`
	ContentType string `json:"content_type,omitempty"`
}

// CacheKey identifies the image source for caching.
func (r *ImageRef) CacheKey() string {
	if r == nil {
		return ""
	}
	return r.URL
}

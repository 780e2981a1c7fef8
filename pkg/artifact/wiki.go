package artifact

import (
	"context"
	"errors"

	"github.com/rhuss/workbridge/pkg/api"
	"github.com/rhuss/workbridge/pkg/debug"
)

// Tool operation names used as keys in the target tools map.
const (
	OpCreatePage = "create_page"
	OpUpdatePage = "update_page"
)

// contentFormat is the format of page bodies handed to the wiki tools.
const contentFormat = "markdown"

// WikiAdapter creates and updates wiki pages.
type WikiAdapter struct {
	base
	kind api.ArtifactKind
}

// NewWikiAdapter returns an adapter for the named target. kind is the
// artifact kind assigned to created pages.
func NewWikiAdapter(caller Caller, target string, kind api.ArtifactKind) *WikiAdapter {
	return &WikiAdapter{base: base{caller: caller, target: target}, kind: kind}
}

// WithKind returns an adapter on the same target that labels created pages
// with kind.
func (a *WikiAdapter) WithKind(kind api.ArtifactKind) *WikiAdapter {
	return &WikiAdapter{base: a.base, kind: kind}
}

// CreatePage creates a page under parentID in spaceKey.
func (a *WikiAdapter) CreatePage(ctx context.Context, spaceKey, parentID, title, body string) (*api.ArtifactReference, error) {
	if spaceKey == "" || title == "" {
		return nil, errors.New("create page: space key and title are required")
	}

	args := map[string]any{
		"space_key":              spaceKey,
		"title":                  title,
		"content":                body,
		"content_format":         contentFormat,
		"enable_heading_anchors": false,
	}
	if parentID != "" {
		args["parent_id"] = parentID
	}

	doc, err := a.call(ctx, OpCreatePage, a.tool(OpCreatePage, "confluence_create_page"), args)
	if err != nil {
		return nil, err
	}

	page := doc.Get("page")
	if !page.Exists() {
		page = doc
	}
	id := first(page, "id")
	if id == "" {
		return nil, &ValidationError{Target: a.target, Operation: OpCreatePage, Field: "page id"}
	}

	web := a.webURL()
	url := absolute(first(page, "url", "_links.webui", "links.webui"), web)
	if url == "" && web != "" {
		url = web + "/pages/viewpage.action?pageId=" + id
	}
	if url == "" {
		return nil, &ValidationError{Target: a.target, Operation: OpCreatePage, Field: "page url"}
	}

	if t := first(page, "title"); t != "" {
		title = t
	}
	ref := &api.ArtifactReference{
		Kind:  a.kind,
		ID:    id,
		URL:   url,
		Title: title,
	}
	debug.Log(debug.Adapters, "page created", "target", a.target, "id", ref.ID, "url", ref.URL)
	return ref, nil
}

// UpdatePageBody replaces the body of a page. Title is required by most
// wiki servers and is passed through unchanged.
func (a *WikiAdapter) UpdatePageBody(ctx context.Context, pageID, title, body string) error {
	args := map[string]any{
		"page_id":                pageID,
		"title":                  title,
		"content":                body,
		"content_format":         contentFormat,
		"enable_heading_anchors": false,
	}
	_, err := a.caller.CallTool(ctx, a.target, a.tool(OpUpdatePage, "confluence_update_page"), args)
	if err != nil {
		return err
	}
	debug.Log(debug.Adapters, "page body updated", "target", a.target, "id", pageID)
	return nil
}

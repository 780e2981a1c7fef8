package faketargets

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// rejectedPageFields are optional page arguments the real wiki server
// refuses when Strict is set.
var rejectedPageFields = []string{"content_format", "enable_heading_anchors"}

// Page is a wiki page held by the fake wiki.
type Page struct {
	ID          string
	SpaceKey    string
	ParentID    string
	Title       string
	Body        string
	Version     int
	Attachments []Attachment
}

// Wiki is an in-memory wiki speaking the Confluence MCP tool set.
type Wiki struct {
	recorder

	opts  Options
	web   atomic.Value
	mu    sync.Mutex
	seq   int
	pages map[string]*Page
	mux   *http.ServeMux
}

// NewWiki creates an empty wiki.
func NewWiki(opts Options) *Wiki {
	wk := &Wiki{opts: opts, pages: make(map[string]*Page)}

	wk.mux = http.NewServeMux()
	wk.mux.Handle("/mcp", newMCPHandler("fake-wiki", &wk.recorder, map[string]tool{
		"confluence_create_page":       wk.createPage,
		"confluence_update_page":       wk.updatePage,
		"confluence_get_page":          wk.getPage,
		"confluence_upload_attachment": wk.uploadAttachment,
	}))
	wk.mux.HandleFunc("POST /wiki/rest/api/content/{id}/child/attachment", wk.restAttachment)
	return wk
}

// Handler returns the HTTP handler of the wiki.
func (wk *Wiki) Handler() http.Handler {
	return requireToken(wk.opts.Token, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wk.web.CompareAndSwap(nil, baseURL(r))
		wk.mux.ServeHTTP(w, r)
	}))
}

// Page returns a copy of the page with the given id.
func (wk *Wiki) Page(id string) (Page, bool) {
	wk.mu.Lock()
	defer wk.mu.Unlock()
	p, ok := wk.pages[id]
	if !ok {
		return Page{}, false
	}
	out := *p
	out.Attachments = append([]Attachment(nil), p.Attachments...)
	return out, true
}

// PageByTitle returns a copy of the first page with the given title.
func (wk *Wiki) PageByTitle(title string) (Page, bool) {
	wk.mu.Lock()
	var id string
	for _, p := range wk.pages {
		if p.Title == title {
			id = p.ID
			break
		}
	}
	wk.mu.Unlock()
	if id == "" {
		return Page{}, false
	}
	return wk.Page(id)
}

// Len returns the number of pages.
func (wk *Wiki) Len() int {
	wk.mu.Lock()
	defer wk.mu.Unlock()
	return len(wk.pages)
}

func (wk *Wiki) webURL() string {
	if wk.opts.WebURL != "" {
		return strings.TrimRight(wk.opts.WebURL, "/")
	}
	if v, ok := wk.web.Load().(string); ok {
		return v
	}
	return "http://wiki.invalid"
}

func (wk *Wiki) checkStrict(args gjson.Result) error {
	if !wk.opts.Strict {
		return nil
	}
	for _, f := range rejectedPageFields {
		if args.Get(f).Exists() {
			return fmt.Errorf("unexpected argument %q", f)
		}
	}
	return nil
}

func (wk *Wiki) createPage(_ context.Context, args gjson.Result) (string, error) {
	if err := wk.checkStrict(args); err != nil {
		return "", err
	}
	space := args.Get("space_key").String()
	title := args.Get("title").String()
	if space == "" || title == "" {
		return "", fmt.Errorf("space_key and title are required")
	}

	wk.mu.Lock()
	defer wk.mu.Unlock()
	for _, p := range wk.pages {
		if p.SpaceKey == space && p.Title == title {
			return "", fmt.Errorf("a page with title %q already exists in space %s", title, space)
		}
	}
	wk.seq++
	p := &Page{
		ID:       strconv.Itoa(65536 + wk.seq),
		SpaceKey: space,
		ParentID: args.Get("parent_id").String(),
		Title:    title,
		Body:     args.Get("content").String(),
		Version:  1,
	}
	wk.pages[p.ID] = p
	wk.opts.logger().Debug("page created", "id", p.ID, "title", p.Title)
	return pageJSON("page", p, "/spaces/"+space+"/pages/"+p.ID, "Page created successfully")
}

func (wk *Wiki) updatePage(_ context.Context, args gjson.Result) (string, error) {
	if err := wk.checkStrict(args); err != nil {
		return "", err
	}

	wk.mu.Lock()
	defer wk.mu.Unlock()
	p, ok := wk.pages[args.Get("page_id").String()]
	if !ok {
		return "", fmt.Errorf("page %q does not exist", args.Get("page_id").String())
	}
	if t := args.Get("title").String(); t != "" {
		p.Title = t
	}
	p.Body = args.Get("content").String()
	p.Version++
	return pageJSON("page", p, "/spaces/"+p.SpaceKey+"/pages/"+p.ID, "Page updated successfully")
}

func (wk *Wiki) getPage(_ context.Context, args gjson.Result) (string, error) {
	wk.mu.Lock()
	defer wk.mu.Unlock()
	p, ok := wk.pages[args.Get("page_id").String()]
	if !ok {
		return "", fmt.Errorf("page %q does not exist", args.Get("page_id").String())
	}
	return pageJSON("metadata", p, "/spaces/"+p.SpaceKey+"/pages/"+p.ID, "")
}

func (wk *Wiki) uploadAttachment(_ context.Context, args gjson.Result) (string, error) {
	att, err := decodeToolAttachment(args)
	if err != nil {
		return "", err
	}

	wk.mu.Lock()
	defer wk.mu.Unlock()
	p, ok := wk.pages[args.Get("page_id").String()]
	if !ok {
		return "", fmt.Errorf("page %q does not exist", args.Get("page_id").String())
	}
	p.Attachments = append(p.Attachments, *att)
	return sjson.Set(`{"success":true}`, "filename", att.Filename)
}

func (wk *Wiki) restAttachment(w http.ResponseWriter, r *http.Request) {
	if wk.opts.DenyREST {
		http.Error(w, "attachments are disabled for this token", http.StatusUnauthorized)
		return
	}
	att, err := readMultipartFile(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	wk.mu.Lock()
	p, ok := wk.pages[r.PathValue("id")]
	if ok {
		p.Attachments = append(p.Attachments, *att)
	}
	wk.mu.Unlock()
	if !ok {
		http.Error(w, "page does not exist", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": []map[string]any{{"title": att.Filename}}})
}

// pageJSON renders a page under root. The link is relative, as the real
// server returns it in _links.webui.
func pageJSON(root string, p *Page, webui, message string) (string, error) {
	out := `{}`
	var err error
	if message != "" {
		if out, err = sjson.Set(out, "message", message); err != nil {
			return "", err
		}
	}
	for _, kv := range []struct {
		path  string
		value any
	}{
		{"id", p.ID},
		{"title", p.Title},
		{"space.key", p.SpaceKey},
		{"version.number", p.Version},
		{"content.value", p.Body},
		{"_links.webui", webui},
	} {
		if out, err = sjson.Set(out, root+"."+kv.path, kv.value); err != nil {
			return "", err
		}
	}
	return out, nil
}

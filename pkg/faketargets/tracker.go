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

// Issue is a ticket held by the fake tracker.
type Issue struct {
	ID          string
	Key         string
	ProjectKey  string
	Summary     string
	IssueType   string
	Description string
	Labels      []string
	RemoteLinks []RemoteLink
	Attachments []Attachment
}

// RemoteLink is a link from an issue to an external resource.
type RemoteLink struct {
	URL   string
	Title string
}

// Tracker is an in-memory work tracker speaking the Jira MCP tool set.
type Tracker struct {
	recorder

	opts   Options
	web    atomic.Value
	mu     sync.Mutex
	seq    int
	issues map[string]*Issue
	mux    *http.ServeMux
}

// NewTracker creates an empty tracker.
func NewTracker(opts Options) *Tracker {
	t := &Tracker{opts: opts, issues: make(map[string]*Issue)}

	t.mux = http.NewServeMux()
	t.mux.Handle("/mcp", newMCPHandler("fake-tracker", &t.recorder, map[string]tool{
		"jira_create_issue":             t.createIssue,
		"jira_update_issue":             t.updateIssue,
		"jira_create_remote_issue_link": t.createRemoteLink,
		"jira_upload_attachment":        t.uploadAttachment,
	}))
	t.mux.HandleFunc("POST /rest/api/3/issue/{key}/attachments", t.restAttachment)
	return t
}

// Handler returns the HTTP handler of the tracker.
func (t *Tracker) Handler() http.Handler {
	return requireToken(t.opts.Token, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.web.CompareAndSwap(nil, baseURL(r))
		t.mux.ServeHTTP(w, r)
	}))
}

// Issue returns a copy of the issue with the given key.
func (t *Tracker) Issue(key string) (Issue, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	is, ok := t.issues[key]
	if !ok {
		return Issue{}, false
	}
	out := *is
	out.RemoteLinks = append([]RemoteLink(nil), is.RemoteLinks...)
	out.Attachments = append([]Attachment(nil), is.Attachments...)
	return out, true
}

// Len returns the number of issues.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.issues)
}

func (t *Tracker) webURL() string {
	if t.opts.WebURL != "" {
		return strings.TrimRight(t.opts.WebURL, "/")
	}
	if v, ok := t.web.Load().(string); ok {
		return v
	}
	return "http://tracker.invalid"
}

func (t *Tracker) createIssue(_ context.Context, args gjson.Result) (string, error) {
	project := args.Get("project_key").String()
	summary := args.Get("summary").String()
	if project == "" {
		return "", fmt.Errorf("project_key is required")
	}
	if summary == "" {
		return "", fmt.Errorf("summary is required")
	}

	t.mu.Lock()
	t.seq++
	is := &Issue{
		ID:          strconv.Itoa(10000 + t.seq),
		Key:         fmt.Sprintf("%s-%d", strings.ToUpper(project), t.seq),
		ProjectKey:  project,
		Summary:     summary,
		IssueType:   args.Get("issue_type").String(),
		Description: args.Get("description").String(),
	}
	for _, l := range args.Get("additional_fields.labels").Array() {
		is.Labels = append(is.Labels, l.String())
	}
	t.issues[is.Key] = is
	t.mu.Unlock()

	t.opts.logger().Debug("issue created", "key", is.Key)
	return t.issueJSON(is, "Issue created successfully")
}

func (t *Tracker) updateIssue(_ context.Context, args gjson.Result) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	is, ok := t.issues[args.Get("issue_key").String()]
	if !ok {
		return "", fmt.Errorf("issue %q does not exist", args.Get("issue_key").String())
	}
	if d := args.Get("fields.description"); d.Exists() {
		is.Description = d.String()
	}
	if s := args.Get("fields.summary"); s.Exists() {
		is.Summary = s.String()
	}
	return t.issueJSON(is, "Issue updated successfully")
}

func (t *Tracker) createRemoteLink(_ context.Context, args gjson.Result) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := args.Get("issue_key").String()
	is, ok := t.issues[key]
	if !ok {
		return "", fmt.Errorf("issue %q does not exist", key)
	}
	link := RemoteLink{URL: args.Get("url").String(), Title: args.Get("title").String()}
	if link.URL == "" {
		return "", fmt.Errorf("url is required")
	}
	is.RemoteLinks = append(is.RemoteLinks, link)

	out, _ := sjson.Set(`{"success":true}`, "issue_key", key)
	out, _ = sjson.Set(out, "link_id", len(is.RemoteLinks))
	return out, nil
}

func (t *Tracker) uploadAttachment(_ context.Context, args gjson.Result) (string, error) {
	att, err := decodeToolAttachment(args)
	if err != nil {
		return "", err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	key := args.Get("issue_key").String()
	is, ok := t.issues[key]
	if !ok {
		return "", fmt.Errorf("issue %q does not exist", key)
	}
	is.Attachments = append(is.Attachments, *att)
	return sjson.Set(`{"success":true}`, "filename", att.Filename)
}

func (t *Tracker) restAttachment(w http.ResponseWriter, r *http.Request) {
	if t.opts.DenyREST {
		http.Error(w, "attachments are disabled for this token", http.StatusUnauthorized)
		return
	}
	att, err := readMultipartFile(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	t.mu.Lock()
	is, ok := t.issues[r.PathValue("key")]
	if ok {
		is.Attachments = append(is.Attachments, *att)
	}
	t.mu.Unlock()
	if !ok {
		http.Error(w, "issue does not exist", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, []map[string]any{{"filename": att.Filename, "size": len(att.Data)}})
}

// issueJSON renders an issue the way the Jira MCP server does. Callers
// hold t.mu or own is exclusively.
func (t *Tracker) issueJSON(is *Issue, message string) (string, error) {
	out := `{}`
	var err error
	for _, kv := range []struct {
		path  string
		value any
	}{
		{"message", message},
		{"issue.id", is.ID},
		{"issue.key", is.Key},
		{"issue.summary", is.Summary},
		{"issue.url", t.webURL() + "/browse/" + is.Key},
		{"issue.description", is.Description},
	} {
		if out, err = sjson.Set(out, kv.path, kv.value); err != nil {
			return "", err
		}
	}
	return out, nil
}

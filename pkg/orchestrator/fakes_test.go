package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/rhuss/workbridge/pkg/api"
	"github.com/rhuss/workbridge/pkg/artifact"
)

// recorder counts calls across all fakes of one test.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(call string) {
	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *recorder) has(call string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.calls {
		if c == call {
			return true
		}
	}
	return false
}

type fakeTickets struct {
	rec       *recorder
	createErr error
	linkErr   error
	// failLink limits linkErr to the link with this URL.
	failLink  string
	updateErr error
	// beforeCreate runs at the start of CreateTicket.
	beforeCreate func()

	mu          sync.Mutex
	description string
	links       []artifact.Link
}

func (f *fakeTickets) CreateTicket(_ context.Context, fields artifact.TicketFields) (*api.ArtifactReference, error) {
	if f.beforeCreate != nil {
		f.beforeCreate()
	}
	f.rec.add("create_ticket")
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.mu.Lock()
	f.description = fields.Description
	f.mu.Unlock()
	return &api.ArtifactReference{
		Kind:  api.ArtifactTicket,
		ID:    "10001",
		Key:   fields.ProjectKey + "-1",
		URL:   "https://jira.test/browse/" + fields.ProjectKey + "-1",
		Title: fields.Summary,
	}, nil
}

func (f *fakeTickets) AddRemoteLinks(_ context.Context, key string, links []artifact.Link) []error {
	errs := make([]error, len(links))
	for i, link := range links {
		f.rec.add("add_remote_link")
		if f.linkErr != nil && (f.failLink == "" || f.failLink == link.URL) {
			errs[i] = f.linkErr
			continue
		}
		f.mu.Lock()
		f.links = append(f.links, link)
		f.mu.Unlock()
	}
	return errs
}

func (f *fakeTickets) UpdateDescription(_ context.Context, key, description string) error {
	f.rec.add("update_description")
	if f.updateErr != nil {
		return f.updateErr
	}
	f.mu.Lock()
	f.description = description
	f.mu.Unlock()
	return nil
}

// fakeWiki stores page bodies so that back-patches can be read back.
type fakeWiki struct {
	rec        *recorder
	kind       api.ArtifactKind
	failCreate error
	panicOn    bool
	updateErr  error

	mu     sync.Mutex
	pages  map[string]string
	nextID int
}

func newFakeWiki(rec *recorder, kind api.ArtifactKind) *fakeWiki {
	return &fakeWiki{rec: rec, kind: kind, pages: make(map[string]string)}
}

func (f *fakeWiki) CreatePage(_ context.Context, space, parent, title, body string) (*api.ArtifactReference, error) {
	f.rec.add("create_page:" + string(f.kind))
	if f.panicOn {
		panic("wiki exploded")
	}
	if f.failCreate != nil {
		return nil, f.failCreate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := fmt.Sprintf("%s-%d", f.kind, f.nextID)
	f.pages[id] = body
	return &api.ArtifactReference{
		Kind:  f.kind,
		ID:    id,
		URL:   "https://wiki.test/pages/" + id,
		Title: title,
	}, nil
}

func (f *fakeWiki) UpdatePageBody(_ context.Context, id, title, body string) error {
	f.rec.add("update_page:" + string(f.kind))
	if f.updateErr != nil {
		return f.updateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.pages[id]; !ok {
		return fmt.Errorf("page %s not found", id)
	}
	f.pages[id] = body
	return nil
}

func (f *fakeWiki) body(id string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pages[id]
}

type fakeBranches struct {
	rec *recorder
	err error
	// started is closed when CreateBranch begins, if set.
	started chan struct{}
	name    string
}

func (f *fakeBranches) CreateBranch(_ context.Context, repo artifact.RepoTarget, name string) (*api.ArtifactReference, error) {
	if f.started != nil {
		close(f.started)
	}
	f.rec.add("create_branch")
	if f.err != nil {
		return nil, f.err
	}
	f.name = name
	return &api.ArtifactReference{
		Kind: api.ArtifactBranch,
		Key:  name,
		URL:  "https://git.test/" + repo.Owner + "/" + repo.Repo + "/tree/" + name,
	}, nil
}

func (f *fakeBranches) Repo() artifact.RepoTarget {
	return artifact.RepoTarget{Owner: "acme", Repo: "shop", BaseBranch: "main"}
}

type fakeAttacher struct {
	rec     *recorder
	outcome api.AttachmentOutcome
}

func (f *fakeAttacher) AttachImage(_ context.Context, ref *api.ArtifactReference, _ *api.ImageRef) api.AttachmentOutcome {
	f.rec.add("attach:" + string(ref.Kind))
	return f.outcome
}

// world bundles the fakes of one test.
type world struct {
	rec      *recorder
	tickets  *fakeTickets
	impl     *fakeWiki
	qa       *fakeWiki
	branches *fakeBranches
	attacher *fakeAttacher
}

func newWorld() *world {
	rec := &recorder{}
	// Both plan kinds share one wiki in production; separate fakes keep
	// assertions simple.
	return &world{
		rec:      rec,
		tickets:  &fakeTickets{rec: rec},
		impl:     newFakeWiki(rec, api.ArtifactImplPlan),
		qa:       newFakeWiki(rec, api.ArtifactQAPlan),
		branches: &fakeBranches{rec: rec},
		attacher: &fakeAttacher{rec: rec, outcome: api.AttachmentOutcome{Attached: true, Method: api.AttachDirect}},
	}
}

func (w *world) services() Services {
	return Services{
		Tickets:   w.tickets,
		ImplPlans: w.impl,
		QAPlans:   w.qa,
		Branches:  w.branches,
		Attacher:  w.attacher,
	}
}

func testRequest() *api.WorkItemRequest {
	return &api.WorkItemRequest{
		Subject:    "Checkout Button",
		ProjectKey: "PROJ",
		SpaceKey:   "ENG",
		Content: api.ContentPayload{
			Ticket: api.TicketContent{
				Summary:     "Implement checkout button",
				Description: "Build the button. Plan: {{impl_plan.url}}",
			},
			ImplPlan: api.PageContent{
				Title: "Impl: Checkout Button",
				Body:  "Ticket {{ticket.key}} at {{ticket.url}}. QA: {{qa_plan.url}}",
			},
			QAPlan: api.PageContent{
				Title: "QA: Checkout Button",
				Body:  "Verify {{ticket.key}} against {{impl_plan.url}}",
			},
		},
		Image:           &api.ImageRef{Data: []byte("png")},
		CreateArtifacts: true,
	}
}

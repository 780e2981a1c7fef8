package faketargets

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Branch is a branch held by the fake code host.
type Branch struct {
	Owner string
	Repo  string
	Name  string
	From  string
	SHA   string
}

// Repos is an in-memory code host speaking the GitHub MCP tool set. Every
// repository exists and has a "main" branch.
type Repos struct {
	recorder

	opts     Options
	mu       sync.Mutex
	branches map[string]*Branch
	mux      *http.ServeMux
}

// NewRepos creates a code host without branches.
func NewRepos(opts Options) *Repos {
	rp := &Repos{opts: opts, branches: make(map[string]*Branch)}
	rp.mux = http.NewServeMux()
	rp.mux.Handle("/mcp", newMCPHandler("fake-repos", &rp.recorder, map[string]tool{
		"create_branch": rp.createBranch,
	}))
	return rp
}

// Handler returns the HTTP handler of the code host.
func (rp *Repos) Handler() http.Handler {
	return requireToken(rp.opts.Token, rp.mux)
}

// Branch returns a copy of the named branch.
func (rp *Repos) Branch(owner, repo, name string) (Branch, bool) {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	b, ok := rp.branches[owner+"/"+repo+":"+name]
	if !ok {
		return Branch{}, false
	}
	return *b, true
}

// Len returns the number of created branches.
func (rp *Repos) Len() int {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	return len(rp.branches)
}

func (rp *Repos) createBranch(_ context.Context, args gjson.Result) (string, error) {
	owner := args.Get("owner").String()
	repo := args.Get("repo").String()
	name := args.Get("branch").String()
	if owner == "" || repo == "" || name == "" {
		return "", fmt.Errorf("owner, repo and branch are required")
	}
	from := args.Get("from_branch").String()
	if from == "" {
		from = "main"
	}

	rp.mu.Lock()
	defer rp.mu.Unlock()
	key := owner + "/" + repo + ":" + name
	if _, exists := rp.branches[key]; exists {
		return "", fmt.Errorf("reference already exists: refs/heads/%s", name)
	}
	sum := sha1.Sum([]byte(key))
	b := &Branch{Owner: owner, Repo: repo, Name: name, From: from, SHA: hex.EncodeToString(sum[:])}
	rp.branches[key] = b

	out, err := sjson.Set(`{}`, "ref", "refs/heads/"+name)
	if err != nil {
		return "", err
	}
	out, _ = sjson.Set(out, "object.sha", b.SHA)
	return sjson.Set(out, "object.type", "commit")
}

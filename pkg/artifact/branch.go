package artifact

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/rhuss/workbridge/pkg/api"
	"github.com/rhuss/workbridge/pkg/debug"
)

// OpCreateBranch is the tool operation name for branch creation.
const OpCreateBranch = "create_branch"

const (
	defaultGitWebURL = "https://github.com"
	branchPrefix     = "feature/"
	maxSlugLength    = 48
)

// RepoTarget locates the repository a branch is created in.
type RepoTarget struct {
	Owner      string
	Repo       string
	BaseBranch string
}

// BranchAdapter creates branches in a version-control system.
type BranchAdapter struct {
	base
}

// NewBranchAdapter returns an adapter for the named target.
func NewBranchAdapter(caller Caller, target string) *BranchAdapter {
	return &BranchAdapter{base{caller: caller, target: target}}
}

// Repo returns the repository configured on the target.
func (a *BranchAdapter) Repo() RepoTarget {
	cfg := a.config()
	return RepoTarget{Owner: cfg.Owner, Repo: cfg.Repo, BaseBranch: cfg.BaseBranch}
}

// CreateBranch creates branchName from the repository's base branch.
func (a *BranchAdapter) CreateBranch(ctx context.Context, repo RepoTarget, branchName string) (*api.ArtifactReference, error) {
	if repo.Owner == "" || repo.Repo == "" {
		return nil, errors.New("create branch: owner and repo are required")
	}
	if branchName == "" {
		return nil, errors.New("create branch: branch name is required")
	}

	args := map[string]any{
		"owner":  repo.Owner,
		"repo":   repo.Repo,
		"branch": branchName,
	}
	if repo.BaseBranch != "" {
		args["from_branch"] = repo.BaseBranch
	}

	doc, err := a.call(ctx, OpCreateBranch, a.tool(OpCreateBranch, "create_branch"), args)
	if err != nil {
		return nil, err
	}

	ref := first(doc, "ref", "name")
	if ref == "" {
		return nil, &ValidationError{Target: a.target, Operation: OpCreateBranch, Field: "ref"}
	}
	name := strings.TrimPrefix(ref, "refs/heads/")

	web := a.webURL()
	if web == "" {
		web = defaultGitWebURL
	}
	out := &api.ArtifactReference{
		Kind:  api.ArtifactBranch,
		ID:    first(doc, "object.sha", "sha"),
		Key:   name,
		URL:   web + "/" + repo.Owner + "/" + repo.Repo + "/tree/" + name,
		Title: name,
	}
	debug.Log(debug.Adapters, "branch created", "target", a.target, "branch", name, "url", out.URL)
	return out, nil
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// BranchName derives a branch name from a project key and subject, for
// example "feature/proj-checkout-button".
func BranchName(projectKey, subject string) string {
	slug := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(subject), "-"), "-")
	if len(slug) > maxSlugLength {
		slug = strings.TrimRight(slug[:maxSlugLength], "-")
	}

	var parts []string
	if p := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(projectKey), "-"), "-"); p != "" {
		parts = append(parts, p)
	}
	if slug != "" {
		parts = append(parts, slug)
	}
	if len(parts) == 0 {
		return ""
	}
	return branchPrefix + strings.Join(parts, "-")
}

package config

import "strings"

// Target names as used in logs, metrics and the targets block.
const (
	TargetJira = "jira"
	TargetWiki = "wiki"
	TargetGit  = "git"
)

// All returns the configured targets keyed by name. Absent targets are
// not included.
func (t TargetsConfig) All() map[string]*TargetConfig {
	m := make(map[string]*TargetConfig, 3)
	if t.Jira != nil {
		m[TargetJira] = t.Jira
	}
	if t.Wiki != nil {
		m[TargetWiki] = t.Wiki
	}
	if t.Git != nil {
		m[TargetGit] = t.Git
	}
	return m
}

// Normalize turns blank targets into absent ones and fills derived
// defaults. It is safe to call more than once.
func (c *Config) Normalize() {
	c.Targets.Jira = normalizeTarget(c.Targets.Jira, TargetJira)
	c.Targets.Wiki = normalizeTarget(c.Targets.Wiki, TargetWiki)
	c.Targets.Git = normalizeTarget(c.Targets.Git, TargetGit)

	if c.Targets.Wiki != nil && c.Targets.Wiki.Quirks == nil {
		c.Targets.Wiki.Quirks = DefaultWikiQuirks()
	}
	if c.Targets.Git != nil && c.Targets.Git.BaseBranch == "" {
		c.Targets.Git.BaseBranch = "main"
	}
}

func normalizeTarget(t *TargetConfig, name string) *TargetConfig {
	if t == nil || strings.TrimSpace(t.URL) == "" {
		return nil
	}
	t.URL = strings.TrimSpace(t.URL)
	if t.Name == "" {
		t.Name = name
	}
	if t.Protocol == "" {
		t.Protocol = "mcp"
	}
	if t.Auth.Type == "" {
		t.Auth.Type = "none"
	}
	t.RESTURL = strings.TrimRight(t.RESTURL, "/")
	t.WebURL = strings.TrimRight(t.WebURL, "/")
	return t
}

// ToolName returns the configured tool name for an operation, or def.
func (t *TargetConfig) ToolName(operation, def string) string {
	if t != nil {
		if name := t.Tools[operation]; name != "" {
			return name
		}
	}
	return def
}

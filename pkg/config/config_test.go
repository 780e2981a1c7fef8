package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Server.Port != 8080 {
		t.Errorf("default server.port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Transport.Timeout != 30*time.Second {
		t.Errorf("default transport.timeout = %v, want 30s", cfg.Transport.Timeout)
	}
	if cfg.Transport.MaxRetries != 2 {
		t.Errorf("default transport.max_retries = %d, want 2", cfg.Transport.MaxRetries)
	}
	if cfg.Attachments.CacheTTL != 5*time.Minute {
		t.Errorf("default attachments.cache_ttl = %v, want 5m", cfg.Attachments.CacheTTL)
	}
	if cfg.Attachments.UploadTimeout != 30*time.Second {
		t.Errorf("default attachments.upload_timeout = %v, want 30s", cfg.Attachments.UploadTimeout)
	}
	if cfg.Targets.Jira != nil || cfg.Targets.Wiki != nil || cfg.Targets.Git != nil {
		t.Error("no target should be configured by default")
	}
	if !cfg.Observability.Metrics.Enabled {
		t.Error("metrics should be enabled by default")
	}
}

func TestLoadFromYAML(t *testing.T) {
	yamlContent := `
transport:
  timeout: 10s
  max_retries: 3
  initial_backoff: 100ms
  max_backoff: 1s
targets:
  jira:
    url: http://jira-mcp:9000/mcp
    rest_url: https://acme.atlassian.net/
    web_url: https://acme.atlassian.net
    auth:
      type: basic
      username: bot@acme.io
      token: jira-token
    rate_limit: 5
    burst: 2
  wiki:
    url: http://wiki-mcp:9001/mcp
    auth:
      type: jwt
      secret: s3cret
      issuer: workbridge
      audience: wiki
      ttl: 2m
  git:
    url: http://github-mcp:9002/mcp
    owner: acme
    repo: storefront
    tools:
      create_branch: gh_create_branch
attachments:
  cache_ttl: 1m
  cache_size: 8
`
	tmpFile := writeTemp(t, "config-*.yaml", yamlContent)

	cfg, err := Load(tmpFile)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Transport.Timeout != 10*time.Second {
		t.Errorf("transport.timeout = %v, want 10s", cfg.Transport.Timeout)
	}
	if cfg.Transport.MaxRetries != 3 {
		t.Errorf("transport.max_retries = %d, want 3", cfg.Transport.MaxRetries)
	}

	jira := cfg.Targets.Jira
	if jira == nil {
		t.Fatal("targets.jira should be set")
	}
	if jira.Name != "jira" {
		t.Errorf("targets.jira.name = %q, want filled from key", jira.Name)
	}
	if jira.Protocol != "mcp" {
		t.Errorf("targets.jira.protocol = %q, want default mcp", jira.Protocol)
	}
	if jira.RESTURL != "https://acme.atlassian.net" {
		t.Errorf("targets.jira.rest_url = %q, want trailing slash trimmed", jira.RESTURL)
	}
	if jira.Auth.Type != "basic" || jira.Auth.Username != "bot@acme.io" {
		t.Errorf("targets.jira.auth = %+v", jira.Auth)
	}
	if jira.RateLimit != 5 || jira.Burst != 2 {
		t.Errorf("targets.jira rate = %v/%d, want 5/2", jira.RateLimit, jira.Burst)
	}

	wiki := cfg.Targets.Wiki
	if wiki == nil {
		t.Fatal("targets.wiki should be set")
	}
	if wiki.Auth.TTL != 2*time.Minute {
		t.Errorf("targets.wiki.auth.ttl = %v, want 2m", wiki.Auth.TTL)
	}
	if len(wiki.Quirks) != 2 {
		t.Fatalf("targets.wiki.quirks = %d rules, want default 2", len(wiki.Quirks))
	}
	if got := wiki.Quirks[0].Drop; len(got) != 2 || got[0] != "content_format" || got[1] != "enable_heading_anchors" {
		t.Errorf("default wiki quirk drops %v", got)
	}

	git := cfg.Targets.Git
	if git == nil {
		t.Fatal("targets.git should be set")
	}
	if git.BaseBranch != "main" {
		t.Errorf("targets.git.base_branch = %q, want default main", git.BaseBranch)
	}
	if got := git.ToolName("create_branch", "create_branch"); got != "gh_create_branch" {
		t.Errorf("ToolName(create_branch) = %q, want override", got)
	}
	if got := git.ToolName("get_branch", "get_branch"); got != "get_branch" {
		t.Errorf("ToolName(get_branch) = %q, want default", got)
	}
}

func TestBlankTargetIsAbsent(t *testing.T) {
	yamlContent := `
targets:
  jira:
    url: http://jira-mcp:9000/mcp
  git:
    url: "   "
    owner: acme
`
	cfg, err := Load(writeTemp(t, "config-*.yaml", yamlContent))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Targets.Git != nil {
		t.Errorf("blank git target should normalize to nil, got %+v", cfg.Targets.Git)
	}
	if cfg.Targets.Wiki != nil {
		t.Error("undeclared wiki target should be nil")
	}
	if _, ok := cfg.Targets.All()["git"]; ok {
		t.Error("All() should not include absent targets")
	}
}

func TestEnvOverride(t *testing.T) {
	yamlContent := `
targets:
  jira:
    url: http://from-yaml:9000/mcp
server:
  port: 9090
`
	tmpFile := writeTemp(t, "config-*.yaml", yamlContent)

	t.Setenv("WORKBRIDGE_JIRA_URL", "http://from-env:9000/mcp")
	t.Setenv("WORKBRIDGE_JIRA_TOKEN", "env-token")
	t.Setenv("WORKBRIDGE_GIT_URL", "http://github-mcp:9002/mcp")
	t.Setenv("WORKBRIDGE_GIT_REPO", "acme/storefront")
	t.Setenv("WORKBRIDGE_PORT", "7070")
	t.Setenv("WORKBRIDGE_MAX_RETRIES", "4")

	cfg, err := Load(tmpFile)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Targets.Jira.URL != "http://from-env:9000/mcp" {
		t.Errorf("targets.jira.url = %q, want env override", cfg.Targets.Jira.URL)
	}
	if cfg.Targets.Jira.Auth.Type != "bearer" || cfg.Targets.Jira.Auth.Token != "env-token" {
		t.Errorf("targets.jira.auth = %+v, want bearer env-token", cfg.Targets.Jira.Auth)
	}
	if cfg.Targets.Git == nil || cfg.Targets.Git.Owner != "acme" || cfg.Targets.Git.Repo != "storefront" {
		t.Errorf("targets.git = %+v, want created from env", cfg.Targets.Git)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("server.port = %d, want env override 7070", cfg.Server.Port)
	}
	if cfg.Transport.MaxRetries != 4 {
		t.Errorf("transport.max_retries = %d, want env override 4", cfg.Transport.MaxRetries)
	}
}

func TestTargetsJSONEnv(t *testing.T) {
	t.Setenv("WORKBRIDGE_TARGETS", `{"wiki":{"url":"http://wiki:9001/mcp","protocol":"jsonrpc","quirks":[{"method":"tools/call","drop":["labels"]}]}}`)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	wiki := cfg.Targets.Wiki
	if wiki == nil {
		t.Fatal("targets.wiki should be set from WORKBRIDGE_TARGETS")
	}
	if wiki.Protocol != "jsonrpc" {
		t.Errorf("protocol = %q, want jsonrpc", wiki.Protocol)
	}
	if len(wiki.Quirks) != 1 || wiki.Quirks[0].Drop[0] != "labels" {
		t.Errorf("explicit quirks should replace defaults, got %+v", wiki.Quirks)
	}
}

func TestTargetsJSONEnv_Invalid(t *testing.T) {
	t.Setenv("WORKBRIDGE_TARGETS", `{not json`)
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for malformed WORKBRIDGE_TARGETS")
	}
}

func TestFileReference(t *testing.T) {
	tokenFile := writeTemp(t, "token-*", "  file-token\n")
	secretFile := writeTemp(t, "secret-*", "file-secret\n")

	yamlContent := `
targets:
  jira:
    url: http://jira:9000/mcp
    auth:
      type: bearer
      token_file: ` + tokenFile + `
  wiki:
    url: http://wiki:9001/mcp
    auth:
      type: jwt
      secret_file: ` + secretFile + `
`
	cfg, err := Load(writeTemp(t, "config-*.yaml", yamlContent))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Targets.Jira.Auth.Token != "file-token" {
		t.Errorf("jira token = %q, want trimmed file content", cfg.Targets.Jira.Auth.Token)
	}
	if cfg.Targets.Wiki.Auth.Secret != "file-secret" {
		t.Errorf("wiki secret = %q, want file content", cfg.Targets.Wiki.Auth.Secret)
	}
}

func TestFileReference_Missing(t *testing.T) {
	yamlContent := `
targets:
  jira:
    url: http://jira:9000/mcp
    auth:
      type: bearer
      token_file: /nonexistent/token
`
	_, err := Load(writeTemp(t, "config-*.yaml", yamlContent))
	if err == nil || !strings.Contains(err.Error(), "targets.jira.auth.token_file") {
		t.Errorf("expected token_file error, got %v", err)
	}
}

func TestValidation(t *testing.T) {
	target := func() *TargetConfig {
		return &TargetConfig{URL: "http://jira:9000/mcp"}
	}

	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{
			name:    "invalid port",
			modify:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "server.port must be > 0",
		},
		{
			name:    "negative upload timeout",
			modify:  func(c *Config) { c.Attachments.UploadTimeout = -time.Second },
			wantErr: "attachments.upload_timeout",
		},
		{
			name:    "too many retries",
			modify:  func(c *Config) { c.Transport.MaxRetries = 50 },
			wantErr: "transport.max_retries must be between 0 and 10",
		},
		{
			name: "bad scheme",
			modify: func(c *Config) {
				c.Targets.Jira = target()
				c.Targets.Jira.URL = "ftp://jira"
			},
			wantErr: "targets.jira.url",
		},
		{
			name: "unknown protocol",
			modify: func(c *Config) {
				c.Targets.Jira = target()
				c.Targets.Jira.Protocol = "grpc"
			},
			wantErr: "targets.jira.protocol must be",
		},
		{
			name: "bearer without token",
			modify: func(c *Config) {
				c.Targets.Jira = target()
				c.Targets.Jira.Auth.Type = "bearer"
			},
			wantErr: "targets.jira.auth.token is required",
		},
		{
			name: "unknown auth type",
			modify: func(c *Config) {
				c.Targets.Jira = target()
				c.Targets.Jira.Auth.Type = "kerberos"
			},
			wantErr: "targets.jira.auth.type must be one of",
		},
		{
			name: "git without repo",
			modify: func(c *Config) {
				c.Targets.Git = &TargetConfig{URL: "http://git:9002/mcp"}
			},
			wantErr: "targets.git.owner and targets.git.repo are required",
		},
		{
			name: "empty quirk",
			modify: func(c *Config) {
				c.Targets.Wiki = &TargetConfig{URL: "http://wiki:9001/mcp", Quirks: []QuirkConfig{{Tool: "x"}}}
			},
			wantErr: "targets.wiki.quirks[0] must drop or set",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.modify(&cfg)
			cfg.Normalize()
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidation_DefaultsAreValid(t *testing.T) {
	cfg := Defaults()
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}

func TestFileDiscovery(t *testing.T) {
	envFile := writeTemp(t, "envconfig-*.yaml", `
targets:
  wiki:
    url: http://env-config:9001/mcp
`)
	t.Setenv("WORKBRIDGE_CONFIG", envFile)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(WORKBRIDGE_CONFIG) error: %v", err)
	}
	if cfg.Targets.Wiki == nil || cfg.Targets.Wiki.URL != "http://env-config:9001/mcp" {
		t.Errorf("WORKBRIDGE_CONFIG: wiki target = %+v", cfg.Targets.Wiki)
	}

	t.Setenv("WORKBRIDGE_CONFIG", "")
	cfg, err = Load("")
	if err != nil {
		t.Fatalf("Load(no file) error: %v", err)
	}
	if cfg.Targets.Wiki != nil {
		t.Error("no file: wiki target should be absent")
	}
}

func writeTemp(t *testing.T, pattern, content string) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), pattern)
	if err != nil {
		t.Fatalf("creating temp file: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		t.Fatalf("writing temp file: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("closing temp file: %v", err)
	}
	return f.Name()
}

func TestServerAuth(t *testing.T) {
	secretFile := writeTemp(t, "jwt-*", "signing-secret\n")
	yamlContent := `
server:
  auth:
    api_keys: [from-file]
    jwt_secret_file: ` + secretFile + `
    jwt_issuer: designer
    requests_per_minute: 30
`
	t.Setenv("WORKBRIDGE_API_KEYS", "k1, k2,,")

	cfg, err := Load(writeTemp(t, "config-*.yaml", yamlContent))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	a := cfg.Server.Auth
	if len(a.APIKeys) != 2 || a.APIKeys[0] != "k1" || a.APIKeys[1] != "k2" {
		t.Errorf("api_keys = %v, want env override [k1 k2]", a.APIKeys)
	}
	if a.JWTSecret != "signing-secret" || a.JWTIssuer != "designer" {
		t.Errorf("jwt = %q/%q", a.JWTSecret, a.JWTIssuer)
	}
	if a.RequestsPerMinute != 30 || !a.Enabled() {
		t.Errorf("auth = %+v", a)
	}
	if Defaults().Server.Auth.Enabled() {
		t.Error("server auth should be disabled by default")
	}
}

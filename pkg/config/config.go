// Package config provides unified configuration for workbridge.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (WORKBRIDGE_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Normalization (blank targets become absent)
//  6. Validation
package config

import "time"

// Config holds all configuration for workbridge.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Log           LogConfig           `yaml:"log"`
	Transport     TransportConfig     `yaml:"transport"`
	Targets       TargetsConfig       `yaml:"targets"`
	Attachments   AttachmentsConfig   `yaml:"attachments"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds settings for the optional serve command.
type ServerConfig struct {
	Port         int           `yaml:"port"`          // default: 8080
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"` // default: 300s

	Auth ServerAuthConfig `yaml:"auth"`
}

// ServerAuthConfig protects the serve endpoint. With no keys and no JWT
// secret every caller is admitted as "anonymous".
type ServerAuthConfig struct {
	APIKeys []string `yaml:"api_keys"`

	// HS256 bearer tokens.
	JWTSecret     string `yaml:"jwt_secret"`
	JWTSecretFile string `yaml:"jwt_secret_file"`
	JWTIssuer     string `yaml:"jwt_issuer"`
	JWTAudience   string `yaml:"jwt_audience"`

	// RequestsPerMinute caps runs per caller. Zero disables the limit.
	RequestsPerMinute int `yaml:"requests_per_minute"`
}

// Enabled reports whether any credential is configured.
func (a ServerAuthConfig) Enabled() bool {
	return len(a.APIKeys) > 0 || a.JWTSecret != ""
}

// LogConfig holds log level, format and debug categories.
type LogConfig struct {
	Level  string `yaml:"level"`  // default: INFO
	Format string `yaml:"format"` // "text" or "json", default: text
	Debug  string `yaml:"debug"`  // comma separated categories
}

// TransportConfig holds the JSON-RPC transport defaults shared by all targets.
type TransportConfig struct {
	Timeout        time.Duration `yaml:"timeout"`         // per attempt, default: 30s
	StreamTimeout  time.Duration `yaml:"stream_timeout"`  // long-running tools, default: 120s
	MaxRetries     int           `yaml:"max_retries"`     // default: 2
	InitialBackoff time.Duration `yaml:"initial_backoff"` // default: 200ms
	MaxBackoff     time.Duration `yaml:"max_backoff"`     // default: 2s
}

// TargetsConfig holds the three remote systems. A nil target is not
// configured; the orchestrator branches on presence.
type TargetsConfig struct {
	Jira *TargetConfig `yaml:"jira" json:"jira,omitempty"`
	Wiki *TargetConfig `yaml:"wiki" json:"wiki,omitempty"`
	Git  *TargetConfig `yaml:"git" json:"git,omitempty"`
}

// TargetConfig describes one remote system reachable over JSON-RPC.
type TargetConfig struct {
	// Name identifies the target in logs, metrics and errors. Filled from
	// the targets key when empty.
	Name string `yaml:"name" json:"name,omitempty"`

	// URL is the JSON-RPC endpoint.
	URL string `yaml:"url" json:"url"`

	// Protocol is "mcp" (initialize handshake, tools/call) or "jsonrpc"
	// (plain JSON-RPC 2.0). Default: mcp.
	Protocol string `yaml:"protocol" json:"protocol,omitempty"`

	// RESTURL is the native REST API base used for direct attachment uploads.
	RESTURL string `yaml:"rest_url" json:"rest_url,omitempty"`

	// WebURL is the browser base URL used to build links when the remote
	// payload does not carry one.
	WebURL string `yaml:"web_url" json:"web_url,omitempty"`

	Auth    AuthConfig        `yaml:"auth" json:"auth"`
	Headers map[string]string `yaml:"headers" json:"headers,omitempty"`

	// Timeout overrides transport.timeout for this target.
	Timeout time.Duration `yaml:"timeout" json:"-"`

	// RateLimit caps requests per second to this target. Zero disables pacing.
	RateLimit float64 `yaml:"rate_limit" json:"rate_limit,omitempty"`
	Burst     int     `yaml:"burst" json:"burst,omitempty"`

	// Quirks lists per-target request rewrites applied before serialization.
	Quirks []QuirkConfig `yaml:"quirks" json:"quirks,omitempty"`

	// Tools overrides remote tool names by operation (e.g. "create_page").
	Tools map[string]string `yaml:"tools" json:"tools,omitempty"`

	// LongRunningTools use transport.stream_timeout instead of timeout.
	LongRunningTools []string `yaml:"long_running_tools" json:"long_running_tools,omitempty"`

	// Git targets only.
	Owner      string `yaml:"owner" json:"owner,omitempty"`
	Repo       string `yaml:"repo" json:"repo,omitempty"`
	BaseBranch string `yaml:"base_branch" json:"base_branch,omitempty"`
}

// AuthConfig describes the credential presented to a target.
type AuthConfig struct {
	// Type is "none", "bearer", "basic", "jwt" or "oauth_client_credentials".
	Type string `yaml:"type" json:"type,omitempty"`

	Token     string `yaml:"token" json:"token,omitempty"`
	TokenFile string `yaml:"token_file" json:"token_file,omitempty"`
	Username  string `yaml:"username" json:"username,omitempty"`

	// JWT signing.
	Secret     string        `yaml:"secret" json:"secret,omitempty"`
	SecretFile string        `yaml:"secret_file" json:"secret_file,omitempty"`
	Issuer     string        `yaml:"issuer" json:"issuer,omitempty"`
	Subject    string        `yaml:"subject" json:"subject,omitempty"`
	Audience   string        `yaml:"audience" json:"audience,omitempty"`
	TTL        time.Duration `yaml:"ttl" json:"-"`

	// OAuth client credentials.
	TokenURL         string   `yaml:"token_url" json:"token_url,omitempty"`
	ClientID         string   `yaml:"client_id" json:"client_id,omitempty"`
	ClientSecret     string   `yaml:"client_secret" json:"client_secret,omitempty"`
	ClientSecretFile string   `yaml:"client_secret_file" json:"client_secret_file,omitempty"`
	Scopes           []string `yaml:"scopes" json:"scopes,omitempty"`
}

// QuirkConfig strips or rewrites request fields a target is known to reject.
// Method and Tool select the calls the rule applies to; an empty Tool
// matches every tool. Paths use dot notation relative to the tool
// arguments (or to params for non-tool methods).
type QuirkConfig struct {
	Method string         `yaml:"method" json:"method,omitempty"`
	Tool   string         `yaml:"tool" json:"tool,omitempty"`
	Drop   []string       `yaml:"drop" json:"drop,omitempty"`
	Set    map[string]any `yaml:"set" json:"set,omitempty"`
}

// AttachmentsConfig holds image attachment settings.
type AttachmentsConfig struct {
	CacheTTL      time.Duration `yaml:"cache_ttl"`      // default: 5m
	CacheSize     int           `yaml:"cache_size"`     // default: 32
	FetchTimeout  time.Duration `yaml:"fetch_timeout"`  // default: 15s
	UploadTimeout time.Duration `yaml:"upload_timeout"` // direct REST upload, default: 30s
	MaxBytes      int64         `yaml:"max_bytes"`      // default: 10MiB
}

// ObservabilityConfig holds monitoring settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 300 * time.Second,
		},
		Log: LogConfig{
			Level:  "INFO",
			Format: "text",
		},
		Transport: TransportConfig{
			Timeout:        30 * time.Second,
			StreamTimeout:  120 * time.Second,
			MaxRetries:     2,
			InitialBackoff: 200 * time.Millisecond,
			MaxBackoff:     2 * time.Second,
		},
		Attachments: AttachmentsConfig{
			CacheTTL:      5 * time.Minute,
			CacheSize:     32,
			FetchTimeout:  15 * time.Second,
			UploadTimeout: 30 * time.Second,
			MaxBytes:      10 << 20,
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}

// DefaultWikiQuirks drops the optional page fields that the Confluence MCP
// server rejects.
func DefaultWikiQuirks() []QuirkConfig {
	return []QuirkConfig{
		{Method: "tools/call", Tool: "confluence_create_page", Drop: []string{"content_format", "enable_heading_anchors"}},
		{Method: "tools/call", Tool: "confluence_update_page", Drop: []string{"content_format", "enable_heading_anchors"}},
	}
}

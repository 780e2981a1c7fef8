package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be > 0, got %d", c.Server.Port))
	}

	if c.Server.Auth.RequestsPerMinute < 0 {
		errs = append(errs, fmt.Errorf("server.auth.requests_per_minute must be >= 0"))
	}

	if c.Transport.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("transport.timeout must be > 0"))
	}
	if c.Transport.MaxRetries < 0 || c.Transport.MaxRetries > 10 {
		errs = append(errs, fmt.Errorf("transport.max_retries must be between 0 and 10, got %d", c.Transport.MaxRetries))
	}
	if c.Transport.MaxBackoff < c.Transport.InitialBackoff {
		errs = append(errs, fmt.Errorf("transport.max_backoff must be >= transport.initial_backoff"))
	}

	if c.Attachments.CacheTTL <= 0 {
		errs = append(errs, fmt.Errorf("attachments.cache_ttl must be > 0"))
	}
	if c.Attachments.CacheSize <= 0 {
		errs = append(errs, fmt.Errorf("attachments.cache_size must be > 0"))
	}
	if c.Attachments.FetchTimeout < 0 || c.Attachments.UploadTimeout < 0 {
		errs = append(errs, fmt.Errorf("attachments.fetch_timeout and attachments.upload_timeout must be >= 0"))
	}

	for name, t := range c.Targets.All() {
		errs = append(errs, validateTarget(name, t)...)
	}

	if g := c.Targets.Git; g != nil && (g.Owner == "" || g.Repo == "") {
		errs = append(errs, fmt.Errorf("targets.git.owner and targets.git.repo are required when targets.git is set"))
	}

	return errors.Join(errs...)
}

func validateTarget(name string, t *TargetConfig) []error {
	var errs []error

	if err := validateURL(t.URL); err != nil {
		errs = append(errs, fmt.Errorf("targets.%s.url: %w", name, err))
	}
	if t.RESTURL != "" {
		if err := validateURL(t.RESTURL); err != nil {
			errs = append(errs, fmt.Errorf("targets.%s.rest_url: %w", name, err))
		}
	}

	switch t.Protocol {
	case "mcp", "jsonrpc":
		// valid
	default:
		errs = append(errs, fmt.Errorf("targets.%s.protocol must be \"mcp\" or \"jsonrpc\", got %q", name, t.Protocol))
	}

	a := t.Auth
	switch a.Type {
	case "none":
	case "bearer":
		if a.Token == "" {
			errs = append(errs, fmt.Errorf("targets.%s.auth.token is required for type bearer", name))
		}
	case "basic":
		if a.Username == "" || a.Token == "" {
			errs = append(errs, fmt.Errorf("targets.%s.auth.username and token are required for type basic", name))
		}
	case "jwt":
		if a.Secret == "" {
			errs = append(errs, fmt.Errorf("targets.%s.auth.secret is required for type jwt", name))
		}
	case "oauth_client_credentials":
		if a.TokenURL == "" || a.ClientID == "" || a.ClientSecret == "" {
			errs = append(errs, fmt.Errorf("targets.%s.auth.token_url, client_id and client_secret are required for type oauth_client_credentials", name))
		}
	default:
		errs = append(errs, fmt.Errorf("targets.%s.auth.type must be one of none, bearer, basic, jwt, oauth_client_credentials, got %q", name, a.Type))
	}

	if t.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("targets.%s.rate_limit must be >= 0", name))
	}

	for i, q := range t.Quirks {
		if len(q.Drop) == 0 && len(q.Set) == 0 {
			errs = append(errs, fmt.Errorf("targets.%s.quirks[%d] must drop or set at least one field", name, i))
		}
	}

	return errs
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("host is required")
	}
	return nil
}

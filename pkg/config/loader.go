package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, WORKBRIDGE_CONFIG env, ./workbridge.yaml, /etc/workbridge/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Normalization
//  6. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	cfg.Normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path. Returns empty string if
// no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}

	if envPath := os.Getenv("WORKBRIDGE_CONFIG"); envPath != "" {
		return envPath
	}

	candidates := []string{
		"workbridge.yaml",
		"/etc/workbridge/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps environment variables to config fields.
// WORKBRIDGE_TARGETS replaces the targets block wholesale; the per-target
// variables are applied on top of it.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("WORKBRIDGE_TARGETS"); v != "" {
		var targets TargetsConfig
		if err := json.Unmarshal([]byte(v), &targets); err != nil {
			return fmt.Errorf("parsing WORKBRIDGE_TARGETS: %w", err)
		}
		cfg.Targets = targets
	}

	applyTargetEnv(&cfg.Targets.Jira, "JIRA")
	applyTargetEnv(&cfg.Targets.Wiki, "WIKI")
	applyTargetEnv(&cfg.Targets.Git, "GIT")

	if v := os.Getenv("WORKBRIDGE_GIT_REPO"); v != "" && cfg.Targets.Git != nil {
		owner, repo, ok := strings.Cut(v, "/")
		if ok {
			cfg.Targets.Git.Owner = owner
			cfg.Targets.Git.Repo = repo
		} else {
			slog.Warn("ignoring WORKBRIDGE_GIT_REPO, expected owner/repo", "value", v)
		}
	}

	if v := os.Getenv("WORKBRIDGE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("WORKBRIDGE_API_KEYS"); v != "" {
		cfg.Server.Auth.APIKeys = nil
		for _, k := range strings.Split(v, ",") {
			if k = strings.TrimSpace(k); k != "" {
				cfg.Server.Auth.APIKeys = append(cfg.Server.Auth.APIKeys, k)
			}
		}
	}
	if v := os.Getenv("WORKBRIDGE_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Transport.MaxRetries = n
		}
	}
	return nil
}

// applyTargetEnv applies WORKBRIDGE_<NAME>_URL and WORKBRIDGE_<NAME>_TOKEN.
// A URL creates the target if the file did not declare it.
func applyTargetEnv(target **TargetConfig, name string) {
	url := os.Getenv("WORKBRIDGE_" + name + "_URL")
	token := os.Getenv("WORKBRIDGE_" + name + "_TOKEN")

	if url != "" {
		if *target == nil {
			*target = &TargetConfig{}
		}
		(*target).URL = url
	}
	if token != "" && *target != nil {
		(*target).Auth.Token = token
		if (*target).Auth.Type == "" || (*target).Auth.Type == "none" {
			(*target).Auth.Type = "bearer"
		}
	}
}

// resolveFileReferences reads _file fields and populates the corresponding
// value fields when those are empty.
func resolveFileReferences(cfg *Config) error {
	if a := &cfg.Server.Auth; a.JWTSecretFile != "" && a.JWTSecret == "" {
		val, err := readSecretFile(a.JWTSecretFile)
		if err != nil {
			return fmt.Errorf("server.auth.jwt_secret_file: %w", err)
		}
		a.JWTSecret = val
	}

	for name, t := range cfg.Targets.All() {
		a := &t.Auth
		refs := []struct {
			field string
			file  string
			dst   *string
		}{
			{"auth.token_file", a.TokenFile, &a.Token},
			{"auth.secret_file", a.SecretFile, &a.Secret},
			{"auth.client_secret_file", a.ClientSecretFile, &a.ClientSecret},
		}
		for _, ref := range refs {
			if ref.file == "" || *ref.dst != "" {
				continue
			}
			val, err := readSecretFile(ref.file)
			if err != nil {
				return fmt.Errorf("targets.%s.%s: %w", name, ref.field, err)
			}
			*ref.dst = val
		}
	}
	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rhuss/workbridge/pkg/config"
)

const redacted = "REDACTED"

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	check := &cobra.Command{
		Use:   "check",
		Short: "Validate configuration and list the configured targets",
		RunE:  runConfigCheck,
	}
	check.Flags().Bool("show", false, "print the effective configuration with secrets redacted")
	cmd.AddCommand(check)
	return cmd
}

func runConfigCheck(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	targets := cfg.Targets.All()
	fmt.Fprintln(out, "configuration OK")
	for _, name := range []string{config.TargetJira, config.TargetWiki, config.TargetGit} {
		t, ok := targets[name]
		if !ok {
			fmt.Fprintf(out, "  %-5s not configured\n", name)
			continue
		}
		fmt.Fprintf(out, "  %-5s %s (%s, auth %s)\n", name, t.URL, t.Protocol, t.Auth.Type)
	}

	if show, _ := cmd.Flags().GetBool("show"); show {
		data, err := yaml.Marshal(redact(*cfg))
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "---")
		_, _ = out.Write(data)
	}
	return nil
}

// redact returns a copy of cfg with credentials masked.
func redact(cfg config.Config) config.Config {
	mask := func(t *config.TargetConfig) *config.TargetConfig {
		if t == nil {
			return nil
		}
		c := *t
		for _, s := range []*string{&c.Auth.Token, &c.Auth.Secret, &c.Auth.ClientSecret} {
			if *s != "" {
				*s = redacted
			}
		}
		if len(c.Headers) > 0 {
			h := make(map[string]string, len(c.Headers))
			for k := range c.Headers {
				h[k] = redacted
			}
			c.Headers = h
		}
		return &c
	}
	cfg.Targets.Jira = mask(cfg.Targets.Jira)
	cfg.Targets.Wiki = mask(cfg.Targets.Wiki)
	cfg.Targets.Git = mask(cfg.Targets.Git)
	return cfg
}

package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/rhuss/workbridge/pkg/config"
	"github.com/rhuss/workbridge/pkg/debug"
	"github.com/rhuss/workbridge/pkg/rpc"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "workbridge",
		Short:         "Create linked tickets, plans and branches for a design component",
		Version:       rpc.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	persistent := cmd.PersistentFlags()
	persistent.String("config", "", "path to the config file (default: $WORKBRIDGE_CONFIG, ./workbridge.yaml)")
	persistent.String("log-level", "", "log level (DEBUG|INFO|WARN|ERROR), overrides log.level")
	persistent.String("debug", "", "comma separated debug categories, overrides log.debug")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// loadConfig loads the configuration and initializes logging from it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	if cats, _ := cmd.Flags().GetString("debug"); cats != "" {
		cfg.Log.Debug = cats
	}
	debug.Init(debug.Options{
		Categories: cfg.Log.Debug,
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cmd.ErrOrStderr(),
	})
	slog.Debug("configuration loaded", "targets", fmt.Sprint(len(cfg.Targets.All())))
	return cfg, nil
}

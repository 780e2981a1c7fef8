package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/rhuss/workbridge/pkg/app"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve POST /v1/workitems until interrupted",
		RunE:  runServe,
	}
	cmd.Flags().Int("port", 0, "listen port, overrides server.port")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if port, _ := cmd.Flags().GetInt("port"); port > 0 {
		cfg.Server.Port = port
	}

	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	return a.Server().ListenAndServe()
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rhuss/workbridge/pkg/api"
	"github.com/rhuss/workbridge/pkg/app"
	"github.com/rhuss/workbridge/pkg/orchestrator"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one work item and print the orchestration result",
		RunE:  runWorkItem,
	}
	cmd.Flags().StringP("request", "r", "-", "work item JSON file, - for stdin")
	cmd.Flags().String("run-id", "", "run identifier (default: generated)")
	return cmd
}

func runWorkItem(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	path, _ := cmd.Flags().GetString("request")
	req, err := readRequest(cmd.InOrStdin(), path)
	if err != nil {
		return err
	}
	if err := api.ValidateRequest(req, api.DefaultValidationConfig()); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}

	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	defer a.Close(ctx)

	runID, _ := cmd.Flags().GetString("run-id")
	if runID == "" {
		runID = api.NewRunID()
	}
	ctx = orchestrator.ContextWithRunID(ctx, runID)
	result := a.Run(ctx, req)

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(api.NewEnvelope(runID, result))
}

func readRequest(stdin io.Reader, path string) (*api.WorkItemRequest, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening request: %w", err)
		}
		defer f.Close()
		r = f
	}

	var req api.WorkItemRequest
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return nil, fmt.Errorf("decoding request: %w", err)
	}
	return &req, nil
}

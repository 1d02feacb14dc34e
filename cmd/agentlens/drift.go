// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/agentlens/internal/quality"
)

var driftCmd = &cobra.Command{
	Use:   "drift [state-file]",
	Short: "Score how far an answer drifts from its question",
	Long: `Drift reads a state-shaped mapping (question, draft, final, citations,
documents) from a JSON or YAML file, or from stdin when no file is given,
and prints the drift report. Unknown keys are ignored and missing keys read
as empty.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDrift,
}

func init() {
	rootCmd.AddCommand(driftCmd)
}

func runDrift(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}

	var in io.Reader = cmd.InOrStdin()
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening state file: %w", err)
		}
		defer f.Close()
		in = f
	}

	state, err := readState(in)
	if err != nil {
		return err
	}
	return write(cmd.OutOrStdout(), format, quality.DriftFromMap(state))
}

// readState decodes a mapping from JSON or YAML. YAML is a superset of JSON,
// so one decoder serves both.
func readState(r io.Reader) (map[string]any, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading state: %w", err)
	}
	var state map[string]any
	if err := yaml.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parsing state: %w", err)
	}
	return state, nil
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.yaml.in/yaml/v3"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
)

// outputFormat returns the --format value, rejecting unknown formats.
func outputFormat(cmd *cobra.Command) (string, error) {
	format, _ := cmd.Flags().GetString("format")
	switch format {
	case formatJSON, formatYAML:
		return format, nil
	default:
		return "", fmt.Errorf("unsupported format %q: use json or yaml", format)
	}
}

// write renders v to w as indented JSON or as a YAML document.
func write(w io.Writer, format string, v any) error {
	if format == formatYAML {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encoding yaml: %w", err)
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newLogger returns a development logger at debug level when verbose, and a
// production JSON logger at info level otherwise. Both write to stderr.
func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// writeLine renders v as compact JSON on a single line.
func writeLine(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}

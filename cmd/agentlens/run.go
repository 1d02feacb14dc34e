// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pdiddy/agentlens/internal/events"
)

var runCmd = &cobra.Command{
	Use:   "run [question...]",
	Short: "Answer a question and print the final state",
	Long: `Run executes the research pipeline once and prints the run id and the
final state. The run fails only when no draft can be written, for example
when no model API key is configured.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

var streamCmd = &cobra.Command{
	Use:   "stream [question...]",
	Short: "Answer a question and print every trace record as it is emitted",
	Long: `Stream executes the research pipeline once and writes each trace record
as soon as it is emitted: one JSON object per line, or one YAML document per
record with --format yaml.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runStream,
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(streamCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	a, err := newApp(logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := a.emitter.Run(ctx, strings.Join(args, " "))
	if err != nil {
		return fmt.Errorf("run %s: %w", res.RunID, err)
	}
	return write(cmd.OutOrStdout(), format, res)
}

func runStream(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	a, err := newApp(logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	send := func(rec events.Record) error {
		if format == formatYAML {
			if _, err := fmt.Fprintln(out, "---"); err != nil {
				return err
			}
			return write(out, format, rec)
		}
		return writeLine(out, rec)
	}

	res, err := a.emitter.Stream(ctx, strings.Join(args, " "), send)
	if err != nil {
		return fmt.Errorf("run %s: %w", res.RunID, err)
	}
	return nil
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/agentlens/internal/pipeline"
	"github.com/pdiddy/agentlens/internal/telemetry"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Print the pipeline topology",
	Long: `Graph prints the nodes and edges of the research pipeline. The
verifier to researcher edge is labeled "retry if issues".`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := outputFormat(cmd)
		if err != nil {
			return err
		}
		a, err := newApp(logger)
		if err != nil {
			return err
		}
		defer a.Close()
		return write(cmd.OutOrStdout(), format, pipeline.SchemaFor(a.graph))
	},
}

var traceCmd = &cobra.Command{
	Use:   "trace <run-id>",
	Short: "Print the stored trace of a run",
	Long: `Trace prints the sub-runs (nodes, search and fetch calls, model calls)
of a stored run, paired from their start and end records. The id may also
be the id of one sub-run. Requires a trace database file (--db).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(s *telemetry.Store) (any, error) {
			return s.Trace(context.Background(), args[0]), nil
		})
	},
}

var analyticsCmd = &cobra.Command{
	Use:   "analytics <run-id>",
	Short: "Print latency and token usage of a stored run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(s *telemetry.Store) (any, error) {
			return s.Analytics(context.Background(), args[0]), nil
		})
	},
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List stored run ids, most recent first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		return withStore(cmd, func(s *telemetry.Store) (any, error) {
			return s.Runs(context.Background(), limit)
		})
	},
}

func init() {
	runsCmd.Flags().Int("limit", 20, "maximum number of runs to list")

	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(traceCmd)
	rootCmd.AddCommand(analyticsCmd)
	rootCmd.AddCommand(runsCmd)
}

// withStore opens the configured trace database, prints what fn returns and
// closes the database.
func withStore(cmd *cobra.Command, fn func(*telemetry.Store) (any, error)) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(viper.GetViper(), logger)
	if err != nil {
		return err
	}
	if cfg.Telemetry.DBPath == "" {
		return fmt.Errorf("no trace database configured: pass --db or set telemetry.db_path")
	}
	s, err := telemetry.Open(cfg.Telemetry, logger.Named("telemetry"))
	if err != nil {
		return err
	}
	defer s.Close()

	v, err := fn(s)
	if err != nil {
		return err
	}
	return write(cmd.OutOrStdout(), format, v)
}

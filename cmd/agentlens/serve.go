// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/agentlens/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the pipeline over HTTP and WebSocket",
	Long: `Serve starts the HTTP API:

  POST /api/run-agent          run once, return {run_id, final_state}
  GET  /api/trace/{run_id}     stored trace of a run
  GET  /api/analytics/{run_id} latency and token summary of a run
  POST /api/drift              drift report for a state-shaped JSON object
  GET  /api/graph-schema       pipeline topology
  GET  /ws/run                 send {"question": ...}, receive trace records
  GET  /metrics                prometheus metrics
  GET  /health                 liveness

The server stops gracefully on SIGINT or SIGTERM.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default :8000)")
	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := api.NewServer(api.Deps{
		Runs:    a.emitter,
		Traces:  a.store,
		Graph:   a.graph,
		Metrics: a.metrics.Handler(),
		Log:     logger.Named("api"),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(gctx, a.cfg.Server.Addr)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down", zap.NamedError("cause", context.Cause(gctx)))
		return nil
	})
	return g.Wait()
}

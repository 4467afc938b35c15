package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cuemby/queryrt/pkg/config"
	"github.com/cuemby/queryrt/pkg/engine"
	"github.com/cuemby/queryrt/pkg/log"
	"github.com/cuemby/queryrt/pkg/metrics"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start a query engine node and block until interrupted",
	Long: `serve opens the node's storage and transaction log, starts its
task scheduler, and, when --metrics-addr is set, serves Prometheus
metrics, with nothing submitted to it yet. It is meant for probing scheduler/engine diagnostics and
metrics against a live node; submitting actual work is left to demo,
dump and load.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir, _ := cmd.Flags().GetString("data-dir")
		nodeID, _ := cmd.Flags().GetString("node-id")
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}

		e, err := engine.New(engine.Options{
			Config:  config.Default(),
			DataDir: dataDir,
			NodeID:  nodeID,
		})
		if err != nil {
			return fmt.Errorf("start engine: %w", err)
		}

		errCh := make(chan error, 1)
		if metricsAddr != "" {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			go func() {
				log.Logger.Info().Str("addr", metricsAddr).Msg("metrics server listening")
				if err := http.ListenAndServe(metricsAddr, mux); err != nil {
					errCh <- err
				}
			}()
		}

		fmt.Printf("queryctl node %q running against %s. Press Ctrl+C to stop.\n", nodeID, dataDir)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case <-sigCh:
			fmt.Println("\nShutting down...")
		case err := <-errCh:
			fmt.Fprintf(os.Stderr, "\nmetrics server error: %v\n", err)
		}

		if err := e.Close(); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		fmt.Println("shutdown complete")
		return nil
	},
}

func init() {
	serveCmd.Flags().String("metrics-addr", "", "If set, serve Prometheus metrics on this address (e.g. :9090)")
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/processkit/trackersync/internal/daemon"
	"github.com/processkit/trackersync/internal/dashboard"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	GroupID: "advanced",
	Short:   "Serve the sync event feed and HTTP trigger",
	Long: `Start an HTTP server that broadcasts sync lifecycle events to WebSocket
clients and exposes a sync trigger.

Endpoints:
  ws://localhost:8080/ws                      event feed
  GET  /health                                liveness
  GET  /metrics                               Prometheus metrics
  GET  /api/stats                             running totals
  POST /api/processes/{id}/sync?workspace=&force_new=

WebSocket messages:
  sync_started, state_change, sync_warning, sync_complete, sync_failed,
  process_imported, stats

With --watch the process directory is imported continuously as well and
imports show up on the feed.`,
	Run: func(cmd *cobra.Command, args []string) {
		port, _ := cmd.Flags().GetInt("port")
		if !cmd.Flags().Changed("port") {
			port = cfg.Serve.Port
		}
		watch, _ := cmd.Flags().GetBool("watch")

		db := openStore()
		defer db.Close()

		server := dashboard.NewServer(&dashboard.Config{
			Port:        port,
			SyncTimeout: cfg.Serve.SyncTimeout,
			Logger:      newLogger("dashboard"),
		})
		server.SetSyncer(newSyncer(db, server.Handler()))

		if err := server.Start(); err != nil {
			exitf("Error: failed to start server: %v", err)
		}

		fmt.Printf("Server started on http://localhost:%d\n", port)
		fmt.Printf("WebSocket endpoint: ws://localhost:%d/ws\n", port)
		fmt.Println("\nPress Ctrl+C to stop...")

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		if watch {
			d, err := daemon.New(daemon.NewImporter(db, server.Handler(), newLogger("daemon")), cfg.Watch.Dir, &daemon.Config{
				DebounceInterval: cfg.Watch.Debounce,
				Logger:           newLogger("daemon"),
			})
			if err != nil {
				exitf("Error: %v", err)
			}
			go func() {
				if err := d.Start(ctx); err != nil {
					fmt.Fprintf(os.Stderr, "Watcher error: %v\n", err)
				}
			}()
			defer d.Stop()
		}

		<-ctx.Done()

		fmt.Println("\nShutting down server...")
		if err := server.Stop(); err != nil {
			exitf("Error during shutdown: %v", err)
		}
		fmt.Println("Server stopped")
	},
}

func init() {
	serveCmd.Flags().Int("port", 8080, "port to listen on (default: serve.port)")
	serveCmd.Flags().Bool("watch", false, "also import changed process files from watch.dir")
}

package commands

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dreamtide/veod/logger"
	"github.com/dreamtide/veod/server"
)

// ServeCmd starts the veod daemon: HTTP/WebSocket API plus the polling
// loops for in-flight jobs.
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the veod daemon",
	Long: `Start the veod daemon: the HTTP/WebSocket API for UI clients and the
polling loops that track in-flight generations.

Jobs persisted as in-flight from a previous run are resumed on startup.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		rt, err := openRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.close()

		if err := rt.bootstrap(ctx); err != nil {
			// Submissions will fail fast until the backend is reachable;
			// the job ledger stays available regardless
			logger.Warnw("Backend target not resolved", "error", err)
		}

		rt.service.Resume()

		srv := server.NewServer(rt.service, rt.store, rt.cfg.Server.Port, rt.cfg.Server.AllowedOrigins...)

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Run()
		}()

		select {
		case <-ctx.Done():
			logger.Infow("Shutting down")
			return srv.Shutdown(context.Background())
		case err := <-errCh:
			return err
		}
	},
}

package main

import (
	"context"
	"time"

	"bhavcopy-ingest/internal/jobs"
	"bhavcopy-ingest/internal/logger"
	"bhavcopy-ingest/internal/server"

	"github.com/spf13/cobra"
)

func newServeCmd(configPath *string) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP trigger API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := initializeSystem(*configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.close(context.WithoutCancel(ctx))

			sup := jobs.NewSupervisor(a.batchOrchestrator(), cfg.Jobs.Retention(), jobs.WithReporters(a.reporters))
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				if err := sup.Shutdown(shutdownCtx); err != nil {
					logger.Warn(shutdownCtx, "Jobs still running at exit", "error", err)
				}
			}()

			return server.New(cfg.Server, sup, a.dateOrchestrator()).Run(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides server.addr")
	return cmd
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/Jakar510/jakardb/internal/web"
	"github.com/spf13/cobra"
)

var (
	servePort int

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the table caches",
		Long: `Load every registered table, start the periodic refresh loops and
serve the JSON API. On SIGINT or SIGTERM the server stops accepting
requests and every cache writes its pending changes back before exit.`,
		RunE: runServe,
	}
)

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (overrides SERVER_PORT)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort > 0 {
		cfg.Server.Port = servePort
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := openPool(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	service, err := newService(pool, cfg)
	if err != nil {
		return err
	}

	// Cache loops outlive ctx so that the final flush happens in Close,
	// not as a side effect of the signal.
	jobCtx, cancelJobs := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelJobs()

	if err := service.Start(jobCtx); err != nil {
		_ = service.Close(context.WithoutCancel(ctx))
		return err
	}

	server := web.NewServer(service, cfg)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(jobCtx)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server stopped", "error", err)
		}
	case <-ctx.Done():
		slog.Info("shutting down...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}

	if err := service.Close(context.WithoutCancel(ctx)); err != nil {
		return err
	}
	cancelJobs()

	slog.Info("shutdown complete")
	return nil
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/telimart/telimart/internal/api"
	"github.com/telimart/telimart/internal/app"
	"github.com/telimart/telimart/internal/telemetry"
)

const readHeaderTimeout = 10 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string

	// Ready, when set, is called with the bound address once the server
	// accepts connections (for testing).
	Ready func(addr string)
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the record API",
		Long: `Serve the resource API over HTTP. Saving a record through PUT runs the
same on_update hook as "telimart save", and DELETE runs on_trash.

Endpoints:
  GET    /api/resource/IWO%20Number
  GET    /api/resource/IWO%20Number/{name}
  PUT    /api/resource/IWO%20Number/{name}
  DELETE /api/resource/IWO%20Number/{name}
  GET    /api/resource/IWO%20Number/{name}/shares
  GET    /healthz
  GET    /metrics

Traces are exported over OTLP/HTTP when otel.endpoint is configured.

Examples:
  telimart serve
  telimart serve --addr 127.0.0.1:9000 --config telimart.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides http.addr)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	rt, err := opts.bootstrap(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()
	logger := rt.logger

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupTracing(ctx, rt.cfg.OTel, app.Version)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to set up tracing", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Error("error flushing traces", "error", err)
		}
	}()

	addr := rt.cfg.HTTP.Addr
	if opts.Addr != "" {
		addr = opts.Addr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}

	handler := api.NewHandler(rt.docs, rt.store, rt.store, logger)
	srv := &http.Server{
		Handler:           api.NewRouter(handler, rt.metrics),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	bound := ln.Addr().String()
	logger.Info("server started", "addr", bound, "driver", rt.cfg.Database.Driver)
	fmt.Fprintf(cmd.OutOrStdout(), "Listening on %s\n", bound)
	if opts.Ready != nil {
		opts.Ready(bound)
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return WrapExitError(ExitFailure, "server error", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutting down", "timeout", rt.cfg.HTTP.ShutdownTimeout)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), rt.cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return WrapExitError(ExitFailure, "graceful shutdown failed", err)
	}

	logger.Info("server stopped gracefully")
	return nil
}

package cli

import (
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/telimart/telimart/internal/app"
	"github.com/telimart/telimart/internal/config"
	"github.com/telimart/telimart/internal/document"
	"github.com/telimart/telimart/internal/hooks"
	"github.com/telimart/telimart/internal/share"
	"github.com/telimart/telimart/internal/store"
	"github.com/telimart/telimart/internal/telemetry"
)

// runtime is the wired application behind every data command.
type runtime struct {
	cfg     config.Config
	logger  *slog.Logger
	store   *store.Store
	metrics *prometheus.Registry
	docs    *document.Service
}

// loadConfig resolves configuration from --config, the environment and
// --db, in that order.
func (o *RootOptions) loadConfig() (config.Config, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if o.Database != "" {
		cfg.Database.DSN = o.Database
	}
	return cfg, nil
}

// newLogger builds the command logger on stderr. --verbose forces debug.
func (o *RootOptions) newLogger(cmd *cobra.Command, cfg config.Log) (*slog.Logger, error) {
	level := cfg.Level
	if o.Verbose {
		level = "debug"
	}
	logger, err := telemetry.NewLogger(cmd.ErrOrStderr(), level, cfg.Format)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to configure logging", err)
	}
	return logger, nil
}

// bootstrap opens the store and wires the hook registry, the share
// reconciler and the document service. Callers must Close the runtime.
func (o *RootOptions) bootstrap(cmd *cobra.Command) (*runtime, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := o.newLogger(cmd, cfg.Log)
	if err != nil {
		return nil, err
	}

	logger.Debug("opening database", "driver", cfg.Database.Driver, "dsn", cfg.Database.DSN)
	st, err := store.OpenConfig(store.Config{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	events := hooks.NewRegistry(hooks.WithLogger(logger))
	reconciler := share.New(st,
		share.WithLogger(logger),
		share.WithMetrics(share.NewMetrics(reg)),
	)
	if err := app.Register(events, reconciler); err != nil {
		st.Close()
		return nil, fmt.Errorf("wire hooks: %w", err)
	}

	return &runtime{
		cfg:     cfg,
		logger:  logger,
		store:   st,
		metrics: reg,
		docs:    document.NewService(st, events, logger),
	}, nil
}

// Close releases the store.
func (rt *runtime) Close() {
	if err := rt.store.Close(); err != nil {
		rt.logger.Error("error closing database", "error", err)
	}
}

package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/petrijr/fluxotrace/cmd/fluxotrace/ui"
	"github.com/petrijr/fluxotrace/internal/config"
	"github.com/petrijr/fluxotrace/internal/logging"
	"github.com/petrijr/fluxotrace/internal/persistence"
	"github.com/petrijr/fluxotrace/internal/telemetry"
	"github.com/petrijr/fluxotrace/pkg/api"
)

// app carries state shared by subcommands once the root pre-run finished.
type app struct {
	cfg      config.Config
	shutdown telemetry.Shutdown
	observer api.Observer
}

func newRootCmd() *cobra.Command {
	var (
		debug   bool
		noColor bool
		a       app
	)

	root := &cobra.Command{
		Use:           "fluxotrace",
		Short:         "Reconstruct workflow run timelines from history events",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if debug {
				cfg.LogLevel = logging.LevelDebug
			}
			if err := logging.Configure(cfg.LogLevel); err != nil {
				return err
			}
			ui.ConfigureColor(noColor)

			shutdown, err := telemetry.Init(cmd.Context(), cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
			if err != nil {
				return fmt.Errorf("telemetry: %w", err)
			}
			metrics, err := telemetry.NewMetricsObserver(telemetry.Meter())
			if err != nil {
				_ = shutdown(context.Background())
				return err
			}

			a.cfg = cfg
			a.shutdown = shutdown
			a.observer = api.NewCompositeObserver(api.NewLoggingObserver(slog.Default()), metrics)
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.shutdown == nil {
				return nil
			}
			return a.shutdown(context.Background())
		},
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	root.AddCommand(replayCmd(&a))
	root.AddCommand(verifyCmd(&a))
	root.AddCommand(importCmd(&a))
	root.AddCommand(showCmd(&a))
	root.AddCommand(runsCmd(&a))
	return root
}

// openStore connects to the configured history store. The caller must
// close the returned Persistence.
func (a *app) openStore(ctx context.Context) (*persistence.Persistence, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.StoreTimeout)
	defer cancel()

	slog.Debug("opening history store", slog.String("backend", string(a.cfg.StoreBackend)))
	p, err := persistence.Open(ctx, a.cfg.StoreOptions())
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", a.cfg.StoreBackend, err)
	}
	return p, nil
}

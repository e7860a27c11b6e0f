package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"valeads-engine/internal/httpapi"
	"valeads-engine/internal/logging"
	"valeads-engine/internal/scheduler"
	"valeads-engine/internal/store"
)

var dataDirFlag string

func main() {
	rootCmd := &cobra.Command{
		Use:           "valeads",
		Short:         "VA-financed property lead engine",
		Long:          "Ingests transaction and listing CSV exports, reconciles VA-financed sales and renders mailing lists.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Setup()
		},
	}
	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "data directory (default $VALEADS_DATA_DIR or .)")

	rootCmd.AddCommand(createServeCmd())
	rootCmd.AddCommand(createIngestCmd())
	rootCmd.AddCommand(createListingsCmd())
	rootCmd.AddCommand(createReconcileCmd())
	rootCmd.AddCommand(createExportCmd())
	rootCmd.AddCommand(createPurgeCmd())
	rootCmd.AddCommand(createSecretCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func createServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx, dataDirFlag)
			if err != nil {
				return err
			}
			defer a.close()

			cfg := a.config()
			if addr == "" {
				addr = cfg.App.Addr
			}

			var reconcileStatus atomic.Value
			reconcileStatus.Store(httpapi.RunStatus{})

			deps := httpapi.Deps{
				Service:         a.svc,
				Hub:             a.hub,
				CfgVal:          a.cfgVal,
				ReconcileStatus: &reconcileStatus,
				UserCfgPath:     a.userCfgPath,
				LoadCfg:         a.loadCfg,
			}
			if db, ok := a.closer.(*store.DB); ok && db.Dialect == store.DialectSQLite {
				deps.Checkpoint = db.Checkpoint
			}
			router := httpapi.NewRouter(deps)

			// event streams end when the server shuts down, however it was asked to
			baseCtx, cancelBase := context.WithCancel(ctx)
			defer cancelBase()
			srv := &http.Server{
				Handler:           httpapi.Handler(router),
				ReadHeaderTimeout: 5 * time.Second,
				IdleTimeout:       60 * time.Second,
				BaseContext:       func(net.Listener) context.Context { return baseCtx },
			}
			srv.RegisterOnShutdown(cancelBase)

			token, err := shutdownToken(a.dataDir)
			if err != nil {
				return fmt.Errorf("shutdown token: %w", err)
			}
			router.HandleFunc("/shutdown", shutdownHandler(token, srv)).Methods(http.MethodPost)

			if cfg.Reconcile.Every != "" {
				every, err := time.ParseDuration(cfg.Reconcile.Every)
				if err != nil {
					return fmt.Errorf("reconcile.every: %w", err)
				}
				go scheduler.Every(ctx, every, "reconcile", func(ctx context.Context) error {
					_, err := httpapi.RunTracked(ctx, a.svc, &reconcileStatus)
					return err
				})
			}

			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return err
			}
			log.Info().Str("addr", "http://"+ln.Addr().String()).Msg("engine listening")

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Serve(ln) }()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
			case <-ctx.Done():
				log.Info().Msg("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					return err
				}
			}
			log.Info().Msg("engine stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default app.addr)")
	return cmd
}

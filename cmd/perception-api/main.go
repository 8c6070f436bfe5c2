package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	httpadapter "github.com/PabloGalante/perception-lab/internal/adapters/http"
	"github.com/PabloGalante/perception-lab/internal/app/experiment"
	"github.com/PabloGalante/perception-lab/internal/app/results"
	"github.com/PabloGalante/perception-lab/internal/config"
	"github.com/PabloGalante/perception-lab/internal/observability"
	"github.com/PabloGalante/perception-lab/internal/stimuli"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		observability.Logger().Error().Err(err).Msg("perception-api failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	serve := newServeCmd()
	root := &cobra.Command{
		Use:           "perception-api",
		Short:         "Word recognition experiment server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}
	root.AddCommand(serve, newImportCmd(), newExportCmd(), newStatusCmd())
	return root
}

// loadConfig reads the environment and configures logging.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := observability.Init(cfg.Log.Level, cfg.Log.Format, os.Stdout); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server (default)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	log := observability.Logger()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	catalog, err := stimuli.Load(cfg.StimuliFile)
	if err != nil {
		return err
	}

	resultStore, backupPath, err := openResults(ctx, cfg)
	if err != nil {
		return err
	}
	sessionStore, err := openSessions(ctx, cfg)
	if err != nil {
		_ = resultStore.Close()
		return err
	}

	dispatcher := newDispatcher(cfg, resultStore, backupPath)
	// queued backups keep running while the server shuts down
	dispatcher.Start(context.WithoutCancel(ctx))

	resultsSvc := results.NewService(resultStore, dispatcher)
	expSvc := experiment.NewService(sessionStore, catalog, resultsSvc)

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: httpadapter.NewServer(expSvc, resultsSvc, httpadapter.Options{
			AdminPassword: cfg.AdminPassword,
			CookieSecure:  cfg.CookieSecure,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("Perception API listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "http server")
		}
		return nil
	})

	eg.Go(func() error {
		<-egCtx.Done()
		log.Info().Msg("shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http shutdown error")
		}
		if err := dispatcher.Drain(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("backup drain error")
		}
		if err := resultStore.Close(); err != nil {
			log.Error().Err(err).Msg("result store close error")
		}
		if err := sessionStore.Close(); err != nil {
			log.Error().Err(err).Msg("session store close error")
		}
		log.Info().Msg("shutdown complete")
		return nil
	})

	return eg.Wait()
}

// withResults opens the result store with its backup dispatcher for a
// one-shot command, and drains pending backups before closing.
func withResults(ctx context.Context, cfg *config.Config, fn func(*results.Service) error) (err error) {
	store, backupPath, err := openResults(ctx, cfg)
	if err != nil {
		return err
	}
	dispatcher := newDispatcher(cfg, store, backupPath)
	dispatcher.Start(context.WithoutCancel(ctx))

	defer func() {
		drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if derr := dispatcher.Drain(drainCtx); derr != nil {
			observability.Logger().Warn().Err(derr).Msg("backup drain error")
		}
		if cerr := store.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "closing result store")
		}
	}()

	return fn(results.NewService(store, dispatcher))
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Merge a CSV export into the results, skipping duplicates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return errors.Wrapf(err, "opening %s", args[0])
			}
			defer f.Close()

			return withResults(cmd.Context(), cfg, func(svc *results.Service) error {
				report, err := svc.Import(cmd.Context(), f)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d, skipped %d\n", report.Imported, report.Skipped)
				return nil
			})
		},
	}
}

func newExportCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write all results as CSV",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return withResults(cmd.Context(), cfg, func(svc *results.Service) error {
				if output == "" || output == "-" {
					return svc.Export(cmd.Context(), cmd.OutOrStdout())
				}
				f, err := os.Create(output)
				if err != nil {
					return errors.Wrapf(err, "creating %s", output)
				}
				if err := svc.Export(cmd.Context(), f); err != nil {
					_ = f.Close()
					return err
				}
				return errors.Wrapf(f.Close(), "closing %s", output)
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "destination file (default stdout)")
	return cmd
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show where results are stored and how many there are",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return withResults(cmd.Context(), cfg, func(svc *results.Service) error {
				st, err := svc.Status(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "backend:  %s\n", cfg.ResultsBackend)
				fmt.Fprintf(out, "path:     %s\n", st.Path)
				fmt.Fprintf(out, "exists:   %t\n", st.Exists)
				fmt.Fprintf(out, "size:     %d bytes\n", st.SizeBytes)
				fmt.Fprintf(out, "entries:  %d\n", st.Entries)
				if st.LastModified != nil {
					fmt.Fprintf(out, "modified: %s\n", st.LastModified.Format(time.RFC3339))
				}
				return nil
			})
		},
	}
}

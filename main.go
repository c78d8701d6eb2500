package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mbolis/caps-forms/app"
	"github.com/mbolis/caps-forms/config"
	"github.com/mbolis/caps-forms/database"
	"github.com/mbolis/caps-forms/log"
	"github.com/mbolis/caps-forms/routes"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		log.Fatal("main:", err)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "capsforms",
		Short:         "Versioned data-collection forms for the CAPS study",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cfg := config.BindFlags(root.PersistentFlags())

	var logFile io.Closer
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := cfg.Load(cmd.Flags()); err != nil {
			return err
		}
		if cfg.Debug {
			log.SetLevel(log.DebugLevel)
		}
		if cfg.LogFile != "" {
			logFile = log.RotateTo(cfg.LogFile)
		}
		return nil
	}
	root.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if logFile != nil {
			logFile.Close()
		}
	}

	root.AddCommand(serveCmd(cfg), migrateCmd(cfg), seedCmd(cfg))
	return root
}

func serveCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := database.Open(cfg.DBUrl)
			if err != nil {
				return fmt.Errorf("main.db.open: %w", err)
			}
			defer db.Close()

			handler := routes.Wire(app.New(db, *cfg))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, *cfg, handler)
		},
	}
}

func runServer(ctx context.Context, cfg config.Config, handler http.Handler) error {
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Listening on " + cfg.Url())
		err := srv.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

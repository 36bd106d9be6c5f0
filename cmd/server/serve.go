package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"packages/internal/auth"
	"packages/internal/httpapi"
	"packages/internal/remotesync"
)

func newServeCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, webhook receiver and periodic sync worker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return serve(ctx, g)
		},
	}
}

func serve(ctx context.Context, g *globals) error {
	cfg, logger := g.cfg, g.logger

	a, err := openApp(ctx, g)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.bootstrap(ctx, g); err != nil {
		return err
	}

	// The worker reads the enabled flag from the database on every tick.
	worker := remotesync.NewWorker(
		a.runner,
		remotesync.WorkerConfig{
			Enabled:      true,
			StartupDelay: cfg.SyncDelay,
			Interval:     cfg.SyncInterval,
			Concurrency:  cfg.SyncConcurrency,
		},
		a.svc,
		logger,
	)
	go worker.Run(ctx)

	syncTrigger := httpapi.NewSyncTrigger(a.runner, a.svc, cfg.SyncConcurrency, logger)
	authn := auth.NewAuthenticator(a.store, cfg.AdminToken)

	api := httpapi.New(cfg, a.svc, authn, syncTrigger, logger)
	e := api.NewEcho()
	a.urls.Attach(e)

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      e,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.ListenAddr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"packages/internal/config"
	"packages/internal/db"
	"packages/internal/httpapi"
	"packages/internal/remotesync"
	"packages/internal/service"
	"packages/internal/storage"
	"packages/internal/store"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type globals struct {
	envFile string
	cfg     config.Config
	logger  zerolog.Logger
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "packages",
		Short:         "Mirror GitLab, GitHub and Bitbucket repositories into the package catalog",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadDotEnv(g.envFile); err != nil {
				return fmt.Errorf("load %s: %w", g.envFile, err)
			}
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			g.cfg = cfg
			g.logger = config.NewLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&g.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	root.AddCommand(
		newServeCmd(g),
		newSyncCmd(g),
		newMigrateCmd(g),
		newSeedCmd(g),
		newRemoteCmd(g),
	)
	return root
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// app holds the components shared by the server and the CLI commands.
type app struct {
	pool         *pgxpool.Pool
	store        *store.Store
	urls         *httpapi.URLGenerator
	orchestrator *remotesync.Orchestrator
	runner       *remotesync.Runner
	svc          *service.Service
}

func (a *app) Close() {
	a.pool.Close()
}

func openApp(ctx context.Context, g *globals) (*app, error) {
	cfg := g.cfg

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	snapshots, err := storage.New(ctx, storage.Options{
		Backend: cfg.SnapshotBackend,
		Root:    cfg.SnapshotRoot,
		S3: storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Prefix:          cfg.S3Prefix,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		},
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init snapshot storage: %w", err)
	}

	st := store.New(pool)
	urls := httpapi.NewURLGenerator(cfg.PublicBaseURL)
	adapters := remotesync.DefaultAdapters(remotesync.Deps{
		HTTPClient: &http.Client{Timeout: cfg.ProviderTimeout},
		Store:      st,
		URLs:       urls,
		Logger:     g.logger,
	})

	var archive remotesync.SnapshotArchive
	var reader service.SnapshotReader
	if snapshots != nil {
		archive = snapshots
		reader = snapshots
	}
	orchestrator := remotesync.NewOrchestrator(st, archive, g.logger, adapters...)

	return &app{
		pool:         pool,
		store:        st,
		urls:         urls,
		orchestrator: orchestrator,
		runner:       remotesync.NewRunner(st, orchestrator, g.logger),
		svc:          service.New(st, orchestrator, reader, g.logger),
	}, nil
}

// bootstrap seeds remotes and the sync schedule from the environment.
func (a *app) bootstrap(ctx context.Context, g *globals) error {
	cfg := g.cfg
	if cfg.BootstrapRemotes && cfg.RemotesFile != "" {
		f, err := config.LoadRemotesFile(cfg.RemotesFile)
		if err != nil {
			return err
		}
		n, err := a.svc.SeedRemotes(ctx, f)
		if err != nil {
			return fmt.Errorf("seed remotes: %w", err)
		}
		g.logger.Info().Int("remotes", n).Str("file", cfg.RemotesFile).Msg("remotes seeded")
	}

	sc := service.SyncConfig{
		Enabled:         cfg.SyncEnabled,
		IntervalSeconds: int(cfg.SyncInterval.Seconds()),
		DelaySeconds:    int(cfg.SyncDelay.Seconds()),
		Concurrency:     cfg.SyncConcurrency,
	}
	if err := a.svc.SeedSyncConfig(ctx, sc); err != nil {
		g.logger.Warn().Err(err).Msg("seed sync config")
	}
	return nil
}

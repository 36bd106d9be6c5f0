package remotesync

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

type workerRunner interface {
	Run(context.Context, int) (Summary, error)
}

// ConfigProvider dynamically provides worker configuration from the database.
type ConfigProvider interface {
	GetWorkerConfig(ctx context.Context) (WorkerConfig, error)
}

type WorkerConfig struct {
	Enabled      bool
	StartupDelay time.Duration
	Interval     time.Duration
	Concurrency  int
}

type Worker struct {
	runner       workerRunner
	configSource ConfigProvider
	fallbackCfg  WorkerConfig
	logger       zerolog.Logger
}

// NewWorker creates a worker. If configSource is nil, fallbackCfg is used statically.
func NewWorker(runner workerRunner, fallbackCfg WorkerConfig, configSource ConfigProvider, logger zerolog.Logger) *Worker {
	if fallbackCfg.Concurrency <= 0 {
		fallbackCfg.Concurrency = 1
	}
	if fallbackCfg.StartupDelay < 0 {
		fallbackCfg.StartupDelay = 0
	}
	if fallbackCfg.Interval < 0 {
		fallbackCfg.Interval = 0
	}

	return &Worker{
		runner:       runner,
		configSource: configSource,
		fallbackCfg:  fallbackCfg,
		logger:       logger,
	}
}

func (w *Worker) getConfig(ctx context.Context) WorkerConfig {
	if w.configSource == nil {
		return w.fallbackCfg
	}
	cfg, err := w.configSource.GetWorkerConfig(ctx)
	if err != nil {
		w.logger.Warn().Err(err).Msg("failed to read sync config from DB, using fallback")
		return w.fallbackCfg
	}
	return cfg
}

func (w *Worker) Run(ctx context.Context) {
	cfg := w.getConfig(ctx)
	if !cfg.Enabled || w.runner == nil {
		return
	}
	if cfg.StartupDelay > 0 {
		timer := time.NewTimer(cfg.StartupDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
	}

	w.runOnce(ctx)

	cfg = w.getConfig(ctx)
	if cfg.Interval <= 0 {
		return
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			latest := w.getConfig(ctx)
			if !latest.Enabled {
				w.logger.Info().Msg("remote sync disabled via config, pausing")
				continue
			}
			if latest.Interval > 0 && latest.Interval != cfg.Interval {
				ticker.Reset(latest.Interval)
				w.logger.Info().Dur("interval", latest.Interval).Msg("sync interval updated")
				cfg.Interval = latest.Interval
			}
			cfg = latest
			w.runOnce(ctx)
		}
	}
}

func (w *Worker) runOnce(ctx context.Context) {
	cfg := w.getConfig(ctx)
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	start := time.Now()
	summary, err := w.runner.Run(ctx, concurrency)
	elapsed := time.Since(start).Round(time.Millisecond)
	if err != nil {
		w.logger.Error().Err(err).Dur("elapsed", elapsed).Int("failed", summary.Failed).Msg("remote sync failed")
		return
	}
	w.logger.Info().
		Dur("elapsed", elapsed).
		Int("remotes", summary.Remotes).
		Int("packages", summary.Packages).
		Int("created", summary.Created).
		Int("updated", summary.Updated).
		Int("disabled", summary.Disabled).
		Msg("remote sync finished")
}

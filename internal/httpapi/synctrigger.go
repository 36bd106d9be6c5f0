package httpapi

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"packages/internal/httpapi/handlers"
	"packages/internal/remotesync"
)

type syncRunner interface {
	Run(ctx context.Context, concurrency int) (remotesync.Summary, error)
}

type workerConfigSource interface {
	GetWorkerConfig(ctx context.Context) (remotesync.WorkerConfig, error)
}

// SyncTrigger runs a full sync in the background on request. At most one
// run is in flight.
type SyncTrigger struct {
	runner       syncRunner
	configSource workerConfigSource
	fallback     int
	logger       zerolog.Logger

	mu         sync.Mutex
	running    bool
	lastResult *remotesync.Summary
	lastError  error
	done       chan struct{}
}

func NewSyncTrigger(runner syncRunner, configSource workerConfigSource, fallbackConcurrency int, logger zerolog.Logger) *SyncTrigger {
	return &SyncTrigger{
		runner:       runner,
		configSource: configSource,
		fallback:     fallbackConcurrency,
		logger:       logger,
	}
}

func (st *SyncTrigger) TriggerSync(_ context.Context) (bool, error) {
	st.mu.Lock()
	if st.running {
		st.mu.Unlock()
		return false, nil
	}
	st.running = true
	done := make(chan struct{})
	st.done = done
	st.mu.Unlock()

	go func() {
		defer close(done)

		concurrency := st.fallback
		if st.configSource != nil {
			if cfg, err := st.configSource.GetWorkerConfig(context.Background()); err == nil && cfg.Concurrency > 0 {
				concurrency = cfg.Concurrency
			}
		}
		if concurrency <= 0 {
			concurrency = 1
		}

		summary, err := st.runner.Run(context.Background(), concurrency)

		st.mu.Lock()
		st.running = false
		st.lastResult = &summary
		st.lastError = err
		st.mu.Unlock()

		if err != nil {
			st.logger.Error().Err(err).Int("failed", summary.Failed).Msg("manual sync failed")
			return
		}
		st.logger.Info().
			Int("remotes", summary.Remotes).
			Int("packages", summary.Packages).
			Int("created", summary.Created).
			Int("updated", summary.Updated).
			Int("disabled", summary.Disabled).
			Msg("manual sync finished")
	}()

	return true, nil
}

func (st *SyncTrigger) Status() handlers.SyncStatus {
	st.mu.Lock()
	defer st.mu.Unlock()

	errStr := ""
	if st.lastError != nil {
		errStr = st.lastError.Error()
	}
	return handlers.SyncStatus{
		Running:    st.running,
		LastResult: st.lastResult,
		LastError:  errStr,
	}
}

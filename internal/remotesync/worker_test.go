package remotesync

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type stubRunner struct {
	calls       atomic.Int64
	concurrency atomic.Int64
}

func (s *stubRunner) Run(_ context.Context, concurrency int) (Summary, error) {
	s.calls.Add(1)
	s.concurrency.Store(int64(concurrency))
	return Summary{}, nil
}

type failingConfig struct{}

func (failingConfig) GetWorkerConfig(context.Context) (WorkerConfig, error) {
	return WorkerConfig{}, errors.New("db down")
}

func TestWorker_RunOnceWhenNoInterval(t *testing.T) {
	t.Parallel()

	runner := &stubRunner{}
	worker := NewWorker(runner, WorkerConfig{
		Enabled:     true,
		Concurrency: 3,
	}, nil, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	worker.Run(ctx)

	if runner.calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", runner.calls.Load())
	}
	if runner.concurrency.Load() != 3 {
		t.Fatalf("concurrency = %d, want 3", runner.concurrency.Load())
	}
}

func TestWorker_RunRepeatedlyWithInterval(t *testing.T) {
	t.Parallel()

	runner := &stubRunner{}
	worker := NewWorker(runner, WorkerConfig{
		Enabled:  true,
		Interval: 15 * time.Millisecond,
	}, nil, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 55*time.Millisecond)
	defer cancel()
	worker.Run(ctx)

	if runner.calls.Load() < 2 {
		t.Fatalf("calls = %d, want >= 2", runner.calls.Load())
	}
}

func TestWorker_DisabledDoesNothing(t *testing.T) {
	t.Parallel()

	runner := &stubRunner{}
	NewWorker(runner, WorkerConfig{Enabled: false}, nil, zerolog.Nop()).Run(context.Background())

	if runner.calls.Load() != 0 {
		t.Fatalf("calls = %d, want 0", runner.calls.Load())
	}
}

func TestWorker_FallsBackWhenConfigFails(t *testing.T) {
	t.Parallel()

	runner := &stubRunner{}
	worker := NewWorker(runner, WorkerConfig{Enabled: true}, failingConfig{}, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	worker.Run(ctx)

	if runner.calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", runner.calls.Load())
	}
	if runner.concurrency.Load() != 1 {
		t.Fatalf("concurrency = %d, want default 1", runner.concurrency.Load())
	}
}

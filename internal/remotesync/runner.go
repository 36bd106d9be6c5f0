package remotesync

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"packages/internal/store"
)

type RemoteLister interface {
	ListEnabledRemotes(context.Context) ([]store.Remote, error)
}

type synchronizer interface {
	Synchronize(context.Context, store.Remote) (Result, error)
}

// Runner synchronizes every enabled remote.
type Runner struct {
	remotes RemoteLister
	syncer  synchronizer
	logger  zerolog.Logger
}

func NewRunner(remotes RemoteLister, syncer synchronizer, logger zerolog.Logger) *Runner {
	return &Runner{
		remotes: remotes,
		syncer:  syncer,
		logger:  logger,
	}
}

// Run synchronizes remotes with at most concurrency runs in flight. A
// failing remote does not stop the others; failures are joined.
func (r *Runner) Run(ctx context.Context, concurrency int) (Summary, error) {
	if r.remotes == nil {
		return Summary{}, fmt.Errorf("remote lister is nil")
	}
	if r.syncer == nil {
		return Summary{}, fmt.Errorf("synchronizer is nil")
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	r.logger.Info().Int("concurrency", concurrency).Msg("[sync] starting sync run")

	remotes, err := r.remotes.ListEnabledRemotes(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("[sync] failed to list remotes")
		return Summary{}, err
	}
	r.logger.Info().Int("remotes", len(remotes)).Msg("[sync] found enabled remotes")

	stats := make([]RemoteStats, len(remotes))
	var (
		mu     sync.Mutex
		joined error
		g      errgroup.Group
	)
	g.SetLimit(concurrency)
	for i, remote := range remotes {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res, err := r.syncer.Synchronize(ctx, remote)
			stats[i] = RemoteStats{
				Remote:   remote.Name,
				Provider: remote.Adapter,
				Packages: len(res.Packages),
				Created:  res.Created,
				Updated:  res.Updated,
				Disabled: res.Disabled,
				Err:      err,
			}
			if err != nil {
				r.logger.Error().Err(err).Str("remote", remote.Name).
					Msgf("[sync] [%d/%d] remote failed", i+1, len(remotes))
				mu.Lock()
				joined = errors.Join(joined, fmt.Errorf("%s: %w", remote.Name, err))
				mu.Unlock()
				return nil
			}
			r.logger.Info().Str("remote", remote.Name).
				Int("packages", len(res.Packages)).
				Msgf("[sync] [%d/%d] remote done", i+1, len(remotes))
			return nil
		})
	}
	_ = g.Wait()

	var summary Summary
	for _, s := range stats {
		if s.Remote == "" {
			continue
		}
		summary.Remotes++
		if s.Err != nil {
			summary.Failed++
		}
		summary.Packages += s.Packages
		summary.Created += s.Created
		summary.Updated += s.Updated
		summary.Disabled += s.Disabled
		summary.ByRemote = append(summary.ByRemote, s)
	}
	if err := ctx.Err(); err != nil {
		joined = errors.Join(joined, err)
	}

	r.logger.Info().
		Int("remotes", summary.Remotes).
		Int("failed", summary.Failed).
		Int("packages", summary.Packages).
		Int("created", summary.Created).
		Int("updated", summary.Updated).
		Int("disabled", summary.Disabled).
		Msg("[sync] sync run complete")
	return summary, joined
}

package remotesync

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"packages/internal/metrics"
	"packages/internal/store"
)

// Result describes one completed synchronization of a remote.
type Result struct {
	RunID       string
	Remote      string
	Provider    string
	Packages    []store.Package
	Created     int
	Updated     int
	Disabled    int
	SnapshotKey string
}

// Orchestrator selects the adapter of a remote and persists its
// reconciliation.
type Orchestrator struct {
	adapters map[string]Adapter
	store    Store
	archive  SnapshotArchive
	logger   zerolog.Logger
	flights  singleflight.Group
	now      func() time.Time
}

// NewOrchestrator keys adapters by name. A nil archive disables snapshots.
func NewOrchestrator(st Store, archive SnapshotArchive, logger zerolog.Logger, adapters ...Adapter) *Orchestrator {
	byName := make(map[string]Adapter, len(adapters))
	for _, a := range adapters {
		byName[a.Name()] = a
	}
	return &Orchestrator{
		adapters: byName,
		store:    st,
		archive:  archive,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// AdapterFor returns the only adapter supporting remote.
func (o *Orchestrator) AdapterFor(remote store.Remote) (Adapter, error) {
	names := make([]string, 0, len(o.adapters))
	for name := range o.adapters {
		names = append(names, name)
	}
	sort.Strings(names)

	var matches []Adapter
	var matchNames []string
	for _, name := range names {
		a := o.adapters[name]
		if a.Supports(remote) {
			matches = append(matches, a)
			matchNames = append(matchNames, name)
		}
	}
	if len(matches) != 1 {
		return nil, &NoAdapterFoundError{Remote: remote.Name, Adapter: remote.Adapter, Matches: matchNames}
	}
	return matches[0], nil
}

// Synchronize reconciles remote and persists the result in one transaction.
// Concurrent calls for the same remote share a single run.
func (o *Orchestrator) Synchronize(ctx context.Context, remote store.Remote) (Result, error) {
	v, err, _ := o.flights.Do(remote.ID.String(), func() (any, error) {
		return o.synchronize(ctx, remote)
	})
	if err != nil {
		return Result{}, err
	}
	return v.(Result), nil
}

func (o *Orchestrator) synchronize(ctx context.Context, remote store.Remote) (Result, error) {
	log := o.logger.With().
		Str("remote", remote.Name).
		Str("remote_id", remote.ID.String()).
		Str("provider", remote.Adapter).
		Logger()

	startedAt := o.now()
	run := store.SyncRun{
		ID:        "sync_" + ulid.Make().String(),
		RemoteID:  remote.ID,
		StartedAt: startedAt,
	}

	adapter, err := o.AdapterFor(remote)
	if err != nil {
		log.Error().Err(err).Msg("sync aborted")
		o.finish(ctx, log, remote, run, err)
		return Result{}, err
	}

	log.Info().Str("run_id", run.ID).Msg("sync started")
	rec, err := adapter.SynchronizePackages(ctx, remote)
	if err != nil {
		log.Error().Err(err).Str("run_id", run.ID).Msg("sync failed, catalog unchanged")
		o.finish(ctx, log, remote, run, err)
		return Result{}, err
	}

	saved, err := o.store.SaveReconciliation(ctx, remote.ID, rec.Packages, rec.Disabled)
	if err != nil {
		err = fmt.Errorf("persist reconciliation of remote %s: %w", remote.Name, err)
		log.Error().Err(err).Str("run_id", run.ID).Msg("sync failed, catalog unchanged")
		o.finish(ctx, log, remote, run, err)
		return Result{}, err
	}

	result := Result{
		RunID:    run.ID,
		Remote:   remote.Name,
		Provider: adapter.Name(),
		Packages: saved,
		Created:  rec.Created,
		Updated:  rec.Updated,
		Disabled: len(rec.Disabled),
	}
	result.SnapshotKey = o.archiveSnapshot(ctx, log, remote, run.ID, rec.Repositories)

	run.Created = result.Created
	run.Updated = result.Updated
	run.Disabled = result.Disabled
	if result.SnapshotKey != "" {
		key := result.SnapshotKey
		run.SnapshotKey = &key
	}
	o.finish(ctx, log, remote, run, nil)

	metrics.PackagesReconciled.WithLabelValues(result.Provider, "created").Add(float64(result.Created))
	metrics.PackagesReconciled.WithLabelValues(result.Provider, "updated").Add(float64(result.Updated))
	metrics.PackagesReconciled.WithLabelValues(result.Provider, "disabled").Add(float64(result.Disabled))

	log.Info().
		Str("run_id", run.ID).
		Int("packages", len(saved)).
		Int("created", result.Created).
		Int("updated", result.Updated).
		Int("disabled", result.Disabled).
		Msg("sync finished")
	return result, nil
}

// archiveSnapshot stores the provider listing. Failures are logged only.
func (o *Orchestrator) archiveSnapshot(ctx context.Context, log zerolog.Logger, remote store.Remote, runID string, repos []Repository) string {
	if o.archive == nil {
		return ""
	}
	data, err := json.Marshal(struct {
		RunID        string       `json:"run_id"`
		Remote       string       `json:"remote"`
		Provider     string       `json:"provider"`
		Repositories []Repository `json:"repositories"`
	}{runID, remote.Name, remote.Adapter, repos})
	if err != nil {
		log.Warn().Err(err).Msg("encode snapshot")
		return ""
	}
	key := snapshotKey(remote, runID)
	if err := o.archive.Put(ctx, key, data); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("archive snapshot")
		return ""
	}
	return key
}

func (o *Orchestrator) finish(ctx context.Context, log zerolog.Logger, remote store.Remote, run store.SyncRun, syncErr error) {
	run.FinishedAt = o.now()
	result := metrics.ResultSuccess
	run.Status = store.SyncStatusSucceeded
	if syncErr != nil {
		result = metrics.ResultFailure
		run.Status = store.SyncStatusFailed
		msg := syncErr.Error()
		run.Error = &msg
	}

	metrics.SyncTotal.WithLabelValues(remote.Adapter, result).Inc()
	metrics.SyncDuration.WithLabelValues(remote.Adapter).Observe(run.FinishedAt.Sub(run.StartedAt).Seconds())
	metrics.LastSyncEnd.WithLabelValues(remote.Name).Set(float64(run.FinishedAt.Unix()))

	if err := o.store.InsertSyncRun(ctx, run); err != nil {
		log.Warn().Err(err).Str("run_id", run.ID).Msg("record sync run")
	}
}

func snapshotKey(remote store.Remote, runID string) string {
	return fmt.Sprintf("snapshots/%s/%s.json", remote.ID, strings.ToLower(runID))
}

package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"packages/internal/storage"
	"packages/internal/store"
)

func (s *Service) ListSyncRuns(ctx context.Context, remoteID string, limit int) ([]store.SyncRun, error) {
	remote, err := s.GetRemote(ctx, remoteID)
	if err != nil {
		return nil, err
	}
	return s.store.ListSyncRuns(ctx, remote.ID, limit)
}

// OpenSnapshot returns the repository listing archived by a sync run.
func (s *Service) OpenSnapshot(ctx context.Context, runID string) (io.ReadCloser, error) {
	run, err := s.store.GetSyncRun(ctx, runID)
	if err != nil {
		return nil, notFound(err, "sync run")
	}
	if run.SnapshotKey == nil || s.snapshots == nil {
		return nil, fmt.Errorf("%w: sync run %s has no snapshot", ErrNotFound, runID)
	}
	rc, err := s.snapshots.Open(ctx, *run.SnapshotKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: snapshot %s", ErrNotFound, *run.SnapshotKey)
	}
	return rc, err
}

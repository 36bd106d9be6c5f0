package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	SyncStatusSucceeded = "succeeded"
	SyncStatusFailed    = "failed"
)

// SyncRun records the outcome of one synchronization of a remote.
type SyncRun struct {
	ID          string
	RemoteID    uuid.UUID
	Status      string
	Created     int
	Updated     int
	Disabled    int
	SnapshotKey *string
	Error       *string
	StartedAt   time.Time
	FinishedAt  time.Time
}

func (s *Store) InsertSyncRun(ctx context.Context, run SyncRun) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO sync_runs (id, remote_id, status, created, updated, disabled, snapshot_key, error, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, run.ID, run.RemoteID, run.Status, run.Created, run.Updated, run.Disabled,
		run.SnapshotKey, run.Error, run.StartedAt, run.FinishedAt)
	return err
}

const syncRunColumns = `id, remote_id, status, created, updated, disabled, snapshot_key, error, started_at, finished_at`

func scanSyncRun(row pgx.Row) (SyncRun, error) {
	var r SyncRun
	err := row.Scan(
		&r.ID, &r.RemoteID, &r.Status, &r.Created, &r.Updated, &r.Disabled,
		&r.SnapshotKey, &r.Error, &r.StartedAt, &r.FinishedAt,
	)
	return r, err
}

func (s *Store) GetSyncRun(ctx context.Context, id string) (SyncRun, error) {
	return scanSyncRun(s.db.QueryRow(ctx, `SELECT `+syncRunColumns+` FROM sync_runs WHERE id = $1`, id))
}

func (s *Store) ListSyncRuns(ctx context.Context, remoteID uuid.UUID, limit int) ([]SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+syncRunColumns+`
		FROM sync_runs
		WHERE remote_id = $1
		ORDER BY started_at DESC
		LIMIT $2
	`, remoteID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []SyncRun
	for rows.Next() {
		r, err := scanSyncRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"packages/internal/remotesync"
	"packages/internal/store"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")
	// ErrProviderFailure means the provider rejected a hook operation. A
	// failed enable leaves the package as it was. A failed disable has still
	// cleared the local hook id and enabled flags; only the provider side
	// may keep the hook.
	ErrProviderFailure = errors.New("provider operation failed")
)

// Store is the persistence the service relies on.
type Store interface {
	GetRemote(ctx context.Context, id uuid.UUID) (store.Remote, error)
	ListRemotes(ctx context.Context) ([]store.Remote, error)
	UpsertRemote(ctx context.Context, name, adapter string, enabled bool) (store.Remote, error)
	UpdateRemoteEnabled(ctx context.Context, id uuid.UUID, enabled bool) error
	UpsertRemoteConfiguration(ctx context.Context, c store.RemoteConfiguration) error
	GetPackage(ctx context.Context, id uuid.UUID) (store.Package, error)
	ListPackages(ctx context.Context, f store.PackageFilter) ([]store.Package, error)
	TouchPackagePush(ctx context.Context, id uuid.UUID) (time.Time, error)
	ListSyncRuns(ctx context.Context, remoteID uuid.UUID, limit int) ([]store.SyncRun, error)
	GetSyncRun(ctx context.Context, id string) (store.SyncRun, error)
	GetSystemConfig(ctx context.Context, key string) (json.RawMessage, error)
	UpsertSystemConfig(ctx context.Context, key string, config json.RawMessage) error
	UpsertAPIToken(ctx context.Context, tokenHash, subject string) error
}

// Engine runs synchronizations and hook operations against providers.
type Engine interface {
	Synchronize(ctx context.Context, remote store.Remote) (remotesync.Result, error)
	DisableRemoteHooks(ctx context.Context, remote store.Remote) (int, error)
	SetPackageEnabled(ctx context.Context, pkg *store.Package, enabled bool) (bool, error)
}

// SnapshotReader opens archived repository listings.
type SnapshotReader interface {
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

type Service struct {
	store     Store
	engine    Engine
	snapshots SnapshotReader
	logger    zerolog.Logger
}

// New builds the service. snapshots may be nil when archiving is off.
func New(st Store, engine Engine, snapshots SnapshotReader, logger zerolog.Logger) *Service {
	return &Service{
		store:     st,
		engine:    engine,
		snapshots: snapshots,
		logger:    logger,
	}
}

func parseID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("%w: invalid id %q", ErrInvalidInput, raw)
	}
	return id, nil
}

func notFound(err error, what string) error {
	if store.IsNotFound(err) {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	return err
}

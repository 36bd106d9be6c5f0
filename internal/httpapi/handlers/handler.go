package handlers

import (
	"context"
	"io"

	"packages/internal/remotesync"
	"packages/internal/service"
	"packages/internal/store"
)

// Service is the application surface the handlers expose.
type Service interface {
	ListRemotes(ctx context.Context) ([]store.Remote, error)
	GetRemote(ctx context.Context, id string) (store.Remote, error)
	SetRemoteEnabled(ctx context.Context, id string, enabled bool) (service.RemoteToggle, error)
	SyncRemote(ctx context.Context, id string) (remotesync.Result, error)
	ListPackages(ctx context.Context, q service.PackageQuery) ([]store.Package, error)
	GetPackage(ctx context.Context, id string) (store.Package, error)
	SetPackageEnabled(ctx context.Context, id string, enabled bool) (store.Package, error)
	ReceiveWebhook(ctx context.Context, id string) (service.WebhookReceipt, error)
	ListSyncRuns(ctx context.Context, remoteID string, limit int) ([]store.SyncRun, error)
	OpenSnapshot(ctx context.Context, runID string) (io.ReadCloser, error)
	GetSyncConfig(ctx context.Context) (service.SyncConfig, error)
	SaveSyncConfig(ctx context.Context, cfg service.SyncConfig) error
}

// SyncStatus describes the last manually triggered full sync.
type SyncStatus struct {
	Running    bool
	LastResult *remotesync.Summary
	LastError  string
}

type SyncTrigger interface {
	TriggerSync(ctx context.Context) (bool, error)
	Status() SyncStatus
}

type Handler struct {
	svc         Service
	syncTrigger SyncTrigger
}

// New builds the handlers. trigger may be nil when background sync is not
// available.
func New(svc Service, trigger SyncTrigger) *Handler {
	return &Handler{
		svc:         svc,
		syncTrigger: trigger,
	}
}

package remotesync

import (
	"context"

	"github.com/google/uuid"

	"packages/internal/store"
)

// WebhookRoute is the route name of the push callback endpoint.
const WebhookRoute = "webhook_receive"

// Repository is a provider repository normalized across providers.
type Repository struct {
	ExternalID  string `json:"external_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	FQN         string `json:"fqn"`
	WebURL      string `json:"web_url"`
	SSHURL      string `json:"ssh_url"`
	Namespace   string `json:"namespace,omitempty"`
}

// Reconciliation is the outcome of diffing a provider listing against the
// stored packages of a remote. Packages holds created and updated packages in
// provider order; Disabled holds stored packages missing from the listing.
type Reconciliation struct {
	Packages     []store.Package
	Disabled     []store.Package
	Repositories []Repository
	Created      int
	Updated      int
}

// Adapter is the capability set every provider implements.
type Adapter interface {
	Name() string
	Supports(store.Remote) bool
	SynchronizePackages(context.Context, store.Remote) (Reconciliation, error)
	EnableHook(context.Context, *store.Package) bool
	DisableHook(context.Context, *store.Package) bool
}

// HookStore is the persistence an adapter needs.
type HookStore interface {
	ListPackagesByRemote(context.Context, uuid.UUID) ([]store.Package, error)
	GetRemoteConfiguration(context.Context, uuid.UUID) (store.RemoteConfiguration, error)
	GetPackageConfiguration(context.Context, uuid.UUID) (store.PackageConfiguration, error)
	SaveHookState(context.Context, store.Package, store.PackageConfiguration) error
}

// Store is the persistence the orchestrator needs.
type Store interface {
	GetRemote(context.Context, uuid.UUID) (store.Remote, error)
	ListEnabledRemotes(context.Context) ([]store.Remote, error)
	ListPackagesByRemote(context.Context, uuid.UUID) ([]store.Package, error)
	SaveReconciliation(context.Context, uuid.UUID, []store.Package, []store.Package) ([]store.Package, error)
	DisablePackages(context.Context, []store.Package) error
	InsertSyncRun(context.Context, store.SyncRun) error
}

// URLGenerator builds callback URLs for named routes.
type URLGenerator interface {
	Generate(routeName string, params map[string]string, absolute bool) (string, error)
}

// SnapshotArchive keeps the raw repository listing of each sync run.
type SnapshotArchive interface {
	Put(ctx context.Context, key string, data []byte) error
}

type RemoteStats struct {
	Remote   string
	Provider string
	Packages int
	Created  int
	Updated  int
	Disabled int
	Err      error
}

type Summary struct {
	Remotes  int
	Failed   int
	Packages int
	Created  int
	Updated  int
	Disabled int
	ByRemote []RemoteStats
}

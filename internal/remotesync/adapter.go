package remotesync

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"packages/internal/metrics"
	"packages/internal/store"
)

// Deps are the collaborators shared by every adapter.
type Deps struct {
	HTTPClient *http.Client
	Store      HookStore
	URLs       URLGenerator
	Logger     zerolog.Logger
}

// protocol is the provider specific part of an adapter.
type protocol interface {
	name() string
	// connect validates the configuration and returns the API base URL and
	// request authorizer.
	connect(store.RemoteConfiguration) (string, func(*http.Request), error)
	listRepositories(context.Context, *apiClient, store.RemoteConfiguration) ([]Repository, error)
	createHook(ctx context.Context, c *apiClient, pkg store.Package, callbackURL string) (string, error)
	deleteHook(ctx context.Context, c *apiClient, pkg store.Package) error
}

// repositoryFilter is implemented by protocols that restrict which listed
// repositories are imported.
type repositoryFilter interface {
	filter([]Repository, store.RemoteConfiguration) []Repository
}

// SyncAdapter runs the shared reconciliation and hook lifecycle over one
// provider protocol. It holds no per-remote state.
type SyncAdapter struct {
	proto               protocol
	http                *http.Client
	store               HookStore
	urls                URLGenerator
	logger              zerolog.Logger
	maxRateLimitRetries int
	sleepFn             func(context.Context, time.Duration) error
	jitterFn            func(time.Duration) time.Duration
}

func newSyncAdapter(proto protocol, deps Deps) *SyncAdapter {
	client := deps.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	return &SyncAdapter{
		proto:               proto,
		http:                client,
		store:               deps.Store,
		urls:                deps.URLs,
		logger:              deps.Logger.With().Str("provider", proto.name()).Logger(),
		maxRateLimitRetries: defaultRateLimitRetries,
		sleepFn:             sleepWithContext,
		jitterFn:            addJitter,
	}
}

// DefaultAdapters returns the GitLab, GitHub and Bitbucket adapters.
func DefaultAdapters(deps Deps) []Adapter {
	return []Adapter{
		NewGitLabAdapter(deps),
		NewGitHubAdapter(deps),
		NewBitbucketAdapter(deps),
	}
}

func (a *SyncAdapter) Name() string {
	return a.proto.name()
}

func (a *SyncAdapter) Supports(remote store.Remote) bool {
	return remote.Adapter == a.proto.name()
}

func (a *SyncAdapter) SynchronizePackages(ctx context.Context, remote store.Remote) (Reconciliation, error) {
	client, cfg, err := a.client(ctx, remote.ID, remote.Name)
	if err != nil {
		return Reconciliation{}, err
	}

	existing, err := a.store.ListPackagesByRemote(ctx, remote.ID)
	if err != nil {
		return Reconciliation{}, fmt.Errorf("list packages of remote %s: %w", remote.Name, err)
	}

	repos, err := a.proto.listRepositories(ctx, client, cfg)
	if err != nil {
		return Reconciliation{}, fmt.Errorf("list %s repositories of remote %s: %w", a.Name(), remote.Name, err)
	}
	if f, ok := a.proto.(repositoryFilter); ok {
		repos = f.filter(repos, cfg)
	}

	return reconcile(remote, existing, repos)
}

// EnableHook registers the push webhook of pkg. On any failure it logs and
// returns false, leaving pkg untouched.
func (a *SyncAdapter) EnableHook(ctx context.Context, pkg *store.Package) bool {
	log := a.packageLogger(pkg)

	if pkg.HookExternalID != "" {
		log.Info().Str("hook_id", pkg.HookExternalID).Msg("hook already registered")
		return a.saveHookState(ctx, log, pkg, pkg.HookExternalID, true, "enable")
	}

	client, _, err := a.client(ctx, pkg.RemoteID, pkg.RemoteID.String())
	if err != nil {
		log.Error().Err(err).Msg("enable hook: remote not usable")
		a.recordHook("enable", false)
		return false
	}
	if a.urls == nil {
		log.Error().Msg("enable hook: no url generator configured")
		a.recordHook("enable", false)
		return false
	}
	callbackURL, err := a.urls.Generate(WebhookRoute, map[string]string{"id": pkg.ID.String()}, true)
	if err != nil {
		log.Error().Err(err).Msg("enable hook: build callback url")
		a.recordHook("enable", false)
		return false
	}

	hookID, err := a.proto.createHook(ctx, client, *pkg, callbackURL)
	if err != nil {
		log.Error().Err(err).Str("callback", callbackURL).Msg("enable hook failed")
		a.recordHook("enable", false)
		return false
	}
	hookID = strings.TrimSpace(hookID)
	if hookID == "" {
		log.Error().Str("callback", callbackURL).Msg("enable hook: provider returned no hook id")
		a.recordHook("enable", false)
		return false
	}

	// A failure here leaves a live hook at the provider that is not recorded
	// locally; the next enable registers a second one.
	return a.saveHookState(ctx, log.With().Str("hook_id", hookID).Logger(), pkg, hookID, true, "enable")
}

// DisableHook removes the push webhook of pkg. The local hook id and enabled
// flags are always cleared, even when the provider call fails. A provider 404
// counts as success.
func (a *SyncAdapter) DisableHook(ctx context.Context, pkg *store.Package) bool {
	log := a.packageLogger(pkg)
	ok := true

	if pkg.HookExternalID != "" {
		log = log.With().Str("hook_id", pkg.HookExternalID).Logger()
		client, _, err := a.client(ctx, pkg.RemoteID, pkg.RemoteID.String())
		if err == nil {
			err = a.proto.deleteHook(ctx, client, *pkg)
		}
		switch {
		case err == nil:
		case IsNotFound(err):
			log.Info().Err(err).Msg("hook already gone at provider")
		default:
			log.Error().Err(err).Msg("disable hook failed, clearing local state")
			ok = false
		}
	}

	if !a.saveHookState(ctx, log, pkg, "", false, "") {
		ok = false
	}
	a.recordHook("disable", ok)
	return ok
}

func (a *SyncAdapter) saveHookState(ctx context.Context, log zerolog.Logger, pkg *store.Package, hookID string, enabled bool, operation string) bool {
	cfg := a.packageConfiguration(ctx, log, pkg.ID)
	updated := *pkg
	updated.HookExternalID = hookID
	updated.Enabled = enabled
	cfg.Enabled = enabled

	if err := a.store.SaveHookState(ctx, updated, cfg); err != nil {
		log.Error().Err(err).Msg("persist hook state")
		if operation != "" {
			a.recordHook(operation, false)
		}
		return false
	}
	*pkg = updated
	if operation != "" {
		a.recordHook(operation, true)
	}
	return true
}

func (a *SyncAdapter) packageConfiguration(ctx context.Context, log zerolog.Logger, packageID uuid.UUID) store.PackageConfiguration {
	cfg, err := a.store.GetPackageConfiguration(ctx, packageID)
	if err == nil {
		return cfg
	}
	if !store.IsNotFound(err) {
		log.Warn().Err(err).Msg("load package configuration, using defaults")
	}
	return store.PackageConfiguration{PackageID: packageID}
}

func (a *SyncAdapter) client(ctx context.Context, remoteID uuid.UUID, remoteName string) (*apiClient, store.RemoteConfiguration, error) {
	cfg, err := a.store.GetRemoteConfiguration(ctx, remoteID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, cfg, &ConfigurationError{Remote: remoteName, Reason: "no configuration"}
		}
		return nil, cfg, fmt.Errorf("load configuration of remote %s: %w", remoteName, err)
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, cfg, &ConfigurationError{Remote: remoteName, Reason: "token is empty"}
	}
	base, authorize, err := a.proto.connect(cfg)
	if err != nil {
		return nil, cfg, &ConfigurationError{Remote: remoteName, Reason: err.Error()}
	}
	return &apiClient{
		http:                a.http,
		baseURL:             base,
		authorize:           authorize,
		maxRateLimitRetries: a.maxRateLimitRetries,
		sleepFn:             a.sleepFn,
		jitterFn:            a.jitterFn,
	}, cfg, nil
}

func (a *SyncAdapter) packageLogger(pkg *store.Package) zerolog.Logger {
	return a.logger.With().
		Str("remote_id", pkg.RemoteID.String()).
		Str("package", pkg.FQN).
		Str("package_id", pkg.ID.String()).
		Logger()
}

func (a *SyncAdapter) recordHook(operation string, ok bool) {
	result := metrics.ResultSuccess
	if !ok {
		result = metrics.ResultFailure
	}
	metrics.HookOperations.WithLabelValues(a.Name(), operation, result).Inc()
}

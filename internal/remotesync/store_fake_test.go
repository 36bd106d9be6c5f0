package remotesync

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"packages/internal/store"
)

// memStore is an in-memory Store and HookStore.
type memStore struct {
	mu        sync.Mutex
	remotes   map[uuid.UUID]store.Remote
	configs   map[uuid.UUID]store.RemoteConfiguration
	packages  []store.Package
	pkgConfig map[uuid.UUID]store.PackageConfiguration
	runs      []store.SyncRun

	saveErr     error
	hookSaveErr error
	saves       int
}

func newMemStore() *memStore {
	return &memStore{
		remotes:   map[uuid.UUID]store.Remote{},
		configs:   map[uuid.UUID]store.RemoteConfiguration{},
		pkgConfig: map[uuid.UUID]store.PackageConfiguration{},
	}
}

func (m *memStore) addRemote(name, adapter string, cfg store.RemoteConfiguration) store.Remote {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := store.Remote{ID: uuid.New(), Name: name, Adapter: adapter, Enabled: true}
	m.remotes[r.ID] = r
	cfg.RemoteID = r.ID
	cfg.Enabled = true
	m.configs[r.ID] = cfg
	return r
}

func (m *memStore) addPackage(p store.Package) store.Package {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	m.packages = append(m.packages, p)
	return p
}

func (m *memStore) pkg(id uuid.UUID) store.Package {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.packages {
		if p.ID == id {
			return p
		}
	}
	return store.Package{}
}

func (m *memStore) GetRemote(_ context.Context, id uuid.UUID) (store.Remote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.remotes[id]
	if !ok {
		return store.Remote{}, pgx.ErrNoRows
	}
	return r, nil
}

func (m *memStore) ListEnabledRemotes(_ context.Context) ([]store.Remote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Remote
	for _, r := range m.remotes {
		if r.Enabled {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) ListPackagesByRemote(_ context.Context, remoteID uuid.UUID) ([]store.Package, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Package
	for _, p := range m.packages {
		if p.RemoteID == remoteID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) GetRemoteConfiguration(_ context.Context, remoteID uuid.UUID) (store.RemoteConfiguration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.configs[remoteID]
	if !ok {
		return store.RemoteConfiguration{}, pgx.ErrNoRows
	}
	return c, nil
}

func (m *memStore) GetPackageConfiguration(_ context.Context, packageID uuid.UUID) (store.PackageConfiguration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.pkgConfig[packageID]
	if !ok {
		return store.PackageConfiguration{}, pgx.ErrNoRows
	}
	return c, nil
}

func (m *memStore) SaveHookState(_ context.Context, p store.Package, c store.PackageConfiguration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hookSaveErr != nil {
		return m.hookSaveErr
	}
	for i := range m.packages {
		if m.packages[i].ID == p.ID {
			m.packages[i].HookExternalID = p.HookExternalID
			m.packages[i].Enabled = p.Enabled
			c.PackageID = p.ID
			m.pkgConfig[p.ID] = c
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (m *memStore) SaveReconciliation(_ context.Context, remoteID uuid.UUID, touched, disabled []store.Package) ([]store.Package, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return nil, m.saveErr
	}
	m.saves++
	saved := make([]store.Package, 0, len(touched))
	for _, p := range touched {
		p.RemoteID = remoteID
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
			m.packages = append(m.packages, p)
		} else {
			stored, ok := m.updateMetadata(p)
			if !ok {
				return nil, errors.New("unknown package")
			}
			p = stored
		}
		saved = append(saved, p)
	}
	m.disable(disabled)
	return saved, nil
}

func (m *memStore) DisablePackages(_ context.Context, packages []store.Package) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disable(packages)
	return nil
}

func (m *memStore) InsertSyncRun(_ context.Context, run store.SyncRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}

// updateMetadata mirrors the store: only provider owned columns are written.
func (m *memStore) updateMetadata(p store.Package) (store.Package, bool) {
	for i := range m.packages {
		if m.packages[i].ID == p.ID {
			cur := &m.packages[i]
			cur.Name = p.Name
			cur.Description = p.Description
			cur.FQN = p.FQN
			cur.WebURL = p.WebURL
			cur.SSHURL = p.SSHURL
			return *cur, true
		}
	}
	return store.Package{}, false
}

func (m *memStore) disable(packages []store.Package) {
	for _, p := range packages {
		for i := range m.packages {
			if m.packages[i].ID == p.ID {
				m.packages[i].Enabled = false
			}
		}
	}
}

type staticURLs struct {
	base string
}

func (s staticURLs) Generate(routeName string, params map[string]string, _ bool) (string, error) {
	if routeName != WebhookRoute {
		return "", errors.New("unknown route " + routeName)
	}
	return s.base + "/webhook/" + params["id"], nil
}

type memArchive struct {
	mu   sync.Mutex
	data map[string][]byte
	err  error
}

func (a *memArchive) Put(_ context.Context, key string, data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	if a.data == nil {
		a.data = map[string][]byte{}
	}
	a.data[key] = data
	return nil
}

// newTestAdapter builds an adapter that never sleeps between retries.
func newTestAdapter(proto protocol, st *memStore, client *http.Client) *SyncAdapter {
	a := newSyncAdapter(proto, Deps{
		HTTPClient: client,
		Store:      st,
		URLs:       staticURLs{base: "https://packages.example.com"},
		Logger:     zerolog.Nop(),
	})
	a.sleepFn = func(context.Context, time.Duration) error { return nil }
	a.jitterFn = func(d time.Duration) time.Duration { return d }
	return a
}

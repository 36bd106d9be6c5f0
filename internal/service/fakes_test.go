package service

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"packages/internal/remotesync"
	"packages/internal/storage"
	"packages/internal/store"
)

type fakeStore struct {
	mu       sync.Mutex
	remotes  map[uuid.UUID]store.Remote
	configs  map[uuid.UUID]store.RemoteConfiguration
	packages map[uuid.UUID]store.Package
	runs     map[string]store.SyncRun
	system   map[string]json.RawMessage
	tokens   map[string]string
	pushes   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		remotes:  make(map[uuid.UUID]store.Remote),
		configs:  make(map[uuid.UUID]store.RemoteConfiguration),
		packages: make(map[uuid.UUID]store.Package),
		runs:     make(map[string]store.SyncRun),
		system:   make(map[string]json.RawMessage),
		tokens:   make(map[string]string),
	}
}

func (f *fakeStore) addRemote(name, adapter string, enabled bool) store.Remote {
	r := store.Remote{ID: uuid.New(), Name: name, Adapter: adapter, Enabled: enabled}
	f.remotes[r.ID] = r
	return r
}

func (f *fakeStore) addPackage(p store.Package) store.Package {
	p.ID = uuid.New()
	f.packages[p.ID] = p
	return p
}

func (f *fakeStore) GetRemote(_ context.Context, id uuid.UUID) (store.Remote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.remotes[id]
	if !ok {
		return store.Remote{}, pgx.ErrNoRows
	}
	return r, nil
}

func (f *fakeStore) ListRemotes(context.Context) ([]store.Remote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]store.Remote, 0, len(f.remotes))
	for _, r := range f.remotes {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeStore) UpsertRemote(_ context.Context, name, adapter string, enabled bool) (store.Remote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, r := range f.remotes {
		if r.Name == name {
			r.Adapter, r.Enabled = adapter, enabled
			f.remotes[id] = r
			return r, nil
		}
	}
	r := store.Remote{ID: uuid.New(), Name: name, Adapter: adapter, Enabled: enabled}
	f.remotes[r.ID] = r
	return r, nil
}

func (f *fakeStore) UpdateRemoteEnabled(_ context.Context, id uuid.UUID, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.remotes[id]
	if !ok {
		return pgx.ErrNoRows
	}
	r.Enabled = enabled
	f.remotes[id] = r
	return nil
}

func (f *fakeStore) UpsertRemoteConfiguration(_ context.Context, c store.RemoteConfiguration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configs[c.RemoteID] = c
	return nil
}

func (f *fakeStore) GetPackage(_ context.Context, id uuid.UUID) (store.Package, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.packages[id]
	if !ok {
		return store.Package{}, pgx.ErrNoRows
	}
	return p, nil
}

func (f *fakeStore) ListPackages(_ context.Context, filter store.PackageFilter) ([]store.Package, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.Package
	for _, p := range f.packages {
		if filter.RemoteID != nil && p.RemoteID != *filter.RemoteID {
			continue
		}
		if filter.Enabled != nil && p.Enabled != *filter.Enabled {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeStore) TouchPackagePush(_ context.Context, id uuid.UUID) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.packages[id]
	if !ok {
		return time.Time{}, pgx.ErrNoRows
	}
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	p.LastPushedAt = &now
	f.packages[id] = p
	f.pushes++
	return now, nil
}

func (f *fakeStore) ListSyncRuns(_ context.Context, remoteID uuid.UUID, _ int) ([]store.SyncRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.SyncRun
	for _, r := range f.runs {
		if r.RemoteID == remoteID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) GetSyncRun(_ context.Context, id string) (store.SyncRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.runs[id]
	if !ok {
		return store.SyncRun{}, pgx.ErrNoRows
	}
	return r, nil
}

func (f *fakeStore) GetSystemConfig(_ context.Context, key string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.system[key]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return raw, nil
}

func (f *fakeStore) UpsertSystemConfig(_ context.Context, key string, cfg json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.system[key] = cfg
	return nil
}

func (f *fakeStore) UpsertAPIToken(_ context.Context, hash, subject string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens[hash] = subject
	return nil
}

type fakeEngine struct {
	mu           sync.Mutex
	st           *fakeStore
	syncErr      error
	hookOK       bool
	hookErr      error
	hookFailures int
	disabled     []string
	toggled      map[string]bool
}

func (e *fakeEngine) Synchronize(_ context.Context, remote store.Remote) (remotesync.Result, error) {
	if e.syncErr != nil {
		return remotesync.Result{}, e.syncErr
	}
	return remotesync.Result{RunID: "sync_01", Remote: remote.Name, Created: 1}, nil
}

func (e *fakeEngine) DisableRemoteHooks(_ context.Context, remote store.Remote) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.disabled = append(e.disabled, remote.Name)
	return e.hookFailures, e.hookErr
}

func (e *fakeEngine) SetPackageEnabled(_ context.Context, pkg *store.Package, enabled bool) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.hookErr != nil {
		return false, e.hookErr
	}
	if e.toggled == nil {
		e.toggled = make(map[string]bool)
	}
	e.toggled[pkg.FQN] = enabled
	if e.hookOK {
		pkg.Enabled = enabled
		e.st.packages[pkg.ID] = *pkg
	}
	return e.hookOK, nil
}

type fakeSnapshots map[string]string

func (f fakeSnapshots) Open(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := f[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader([]byte(data))), nil
}

func newTestService(st *fakeStore, engine *fakeEngine, snapshots SnapshotReader) *Service {
	if engine != nil {
		engine.st = st
	}
	return New(st, engine, snapshots, zerolog.Nop())
}

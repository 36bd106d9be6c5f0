package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"packages/internal/remotesync"
	"packages/internal/service"
	"packages/internal/store"
)

type fakeService struct {
	packages map[string]store.Package
	pushed   time.Time
	toggled  map[string]bool
	hookOK   bool
	snapshot string
}

func (f *fakeService) ListRemotes(context.Context) ([]store.Remote, error) {
	return []store.Remote{{ID: uuid.New(), Name: "gitlab", Adapter: remotesync.GitLabName, Enabled: true}}, nil
}

func (f *fakeService) GetRemote(_ context.Context, id string) (store.Remote, error) {
	return store.Remote{}, fmt.Errorf("%w: remote", service.ErrNotFound)
}

func (f *fakeService) SetRemoteEnabled(_ context.Context, id string, enabled bool) (service.RemoteToggle, error) {
	return service.RemoteToggle{Remote: store.Remote{Name: id, Enabled: enabled}, HookFailures: 2}, nil
}

func (f *fakeService) SyncRemote(_ context.Context, id string) (remotesync.Result, error) {
	return remotesync.Result{}, fmt.Errorf("%w: remote %s is disabled", service.ErrInvalidInput, id)
}

func (f *fakeService) ListPackages(_ context.Context, q service.PackageQuery) ([]store.Package, error) {
	var out []store.Package
	for _, p := range f.packages {
		if q.Enabled != nil && p.Enabled != *q.Enabled {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeService) GetPackage(_ context.Context, id string) (store.Package, error) {
	p, ok := f.packages[id]
	if !ok {
		return store.Package{}, service.ErrNotFound
	}
	return p, nil
}

func (f *fakeService) SetPackageEnabled(ctx context.Context, id string, enabled bool) (store.Package, error) {
	p, err := f.GetPackage(ctx, id)
	if err != nil {
		return p, err
	}
	if !f.hookOK {
		return p, fmt.Errorf("%w: webhook of %s", service.ErrProviderFailure, p.FQN)
	}
	if f.toggled == nil {
		f.toggled = make(map[string]bool)
	}
	f.toggled[id] = enabled
	p.Enabled = enabled
	return p, nil
}

func (f *fakeService) ReceiveWebhook(ctx context.Context, id string) (service.WebhookReceipt, error) {
	p, err := f.GetPackage(ctx, id)
	if err != nil {
		return service.WebhookReceipt{}, err
	}
	if !p.Enabled {
		return service.WebhookReceipt{PackageID: p.ID}, nil
	}
	return service.WebhookReceipt{PackageID: p.ID, Accepted: true, PushedAt: f.pushed}, nil
}

func (f *fakeService) ListSyncRuns(context.Context, string, int) ([]store.SyncRun, error) {
	return nil, nil
}

func (f *fakeService) OpenSnapshot(_ context.Context, runID string) (io.ReadCloser, error) {
	if f.snapshot == "" {
		return nil, service.ErrNotFound
	}
	return io.NopCloser(strings.NewReader(f.snapshot)), nil
}

func (f *fakeService) GetSyncConfig(context.Context) (service.SyncConfig, error) {
	return service.SyncConfig{Concurrency: 4}, nil
}

func (f *fakeService) SaveSyncConfig(_ context.Context, cfg service.SyncConfig) error {
	return cfg.Validate()
}

type fakeTrigger struct {
	started bool
	status  SyncStatus
}

func (f *fakeTrigger) TriggerSync(context.Context) (bool, error) { return f.started, nil }
func (f *fakeTrigger) Status() SyncStatus                        { return f.status }

func newTestEcho(h *Handler) *echo.Echo {
	e := echo.New()
	e.POST("/webhook/:id", h.ReceiveWebhook)
	e.GET("/remotes", h.ListRemotes)
	e.GET("/remotes/:id", h.GetRemote)
	e.POST("/remotes/:id/enabled", h.SetRemoteEnabled)
	e.POST("/remotes/:id/sync", h.SyncRemote)
	e.GET("/packages", h.ListPackages)
	e.POST("/packages/:id/enabled", h.SetPackageEnabled)
	e.GET("/sync-runs/:id/snapshot", h.GetSnapshot)
	e.POST("/sync", h.TriggerSync)
	e.GET("/sync/status", h.GetSyncStatus)
	e.PUT("/sync/config", h.SaveSyncConfig)
	return e
}

func serve(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestReceiveWebhook(t *testing.T) {
	t.Parallel()

	pushed := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc := &fakeService{
		pushed: pushed,
		packages: map[string]store.Package{
			"live": {FQN: "o/live", Enabled: true},
			"idle": {FQN: "o/idle"},
		},
	}
	e := newTestEcho(New(svc, nil))

	tests := []struct {
		name string
		id   string
		want int
	}{
		{"enabled package", "live", http.StatusAccepted},
		{"disabled package", "idle", http.StatusOK},
		{"unknown package", "gone", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := serve(e, http.MethodPost, "/webhook/"+tt.id, `{"object_kind":"push"}`)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body)
			}
		})
	}

	rec := serve(e, http.MethodPost, "/webhook/live", "")
	var body struct {
		PushedAt int64 `json:"pushedAt"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body.PushedAt != pushed.UnixMilli() {
		t.Fatalf("body = %s, err = %v", rec.Body, err)
	}
}

func TestSetPackageEnabled(t *testing.T) {
	t.Parallel()

	svc := &fakeService{hookOK: true, packages: map[string]store.Package{"p1": {FQN: "team/a"}}}
	e := newTestEcho(New(svc, nil))

	if rec := serve(e, http.MethodPost, "/packages/p1/enabled", `{}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing flag status = %d, want 400", rec.Code)
	}
	rec := serve(e, http.MethodPost, "/packages/p1/enabled", `{"enabled": true}`)
	if rec.Code != http.StatusOK || !svc.toggled["p1"] {
		t.Fatalf("status = %d, toggled = %v", rec.Code, svc.toggled)
	}
	var view packageView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil || !view.Enabled || view.FQN != "team/a" {
		t.Fatalf("view = %+v, err = %v", view, err)
	}

	svc.hookOK = false
	if rec := serve(e, http.MethodPost, "/packages/p1/enabled", `{"enabled": false}`); rec.Code != http.StatusBadGateway {
		t.Fatalf("provider failure status = %d, want 502", rec.Code)
	}
}

func TestListPackages_EnabledFilter(t *testing.T) {
	t.Parallel()

	svc := &fakeService{packages: map[string]store.Package{
		"a": {FQN: "o/a", Enabled: true},
		"b": {FQN: "o/b"},
	}}
	rec := serve(newTestEcho(New(svc, nil)), http.MethodGet, "/packages?enabled=true&limit=500", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Packages []packageView `json:"packages"`
		Limit    int           `json:"limit"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Packages) != 1 || body.Packages[0].FQN != "o/a" || body.Limit != 200 {
		t.Fatalf("body = %+v", body)
	}
}

func TestRemoteEndpoints(t *testing.T) {
	t.Parallel()

	e := newTestEcho(New(&fakeService{}, nil))

	rec := serve(e, http.MethodPost, "/remotes/r1/enabled", `{"enabled": false}`)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"hookFailures":2`) {
		t.Fatalf("toggle = %d %s", rec.Code, rec.Body)
	}
	if rec := serve(e, http.MethodPost, "/remotes/r1/sync", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("sync disabled remote status = %d, want 400", rec.Code)
	}
	if rec := serve(e, http.MethodGet, "/remotes/r1", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("get unknown remote status = %d, want 404", rec.Code)
	}
	if rec := serve(e, http.MethodGet, "/remotes", ""); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"adapter":"GitLab"`) {
		t.Fatalf("list = %d %s", rec.Code, rec.Body)
	}
}

func TestGetSnapshot(t *testing.T) {
	t.Parallel()

	e := newTestEcho(New(&fakeService{snapshot: `{"repositories":[]}`}, nil))
	rec := serve(e, http.MethodGet, "/sync-runs/sync_01/snapshot", "")
	if rec.Code != http.StatusOK || rec.Body.String() != `{"repositories":[]}` {
		t.Fatalf("snapshot = %d %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != echo.MIMEApplicationJSON {
		t.Fatalf("content type = %q", ct)
	}

	e = newTestEcho(New(&fakeService{}, nil))
	if rec := serve(e, http.MethodGet, "/sync-runs/sync_01/snapshot", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("missing snapshot status = %d, want 404", rec.Code)
	}
}

func TestSyncEndpoints(t *testing.T) {
	t.Parallel()

	if rec := serve(newTestEcho(New(&fakeService{}, nil)), http.MethodPost, "/sync", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("unconfigured trigger status = %d, want 503", rec.Code)
	}

	trigger := &fakeTrigger{
		started: true,
		status: SyncStatus{
			LastResult: &remotesync.Summary{
				Remotes: 1,
				Failed:  1,
				ByRemote: []remotesync.RemoteStats{
					{Remote: "github", Err: fmt.Errorf("bad credentials")},
				},
			},
			LastError: "github: bad credentials",
		},
	}
	e := newTestEcho(New(&fakeService{}, trigger))
	if rec := serve(e, http.MethodPost, "/sync", ""); rec.Code != http.StatusAccepted {
		t.Fatalf("trigger status = %d, want 202", rec.Code)
	}
	trigger.started = false
	if rec := serve(e, http.MethodPost, "/sync", ""); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "already running") {
		t.Fatalf("second trigger = %d %s", rec.Code, rec.Body)
	}

	rec := serve(e, http.MethodGet, "/sync/status", "")
	if !strings.Contains(rec.Body.String(), `"error":"bad credentials"`) {
		t.Fatalf("status body = %s", rec.Body)
	}

	if rec := serve(e, http.MethodPut, "/sync/config", `{"interval_seconds": -5}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid config status = %d, want 400", rec.Code)
	}
	if rec := serve(e, http.MethodPut, "/sync/config", `{"enabled": true, "interval_seconds": 600}`); rec.Code != http.StatusOK {
		t.Fatalf("save config status = %d", rec.Code)
	}
}

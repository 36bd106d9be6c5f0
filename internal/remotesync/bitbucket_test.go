package remotesync

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"packages/internal/store"
)

func TestBitbucket_SynchronizeFollowsNext(t *testing.T) {
	t.Parallel()

	var srvURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "bb-user" || pass != "app-password" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Path != "/2.0/repositories/acme" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("page") == "" {
			if r.URL.Query().Get("pagelen") != "100" {
				t.Errorf("pagelen = %q", r.URL.Query().Get("pagelen"))
			}
			fmt.Fprintf(w, `{"values": [{"uuid": "{aaa}", "name": "api", "full_name": "acme/api", "description": "API"}],
				"next": "%s/2.0/repositories/acme?pagelen=100&page=2"}`, srvURL)
			return
		}
		_, _ = w.Write([]byte(`{"values": [{"uuid": "{bbb}", "name": "web", "full_name": "acme/web", "description": ""}]}`))
	}))
	defer srv.Close()
	srvURL = srv.URL

	st := newMemStore()
	remote := st.addRemote("bitbucket", BitbucketName, store.RemoteConfiguration{
		URL:      srv.URL,
		Token:    "app-password",
		Username: "bb-user",
		Account:  "acme",
	})

	rec, err := newTestAdapter(bitbucketProtocol{}, st, srv.Client()).SynchronizePackages(context.Background(), remote)
	if err != nil {
		t.Fatalf("SynchronizePackages() error = %v", err)
	}
	if len(rec.Packages) != 2 {
		t.Fatalf("packages = %d, want 2", len(rec.Packages))
	}
	p := rec.Packages[0]
	if p.ExternalID != "{aaa}" {
		t.Fatalf("external id = %q, want {aaa}", p.ExternalID)
	}
	if p.WebURL != "https://bitbucket.org/acme/api" || p.SSHURL != "git@bitbucket.org:acme/api.git" {
		t.Fatalf("urls = %q %q", p.WebURL, p.SSHURL)
	}
	if rec.Packages[1].FQN != "acme/web" {
		t.Fatalf("second package = %+v", rec.Packages[1])
	}
}

func TestBitbucket_RequiresUsernameAndAccount(t *testing.T) {
	t.Parallel()

	st := newMemStore()
	remote := st.addRemote("bitbucket", BitbucketName, store.RemoteConfiguration{Token: "t", Account: "acme"})
	_, err := newTestAdapter(bitbucketProtocol{}, st, nil).SynchronizePackages(context.Background(), remote)
	if !IsConfigurationError(err) {
		t.Fatalf("err = %v, want configuration error", err)
	}
}

func TestBitbucket_EnableHook(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		response string
		want     bool
		wantHook string
	}{
		{"hook created", `{"uuid": "{hook-1}"}`, true, "{hook-1}"},
		{"response without uuid", `{}`, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost || r.URL.Path != "/2.0/repositories/acme/api/hooks" {
					t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
				}
				var body bitbucketHookRequest
				_ = json.NewDecoder(r.Body).Decode(&body)
				if body.Description != "Rebuild on Packages" || !body.Active {
					t.Errorf("body = %+v", body)
				}
				if len(body.Events) != 1 || body.Events[0] != "repo:push" {
					t.Errorf("events = %v", body.Events)
				}
				w.WriteHeader(http.StatusCreated)
				_, _ = w.Write([]byte(tt.response))
			}))
			defer srv.Close()

			st := newMemStore()
			remote := st.addRemote("bitbucket", BitbucketName, store.RemoteConfiguration{
				URL: srv.URL, Token: "p", Username: "u", Account: "acme",
			})
			pkg := st.addPackage(store.Package{RemoteID: remote.ID, ExternalID: "{aaa}", FQN: "acme/api"})

			got := newTestAdapter(bitbucketProtocol{}, st, srv.Client()).EnableHook(context.Background(), &pkg)
			if got != tt.want {
				t.Fatalf("EnableHook() = %v, want %v", got, tt.want)
			}
			if pkg.HookExternalID != tt.wantHook {
				t.Fatalf("hook id = %q, want %q", pkg.HookExternalID, tt.wantHook)
			}
		})
	}
}

func TestBitbucket_DisableHook(t *testing.T) {
	t.Parallel()

	var deletes atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/2.0/repositories/acme/api/hooks/{hook-1}" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		deletes.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	st := newMemStore()
	remote := st.addRemote("bitbucket", BitbucketName, store.RemoteConfiguration{
		URL: srv.URL, Token: "p", Username: "u", Account: "acme",
	})
	pkg := st.addPackage(store.Package{RemoteID: remote.ID, ExternalID: "{aaa}", FQN: "acme/api", HookExternalID: "{hook-1}", Enabled: true})

	if !newTestAdapter(bitbucketProtocol{}, st, srv.Client()).DisableHook(context.Background(), &pkg) {
		t.Fatalf("DisableHook() = false")
	}
	if deletes.Load() != 1 {
		t.Fatalf("deletes = %d, want 1", deletes.Load())
	}
	if pkg.HookExternalID != "" {
		t.Fatalf("hook id not cleared")
	}
}

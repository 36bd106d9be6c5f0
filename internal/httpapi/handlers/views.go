package handlers

import (
	"packages/internal/remotesync"
	"packages/internal/store"
)

type remoteView struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Adapter string `json:"adapter"`
	Enabled bool   `json:"enabled"`
}

func toRemoteView(r store.Remote) remoteView {
	return remoteView{
		ID:      r.ID.String(),
		Name:    r.Name,
		Adapter: r.Adapter,
		Enabled: r.Enabled,
	}
}

type packageView struct {
	ID           string `json:"id"`
	RemoteID     string `json:"remoteId"`
	ExternalID   string `json:"externalId"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	FQN          string `json:"fqn"`
	WebURL       string `json:"webUrl"`
	SSHURL       string `json:"sshUrl"`
	HookID       string `json:"hookId,omitempty"`
	Enabled      bool   `json:"enabled"`
	LastPushedAt *int64 `json:"lastPushedAt"`
}

func toPackageView(p store.Package) packageView {
	return packageView{
		ID:           p.ID.String(),
		RemoteID:     p.RemoteID.String(),
		ExternalID:   p.ExternalID,
		Name:         p.Name,
		Description:  p.Description,
		FQN:          p.FQN,
		WebURL:       p.WebURL,
		SSHURL:       p.SSHURL,
		HookID:       p.HookExternalID,
		Enabled:      p.Enabled,
		LastPushedAt: toMillisPtr(p.LastPushedAt),
	}
}

func toPackageViews(packages []store.Package) []packageView {
	out := make([]packageView, 0, len(packages))
	for _, p := range packages {
		out = append(out, toPackageView(p))
	}
	return out
}

type syncRunView struct {
	ID          string  `json:"id"`
	RemoteID    string  `json:"remoteId"`
	Status      string  `json:"status"`
	Created     int     `json:"created"`
	Updated     int     `json:"updated"`
	Disabled    int     `json:"disabled"`
	HasSnapshot bool    `json:"hasSnapshot"`
	Error       *string `json:"error"`
	StartedAt   int64   `json:"startedAt"`
	FinishedAt  int64   `json:"finishedAt"`
}

func toSyncRunView(r store.SyncRun) syncRunView {
	return syncRunView{
		ID:          r.ID,
		RemoteID:    r.RemoteID.String(),
		Status:      r.Status,
		Created:     r.Created,
		Updated:     r.Updated,
		Disabled:    r.Disabled,
		HasSnapshot: r.SnapshotKey != nil,
		Error:       r.Error,
		StartedAt:   toMillis(r.StartedAt),
		FinishedAt:  toMillis(r.FinishedAt),
	}
}

type syncResultView struct {
	RunID    string `json:"runId"`
	Remote   string `json:"remote"`
	Provider string `json:"provider"`
	Packages int    `json:"packages"`
	Created  int    `json:"created"`
	Updated  int    `json:"updated"`
	Disabled int    `json:"disabled"`
}

func toSyncResultView(r remotesync.Result) syncResultView {
	return syncResultView{
		RunID:    r.RunID,
		Remote:   r.Remote,
		Provider: r.Provider,
		Packages: len(r.Packages),
		Created:  r.Created,
		Updated:  r.Updated,
		Disabled: r.Disabled,
	}
}

type remoteStatsView struct {
	Remote   string `json:"remote"`
	Provider string `json:"provider"`
	Packages int    `json:"packages"`
	Created  int    `json:"created"`
	Updated  int    `json:"updated"`
	Disabled int    `json:"disabled"`
	Error    string `json:"error,omitempty"`
}

type summaryView struct {
	Remotes  int               `json:"remotes"`
	Failed   int               `json:"failed"`
	Packages int               `json:"packages"`
	Created  int               `json:"created"`
	Updated  int               `json:"updated"`
	Disabled int               `json:"disabled"`
	ByRemote []remoteStatsView `json:"byRemote"`
}

func toSummaryView(s *remotesync.Summary) *summaryView {
	if s == nil {
		return nil
	}
	out := &summaryView{
		Remotes:  s.Remotes,
		Failed:   s.Failed,
		Packages: s.Packages,
		Created:  s.Created,
		Updated:  s.Updated,
		Disabled: s.Disabled,
		ByRemote: make([]remoteStatsView, 0, len(s.ByRemote)),
	}
	for _, r := range s.ByRemote {
		v := remoteStatsView{
			Remote:   r.Remote,
			Provider: r.Provider,
			Packages: r.Packages,
			Created:  r.Created,
			Updated:  r.Updated,
			Disabled: r.Disabled,
		}
		if r.Err != nil {
			v.Error = r.Err.Error()
		}
		out.ByRemote = append(out.ByRemote, v)
	}
	return out
}

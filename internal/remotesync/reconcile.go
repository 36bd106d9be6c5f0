package remotesync

import (
	"strings"

	"packages/internal/store"
)

// reconcile diffs the provider listing against the stored packages of remote.
// Packages are matched by external id; unmatched repositories become new
// packages and unmatched stored packages are disabled, never deleted.
func reconcile(remote store.Remote, existing []store.Package, repos []Repository) (Reconciliation, error) {
	byExternalID := make(map[string]store.Package, len(existing))
	for _, p := range existing {
		id := strings.TrimSpace(p.ExternalID)
		if _, dup := byExternalID[id]; dup {
			return Reconciliation{}, &IntegrityError{
				Remote:     remote.Name,
				ExternalID: id,
				Reason:     "stored more than once",
			}
		}
		byExternalID[id] = p
	}

	out := Reconciliation{
		Packages:     make([]store.Package, 0, len(repos)),
		Repositories: make([]Repository, 0, len(repos)),
	}
	seen := make(map[string]struct{}, len(repos))
	for _, repo := range repos {
		id := strings.TrimSpace(repo.ExternalID)
		if id == "" {
			continue
		}
		// Offset pagination can repeat an item when the listing shifts.
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out.Repositories = append(out.Repositories, repo)

		pkg, ok := byExternalID[id]
		if !ok {
			pkg = store.Package{RemoteID: remote.ID, ExternalID: id}
		}
		before := pkg
		pkg.Name = repo.Name
		pkg.Description = repo.Description
		pkg.FQN = repo.FQN
		pkg.WebURL = repo.WebURL
		pkg.SSHURL = repo.SSHURL

		switch {
		case !ok:
			out.Created++
		case before != pkg:
			out.Updated++
		}
		out.Packages = append(out.Packages, pkg)
	}

	for _, p := range existing {
		if _, ok := seen[strings.TrimSpace(p.ExternalID)]; ok {
			continue
		}
		p.Enabled = false
		out.Disabled = append(out.Disabled, p)
	}
	return out, nil
}

// filterByNamespace keeps repositories whose namespace is in allowed. An
// empty allow-list keeps everything.
func filterByNamespace(repos []Repository, allowed []string) []Repository {
	if len(allowed) == 0 {
		return repos
	}
	set := make(map[string]struct{}, len(allowed))
	for _, path := range allowed {
		set[strings.TrimSpace(path)] = struct{}{}
	}
	out := make([]Repository, 0, len(repos))
	for _, repo := range repos {
		if _, ok := set[strings.TrimSpace(repo.Namespace)]; ok {
			out = append(out, repo)
		}
	}
	return out
}

package remotesync

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"packages/internal/store"
)

const (
	GitHubName       = "GitHub"
	defaultGitHubURL = "https://api.github.com"
)

type gitHubProtocol struct{}

func NewGitHubAdapter(deps Deps) *SyncAdapter {
	return newSyncAdapter(gitHubProtocol{}, deps)
}

type gitHubRepository struct {
	ID          flexibleID `json:"id"`
	Name        string     `json:"name"`
	Description *string    `json:"description"`
	FullName    string     `json:"full_name"`
	CloneURL    string     `json:"clone_url"`
	SSHURL      string     `json:"ssh_url"`
	Owner       struct {
		Login string `json:"login"`
	} `json:"owner"`
}

type gitHubHookConfig struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
}

type gitHubHookRequest struct {
	Name   string           `json:"name"`
	Active bool             `json:"active"`
	Events []string         `json:"events"`
	Config gitHubHookConfig `json:"config"`
}

type gitHubHook struct {
	ID flexibleID `json:"id"`
}

func (gitHubProtocol) name() string {
	return GitHubName
}

func (gitHubProtocol) connect(cfg store.RemoteConfiguration) (string, func(*http.Request), error) {
	base := strings.TrimSuffix(strings.TrimSpace(cfg.URL), "/")
	if base == "" {
		base = defaultGitHubURL
	}
	token := strings.TrimSpace(cfg.Token)
	return base, func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/vnd.github+json")
	}, nil
}

func (gitHubProtocol) listRepositories(ctx context.Context, c *apiClient, _ store.RemoteConfiguration) ([]Repository, error) {
	params := url.Values{}
	params.Set("per_page", strconv.Itoa(MaxPageSize))
	params.Set("page", "1")
	first, err := c.endpoint("user/repos", params)
	if err != nil {
		return nil, err
	}

	items, err := paginate(ctx, first, func(ctx context.Context, pageURL string) ([]gitHubRepository, string, error) {
		var page []gitHubRepository
		header, err := c.get(ctx, pageURL, nil, &page)
		if err != nil {
			return nil, "", err
		}
		return page, nextLink(header), nil
	})
	if err != nil {
		return nil, err
	}

	repos := make([]Repository, 0, len(items))
	for _, r := range items {
		repos = append(repos, Repository{
			ExternalID:  r.ID.String(),
			Name:        r.Name,
			Description: derefString(r.Description),
			FQN:         r.FullName,
			WebURL:      r.CloneURL,
			SSHURL:      r.SSHURL,
			Namespace:   r.Owner.Login,
		})
	}
	return repos, nil
}

func (gitHubProtocol) createHook(ctx context.Context, c *apiClient, pkg store.Package, callbackURL string) (string, error) {
	repoPath, err := repositoryPath(pkg.FQN)
	if err != nil {
		return "", err
	}
	var hook gitHubHook
	_, err = c.post(ctx, "repos/"+repoPath+"/hooks", gitHubHookRequest{
		Name:   "web",
		Active: true,
		Events: []string{"push", "create"},
		Config: gitHubHookConfig{URL: callbackURL, ContentType: "json"},
	}, &hook)
	if err != nil {
		return "", err
	}
	return hook.ID.String(), nil
}

func (gitHubProtocol) deleteHook(ctx context.Context, c *apiClient, pkg store.Package) error {
	repoPath, err := repositoryPath(pkg.FQN)
	if err != nil {
		return err
	}
	return c.delete(ctx, "repos/"+repoPath+"/hooks/"+url.PathEscape(pkg.HookExternalID))
}

// repositoryPath escapes the owner and name of an "owner/name" fqn.
func repositoryPath(fqn string) (string, error) {
	owner, name, ok := strings.Cut(strings.TrimSpace(fqn), "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", fmt.Errorf("invalid repository name %q", fqn)
	}
	return url.PathEscape(owner) + "/" + url.PathEscape(name), nil
}

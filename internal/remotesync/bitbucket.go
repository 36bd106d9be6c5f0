package remotesync

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"packages/internal/store"
)

const (
	BitbucketName       = "Bitbucket"
	defaultBitbucketURL = "https://api.bitbucket.org"
	bitbucketHookName   = "Rebuild on Packages"
)

type bitbucketProtocol struct{}

func NewBitbucketAdapter(deps Deps) *SyncAdapter {
	return newSyncAdapter(bitbucketProtocol{}, deps)
}

type bitbucketRepository struct {
	UUID        flexibleID `json:"uuid"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	FullName    string     `json:"full_name"`
}

type bitbucketPage struct {
	Values []bitbucketRepository `json:"values"`
	Next   string                `json:"next"`
}

type bitbucketHookRequest struct {
	Description string   `json:"description"`
	URL         string   `json:"url"`
	Active      bool     `json:"active"`
	Events      []string `json:"events"`
}

type bitbucketHook struct {
	UUID flexibleID `json:"uuid"`
}

func (bitbucketProtocol) name() string {
	return BitbucketName
}

func (bitbucketProtocol) connect(cfg store.RemoteConfiguration) (string, func(*http.Request), error) {
	username := strings.TrimSpace(cfg.Username)
	if username == "" {
		return "", nil, errors.New("bitbucket username is empty")
	}
	if strings.TrimSpace(cfg.Account) == "" {
		return "", nil, errors.New("bitbucket account is empty")
	}
	base := strings.TrimSuffix(strings.TrimSpace(cfg.URL), "/")
	if base == "" {
		base = defaultBitbucketURL
	}
	token := strings.TrimSpace(cfg.Token)
	return base + "/2.0", func(req *http.Request) {
		req.SetBasicAuth(username, token)
	}, nil
}

func (bitbucketProtocol) listRepositories(ctx context.Context, c *apiClient, cfg store.RemoteConfiguration) ([]Repository, error) {
	account := strings.TrimSpace(cfg.Account)
	params := url.Values{}
	params.Set("pagelen", strconv.Itoa(MaxPageSize))
	first, err := c.endpoint("repositories/"+url.PathEscape(account), params)
	if err != nil {
		return nil, err
	}

	items, err := paginate(ctx, first, func(ctx context.Context, pageURL string) ([]bitbucketRepository, string, error) {
		var page bitbucketPage
		if _, err := c.get(ctx, pageURL, nil, &page); err != nil {
			return nil, "", err
		}
		return page.Values, page.Next, nil
	})
	if err != nil {
		return nil, err
	}

	repos := make([]Repository, 0, len(items))
	for _, r := range items {
		repos = append(repos, Repository{
			ExternalID:  r.UUID.String(),
			Name:        r.Name,
			Description: r.Description,
			FQN:         r.FullName,
			WebURL:      "https://bitbucket.org/" + r.FullName,
			SSHURL:      "git@bitbucket.org:" + r.FullName + ".git",
			Namespace:   account,
		})
	}
	return repos, nil
}

func (bitbucketProtocol) createHook(ctx context.Context, c *apiClient, pkg store.Package, callbackURL string) (string, error) {
	repoPath, err := repositoryPath(pkg.FQN)
	if err != nil {
		return "", err
	}
	var hook bitbucketHook
	_, err = c.post(ctx, "repositories/"+repoPath+"/hooks", bitbucketHookRequest{
		Description: bitbucketHookName,
		URL:         callbackURL,
		Active:      true,
		Events:      []string{"repo:push"},
	}, &hook)
	if err != nil {
		return "", err
	}
	return hook.UUID.String(), nil
}

func (bitbucketProtocol) deleteHook(ctx context.Context, c *apiClient, pkg store.Package) error {
	repoPath, err := repositoryPath(pkg.FQN)
	if err != nil {
		return err
	}
	return c.delete(ctx, "repositories/"+repoPath+"/hooks/"+url.PathEscape(pkg.HookExternalID))
}

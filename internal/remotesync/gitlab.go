package remotesync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"packages/internal/store"
)

const GitLabName = "GitLab"

type gitLabProtocol struct{}

func NewGitLabAdapter(deps Deps) *SyncAdapter {
	return newSyncAdapter(gitLabProtocol{}, deps)
}

type gitLabUser struct {
	IsAdmin bool `json:"is_admin"`
}

type gitLabProject struct {
	ID                flexibleID `json:"id"`
	Name              string     `json:"name"`
	Description       *string    `json:"description"`
	PathWithNamespace string     `json:"path_with_namespace"`
	WebURL            string     `json:"web_url"`
	SSHURLToRepo      string     `json:"ssh_url_to_repo"`
	Namespace         struct {
		FullPath string `json:"full_path"`
	} `json:"namespace"`
}

type gitLabHook struct {
	ID flexibleID `json:"id"`
}

// gitLabHookRequest subscribes to push and tag push events only.
type gitLabHookRequest struct {
	URL                      string `json:"url"`
	PushEvents               bool   `json:"push_events"`
	TagPushEvents            bool   `json:"tag_push_events"`
	IssuesEvents             bool   `json:"issues_events"`
	ConfidentialIssuesEvents bool   `json:"confidential_issues_events"`
	MergeRequestsEvents      bool   `json:"merge_requests_events"`
	NoteEvents               bool   `json:"note_events"`
	ConfidentialNoteEvents   bool   `json:"confidential_note_events"`
	JobEvents                bool   `json:"job_events"`
	PipelineEvents           bool   `json:"pipeline_events"`
	WikiPageEvents           bool   `json:"wiki_page_events"`
	DeploymentEvents         bool   `json:"deployment_events"`
	ReleasesEvents           bool   `json:"releases_events"`
	EnableSSLVerification    bool   `json:"enable_ssl_verification"`
}

func (gitLabProtocol) name() string {
	return GitLabName
}

func (gitLabProtocol) connect(cfg store.RemoteConfiguration) (string, func(*http.Request), error) {
	base := strings.TrimSuffix(strings.TrimSpace(cfg.URL), "/")
	if base == "" {
		return "", nil, errors.New("gitlab url is empty")
	}
	token := strings.TrimSpace(cfg.Token)
	return base + "/api/v4", func(req *http.Request) {
		req.Header.Set("PRIVATE-TOKEN", token)
	}, nil
}

// listRepositories lists every project for administrators and the member
// projects otherwise.
func (gitLabProtocol) listRepositories(ctx context.Context, c *apiClient, _ store.RemoteConfiguration) ([]Repository, error) {
	var user gitLabUser
	if _, err := c.get(ctx, "user", nil, &user); err != nil {
		return nil, fmt.Errorf("current user: %w", err)
	}

	params := url.Values{}
	params.Set("per_page", strconv.Itoa(MaxPageSize))
	params.Set("page", "1")
	if !user.IsAdmin {
		params.Set("membership", "true")
	}
	first, err := c.endpoint("projects", params)
	if err != nil {
		return nil, err
	}

	projects, err := paginate(ctx, first, func(ctx context.Context, pageURL string) ([]gitLabProject, string, error) {
		var page []gitLabProject
		header, err := c.get(ctx, pageURL, nil, &page)
		if err != nil {
			return nil, "", err
		}
		if next := nextLink(header); next != "" {
			return page, next, nil
		}
		return page, gitLabNextPage(pageURL, header.Get("X-Next-Page")), nil
	})
	if err != nil {
		return nil, err
	}

	repos := make([]Repository, 0, len(projects))
	for _, p := range projects {
		repos = append(repos, Repository{
			ExternalID:  p.ID.String(),
			Name:        p.Name,
			Description: derefString(p.Description),
			FQN:         p.PathWithNamespace,
			WebURL:      p.WebURL,
			SSHURL:      p.SSHURLToRepo,
			Namespace:   p.Namespace.FullPath,
		})
	}
	return repos, nil
}

func (gitLabProtocol) filter(repos []Repository, cfg store.RemoteConfiguration) []Repository {
	return filterByNamespace(repos, cfg.AllowedPathList())
}

func (gitLabProtocol) createHook(ctx context.Context, c *apiClient, pkg store.Package, callbackURL string) (string, error) {
	var hook gitLabHook
	_, err := c.post(ctx, "projects/"+url.PathEscape(pkg.ExternalID)+"/hooks", gitLabHookRequest{
		URL:                   callbackURL,
		PushEvents:            true,
		TagPushEvents:         true,
		EnableSSLVerification: true,
	}, &hook)
	if err != nil {
		return "", err
	}
	return hook.ID.String(), nil
}

// deleteHook resolves the project first so that a deleted project reports
// not found instead of a generic failure.
func (gitLabProtocol) deleteHook(ctx context.Context, c *apiClient, pkg store.Package) error {
	project := "projects/" + url.PathEscape(pkg.ExternalID)
	var p gitLabProject
	if _, err := c.get(ctx, project, nil, &p); err != nil {
		return err
	}
	return c.delete(ctx, project+"/hooks/"+url.PathEscape(pkg.HookExternalID))
}

// gitLabNextPage builds the next page URL from X-Next-Page when the Link
// header is absent.
func gitLabNextPage(pageURL, next string) string {
	next = strings.TrimSpace(next)
	if next == "" {
		return ""
	}
	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	q := u.Query()
	q.Set("page", next)
	u.RawQuery = q.Encode()
	return u.String()
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

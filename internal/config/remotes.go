package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
)

// RemoteSeed is one remote declared in the remotes file.
type RemoteSeed struct {
	Name         string   `yaml:"name"`
	Adapter      string   `yaml:"adapter"`
	Enabled      *bool    `yaml:"enabled"`
	URL          string   `yaml:"url"`
	Token        string   `yaml:"token"`
	Username     string   `yaml:"username"`
	Account      string   `yaml:"account"`
	AllowedPaths []string `yaml:"allowed_paths"`
}

// IsEnabled defaults to true when the file leaves the flag out.
func (r RemoteSeed) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// APITokenSeed registers a bearer token for the internal API.
type APITokenSeed struct {
	Subject string `yaml:"subject"`
	Token   string `yaml:"token"`
}

type RemotesFile struct {
	Remotes   []RemoteSeed   `yaml:"remotes"`
	APITokens []APITokenSeed `yaml:"api_tokens"`
}

// LoadRemotesFile reads and validates a remotes file. ${VAR} references are
// expanded from the environment so credentials can stay out of the file.
func LoadRemotesFile(path string) (RemotesFile, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return RemotesFile{}, fmt.Errorf("read remotes file: %w", err)
	}
	return ParseRemotes(bs)
}

func ParseRemotes(bs []byte) (RemotesFile, error) {
	var f RemotesFile
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(bs))), &f); err != nil {
		return RemotesFile{}, fmt.Errorf("failed to unmarshal remotes file: %w", err)
	}

	seen := make(map[string]struct{}, len(f.Remotes))
	var errs []error
	for i := range f.Remotes {
		r := &f.Remotes[i]
		r.Name = strings.TrimSpace(r.Name)
		r.Adapter = strings.TrimSpace(r.Adapter)
		if r.Name == "" {
			errs = append(errs, fmt.Errorf("remotes[%d]: name is required", i))
			continue
		}
		if r.Adapter == "" {
			errs = append(errs, fmt.Errorf("remote %q: adapter is required", r.Name))
		}
		if _, ok := seen[r.Name]; ok {
			errs = append(errs, fmt.Errorf("remote %q: declared more than once", r.Name))
		}
		seen[r.Name] = struct{}{}
	}
	for i, t := range f.APITokens {
		if strings.TrimSpace(t.Subject) == "" || strings.TrimSpace(t.Token) == "" {
			errs = append(errs, fmt.Errorf("api_tokens[%d]: subject and token are required", i))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return RemotesFile{}, err
	}
	return f, nil
}

package service

import (
	"context"
	"fmt"
	"strings"

	"packages/internal/auth"
	"packages/internal/config"
	"packages/internal/store"
)

// SeedRemotes upserts the remotes, their credentials and the API tokens
// declared in a remotes file. It returns the number of remotes written.
func (s *Service) SeedRemotes(ctx context.Context, f config.RemotesFile) (int, error) {
	for _, seed := range f.Remotes {
		remote, err := s.store.UpsertRemote(ctx, seed.Name, seed.Adapter, seed.IsEnabled())
		if err != nil {
			return 0, fmt.Errorf("seed remote %s: %w", seed.Name, err)
		}
		err = s.store.UpsertRemoteConfiguration(ctx, store.RemoteConfiguration{
			RemoteID:     remote.ID,
			URL:          strings.TrimSpace(seed.URL),
			Token:        seed.Token,
			Username:     seed.Username,
			Account:      seed.Account,
			AllowedPaths: strings.Join(seed.AllowedPaths, ","),
			Enabled:      remote.Enabled,
		})
		if err != nil {
			return 0, fmt.Errorf("seed configuration of remote %s: %w", seed.Name, err)
		}
		s.logger.Info().
			Str("remote", remote.Name).
			Str("provider", remote.Adapter).
			Bool("enabled", remote.Enabled).
			Msg("remote seeded")
	}
	for _, t := range f.APITokens {
		if err := s.store.UpsertAPIToken(ctx, auth.HashToken(t.Token), t.Subject); err != nil {
			return 0, fmt.Errorf("seed api token of %s: %w", t.Subject, err)
		}
	}
	return len(f.Remotes), nil
}

package service

import (
	"context"
	"errors"
	"fmt"

	"packages/internal/remotesync"
	"packages/internal/store"
)

// RemoteToggle is the outcome of enabling or disabling a remote.
type RemoteToggle struct {
	Remote       store.Remote
	HookFailures int
}

func (s *Service) ListRemotes(ctx context.Context) ([]store.Remote, error) {
	return s.store.ListRemotes(ctx)
}

func (s *Service) GetRemote(ctx context.Context, id string) (store.Remote, error) {
	uid, err := parseID(id)
	if err != nil {
		return store.Remote{}, err
	}
	remote, err := s.store.GetRemote(ctx, uid)
	if err != nil {
		return store.Remote{}, notFound(err, "remote")
	}
	return remote, nil
}

// SetRemoteEnabled updates the remote first. Disabling then tears down the
// webhooks of all its packages; hook failures are counted, not fatal.
func (s *Service) SetRemoteEnabled(ctx context.Context, id string, enabled bool) (RemoteToggle, error) {
	uid, err := parseID(id)
	if err != nil {
		return RemoteToggle{}, err
	}
	if err := s.store.UpdateRemoteEnabled(ctx, uid, enabled); err != nil {
		return RemoteToggle{}, notFound(err, "remote")
	}
	remote, err := s.store.GetRemote(ctx, uid)
	if err != nil {
		return RemoteToggle{}, notFound(err, "remote")
	}
	if enabled {
		return RemoteToggle{Remote: remote}, nil
	}

	failed, err := s.engine.DisableRemoteHooks(ctx, remote)
	if err != nil {
		return RemoteToggle{Remote: remote, HookFailures: failed}, fmt.Errorf("disable hooks of remote %s: %w", remote.Name, err)
	}
	if failed > 0 {
		s.logger.Warn().
			Str("remote", remote.Name).
			Int("hook_failures", failed).
			Msg("some webhooks could not be removed")
	}
	return RemoteToggle{Remote: remote, HookFailures: failed}, nil
}

// SyncRemote synchronizes one enabled remote now.
func (s *Service) SyncRemote(ctx context.Context, id string) (remotesync.Result, error) {
	remote, err := s.GetRemote(ctx, id)
	if err != nil {
		return remotesync.Result{}, err
	}
	if !remote.Enabled {
		return remotesync.Result{}, fmt.Errorf("%w: remote %s is disabled", ErrInvalidInput, remote.Name)
	}
	res, err := s.engine.Synchronize(ctx, remote)
	if err != nil {
		if remotesync.IsConfigurationError(err) {
			return res, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		var integrity *remotesync.IntegrityError
		if errors.As(err, &integrity) {
			return res, fmt.Errorf("%w: %v", ErrConflict, err)
		}
		return res, err
	}
	return res, nil
}

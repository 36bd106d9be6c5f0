package remotesync

import (
	"context"
	"fmt"

	"packages/internal/store"
)

// DisableRemoteHooks tears down the webhooks of every package of a disabled
// remote and disables the packages. A failed teardown is logged and does not
// stop the batch; the returned count is the number of such failures.
//
// Callers invoke it after the remote itself has been updated.
func (o *Orchestrator) DisableRemoteHooks(ctx context.Context, remote store.Remote) (int, error) {
	log := o.logger.With().
		Str("remote", remote.Name).
		Str("remote_id", remote.ID.String()).
		Logger()

	adapter, err := o.AdapterFor(remote)
	if err != nil {
		return 0, err
	}
	packages, err := o.store.ListPackagesByRemote(ctx, remote.ID)
	if err != nil {
		return 0, fmt.Errorf("list packages of remote %s: %w", remote.Name, err)
	}

	failed := 0
	for i := range packages {
		if err := ctx.Err(); err != nil {
			return failed, err
		}
		if !adapter.DisableHook(ctx, &packages[i]) {
			failed++
		}
	}

	if err := o.store.DisablePackages(ctx, packages); err != nil {
		return failed, fmt.Errorf("disable packages of remote %s: %w", remote.Name, err)
	}
	log.Info().Int("packages", len(packages)).Int("hook_failures", failed).Msg("remote hooks disabled")
	return failed, nil
}

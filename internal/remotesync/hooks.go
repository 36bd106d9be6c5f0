package remotesync

import (
	"context"
	"fmt"

	"packages/internal/store"
)

// SetPackageEnabled registers or removes the webhook of pkg through the
// adapter of its remote and reports whether the provider operation succeeded.
func (o *Orchestrator) SetPackageEnabled(ctx context.Context, pkg *store.Package, enabled bool) (bool, error) {
	remote, err := o.store.GetRemote(ctx, pkg.RemoteID)
	if err != nil {
		return false, fmt.Errorf("load remote of package %s: %w", pkg.FQN, err)
	}
	adapter, err := o.AdapterFor(remote)
	if err != nil {
		return false, err
	}
	if enabled {
		return adapter.EnableHook(ctx, pkg), nil
	}
	return adapter.DisableHook(ctx, pkg), nil
}

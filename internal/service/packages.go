package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"packages/internal/metrics"
	"packages/internal/remotesync"
	"packages/internal/store"
)

const maxPackagePageSize = 200

type PackageQuery struct {
	RemoteID string
	Enabled  *bool
	Search   string
	Limit    int
	Offset   int
}

func (s *Service) ListPackages(ctx context.Context, q PackageQuery) ([]store.Package, error) {
	f := store.PackageFilter{
		Enabled: q.Enabled,
		Search:  strings.TrimSpace(q.Search),
		Limit:   q.Limit,
		Offset:  q.Offset,
	}
	if q.RemoteID != "" {
		id, err := parseID(q.RemoteID)
		if err != nil {
			return nil, err
		}
		f.RemoteID = &id
	}
	if f.Limit <= 0 || f.Limit > maxPackagePageSize {
		f.Limit = maxPackagePageSize
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.store.ListPackages(ctx, f)
}

func (s *Service) GetPackage(ctx context.Context, id string) (store.Package, error) {
	uid, err := parseID(id)
	if err != nil {
		return store.Package{}, err
	}
	pkg, err := s.store.GetPackage(ctx, uid)
	if err != nil {
		return store.Package{}, notFound(err, "package")
	}
	return pkg, nil
}

// SetPackageEnabled registers or removes the package's push webhook. Packages
// of a disabled remote can only be disabled.
func (s *Service) SetPackageEnabled(ctx context.Context, id string, enabled bool) (store.Package, error) {
	pkg, err := s.GetPackage(ctx, id)
	if err != nil {
		return store.Package{}, err
	}
	if enabled {
		remote, err := s.store.GetRemote(ctx, pkg.RemoteID)
		if err != nil {
			return store.Package{}, notFound(err, "remote")
		}
		if !remote.Enabled {
			return store.Package{}, fmt.Errorf("%w: remote %s is disabled", ErrInvalidInput, remote.Name)
		}
	}

	ok, err := s.engine.SetPackageEnabled(ctx, &pkg, enabled)
	if err != nil {
		if remotesync.IsConfigurationError(err) {
			return pkg, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return pkg, notFound(err, "remote")
	}
	if !ok {
		return pkg, fmt.Errorf("%w: webhook of %s", ErrProviderFailure, pkg.FQN)
	}
	return pkg, nil
}

// WebhookReceipt reports how a push callback was handled.
type WebhookReceipt struct {
	PackageID uuid.UUID
	Accepted  bool
	PushedAt  time.Time
}

// ReceiveWebhook records a push for an enabled package. Callbacks for
// disabled packages are acknowledged and ignored.
func (s *Service) ReceiveWebhook(ctx context.Context, id string) (WebhookReceipt, error) {
	pkg, err := s.GetPackage(ctx, id)
	if err != nil {
		metrics.WebhooksReceived.WithLabelValues(metrics.ResultFailure).Inc()
		return WebhookReceipt{}, err
	}
	if !pkg.Enabled {
		metrics.WebhooksReceived.WithLabelValues(metrics.ResultIgnored).Inc()
		s.logger.Debug().Str("package", pkg.FQN).Msg("push for disabled package ignored")
		return WebhookReceipt{PackageID: pkg.ID}, nil
	}
	pushedAt, err := s.store.TouchPackagePush(ctx, pkg.ID)
	if err != nil {
		metrics.WebhooksReceived.WithLabelValues(metrics.ResultFailure).Inc()
		return WebhookReceipt{}, notFound(err, "package")
	}
	metrics.WebhooksReceived.WithLabelValues(metrics.ResultSuccess).Inc()
	s.logger.Info().
		Str("package", pkg.FQN).
		Str("package_id", pkg.ID.String()).
		Msg("push received")
	return WebhookReceipt{PackageID: pkg.ID, Accepted: true, PushedAt: pushedAt}, nil
}

package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Package is a repository mirrored from a remote. ID is uuid.Nil until the
// package has been persisted.
type Package struct {
	ID             uuid.UUID
	RemoteID       uuid.UUID
	ExternalID     string
	Name           string
	Description    string
	FQN            string
	WebURL         string
	SSHURL         string
	HookExternalID string
	Enabled        bool
	LastPushedAt   *time.Time
}

func (p Package) IsNew() bool {
	return p.ID == uuid.Nil
}

// PackageConfiguration holds the webhook state of a package.
type PackageConfiguration struct {
	PackageID uuid.UUID
	Enabled   bool
}

type PackageFilter struct {
	RemoteID *uuid.UUID
	Enabled  *bool
	Search   string
	Limit    int
	Offset   int
}

const packageColumns = `id, remote_id, external_id, name, description, fqn, web_url, ssh_url, hook_external_id, enabled, last_pushed_at`

func scanPackage(row pgx.Row) (Package, error) {
	var p Package
	err := row.Scan(
		&p.ID, &p.RemoteID, &p.ExternalID, &p.Name, &p.Description, &p.FQN,
		&p.WebURL, &p.SSHURL, &p.HookExternalID, &p.Enabled, &p.LastPushedAt,
	)
	if err != nil {
		return Package{}, err
	}
	return p, nil
}

func collectPackages(rows pgx.Rows) ([]Package, error) {
	defer rows.Close()
	var packages []Package
	for rows.Next() {
		p, err := scanPackage(rows)
		if err != nil {
			return nil, err
		}
		packages = append(packages, p)
	}
	return packages, rows.Err()
}

func (s *Store) GetPackage(ctx context.Context, id uuid.UUID) (Package, error) {
	return scanPackage(s.db.QueryRow(ctx, `SELECT `+packageColumns+` FROM packages WHERE id = $1`, id))
}

func (s *Store) ListPackagesByRemote(ctx context.Context, remoteID uuid.UUID) ([]Package, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+packageColumns+`
		FROM packages
		WHERE remote_id = $1
		ORDER BY fqn, id
	`, remoteID)
	if err != nil {
		return nil, err
	}
	return collectPackages(rows)
}

func (s *Store) ListPackages(ctx context.Context, f PackageFilter) ([]Package, error) {
	var (
		where []string
		args  []any
	)
	if f.RemoteID != nil {
		args = append(args, *f.RemoteID)
		where = append(where, fmt.Sprintf("remote_id = $%d", len(args)))
	}
	if f.Enabled != nil {
		args = append(args, *f.Enabled)
		where = append(where, fmt.Sprintf("enabled = $%d", len(args)))
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		args = append(args, "%"+search+"%")
		where = append(where, fmt.Sprintf("fqn ILIKE $%d", len(args)))
	}

	query := `SELECT ` + packageColumns + ` FROM packages`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY fqn, id`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectPackages(rows)
}

func insertPackage(ctx context.Context, q querier, p Package) (Package, error) {
	saved, err := scanPackage(q.QueryRow(ctx, `
		INSERT INTO packages (id, remote_id, external_id, name, description, fqn, web_url, ssh_url, hook_external_id, enabled)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+packageColumns,
		uuid.New(), p.RemoteID, p.ExternalID, p.Name, p.Description, p.FQN, p.WebURL, p.SSHURL, p.HookExternalID, p.Enabled,
	))
	if err != nil && isUniqueViolation(err) {
		return Package{}, fmt.Errorf("package %s/%s: %w", p.RemoteID, p.ExternalID, ErrConflict)
	}
	return saved, err
}

// updatePackageMetadata writes the provider owned columns only. Hook id and
// enabled state belong to the hook lifecycle and may change while a sync is
// listing the provider.
func updatePackageMetadata(ctx context.Context, q querier, p Package) (Package, error) {
	return scanPackage(q.QueryRow(ctx, `
		UPDATE packages
		SET name = $2,
			description = $3,
			fqn = $4,
			web_url = $5,
			ssh_url = $6,
			updated_at = now()
		WHERE id = $1
		RETURNING `+packageColumns,
		p.ID, p.Name, p.Description, p.FQN, p.WebURL, p.SSHURL,
	))
}

func savePackage(ctx context.Context, q querier, p Package) (Package, error) {
	if p.IsNew() {
		return insertPackage(ctx, q, p)
	}
	return updatePackageMetadata(ctx, q, p)
}

// SaveReconciliation persists the outcome of one synchronization in a single
// transaction: touched packages are inserted or get their metadata updated,
// disabled packages are flagged. It returns the touched packages as stored.
func (s *Store) SaveReconciliation(ctx context.Context, remoteID uuid.UUID, touched, disabled []Package) ([]Package, error) {
	saved := make([]Package, 0, len(touched))
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		for _, p := range touched {
			p.RemoteID = remoteID
			out, err := savePackage(ctx, tx, p)
			if err != nil {
				return fmt.Errorf("save package %q: %w", p.FQN, err)
			}
			saved = append(saved, out)
		}
		return disablePackages(ctx, tx, disabled)
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func disablePackages(ctx context.Context, q querier, packages []Package) error {
	for _, p := range packages {
		if p.IsNew() {
			continue
		}
		if _, err := q.Exec(ctx, `UPDATE packages SET enabled = false, updated_at = now() WHERE id = $1`, p.ID); err != nil {
			return fmt.Errorf("disable package %q: %w", p.FQN, err)
		}
	}
	return nil
}

// DisablePackages sets enabled = false on the given packages in one
// transaction. No other column is written.
func (s *Store) DisablePackages(ctx context.Context, packages []Package) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		return disablePackages(ctx, tx, packages)
	})
}

func (s *Store) UpdatePackageEnabled(ctx context.Context, id uuid.UUID, enabled bool) error {
	ct, err := s.db.Exec(ctx, `UPDATE packages SET enabled = $2, updated_at = now() WHERE id = $1`, id, enabled)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (s *Store) TouchPackagePush(ctx context.Context, id uuid.UUID) (time.Time, error) {
	at := nowUTC()
	ct, err := s.db.Exec(ctx, `UPDATE packages SET last_pushed_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return time.Time{}, err
	}
	if ct.RowsAffected() == 0 {
		return time.Time{}, pgx.ErrNoRows
	}
	return at, nil
}

func (s *Store) GetPackageConfiguration(ctx context.Context, packageID uuid.UUID) (PackageConfiguration, error) {
	var c PackageConfiguration
	err := s.db.QueryRow(ctx, `
		SELECT package_id, enabled
		FROM package_configurations
		WHERE package_id = $1
	`, packageID).Scan(&c.PackageID, &c.Enabled)
	if err != nil {
		return PackageConfiguration{}, err
	}
	return c, nil
}

// SaveHookState writes the webhook state of a package and its configuration
// together.
func (s *Store) SaveHookState(ctx context.Context, p Package, c PackageConfiguration) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		ct, err := tx.Exec(ctx, `
			UPDATE packages
			SET hook_external_id = $2, enabled = $3, updated_at = now()
			WHERE id = $1
		`, p.ID, p.HookExternalID, p.Enabled)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO package_configurations (package_id, enabled, updated_at)
			VALUES ($1, $2, now())
			ON CONFLICT (package_id) DO UPDATE
			SET enabled = EXCLUDED.enabled, updated_at = now()
		`, p.ID, c.Enabled)
		return err
	})
}

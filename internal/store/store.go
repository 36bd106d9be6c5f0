package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrConflict = errors.New("conflict")

// Remote is a configured source-control account or server.
type Remote struct {
	ID      uuid.UUID
	Name    string
	Adapter string
	Enabled bool
}

// RemoteConfiguration holds the provider credentials of a remote. Which
// fields are meaningful depends on the provider.
type RemoteConfiguration struct {
	RemoteID     uuid.UUID
	URL          string
	Token        string
	Username     string
	Account      string
	AllowedPaths string
	Enabled      bool
}

// AllowedPathList splits the comma separated namespace allow-list.
func (c RemoteConfiguration) AllowedPathList() []string {
	if strings.TrimSpace(c.AllowedPaths) == "" {
		return nil
	}
	parts := strings.Split(c.AllowedPaths, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		p := strings.TrimSpace(part)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	db *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return s.db.Begin(ctx)
}

// withTx runs fn inside a transaction, committing only when fn succeeds.
func (s *Store) withTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

const remoteColumns = `id, name, adapter, enabled`

func scanRemote(row pgx.Row) (Remote, error) {
	var r Remote
	if err := row.Scan(&r.ID, &r.Name, &r.Adapter, &r.Enabled); err != nil {
		return Remote{}, err
	}
	return r, nil
}

func (s *Store) GetRemote(ctx context.Context, id uuid.UUID) (Remote, error) {
	return scanRemote(s.db.QueryRow(ctx, `SELECT `+remoteColumns+` FROM remotes WHERE id = $1`, id))
}

func (s *Store) GetRemoteByName(ctx context.Context, name string) (Remote, error) {
	return scanRemote(s.db.QueryRow(ctx, `SELECT `+remoteColumns+` FROM remotes WHERE name = $1`, name))
}

func (s *Store) ListRemotes(ctx context.Context) ([]Remote, error) {
	return s.listRemotes(ctx, `SELECT `+remoteColumns+` FROM remotes ORDER BY name`)
}

func (s *Store) ListEnabledRemotes(ctx context.Context) ([]Remote, error) {
	return s.listRemotes(ctx, `SELECT `+remoteColumns+` FROM remotes WHERE enabled ORDER BY name`)
}

func (s *Store) listRemotes(ctx context.Context, query string) ([]Remote, error) {
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var remotes []Remote
	for rows.Next() {
		r, err := scanRemote(rows)
		if err != nil {
			return nil, err
		}
		remotes = append(remotes, r)
	}
	return remotes, rows.Err()
}

// UpsertRemote creates the remote or updates the adapter and enabled flag of
// the remote with the same name.
func (s *Store) UpsertRemote(ctx context.Context, name, adapter string, enabled bool) (Remote, error) {
	return scanRemote(s.db.QueryRow(ctx, `
		INSERT INTO remotes (id, name, adapter, enabled)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name)
		DO UPDATE SET adapter = EXCLUDED.adapter, enabled = EXCLUDED.enabled, updated_at = now()
		RETURNING `+remoteColumns,
		uuid.New(), name, adapter, enabled,
	))
}

func (s *Store) UpdateRemoteEnabled(ctx context.Context, id uuid.UUID, enabled bool) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		ct, err := tx.Exec(ctx, `UPDATE remotes SET enabled = $2, updated_at = now() WHERE id = $1`, id, enabled)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		// The configuration mirrors the remote's enabled flag.
		_, err = tx.Exec(ctx, `UPDATE remote_configurations SET enabled = $2, updated_at = now() WHERE remote_id = $1`, id, enabled)
		return err
	})
}

func (s *Store) GetRemoteConfiguration(ctx context.Context, remoteID uuid.UUID) (RemoteConfiguration, error) {
	var c RemoteConfiguration
	err := s.db.QueryRow(ctx, `
		SELECT remote_id, url, token, username, account, allowed_paths, enabled
		FROM remote_configurations
		WHERE remote_id = $1
	`, remoteID).Scan(&c.RemoteID, &c.URL, &c.Token, &c.Username, &c.Account, &c.AllowedPaths, &c.Enabled)
	if err != nil {
		return RemoteConfiguration{}, err
	}
	return c, nil
}

func (s *Store) UpsertRemoteConfiguration(ctx context.Context, c RemoteConfiguration) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO remote_configurations (remote_id, url, token, username, account, allowed_paths, enabled)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (remote_id) DO UPDATE
		SET url = EXCLUDED.url,
			token = EXCLUDED.token,
			username = EXCLUDED.username,
			account = EXCLUDED.account,
			allowed_paths = EXCLUDED.allowed_paths,
			enabled = EXCLUDED.enabled,
			updated_at = now()
	`, c.RemoteID, c.URL, c.Token, c.Username, c.Account, c.AllowedPaths, c.Enabled)
	return err
}

// ---- API tokens ----

type APIToken struct {
	Subject  string
	Disabled bool
}

func (s *Store) LookupAPIToken(ctx context.Context, tokenHash string) (APIToken, error) {
	var t APIToken
	err := s.db.QueryRow(ctx, `
		SELECT subject, disabled
		FROM api_tokens
		WHERE token_hash = $1
	`, tokenHash).Scan(&t.Subject, &t.Disabled)
	return t, err
}

// UpsertAPIToken registers a token hash for subject, re-enabling it if it
// was disabled.
func (s *Store) UpsertAPIToken(ctx context.Context, tokenHash, subject string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO api_tokens (token_hash, subject)
		VALUES ($1, $2)
		ON CONFLICT (token_hash) DO UPDATE
		SET subject = EXCLUDED.subject, disabled = false
	`, tokenHash, subject)
	return err
}

// ---- System Config (generic key-value) ----

func (s *Store) GetSystemConfig(ctx context.Context, key string) (json.RawMessage, error) {
	var raw json.RawMessage
	err := s.db.QueryRow(ctx,
		`SELECT config FROM system_configs WHERE config_key = $1`, key,
	).Scan(&raw)
	return raw, err
}

func (s *Store) UpsertSystemConfig(ctx context.Context, key string, config json.RawMessage) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO system_configs (config_key, config, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (config_key) DO UPDATE
		SET config = EXCLUDED.config, updated_at = now()
	`, key, config)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

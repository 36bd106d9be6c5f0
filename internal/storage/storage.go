package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// ErrNotFound is returned by Open when no snapshot exists under the key.
var ErrNotFound = errors.New("snapshot not found")

// SnapshotStorage keeps the raw repository listings fetched by sync runs.
// Both local-disk and S3-compatible stores implement this.
type SnapshotStorage interface {
	// Put stores data under key, replacing any previous snapshot.
	Put(ctx context.Context, key string, data []byte) error

	// Open retrieves a previously stored snapshot. The caller closes it.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// Options selects and configures a backend.
type Options struct {
	Backend string // "local", "s3" or "none"
	Root    string
	S3      S3Config
}

// New builds the configured backend. The "none" backend returns nil, which
// disables snapshot archiving.
func New(ctx context.Context, opts Options) (SnapshotStorage, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case "", "local":
		return NewLocalSnapshotStore(opts.Root)
	case "s3":
		client, err := NewS3Client(ctx, opts.S3)
		if err != nil {
			return nil, err
		}
		return NewS3SnapshotStore(S3Options{
			Client: client,
			Bucket: opts.S3.Bucket,
			Prefix: opts.S3.Prefix,
		})
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown snapshot backend %q", opts.Backend)
	}
}

// cleanKey rejects keys that would escape the storage root.
func cleanKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("empty snapshot key")
	}
	cleaned := path.Clean("/" + strings.ReplaceAll(key, "\\", "/"))
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" || cleaned == "." || strings.HasPrefix(cleaned, "..") || cleaned != strings.Trim(key, "/") {
		return "", fmt.Errorf("invalid snapshot key %q", key)
	}
	return cleaned, nil
}

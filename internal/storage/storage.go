package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/frahmantamala/redteam-collab/internal"
)

// ErrNotFound is returned when a key has no stored object.
var ErrNotFound = errors.New("storage: object not found")

// Store keeps report and attachment blobs.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// New builds the backend named by cfg.Backend.
func New(ctx context.Context, cfg internal.StorageConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Backend {
	case "", "local":
		logger.Info("using local blob storage", "base_dir", cfg.BaseDir)
		return NewLocalStore(cfg.BaseDir)
	case "s3":
		logger.Info("using s3 blob storage", "bucket", cfg.S3Bucket, "endpoint", cfg.S3BaseEndpoint)
		return NewS3Store(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
}

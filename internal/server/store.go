package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sakif/blog-platform/internal/blobstore"
	"github.com/sakif/blog-platform/internal/config"
	"github.com/sakif/blog-platform/internal/repository"
	"github.com/sakif/blog-platform/internal/repository/postgres"
	"github.com/sakif/blog-platform/internal/repository/sqlite"
)

// OpenStore connects to the configured database and applies the schema.
// Both backends run every call through the same transient-retry policy.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (repository.Store, error) {
	retry := repository.DefaultRetryPolicy(logger)
	retry.MaxAttempts = cfg.RetryAttempts
	if cfg.RetryInitialDelay > 0 {
		retry.InitialDelay = cfg.RetryInitialDelay
	}

	switch cfg.Driver {
	case "sqlite":
		if cfg.Path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
		db, err := sqlite.New(cfg.Path, retry)
		if err != nil {
			return nil, err
		}
		logger.Info("opened SQLite database", slog.String("path", cfg.Path))
		return db, nil
	case "postgres":
		db, err := postgres.New(ctx, cfg, retry, logger)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// Blobs is the upload backend plus, for the filesystem backend, the
// directory the router serves at /uploads/.
type Blobs struct {
	Store     blobstore.Store
	UploadDir string
}

// OpenBlobStore builds the configured backend wrapped in the image type
// and size checks.
func OpenBlobStore(ctx context.Context, cfg config.StorageConfig) (Blobs, error) {
	switch cfg.Backend {
	case "s3":
		s3, err := blobstore.NewS3Store(ctx, cfg.S3)
		if err != nil {
			return Blobs{}, err
		}
		return Blobs{Store: blobstore.NewGuarded(s3, cfg.MaxUploadBytes)}, nil
	case "filesystem":
		fs, err := blobstore.NewFileStore(cfg.UploadDir, cfg.PublicBaseURL)
		if err != nil {
			return Blobs{}, err
		}
		return Blobs{Store: blobstore.NewGuarded(fs, cfg.MaxUploadBytes), UploadDir: fs.Dir()}, nil
	default:
		return Blobs{}, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"contas/internal/blob"
	"contas/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// Create opens the store first and the blob store second; if the blob store
// fails the store is closed again.
func (f *DefaultFactory) Create(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	store, err := f.createStore(config)
	if err != nil {
		return nil, err
	}

	res := &Result{Store: store}
	closers := []func() error{store.Close}

	switch config.Blob {
	case LocalBlob:
		local, err := blob.NewLocalStore(config.BlobDir, config.FilesURL, config.FilesSecret)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to initialize local blob store: %w", err)
		}
		res.Blobs, res.Files = local, local.Handler()
		f.logger.Info("Initialized local blob store", "dir", config.BlobDir, "url", config.FilesURL)
	case GCSBlob:
		gcs, err := blob.NewGCSStore(ctx, config.GCSBucket)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to initialize GCS blob store: %w", err)
		}
		res.Blobs = gcs
		closers = append(closers, gcs.Close)
		f.logger.Info("Initialized GCS blob store", "bucket", config.GCSBucket)
	default:
		res.Blobs = blob.NewMemoryStore()
		f.logger.Info("Initialized memory blob store")
	}

	res.Cleanup = func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}
	return res, nil
}

func (f *DefaultFactory) createStore(config Config) (storage.Store, error) {
	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
		return repo, nil
	case PostgresBackend:
		repo, err := storage.NewPostgresRepository(config.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres repository: %w", err)
		}
		f.logger.Info("Initialized Postgres backend")
		return repo, nil
	case MemoryBackend:
		f.logger.Info("Initialized memory backend")
		return storage.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

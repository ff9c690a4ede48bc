// Package backend builds the store and the receipt object store selected by
// configuration.
package backend

import (
	"context"
	"net/http"

	"contas/internal/blob"
	"contas/internal/storage"
)

// CleanupFunc releases what a backend opened.
type CleanupFunc func() error

// Result holds the constructed backends. Files is non-nil only for the
// local blob store, whose signed URLs the HTTP server must serve itself.
type Result struct {
	Store   storage.Store
	Blobs   blob.Store
	Files   http.Handler
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	Create(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Postgres specific
	DatabaseURL string

	Blob BlobType

	// Local blob store: files below BlobDir, served under FilesURL and
	// signed with FilesSecret.
	BlobDir     string
	FilesURL    string
	FilesSecret string

	// GCS specific
	GCSBucket string
}

// BackendType names a relational store implementation.
type BackendType string

const (
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
	MemoryBackend   BackendType = "memory"
)

// BlobType names a receipt store implementation.
type BlobType string

const (
	LocalBlob  BlobType = "local"
	GCSBlob    BlobType = "gcs"
	MemoryBlob BlobType = "memory"
)

func (bt BackendType) String() string { return string(bt) }

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, PostgresBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

func (bt BlobType) IsValid() bool {
	switch bt {
	case LocalBlob, GCSBlob, MemoryBlob:
		return true
	default:
		return false
	}
}

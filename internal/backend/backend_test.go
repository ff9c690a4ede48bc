package backend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contas/internal/blob"
	"contas/internal/config"
	"contas/internal/storage"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{"memory", Config{Type: MemoryBackend, Blob: MemoryBlob}, ""},
		{"bad type", Config{Type: "sheets", Blob: MemoryBlob}, "invalid backend type"},
		{"bad blob", Config{Type: MemoryBackend, Blob: "s3"}, "invalid blob backend"},
		{"sqlite without path", Config{Type: SQLiteBackend, Blob: MemoryBlob}, "SQLite database path"},
		{"postgres without url", Config{Type: PostgresBackend, Blob: MemoryBlob}, "database URL"},
		{"local without secret", Config{Type: MemoryBackend, Blob: LocalBlob, BlobDir: "x"}, "signing secret"},
		{"gcs without bucket", Config{Type: MemoryBackend, Blob: GCSBlob}, "bucket"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestFromAppConfig(t *testing.T) {
	_, err := FromAppConfig(nil)
	require.Error(t, err)

	cfg, err := FromAppConfig(&config.Config{
		DataBackend:   "memory",
		BlobBackend:   "local",
		BlobDir:       "./receipts",
		BaseURL:       "http://localhost:8080",
		SessionSecret: "secret",
	})
	require.NoError(t, err)
	assert.Equal(t, MemoryBackend, cfg.Type)
	assert.Equal(t, "http://localhost:8080/files", cfg.FilesURL)
	assert.Equal(t, "secret", cfg.FilesSecret)
}

func TestFactory_CreateMemory(t *testing.T) {
	res, err := NewFactory(nil).Create(context.Background(), Config{Type: MemoryBackend, Blob: MemoryBlob})
	require.NoError(t, err)
	defer res.Cleanup()

	assert.IsType(t, &storage.MemoryStore{}, res.Store)
	assert.IsType(t, &blob.MemoryStore{}, res.Blobs)
	assert.Nil(t, res.Files)
}

func TestFactory_CreateSQLiteWithLocalBlobs(t *testing.T) {
	dir := t.TempDir()
	res, err := NewFactory(nil).Create(context.Background(), Config{
		Type:         SQLiteBackend,
		SQLiteDBPath: filepath.Join(dir, "db", "contas.db"),
		Blob:         LocalBlob,
		BlobDir:      filepath.Join(dir, "receipts"),
		FilesURL:     "http://localhost:8080/files",
		FilesSecret:  "secret",
	})
	require.NoError(t, err)

	assert.NoError(t, res.Store.Ping(context.Background()))
	assert.IsType(t, &blob.LocalStore{}, res.Blobs)
	assert.NotNil(t, res.Files)
	assert.NoError(t, res.Cleanup())
}

package backend

import (
	"fmt"

	"contas/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	cfg := Config{
		Type:         BackendType(appConfig.DataBackend),
		SQLiteDBPath: appConfig.SQLiteDBPath,
		DatabaseURL:  appConfig.DatabaseURL,

		Blob:        BlobType(appConfig.BlobBackend),
		BlobDir:     appConfig.BlobDir,
		FilesURL:    appConfig.BaseURL + "/files",
		FilesSecret: appConfig.SessionSecret,
		GCSBucket:   appConfig.GCSBucket,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	if !c.Blob.IsValid() {
		return fmt.Errorf("invalid blob backend: %s", c.Blob)
	}

	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	case PostgresBackend:
		if c.DatabaseURL == "" {
			return fmt.Errorf("database URL is required for postgres backend")
		}
	}

	switch c.Blob {
	case LocalBlob:
		if c.BlobDir == "" {
			return fmt.Errorf("blob directory is required for local blob backend")
		}
		if c.FilesSecret == "" {
			return fmt.Errorf("a signing secret is required for local blob backend")
		}
	case GCSBlob:
		if c.GCSBucket == "" {
			return fmt.Errorf("bucket is required for gcs blob backend")
		}
	}
	return nil
}

package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// HTTP Server
	Port               string
	BaseURL            string
	CORSAllowedOrigins []string
	RateLimitPerMinute int
	ShutdownTimeout    time.Duration

	// Logging
	LogLevel  string
	LogFormat string

	// Database
	DataBackend  string
	SQLiteDBPath string
	DatabaseURL  string

	// Receipts
	BlobBackend    string
	BlobDir        string
	GCSBucket      string
	ReceiptURLTTL  time.Duration
	MaxUploadBytes int64

	// Sessions
	SessionSecret string
	SessionIssuer string

	// Display
	DisplayLocale   string
	DisplayCurrency string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets mirror
	GoogleSpreadsheetID string
	GoogleSheetName     string
}

var (
	validDataBackends = []string{"memory", "postgres", "sqlite"}
	validBlobBackends = []string{"gcs", "local", "memory"}
)

// Load reads the environment. A .env file in the working directory is
// applied first when present; variables already set win over it.
func Load() *Config {
	_ = godotenv.Load()

	port := getEnv("PORT", "8080")
	return &Config{
		Port:               port,
		BaseURL:            strings.TrimRight(getEnv("BASE_URL", "http://localhost:"+port), "/"),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", nil),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		ShutdownTimeout:    getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		DataBackend:  getEnv("DATA_BACKEND", "sqlite"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/contas.db"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),

		BlobBackend:    getEnv("BLOB_BACKEND", "local"),
		BlobDir:        getEnv("BLOB_DIR", "./data/receipts"),
		GCSBucket:      getEnv("GCS_BUCKET", ""),
		ReceiptURLTTL:  getEnvDuration("RECEIPT_URL_TTL", 60*time.Second),
		MaxUploadBytes: getEnvInt64("MAX_UPLOAD_BYTES", 10<<20),

		SessionSecret: getEnv("SESSION_SECRET", ""),
		SessionIssuer: getEnv("SESSION_ISSUER", ""),

		DisplayLocale:   getEnv("DISPLAY_LOCALE", "pt-PT"),
		DisplayCurrency: getEnv("DISPLAY_CURRENCY", "EUR"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "contas"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "contas_sheet_mirror"),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:     getEnv("GOOGLE_SHEET_NAME", "Transacoes"),
	}
}

// Validate validates the configuration and returns an error listing every
// problem found.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.BaseURL != "" {
		if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errors = append(errors, fmt.Sprintf("invalid base URL '%s': must be absolute", c.BaseURL))
		}
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be text or json", c.LogFormat))
	}

	if !slices.Contains(validDataBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validDataBackends))
	}

	switch c.DataBackend {
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	case "postgres":
		if c.DatabaseURL == "" {
			errors = append(errors, "DATABASE_URL is required when using postgres backend")
		} else if u, err := url.Parse(c.DatabaseURL); err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
			errors = append(errors, "invalid DATABASE_URL: must be a postgres:// URL")
		}
	}

	if !slices.Contains(validBlobBackends, c.BlobBackend) {
		errors = append(errors, fmt.Sprintf("invalid blob backend '%s': must be one of %v", c.BlobBackend, validBlobBackends))
	}
	switch c.BlobBackend {
	case "local":
		if c.BlobDir == "" {
			errors = append(errors, "BLOB_DIR cannot be empty when using local blob backend")
		}
	case "gcs":
		if c.GCSBucket == "" {
			errors = append(errors, "GCS_BUCKET is required when using gcs blob backend")
		}
	}

	if c.ReceiptURLTTL < time.Second || c.ReceiptURLTTL > 7*24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid receipt URL TTL %v: must be between 1 second and 7 days", c.ReceiptURLTTL))
	}
	if c.MaxUploadBytes < 1024 {
		errors = append(errors, fmt.Sprintf("invalid max upload size %d: must be at least 1024 bytes", c.MaxUploadBytes))
	}

	if len(c.SessionSecret) < 32 {
		errors = append(errors, "SESSION_SECRET must be at least 32 characters")
	}

	if c.RateLimitPerMinute < 0 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must not be negative", c.RateLimitPerMinute))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.ShutdownTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid shutdown timeout %v: must be at least 1 second", c.ShutdownTimeout))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ValidateWorker checks the settings the spreadsheet mirror needs on top of
// the store settings.
func (c *Config) ValidateWorker() error {
	var errors []string
	if c.AMQPURL == "" {
		errors = append(errors, "AMQP_URL is required by the worker")
	}
	if c.GoogleSpreadsheetID == "" {
		errors = append(errors, "GOOGLE_SPREADSHEET_ID is required by the worker")
	}
	if c.GoogleSheetName == "" {
		errors = append(errors, "GOOGLE_SHEET_NAME cannot be empty")
	}
	if len(errors) > 0 {
		return fmt.Errorf("worker configuration invalid:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// ListenAddr is the address handed to http.Server.
func (c *Config) ListenAddr() string {
	return ":" + c.Port
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated value, dropping empty items.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Package config provides application configuration with multi-source
// priority.
//
// Sources, highest to lowest:
//  1. Environment variables (runtime override)
//  2. Config file (~/.quill/config.yaml, or ./config.yaml)
//  3. Defaults
//
// Categories:
//   - HTTP: listen address
//   - Storage: PostgreSQL connection (DATABASE_URL wins when set)
//   - Blob: S3-compatible object storage for uploaded files
//   - Cache: file content cache sizing and sweep cadence
//
// Sensitive fields (passwords, secret keys) are masked in MarshalJSON and
// String so a dumped config never leaks credentials. Validation is fail-fast
// with sentinel errors checked via errors.Is (see validation.go).
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrInvalidListenAddr indicates the HTTP listen address is malformed.
	ErrInvalidListenAddr = errors.New("invalid listen address")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is empty.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is empty.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidBlobEndpoint indicates the blob store endpoint is empty.
	ErrInvalidBlobEndpoint = errors.New("invalid blob store endpoint")

	// ErrInvalidBlobBucket indicates the blob store bucket name is empty.
	ErrInvalidBlobBucket = errors.New("invalid blob store bucket")

	// ErrMissingBlobCredentials indicates access or secret key is unset.
	ErrMissingBlobCredentials = errors.New("missing blob store credentials")

	// ErrInvalidCacheMaxEntries indicates the cache entry bound is out of range.
	ErrInvalidCacheMaxEntries = errors.New("invalid cache max entries")

	// ErrInvalidSweepInterval indicates the cache sweep interval is out of range.
	ErrInvalidSweepInterval = errors.New("invalid cache sweep interval")
)

// Cache sizing bounds. The entry bound exists to cap worst-case memory of
// extracted text held in process, not for correctness.
const (
	MinCacheMaxEntries = 16
	MaxCacheMaxEntries = 100_000

	MinSweepInterval = time.Minute
	MaxSweepInterval = 24 * time.Hour
)

// Config stores application configuration.
// SECURITY: sensitive fields are masked in MarshalJSON; when adding a new
// secret field, extend MarshalJSON too.
type Config struct {
	// HTTP
	ListenAddr string `mapstructure:"listen_addr" json:"listen_addr"`

	// Storage (PostgreSQL)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Blob store (S3-compatible)
	BlobEndpoint  string `mapstructure:"blob_endpoint" json:"blob_endpoint"`
	BlobAccessKey string `mapstructure:"blob_access_key" json:"blob_access_key"` // SENSITIVE
	BlobSecretKey string `mapstructure:"blob_secret_key" json:"blob_secret_key"` // SENSITIVE
	BlobBucket    string `mapstructure:"blob_bucket" json:"blob_bucket"`
	BlobUseSSL    bool   `mapstructure:"blob_use_ssl" json:"blob_use_ssl"`

	// File content cache
	CacheMaxEntries    int           `mapstructure:"cache_max_entries" json:"cache_max_entries"`
	CacheSweepInterval time.Duration `mapstructure:"cache_sweep_interval" json:"cache_sweep_interval"`
}

// Load loads configuration with priority: env > file > defaults.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}
	configDir := filepath.Join(home, ".quill")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine; defaults plus env cover it.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL, when set, overrides the individual Postgres fields.
	if err := cfg.parseDatabaseURL(os.Getenv("DATABASE_URL")); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", "127.0.0.1:3900")

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "quill")
	v.SetDefault("postgres_password", "quill_dev_password")
	v.SetDefault("postgres_db_name", "quill")
	v.SetDefault("postgres_ssl_mode", "disable")

	v.SetDefault("blob_endpoint", "localhost:9000")
	v.SetDefault("blob_bucket", "quill-files")
	v.SetDefault("blob_use_ssl", false)

	v.SetDefault("cache_max_entries", 1024)
	v.SetDefault("cache_sweep_interval", time.Hour)
}

// bindEnvVariables binds environment overrides explicitly. Hardcoded keys
// cannot fail to bind; a bind error here is a bug, hence the panic.
func bindEnvVariables(v *viper.Viper) {
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("listen_addr", "QUILL_LISTEN_ADDR")
	mustBind("postgres_host", "QUILL_POSTGRES_HOST")
	mustBind("postgres_port", "QUILL_POSTGRES_PORT")
	mustBind("postgres_user", "QUILL_POSTGRES_USER")
	mustBind("postgres_password", "QUILL_POSTGRES_PASSWORD")
	mustBind("postgres_db_name", "QUILL_POSTGRES_DB_NAME")
	mustBind("postgres_ssl_mode", "QUILL_POSTGRES_SSL_MODE")
	mustBind("blob_endpoint", "QUILL_BLOB_ENDPOINT")
	mustBind("blob_access_key", "QUILL_BLOB_ACCESS_KEY")
	mustBind("blob_secret_key", "QUILL_BLOB_SECRET_KEY")
	mustBind("blob_bucket", "QUILL_BLOB_BUCKET")
	mustBind("blob_use_ssl", "QUILL_BLOB_USE_SSL")
	mustBind("cache_max_entries", "QUILL_CACHE_MAX_ENTRIES")
	mustBind("cache_sweep_interval", "QUILL_CACHE_SWEEP_INTERVAL")
}

// parseDatabaseURL applies a postgres:// URL over the individual fields.
// An empty raw value is a no-op.
func (c *Config) parseDatabaseURL(raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("malformed URL: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	if h := u.Hostname(); h != "" {
		c.PostgresHost = h
	}
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("malformed port %q: %w", p, err)
		}
		c.PostgresPort = port
	}
	if u.User != nil {
		if name := u.User.Username(); name != "" {
			c.PostgresUser = name
		}
		if pw, ok := u.User.Password(); ok {
			c.PostgresPassword = pw
		}
	}
	if db := filepath.Base(u.Path); db != "." && db != "/" && db != "" {
		c.PostgresDBName = db
	}
	if mode := u.Query().Get("sslmode"); mode != "" {
		c.PostgresSSLMode = mode
	}
	return nil
}

// DSN returns the PostgreSQL connection string for pgx.
func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(c.PostgresUser),
		url.QueryEscape(c.PostgresPassword),
		c.PostgresHost,
		c.PostgresPort,
		c.PostgresDBName,
		c.PostgresSSLMode,
	)
}

// maskedValue is the placeholder for masked secrets. Full-width blocks avoid
// accidental substring matches against real secret material.
const maskedValue = "████████"

// maskSecret masks a secret for safe logging. Short secrets are fully
// masked; longer ones keep the first and last two characters for debugging.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON masks sensitive fields. Extend this when adding secrets.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	a.BlobAccessKey = maskSecret(a.BlobAccessKey)
	a.BlobSecretKey = maskSecret(a.BlobSecretKey)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer so printed configs never leak secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}

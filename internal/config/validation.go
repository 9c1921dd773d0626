package config

import (
	"fmt"
	"net"
)

// Validate checks the full configuration, fail-fast at load time.
// Errors wrap the package sentinel errors for errors.Is checks.
func (c *Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.ListenAddr); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidListenAddr, c.ListenAddr, err)
	}

	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host is empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d (must be 1-65535)", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name is empty", ErrInvalidPostgresDBName)
	}

	if c.BlobEndpoint == "" {
		return fmt.Errorf("%w: endpoint is empty", ErrInvalidBlobEndpoint)
	}
	if c.BlobBucket == "" {
		return fmt.Errorf("%w: bucket is empty", ErrInvalidBlobBucket)
	}
	if c.BlobAccessKey == "" || c.BlobSecretKey == "" {
		return fmt.Errorf("%w: set QUILL_BLOB_ACCESS_KEY and QUILL_BLOB_SECRET_KEY", ErrMissingBlobCredentials)
	}

	if c.CacheMaxEntries < MinCacheMaxEntries || c.CacheMaxEntries > MaxCacheMaxEntries {
		return fmt.Errorf("%w: %d (must be %d-%d)",
			ErrInvalidCacheMaxEntries, c.CacheMaxEntries, MinCacheMaxEntries, MaxCacheMaxEntries)
	}
	if c.CacheSweepInterval < MinSweepInterval || c.CacheSweepInterval > MaxSweepInterval {
		return fmt.Errorf("%w: %s (must be %s-%s)",
			ErrInvalidSweepInterval, c.CacheSweepInterval, MinSweepInterval, MaxSweepInterval)
	}

	return nil
}

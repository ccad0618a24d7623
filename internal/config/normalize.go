package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeSolana()
	if err := c.normalizeStorage(); err != nil {
		return err
	}
	c.normalizeCollection()
	c.normalizeCheckpoint()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.LockDir, err = expandPath(c.Paths.LockDir); err != nil {
		return fmt.Errorf("paths.lock_dir: %w", err)
	}
	if c.Paths.ImagesDir, err = expandPath(c.Paths.ImagesDir); err != nil {
		return fmt.Errorf("paths.images_dir: %w", err)
	}
	if c.Paths.MetadataDir, err = expandPath(c.Paths.MetadataDir); err != nil {
		return fmt.Errorf("paths.metadata_dir: %w", err)
	}
	if c.Solana.KeypairPath, err = expandPath(strings.TrimSpace(c.Solana.KeypairPath)); err != nil {
		return fmt.Errorf("solana.keypair_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeSolana() {
	if value, ok := os.LookupEnv("MINTLINE_RPC_URL"); ok && strings.TrimSpace(value) != "" {
		c.Solana.RPCURL = value
	}
	if value, ok := os.LookupEnv("MINTLINE_KEYPAIR"); ok && strings.TrimSpace(value) != "" && c.Solana.KeypairPath == "" {
		if expanded, err := expandPath(strings.TrimSpace(value)); err == nil {
			c.Solana.KeypairPath = expanded
		}
	}
	c.Solana.RPCURL = strings.TrimRight(strings.TrimSpace(c.Solana.RPCURL), "/")
	c.Solana.Commitment = strings.ToLower(strings.TrimSpace(c.Solana.Commitment))
	if c.Solana.Commitment == "" {
		c.Solana.Commitment = defaultCommitment
	}
	c.Solana.KeypairEnv = strings.TrimSpace(c.Solana.KeypairEnv)
	c.Solana.KeypairSecret = strings.TrimSpace(c.Solana.KeypairSecret)
}

func (c *Config) normalizeStorage() error {
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = defaultStorageBackend
	}
	if value, ok := os.LookupEnv("IRYS_API_KEY"); ok && c.Storage.IrysAPIKey == "" {
		c.Storage.IrysAPIKey = strings.TrimSpace(value)
	}
	c.Storage.IrysURL = strings.TrimRight(strings.TrimSpace(c.Storage.IrysURL), "/")
	c.Storage.GCSBucket = strings.TrimSpace(c.Storage.GCSBucket)
	c.Storage.GCSPublicBaseURL = strings.TrimRight(strings.TrimSpace(c.Storage.GCSPublicBaseURL), "/")
	c.Storage.GCSPrefix = strings.Trim(strings.TrimSpace(c.Storage.GCSPrefix), "/")
	if c.Storage.Backend == StorageBackendGCS && c.Storage.GCSPublicBaseURL == "" && c.Storage.GCSBucket != "" {
		c.Storage.GCSPublicBaseURL = "https://storage.googleapis.com/" + c.Storage.GCSBucket
	}
	return nil
}

func (c *Config) normalizeCollection() {
	c.Collection.Name = strings.TrimSpace(c.Collection.Name)
	c.Collection.Symbol = strings.TrimSpace(c.Collection.Symbol)
	c.Collection.Description = strings.TrimSpace(c.Collection.Description)
	c.Collection.ImageURI = strings.TrimSpace(c.Collection.ImageURI)
	for i := range c.Mechanism.Creators {
		c.Mechanism.Creators[i].Address = strings.TrimSpace(c.Mechanism.Creators[i].Address)
	}
}

func (c *Config) normalizeCheckpoint() {
	driver := strings.ToLower(strings.TrimSpace(c.Checkpoint.Driver))
	switch driver {
	case "", "sqlite3":
		driver = defaultCheckpointDriver
	case "postgresql", "pq":
		driver = "postgres"
	}
	c.Checkpoint.Driver = driver
	c.Checkpoint.DSN = strings.TrimSpace(c.Checkpoint.DSN)
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch format {
	case "", "console", "text":
		c.Logging.Format = defaultLogFormat
	case "json":
		c.Logging.Format = "json"
	default:
		c.Logging.Format = format
	}
	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level
}

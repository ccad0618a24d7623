package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable. Cross-field business rules
// for the pipeline (creator shares, supply bounds, line lengths) are enforced
// by the pipeline settings, which report them as configuration errors.
func (c *Config) Validate() error {
	if err := c.validateSolana(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateMint(); err != nil {
		return err
	}
	if err := c.validateRetry(); err != nil {
		return err
	}
	if err := c.validateCheckpoint(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateSolana() error {
	if c.Solana.RPCURL == "" {
		return errors.New("solana.rpc_url must be set (or export MINTLINE_RPC_URL)")
	}
	switch c.Solana.Commitment {
	case "processed", "confirmed", "finalized":
	default:
		return fmt.Errorf("solana.commitment: unsupported value %q (processed, confirmed, finalized)", c.Solana.Commitment)
	}
	return ensurePositiveMap(map[string]int{
		"solana.confirm_timeout_seconds": c.Solana.ConfirmTimeoutSeconds,
		"solana.poll_interval_ms":        c.Solana.PollIntervalMillis,
	})
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case StorageBackendIrys:
		if c.Storage.IrysURL != "" {
			if err := validateIrysURL(c.Storage.IrysURL); err != nil {
				return err
			}
		}
	case StorageBackendGCS:
	default:
		return fmt.Errorf("storage.backend: unsupported value %q (irys, gcs)", c.Storage.Backend)
	}
	if c.Storage.TimeoutSeconds <= 0 {
		return errors.New("storage.timeout_seconds must be positive")
	}
	return nil
}

// bundlerHosts accept only signed data items on /tx/<currency>, not the
// plain POST /upload protocol the irys backend speaks.
var bundlerHosts = []string{"bundlr.network", "node1.irys.xyz", "node2.irys.xyz", "devnet.irys.xyz"}

func validateIrysURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("storage.irys_url: %q is not an http(s) URL", raw)
	}
	host := strings.ToLower(u.Hostname())
	for _, bundler := range bundlerHosts {
		if host == bundler || strings.HasSuffix(host, "."+bundler) {
			return fmt.Errorf("storage.irys_url: %s is a bundler node; point it at an uploader service that accepts POST /upload", host)
		}
	}
	return nil
}

// RequireStorage reports whether the selected backend has its destination
// configured. Load does not demand it so read-only commands work without one;
// anything that uploads must call it first.
func (c *Config) RequireStorage() error {
	switch c.Storage.Backend {
	case StorageBackendIrys:
		if c.Storage.IrysURL == "" {
			return errors.New("storage.irys_url must be set when storage.backend is irys")
		}
	case StorageBackendGCS:
		if c.Storage.GCSBucket == "" {
			return errors.New("storage.gcs_bucket must be set when storage.backend is gcs")
		}
	}
	return nil
}

func (c *Config) validateMint() error {
	if c.Mint.ItemCount < 0 {
		return errors.New("mint.item_count must be >= 0")
	}
	if c.Mint.Count < 0 {
		return errors.New("mint.count must be >= 0")
	}
	if c.Mint.PacingMillis < 0 {
		return errors.New("mint.pacing_ms must be >= 0")
	}
	if c.Mechanism.ConfigLineBatch <= 0 {
		return errors.New("mechanism.config_line_batch must be positive")
	}
	return nil
}

func (c *Config) validateRetry() error {
	if c.Retry.MaxAttempts < 1 {
		return errors.New("retry.max_attempts must be >= 1")
	}
	if c.Retry.InitialBackoffMillis < 0 || c.Retry.MaxBackoffMillis < 0 {
		return errors.New("retry backoff values must be >= 0")
	}
	if c.Retry.MaxBackoffMillis < c.Retry.InitialBackoffMillis {
		return errors.New("retry.max_backoff_ms must be >= retry.initial_backoff_ms")
	}
	if c.Retry.Multiplier < 1 {
		return errors.New("retry.multiplier must be >= 1")
	}
	return nil
}

func (c *Config) validateCheckpoint() error {
	switch c.Checkpoint.Driver {
	case "sqlite":
	case "postgres":
		if c.Checkpoint.DSN == "" {
			return errors.New("checkpoint.dsn must be set when checkpoint.driver is postgres")
		}
	default:
		return fmt.Errorf("checkpoint.driver: unsupported value %q (sqlite, postgres)", c.Checkpoint.Driver)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be zero or positive")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}

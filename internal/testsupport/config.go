package testsupport

import (
	"path/filepath"
	"testing"

	"mintline/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The RPC endpoint points at an unroutable address so a test that forgets to
// inject a fake ledger fails fast instead of reaching devnet.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.LockDir = filepath.Join(base, "locks")
	cfgVal.Paths.ImagesDir = filepath.Join(base, "build", "images")
	cfgVal.Paths.MetadataDir = filepath.Join(base, "build", "json")
	cfgVal.Solana.RPCURL = "http://127.0.0.1:1"
	cfgVal.Mint.PacingMillis = 0
	cfgVal.Retry.InitialBackoffMillis = 1
	cfgVal.Retry.MaxBackoffMillis = 2
	cfgVal.API.Bind = "127.0.0.1:0"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithBatch overrides the number of prepared items and mints.
func WithBatch(items, mints int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Mint.ItemCount = items
		b.cfg.Mint.Count = mints
	}
}

// WithAssets writes count image and metadata files into the configured
// asset directories.
func WithAssets(count int) ConfigOption {
	return func(b *configBuilder) {
		WriteAssets(b.t, b.cfg.Paths.ImagesDir, b.cfg.Paths.MetadataDir, count)
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}

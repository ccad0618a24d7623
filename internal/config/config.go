package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	StateDir    string `toml:"state_dir"`
	LogDir      string `toml:"log_dir"`
	ImagesDir   string `toml:"images_dir"`
	MetadataDir string `toml:"metadata_dir"`
	LockDir     string `toml:"lock_dir"`
}

// Solana contains the ledger connection and signer configuration.
type Solana struct {
	RPCURL                string `toml:"rpc_url"`
	Commitment            string `toml:"commitment"`
	ConfirmTimeoutSeconds int    `toml:"confirm_timeout_seconds"`
	PollIntervalMillis    int    `toml:"poll_interval_ms"`
	// KeypairPath points at a solana-keygen JSON keypair file.
	KeypairPath string `toml:"keypair_path"`
	// KeypairEnv names an environment variable holding the keypair JSON array.
	KeypairEnv string `toml:"keypair_env"`
	// KeypairSecret is a Secret Manager version name holding the keypair JSON,
	// e.g. projects/<id>/secrets/<name>/versions/latest.
	KeypairSecret string `toml:"keypair_secret"`
}

// Storage backends.
const (
	StorageBackendIrys = "irys"
	StorageBackendGCS  = "gcs"
)

// Storage contains configuration for the content storage network.
type Storage struct {
	Backend          string `toml:"backend"`
	IrysURL          string `toml:"irys_url"`
	IrysAPIKey       string `toml:"irys_api_key"`
	GCSBucket        string `toml:"gcs_bucket"`
	GCSPublicBaseURL string `toml:"gcs_public_base_url"`
	GCSPrefix        string `toml:"gcs_prefix"`
	TimeoutSeconds   int    `toml:"timeout_seconds"`
}

// Collection describes the collection NFT created once per run.
type Collection struct {
	Name                 string `toml:"name"`
	Symbol               string `toml:"symbol"`
	Description          string `toml:"description"`
	ImageURI             string `toml:"image_uri"`
	SellerFeeBasisPoints int    `toml:"seller_fee_basis_points"`
	IsMutable            bool   `toml:"is_mutable"`
}

// Creator is one entry of the royalty share table. An empty address means the
// signing identity.
type Creator struct {
	Address string `toml:"address"`
	Share   int    `toml:"share"`
}

// Mechanism configures the candy machine that bounds the supply.
type Mechanism struct {
	ItemsAvailable  int       `toml:"items_available"`
	PrefixName      string    `toml:"prefix_name"`
	NameLength      int       `toml:"name_length"`
	PrefixURI       string    `toml:"prefix_uri"`
	URILength       int       `toml:"uri_length"`
	IsSequential    bool      `toml:"is_sequential"`
	ConfigLineBatch int       `toml:"config_line_batch"`
	Creators        []Creator `toml:"creators"`

	// AllowPartialLoad acknowledges a run that loads fewer lines than
	// ItemsAvailable; mint_v2 rejects such machines until they are full.
	AllowPartialLoad bool `toml:"allow_partial_load"`
}

// Mint configures batch size and the minting loop.
type Mint struct {
	ItemCount    int `toml:"item_count"`
	Count        int `toml:"count"`
	PacingMillis int `toml:"pacing_ms"`
}

// Retry configures the bounded exponential backoff applied to network calls.
type Retry struct {
	MaxAttempts          int     `toml:"max_attempts"`
	InitialBackoffMillis int     `toml:"initial_backoff_ms"`
	MaxBackoffMillis     int     `toml:"max_backoff_ms"`
	Multiplier           float64 `toml:"multiplier"`
}

// Checkpoint selects the database that records run progress.
type Checkpoint struct {
	Driver string `toml:"driver"`
	DSN    string `toml:"dsn"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// API configures the read-only status server.
type API struct {
	Bind string `toml:"bind"`
}

// Config encapsulates all configuration values for mintline.
//
// Configuration sections by subsystem:
//   - Paths: state, logs, lock files, and the asset source directories
//   - Solana: RPC endpoint, commitment, and signer keypair source
//   - Storage: Irys or GCS upload backend
//   - Collection: collection NFT name, description, image, royalty
//   - Mechanism: candy machine supply and config line settings
//   - Mint: batch size, mint count, pacing
//   - Retry: backoff policy for network calls
//   - Checkpoint: sqlite or postgres run store
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
//   - API: status server bind address
type Config struct {
	Paths         Paths         `toml:"paths"`
	Solana        Solana        `toml:"solana"`
	Storage       Storage       `toml:"storage"`
	Collection    Collection    `toml:"collection"`
	Mechanism     Mechanism     `toml:"mechanism"`
	Mint          Mint          `toml:"mint"`
	Retry         Retry         `toml:"retry"`
	Checkpoint    Checkpoint    `toml:"checkpoint"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
	API           API           `toml:"api"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/mintline/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("mintline.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the state, log, and lock directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir, c.Paths.LockDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// CheckpointDSN returns the data source for the run store. For sqlite an empty
// DSN resolves to a file inside the state directory.
func (c *Config) CheckpointDSN() string {
	if dsn := strings.TrimSpace(c.Checkpoint.DSN); dsn != "" {
		return dsn
	}
	return filepath.Join(c.Paths.StateDir, "runs.db")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

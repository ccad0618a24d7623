package main

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/types"
	"github.com/pelletier/go-toml/v2"

	"mintline/internal/config"
	"mintline/internal/ledger"
	"mintline/internal/storage"
	"mintline/internal/testsupport"
)

// cliLedger confirms every transaction and records its label.
type cliLedger struct {
	mu       sync.Mutex
	identity types.Account
	labels   []string
	existing map[string]bool
}

func (l *cliLedger) Identity() common.PublicKey { return l.identity.PublicKey }

func (l *cliLedger) SubmitAndConfirm(_ context.Context, tx ledger.Transaction, commitment ledger.Commitment) (ledger.Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.labels = append(l.labels, tx.Label)
	for _, s := range tx.Signers {
		l.existing[s.PublicKey.ToBase58()] = true
	}
	return ledger.Receipt{Signature: fmt.Sprintf("sig-%d", len(l.labels)), Commitment: commitment}, nil
}

func (l *cliLedger) MinimumBalanceForRentExemption(context.Context, uint64) (uint64, error) {
	return 1_461_600, nil
}

func (l *cliLedger) AccountExists(_ context.Context, address common.PublicKey) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.existing[address.ToBase58()], nil
}

func (l *cliLedger) Balance(context.Context) (uint64, error) { return 2_000_000_000, nil }

func (l *cliLedger) submitted() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.labels)
}

// cliStorage returns a distinct URI per upload, or fails every upload when
// err is set.
type cliStorage struct {
	mu    sync.Mutex
	count int
	err   error
}

func (s *cliStorage) Upload(_ context.Context, blob storage.Blob) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count++
	if s.err != nil {
		return "", s.err
	}
	return fmt.Sprintf("https://arweave.net/%d-%s", s.count, blob.Name), nil
}

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	ledger     *cliLedger
	storage    *cliStorage
}

func setupCLITestEnv(t *testing.T, mutate func(*config.Config)) *cliTestEnv {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("MINTLINE_RPC_URL", "")

	cfg := testsupport.NewConfig(t, testsupport.WithBatch(2, 2), testsupport.WithAssets(2))
	cfg.Storage.Backend = config.StorageBackendGCS
	cfg.Storage.GCSBucket = "test-assets"
	cfg.Mechanism.ItemsAvailable = 2
	// Nothing listens here, so log commands fall back to files.
	cfg.API.Bind = "127.0.0.1:1"
	if mutate != nil {
		mutate(cfg)
	}

	configPath := filepath.Join(home, ".config", "mintline", "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		configPath: configPath,
		ledger:     &cliLedger{identity: types.NewAccount(), existing: map[string]bool{}},
		storage:    &cliStorage{},
	}
}

func (e *cliTestEnv) factories() factories {
	return factories{
		ledger: func(context.Context, *config.Config, *slog.Logger) (ledger.Client, error) {
			return e.ledger, nil
		},
		storage: func(context.Context, *config.Config, *slog.Logger) (storage.Uploader, error) {
			return e.storage, nil
		},
	}
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommandWith(env.factories())
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{}
	if env.configPath != "" {
		flags = append(flags, "--config", env.configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

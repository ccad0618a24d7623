package pipeline_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/types"

	"mintline/internal/assets"
	"mintline/internal/checkpoint"
	"mintline/internal/config"
	"mintline/internal/ledger"
	"mintline/internal/logging"
	"mintline/internal/pipeline"
	"mintline/internal/retry"
	"mintline/internal/storage"
	"mintline/internal/testsupport"
)

type submission struct {
	label      string
	commitment ledger.Commitment
	signers    []string
	size       int
	ixs        []types.Instruction
	at         time.Time
}

// fakeLedger confirms every transaction unless a failure is queued for its
// label. Signer accounts of confirmed transactions are treated as existing.
type fakeLedger struct {
	mu       sync.Mutex
	identity types.Account
	txs      []submission
	existing map[string]bool
	failures map[string][]error
	// landOnFailure marks signers as existing even when a queued failure is
	// returned, modelling a transaction that landed but was never confirmed.
	landOnFailure bool
	lookups       int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		identity: types.NewAccount(),
		existing: map[string]bool{},
		failures: map[string][]error{},
	}
}

func (l *fakeLedger) failNext(label string, errs ...error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures[label] = append(l.failures[label], errs...)
}

func (l *fakeLedger) Identity() common.PublicKey { return l.identity.PublicKey }

func (l *fakeLedger) SubmitAndConfirm(_ context.Context, tx ledger.Transaction, commitment ledger.Commitment) (ledger.Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	signers := make([]string, 0, len(tx.Signers))
	for _, s := range tx.Signers {
		signers = append(signers, s.PublicKey.ToBase58())
	}
	size, err := ledger.TransactionSize(l.identity.PublicKey, tx.Instructions)
	if err != nil {
		return ledger.Receipt{}, err
	}
	l.txs = append(l.txs, submission{label: tx.Label, commitment: commitment, signers: signers, size: size, ixs: tx.Instructions, at: time.Now()})
	if queued := l.failures[tx.Label]; len(queued) > 0 {
		l.failures[tx.Label] = queued[1:]
		if l.landOnFailure {
			for _, s := range signers {
				l.existing[s] = true
			}
		}
		return ledger.Receipt{}, queued[0]
	}
	for _, s := range signers {
		l.existing[s] = true
	}
	return ledger.Receipt{Signature: fmt.Sprintf("sig-%d", len(l.txs)), Commitment: commitment}, nil
}

func (l *fakeLedger) MinimumBalanceForRentExemption(context.Context, uint64) (uint64, error) {
	return 1_461_600, nil
}

func (l *fakeLedger) AccountExists(_ context.Context, address common.PublicKey) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lookups++
	return l.existing[address.ToBase58()], nil
}

func (l *fakeLedger) Balance(context.Context) (uint64, error) { return 5_000_000_000, nil }

func (l *fakeLedger) labels() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.txs))
	for _, tx := range l.txs {
		out = append(out, tx.label)
	}
	return out
}

func (l *fakeLedger) submissions(prefix string) []submission {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []submission
	for _, tx := range l.txs {
		if strings.HasPrefix(tx.label, prefix) {
			out = append(out, tx)
		}
	}
	return out
}

// fakeStorage hands out a distinct URI per upload.
type fakeStorage struct {
	mu    sync.Mutex
	blobs []storage.Blob
	fail  func(blob storage.Blob) error
	// pad lengthens every URI, e.g. to approach mechanism.uri_length.
	pad int
}

func (s *fakeStorage) Upload(_ context.Context, blob storage.Blob) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs = append(s.blobs, blob)
	if s.fail != nil {
		if err := s.fail(blob); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("https://arweave.net/%d-%s%s", len(s.blobs), blob.Name, strings.Repeat("x", s.pad)), nil
}

func (s *fakeStorage) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.blobs)
}

type sleepRecorder struct {
	mu     sync.Mutex
	pauses []time.Duration
}

func (r *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pauses = append(r.pauses, d)
	return nil
}

type harness struct {
	cfg     *config.Config
	store   *checkpoint.Store
	ledger  *fakeLedger
	storage *fakeStorage
	sleeps  *sleepRecorder
	// runLogDir enables per-run log files when set.
	runLogDir string
}

func newHarness(t *testing.T, mutate func(cfg *config.Config)) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithBatch(3, 3), testsupport.WithAssets(3))
	cfg.Mint.PacingMillis = 1000
	if mutate != nil {
		mutate(cfg)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	return &harness{
		cfg:     cfg,
		store:   testsupport.MustOpenStore(t, cfg),
		ledger:  newFakeLedger(),
		storage: &fakeStorage{},
		sleeps:  &sleepRecorder{},
	}
}

func (h *harness) orchestrator(t *testing.T) *pipeline.Orchestrator {
	t.Helper()
	settings, err := pipeline.SettingsFromConfig(h.cfg)
	if err != nil {
		t.Fatalf("SettingsFromConfig: %v", err)
	}
	return pipeline.NewOrchestrator(pipeline.Deps{
		Settings:  settings,
		Store:     h.store,
		Ledger:    h.ledger,
		Storage:   h.storage,
		Source:    assets.NewDirSource(h.cfg.Paths.ImagesDir, h.cfg.Paths.MetadataDir),
		SourceKey: h.cfg.Paths.ImagesDir + "|" + h.cfg.Paths.MetadataDir,
		Policy: retry.Policy{
			MaxAttempts: h.cfg.Retry.MaxAttempts,
			Sleep:       func(context.Context, time.Duration) error { return nil },
		},
		LockDir:   h.cfg.Paths.LockDir,
		RunLogDir: h.runLogDir,
		Logger:    logging.NewNop(),
		Sleep:     h.sleeps.sleep,
	})
}

package pipeline_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/blocto/solana-go-sdk/types"

	"mintline/internal/logging"
	"mintline/internal/pipeline"
	"mintline/internal/retry"
	"mintline/internal/services"
	"mintline/internal/testsupport"
)

func testMechanism(available int) pipeline.DistributionMechanism {
	return pipeline.DistributionMechanism{
		Address:        types.NewAccount().PublicKey.ToBase58(),
		CollectionMint: types.NewAccount().PublicKey.ToBase58(),
		ItemsAvailable: available,
	}
}

func TestMintSequentialWaitsBetweenMints(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	run := testsupport.NewRun(t, store, "batch", 3, 3)
	fake := newFakeLedger()
	minter := pipeline.NewMinter(fake, store, retry.Once(), logging.NewNop(), nil)

	const pacing = 50 * time.Millisecond
	records, err := minter.MintSequential(context.Background(), run, testMechanism(5000), 3, pacing)
	if err != nil {
		t.Fatalf("MintSequential: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	txs := fake.submissions("mint ")
	for i := 1; i < len(txs); i++ {
		if gap := txs[i].at.Sub(txs[i-1].at); gap < pacing {
			t.Fatalf("mint %d started %s after the previous one, want >= %s", i, gap, pacing)
		}
	}
	for i, record := range records {
		if record.Sequence != i || !record.Confirmed || record.Signature == "" {
			t.Fatalf("unexpected record %d: %+v", i, record)
		}
		if len(record.InstanceKey) != 0 {
			t.Fatal("confirmed records must drop the instance keypair")
		}
	}
	confirmed, err := store.ConfirmedMintCount(context.Background(), run.ID)
	if err != nil || confirmed != 3 {
		t.Fatalf("ConfirmedMintCount = %d (%v)", confirmed, err)
	}
}

func TestMintSequentialRejectsCountAboveSupply(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	run := testsupport.NewRun(t, store, "batch", 3, 4)
	fake := newFakeLedger()
	minter := pipeline.NewMinter(fake, store, retry.Once(), logging.NewNop(), nil)

	_, err := minter.MintSequential(context.Background(), run, testMechanism(3), 4, 0)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if len(fake.labels()) != 0 {
		t.Fatal("no mint should be attempted")
	}
}

func TestMintSequentialStopsOnCancel(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	run := testsupport.NewRun(t, store, "batch", 3, 3)
	fake := newFakeLedger()
	ctx, cancel := context.WithCancel(context.Background())
	minter := pipeline.NewMinter(fake, store, retry.Once(), logging.NewNop(), func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	})

	records, err := minter.MintSequential(ctx, run, testMechanism(5000), 3, time.Second)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if len(records) != 1 || len(fake.submissions("mint ")) != 1 {
		t.Fatalf("expected exactly one mint before cancel, got %d", len(records))
	}
}

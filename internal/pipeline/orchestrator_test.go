package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"mintline/internal/checkpoint"
	"mintline/internal/config"
	"mintline/internal/ledger"
	"mintline/internal/logging"
	"mintline/internal/pipeline"
	"mintline/internal/services"
	"mintline/internal/storage"
	"mintline/internal/testsupport"
)

func TestRunIssuesBatchEndToEnd(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	result, err := h.orchestrator(t).Run(ctx, pipeline.RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(result.Items) != 3 {
		t.Fatalf("expected 3 prepared items, got %d", len(result.Items))
	}
	seen := map[string]bool{}
	for i, item := range result.Items {
		if item.Index != i {
			t.Fatalf("item %d has index %d", i, item.Index)
		}
		if item.MetadataURI == "" || seen[item.MetadataURI] {
			t.Fatalf("metadata uri missing or duplicated: %q", item.MetadataURI)
		}
		seen[item.MetadataURI] = true
	}
	if result.Items[0].Name != "Item #1" {
		t.Fatalf("unexpected first item name %q", result.Items[0].Name)
	}

	if result.Collection.MintAddress == "" || result.Collection.MetadataURI == "" {
		t.Fatalf("collection not recorded: %+v", result.Collection)
	}
	if result.Collection.OwnerIdentity != h.ledger.Identity().ToBase58() {
		t.Fatalf("collection owner = %q", result.Collection.OwnerIdentity)
	}
	mech := result.Mechanism
	if mech.Address == "" || mech.CollectionMint != result.Collection.MintAddress {
		t.Fatalf("mechanism not bound to collection: %+v", mech)
	}
	if mech.ItemsAvailable != 5000 || mech.ItemsLoaded != 3 {
		t.Fatalf("unexpected mechanism counters: %+v", mech)
	}

	minted := result.MintedAddresses()
	if len(minted) != 3 {
		t.Fatalf("expected 3 minted addresses, got %v", minted)
	}
	if minted[0] == minted[1] || minted[1] == minted[2] {
		t.Fatalf("minted addresses must be distinct: %v", minted)
	}

	want := []string{"create collection", "initialize candy machine", "add config lines 0-2", "mint 0", "mint 1", "mint 2"}
	got := h.ledger.labels()
	if len(got) != len(want) {
		t.Fatalf("transactions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("transactions = %v, want %v", got, want)
		}
	}
	for _, tx := range h.ledger.submissions("mint ") {
		if tx.commitment != ledger.CommitmentFinalized {
			t.Fatalf("%s confirmed at %s, want finalized", tx.label, tx.commitment)
		}
	}
	if tx := h.ledger.submissions("create collection")[0]; tx.commitment != ledger.CommitmentConfirmed {
		t.Fatalf("collection confirmed at %s, want configured commitment", tx.commitment)
	}

	if len(h.sleeps.pauses) != 2 {
		t.Fatalf("expected a pause between each pair of mints, got %v", h.sleeps.pauses)
	}
	for _, d := range h.sleeps.pauses {
		if d < time.Second {
			t.Fatalf("pause %s shorter than pacing", d)
		}
	}

	run, err := h.store.GetRun(ctx, result.RunID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Status != checkpoint.StatusComplete {
		t.Fatalf("run status = %s", run.Status)
	}
	if run.PendingMechanism != "" || run.PendingCollectionMint != "" {
		t.Fatalf("pending keys not cleared: %+v", run)
	}
}

func TestRunStopsWhenCollectionRejected(t *testing.T) {
	h := newHarness(t, nil)
	h.ledger.failNext("create collection", &services.TransactionError{Reason: "custom program error: 0x1"})

	result, err := h.orchestrator(t).Run(context.Background(), pipeline.RunOptions{})
	var stageErr *pipeline.StageError
	if !errors.As(err, &stageErr) {
		t.Fatalf("expected StageError, got %v", err)
	}
	if stageErr.Stage != checkpoint.StatusRegisteringCollection {
		t.Fatalf("failed stage = %s", stageErr.Stage)
	}
	if !errors.Is(err, services.ErrTransaction) {
		t.Fatalf("expected transaction error, got %v", err)
	}
	if len(h.ledger.submissions("create collection")) != 1 {
		t.Fatal("rejected transaction must not be retried")
	}
	if len(h.ledger.submissions("initialize")) != 0 || len(h.ledger.submissions("mint ")) != 0 {
		t.Fatalf("later stages ran: %v", h.ledger.labels())
	}
	if result == nil || result.Mechanism.Address != "" || len(result.Mints) != 0 {
		t.Fatalf("unexpected partial result: %+v", result)
	}

	run, err := h.store.GetRun(context.Background(), stageErr.RunID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Status != checkpoint.StatusFailed || run.FailedStage != checkpoint.StatusRegisteringCollection {
		t.Fatalf("unexpected persisted run: %s/%s", run.Status, run.FailedStage)
	}
	mints, err := h.store.Mints(context.Background(), run.ID)
	if err != nil || len(mints) != 0 {
		t.Fatalf("expected no mint records, got %v (%v)", mints, err)
	}
}

func TestRunSurfacesUploadFailureAfterRetries(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) { cfg.Retry.MaxAttempts = 3 })
	h.storage.fail = func(blob storage.Blob) error {
		return &services.UploadError{Name: blob.Name, Cause: errors.New("502 bad gateway"), Transient: true}
	}

	_, err := h.orchestrator(t).Run(context.Background(), pipeline.RunOptions{})
	var stageErr *pipeline.StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != checkpoint.StatusPreparing {
		t.Fatalf("expected preparing failure, got %v", err)
	}
	var uploadErr *services.UploadError
	if !errors.As(err, &uploadErr) {
		t.Fatalf("expected UploadError, got %v", err)
	}
	if got := h.storage.count(); got != 3 {
		t.Fatalf("expected 3 upload attempts, got %d", got)
	}
	if len(h.ledger.labels()) != 0 {
		t.Fatalf("no transaction should be sent: %v", h.ledger.labels())
	}
}

func TestRunRejectsConfigurationBeforeNetwork(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) {
		cfg.Mechanism.ItemsAvailable = 3
		cfg.Mint.Count = 4
	})

	_, err := h.orchestrator(t).Run(context.Background(), pipeline.RunOptions{})
	var stageErr *pipeline.StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != checkpoint.StatusIdle {
		t.Fatalf("expected idle-stage error, got %v", err)
	}
	var cfgErr *services.ConfigurationError
	if !errors.As(err, &cfgErr) || cfgErr.Field != "mint.count" {
		t.Fatalf("expected mint.count configuration error, got %v", err)
	}
	if h.storage.count() != 0 || len(h.ledger.labels()) != 0 || h.ledger.lookups != 0 {
		t.Fatal("configuration errors must be raised before any network call")
	}
	runs, err := h.store.ListRuns(context.Background(), 10)
	if err != nil || len(runs) != 0 {
		t.Fatalf("no run should be created: %v (%v)", runs, err)
	}
}

func TestRunResumesWithoutRepeatingWork(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.ledger.failNext("initialize candy machine", &services.TransactionError{Reason: "insufficient funds"})

	_, err := h.orchestrator(t).Run(ctx, pipeline.RunOptions{})
	var stageErr *pipeline.StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != checkpoint.StatusInitializingMechanism {
		t.Fatalf("expected initializing failure, got %v", err)
	}
	uploads := h.storage.count()
	if uploads != 7 {
		t.Fatalf("expected 6 item uploads plus collection metadata, got %d", uploads)
	}
	failed, err := h.store.GetRun(ctx, stageErr.RunID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if failed.PendingMechanism == "" {
		t.Fatal("pending candy machine should be checkpointed before submit")
	}

	result, err := h.orchestrator(t).Run(ctx, pipeline.RunOptions{})
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if result.RunID != stageErr.RunID {
		t.Fatalf("resume created a new run: %s vs %s", result.RunID, stageErr.RunID)
	}
	if h.storage.count() != uploads {
		t.Fatalf("resume re-uploaded assets: %d uploads", h.storage.count())
	}
	if n := len(h.ledger.submissions("create collection")); n != 1 {
		t.Fatalf("collection created %d times", n)
	}
	if result.Mechanism.Address != failed.PendingMechanism {
		t.Fatalf("resume should reuse the checkpointed keypair: %s vs %s", result.Mechanism.Address, failed.PendingMechanism)
	}
	if len(result.MintedAddresses()) != 3 {
		t.Fatalf("expected 3 mints after resume, got %d", len(result.MintedAddresses()))
	}
}

func TestRunAdoptsCollectionThatLanded(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.ledger.landOnFailure = true
	h.ledger.failNext("create collection", &services.TransactionError{Reason: "confirmation timeout", Transient: true, Ambiguous: true})

	_, err := h.orchestrator(t).Run(ctx, pipeline.RunOptions{})
	var stageErr *pipeline.StageError
	if !errors.As(err, &stageErr) {
		t.Fatalf("expected StageError, got %v", err)
	}
	if n := len(h.ledger.submissions("create collection")); n != 1 {
		t.Fatalf("ambiguous failure must not be resubmitted in-loop, got %d", n)
	}
	failed, _ := h.store.GetRun(ctx, stageErr.RunID)

	result, err := h.orchestrator(t).Run(ctx, pipeline.RunOptions{})
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if n := len(h.ledger.submissions("create collection")); n != 1 {
		t.Fatalf("landed collection resubmitted: %d submissions", n)
	}
	if result.Collection.MintAddress != failed.PendingCollectionMint {
		t.Fatalf("expected adopted mint %s, got %s", failed.PendingCollectionMint, result.Collection.MintAddress)
	}
}

func TestRunAdoptsMechanismAndMintThatLanded(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.ledger.landOnFailure = true
	unconfirmed := &services.TransactionError{Reason: "confirmation timeout", Transient: true, Ambiguous: true}
	h.ledger.failNext("initialize candy machine", unconfirmed)
	h.ledger.failNext("mint 1", unconfirmed)

	_, err := h.orchestrator(t).Run(ctx, pipeline.RunOptions{})
	var stageErr *pipeline.StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != checkpoint.StatusInitializingMechanism {
		t.Fatalf("expected initializing failure, got %v", err)
	}
	failed, _ := h.store.GetRun(ctx, stageErr.RunID)

	_, err = h.orchestrator(t).Run(ctx, pipeline.RunOptions{})
	if !errors.As(err, &stageErr) || stageErr.Stage != checkpoint.StatusMinting {
		t.Fatalf("expected minting failure, got %v", err)
	}
	pendingMint := h.ledger.submissions("mint 1")[0].signers[0]

	result, err := h.orchestrator(t).Run(ctx, pipeline.RunOptions{})
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if n := len(h.ledger.submissions("initialize candy machine")); n != 1 {
		t.Fatalf("landed candy machine resubmitted: %d submissions", n)
	}
	if result.Mechanism.Address != failed.PendingMechanism {
		t.Fatalf("expected adopted candy machine %s, got %s", failed.PendingMechanism, result.Mechanism.Address)
	}
	if n := len(h.ledger.submissions("mint 1")); n != 1 {
		t.Fatalf("landed mint resubmitted: %d submissions", n)
	}
	minted := result.MintedAddresses()
	if len(minted) != 3 || minted[1] != pendingMint {
		t.Fatalf("expected mint 1 adopted as %s, got %v", pendingMint, minted)
	}
}

func TestRunSplitsConfigLinesByTransactionSize(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) {
		cfg.Mint.ItemCount = 10
		cfg.Mint.Count = 1
		cfg.Mechanism.ItemsAvailable = 10
		cfg.Mechanism.ConfigLineBatch = 10
	})
	testsupport.WriteAssets(t, h.cfg.Paths.ImagesDir, h.cfg.Paths.MetadataDir, 10)
	h.storage.pad = 150

	result, err := h.orchestrator(t).Run(context.Background(), pipeline.RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, item := range result.Items {
		if len(item.MetadataURI) < 170 {
			t.Fatalf("expected long metadata uri, got %q", item.MetadataURI)
		}
	}

	batches := h.ledger.submissions("add config lines")
	if len(batches) < 2 {
		t.Fatalf("ten long lines should need several transactions, got %d", len(batches))
	}
	next := 0
	for _, b := range batches {
		if b.size > ledger.MaxTransactionSize {
			t.Fatalf("%s is %d bytes, over the %d byte limit", b.label, b.size, ledger.MaxTransactionSize)
		}
		var from, to int
		if _, err := fmt.Sscanf(b.label, "add config lines %d-%d", &from, &to); err != nil {
			t.Fatalf("parse label %q: %v", b.label, err)
		}
		if from != next || to < from {
			t.Fatalf("batches must be contiguous: %q after line %d", b.label, next-1)
		}
		next = to + 1
	}
	if next != 10 || result.Mechanism.ItemsLoaded != 10 {
		t.Fatalf("expected all 10 lines loaded, got next=%d loaded=%d", next, result.Mechanism.ItemsLoaded)
	}
}

func TestRunResumesMintingAfterLastConfirmed(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.ledger.failNext("mint 1", &services.TransactionError{Reason: "blockhash not found"})

	_, err := h.orchestrator(t).Run(ctx, pipeline.RunOptions{})
	var stageErr *pipeline.StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != checkpoint.StatusMinting {
		t.Fatalf("expected minting failure, got %v", err)
	}
	firstAttempt := h.ledger.submissions("mint 1")[0].signers[0]

	result, err := h.orchestrator(t).Run(ctx, pipeline.RunOptions{})
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if n := len(h.ledger.submissions("mint 0")); n != 1 {
		t.Fatalf("confirmed mint resubmitted: %d", n)
	}
	retried := h.ledger.submissions("mint 1")
	if len(retried) != 2 || retried[1].signers[0] != firstAttempt {
		t.Fatalf("mint 1 should be resubmitted once with the same keypair: %+v", retried)
	}
	if len(result.MintedAddresses()) != 3 {
		t.Fatalf("expected 3 confirmed mints, got %d", len(result.MintedAddresses()))
	}
}

func TestRunReturnsCompletedBatch(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	first, err := h.orchestrator(t).Run(ctx, pipeline.RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	sent := len(h.ledger.labels())

	again, err := h.orchestrator(t).Run(ctx, pipeline.RunOptions{})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if again.RunID != first.RunID || len(h.ledger.labels()) != sent {
		t.Fatal("completed batch should be returned without new work")
	}
	if len(again.MintedAddresses()) != 3 || again.Mechanism.Address != first.Mechanism.Address {
		t.Fatalf("stored result incomplete: %+v", again)
	}

	fresh, err := h.orchestrator(t).Run(ctx, pipeline.RunOptions{Fresh: true})
	if err != nil {
		t.Fatalf("fresh Run: %v", err)
	}
	if fresh.RunID == first.RunID {
		t.Fatal("fresh run should start a new run")
	}
}

func TestRunRefusesBusyIdentity(t *testing.T) {
	h := newHarness(t, nil)
	path := filepath.Join(h.cfg.Paths.LockDir, "identity-"+h.ledger.Identity().ToBase58()+".lock")
	held := flock.New(path)
	ok, err := held.TryLock()
	if err != nil || !ok {
		t.Fatalf("hold lock: %v", err)
	}
	defer held.Unlock()

	_, err = h.orchestrator(t).Run(context.Background(), pipeline.RunOptions{})
	if !errors.Is(err, pipeline.ErrIdentityBusy) {
		t.Fatalf("expected ErrIdentityBusy, got %v", err)
	}
	if h.storage.count() != 0 {
		t.Fatal("no work should start while the identity is busy")
	}
}

func TestPlanReportsResumePoint(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	orch := h.orchestrator(t)

	plan, err := orch.Plan(ctx, pipeline.RunOptions{})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if plan.Existing != nil || plan.ResumeFrom != checkpoint.StatusPreparing {
		t.Fatalf("unexpected plan for new batch: %+v", plan)
	}
	if len(plan.Health) != 4 {
		t.Fatalf("expected health for 4 stages, got %d", len(plan.Health))
	}
	for _, health := range plan.Health {
		if !health.Ready {
			t.Fatalf("stage %s not ready: %s", health.Stage, health.Reason)
		}
	}
	if len(plan.Warnings) == 0 {
		t.Fatal("expected a warning for a partially loaded candy machine")
	}

	h.ledger.failNext("mint 0", &services.TransactionError{Reason: "rejected"})
	if _, err := orch.Run(ctx, pipeline.RunOptions{}); err == nil {
		t.Fatal("expected mint failure")
	}
	plan, err = orch.Plan(ctx, pipeline.RunOptions{})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if plan.Existing == nil || plan.ResumeFrom != checkpoint.StatusMinting {
		t.Fatalf("expected resume from minting, got %+v", plan)
	}
	if len(h.ledger.labels()) != 4 {
		t.Fatalf("Plan must not send transactions: %v", h.ledger.labels())
	}
}

func TestRunWritesPerRunLog(t *testing.T) {
	h := newHarness(t, nil)
	h.runLogDir = h.cfg.Paths.LogDir

	result, err := h.orchestrator(t).Run(context.Background(), pipeline.RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	data, err := os.ReadFile(logging.RunLogPath(h.runLogDir, result.RunID))
	if err != nil {
		t.Fatalf("read run log: %v", err)
	}
	for _, event := range []string{"run_start", "stage_start", "run_complete"} {
		if !strings.Contains(string(data), `"event_type":"`+event+`"`) {
			t.Fatalf("run log missing %s event:\n%s", event, data)
		}
	}
}

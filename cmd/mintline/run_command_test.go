package main

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"mintline/internal/checkpoint"
	"mintline/internal/config"
	"mintline/internal/pipeline"
	"mintline/internal/statusapi"
)

func TestRunCompletesBatch(t *testing.T) {
	env := setupCLITestEnv(t, nil)

	out, _, err := runCLI(t, env, "run", "--json")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	var result pipeline.Result
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode result: %v\n%s", err, out)
	}
	if result.Mechanism.Address == "" || result.Collection.MintAddress == "" {
		t.Fatalf("expected collection and candy machine addresses: %+v", result)
	}
	if minted := result.MintedAddresses(); len(minted) != 2 {
		t.Fatalf("expected 2 minted addresses, got %v", minted)
	}
	if result.Collection.OwnerIdentity != env.ledger.identity.PublicKey.ToBase58() {
		t.Fatalf("collection owner should be the signer, got %q", result.Collection.OwnerIdentity)
	}

	out, _, err = runCLI(t, env, "status", "--json")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	var list statusapi.RunListResponse
	if err := json.Unmarshal([]byte(out), &list); err != nil {
		t.Fatalf("decode run list: %v", err)
	}
	if len(list.Runs) != 1 || list.Runs[0].Status != string(checkpoint.StatusComplete) {
		t.Fatalf("expected one complete run, got %+v", list.Runs)
	}

	out, _, err = runCLI(t, env, "status", result.RunID)
	if err != nil {
		t.Fatalf("status run: %v", err)
	}
	requireContains(t, out, "complete")
	requireContains(t, out, result.Mechanism.Address)
	requireContains(t, out, result.Mints[1].InstanceAddress)
}

func TestRunSecondInvocationReturnsStoredResult(t *testing.T) {
	env := setupCLITestEnv(t, nil)

	if _, _, err := runCLI(t, env, "run", "--json"); err != nil {
		t.Fatalf("first run: %v", err)
	}
	submitted := env.ledger.submitted()

	out, _, err := runCLI(t, env, "run", "--json")
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if env.ledger.submitted() != submitted {
		t.Fatalf("completed batch should not submit again: %d -> %d", submitted, env.ledger.submitted())
	}
	var result pipeline.Result
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Mechanism.Address == "" {
		t.Fatal("expected stored candy machine address")
	}
}

func TestRunReportsFailingStage(t *testing.T) {
	env := setupCLITestEnv(t, nil)
	env.storage.err = errors.New("bucket unreachable")

	_, _, err := runCLI(t, env, "run", "--json")
	if err == nil {
		t.Fatal("expected run to fail")
	}
	var stageErr *pipeline.StageError
	if !errors.As(err, &stageErr) {
		t.Fatalf("expected *pipeline.StageError, got %T: %v", err, err)
	}
	if stageErr.Stage != checkpoint.StatusPreparing {
		t.Fatalf("expected failure in preparing, got %s", stageErr.Stage)
	}
	if env.ledger.submitted() != 0 {
		t.Fatalf("no transaction should be submitted, got %d", env.ledger.submitted())
	}

	out, _, err := runCLI(t, env, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "failed (preparing)")
}

func TestRunRejectsSettingsBeforeNetwork(t *testing.T) {
	env := setupCLITestEnv(t, func(cfg *config.Config) {
		cfg.Mechanism.ItemsAvailable = 1
	})

	_, _, err := runCLI(t, env, "run")
	if err == nil || !strings.Contains(err.Error(), "mint.count") {
		t.Fatalf("expected mint.count configuration error, got %v", err)
	}
	if env.storage.count != 0 || env.ledger.submitted() != 0 {
		t.Fatal("invalid settings must not reach storage or the ledger")
	}
}

func TestRunRequiresIrysUploaderURL(t *testing.T) {
	env := setupCLITestEnv(t, func(cfg *config.Config) {
		cfg.Storage.Backend = config.StorageBackendIrys
		cfg.Storage.IrysURL = ""
	})

	if _, _, err := runCLI(t, env, "config", "validate"); err == nil || !strings.Contains(err.Error(), "storage.irys_url") {
		t.Fatalf("expected validate to demand storage.irys_url, got %v", err)
	}
	_, _, err := runCLI(t, env, "run")
	if err == nil || !strings.Contains(err.Error(), "storage.irys_url") {
		t.Fatalf("expected storage.irys_url configuration error, got %v", err)
	}
	if env.storage.count != 0 || env.ledger.submitted() != 0 {
		t.Fatal("missing uploader URL must not reach storage or the ledger")
	}
}

func TestRunDryRunReportsPlan(t *testing.T) {
	env := setupCLITestEnv(t, nil)

	out, _, err := runCLI(t, env, "run", "--dry-run")
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	requireContains(t, out, "Preflight")
	requireContains(t, out, "Signer balance")
	requireContains(t, out, "Resume from")
	requireContains(t, out, string(checkpoint.StatusPreparing))
	if env.storage.count != 0 || env.ledger.submitted() != 0 {
		t.Fatal("dry run must not upload or submit")
	}
}

func TestRunPreflightBlocksMissingAssets(t *testing.T) {
	env := setupCLITestEnv(t, func(cfg *config.Config) {
		cfg.Mint.ItemCount = 4
	})

	_, stderr, err := runCLI(t, env, "run")
	if err == nil {
		t.Fatal("expected preflight failure")
	}
	requireContains(t, err.Error(), "preflight")
	requireContains(t, stderr, "Asset files")
	if env.storage.count != 0 {
		t.Fatal("preflight failure must stop before uploads")
	}
}

package preflight

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mintline/internal/config"
)

type fixedBalance struct {
	lamports uint64
	err      error
}

func (b fixedBalance) Balance(context.Context) (uint64, error) { return b.lamports, b.err }

type assetCheck struct{ err error }

func (a assetCheck) Check(int) error { return a.err }

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckBalance(t *testing.T) {
	if r := CheckBalance(context.Background(), fixedBalance{lamports: 2_500_000_000}); !r.Passed || r.Detail != "2.5000 SOL" {
		t.Fatalf("unexpected funded result: %+v", r)
	}
	if r := CheckBalance(context.Background(), fixedBalance{}); r.Passed {
		t.Fatal("expected failure for empty signer")
	}
	if r := CheckBalance(context.Background(), fixedBalance{err: errors.New("connection refused")}); r.Passed {
		t.Fatal("expected failure when RPC errors")
	}
}

func TestCheckEndpoint(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ok.Close()
	if r := CheckEndpoint(context.Background(), "Storage", ok.URL); !r.Passed {
		t.Fatalf("4xx should count as reachable: %s", r.Detail)
	}

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer down.Close()
	if r := CheckEndpoint(context.Background(), "Storage", down.URL); r.Passed {
		t.Fatal("expected failure for 5xx")
	}
	if r := CheckEndpoint(context.Background(), "Storage", ""); r.Passed {
		t.Fatal("expected failure for missing url")
	}
}

func TestCheckStorageFromConfig_GCS(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Backend = config.StorageBackendGCS
	if r := CheckStorageFromConfig(context.Background(), &cfg); r.Passed {
		t.Fatal("expected failure without bucket")
	}
	cfg.Storage.GCSBucket = "assets"
	if r := CheckStorageFromConfig(context.Background(), &cfg); !r.Passed {
		t.Fatalf("expected pass with bucket: %s", r.Detail)
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil, nil, nil); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_AllPassing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.Paths.StateDir = t.TempDir()
	cfg.Paths.LockDir = t.TempDir()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Storage.IrysURL = srv.URL
	cfg.Mechanism.ItemsAvailable = cfg.Mint.ItemCount

	results := RunAll(context.Background(), &cfg, fixedBalance{lamports: 1}, assetCheck{})
	if len(results) != 7 {
		t.Fatalf("expected 7 results, got %d", len(results))
	}
	if !Passed(results) {
		t.Fatalf("expected all checks to pass: %+v", results)
	}
}

func TestRunAll_ReportsMissingAssets(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.StateDir = t.TempDir()
	cfg.Paths.LockDir = t.TempDir()
	cfg.Paths.LogDir = ""
	cfg.Storage.Backend = config.StorageBackendGCS
	cfg.Storage.GCSBucket = "assets"

	results := RunAll(context.Background(), &cfg, nil, assetCheck{err: errors.New("asset 2: missing")})
	if Passed(results) {
		t.Fatal("expected missing assets to fail preflight")
	}
	last := results[len(results)-1]
	if last.Name != "Asset files" || last.Detail != "asset 2: missing" {
		t.Fatalf("unexpected asset result: %+v", last)
	}
}

func TestCheckConfigLines(t *testing.T) {
	tests := []struct {
		name                    string
		available, items, mints int
		allowPartial, wantPass  bool
	}{
		{name: "fully loaded", available: 3, items: 3, mints: 3, wantPass: true},
		{name: "default batch", available: 5000, items: 3, mints: 3},
		{name: "acknowledged", available: 5000, items: 3, mints: 3, allowPartial: true, wantPass: true},
		{name: "no mints", available: 5000, items: 3, mints: 0, wantPass: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := CheckConfigLines(tc.available, tc.items, tc.mints, tc.allowPartial)
			if r.Passed != tc.wantPass {
				t.Fatalf("passed=%v want %v: %s", r.Passed, tc.wantPass, r.Detail)
			}
			if !tc.wantPass && !strings.Contains(r.Detail, "NotFullyLoaded") {
				t.Fatalf("expected NotFullyLoaded hint, got %q", r.Detail)
			}
		})
	}
}

func TestRunAll_BlocksPartialLoadByDefault(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.StateDir = t.TempDir()
	cfg.Paths.LockDir = t.TempDir()
	cfg.Paths.LogDir = ""
	cfg.Storage.Backend = config.StorageBackendGCS
	cfg.Storage.GCSBucket = "assets"

	results := RunAll(context.Background(), &cfg, nil, assetCheck{})
	if Passed(results) {
		t.Fatal("expected default items_available to block preflight")
	}
	cfg.Mechanism.AllowPartialLoad = true
	if results := RunAll(context.Background(), &cfg, nil, assetCheck{}); !Passed(results) {
		t.Fatalf("expected acknowledged partial load to pass: %+v", results)
	}
}

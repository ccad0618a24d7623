package preflight

import (
	"context"

	"mintline/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// BalanceReader reports the signer's balance in lamports.
type BalanceReader interface {
	Balance(ctx context.Context) (uint64, error)
}

// AssetChecker confirms that numbered asset files are present.
type AssetChecker interface {
	Check(count int) error
}

// RunAll executes all applicable preflight checks for the given config.
// The balance and asset checks are skipped when their collaborator is nil.
func RunAll(ctx context.Context, cfg *config.Config, signer BalanceReader, source AssetChecker) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Lock directory", cfg.Paths.LockDir),
	}
	if cfg.Paths.LogDir != "" {
		results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	}

	results = append(results,
		CheckConfigLines(cfg.Mechanism.ItemsAvailable, cfg.Mint.ItemCount, cfg.Mint.Count, cfg.Mechanism.AllowPartialLoad),
		CheckStorageFromConfig(ctx, cfg),
	)

	if source != nil {
		results = append(results, CheckAssets(source, cfg.Mint.ItemCount))
	}
	if signer != nil {
		results = append(results, CheckBalance(ctx, signer))
	}
	return results
}

// Passed reports whether every result passed.
func Passed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}

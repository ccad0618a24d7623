package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

const lamportsPerSOL = 1_000_000_000

// CheckBalance verifies that the signer can pay transaction fees and rent.
func CheckBalance(ctx context.Context, signer BalanceReader) Result {
	const name = "Signer balance"

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	lamports, err := signer.Balance(checkCtx)
	if err != nil {
		return Result{Name: name, Detail: summarizeNetworkError("RPC", err)}
	}
	sol := fmt.Sprintf("%.4f SOL", float64(lamports)/lamportsPerSOL)
	if lamports == 0 {
		return Result{Name: name, Detail: sol + " (fund the signer before minting)"}
	}
	return Result{Name: name, Passed: true, Detail: sol}
}

// CheckConfigLines blocks a minting run whose candy machine would never be
// fully loaded. The machine account is sized and paid for itemsAvailable
// lines, but only itemCount are written, and mint_v2 rejects partial machines.
func CheckConfigLines(itemsAvailable, itemCount, mintCount int, allowPartial bool) Result {
	const name = "Config lines"
	loaded := fmt.Sprintf("%d of %d lines", itemCount, itemsAvailable)
	switch {
	case itemCount >= itemsAvailable:
		return Result{Name: name, Passed: true, Detail: loaded}
	case mintCount == 0:
		return Result{Name: name, Passed: true, Detail: loaded + "; no mints requested"}
	case allowPartial:
		return Result{Name: name, Passed: true, Detail: loaded + "; partial load acknowledged"}
	default:
		return Result{Name: name, Detail: loaded + "; minting would fail with NotFullyLoaded " +
			"(raise mint.item_count, lower mechanism.items_available, or set mechanism.allow_partial_load)"}
	}
}

// CheckAssets verifies that images and metadata exist for items 1..count.
func CheckAssets(source AssetChecker, count int) Result {
	const name = "Asset files"
	if err := source.Check(count); err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%d items present", count)}
}

// CheckEndpoint verifies that an HTTP endpoint answers. Any status below 500
// counts as reachable.
func CheckEndpoint(ctx context.Context, name, endpoint string) Result {
	base := strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if base == "" {
		return Result{Name: name, Detail: "missing url"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, base, nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("request failed (%v)", err)}
	}
	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: summarizeNetworkError(name, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return Result{Name: name, Detail: fmt.Sprintf("unhealthy (%d)", resp.StatusCode)}
	}
	return Result{Name: name, Passed: true, Detail: "Reachable"}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

func summarizeNetworkError(service string, err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("check timed out (%s unresponsive)", service)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Sprintf("check timed out (%s unreachable)", service)
	}
	return err.Error()
}

package preflight

import (
	"context"
	"strings"

	"mintline/internal/config"
)

// CheckStorageFromConfig evaluates the configured storage backend. Irys is
// probed over HTTP; GCS is only checked for a bucket name because reaching
// it needs credentials the uploader resolves itself.
func CheckStorageFromConfig(ctx context.Context, cfg *config.Config) Result {
	const name = "Storage"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	switch cfg.Storage.Backend {
	case config.StorageBackendIrys:
		check := CheckEndpoint(ctx, name, cfg.Storage.IrysURL)
		if check.Passed {
			check.Detail = "irys " + cfg.Storage.IrysURL + " reachable"
		}
		return check
	case config.StorageBackendGCS:
		if strings.TrimSpace(cfg.Storage.GCSBucket) == "" {
			return Result{Name: name, Detail: "Missing GCS bucket"}
		}
		return Result{Name: name, Passed: true, Detail: "gcs bucket " + cfg.Storage.GCSBucket}
	default:
		return Result{Name: name, Detail: "Unsupported backend " + cfg.Storage.Backend}
	}
}

// CheckNotificationsFromConfig reports whether ntfy notifications are enabled.
func CheckNotificationsFromConfig(cfg *config.Config) Result {
	const name = "Notifications"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	if strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" {
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	}
	return Result{Name: name, Passed: true, Detail: "ntfy " + cfg.Notifications.NtfyTopic}
}

// Package storage uploads asset blobs to durable storage and returns public
// retrieval URIs. Two backends are provided: an Irys uploader service for
// Arweave-backed permanent storage and a Google Cloud Storage bucket with
// content-addressed object names.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"mintline/internal/config"
	"mintline/internal/services"
)

// Blob is a byte payload with the logical name used for bookkeeping.
type Blob struct {
	Name        string
	ContentType string
	Data        []byte
}

// Uploader stores a blob verbatim and returns a retrievable URI.
type Uploader interface {
	Upload(ctx context.Context, blob Blob) (string, error)
}

// New builds the uploader selected by cfg.Storage.Backend.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Uploader, error) {
	if cfg == nil {
		return nil, errors.New("storage: config is nil")
	}
	if err := cfg.RequireStorage(); err != nil {
		return nil, fmt.Errorf("%w: %w", services.ErrConfiguration, err)
	}
	timeout := time.Duration(cfg.Storage.TimeoutSeconds) * time.Second
	switch cfg.Storage.Backend {
	case config.StorageBackendIrys:
		return NewIrysUploader(cfg.Storage.IrysURL, cfg.Storage.IrysAPIKey, timeout, logger), nil
	case config.StorageBackendGCS:
		return NewGCSUploader(ctx, cfg.Storage.GCSBucket, cfg.Storage.GCSPrefix, cfg.Storage.GCSPublicBaseURL, logger)
	default:
		return nil, services.NewConfigurationError("storage.backend", fmt.Sprintf("unsupported value %q", cfg.Storage.Backend))
	}
}

func uploadFailure(name string, cause error, transient bool) error {
	return &services.UploadError{Name: name, Cause: cause, Transient: transient}
}

// statusTransient reports whether an HTTP status is worth retrying.
func statusTransient(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= 500
}

func transportTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection reset") || strings.Contains(msg, "eof")
}

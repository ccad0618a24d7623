package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"

	"mintline/internal/logging"
)

// GCSUploader writes blobs into a bucket under content-addressed names, so
// identical bytes always map to the same object and URI.
type GCSUploader struct {
	client        *gcs.Client
	bucket        string
	prefix        string
	publicBaseURL string
	logger        *slog.Logger
}

// NewGCSUploader opens a storage client using application default credentials.
func NewGCSUploader(ctx context.Context, bucket, prefix, publicBaseURL string, logger *slog.Logger) (*GCSUploader, error) {
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errors.New("gcs bucket is required")
	}
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	if strings.TrimSpace(publicBaseURL) == "" {
		publicBaseURL = "https://storage.googleapis.com/" + bucket
	}
	return &GCSUploader{
		client:        client,
		bucket:        bucket,
		prefix:        strings.Trim(prefix, "/"),
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		logger:        logging.NewComponentLogger(logger, "gcs"),
	}, nil
}

// Close releases the underlying client.
func (u *GCSUploader) Close() error {
	if u == nil || u.client == nil {
		return nil
	}
	return u.client.Close()
}

// Upload stores blob.Data unless an object with the same digest already exists.
func (u *GCSUploader) Upload(ctx context.Context, blob Blob) (string, error) {
	if len(blob.Data) == 0 {
		return "", uploadFailure(blob.Name, errors.New("empty payload"), false)
	}
	name := ObjectName(u.prefix, blob)
	uri := u.publicBaseURL + "/" + name
	obj := u.client.Bucket(u.bucket).Object(name)

	if _, err := obj.Attrs(ctx); err == nil {
		u.logger.Debug("blob already stored", logging.String("object", name))
		return uri, nil
	} else if !errors.Is(err, gcs.ErrObjectNotExist) {
		return "", uploadFailure(blob.Name, fmt.Errorf("stat object %s: %w", name, err), transportTransient(err))
	}

	w := obj.If(gcs.Conditions{DoesNotExist: true}).NewWriter(ctx)
	w.ContentType = blob.ContentType
	w.CacheControl = "public, max-age=31536000, immutable"
	if _, err := w.Write(blob.Data); err != nil {
		_ = w.Close()
		return "", uploadFailure(blob.Name, fmt.Errorf("write object %s: %w", name, err), transportTransient(err))
	}
	if err := w.Close(); err != nil {
		if isPreconditionFailed(err) {
			return uri, nil
		}
		return "", uploadFailure(blob.Name, fmt.Errorf("finalize object %s: %w", name, err), transportTransient(err))
	}

	u.logger.Debug("blob uploaded",
		logging.String("object", name),
		logging.Int("bytes", len(blob.Data)),
	)
	return uri, nil
}

// ObjectName derives the content-addressed object name for blob.
func ObjectName(prefix string, blob Blob) string {
	sum := sha256.Sum256(blob.Data)
	name := hex.EncodeToString(sum[:]) + strings.ToLower(path.Ext(blob.Name))
	if prefix = strings.Trim(prefix, "/"); prefix != "" {
		return prefix + "/" + name
	}
	return name
}

func isPreconditionFailed(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusPreconditionFailed
}

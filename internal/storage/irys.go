package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"mintline/internal/logging"
)

const irysMaxErrorBody = 512

// IrysUploader posts blobs to an Irys uploader service, which funds and
// submits the Arweave bundle and replies with {"uri": "..."}.
type IrysUploader struct {
	client  *http.Client
	baseURL string
	apiKey  string
	logger  *slog.Logger
}

// NewIrysUploader builds an uploader for baseURL. A zero timeout falls back to 60s.
func NewIrysUploader(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *IrysUploader {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &IrysUploader{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  strings.TrimSpace(apiKey),
		logger:  logging.NewComponentLogger(logger, "irys"),
	}
}

// Upload sends blob.Data verbatim. JSON documents go to /upload/json, every
// other content type to /upload.
func (u *IrysUploader) Upload(ctx context.Context, blob Blob) (string, error) {
	if len(blob.Data) == 0 {
		return "", uploadFailure(blob.Name, errors.New("empty payload"), false)
	}
	if u.baseURL == "" {
		return "", uploadFailure(blob.Name, errors.New("irys endpoint not configured"), false)
	}

	contentType := strings.TrimSpace(blob.ContentType)
	if contentType == "" {
		contentType = http.DetectContentType(blob.Data)
	}
	endpoint := u.baseURL + "/upload"
	if strings.HasPrefix(contentType, "application/json") {
		endpoint = u.baseURL + "/upload/json"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(blob.Data))
	if err != nil {
		return "", uploadFailure(blob.Name, fmt.Errorf("create request: %w", err), false)
	}
	req.Header.Set("Content-Type", contentType)
	if blob.Name != "" {
		req.Header.Set("X-File-Name", blob.Name)
	}
	if u.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+u.apiKey)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return "", uploadFailure(blob.Name, fmt.Errorf("post %s: %w", endpoint, err), transportTransient(err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", uploadFailure(blob.Name, fmt.Errorf("read response: %w", err), true)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := strings.TrimSpace(string(body))
		if len(snippet) > irysMaxErrorBody {
			snippet = snippet[:irysMaxErrorBody]
		}
		return "", uploadFailure(blob.Name, fmt.Errorf("status %d: %s", resp.StatusCode, snippet), statusTransient(resp.StatusCode))
	}

	var payload struct {
		URI string `json:"uri"`
		ID  string `json:"id"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", uploadFailure(blob.Name, fmt.Errorf("decode response: %w", err), false)
	}
	uri := strings.TrimSpace(payload.URI)
	if uri == "" && payload.ID != "" {
		uri = "https://gateway.irys.xyz/" + payload.ID
	}
	if uri == "" {
		return "", uploadFailure(blob.Name, errors.New("response has empty uri"), false)
	}

	u.logger.Debug("blob uploaded",
		logging.String("name", blob.Name),
		logging.Int("bytes", len(blob.Data)),
		logging.String("uri", uri),
	)
	return uri, nil
}

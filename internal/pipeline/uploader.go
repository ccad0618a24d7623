package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"mintline/internal/assets"
	"mintline/internal/logging"
	"mintline/internal/retry"
	"mintline/internal/services"
	"mintline/internal/storage"
)

// AssetUploader stores item images and metadata through a storage backend.
type AssetUploader struct {
	storage storage.Uploader
	policy  retry.Policy
	logger  *slog.Logger
}

// NewAssetUploader wraps a storage backend with the retry policy.
func NewAssetUploader(backend storage.Uploader, policy retry.Policy, logger *slog.Logger) *AssetUploader {
	return &AssetUploader{
		storage: backend,
		policy:  policy,
		logger:  logging.NewComponentLogger(logger, "uploader"),
	}
}

// Upload stores data verbatim and returns its URI. Failures surface as
// *services.UploadError once the retry budget is spent.
func (u *AssetUploader) Upload(ctx context.Context, data []byte, name, contentType string) (string, error) {
	var uri string
	err := retry.Do(ctx, u.policy, "upload "+name, func(ctx context.Context) error {
		got, err := u.storage.Upload(ctx, storage.Blob{Name: name, ContentType: contentType, Data: data})
		if err != nil {
			return err
		}
		uri = got
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, services.ErrUpload) {
			return "", err
		}
		return "", &services.UploadError{Name: name, Cause: err}
	}
	u.logger.Debug("blob uploaded",
		logging.String("name", name),
		logging.Int("bytes", len(data)),
		logging.String("uri", uri),
	)
	return uri, nil
}

// UploadItem uploads the image, splices its URI into the metadata document,
// and uploads the updated document. index is the 0-based item index.
func (u *AssetUploader) UploadItem(ctx context.Context, index int, image assets.Image, doc *assets.Document) (string, string, error) {
	if doc == nil {
		return "", "", services.Wrap(services.ErrValidation, "", "upload item", "metadata document missing", nil)
	}
	imageName := image.Name
	if imageName == "" {
		imageName = strconv.Itoa(index+1) + ".png"
	}
	contentType := image.ContentType
	if contentType == "" {
		contentType = "image/png"
	}
	imageURI, err := u.Upload(ctx, image.Data, imageName, contentType)
	if err != nil {
		return "", "", err
	}

	body, err := json.Marshal(doc.WithImage(imageURI))
	if err != nil {
		return "", "", services.Wrap(services.ErrValidation, "", "encode metadata", fmt.Sprintf("item %d", index), err)
	}
	metadataURI, err := u.Upload(ctx, body, strconv.Itoa(index+1)+".json", "application/json")
	if err != nil {
		return "", "", err
	}
	return imageURI, metadataURI, nil
}

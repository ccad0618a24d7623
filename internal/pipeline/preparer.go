package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"mintline/internal/assets"
	"mintline/internal/checkpoint"
	"mintline/internal/logging"
	"mintline/internal/services"
)

// Preparer uploads every item of the batch and checkpoints the results.
type Preparer struct {
	source   assets.Source
	uploader *AssetUploader
	store    *checkpoint.Store
	settings Settings
	logger   *slog.Logger
}

// NewPreparer builds a Preparer.
func NewPreparer(source assets.Source, uploader *AssetUploader, store *checkpoint.Store, settings Settings, logger *slog.Logger) *Preparer {
	return &Preparer{
		source:   source,
		uploader: uploader,
		store:    store,
		settings: settings,
		logger:   logging.NewComponentLogger(logger, "preparer"),
	}
}

// Checkpointed returns the items already prepared for the run.
func (p *Preparer) Checkpointed(ctx context.Context, run *checkpoint.Run) ([]checkpoint.PreparedItem, error) {
	return p.store.PreparedItems(ctx, run.ID)
}

// PrepareAll uploads source items 1..itemCount and returns them as prepared
// items with indices 0..itemCount-1 in ascending order. Items already
// checkpointed for the run are reused without uploading again. The first
// item that fails aborts the batch.
func (p *Preparer) PrepareAll(ctx context.Context, run *checkpoint.Run, itemCount int) ([]checkpoint.PreparedItem, error) {
	existing, err := p.store.PreparedItems(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	done := make(map[int]checkpoint.PreparedItem, len(existing))
	for _, item := range existing {
		done[item.Index] = item
	}

	items := make([]checkpoint.PreparedItem, 0, itemCount)
	for i := 1; i <= itemCount; i++ {
		index := i - 1
		if item, ok := done[index]; ok {
			p.logger.Debug("item already prepared",
				logging.Int("index", index),
				logging.String("metadata_uri", item.MetadataURI),
			)
			items = append(items, item)
			continue
		}
		item, err := p.prepareOne(ctx, run, i)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		p.logger.Info("item prepared",
			logging.String(logging.FieldEventType, "item_prepared"),
			logging.Int("index", index),
			logging.String("name", item.Name),
			logging.String("metadata_uri", item.MetadataURI),
			logging.String("progress", fmt.Sprintf("%d/%d", i, itemCount)),
		)
	}
	return items, nil
}

func (p *Preparer) prepareOne(ctx context.Context, run *checkpoint.Run, sourceIndex int) (checkpoint.PreparedItem, error) {
	index := sourceIndex - 1
	doc, err := p.source.Metadata(ctx, sourceIndex)
	if err != nil {
		return checkpoint.PreparedItem{}, err
	}
	name := doc.Name()
	if name == "" {
		return checkpoint.PreparedItem{}, services.Wrap(services.ErrValidation, "", "prepare item",
			fmt.Sprintf("metadata %d has no name", sourceIndex), nil)
	}
	// Names are fully known locally; URIs are checked after upload.
	if _, err := p.settings.CheckLine(name, p.settings.Mechanism.ConfigLines.PrefixURI); err != nil {
		return checkpoint.PreparedItem{}, err
	}
	image, err := p.source.Image(ctx, sourceIndex)
	if err != nil {
		return checkpoint.PreparedItem{}, err
	}

	imageURI, metadataURI, err := p.uploader.UploadItem(ctx, index, image, doc)
	if err != nil {
		return checkpoint.PreparedItem{}, err
	}
	if _, err := p.settings.CheckLine(name, metadataURI); err != nil {
		return checkpoint.PreparedItem{}, err
	}

	item := checkpoint.PreparedItem{
		RunID:       run.ID,
		Index:       index,
		Name:        name,
		ImageURI:    imageURI,
		MetadataURI: metadataURI,
	}
	if err := p.store.SavePreparedItem(ctx, item); err != nil {
		return checkpoint.PreparedItem{}, err
	}
	return item, nil
}

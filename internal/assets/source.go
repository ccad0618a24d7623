// Package assets reads per-item images and metadata documents for a batch.
//
// A Source maps a 1-based source index to an image blob and a metadata
// document. DirSource implements the on-disk layout produced by art
// generators: <images_dir>/<i>.png next to <metadata_dir>/<i>.json.
package assets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"mintline/internal/services"
)

// Source supplies the image and metadata for a source index.
type Source interface {
	Image(ctx context.Context, index int) (Image, error)
	Metadata(ctx context.Context, index int) (*Document, error)
}

// Image is a raw image blob plus the name it is stored under.
type Image struct {
	Name        string
	ContentType string
	Data        []byte
}

// DirSource reads assets from two directories keyed by index.
type DirSource struct {
	ImagesDir   string
	MetadataDir string
}

// NewDirSource returns a DirSource rooted at the given directories.
func NewDirSource(imagesDir, metadataDir string) *DirSource {
	return &DirSource{ImagesDir: imagesDir, MetadataDir: metadataDir}
}

// ImagePath returns the image file path for a 1-based source index.
func (s *DirSource) ImagePath(index int) string {
	return filepath.Join(s.ImagesDir, strconv.Itoa(index)+".png")
}

// MetadataPath returns the metadata file path for a 1-based source index.
func (s *DirSource) MetadataPath(index int) string {
	return filepath.Join(s.MetadataDir, strconv.Itoa(index)+".json")
}

// Image reads <images_dir>/<index>.png verbatim.
func (s *DirSource) Image(ctx context.Context, index int) (Image, error) {
	if err := ctx.Err(); err != nil {
		return Image{}, err
	}
	path := s.ImagePath(index)
	data, err := os.ReadFile(path)
	if err != nil {
		return Image{}, services.Wrap(markerFor(err), "", "read image", path, err)
	}
	return Image{Name: filepath.Base(path), ContentType: "image/png", Data: data}, nil
}

// Metadata reads and parses <metadata_dir>/<index>.json.
func (s *DirSource) Metadata(ctx context.Context, index int) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := s.MetadataPath(index)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(markerFor(err), "", "read metadata", path, err)
	}
	doc, err := ParseDocument(data)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "", "parse metadata", path, err)
	}
	return doc, nil
}

// Check verifies that every index in 1..count has both files present.
func (s *DirSource) Check(count int) error {
	for i := 1; i <= count; i++ {
		for _, path := range []string{s.ImagePath(i), s.MetadataPath(i)} {
			info, err := os.Stat(path)
			if err != nil {
				return fmt.Errorf("asset %d: %w", i, err)
			}
			if info.IsDir() {
				return fmt.Errorf("asset %d: %s is a directory", i, path)
			}
		}
	}
	return nil
}

func markerFor(err error) error {
	if os.IsNotExist(err) {
		return services.ErrNotFound
	}
	return services.ErrValidation
}

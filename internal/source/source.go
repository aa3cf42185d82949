package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"media-compressor-go/internal/extractor"
	"media-compressor-go/internal/media"

	"github.com/gabriel-vasile/mimetype"
	"github.com/sirupsen/logrus"
)

// Request describes what the caller is willing to accept.
type Request struct {
	AllowedKinds []media.Kind
	MaxItems     int
}

// DefaultRequest accepts one image or video.
func DefaultRequest() Request {
	return Request{AllowedKinds: media.AllKinds, MaxItems: 1}
}

// Validate checks the request is one this package can serve.
func (r Request) Validate() error {
	if r.MaxItems != 1 {
		return fmt.Errorf("max items must be 1, got %d", r.MaxItems)
	}
	if len(r.AllowedKinds) == 0 {
		return fmt.Errorf("no media kinds allowed")
	}
	return nil
}

// Allows reports whether kind is requested.
func (r Request) Allows(kind media.Kind) bool {
	return slices.Contains(r.AllowedKinds, kind)
}

// Source selects at most one media item. A nil item with a nil error means
// nothing was selected; media.ErrSelectionCancelled means the user backed out.
type Source interface {
	Select(ctx context.Context, req Request) (*media.SelectedMedia, error)
}

// Describer turns a file on disk into a SelectedMedia.
type Describer struct {
	extractor extractor.MetadataExtractor
	logger    *logrus.Logger
}

// NewDescriber creates a Describer. ext may be nil, in which case videos are
// recognised by MIME type alone.
func NewDescriber(ext extractor.MetadataExtractor, logger *logrus.Logger) *Describer {
	return &Describer{extractor: ext, logger: logger}
}

// CacheStats reports the metadata cache counters. ok is false when the
// extractor does not cache.
func (d *Describer) CacheStats() (stats extractor.CacheStats, ok bool) {
	cached, ok := d.extractor.(extractor.CachedMetadataExtractor)
	if !ok {
		return extractor.CacheStats{}, false
	}
	return cached.GetCacheStats(), true
}

// Describe stats and sniffs the file at path. It returns nil when the file is
// neither an image nor a video.
func (d *Describer) Describe(path string) (*media.SelectedMedia, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, fmt.Errorf("detect type of %s: %w", path, err)
	}
	mime := mtype.String()
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	if !strings.HasPrefix(mime, "image/") && !strings.HasPrefix(mime, "video/") {
		d.logger.Debugf("Ignoring %s: %s is not a media type", path, mime)
		return nil, nil
	}

	size := info.Size()
	item := &media.SelectedMedia{
		URI:       media.FileURI(path),
		SizeBytes: &size,
		MimeType:  mime,
	}

	if d.extractor != nil && d.extractor.SupportsFile(path) {
		if meta, err := d.extractor.Extract(path); err != nil {
			d.logger.Debugf("Metadata extraction failed for %s: %v", path, err)
		} else {
			item.DurationMs = meta.DurationMs
		}
	}

	classified := item.WithKind(media.Classify(*item))
	return &classified, nil
}

// PathSource selects the file at a fixed path.
type PathSource struct {
	Path      string
	describer *Describer
}

// NewPathSource returns a source that always offers path. An empty path
// behaves like a dismissed picker.
func NewPathSource(path string, describer *Describer) *PathSource {
	return &PathSource{Path: path, describer: describer}
}

// Select implements Source.
func (s *PathSource) Select(ctx context.Context, req Request) (*media.SelectedMedia, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := strings.TrimSpace(media.PathFromURI(s.Path))
	if path == "" {
		return nil, media.ErrSelectionCancelled
	}
	item, err := s.describer.Describe(filepath.Clean(path))
	if err != nil || item == nil {
		return nil, err
	}
	if !req.Allows(item.Kind) {
		return nil, nil
	}
	return item, nil
}

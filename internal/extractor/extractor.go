package extractor

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/sirupsen/logrus"
)

// VideoProber reads container metadata from video files.
type VideoProber interface {
	Probe(filePath string) (*VideoInfo, error)
}

// VideoInfo is the subset of container metadata the extractor uses.
type VideoInfo struct {
	DurationMs *int64
	Width      int
	Height     int
	CreatedAt  string
}

// MediaExtractor extracts metadata from images (EXIF) and videos (prober).
type MediaExtractor struct {
	logger    *logrus.Logger
	prober    VideoProber
	imageExts []string
	videoExts []string
	cache     *sync.Map
	stats     CacheStats
	mutex     sync.RWMutex
}

// NewMediaExtractor returns a new MediaExtractor. prober may be nil, in which
// case videos get no duration.
func NewMediaExtractor(logger *logrus.Logger, prober VideoProber, imageExts, videoExts []string) *MediaExtractor {
	return &MediaExtractor{
		logger:    logger,
		prober:    prober,
		imageExts: lowerAll(imageExts),
		videoExts: lowerAll(videoExts),
		cache:     &sync.Map{},
	}
}

// Extract returns metadata for an image or video file.
// When no embedded date is available it falls back to the file modification time.
func (e *MediaExtractor) Extract(filePath string) (*Metadata, error) {
	if !e.SupportsFile(filePath) {
		return nil, fmt.Errorf("file type not supported by extractor: %s", filePath)
	}

	fileInfo, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	if cached := e.getCachedWithInfo(filePath, fileInfo); cached != nil {
		e.incrementCacheHits()
		return cached, nil
	}

	e.incrementCacheMisses()

	var meta *Metadata
	if e.isVideo(filePath) {
		meta = e.extractVideo(filePath)
	} else {
		meta = e.extractImage(filePath)
	}

	if meta.TakenAt.IsZero() {
		meta.TakenAt = fileInfo.ModTime()
		meta.DateSource = DateSourceFileModTime
	}

	e.cacheWithInfo(filePath, fileInfo, meta)
	return copyMetadata(meta), nil
}

// SupportsFile reports whether the file is supported by this extractor.
func (e *MediaExtractor) SupportsFile(filePath string) bool {
	ext := strings.ToLower(filepath.Ext(filePath))
	return slices.Contains(e.imageExts, ext) || slices.Contains(e.videoExts, ext)
}

// GetCacheStats returns cache statistics for this extractor.
func (e *MediaExtractor) GetCacheStats() CacheStats {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	stats := e.stats
	if stats.TotalQueries > 0 {
		stats.HitRate = float64(stats.Hits) / float64(stats.TotalQueries)
	}
	return stats
}

func (e *MediaExtractor) isVideo(filePath string) bool {
	return slices.Contains(e.videoExts, strings.ToLower(filepath.Ext(filePath)))
}

// extractVideo asks the prober for duration and dimensions.
func (e *MediaExtractor) extractVideo(filePath string) *Metadata {
	meta := &Metadata{}
	if e.prober == nil {
		return meta
	}

	info, err := e.prober.Probe(filePath)
	if err != nil {
		e.logger.Debugf("Video probe failed for %s: %v", filePath, err)
		return meta
	}

	meta.DurationMs = info.DurationMs
	meta.Width = info.Width
	meta.Height = info.Height
	if date := e.parseEXIFDateTime(info.CreatedAt); date != nil {
		meta.TakenAt = *date
		meta.DateSource = DateSourceVideoMetadata
	}
	return meta
}

// extractImage reads dimensions and the EXIF date using the rwcarlsen/goexif library.
func (e *MediaExtractor) extractImage(filePath string) *Metadata {
	meta := &Metadata{}

	file, err := os.Open(filePath)
	if err != nil {
		e.logger.Debugf("Failed to open %s: %v", filePath, err)
		return meta
	}
	defer file.Close()

	if cfg, _, err := image.DecodeConfig(file); err == nil {
		meta.Width = cfg.Width
		meta.Height = cfg.Height
	}

	if _, err := file.Seek(0, 0); err != nil {
		return meta
	}

	x, err := exif.Decode(file)
	if err != nil {
		e.logger.Debugf("No EXIF in %s: %v", filePath, err)
		return meta
	}

	if tm, err := x.DateTime(); err == nil {
		meta.TakenAt = tm
		meta.DateSource = DateSourceEXIFDateTime
		return meta
	}

	for _, candidate := range []struct {
		field  exif.FieldName
		source DateSource
	}{
		{exif.DateTimeOriginal, DateSourceEXIFDateTimeOriginal},
		{exif.DateTimeDigitized, DateSourceEXIFDateTimeDigitized},
	} {
		field, err := x.Get(candidate.field)
		if err != nil {
			continue
		}
		dateStr, err := field.StringVal()
		if err != nil {
			continue
		}
		if date := e.parseEXIFDateTime(dateStr); date != nil {
			meta.TakenAt = *date
			meta.DateSource = candidate.source
			return meta
		}
	}

	return meta
}

// parseEXIFDateTime parses an EXIF date time string and returns a time.Time pointer.
// Returns nil if parsing fails.
func (e *MediaExtractor) parseEXIFDateTime(dateStr string) *time.Time {
	dateStr = strings.TrimSpace(dateStr)
	if dateStr == "" || strings.HasPrefix(dateStr, "0000") {
		return nil
	}

	formats := []string{
		"2006:01:02 15:04:05",
		"2006-01-02 15:04:05",
		"2006:01:02",
		"2006-01-02",
		time.RFC3339,
		time.RFC3339Nano,
	}

	for _, format := range formats {
		if date, err := time.Parse(format, dateStr); err == nil {
			return &date
		}
	}

	e.logger.Debugf("Failed to parse date string: %s", dateStr)
	return nil
}

// getCacheKey returns a cache key for the given file path and file info.
func (e *MediaExtractor) getCacheKey(filePath string, fileInfo os.FileInfo) string {
	return fmt.Sprintf("%s:%d:%d", filePath, fileInfo.Size(), fileInfo.ModTime().UnixNano())
}

func (e *MediaExtractor) getCachedWithInfo(filePath string, fileInfo os.FileInfo) *Metadata {
	key := e.getCacheKey(filePath, fileInfo)
	if value, ok := e.cache.Load(key); ok {
		if meta, ok := value.(*Metadata); ok {
			return copyMetadata(meta)
		}
	}
	return nil
}

func (e *MediaExtractor) cacheWithInfo(filePath string, fileInfo os.FileInfo, meta *Metadata) {
	key := e.getCacheKey(filePath, fileInfo)
	e.cache.Store(key, meta)
}

// incrementCacheHits increments the cache hit counter.
func (e *MediaExtractor) incrementCacheHits() {
	e.mutex.Lock()
	e.stats.Hits++
	e.stats.TotalQueries++
	e.mutex.Unlock()
}

// incrementCacheMisses increments the cache miss counter.
func (e *MediaExtractor) incrementCacheMisses() {
	e.mutex.Lock()
	e.stats.Misses++
	e.stats.TotalQueries++
	e.mutex.Unlock()
}

func copyMetadata(meta *Metadata) *Metadata {
	out := *meta
	if meta.DurationMs != nil {
		d := *meta.DurationMs
		out.DurationMs = &d
	}
	return &out
}

func lowerAll(exts []string) []string {
	out := make([]string, len(exts))
	for i, ext := range exts {
		out[i] = strings.ToLower(ext)
	}
	return out
}

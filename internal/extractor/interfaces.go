package extractor

import (
	"time"
)

// MetadataExtractor is the interface for reading media metadata from files.
type MetadataExtractor interface {
	Extract(filePath string) (*Metadata, error)
	SupportsFile(filePath string) bool
}

// CachedMetadataExtractor extends MetadataExtractor with cache reporting.
type CachedMetadataExtractor interface {
	MetadataExtractor
	GetCacheStats() CacheStats
}

// CacheStats contains statistics about cache performance.
type CacheStats struct {
	Hits         int64
	Misses       int64
	HitRate      float64
	TotalQueries int64
}

// DateSource represents the source of the extracted date.
type DateSource int

const (
	DateSourceUnknown DateSource = iota
	DateSourceEXIFDateTime
	DateSourceEXIFDateTimeOriginal
	DateSourceEXIFDateTimeDigitized
	DateSourceVideoMetadata
	DateSourceFileModTime
)

// Metadata is what the extractor knows about a media file.
type Metadata struct {
	TakenAt    time.Time
	DateSource DateSource
	DurationMs *int64
	Width      int
	Height     int
}

// String returns a human-readable description of the date source.
func (ds DateSource) String() string {
	switch ds {
	case DateSourceEXIFDateTime:
		return "EXIF DateTime"
	case DateSourceEXIFDateTimeOriginal:
		return "EXIF DateTimeOriginal"
	case DateSourceEXIFDateTimeDigitized:
		return "EXIF DateTimeDigitized"
	case DateSourceVideoMetadata:
		return "Video Metadata"
	case DateSourceFileModTime:
		return "File Modification Time"
	default:
		return "Unknown"
	}
}

package media

import (
	"path/filepath"
	"strings"
)

// SelectedMedia is one item returned by a media source.
// It is replaced wholesale on every selection and never mutated in place.
type SelectedMedia struct {
	URI        string `json:"uri"`
	SizeBytes  *int64 `json:"size_bytes,omitempty"`
	MimeType   string `json:"mime_type,omitempty"`
	Kind       Kind   `json:"kind"`
	DurationMs *int64 `json:"duration_ms,omitempty"`
}

// WithKind returns a copy of m classified as kind.
func (m SelectedMedia) WithKind(kind Kind) SelectedMedia {
	m.Kind = kind
	return m
}

// Classify decides whether an item is an image or a video.
// A known duration wins over the MIME type, since pickers often omit the type.
func Classify(m SelectedMedia) Kind {
	if m.DurationMs != nil {
		return KindVideo
	}
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(m.MimeType)), "video/") {
		return KindVideo
	}
	return KindImage
}

// previewImageExtensions are the extensions a compressed output is rendered for.
var previewImageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".heic": {},
	".webp": {},
}

// IsImageURI reports whether uri looks like an image by its file extension.
func IsImageURI(uri string) bool {
	if i := strings.IndexAny(uri, "?#"); i >= 0 {
		uri = uri[:i]
	}
	_, ok := previewImageExtensions[strings.ToLower(filepath.Ext(uri))]
	return ok
}

// PathFromURI strips a URI scheme prefix such as "file://" so the result can be
// passed to filesystem calls. Strings without a scheme are returned unchanged.
func PathFromURI(uri string) string {
	i := strings.Index(uri, "://")
	if i <= 0 || strings.ContainsAny(uri[:i], "/\\") {
		return uri
	}
	return uri[i+len("://"):]
}

// FileURI turns a filesystem path into a file:// URI.
func FileURI(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return "file://" + filepath.ToSlash(path)
}

package inspector

import (
	"context"
	"fmt"

	"media-compressor-go/internal/media"

	"github.com/spf13/afero"
)

// FileInspector reports file sizes for paths or file URIs.
type FileInspector struct {
	fs afero.Fs
}

// NewFileInspector returns an inspector over fs.
func NewFileInspector(fs afero.Fs) *FileInspector {
	return &FileInspector{fs: fs}
}

// NewOSFileInspector returns an inspector over the real filesystem.
func NewOSFileInspector() *FileInspector {
	return NewFileInspector(afero.NewOsFs())
}

// Stat returns the size in bytes of the regular file at path. Any URI scheme
// prefix (file://, content://) is stripped first.
func (i *FileInspector) Stat(ctx context.Context, path string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	fsPath := media.PathFromURI(path)
	if fsPath == "" {
		return 0, fmt.Errorf("empty path")
	}
	info, err := i.fs.Stat(fsPath)
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", fsPath, err)
	}
	if info.IsDir() {
		return 0, fmt.Errorf("stat %s: is a directory", fsPath)
	}
	return info.Size(), nil
}

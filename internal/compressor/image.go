package compressor

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"media-compressor-go/internal/media"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/webp" // registers the WebP decoder with image.Decode
)

// ImageCompressor downsizes and re-encodes images as JPEG.
type ImageCompressor struct {
	outputDir string
	logger    *logrus.Logger
}

// NewImageCompressor creates an ImageCompressor writing into outputDir.
func NewImageCompressor(outputDir string, logger *logrus.Logger) *ImageCompressor {
	return &ImageCompressor{outputDir: outputDir, logger: logger}
}

// Compress implements Compressor for images.
func (c *ImageCompressor) Compress(ctx context.Context, sourceURI string, kind media.Kind, opts Options) (string, error) {
	if kind != media.KindImage {
		return "", fmt.Errorf("image compressor cannot handle %s", kind)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	params := opts.Image
	if params.Quality <= 0 || params.Quality > 1 {
		return "", fmt.Errorf("invalid quality %v: must be in (0, 1]", params.Quality)
	}

	inputPath := media.PathFromURI(sourceURI)
	if _, err := os.Stat(inputPath); err != nil {
		return "", fmt.Errorf("stat source: %w", err)
	}

	img, err := imaging.Open(inputPath, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("open image: %w", err)
	}

	bounds := img.Bounds()
	if params.MaxWidth > 0 && bounds.Dx() > params.MaxWidth {
		img = imaging.Resize(img, params.MaxWidth, 0, imaging.Lanczos)
		c.logger.Debugf("Resized %s from %dx%d to %dx%d", inputPath,
			bounds.Dx(), bounds.Dy(), img.Bounds().Dx(), img.Bounds().Dy())
	}

	jpegQuality := int(math.Round(params.Quality * 100))
	if jpegQuality < 1 {
		jpegQuality = 1
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return "", fmt.Errorf("encode image: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	outPath := outputPath(c.outputDir, inputPath, ".jpg")
	if err := writeAtomic(outPath, buf.Bytes()); err != nil {
		return "", err
	}

	c.logger.WithFields(logrus.Fields{
		"source":  inputPath,
		"output":  outPath,
		"quality": jpegQuality,
	}).Info("Image compressed")

	return media.FileURI(outPath), nil
}

// writeAtomic writes data to a tmp file next to path and renames it into place.
func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write tmp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename output: %w", err)
	}
	return nil
}

package compressor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"media-compressor-go/internal/config"
	"media-compressor-go/internal/media"
)

// Video compression methods.
type VideoMethod string

const (
	VideoMethodAuto   VideoMethod = config.VideoMethodAuto
	VideoMethodManual VideoMethod = config.VideoMethodManual
)

// ImageOptions defines parameters for image compression.
type ImageOptions struct {
	MaxWidth int
	Quality  float64 // 0..1
}

// VideoOptions defines parameters for video compression.
type VideoOptions struct {
	Method    VideoMethod
	MaxHeight int
	Bitrate   string
}

// Options is the kind-specific configuration for one compression.
// Only the member matching Kind is meaningful.
type Options struct {
	Kind  media.Kind
	Image ImageOptions
	Video VideoOptions
}

// Settings holds the configured options for both kinds.
type Settings struct {
	Image ImageOptions
	Video VideoOptions
}

// SettingsFromConfig builds Settings from the loaded configuration.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		Image: ImageOptions{
			MaxWidth: cfg.Image.MaxWidth,
			Quality:  cfg.Image.Quality,
		},
		Video: VideoOptions{
			Method:    VideoMethod(cfg.Video.CompressionMethod),
			MaxHeight: cfg.Video.MaxHeight,
			Bitrate:   cfg.Video.Bitrate,
		},
	}
}

// ForKind selects the options that apply to kind.
func (s Settings) ForKind(kind media.Kind) Options {
	opts := Options{Kind: kind}
	switch kind {
	case media.KindVideo:
		opts.Video = s.Video
	default:
		opts.Image = s.Image
	}
	return opts
}

// Compressor defines the interface for media compression.
type Compressor interface {
	// Compress transforms the media at sourceURI and returns the URI of the output.
	Compress(ctx context.Context, sourceURI string, kind media.Kind, opts Options) (string, error)
}

// Router dispatches to the image or video compressor by kind.
type Router struct {
	Image Compressor
	Video Compressor
}

// NewRouter returns a Router over the two kind-specific compressors.
func NewRouter(image, video Compressor) *Router {
	return &Router{Image: image, Video: video}
}

// Compress implements Compressor.
func (r *Router) Compress(ctx context.Context, sourceURI string, kind media.Kind, opts Options) (string, error) {
	var target Compressor
	switch kind {
	case media.KindImage:
		target = r.Image
	case media.KindVideo:
		target = r.Video
	}
	if target == nil {
		return "", fmt.Errorf("no compressor for %s", kind)
	}
	if opts.Kind != kind {
		return "", fmt.Errorf("options for %s passed to %s compression", opts.Kind, kind)
	}
	return target.Compress(ctx, sourceURI, kind, opts)
}

// outputPath builds "<dir>/<base>-compressed<ext>" for a source path.
func outputPath(dir, sourcePath, ext string) string {
	base := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	return filepath.Join(dir, base+"-compressed"+ext)
}

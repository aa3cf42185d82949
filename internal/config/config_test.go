package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadConfig_File(t *testing.T) {
	path := writeConfig(t, `
library_directory: /srv/library
output_directory: /srv/out
image:
  max_width: 1080
  quality: 0.7
  supported_extensions: [JPG, png]
video:
  compression_method: Manual
  bitrate: 2M
pipeline:
  step_timeout: 45s
logging:
  level: DEBUG
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/library", cfg.LibraryDirectory)
	assert.Equal(t, "/srv/out", cfg.OutputDirectory)
	assert.Equal(t, 1080, cfg.Image.MaxWidth)
	assert.InDelta(t, 0.7, cfg.Image.Quality, 1e-9)
	assert.Equal(t, []string{".jpg", ".png"}, cfg.Image.SupportedExtensions)
	assert.Equal(t, VideoMethodManual, cfg.Video.CompressionMethod)
	assert.Equal(t, "2M", cfg.Video.Bitrate)
	assert.Equal(t, 720, cfg.Video.MaxHeight, "defaults survive partial sections")
	assert.Equal(t, 45*time.Second, cfg.Pipeline.StepTimeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	path := writeConfig(t, "output_directory: out\n")
	t.Setenv("MEDIA_COMPRESSOR_IMAGE_QUALITY", "0.5")
	t.Setenv("MEDIA_COMPRESSOR_SERVER_PORT", "9090")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, cfg.Image.Quality, 1e-9)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadConfig_Invalid(t *testing.T) {
	path := writeConfig(t, "image:\n  quality: 1.5\n")
	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "image.quality")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults are valid", func(*Config) {}, false},
		{"zero quality", func(c *Config) { c.Image.Quality = 0 }, true},
		{"quality of one", func(c *Config) { c.Image.Quality = 1 }, false},
		{"negative width", func(c *Config) { c.Image.MaxWidth = -1 }, true},
		{"unknown method", func(c *Config) { c.Video.CompressionMethod = "fast" }, true},
		{"manual without bitrate", func(c *Config) {
			c.Video.CompressionMethod = VideoMethodManual
			c.Video.Bitrate = ""
		}, true},
		{"empty output", func(c *Config) { c.OutputDirectory = "" }, true},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, true},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }, true},
		{"negative timeout clamps", func(c *Config) { c.Pipeline.StepTimeout = -time.Second }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestExtensionHelpers(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.True(t, cfg.IsImageExtension(".JPG"))
	assert.False(t, cfg.IsImageExtension(".mp4"))
	assert.True(t, cfg.IsVideoExtension(".mov"))
	assert.True(t, cfg.IsImageExtension(".webp"))
	// No HEIC decoder is registered, so it is not offered by default.
	assert.False(t, cfg.IsImageExtension(".heic"))
}

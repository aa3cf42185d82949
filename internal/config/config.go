package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Video compression methods.
const (
	VideoMethodAuto   = "auto"
	VideoMethodManual = "manual"
)

// Config represents the main configuration structure
type Config struct {
	LibraryDirectory string         `mapstructure:"library_directory"`
	OutputDirectory  string         `mapstructure:"output_directory"`
	Image            ImageConfig    `mapstructure:"image"`
	Video            VideoConfig    `mapstructure:"video"`
	Pipeline         PipelineConfig `mapstructure:"pipeline"`
	Server           ServerConfig   `mapstructure:"server"`
	Logging          LoggingConfig  `mapstructure:"logging"`
}

// ImageConfig contains image compression settings
type ImageConfig struct {
	MaxWidth            int      `mapstructure:"max_width"`
	Quality             float64  `mapstructure:"quality"` // 0..1
	SupportedExtensions []string `mapstructure:"supported_extensions"`
}

// VideoConfig contains video compression settings
type VideoConfig struct {
	CompressionMethod   string   `mapstructure:"compression_method"`
	MaxHeight           int      `mapstructure:"max_height"`
	Bitrate             string   `mapstructure:"bitrate"`
	FFmpegPath          string   `mapstructure:"ffmpeg_path"`
	SupportedExtensions []string `mapstructure:"supported_extensions"`
}

// PipelineConfig contains run orchestration settings
type PipelineConfig struct {
	StepTimeout time.Duration `mapstructure:"step_timeout"` // 0 disables
}

// ServerConfig contains web interface settings
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
	Compress   bool   `mapstructure:"compress"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		LibraryDirectory: ".",
		OutputDirectory:  "compressed",
		Image: ImageConfig{
			MaxWidth: 1600,
			Quality:  0.8,
			SupportedExtensions: []string{
				".jpg", ".jpeg", ".png", ".webp", ".gif", ".bmp", ".tiff", ".tif",
			},
		},
		Video: VideoConfig{
			CompressionMethod: VideoMethodAuto,
			MaxHeight:         720,
			Bitrate:           "1M",
			FFmpegPath:        "ffmpeg",
			SupportedExtensions: []string{
				".mp4", ".mov", ".m4v", ".avi", ".mkv", ".webm", ".3gp",
			},
		},
		Server: ServerConfig{
			Port: 8080,
		},
		Logging: LoggingConfig{
			Level:      "info",
			FilePath:   "media-compressor.log",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     30,
			Compress:   true,
		},
	}
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Look for config file in current directory and home directory
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.media-compressor")
		v.AddConfigPath("/etc/media-compressor")
	}

	// Enable environment variable support
	v.SetEnvPrefix("MEDIA_COMPRESSOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// bindEnvKeys registers every known key so AutomaticEnv also applies to keys
// that are absent from the config file.
func bindEnvKeys(v *viper.Viper) {
	for _, key := range []string{
		"library_directory", "output_directory",
		"image.max_width", "image.quality",
		"video.compression_method", "video.max_height", "video.bitrate", "video.ffmpeg_path",
		"pipeline.step_timeout",
		"server.port",
		"logging.level", "logging.file_path",
	} {
		_ = v.BindEnv(key)
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.LibraryDirectory == "" {
		c.LibraryDirectory = "."
	}
	c.LibraryDirectory = expandPath(c.LibraryDirectory)

	if c.OutputDirectory == "" {
		return fmt.Errorf("output_directory is required")
	}
	c.OutputDirectory = expandPath(c.OutputDirectory)

	// Validate image settings
	if c.Image.MaxWidth <= 0 {
		return fmt.Errorf("invalid image.max_width: %d (must be positive)", c.Image.MaxWidth)
	}
	if c.Image.Quality <= 0 || c.Image.Quality > 1 {
		return fmt.Errorf("invalid image.quality: %v (must be in (0, 1])", c.Image.Quality)
	}

	// Validate video settings
	c.Video.CompressionMethod = strings.ToLower(c.Video.CompressionMethod)
	switch c.Video.CompressionMethod {
	case VideoMethodAuto:
	case VideoMethodManual:
		if c.Video.Bitrate == "" {
			return fmt.Errorf("video.bitrate is required for manual compression")
		}
	default:
		return fmt.Errorf("invalid video.compression_method: %s (valid: auto, manual)", c.Video.CompressionMethod)
	}
	if c.Video.MaxHeight < 0 {
		c.Video.MaxHeight = 0
	}
	if c.Video.FFmpegPath == "" {
		c.Video.FFmpegPath = "ffmpeg"
	}

	c.Image.SupportedExtensions = normalizeExtensions(c.Image.SupportedExtensions)
	c.Video.SupportedExtensions = normalizeExtensions(c.Video.SupportedExtensions)

	if c.Pipeline.StepTimeout < 0 {
		c.Pipeline.StepTimeout = 0
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port: %d", c.Server.Port)
	}

	// Validate logging settings
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	c.Logging.Level = strings.ToLower(c.Logging.Level)
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	return nil
}

// IsImageExtension checks if the extension is for an image file
func (c *Config) IsImageExtension(ext string) bool {
	return containsExtension(c.Image.SupportedExtensions, ext)
}

// IsVideoExtension checks if the extension is for a video file
func (c *Config) IsVideoExtension(ext string) bool {
	return containsExtension(c.Video.SupportedExtensions, ext)
}

// Helper functions

func containsExtension(extensions []string, ext string) bool {
	ext = strings.ToLower(ext)
	for _, supportedExt := range extensions {
		if ext == supportedExt {
			return true
		}
	}
	return false
}

func expandPath(path string) string {
	expandedPath := os.ExpandEnv(path)
	if strings.HasPrefix(expandedPath, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return expandedPath
		}
		expandedPath = filepath.Join(home, expandedPath[1:])
	}
	return expandedPath
}

func normalizeExtensions(extensions []string) []string {
	normalized := make([]string, len(extensions))
	for i, ext := range extensions {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		normalized[i] = ext
	}
	return normalized
}

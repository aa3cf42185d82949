package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"media-compressor-go/internal/compressor"
	"media-compressor-go/internal/config"
	"media-compressor-go/internal/extractor"
	"media-compressor-go/internal/inspector"
	"media-compressor-go/internal/logger"
	"media-compressor-go/internal/media"
	"media-compressor-go/internal/pipeline"
	"media-compressor-go/internal/source"
	"media-compressor-go/internal/statistics"
	"media-compressor-go/internal/web"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	cfgFile    string
	libraryDir string
	outputDir  string
	verbose    bool
	quiet      bool
	port       int
)

// rootCmd is the base command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "media-compressor",
	Short: "Pick a photo or video and compress it",
	Long: `Media Compressor lets you pick one photo or video, compresses it with
kind-specific settings and reports the original and compressed sizes.

Images are downscaled and re-encoded as JPEG. Videos are re-encoded with
ffmpeg, either automatically (quality based) or with a fixed bitrate.`,
	SilenceUsage: true,
}

// compressCmd runs one selection and compression.
var compressCmd = &cobra.Command{
	Use:   "compress [file]",
	Short: "Compress a file, or pick one from the library",
	Long: `Compresses the given file. Without an argument, lists the media files of
the library directory and asks which one to compress.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCompress(cmd.Context(), args)
	},
}

// inspectCmd shows what the pipeline would see for a file.
var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Show classification and metadata of a file",
	Long: `Shows how a file is classified, its size, MIME type and extracted metadata.
This is useful for debugging why a file is treated as image or video.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInspect(args[0])
	},
}

// serveCmd starts the web interface server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start web interface server",
	Long: `Starts a web server for Media Compressor. The page lets you submit a file
path and shows the original and compressed previews as the run progresses.

Access the interface at http://localhost:<port> (default: 8080)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "suppress non-error output")
	rootCmd.PersistentFlags().StringVar(&outputDir, "output", "", "directory for compressed files")

	compressCmd.Flags().StringVar(&libraryDir, "library", "", "directory to pick media from")
	serveCmd.Flags().IntVar(&port, "port", 0, "port to run web server on (default from config)")

	rootCmd.AddCommand(compressCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(serveCmd)
}

// app holds the wired pipeline.
type app struct {
	cfg        *config.Config
	log        *logrus.Logger
	stats      *statistics.Statistics
	extractor  *extractor.MediaExtractor
	describer  *source.Describer
	controller *pipeline.Controller
	closers    []io.Closer
}

func (a *app) Close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.log.Debugf("Close failed: %v", err)
		}
	}
}

// newApp wires config, logging, extractor, compressors and the controller.
// src becomes the controller's default source and may be nil.
func newApp(cfg *config.Config, src func(*source.Describer) source.Source) *app {
	log := setupLogger(cfg)
	a := &app{cfg: cfg, log: log, stats: statistics.NewStatistics()}

	var prober extractor.VideoProber
	if p, err := extractor.NewExiftoolProber(); err != nil {
		log.Warnf("exiftool unavailable, video durations will not be read: %v", err)
	} else {
		prober = p
		a.closers = append(a.closers, p)
	}

	a.extractor = extractor.NewMediaExtractor(log, prober, cfg.Image.SupportedExtensions, cfg.Video.SupportedExtensions)
	a.describer = source.NewDescriber(a.extractor, log)

	router := compressor.NewRouter(
		compressor.NewImageCompressor(cfg.OutputDirectory, log),
		compressor.NewVideoCompressor(cfg.Video.FFmpegPath, cfg.OutputDirectory, log),
	)

	var defaultSource source.Source
	if src != nil {
		defaultSource = src(a.describer)
	}

	a.controller = pipeline.NewController(
		defaultSource,
		router,
		inspector.NewOSFileInspector(),
		pipeline.Options{
			Settings:    compressor.SettingsFromConfig(cfg),
			StepTimeout: cfg.Pipeline.StepTimeout,
		},
		log,
		a.stats,
	)
	return a
}

// runCompress executes one pipeline run from the terminal.
func runCompress(ctx context.Context, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	a := newApp(cfg, func(d *source.Describer) source.Source {
		if len(args) > 0 {
			return source.NewPathSource(args[0], d)
		}
		return source.NewPromptSource(cfg.LibraryDirectory, cfg, os.Stdin, os.Stdout, d)
	})
	defer a.Close()

	if !quiet {
		a.controller.Subscribe(stateRenderer(os.Stdout))
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	state, err := a.controller.StartSelection(ctx)
	switch {
	case errors.Is(err, media.ErrSelectionCancelled), errors.Is(err, pipeline.ErrSelectionEmpty):
		return nil
	case err != nil:
		return err
	}

	if !quiet {
		if state.CompressedURI != nil {
			fmt.Printf("\nCompressed file: %s\n", media.PathFromURI(*state.CompressedURI))
		}
		fmt.Println("\n" + a.stats.GetSummary())
	}
	return nil
}

// stateRenderer prints one line per transition.
func stateRenderer(w io.Writer) pipeline.Listener {
	return func(state pipeline.DisplayState) {
		fmt.Fprintf(w, "[%s] %s\n", state.Phase, state.StatusLog)
	}
}

// runInspect describes a file the way the pipeline would.
func runInspect(filePath string) error {
	path := media.PathFromURI(filePath)
	if !fileExists(path) {
		return fmt.Errorf("file does not exist: %s", filePath)
	}

	cfg, err := loadConfig()
	if err != nil {
		cfg = config.DefaultConfig()
	}
	a := newApp(cfg, nil)
	defer a.Close()

	fmt.Printf("Inspecting: %s\n", path)

	item, err := a.describer.Describe(path)
	if err != nil {
		fmt.Printf("Error describing file: %v\n", err)
		return nil
	}
	if item == nil {
		fmt.Println("Not an image or video")
		return nil
	}

	fmt.Printf("URI:       %s\n", item.URI)
	fmt.Printf("Kind:      %s\n", item.Kind)
	fmt.Printf("MIME type: %s\n", item.MimeType)
	fmt.Printf("Size:      %s\n", statistics.FormatSize(item.SizeBytes))
	if item.DurationMs != nil {
		fmt.Printf("Duration:  %v\n", time.Duration(*item.DurationMs)*time.Millisecond)
	}

	if a.extractor.SupportsFile(path) {
		meta, err := a.extractor.Extract(path)
		if err != nil {
			fmt.Printf("Error extracting metadata: %v\n", err)
			return nil
		}
		if meta.Width > 0 && meta.Height > 0 {
			fmt.Printf("Dimensions: %dx%d\n", meta.Width, meta.Height)
		}
		if !meta.TakenAt.IsZero() {
			fmt.Printf("Taken:     %s (%s)\n", meta.TakenAt.Format("2006-01-02 15:04:05"), meta.DateSource)
		}
	}

	return nil
}

// runServe starts the web server and handles graceful shutdown.
func runServe() error {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "CONFIG LOAD ERROR: %v\n", err)
		cfg = config.DefaultConfig()
	}
	if port > 0 {
		cfg.Server.Port = port
	}

	a := newApp(cfg, nil)
	defer a.Close()
	server := web.NewServer(cfg, a.log, a.controller, a.describer)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := server.Start(cfg.Server.Port); err != nil && err != http.ErrServerClosed {
			a.log.Fatalf("Server failed to start: %v", err)
		}
	}()

	fmt.Printf("Media Compressor web interface started\n")
	fmt.Printf("Open your browser at http://localhost:%d\n", cfg.Server.Port)
	fmt.Printf("Press Ctrl+C to stop the server\n\n")

	<-sigChan
	fmt.Println("\nShutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	if !quiet {
		fmt.Println("\n" + a.stats.GetSummary())
		fmt.Println(a.stats.GetErrorSummary())
	}
	return nil
}

// loadConfig loads configuration and applies CLI overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}

	if libraryDir != "" {
		cfg.LibraryDirectory = libraryDir
	}
	if outputDir != "" {
		cfg.OutputDirectory = outputDir
	}

	return cfg, nil
}

// setupLogger configures and returns a logger.
func setupLogger(cfg *config.Config) *logrus.Logger {
	loggerCfg := logger.LoggerConfig{
		Level:      cfg.Logging.Level,
		FilePath:   cfg.Logging.FilePath,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
		Compress:   cfg.Logging.Compress,
		Console:    verbose,
	}

	if verbose {
		loggerCfg.Level = "debug"
	}
	if quiet {
		loggerCfg.Level = "error"
	}

	log, err := logger.NewLogger(loggerCfg)
	if err != nil {
		log = logrus.New()
		log.SetLevel(logrus.InfoLevel)
	}

	return log
}

// fileExists returns true if the given path exists and is a file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

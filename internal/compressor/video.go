package compressor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"media-compressor-go/internal/media"

	"github.com/sirupsen/logrus"
)

const (
	autoCRF         = "28"
	audioBitrate    = "128k"
	stderrTailLines = 5
)

// CommandRunner runs an external command and returns its captured stderr.
type CommandRunner func(ctx context.Context, name string, args ...string) (string, error)

// ExecRunner runs the command with exec.CommandContext, capturing stderr.
func ExecRunner(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderrBuf bytes.Buffer
	cmd.Stderr = &stderrBuf
	err := cmd.Run()
	return stderrBuf.String(), err
}

// VideoCompressor re-encodes videos to H.264/AAC MP4 with ffmpeg.
type VideoCompressor struct {
	ffmpegPath string
	outputDir  string
	logger     *logrus.Logger
	run        CommandRunner
}

// NewVideoCompressor creates a VideoCompressor writing into outputDir.
func NewVideoCompressor(ffmpegPath, outputDir string, logger *logrus.Logger) *VideoCompressor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &VideoCompressor{
		ffmpegPath: ffmpegPath,
		outputDir:  outputDir,
		logger:     logger,
		run:        ExecRunner,
	}
}

// UseRunner replaces the command runner. Intended for test setup only.
func (c *VideoCompressor) UseRunner(run CommandRunner) {
	c.run = run
}

// Compress implements Compressor for videos.
func (c *VideoCompressor) Compress(ctx context.Context, sourceURI string, kind media.Kind, opts Options) (string, error) {
	if kind != media.KindVideo {
		return "", fmt.Errorf("video compressor cannot handle %s", kind)
	}
	inputPath := media.PathFromURI(sourceURI)
	if _, err := os.Stat(inputPath); err != nil {
		return "", fmt.Errorf("stat source: %w", err)
	}

	outPath := outputPath(c.outputDir, inputPath, ".mp4")
	if err := os.MkdirAll(c.outputDir, 0755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	tmpPath := outPath + ".tmp"

	args, err := BuildVideoArgs(inputPath, tmpPath, opts.Video)
	if err != nil {
		return "", err
	}

	c.logger.WithFields(logrus.Fields{
		"source": inputPath,
		"method": opts.Video.Method,
	}).Debugf("Running %s %s", c.ffmpegPath, strings.Join(args, " "))

	stderr, err := c.run(ctx, c.ffmpegPath, args...)
	if err != nil {
		_ = os.Remove(tmpPath)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("ffmpeg interrupted: %w", ctxErr)
		}
		if tail := stderrTail(stderr, stderrTailLines); tail != "" {
			return "", fmt.Errorf("ffmpeg failed: %w: %s", err, tail)
		}
		return "", fmt.Errorf("ffmpeg failed: %w", err)
	}

	if err := os.Rename(tmpPath, outPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("rename output: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"source": inputPath,
		"output": outPath,
	}).Info("Video compressed")

	return media.FileURI(outPath), nil
}

// BuildVideoArgs returns the ffmpeg arguments for one compression.
func BuildVideoArgs(inputPath, outPath string, opts VideoOptions) ([]string, error) {
	args := []string{"-hide_banner", "-nostdin", "-y", "-i", inputPath, "-map_metadata", "0"}

	switch opts.Method {
	case VideoMethodAuto, "":
		args = append(args, "-c:v", "libx264", "-preset", "veryfast", "-crf", autoCRF)
		if opts.MaxHeight > 0 {
			args = append(args, "-vf", fmt.Sprintf("scale=-2:'min(ih,%d)'", opts.MaxHeight))
		}
	case VideoMethodManual:
		if opts.Bitrate == "" {
			return nil, fmt.Errorf("manual video compression requires a bitrate")
		}
		args = append(args, "-c:v", "libx264", "-preset", "medium", "-b:v", opts.Bitrate)
		if opts.MaxHeight > 0 {
			args = append(args, "-vf", fmt.Sprintf("scale=-2:'min(ih,%d)'", opts.MaxHeight))
		}
	default:
		return nil, fmt.Errorf("unknown video compression method: %q", opts.Method)
	}

	args = append(args,
		"-pix_fmt", "yuv420p",
		"-c:a", "aac", "-b:a", audioBitrate,
		"-movflags", "+faststart",
		"-f", "mp4",
		outPath,
	)
	return args, nil
}

// stderrTail returns the last n non-empty lines of ffmpeg stderr.
func stderrTail(stderr string, n int) string {
	var lines []string
	for _, line := range strings.Split(stderr, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}

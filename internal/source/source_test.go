package source

import (
	"bytes"
	"context"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"media-compressor-go/internal/config"
	"media-compressor-go/internal/extractor"
	"media-compressor-go/internal/logger"
	"media-compressor-go/internal/media"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mp4Header is enough of an ISO BMFF ftyp box for content sniffing.
var mp4Header = []byte("\x00\x00\x00\x18ftypmp42\x00\x00\x00\x00mp42isom")

type durationProber struct{ ms int64 }

func (p durationProber) Probe(string) (*extractor.VideoInfo, error) {
	ms := p.ms
	return &extractor.VideoInfo{DurationMs: &ms}, nil
}

func newDescriber() *Describer {
	log := logger.Discard()
	ext := extractor.NewMediaExtractor(log, durationProber{ms: 5000},
		[]string{".png", ".jpg"}, []string{".mp4", ".mov"})
	return NewDescriber(ext, log)
}

func writePNG(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	img := imaging.New(16, 16, color.NRGBA{G: 255, A: 255})
	require.NoError(t, imaging.Save(img, path))
}

func writeMP4(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, append(append([]byte{}, mp4Header...), make([]byte, 64)...), 0644))
}

func TestPathSource_Image(t *testing.T) {
	path := filepath.Join(t.TempDir(), "photo.png")
	writePNG(t, path)

	item, err := NewPathSource(path, newDescriber()).Select(context.Background(), DefaultRequest())
	require.NoError(t, err)
	require.NotNil(t, item)

	assert.Equal(t, media.KindImage, item.Kind)
	assert.Equal(t, "image/png", item.MimeType)
	assert.Equal(t, media.FileURI(path), item.URI)
	assert.Nil(t, item.DurationMs)
	require.NotNil(t, item.SizeBytes)
	info, _ := os.Stat(path)
	assert.Equal(t, info.Size(), *item.SizeBytes)
}

func TestPathSource_VideoGetsDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.mp4")
	writeMP4(t, path)

	item, err := NewPathSource(media.FileURI(path), newDescriber()).Select(context.Background(), DefaultRequest())
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, media.KindVideo, item.Kind)
	assert.True(t, strings.HasPrefix(item.MimeType, "video/"), item.MimeType)
	require.NotNil(t, item.DurationMs)
	assert.Equal(t, int64(5000), *item.DurationMs)
}

func TestPathSource_EdgeCases(t *testing.T) {
	dir := t.TempDir()
	notes := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(notes, []byte("hello"), 0644))
	clip := filepath.Join(dir, "clip.mp4")
	writeMP4(t, clip)
	d := newDescriber()

	_, err := NewPathSource("  ", d).Select(context.Background(), DefaultRequest())
	assert.ErrorIs(t, err, media.ErrSelectionCancelled)

	item, err := NewPathSource(notes, d).Select(context.Background(), DefaultRequest())
	assert.NoError(t, err)
	assert.Nil(t, item)

	_, err = NewPathSource(filepath.Join(dir, "missing.jpg"), d).Select(context.Background(), DefaultRequest())
	assert.ErrorIs(t, err, os.ErrNotExist)

	imagesOnly := Request{AllowedKinds: []media.Kind{media.KindImage}, MaxItems: 1}
	item, err = NewPathSource(clip, d).Select(context.Background(), imagesOnly)
	assert.NoError(t, err)
	assert.Nil(t, item)

	_, err = NewPathSource(clip, d).Select(context.Background(), Request{AllowedKinds: media.AllKinds, MaxItems: 3})
	assert.Error(t, err)
}

func newLibrary(t *testing.T) string {
	t.Helper()
	lib := t.TempDir()
	writePNG(t, filepath.Join(lib, "a.png"))
	writeMP4(t, filepath.Join(lib, "sub", "b.mp4"))
	writePNG(t, filepath.Join(lib, ".thumbnails", "c.png"))
	require.NoError(t, os.WriteFile(filepath.Join(lib, "notes.txt"), []byte("x"), 0644))
	return lib
}

func newPrompt(lib, input string, out *bytes.Buffer) *PromptSource {
	return NewPromptSource(lib, config.DefaultConfig(), strings.NewReader(input), out, newDescriber())
}

func TestPromptSource_Pick(t *testing.T) {
	lib := newLibrary(t)
	var out bytes.Buffer

	item, err := newPrompt(lib, "2\n", &out).Select(context.Background(), DefaultRequest())
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, media.FileURI(filepath.Join(lib, "sub", "b.mp4")), item.URI)
	assert.Equal(t, media.KindVideo, item.Kind)

	menu := out.String()
	assert.Contains(t, menu, "1) a.png")
	assert.Contains(t, menu, "2) "+filepath.Join("sub", "b.mp4"))
	assert.NotContains(t, menu, "c.png")
	assert.NotContains(t, menu, "notes.txt")
}

func TestPromptSource_CancelAndInvalid(t *testing.T) {
	lib := newLibrary(t)

	for _, input := range []string{"\n", "", "q\n", " Q "} {
		_, err := newPrompt(lib, input, &bytes.Buffer{}).Select(context.Background(), DefaultRequest())
		assert.ErrorIs(t, err, media.ErrSelectionCancelled, "input %q", input)
	}

	_, err := newPrompt(lib, "9\n", &bytes.Buffer{}).Select(context.Background(), DefaultRequest())
	assert.ErrorContains(t, err, "invalid choice")
}

func TestPromptSource_EmptyLibrary(t *testing.T) {
	var out bytes.Buffer
	item, err := newPrompt(t.TempDir(), "1\n", &out).Select(context.Background(), DefaultRequest())
	assert.NoError(t, err)
	assert.Nil(t, item)
	assert.Contains(t, out.String(), "No media files found")
}

func TestPromptSource_MissingLibrary(t *testing.T) {
	_, err := newPrompt(filepath.Join(t.TempDir(), "nope"), "1\n", &bytes.Buffer{}).
		Select(context.Background(), DefaultRequest())
	assert.Error(t, err)
}

func TestPromptSource_CancelledPromptKeepsInput(t *testing.T) {
	lib := newLibrary(t)
	pr, pw := io.Pipe()
	defer pw.Close()
	p := NewPromptSource(lib, config.DefaultConfig(), pr, &bytes.Buffer{}, newDescriber())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := p.Select(ctx, DefaultRequest())
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	go func() {
		_, _ = pw.Write([]byte("1\n2\n"))
	}()

	item, err := p.Select(context.Background(), DefaultRequest())
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, media.FileURI(filepath.Join(lib, "a.png")), item.URI)

	item, err = p.Select(context.Background(), DefaultRequest())
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, media.FileURI(filepath.Join(lib, "sub", "b.mp4")), item.URI)
}

func TestPromptSource_ImagesOnly(t *testing.T) {
	lib := newLibrary(t)
	var out bytes.Buffer
	imagesOnly := Request{AllowedKinds: []media.Kind{media.KindImage}, MaxItems: 1}

	item, err := newPrompt(lib, "1\n", &out).Select(context.Background(), imagesOnly)
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, media.KindImage, item.Kind)
	assert.NotContains(t, out.String(), "b.mp4")
}

func TestDescriber_CacheStats(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.mp4")
	writeMP4(t, path)
	d := newDescriber()

	for i := 0; i < 2; i++ {
		_, err := d.Describe(path)
		require.NoError(t, err)
	}
	stats, ok := d.CacheStats()
	require.True(t, ok)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)

	_, ok = NewDescriber(nil, logger.Discard()).CacheStats()
	assert.False(t, ok)
}

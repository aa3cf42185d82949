package extractor

import (
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProber struct {
	info  *VideoInfo
	err   error
	calls int
}

func (f *fakeProber) Probe(string) (*VideoInfo, error) {
	f.calls++
	return f.info, f.err
}

func newTestExtractor(prober VideoProber) *MediaExtractor {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return NewMediaExtractor(log, prober, []string{".jpg", ".png"}, []string{".mp4", ".MOV"})
}

func writePNG(t *testing.T, dir string, w, h int) string {
	t.Helper()
	path := filepath.Join(dir, "photo.png")
	img := imaging.New(w, h, color.NRGBA{R: 200, G: 40, B: 40, A: 255})
	require.NoError(t, imaging.Save(img, path))
	return path
}

func TestExtract_ImageFallsBackToModTime(t *testing.T) {
	path := writePNG(t, t.TempDir(), 64, 32)
	modTime := time.Date(2023, 12, 25, 15, 30, 45, 0, time.UTC)
	require.NoError(t, os.Chtimes(path, modTime, modTime))

	e := newTestExtractor(nil)
	meta, err := e.Extract(path)
	require.NoError(t, err)

	assert.Equal(t, 64, meta.Width)
	assert.Equal(t, 32, meta.Height)
	assert.Nil(t, meta.DurationMs)
	assert.Equal(t, DateSourceFileModTime, meta.DateSource)
	assert.True(t, meta.TakenAt.Equal(modTime))
}

func TestExtract_VideoUsesProberAndCache(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clip.mov")
	require.NoError(t, os.WriteFile(path, []byte("not really a movie"), 0644))

	ms := int64(5000)
	prober := &fakeProber{info: &VideoInfo{DurationMs: &ms, Width: 1920, Height: 1080, CreatedAt: "2024:06:01 08:00:00"}}
	e := newTestExtractor(prober)

	meta, err := e.Extract(path)
	require.NoError(t, err)
	require.NotNil(t, meta.DurationMs)
	assert.Equal(t, int64(5000), *meta.DurationMs)
	assert.Equal(t, DateSourceVideoMetadata, meta.DateSource)
	assert.Equal(t, 2024, meta.TakenAt.Year())

	// Mutating the returned copy must not leak into the cache.
	*meta.DurationMs = 1

	again, err := e.Extract(path)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), *again.DurationMs)
	assert.Equal(t, 1, prober.calls)

	stats := e.GetCacheStats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 0.5, stats.HitRate, 1e-9)
}

func TestExtract_VideoDurationFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clip.mp4")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	e := newTestExtractor(&fakeProber{err: errors.New("exiftool missing")})
	meta, err := e.Extract(path)
	require.NoError(t, err)
	assert.Nil(t, meta.DurationMs)
	assert.Equal(t, DateSourceFileModTime, meta.DateSource)
}

func TestExtract_Unsupported(t *testing.T) {
	e := newTestExtractor(nil)
	_, err := e.Extract("/tmp/readme.txt")
	assert.Error(t, err)
	assert.False(t, e.SupportsFile("notes.txt"))
	assert.True(t, e.SupportsFile("IMG_0001.JPG"))
}

func TestParseEXIFDateTime(t *testing.T) {
	e := newTestExtractor(nil)
	tests := []struct {
		in   string
		want bool
	}{
		{"2023:12:25 15:30:45", true},
		{"2023-12-25", true},
		{"2023-12-25T15:30:45Z", true},
		{"0000:00:00 00:00:00", false},
		{"", false},
		{"yesterday", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, e.parseEXIFDateTime(tt.in) != nil)
		})
	}
}

func TestDateSourceString(t *testing.T) {
	assert.Equal(t, "EXIF DateTime", DateSourceEXIFDateTime.String())
	assert.Equal(t, "Unknown", DateSource(99).String())
}

package extractor

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/barasher/go-exiftool"
)

// ExiftoolProber reads video metadata through a long-running exiftool process.
type ExiftoolProber struct {
	mu sync.Mutex
	et *exiftool.Exiftool
}

// NewExiftoolProber starts exiftool in numeric output mode. It fails when the
// exiftool binary is not installed.
func NewExiftoolProber() (*ExiftoolProber, error) {
	et, err := exiftool.NewExiftool(exiftool.NoPrintConversion())
	if err != nil {
		return nil, fmt.Errorf("start exiftool: %w", err)
	}
	return &ExiftoolProber{et: et}, nil
}

// Probe returns duration, dimensions and creation date of a video.
func (p *ExiftoolProber) Probe(filePath string) (*VideoInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	files := p.et.ExtractMetadata(filePath)
	if len(files) == 0 {
		return nil, errors.New("exiftool returned no metadata")
	}
	if files[0].Err != nil {
		return nil, fmt.Errorf("exiftool: %w", files[0].Err)
	}
	fm := files[0]

	info := &VideoInfo{}
	if seconds, err := fm.GetFloat("Duration"); err == nil && seconds > 0 {
		ms := int64(math.Round(seconds * 1000))
		info.DurationMs = &ms
	}
	if w, err := fm.GetInt("ImageWidth"); err == nil {
		info.Width = int(w)
	}
	if h, err := fm.GetInt("ImageHeight"); err == nil {
		info.Height = int(h)
	}
	if created, err := fm.GetString("CreateDate"); err == nil {
		info.CreatedAt = created
	}
	return info, nil
}

// Close stops the exiftool process.
func (p *ExiftoolProber) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.et.Close()
}

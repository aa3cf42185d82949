package pipeline

import (
	"errors"
	"fmt"

	"media-compressor-go/internal/media"
)

// ErrSelectionEmpty reports that the source returned no item.
var ErrSelectionEmpty = errors.New("nothing selected")

// ErrSuperseded reports that a newer run replaced this one.
var ErrSuperseded = errors.New("run superseded by a newer selection")

// CompressionError wraps a compressor failure together with the media kind.
type CompressionError struct {
	Kind media.Kind
	Err  error
}

func (e *CompressionError) Error() string {
	return fmt.Sprintf("%s compression failed: %v", e.Kind, e.Err)
}

func (e *CompressionError) Unwrap() error { return e.Err }

// InspectionError wraps a file inspector failure.
type InspectionError struct {
	Path string
	Err  error
}

func (e *InspectionError) Error() string {
	return fmt.Sprintf("inspect %s: %v", e.Path, e.Err)
}

func (e *InspectionError) Unwrap() error { return e.Err }

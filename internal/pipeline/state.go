package pipeline

import (
	"media-compressor-go/internal/media"
)

// Phase is the state of the current run.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSelecting
	PhaseSelected
	PhaseCompressing
	PhaseCompressed
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSelecting:
		return "selecting"
	case PhaseSelected:
		return "selected"
	case PhaseCompressing:
		return "compressing"
	case PhaseCompressed:
		return "compressed"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText encodes the phase as its name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Terminal reports whether a run in this phase has finished.
func (p Phase) Terminal() bool {
	return p == PhaseIdle || p == PhaseCompressed || p == PhaseFailed
}

// CompressionResult is the outcome of a successful compression step.
type CompressionResult struct {
	OutputURI       string
	OutputSizeBytes *int64
}

// DisplayState is everything a renderer needs. Values handed out by the
// controller are copies; mutating them has no effect on the controller.
type DisplayState struct {
	Media               *media.SelectedMedia `json:"media,omitempty"`
	CompressedURI       *string              `json:"compressed_uri,omitempty"`
	CompressedSizeLabel *string              `json:"compressed_size_label,omitempty"`
	StatusLog           string               `json:"status_log"`
	IsBusy              bool                 `json:"is_busy"`
	Phase               Phase                `json:"phase"`
	RunID               string               `json:"run_id,omitempty"`
}

// ShowCompressedPreview reports whether the compressed output should be
// rendered as an image.
func (s DisplayState) ShowCompressedPreview() bool {
	return s.CompressedURI != nil && media.IsImageURI(*s.CompressedURI)
}

// clone deep-copies the pointer fields.
func (s DisplayState) clone() DisplayState {
	out := s
	if s.Media != nil {
		m := *s.Media
		if m.SizeBytes != nil {
			v := *m.SizeBytes
			m.SizeBytes = &v
		}
		if m.DurationMs != nil {
			v := *m.DurationMs
			m.DurationMs = &v
		}
		out.Media = &m
	}
	if s.CompressedURI != nil {
		v := *s.CompressedURI
		out.CompressedURI = &v
	}
	if s.CompressedSizeLabel != nil {
		v := *s.CompressedSizeLabel
		out.CompressedSizeLabel = &v
	}
	return out
}

func stringPtr(s string) *string { return &s }

package media

import (
	"fmt"
	"strings"
)

// Kind is the media category that decides which compression options apply.
type Kind int

const (
	KindImage Kind = iota
	KindVideo
)

// AllKinds lists every kind a source may return.
var AllKinds = []Kind{KindImage, KindVideo}

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindVideo:
		return "video"
	default:
		return "unknown"
	}
}

// Title returns the capitalized name used in status messages.
func (k Kind) Title() string {
	switch k {
	case KindImage:
		return "Image"
	case KindVideo:
		return "Video"
	default:
		return "Media"
	}
}

// MarshalText encodes the kind as its name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseKind converts "image" or "video" (any case) into a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "image":
		return KindImage, nil
	case "video":
		return KindVideo, nil
	default:
		return KindImage, fmt.Errorf("unknown media kind: %q", s)
	}
}

package stream

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownResolution is returned when a preset name is not recognised.
var ErrUnknownResolution = errors.New("stream: unknown resolution")

// Resolution is one of the fixed decode sizes offered to the viewer.
type Resolution int

// The zero Resolution is not a preset, so an unset value is detectable.
const (
	// Res240p is 426x240.
	Res240p Resolution = iota + 1
	// Res360p is 640x360.
	Res360p
	// Res480p is 640x480, the initial resolution.
	Res480p
	// Res720p is 1280x720.
	Res720p
)

// DefaultResolution is used until the viewer picks another preset.
const DefaultResolution = Res480p

// Resolutions lists the presets in the order they are offered.
func Resolutions() []Resolution {
	return []Resolution{Res240p, Res360p, Res480p, Res720p}
}

// Dimensions returns the width and height for the resolution.
func (r Resolution) Dimensions() (width, height int) {
	switch r {
	case Res240p:
		return 426, 240
	case Res360p:
		return 640, 360
	case Res480p:
		return 640, 480
	case Res720p:
		return 1280, 720
	default:
		return 0, 0
	}
}

// Valid reports whether r is one of the presets.
func (r Resolution) Valid() bool {
	return r >= Res240p && r <= Res720p
}

func (r Resolution) String() string {
	switch r {
	case Res240p:
		return "240p"
	case Res360p:
		return "360p"
	case Res480p:
		return "480p"
	case Res720p:
		return "720p"
	default:
		return fmt.Sprintf("Resolution(%d)", int(r))
	}
}

// ParseResolution accepts a preset name such as "720p" or its size as
// "1280x720".
func ParseResolution(s string) (Resolution, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, r := range Resolutions() {
		w, h := r.Dimensions()
		if s == r.String() || s == fmt.Sprintf("%dx%d", w, h) {
			return r, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownResolution, s)
}

// MarshalText implements encoding.TextMarshaler.
func (r Resolution) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownResolution, int(r))
	}
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Resolution) UnmarshalText(text []byte) error {
	v, err := ParseResolution(string(text))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

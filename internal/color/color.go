// Package color holds the color types shared by the bulb drivers and the
// bulb manager, along with the conversions between the encodings devices
// speak: #RRGGBB hex, the 12 digit HSV hex used by Tuya bulbs and the
// 16 bit HSB used by LIFX.
package color

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
)

// InvalidHexReason is reported to callers who pass a malformed hex color.
const InvalidHexReason = "color must be hex string like #C0C0C0"

var hexPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// RGB is a color with 0-255 channels. It marshals to JSON as [r,g,b].
type RGB struct {
	R uint8
	G uint8
	B uint8
}

var (
	Black = RGB{}
	White = RGB{R: 255, G: 255, B: 255}
)

// Hex renders the color as uppercase #RRGGBB.
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

func (c RGB) String() string {
	return c.Hex()
}

func (c RGB) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]uint8{c.R, c.G, c.B})
}

func (c *RGB) UnmarshalJSON(data []byte) error {
	var channels []int
	if err := json.Unmarshal(data, &channels); err != nil {
		return fmt.Errorf("rgb: %w", err)
	}
	if len(channels) != 3 {
		return fmt.Errorf("rgb: want 3 channels, got %d", len(channels))
	}
	for _, ch := range channels {
		if ch < 0 || ch > 255 {
			return fmt.Errorf("rgb: channel %d out of range", ch)
		}
	}
	*c = RGB{R: uint8(channels[0]), G: uint8(channels[1]), B: uint8(channels[2])}
	return nil
}

// IsHex reports whether s looks like #RRGGBB.
func IsHex(s string) bool {
	return hexPattern.MatchString(s)
}

// ParseHex converts #RRGGBB (either case) to RGB.
func ParseHex(s string) (RGB, error) {
	if !IsHex(s) {
		return RGB{}, fmt.Errorf("%q: %w", s, ErrInvalidHex)
	}
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return RGB{}, fmt.Errorf("%q: %w", s, ErrInvalidHex)
	}
	return RGB{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

// Lerp moves from a towards b by t. Each channel is truncated; t itself is
// not clamped, so values outside [0,1] extrapolate up to the byte range.
func Lerp(a, b RGB, t float64) RGB {
	return RGB{
		R: lerpChannel(a.R, b.R, t),
		G: lerpChannel(a.G, b.G, t),
		B: lerpChannel(a.B, b.B, t),
	}
}

func lerpChannel(a, b uint8, t float64) uint8 {
	return toByte(math.Trunc(float64(a) + t*(float64(b)-float64(a))))
}

func toByte(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return uint8(v)
}

package color

import (
	"fmt"
	"math"
	"strconv"
)

// DecodeHSVHex parses the hhhhssssvvvv form Tuya bulbs report: hue in
// degrees, saturation and value in thousandths, each as four hex digits.
func DecodeHSVHex(s string) (RGB, error) {
	if len(s) != 12 {
		return RGB{}, fmt.Errorf("%q: %w", s, ErrInvalidHSV)
	}
	var parts [3]float64
	for i := range parts {
		v, err := strconv.ParseUint(s[i*4:i*4+4], 16, 16)
		if err != nil {
			return RGB{}, fmt.Errorf("%q: %w", s, ErrInvalidHSV)
		}
		parts[i] = float64(v)
	}

	r, g, b := hsvToRGB(parts[0]/360.0, parts[1]/1000.0, parts[2]/1000.0)
	return RGB{
		R: toByte(math.Trunc(r * 255)),
		G: toByte(math.Trunc(g * 255)),
		B: toByte(math.Trunc(b * 255)),
	}, nil
}

// EncodeHSVHex is the inverse of DecodeHSVHex, used when writing a color to
// a Tuya bulb. Digits are lowercase.
func EncodeHSVHex(c RGB) string {
	h, s, v := rgbToHSV(c)
	return fmt.Sprintf("%04x%04x%04x",
		uint16(math.Round(h*360))%360,
		uint16(math.Round(s*1000)),
		uint16(math.Round(v*1000)))
}

// hsvToRGB takes h, s and v in [0,1]; hue wraps.
func hsvToRGB(h, s, v float64) (float64, float64, float64) {
	if s == 0 {
		return v, v, v
	}
	i := int(h * 6)
	f := h*6 - float64(i)
	p := v * (1 - s)
	q := v * (1 - s*f)
	t := v * (1 - s*(1-f))

	switch i % 6 {
	case 0:
		return v, t, p
	case 1:
		return q, v, p
	case 2:
		return p, v, t
	case 3:
		return p, q, v
	case 4:
		return t, p, v
	default:
		return v, p, q
	}
}

func rgbToHSV(c RGB) (float64, float64, float64) {
	r := float64(c.R) / 255
	g := float64(c.G) / 255
	b := float64(c.B) / 255

	max := math.Max(r, math.Max(g, b))
	min := math.Min(r, math.Min(g, b))
	delta := max - min
	if max == 0 {
		return 0, 0, 0
	}
	if delta == 0 {
		return 0, 0, max
	}

	var h float64
	switch max {
	case r:
		h = math.Mod((g-b)/delta, 6)
	case g:
		h = (b-r)/delta + 2
	default:
		h = (r-g)/delta + 4
	}
	h /= 6
	if h < 0 {
		h++
	}
	return h, delta / max, max
}

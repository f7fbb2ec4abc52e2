package color

import "math"

// ToHSB converts to the 16 bit hue, saturation and brightness LIFX bulbs use.
func ToHSB(c RGB) (uint16, uint16, uint16) {
	red := float64(c.R) / 255.0
	green := float64(c.G) / 255.0
	blue := float64(c.B) / 255.0

	max := math.Max(red, math.Max(green, blue))
	min := math.Min(red, math.Min(green, blue))
	delta := max - min

	var h, s float64
	v := max

	if delta != 0 {
		s = delta / max

		deltaR := (((max - red) / 6) + (delta / 2)) / delta
		deltaG := (((max - green) / 6) + (delta / 2)) / delta
		deltaB := (((max - blue) / 6) + (delta / 2)) / delta

		switch max {
		case red:
			h = deltaB - deltaG
		case green:
			h = (1.0 / 3.0) + deltaR - deltaB
		default:
			h = (2.0 / 3.0) + deltaG - deltaR
		}

		if h < 0 {
			h += 1
		}
		if h > 1 {
			h -= 1
		}
	}

	return uint16(math.Round(h * 0xFFFF)), uint16(math.Round(s * 0xFFFF)), uint16(math.Round(v * 0xFFFF))
}

// FromHSB reverses ToHSB, rounding to the nearest channel value.
func FromHSB(hue, saturation, brightness uint16) RGB {
	r, g, b := hsvToRGB(float64(hue)/0xFFFF, float64(saturation)/0xFFFF, float64(brightness)/0xFFFF)
	return RGB{
		R: toByte(math.Round(r * 255)),
		G: toByte(math.Round(g * 255)),
		B: toByte(math.Round(b * 255)),
	}
}

// IsGreyish reports whether a 16 bit saturation is low enough to read as grey.
func IsGreyish(saturation uint16) bool {
	return float64(saturation) <= float64(0xFFFF)*0.2
}

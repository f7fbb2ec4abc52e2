package screen

import (
	"fmt"
	"image"
	"math"
	"slices"

	"github.com/scheerer/homelights/internal/color"
)

// ColorFunc reduces a capture to one color, sampling every pixelGridSize
// pixels in each direction.
type ColorFunc func(img *image.RGBA, pixelGridSize int) color.RGB

var algorithms = map[string]ColorFunc{
	"AVERAGE":         AverageColor,
	"SQUARED_AVERAGE": SquaredAverageColor,
	"MEDIAN":          MedianColor,
	"MODE":            ModeColor,
}

// Algorithm looks up a ColorFunc by its config name.
func Algorithm(name string) (ColorFunc, error) {
	f, ok := algorithms[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownAlgorithm)
	}
	return f, nil
}

// sample calls fn with the 8 bit channels of every sampled pixel.
func sample(img *image.RGBA, pixelGridSize int, fn func(r, g, b uint8)) {
	if pixelGridSize < 1 {
		pixelGridSize = 1
	}
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y += pixelGridSize {
		for x := bounds.Min.X; x < bounds.Max.X; x += pixelGridSize {
			c := img.RGBAAt(x, y)
			fn(c.R, c.G, c.B)
		}
	}
}

func AverageColor(img *image.RGBA, pixelGridSize int) color.RGB {
	var sumR, sumG, sumB, samples uint64
	sample(img, pixelGridSize, func(r, g, b uint8) {
		sumR += uint64(r)
		sumG += uint64(g)
		sumB += uint64(b)
		samples++
	})
	if samples == 0 {
		return color.Black
	}

	return color.RGB{
		R: uint8(sumR / samples),
		G: uint8(sumG / samples),
		B: uint8(sumB / samples),
	}
}

// SquaredAverageColor averages squared channels, which favors bright pixels
func SquaredAverageColor(img *image.RGBA, pixelGridSize int) color.RGB {
	var sumR, sumG, sumB, samples uint64
	sample(img, pixelGridSize, func(r, g, b uint8) {
		sumR += uint64(r) * uint64(r)
		sumG += uint64(g) * uint64(g)
		sumB += uint64(b) * uint64(b)
		samples++
	})
	if samples == 0 {
		return color.Black
	}

	return color.RGB{
		R: uint8(math.Sqrt(float64(sumR / samples))),
		G: uint8(math.Sqrt(float64(sumG / samples))),
		B: uint8(math.Sqrt(float64(sumB / samples))),
	}
}

// MedianColor takes the median of each channel independently
func MedianColor(img *image.RGBA, pixelGridSize int) color.RGB {
	var reds, greens, blues []uint8
	sample(img, pixelGridSize, func(r, g, b uint8) {
		reds = append(reds, r)
		greens = append(greens, g)
		blues = append(blues, b)
	})
	if len(reds) == 0 {
		return color.Black
	}

	median := func(values []uint8) uint8 {
		slices.Sort(values)
		n := len(values)
		if n%2 == 0 {
			return uint8((int(values[n/2-1]) + int(values[n/2])) / 2)
		}
		return values[n/2]
	}

	return color.RGB{
		R: median(reds),
		G: median(greens),
		B: median(blues),
	}
}

// ModeColor picks the most common sampled color. Ties go to the color
// sampled first.
func ModeColor(img *image.RGBA, pixelGridSize int) color.RGB {
	counts := make(map[color.RGB]int)
	var order []color.RGB
	sample(img, pixelGridSize, func(r, g, b uint8) {
		c := color.RGB{R: r, G: g, B: b}
		if counts[c] == 0 {
			order = append(order, c)
		}
		counts[c]++
	})

	var mode color.RGB
	maxCount := 0
	for _, c := range order {
		if counts[c] > maxCount {
			maxCount = counts[c]
			mode = c
		}
	}
	return mode
}

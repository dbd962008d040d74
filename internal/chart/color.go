package chart

import (
	"fmt"
	"image"
	"image/color"
)

const (
	ModeLight     ColorMode = "light"
	ModeDark      ColorMode = "dark"
	ModeGreyscale ColorMode = "greyscale"
)

// ColorMode selects the chart color scheme.
type ColorMode string

// ValidColorMode reports whether the mode is one of the supported schemes.
func ValidColorMode(mode ColorMode) bool {
	switch mode {
	case ModeLight, ModeDark, ModeGreyscale:
		return true
	}
	return false
}

// Band is an EPA AQI band with its fill color per mode.
type Band struct {
	From, To float64
	Light    color.RGBA
	Dark     color.RGBA
}

// aqiBands are the EPA AQI category bands with the fill colors the
// chart uses behind the series.
var aqiBands = []Band{
	{0, 50, rgb(0x98, 0xfb, 0x98), rgb(0x2e, 0x8b, 0x57)},   // Good: pale green / sea green
	{50, 100, rgb(0xff, 0xff, 0x00), rgb(0xb8, 0x86, 0x0b)}, // Moderate: yellow / dark goldenrod
	{100, 150, rgb(0xff, 0xa5, 0x00), rgb(0xd2, 0x69, 0x1e)},
	{150, 200, rgb(0xff, 0x00, 0x00), rgb(0x8b, 0x00, 0x00)},
	{200, 300, rgb(0x80, 0x00, 0x80), rgb(0x4b, 0x00, 0x82)},
	{300, 500, rgb(0x80, 0x00, 0x00), rgb(0x5c, 0x1a, 0x1a)},
}

// bandAlphas are the per-band fill opacities, indexed like aqiBands.
var (
	lightBandAlphas = []float64{0.30, 0.25, 0.25, 0.30, 0.30, 0.30}
	darkBandAlphas  = []float64{0.40, 0.40, 0.40, 0.40, 0.50, 0.40}
	greyBandAlphas  = []float64{0.10, 0.20, 0.30, 0.40, 0.55, 0.70}
)

type bandFill struct {
	color color.RGBA
	alpha float64
}

// palette holds the resolved colors for one color mode.
type palette struct {
	mode       ColorMode
	background color.RGBA
	text       *image.Uniform
	line       color.RGBA
	average    color.RGBA
	grid       color.RGBA
	frame      color.RGBA
}

func newPalette(mode ColorMode) (palette, error) {
	switch mode {
	case ModeLight:
		return palette{
			mode:       mode,
			background: rgb(0xff, 0xff, 0xff),
			text:       image.Black,
			line:       rgb(0x1f, 0x77, 0xb4), // matplotlib default blue
			average:    rgb(0x40, 0x40, 0x40),
			grid:       rgb(0xc0, 0xc0, 0xc0),
			frame:      rgb(0x60, 0x60, 0x60),
		}, nil

	case ModeDark:
		return palette{
			mode:       mode,
			background: rgb(0x1e, 0x1e, 0x1e),
			text:       image.White,
			line:       rgb(0x5d, 0xad, 0xe2),
			average:    rgb(0xd0, 0xd0, 0xd0),
			grid:       rgb(0x50, 0x50, 0x50),
			frame:      rgb(0xa0, 0xa0, 0xa0),
		}, nil

	case ModeGreyscale:
		return palette{
			mode:       mode,
			background: rgb(0x30, 0x30, 0x30),
			text:       image.White,
			line:       rgb(0xff, 0xff, 0xff),
			average:    rgb(0xe0, 0xe0, 0xe0),
			grid:       rgb(0x58, 0x58, 0x58),
			frame:      rgb(0xa8, 0xa8, 0xa8),
		}, nil
	}

	return palette{}, fmt.Errorf("unknown color mode: %s", mode)
}

// band returns the fill for an AQI band in this palette.
func (p palette) band(b Band) bandFill {
	idx := 0
	for i, known := range aqiBands {
		if known.From == b.From {
			idx = i
			break
		}
	}

	switch p.mode {
	case ModeDark:
		return bandFill{b.Dark, darkBandAlphas[idx]}
	case ModeGreyscale:
		// Greyscale encodes severity as increasing lightness.
		return bandFill{rgb(0xff, 0xff, 0xff), greyBandAlphas[idx]}
	default:
		return bandFill{b.Light, lightBandAlphas[idx]}
	}
}

func rgb(r, g, b uint8) color.RGBA {
	return color.RGBA{R: r, G: g, B: b, A: 0xff}
}

// blend composites src over dst with the given opacity.
func blend(dst, src color.RGBA, alpha float64) color.RGBA {
	mix := func(d, s uint8) uint8 {
		return uint8(float64(d)*(1-alpha) + float64(s)*alpha)
	}
	return color.RGBA{
		R: mix(dst.R, src.R),
		G: mix(dst.G, src.G),
		B: mix(dst.B, src.B),
		A: 0xff,
	}
}

// drawLine draws a 1px line between two points using integer DDA.
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, c color.Color) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx := 1
	if x0 > x1 {
		sx = -1
	}
	sy := 1
	if y0 > y1 {
		sy = -1
	}

	err := dx + dy
	for {
		img.Set(x0, y0, c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

// drawDot marks a single point with a 3x3 square.
func drawDot(img *image.RGBA, x, y int, c color.Color) {
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			img.Set(x+dx, y+dy, c)
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

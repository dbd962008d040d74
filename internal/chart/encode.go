package chart

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
)

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
)

// Format is the output image encoding.
type Format string

// ValidFormat reports whether the format is supported.
func ValidFormat(f Format) bool {
	switch f {
	case FormatPNG, FormatJPEG:
		return true
	}
	return false
}

// Encode writes the image in the given format. quality only applies to
// JPEG; values outside 1..100 fall back to the encoder default.
func Encode(w io.Writer, img image.Image, format Format, quality int) error {
	switch format {
	case FormatPNG:
		return png.Encode(w, img)

	case FormatJPEG:
		var opts *jpeg.Options
		if quality >= 1 && quality <= 100 {
			opts = &jpeg.Options{Quality: quality}
		}
		return jpeg.Encode(w, img, opts)
	}
	return fmt.Errorf("unknown image format: %s", format)
}

package chart

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strconv"
	"time"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	dpi            = 96.0
	tickMarkLength = 5
)

// annotator draws the text and tick marks around the plot area.
type annotator struct {
	context  *freetype.Context
	fontFace font.Face
}

func newAnnotator(fontSize float64, textColor *image.Uniform) (*annotator, error) {
	parsedFont, err := freetype.ParseFont(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	ctx := freetype.NewContext()
	ctx.SetDPI(dpi)
	ctx.SetFont(parsedFont)
	ctx.SetFontSize(fontSize)
	ctx.SetHinting(font.HintingNone)
	ctx.SetSrc(textColor)

	return &annotator{
		context: ctx,
		fontFace: truetype.NewFace(parsedFont, &truetype.Options{
			Size:    fontSize,
			DPI:     dpi,
			Hinting: font.HintingNone,
		}),
	}, nil
}

func (a *annotator) Close() error {
	if a.fontFace != nil {
		return a.fontFace.Close()
	}
	return nil
}

func (a *annotator) setTarget(img *image.RGBA) {
	a.context.SetClip(img.Bounds())
	a.context.SetDst(img)
}

// fontHeight returns the rendered line height in pixels.
func (a *annotator) fontHeight() int {
	metrics := a.fontFace.Metrics()
	return (metrics.Ascent + metrics.Descent).Round()
}

func (a *annotator) drawTitle(img *image.RGBA, title string) error {
	width := font.MeasureString(a.fontFace, title)
	x := (img.Bounds().Dx() - width.Round()) / 2
	y := defaultTopBorder/2 + a.fontHeight()/2 - a.fontFace.Metrics().Descent.Round()

	if _, err := a.context.DrawString(title, freetype.Pt(x, y)); err != nil {
		return fmt.Errorf("drawing title: %w", err)
	}
	return nil
}

// drawYAxisLabel draws the axis label rotated 90° counter-clockwise
// along the left border, reading bottom to top. freetype only renders
// horizontal text, so the label goes onto a scratch image first and is
// copied over transposed.
func (a *annotator) drawYAxisLabel(img *image.RGBA, area image.Rectangle, label string) error {
	textWidth := font.MeasureString(a.fontFace, label).Round()
	textHeight := a.fontHeight()
	ascent := a.fontFace.Metrics().Ascent.Round()

	scratch := image.NewRGBA(image.Rect(0, 0, textWidth, textHeight))
	a.context.SetClip(scratch.Bounds())
	a.context.SetDst(scratch)

	_, err := a.context.DrawString(label, freetype.Pt(0, ascent))

	// Point the context back at the chart before anything else draws.
	a.setTarget(img)

	if err != nil {
		return fmt.Errorf("drawing axis label: %w", err)
	}

	rotated := image.NewRGBA(image.Rect(0, 0, textHeight, textWidth))
	for y := 0; y < textHeight; y++ {
		for x := 0; x < textWidth; x++ {
			rotated.SetRGBA(y, textWidth-1-x, scratch.RGBAAt(x, y))
		}
	}

	// Centered vertically over the plot area, flush with the image edge.
	offset := image.Pt(4, area.Min.Y+(area.Dy()-textWidth)/2)
	draw.Draw(img, rotated.Bounds().Add(offset), rotated, image.Point{}, draw.Over)
	return nil
}

func (a *annotator) drawYScale(img *image.RGBA, area image.Rectangle, sc scale, tick color.Color) error {
	step := niceValueStep(sc.vMax, area.Dy())
	metrics := a.fontFace.Metrics()

	for v := 0.0; v <= sc.vMax; v += step {
		y := sc.y(v)

		for x := area.Min.X - tickMarkLength; x < area.Min.X; x++ {
			img.Set(x, y, tick)
		}

		label := strconv.Itoa(int(math.Round(v)))
		width := font.MeasureString(a.fontFace, label)

		textX := area.Min.X - tickMarkLength - 4 - width.Round()
		textY := y + a.fontHeight()/2 - metrics.Descent.Round()

		if _, err := a.context.DrawString(label, freetype.Pt(textX, textY)); err != nil {
			return fmt.Errorf("drawing value label: %w", err)
		}
	}
	return nil
}

func (a *annotator) drawTimeScale(img *image.RGBA, area image.Rectangle, sc scale, tick color.Color, format string, loc *time.Location) error {
	span := sc.tMax.Sub(sc.tMin)
	if span <= 0 {
		return nil
	}

	step := niceTimeStep(span)
	start := sc.tMin.Truncate(step)
	if start.Before(sc.tMin) {
		start = start.Add(step)
	}

	for t := start; !t.After(sc.tMax); t = t.Add(step) {
		x := sc.x(t)

		for y := area.Max.Y; y < area.Max.Y+tickMarkLength; y++ {
			img.Set(x, y, tick)
		}

		label := t.In(loc).Format(format)
		width := font.MeasureString(a.fontFace, label)

		textX := x - width.Round()/2
		textY := area.Max.Y + tickMarkLength + a.fontHeight()

		if _, err := a.context.DrawString(label, freetype.Pt(textX, textY)); err != nil {
			return fmt.Errorf("drawing time label: %w", err)
		}
	}
	return nil
}

func (a *annotator) drawInfoBar(img *image.RGBA, info string) error {
	metrics := a.fontFace.Metrics()
	textY := img.Bounds().Max.Y - 6 - metrics.Descent.Round()

	if _, err := a.context.DrawString(info, freetype.Pt(defaultLeftBorder, textY)); err != nil {
		return fmt.Errorf("drawing info bar: %w", err)
	}
	return nil
}

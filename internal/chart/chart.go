// Package chart renders a time series of AQI values to a bitmap image
// with EPA AQI band fills, axis scales and an information bar.
package chart

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"math"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/openaer/pachart/internal/aqi"
)

const (
	// Default border sizes in pixels around the plot area. The left
	// border holds the rotated axis label and the tick value labels.
	defaultTopBorder    = 40
	defaultLeftBorder   = 72
	defaultBottomBorder = 52
	defaultRightBorder  = 20

	defaultWidth  = 800
	defaultHeight = 600

	defaultFontSize = 12.0

	defaultTimeFormat     = "Jan 2 15:04"
	defaultDatetimeFormat = time.DateTime

	// Aim for one Y-axis label per this many pixels.
	pixelsPerYLabel = 60
)

// ErrNoData is returned when there is nothing to plot.
var ErrNoData = errors.New("no data points to plot")

// Point is one value on the plotted series.
type Point struct {
	Time  time.Time
	Value float64
}

// Config holds the renderer options.
type Config struct {
	Width  int // Full image width in pixels
	Height int // Full image height in pixels

	Mode       ColorMode // Color scheme: light, dark or greyscale
	Title      string    // Chart title drawn in the top border
	YAxisLabel string    // Label drawn rotated along the left border
	YLimit     float64   // Fixed Y-axis upper bound; 0 means auto

	ShowBands   bool // Fill the AQI bands behind the series
	ShowAverage bool // Draw a dashed line at the series average
	ShowAQIText bool // Include the latest AQI and category in the info bar

	TimeFormat     string         // Format for axis time labels
	DatetimeFormat string         // Format for the info bar time range
	Location       *time.Location // Timezone for time display
	FontSize       float64        // Font size in points
}

// Renderer draws AQI series charts. Create one with New and reuse it
// across render cycles; the parsed font is shared.
type Renderer struct {
	config  Config
	palette palette
	ann     *annotator
}

// New creates a renderer, applying defaults for zero config values.
func New(config Config) (*Renderer, error) {
	if config.Width <= 0 {
		config.Width = defaultWidth
	}
	if config.Height <= 0 {
		config.Height = defaultHeight
	}
	if config.Mode == "" {
		config.Mode = ModeLight
	}
	if config.TimeFormat == "" {
		config.TimeFormat = defaultTimeFormat
	}
	if config.DatetimeFormat == "" {
		config.DatetimeFormat = defaultDatetimeFormat
	}
	if config.Location == nil {
		config.Location = time.Local
	}
	if config.FontSize == 0 {
		config.FontSize = defaultFontSize
	}

	p, err := newPalette(config.Mode)
	if err != nil {
		return nil, err
	}

	ann, err := newAnnotator(config.FontSize, p.text)
	if err != nil {
		return nil, fmt.Errorf("creating annotator: %w", err)
	}

	return &Renderer{config: config, palette: p, ann: ann}, nil
}

// Render draws the series and returns the image. The input slice is
// read only; points must be in ascending time order.
func (r *Renderer) Render(points []Point) (*image.RGBA, error) {
	if len(points) == 0 {
		return nil, ErrNoData
	}

	img := image.NewRGBA(image.Rect(0, 0, r.config.Width, r.config.Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(r.palette.background), image.Point{}, draw.Src)

	area := image.Rect(
		defaultLeftBorder,
		defaultTopBorder,
		r.config.Width-defaultRightBorder,
		r.config.Height-defaultBottomBorder,
	)

	sc := newScale(points, r.config.YLimit, area)

	if r.config.ShowBands {
		r.drawBands(img, area, sc)
	}

	r.drawGrid(img, area, sc)
	r.drawSeries(img, sc, points)

	if r.config.ShowAverage && len(points) > 1 {
		r.drawAverage(img, area, sc, points)
	}

	if err := r.annotate(img, area, sc, points); err != nil {
		return nil, fmt.Errorf("annotating chart: %w", err)
	}

	return img, nil
}

// Close releases the font face held by the annotator.
func (r *Renderer) Close() error {
	return r.ann.Close()
}

// scale maps time/value coordinates onto the plot area.
type scale struct {
	tMin, tMax time.Time
	vMax       float64
	area       image.Rectangle
}

func newScale(points []Point, yLimit float64, area image.Rectangle) scale {
	sc := scale{
		tMin: points[0].Time,
		tMax: points[len(points)-1].Time,
		area: area,
	}

	if yLimit > 0 {
		sc.vMax = yLimit
		return sc
	}

	var max float64
	for _, p := range points {
		max = math.Max(max, p.Value)
	}

	// Round up to the next AQI band edge so the series never touches
	// the top border.
	sc.vMax = math.Max(50, math.Ceil(max/50)*50)
	return sc
}

// x maps a timestamp to an image column. A single-point series maps to
// the left edge.
func (s scale) x(t time.Time) int {
	span := s.tMax.Sub(s.tMin)
	if span <= 0 {
		return s.area.Min.X
	}
	ratio := float64(t.Sub(s.tMin)) / float64(span)
	return s.area.Min.X + int(ratio*float64(s.area.Dx()-1))
}

// y maps a value to an image row; values above vMax clamp to the top.
func (s scale) y(v float64) int {
	ratio := v / s.vMax
	if ratio > 1 {
		ratio = 1
	}
	if ratio < 0 {
		ratio = 0
	}
	return s.area.Max.Y - 1 - int(ratio*float64(s.area.Dy()-1))
}

func (r *Renderer) drawBands(img *image.RGBA, area image.Rectangle, sc scale) {
	for _, b := range aqiBands {
		low := math.Min(b.From, sc.vMax)
		high := math.Min(b.To, sc.vMax)
		if low >= high {
			continue
		}

		col := r.palette.band(b)
		for y := sc.y(high); y <= sc.y(low); y++ {
			for x := area.Min.X; x < area.Max.X; x++ {
				img.SetRGBA(x, y, blend(img.RGBAAt(x, y), col.color, col.alpha))
			}
		}
	}
}

func (r *Renderer) drawGrid(img *image.RGBA, area image.Rectangle, sc scale) {
	// Horizontal grid lines at Y tick values.
	step := niceValueStep(sc.vMax, area.Dy())
	for v := step; v <= sc.vMax; v += step {
		y := sc.y(v)
		for x := area.Min.X; x < area.Max.X; x++ {
			img.SetRGBA(x, y, blend(img.RGBAAt(x, y), r.palette.grid, 0.5))
		}
	}

	// Plot area frame.
	for x := area.Min.X; x < area.Max.X; x++ {
		img.Set(x, area.Min.Y, r.palette.frame)
		img.Set(x, area.Max.Y-1, r.palette.frame)
	}
	for y := area.Min.Y; y < area.Max.Y; y++ {
		img.Set(area.Min.X, y, r.palette.frame)
		img.Set(area.Max.X-1, y, r.palette.frame)
	}
}

func (r *Renderer) drawSeries(img *image.RGBA, sc scale, points []Point) {
	if len(points) == 1 {
		drawDot(img, sc.x(points[0].Time), sc.y(points[0].Value), r.palette.line)
		return
	}

	for i := 1; i < len(points); i++ {
		x0, y0 := sc.x(points[i-1].Time), sc.y(points[i-1].Value)
		x1, y1 := sc.x(points[i].Time), sc.y(points[i].Value)
		drawLine(img, x0, y0, x1, y1, r.palette.line)
	}
}

func (r *Renderer) drawAverage(img *image.RGBA, area image.Rectangle, sc scale, points []Point) {
	var sum float64
	for _, p := range points {
		sum += p.Value
	}
	y := sc.y(sum / float64(len(points)))

	// Dashed: 6 px on, 4 px off.
	for x := area.Min.X; x < area.Max.X; x++ {
		if (x-area.Min.X)%10 < 6 {
			img.Set(x, y, r.palette.average)
		}
	}
}

func (r *Renderer) annotate(img *image.RGBA, area image.Rectangle, sc scale, points []Point) error {
	r.ann.setTarget(img)

	if r.config.Title != "" {
		if err := r.ann.drawTitle(img, r.config.Title); err != nil {
			return err
		}
	}
	if r.config.YAxisLabel != "" {
		if err := r.ann.drawYAxisLabel(img, area, r.config.YAxisLabel); err != nil {
			return err
		}
	}
	if err := r.ann.drawYScale(img, area, sc, r.palette.frame); err != nil {
		return err
	}
	if err := r.ann.drawTimeScale(img, area, sc, r.palette.frame, r.config.TimeFormat, r.config.Location); err != nil {
		return err
	}
	return r.ann.drawInfoBar(img, r.infoBar(points))
}

// infoBar builds the status line under the plot: time range, point
// count and optionally the latest AQI with its category.
func (r *Renderer) infoBar(points []Point) string {
	first := points[0].Time.In(r.config.Location).Format(r.config.DatetimeFormat)
	last := points[len(points)-1].Time.In(r.config.Location).Format(r.config.DatetimeFormat)

	s := fmt.Sprintf("%s - %s; %s readings", first, last, humanize.Comma(int64(len(points))))
	if r.config.ShowAQIText {
		latest := int(math.Round(points[len(points)-1].Value))
		s += fmt.Sprintf("; AQI %d (%s)", latest, aqi.Category(latest))
	}
	return s
}

// niceValueStep picks a Y tick step that yields readable label spacing.
func niceValueStep(vMax float64, height int) float64 {
	steps := []float64{5, 10, 25, 50, 100}

	desired := float64(height) / pixelsPerYLabel
	target := vMax / desired

	for _, step := range steps {
		if step >= target {
			return step
		}
	}
	return vMax / 2
}

// niceTimeStep picks a time-axis label interval for the span.
func niceTimeStep(duration time.Duration) time.Duration {
	rough := duration.Seconds() / 6 // aim for about 6 time labels

	intervals := []time.Duration{
		time.Minute,
		5 * time.Minute,
		10 * time.Minute,
		30 * time.Minute,
		time.Hour,
		2 * time.Hour,
		6 * time.Hour,
		12 * time.Hour,
		24 * time.Hour,
		48 * time.Hour,
	}

	for _, interval := range intervals {
		if rough <= interval.Seconds() {
			return interval
		}
	}
	return 96 * time.Hour
}

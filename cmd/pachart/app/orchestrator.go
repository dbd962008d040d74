package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/openaer/pachart/internal/archive"
	"github.com/openaer/pachart/internal/chart"
	"github.com/openaer/pachart/internal/csvlog"
	"github.com/openaer/pachart/internal/sensor"
)

// WithArchive sets the optional SQLite archive; a nil store disables
// archiving.
func WithArchive(store *archive.Store) func(*Orchestrator) {
	return func(o *Orchestrator) {
		o.archive = store
	}
}

// WithClock overrides the time source, used by tests to control the
// polling-hours window.
func WithClock(now func() time.Time) func(*Orchestrator) {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// Orchestrator drives the poll / render / truncate cycle. Everything
// runs on a single goroutine: a tick that blocks simply delays the
// next one, which is fine at minute-scale intervals.
type Orchestrator struct {
	config   *Config
	client   *sensor.Client
	log      *csvlog.Log
	archive  *archive.Store
	renderer *chart.Renderer

	logger *slog.Logger
	now    func() time.Time
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(config *Config, client *sensor.Client, log *csvlog.Log, renderer *chart.Renderer, logger *slog.Logger, options ...func(*Orchestrator)) *Orchestrator {
	o := Orchestrator{
		config:   config,
		client:   client,
		log:      log,
		renderer: renderer,
		logger:   logger,
		now:      time.Now,
	}

	for _, option := range options {
		option(&o)
	}

	return &o
}

// Run loops until the context is cancelled. Sensor failures are logged
// and skipped; file I/O failures are fatal and returned.
func (o *Orchestrator) Run(ctx context.Context) error {
	pollTicker := time.NewTicker(o.config.Logging.Interval.Std())
	defer pollTicker.Stop()

	renderTicker := time.NewTicker(o.config.Chart.Interval.Std())
	defer renderTicker.Stop()

	truncateTicker := time.NewTicker(o.config.Logging.TruncateInterval.Std())
	defer truncateTicker.Stop()

	o.logger.Info("starting",
		slog.String("sensor", o.config.Sensor.URL),
		slog.String("csv", o.log.Path()),
		slog.String("image", o.config.Chart.ImagePath),
		slog.Duration("pollInterval", o.config.Logging.Interval.Std()),
		slog.Duration("renderInterval", o.config.Chart.Interval.Std()),
		slog.Bool("archive", o.archive != nil))

	for {
		select {
		case <-ctx.Done():
			o.logger.Info("stopping")
			return nil

		case <-pollTicker.C:
			if err := o.PollOnce(ctx); err != nil {
				return err
			}

		case <-renderTicker.C:
			if err := o.RenderOnce(ctx); err != nil {
				return err
			}

		case <-truncateTicker.C:
			if err := o.TruncateOnce(); err != nil {
				return err
			}
		}
	}
}

// PollOnce performs one poll tick: fetch a reading and record it. A
// sensor failure skips the tick and returns nil; a recording failure
// is returned and terminates the process, there is no fallback target.
func (o *Orchestrator) PollOnce(ctx context.Context) error {
	if !o.config.Logging.InWindow(o.now()) {
		o.logger.Debug("outside polling hours, skipping tick")
		return nil
	}

	reading, err := o.client.Fetch(ctx)
	if err != nil {
		o.logger.Warn("sensor read failed, skipping tick", slog.String("error", err.Error()))
		return nil
	}

	if err = o.log.Append(*reading); err != nil {
		return fmt.Errorf("appending reading: %w", err)
	}

	if o.archive != nil {
		if err = o.archive.Insert(ctx, *reading); err != nil {
			return fmt.Errorf("archiving reading: %w", err)
		}
	}

	o.logger.Info("reading recorded",
		slog.Int("aqi", reading.AQI),
		slog.Float64("pm25", reading.PM25))
	return nil
}

// RenderOnce performs one render tick: read the full log and rewrite
// the chart image. An empty log skips the tick; an I/O failure is
// returned and terminates the process.
func (o *Orchestrator) RenderOnce(ctx context.Context) error {
	points, skipped, err := o.log.ReadAll()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			o.logger.Debug("no log file yet, skipping render")
			return nil
		}
		return fmt.Errorf("reading log: %w", err)
	}
	if skipped > 0 {
		o.logger.Warn("skipped unparsable log rows", slog.Int("count", skipped))
	}
	if len(points) == 0 {
		o.logger.Debug("no data points yet, skipping render")
		return nil
	}

	img, err := o.renderer.Render(points)
	if err != nil {
		return fmt.Errorf("rendering chart: %w", err)
	}

	if err = o.writeImage(img); err != nil {
		return err
	}

	o.logger.Info("chart rendered",
		slog.String("image", o.config.Chart.ImagePath),
		slog.Int("points", len(points)))
	return nil
}

// writeImage encodes into a temp file and renames it over the image
// path, so readers of the image never observe a partial file.
func (o *Orchestrator) writeImage(img image.Image) error {
	dir := filepath.Dir(o.config.Chart.ImagePath)
	tmp, err := os.CreateTemp(dir, ".pachart-*")
	if err != nil {
		return fmt.Errorf("creating temp image: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err = chart.Encode(tmp, img, o.config.Chart.Format, o.config.Chart.JPEGQuality); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("encoding chart: %w", err)
	}

	// CreateTemp makes the file 0600; the published image should be
	// world-readable like any other artifact of the process.
	if err = tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("setting image permissions: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("closing temp image: %w", err)
	}

	if err = os.Rename(tmp.Name(), o.config.Chart.ImagePath); err != nil {
		return fmt.Errorf("replacing chart image: %w", err)
	}
	return nil
}

// TruncateOnce trims the CSV log to the retention window.
func (o *Orchestrator) TruncateOnce() error {
	if err := o.log.Truncate(o.config.Logging.Retention()); err != nil {
		return fmt.Errorf("truncating log: %w", err)
	}
	return nil
}

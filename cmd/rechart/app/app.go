package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/openaer/pachart/internal/archive"
	"github.com/openaer/pachart/internal/chart"
	"github.com/openaer/pachart/internal/csvlog"
)

// Run renders one chart from an existing CSV log or SQLite archive.
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	points, err := loadPoints(ctx, config, logger)
	if err != nil {
		return err
	}

	logger.Info("loaded data points", slog.Int("count", len(points)))

	renderer, err := chart.New(chart.Config{
		Width:       config.Width,
		Height:      config.Height,
		Mode:        config.Theme,
		Title:       config.Title,
		YAxisLabel:  config.YAxisLabel,
		YLimit:      config.YLimit,
		ShowBands:   true,
		ShowAverage: true,
		ShowAQIText: true,
	})
	if err != nil {
		return fmt.Errorf("creating chart renderer: %w", err)
	}
	defer renderer.Close()

	img, err := renderer.Render(points)
	if err != nil {
		return fmt.Errorf("rendering chart: %w", err)
	}

	out, err := os.Create(config.OutputFile)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}

	if err = chart.Encode(out, img, config.Format, 0); err != nil {
		_ = out.Close()
		return fmt.Errorf("encoding chart: %w", err)
	}
	if err = out.Close(); err != nil {
		return fmt.Errorf("closing output file: %w", err)
	}

	logger.Info("chart rendered",
		slog.String("destination", config.OutputFile),
		slog.String("format", string(config.Format)),
		slog.String("theme", string(config.Theme)))
	return nil
}

func loadPoints(ctx context.Context, config *Config, logger *slog.Logger) ([]chart.Point, error) {
	var since time.Time
	if config.Since > 0 {
		since = time.Now().Add(-config.Since)
	}

	if config.DBPath != "" {
		if _, err := os.Stat(config.DBPath); err != nil {
			return nil, fmt.Errorf("archive file '%s': %w", config.DBPath, err)
		}

		store := archive.New(config.DBPath)
		defer store.Close()

		points, err := store.Points(ctx, since)
		if err != nil {
			return nil, fmt.Errorf("reading archive: %w", err)
		}
		return points, nil
	}

	points, skipped, err := csvlog.New(config.LogPath).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading log: %w", err)
	}
	if skipped > 0 {
		logger.Warn("skipped unparsable log rows", slog.Int("count", skipped))
	}

	if !since.IsZero() {
		kept := points[:0]
		for _, p := range points {
			if !p.Time.Before(since) {
				kept = append(kept, p)
			}
		}
		points = kept
	}
	return points, nil
}

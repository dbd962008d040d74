package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openaer/pachart/internal/archive"
	"github.com/openaer/pachart/internal/chart"
	"github.com/openaer/pachart/internal/csvlog"
	"github.com/openaer/pachart/internal/sensor"
)

// Run wires the sensor client, the CSV log, the optional archive and
// the chart renderer together and drives them until the context is
// cancelled.
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	clientOpts := []func(*sensor.Client){
		sensor.WithLogger(logger),
		sensor.WithTimeout(config.Sensor.Timeout.Std()),
	}
	if config.Conversion.EPACorrection {
		clientOpts = append(clientOpts, sensor.WithEPACorrection())
	}
	client := sensor.New(config.Sensor.URL, clientOpts...)

	renderer, err := chart.New(chart.Config{
		Width:       config.Chart.Width,
		Height:      config.Chart.Height,
		Mode:        config.Chart.ColorMode,
		Title:       config.Chart.Title,
		YAxisLabel:  config.Chart.YAxisLabel,
		YLimit:      config.Chart.YLimit,
		ShowBands:   *config.Chart.ShowBands,
		ShowAverage: *config.Chart.ShowAverage,
		ShowAQIText: *config.Chart.ShowAQIText,
	})
	if err != nil {
		return fmt.Errorf("creating chart renderer: %w", err)
	}
	defer renderer.Close()

	var store *archive.Store
	if config.Archive.Enabled {
		store = archive.New(config.Archive.Path)
		defer store.Close()
	}

	o := NewOrchestrator(config, client, csvlog.New(config.Logging.CSVPath), renderer, logger,
		WithArchive(store))

	return o.Run(ctx)
}

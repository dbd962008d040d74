package app

import (
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/openaer/pachart/internal/chart"
)

// Config holds the one-shot render options.
type Config struct {
	LogPath    string
	DBPath     string
	OutputFile string
	Format     chart.Format
	Since      time.Duration
	Theme      chart.ColorMode
	Width      int
	Height     int
	Title      string
	YAxisLabel string
	YLimit     float64
}

// NewConfigFromCLI builds the config from command line flags.
func NewConfigFromCLI() (*Config, error) {
	c := Config{}

	var imageFormat, theme string
	flag.StringVar(&c.LogPath, "log", "", "Path to the CSV log file")
	flag.StringVar(&c.DBPath, "db", "", "Path to the SQLite archive file")
	flag.StringVar(&c.OutputFile, "o", "", "Path to the output file, without extension")
	flag.StringVar(&imageFormat, "f", string(chart.FormatPNG), "Output image format. [png, jpeg]")
	flag.DurationVar(&c.Since, "since", 0, "Only plot readings newer than this, e.g. 72h (0 = all)")
	flag.StringVar(&theme, "theme", string(chart.ModeLight), "Chart color mode. [light, dark, greyscale]")
	flag.IntVar(&c.Width, "w", 0, "Image width in pixels (0 = default)")
	flag.IntVar(&c.Height, "h", 0, "Image height in pixels (0 = default)")
	flag.StringVar(&c.Title, "title", "Particulate Sensor Data", "Chart title")
	flag.StringVar(&c.YAxisLabel, "y-label", "EPA PM 2.5 AQI", "Y-axis label")
	flag.Float64Var(&c.YLimit, "y-limit", 0, "Fixed Y-axis upper bound (0 = auto)")
	flag.Parse()

	c.Format = chart.Format(strings.ToLower(imageFormat))
	c.Theme = chart.ColorMode(strings.ToLower(theme))

	var err error
	switch {
	case c.LogPath == "" && c.DBPath == "":
		err = errors.New("one of -log or -db is required")
	case c.LogPath != "" && c.DBPath != "":
		err = errors.New("-log and -db are mutually exclusive")
	case c.OutputFile == "":
		err = errors.New("output file is required")
	case !chart.ValidFormat(c.Format):
		err = fmt.Errorf("invalid image format: %s", c.Format)
	case !chart.ValidColorMode(c.Theme):
		err = fmt.Errorf("invalid color mode: %s", c.Theme)
	case c.Since < 0:
		err = errors.New("since must not be negative")
	}

	if err != nil {
		flag.Usage()
		return nil, err
	}

	c.OutputFile = fmt.Sprintf("%s.%s", c.OutputFile, c.Format)
	return &c, nil
}

package app

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/openaer/pachart/internal/chart"
	"github.com/openaer/pachart/internal/sensor"
)

const (
	defaultPollInterval     = 120 * time.Second
	defaultRenderInterval   = 240 * time.Second
	defaultTruncateInterval = 24 * time.Hour
	defaultRetentionDays    = 14
	defaultEndHour          = 24
	defaultCSVPath          = "sensor_data.csv"
	defaultImagePath        = "sensor_data.jpg"
	defaultJPEGQuality      = 95
	defaultChartTitle       = "Particulate Sensor Data"

	defaultYAxisLabel    = "EPA PM 2.5 AQI"
	defaultYAxisLabelEPA = "EPA PM 2.5 AQI w/ EPA Conversion"
)

// Duration wraps time.Duration for YAML values like "120s" or "24h".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config represents the main application configuration.
type Config struct {
	Settings   Settings         `yaml:"settings"`
	Sensor     SensorConfig     `yaml:"sensor"`
	Logging    LoggingConfig    `yaml:"logging"`
	Conversion ConversionConfig `yaml:"conversion"`
	Archive    ArchiveConfig    `yaml:"archive"`
	Chart      ChartConfig      `yaml:"chart"`
}

// Settings represents global application settings.
type Settings struct {
	LogLevel slog.Level `yaml:"-"`

	RawLogLevel string `yaml:"logLevel"`
}

// SensorConfig locates the sensor on the local network.
type SensorConfig struct {
	URL     string   `yaml:"url"`
	Timeout Duration `yaml:"timeout"`
}

// LoggingConfig controls the CSV log: where it lives, how often rows
// are appended, how much history is kept, and the hours of the day
// during which the sensor is polled at all.
type LoggingConfig struct {
	Interval         Duration `yaml:"interval"`
	CSVPath          string   `yaml:"csvPath"`
	RetentionDays    int      `yaml:"retentionDays"`
	TruncateInterval Duration `yaml:"truncateInterval"`
	StartHour        int      `yaml:"startHour"`
	EndHour          int      `yaml:"endHour"`
}

// Retention is the log window as a duration.
func (c LoggingConfig) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// InWindow reports whether polling is enabled at the given time.
func (c LoggingConfig) InWindow(t time.Time) bool {
	h := t.Hour()
	return h >= c.StartHour && h < c.EndHour
}

// ConversionConfig selects the AQI computation variant.
type ConversionConfig struct {
	EPACorrection bool `yaml:"epaCorrection"`
}

// ArchiveConfig controls the optional SQLite archive.
type ArchiveConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// ChartConfig controls the periodic render.
type ChartConfig struct {
	Interval    Duration        `yaml:"interval"`
	ImagePath   string          `yaml:"imagePath"`
	Format      chart.Format    `yaml:"format"`
	JPEGQuality int             `yaml:"jpegQuality"`
	Width       int             `yaml:"width"`
	Height      int             `yaml:"height"`
	ColorMode   chart.ColorMode `yaml:"colorMode"`
	Title       string          `yaml:"title"`
	YAxisLabel  string          `yaml:"yAxisLabel"`
	YLimit      float64         `yaml:"yLimit"`
	ShowBands   *bool           `yaml:"showBands"`
	ShowAverage *bool           `yaml:"showAverage"`
	ShowAQIText *bool           `yaml:"showAQIText"`
}

// LoadConfig reads and validates the configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration file: %w", err)
	}

	var config Config
	if err = yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing configuration file: %w", err)
	}

	config.applyDefaults()
	if err = config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Settings.RawLogLevel == "" {
		c.Settings.RawLogLevel = "INFO"
	}
	if c.Sensor.Timeout == 0 {
		c.Sensor.Timeout = Duration(sensor.DefaultTimeout)
	}
	if c.Logging.Interval == 0 {
		c.Logging.Interval = Duration(defaultPollInterval)
	}
	if c.Logging.CSVPath == "" {
		c.Logging.CSVPath = defaultCSVPath
	}
	if c.Logging.RetentionDays == 0 {
		c.Logging.RetentionDays = defaultRetentionDays
	}
	if c.Logging.TruncateInterval == 0 {
		c.Logging.TruncateInterval = Duration(defaultTruncateInterval)
	}
	if c.Logging.EndHour == 0 {
		c.Logging.EndHour = defaultEndHour
	}
	if c.Chart.Interval == 0 {
		c.Chart.Interval = Duration(defaultRenderInterval)
	}
	if c.Chart.ImagePath == "" {
		c.Chart.ImagePath = defaultImagePath
	}
	if c.Chart.Format == "" {
		c.Chart.Format = chart.FormatJPEG
	}
	if c.Chart.JPEGQuality == 0 {
		c.Chart.JPEGQuality = defaultJPEGQuality
	}
	if c.Chart.ColorMode == "" {
		c.Chart.ColorMode = chart.ModeLight
	}
	if c.Chart.Title == "" {
		c.Chart.Title = defaultChartTitle
	}
	if c.Chart.YAxisLabel == "" {
		if c.Conversion.EPACorrection {
			c.Chart.YAxisLabel = defaultYAxisLabelEPA
		} else {
			c.Chart.YAxisLabel = defaultYAxisLabel
		}
	}

	enabled := true
	if c.Chart.ShowBands == nil {
		c.Chart.ShowBands = &enabled
	}
	if c.Chart.ShowAverage == nil {
		c.Chart.ShowAverage = &enabled
	}
	if c.Chart.ShowAQIText == nil {
		c.Chart.ShowAQIText = &enabled
	}
}

func (c *Config) validate() error {
	if err := c.Settings.LogLevel.UnmarshalText([]byte(c.Settings.RawLogLevel)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.Settings.RawLogLevel, err)
	}

	if c.Sensor.URL == "" {
		return fmt.Errorf("sensor.url is required")
	}
	if u, err := url.Parse(c.Sensor.URL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("sensor.url %q is not a valid URL", c.Sensor.URL)
	}
	if c.Sensor.Timeout <= 0 {
		return fmt.Errorf("sensor.timeout must be positive")
	}

	if c.Logging.Interval <= 0 {
		return fmt.Errorf("logging.interval must be positive")
	}
	if c.Logging.RetentionDays < 0 {
		return fmt.Errorf("logging.retentionDays must not be negative")
	}
	if c.Logging.TruncateInterval <= 0 {
		return fmt.Errorf("logging.truncateInterval must be positive")
	}
	if c.Logging.StartHour < 0 || c.Logging.StartHour > 23 {
		return fmt.Errorf("logging.startHour must be within 0..23")
	}
	if c.Logging.EndHour < 1 || c.Logging.EndHour > 24 {
		return fmt.Errorf("logging.endHour must be within 1..24")
	}
	if c.Logging.StartHour >= c.Logging.EndHour {
		return fmt.Errorf("logging.startHour must be before logging.endHour")
	}

	if c.Archive.Enabled && c.Archive.Path == "" {
		return fmt.Errorf("archive.path is required when the archive is enabled")
	}

	if c.Chart.Interval <= 0 {
		return fmt.Errorf("chart.interval must be positive")
	}
	if !chart.ValidFormat(c.Chart.Format) {
		return fmt.Errorf("chart.format %q is not one of png, jpeg", c.Chart.Format)
	}
	if c.Chart.JPEGQuality < 1 || c.Chart.JPEGQuality > 100 {
		return fmt.Errorf("chart.jpegQuality must be within 1..100")
	}
	if c.Chart.Width < 0 || c.Chart.Height < 0 {
		return fmt.Errorf("chart dimensions must not be negative")
	}
	if !chart.ValidColorMode(c.Chart.ColorMode) {
		return fmt.Errorf("chart.colorMode %q is not one of light, dark, greyscale", c.Chart.ColorMode)
	}
	if c.Chart.YLimit < 0 {
		return fmt.Errorf("chart.yLimit must not be negative")
	}

	return nil
}

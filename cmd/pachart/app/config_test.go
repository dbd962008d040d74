package app

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/openaer/pachart/internal/chart"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
sensor:
  url: http://192.168.20.36/json
`)

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.Settings.LogLevel != slog.LevelInfo {
		t.Errorf("default log level = %v, want INFO", config.Settings.LogLevel)
	}
	if got := config.Logging.Interval.Std(); got != 120*time.Second {
		t.Errorf("default poll interval = %v, want 120s", got)
	}
	if got := config.Chart.Interval.Std(); got != 240*time.Second {
		t.Errorf("default render interval = %v, want 240s", got)
	}
	if config.Logging.CSVPath != "sensor_data.csv" {
		t.Errorf("default csv path = %q", config.Logging.CSVPath)
	}
	if config.Chart.Format != chart.FormatJPEG {
		t.Errorf("default format = %q, want jpeg", config.Chart.Format)
	}
	if config.Logging.RetentionDays != 14 {
		t.Errorf("default retention = %d days, want 14", config.Logging.RetentionDays)
	}
	if config.Logging.EndHour != 24 {
		t.Errorf("default end hour = %d, want 24", config.Logging.EndHour)
	}
	if !*config.Chart.ShowBands || !*config.Chart.ShowAverage || !*config.Chart.ShowAQIText {
		t.Error("chart toggles should default to enabled")
	}
	if config.Chart.YAxisLabel != "EPA PM 2.5 AQI" {
		t.Errorf("default y-axis label = %q", config.Chart.YAxisLabel)
	}
}

func TestYAxisLabelFollowsConversion(t *testing.T) {
	path := writeConfig(t, `
sensor:
  url: http://192.168.20.36/json
conversion:
  epaCorrection: true
`)

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if config.Chart.YAxisLabel != "EPA PM 2.5 AQI w/ EPA Conversion" {
		t.Errorf("y-axis label = %q, want the EPA conversion variant", config.Chart.YAxisLabel)
	}

	path = writeConfig(t, `
sensor:
  url: http://192.168.20.36/json
conversion:
  epaCorrection: true
chart:
  yAxisLabel: Custom
`)
	config, err = LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if config.Chart.YAxisLabel != "Custom" {
		t.Errorf("explicit y-axis label = %q, want Custom", config.Chart.YAxisLabel)
	}
}

func TestLoadConfigFull(t *testing.T) {
	path := writeConfig(t, `
settings:
  logLevel: DEBUG
sensor:
  url: http://sensor.local/json
  timeout: 5s
logging:
  interval: 60s
  csvPath: /tmp/data.csv
  retentionDays: 7
  truncateInterval: 12h
  startHour: 6
  endHour: 22
conversion:
  epaCorrection: true
archive:
  enabled: true
  path: /tmp/data.sqlite
chart:
  interval: 300s
  imagePath: /tmp/data.png
  format: png
  width: 1024
  height: 768
  colorMode: dark
  yLimit: 200
  showAverage: false
`)

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.Settings.LogLevel != slog.LevelDebug {
		t.Errorf("log level = %v, want DEBUG", config.Settings.LogLevel)
	}
	if got := config.Logging.TruncateInterval.Std(); got != 12*time.Hour {
		t.Errorf("truncate interval = %v, want 12h", got)
	}
	if got := config.Logging.Retention(); got != 7*24*time.Hour {
		t.Errorf("retention = %v, want 168h", got)
	}
	if !config.Conversion.EPACorrection {
		t.Error("expected EPA correction enabled")
	}
	if !config.Archive.Enabled || config.Archive.Path != "/tmp/data.sqlite" {
		t.Errorf("unexpected archive config: %+v", config.Archive)
	}
	if config.Chart.ColorMode != chart.ModeDark {
		t.Errorf("color mode = %q, want dark", config.Chart.ColorMode)
	}
	if *config.Chart.ShowAverage {
		t.Error("showAverage should be disabled")
	}
	if !*config.Chart.ShowBands {
		t.Error("showBands should keep its default")
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			"missing sensor url",
			`logging: {interval: 60s}`,
			"sensor.url",
		},
		{
			"bad sensor url",
			`sensor: {url: "not a url"}`,
			"sensor.url",
		},
		{
			"bad duration",
			"sensor:\n  url: http://sensor.local/json\nlogging:\n  interval: fast",
			"invalid duration",
		},
		{
			"bad color mode",
			"sensor:\n  url: http://sensor.local/json\nchart:\n  colorMode: sepia",
			"colorMode",
		},
		{
			"bad format",
			"sensor:\n  url: http://sensor.local/json\nchart:\n  format: bmp",
			"chart.format",
		},
		{
			"inverted hours",
			"sensor:\n  url: http://sensor.local/json\nlogging:\n  startHour: 22\n  endHour: 6",
			"startHour",
		},
		{
			"archive without path",
			"sensor:\n  url: http://sensor.local/json\narchive:\n  enabled: true",
			"archive.path",
		},
		{
			"bad log level",
			"settings:\n  logLevel: LOUD\nsensor:\n  url: http://sensor.local/json",
			"log level",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tc.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoggingWindow(t *testing.T) {
	c := LoggingConfig{StartHour: 6, EndHour: 22}

	at := func(hour int) time.Time {
		return time.Date(2024, 7, 1, hour, 30, 0, 0, time.Local)
	}

	tests := []struct {
		hour int
		want bool
	}{
		{5, false},
		{6, true},
		{21, true},
		{22, false},
		{23, false},
	}

	for _, tc := range tests {
		if got := c.InWindow(at(tc.hour)); got != tc.want {
			t.Errorf("InWindow(hour=%d) = %v, want %v", tc.hour, got, tc.want)
		}
	}

	allDay := LoggingConfig{StartHour: 0, EndHour: 24}
	if !allDay.InWindow(at(0)) || !allDay.InWindow(at(23)) {
		t.Error("0..24 window should cover the whole day")
	}
}

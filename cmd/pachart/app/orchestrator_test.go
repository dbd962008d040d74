package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/openaer/pachart/internal/chart"
	"github.com/openaer/pachart/internal/csvlog"
	"github.com/openaer/pachart/internal/sensor"
)

const testPayload = `{"SensorId": "test", "pm2_5_atm": 12.3, "pm2_5_atm_b": 12.3, "current_humidity": 40, "current_temp_f": 70, "pressure": 1013}`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T, sensorURL string) *Config {
	t.Helper()
	dir := t.TempDir()

	c := Config{}
	c.applyDefaults()
	c.Sensor.URL = sensorURL
	c.Logging.CSVPath = filepath.Join(dir, "sensor_data.csv")
	c.Chart.ImagePath = filepath.Join(dir, "sensor_data.jpg")
	return &c
}

func testOrchestrator(t *testing.T, config *Config, options ...func(*Orchestrator)) *Orchestrator {
	t.Helper()

	renderer, err := chart.New(chart.Config{Width: 320, Height: 240})
	if err != nil {
		t.Fatalf("creating renderer: %v", err)
	}
	t.Cleanup(func() { _ = renderer.Close() })

	client := sensor.New(config.Sensor.URL, sensor.WithTimeout(time.Second))
	return NewOrchestrator(config, client, csvlog.New(config.Logging.CSVPath), renderer, discardLogger(), options...)
}

// Two ticks: the sensor answers on the first and is unreachable on the
// second. Exactly one header row and one data row must result.
func TestPollSuccessThenFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) > 1 {
			panic("sensor polled after shutdown")
		}
		_, _ = w.Write([]byte(testPayload))
	}))

	config := testConfig(t, srv.URL)
	o := testOrchestrator(t, config)
	ctx := context.Background()

	if err := o.PollOnce(ctx); err != nil {
		t.Fatalf("first tick failed: %v", err)
	}

	srv.Close() // sensor goes unreachable
	if err := o.PollOnce(ctx); err != nil {
		t.Fatalf("second tick should skip, not fail: %v", err)
	}

	data, err := os.ReadFile(config.Logging.CSVPath)
	if err != nil {
		t.Fatalf("reading log: %v", err)
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 data row, got %d lines: %q", len(lines), lines)
	}
	if lines[0] != strings.Join(csvlog.Header, ",") {
		t.Errorf("unexpected header: %q", lines[0])
	}
	if !strings.Contains(lines[1], ",12.30,") {
		t.Errorf("data row does not carry the tick 1 reading: %q", lines[1])
	}
}

func TestPollOutsideWindow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("sensor polled outside the logging window")
	}))
	defer srv.Close()

	config := testConfig(t, srv.URL)
	config.Logging.StartHour = 8
	config.Logging.EndHour = 18

	night := time.Date(2024, 7, 1, 3, 0, 0, 0, time.Local)
	o := testOrchestrator(t, config, WithClock(func() time.Time { return night }))

	if err := o.PollOnce(context.Background()); err != nil {
		t.Fatalf("PollOnce failed: %v", err)
	}
	if _, err := os.Stat(config.Logging.CSVPath); !os.IsNotExist(err) {
		t.Error("no log file should exist after an out-of-window tick")
	}
}

func TestPollFatalOnUnwritableLog(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(testPayload))
	}))
	defer srv.Close()

	dir := t.TempDir()
	if err := os.Chmod(dir, 0o555); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(dir, 0o755) })

	config := testConfig(t, srv.URL)
	config.Logging.CSVPath = filepath.Join(dir, "sensor_data.csv")

	o := testOrchestrator(t, config)
	if err := o.PollOnce(context.Background()); err == nil {
		t.Fatal("expected fatal error for unwritable log path")
	}
}

func TestRenderOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(testPayload))
	}))
	defer srv.Close()

	config := testConfig(t, srv.URL)
	o := testOrchestrator(t, config)
	ctx := context.Background()

	if err := o.PollOnce(ctx); err != nil {
		t.Fatalf("PollOnce failed: %v", err)
	}

	before, err := os.ReadFile(config.Logging.CSVPath)
	if err != nil {
		t.Fatal(err)
	}

	if err := o.RenderOnce(ctx); err != nil {
		t.Fatalf("RenderOnce failed: %v", err)
	}

	first, err := os.Stat(config.Chart.ImagePath)
	if err != nil {
		t.Fatalf("image file missing after render: %v", err)
	}
	if first.Size() == 0 {
		t.Error("image file is empty")
	}
	if perm := first.Mode().Perm(); perm != 0o644 {
		t.Errorf("image permissions = %o, want 644", perm)
	}

	// Rendering must not touch the log.
	after, err := os.ReadFile(config.Logging.CSVPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Error("render cycle mutated the log file")
	}

	// A second cycle overwrites the image with fresh content.
	time.Sleep(10 * time.Millisecond)
	if err := o.RenderOnce(ctx); err != nil {
		t.Fatalf("second RenderOnce failed: %v", err)
	}
	second, err := os.Stat(config.Chart.ImagePath)
	if err != nil {
		t.Fatal(err)
	}
	if !second.ModTime().After(first.ModTime()) {
		t.Error("image modification time did not advance after re-render")
	}
}

func TestRenderOnceEmptyLog(t *testing.T) {
	config := testConfig(t, "http://sensor.invalid/json")
	o := testOrchestrator(t, config)

	// No log file at all.
	if err := o.RenderOnce(context.Background()); err != nil {
		t.Fatalf("render with no log should skip, got %v", err)
	}
	if _, err := os.Stat(config.Chart.ImagePath); !os.IsNotExist(err) {
		t.Error("no image should be produced without data")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(testPayload))
	}))
	defer srv.Close()

	config := testConfig(t, srv.URL)
	config.Logging.Interval = Duration(10 * time.Millisecond)
	config.Chart.Interval = Duration(20 * time.Millisecond)

	o := testOrchestrator(t, config)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}

	if _, err := os.Stat(config.Logging.CSVPath); err != nil {
		t.Errorf("expected log file after run: %v", err)
	}
}

package archive

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/openaer/pachart/internal/sensor"
)

func testReading(ts time.Time, aqi int) sensor.Reading {
	return sensor.Reading{
		Timestamp:    ts,
		SensorID:     "84:f3:eb:44:a9:12",
		AQI:          aqi,
		PM25:         12.34,
		PM25A:        12.5,
		PM25B:        12.18,
		Humidity:     40,
		TemperatureF: 71.5,
		Pressure:     1013.2,
	}
}

func TestInsertAndPoints(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "sensor_data.sqlite"))
	defer store.Close()

	ctx := context.Background()
	base := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		if err := store.Insert(ctx, testReading(base.Add(time.Duration(i)*time.Minute), 40+i)); err != nil {
			t.Fatalf("Insert %d failed: %v", i, err)
		}
	}

	points, err := store.Points(ctx, time.Time{})
	if err != nil {
		t.Fatalf("Points failed: %v", err)
	}
	if len(points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(points))
	}
	if points[0].Value != 40 || points[2].Value != 42 {
		t.Errorf("unexpected values: first=%v last=%v", points[0].Value, points[2].Value)
	}
	if !points[0].Time.Before(points[1].Time) {
		t.Error("points are not in ascending time order")
	}
}

func TestPointsSince(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "sensor_data.sqlite"))
	defer store.Close()

	ctx := context.Background()
	base := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		if err := store.Insert(ctx, testReading(base.Add(time.Duration(i)*time.Hour), 40+i)); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	points, err := store.Points(ctx, base.Add(3*time.Hour))
	if err != nil {
		t.Fatalf("Points failed: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("expected 2 points since cutoff, got %d", len(points))
	}
	if points[0].Value != 43 {
		t.Errorf("first point value = %v, want 43", points[0].Value)
	}
}

func TestCloseIdempotent(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "sensor_data.sqlite"))

	if err := store.Insert(context.Background(), testReading(time.Now(), 40)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Errorf("first Close failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}

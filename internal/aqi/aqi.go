// Package aqi converts raw PM2.5 concentrations into EPA Air Quality
// Index values, optionally applying the EPA correction for PurpleAir
// sensors (Barkjohn et al., 2021).
package aqi

import (
	"fmt"
	"math"
)

// breakpoint maps a PM2.5 concentration range (µg/m³, 24h average) to
// an AQI range, per the EPA PM2.5 breakpoint table.
type breakpoint struct {
	cLow, cHigh float64
	iLow, iHigh float64
}

var pm25Breakpoints = []breakpoint{
	{0.0, 12.0, 0, 50},
	{12.1, 35.4, 51, 100},
	{35.5, 55.4, 101, 150},
	{55.5, 150.4, 151, 200},
	{150.5, 250.4, 201, 300},
	{250.5, 350.4, 301, 400},
	{350.5, 500.4, 401, 500},
}

// MaxAQI is the upper bound of the index; concentrations beyond the
// highest breakpoint clamp to it.
const MaxAQI = 500

// FromPM25 converts a PM2.5 concentration in µg/m³ to an EPA AQI value.
// Concentrations above the top breakpoint clamp to MaxAQI. Negative
// concentrations are rejected.
func FromPM25(pm float64) (int, error) {
	if math.IsNaN(pm) || pm < 0 {
		return 0, fmt.Errorf("invalid PM2.5 concentration: %f", pm)
	}

	// EPA truncates the concentration to one decimal place before lookup.
	pm = math.Trunc(pm*10) / 10

	for _, bp := range pm25Breakpoints {
		if pm <= bp.cHigh {
			aqi := (bp.iHigh-bp.iLow)/(bp.cHigh-bp.cLow)*(pm-bp.cLow) + bp.iLow
			return int(math.Round(aqi)), nil
		}
	}
	return MaxAQI, nil
}

// EPACorrect applies the EPA correction for PurpleAir PM2.5 readings,
// which compensates for the sensors' humidity-driven over-reporting.
// pm is the raw concentration in µg/m³, rh the relative humidity in
// percent. The result never goes below zero.
func EPACorrect(pm, rh float64) float64 {
	var corrected float64
	if pm < 343 {
		corrected = 0.52*pm - 0.086*rh + 5.75
	} else {
		corrected = 0.46*pm + 3.93e-4*pm*pm + 2.97
	}
	return math.Max(0, corrected)
}

// Category returns the EPA descriptor for an AQI value.
func Category(aqi int) string {
	switch {
	case aqi <= 50:
		return "Good"
	case aqi <= 100:
		return "Moderate"
	case aqi <= 150:
		return "Unhealthy for Sensitive Groups"
	case aqi <= 200:
		return "Unhealthy"
	case aqi <= 300:
		return "Very Unhealthy"
	default:
		return "Hazardous"
	}
}

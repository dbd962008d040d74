// Package sensor provides the PurpleAir sensor client and the reading
// model shared by the recorder, the archive and the chart renderer.
package sensor

import "time"

// Reading is one observation retrieved from the sensor. It is created
// once per successful poll and never mutated afterwards.
type Reading struct {
	Timestamp    time.Time // local time the reading was taken
	SensorID     string    // sensor identifier reported by the device
	PM25         float64   // PM2.5 in µg/m³, averaged across both laser channels
	PM25A        float64   // channel A PM2.5 in µg/m³
	PM25B        float64   // channel B PM2.5 in µg/m³
	Humidity     float64   // relative humidity in percent
	TemperatureF float64   // temperature in °F
	Pressure     float64   // barometric pressure in hPa
	AQI          int       // EPA AQI computed from PM25
}

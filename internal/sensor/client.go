package sensor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/openaer/pachart/internal/aqi"
)

const (
	// DefaultTimeout bounds a single sensor request.
	DefaultTimeout = 15 * time.Second

	// liveQuery asks the sensor for the live (2-minute average) values
	// instead of the longer running averages.
	liveQuery = "?live=true"
)

// ErrBadPayload is returned when the sensor responds but the payload
// cannot be used, either because it does not decode or because the
// values in it are not plausible measurements.
var ErrBadPayload = errors.New("unusable sensor payload")

// payload is the subset of the PurpleAir local JSON endpoint that the
// poller consumes.
type payload struct {
	SensorID        string  `json:"SensorId"`
	DateTime        string  `json:"DateTime"`
	PM25Atm         float64 `json:"pm2_5_atm"`
	PM25AtmB        float64 `json:"pm2_5_atm_b"`
	CurrentHumidity float64 `json:"current_humidity"`
	CurrentTempF    float64 `json:"current_temp_f"`
	Pressure        float64 `json:"pressure"`
}

// WithLogger sets the logger for the client.
func WithLogger(logger *slog.Logger) func(c *Client) {
	return func(c *Client) {
		c.logger = logger.With(slog.String("component", "sensor"))
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) func(c *Client) {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithEPACorrection applies the EPA humidity correction to the raw
// PM2.5 value before computing the AQI.
func WithEPACorrection() func(c *Client) {
	return func(c *Client) {
		c.epaCorrection = true
	}
}

// Client reads live values from a PurpleAir sensor on the local
// network. It is safe for use from a single goroutine, which matches
// the one-poll-at-a-time design of the process.
type Client struct {
	url           string
	httpClient    *http.Client
	epaCorrection bool
	logger        *slog.Logger
}

// New creates a sensor client for the given endpoint URL, which is the
// sensor's local JSON endpoint without query parameters, for example
// http://192.168.20.36/json.
func New(url string, options ...func(c *Client)) *Client {
	c := Client{
		url:        url,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&c)
	}

	return &c
}

// Fetch performs one request against the sensor and returns the
// decoded reading. Any transport, status or payload problem comes back
// as a single error; the caller skips the tick, there is no retry here.
func (c *Client) Fetch(ctx context.Context) (*Reading, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+liveQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("building sensor request: %w", err)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reading sensor: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, fmt.Errorf("reading sensor: unexpected status %s", res.Status)
	}

	var p payload
	if err = json.NewDecoder(res.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("%w: decoding: %w", ErrBadPayload, err)
	}

	return c.toReading(p)
}

func (c *Client) toReading(p payload) (*Reading, error) {
	pm := (p.PM25Atm + p.PM25AtmB) / 2
	if math.IsNaN(pm) || pm < 0 {
		return nil, fmt.Errorf("%w: PM2.5 a=%f b=%f", ErrBadPayload, p.PM25Atm, p.PM25AtmB)
	}

	adjusted := pm
	if c.epaCorrection {
		adjusted = aqi.EPACorrect(pm, p.CurrentHumidity)
	}

	index, err := aqi.FromPM25(adjusted)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadPayload, err)
	}

	r := Reading{
		Timestamp:    time.Now(),
		SensorID:     p.SensorID,
		PM25:         pm,
		PM25A:        p.PM25Atm,
		PM25B:        p.PM25AtmB,
		Humidity:     p.CurrentHumidity,
		TemperatureF: p.CurrentTempF,
		Pressure:     p.Pressure,
		AQI:          index,
	}

	// The reading is stamped with local time; the sensor's own clock is
	// only surfaced for debugging drift.
	c.logger.Debug("sensor reading",
		slog.String("sensorID", r.SensorID),
		slog.String("sensorTime", p.DateTime),
		slog.Float64("pm25", r.PM25),
		slog.Int("aqi", r.AQI))

	return &r, nil
}

// Package csvlog implements the append-only CSV reading log: one
// header row written on creation, one row per reading, and a periodic
// retention trim. A single process is assumed to be the only writer.
package csvlog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/openaer/pachart/internal/chart"
	"github.com/openaer/pachart/internal/sensor"
)

// TimeLayout is the timestamp format used in log rows.
const TimeLayout = "2006-01-02T15:04:05"

// Header is the canonical column layout. It is the single source of
// truth for the row order; Append refuses to write into a file whose
// header differs.
var Header = []string{"timestamp", "aqi", "pm25_raw", "humidity", "temperature_f"}

// ErrHeaderMismatch is returned when the log file already exists with
// a header other than the canonical one, e.g. one left behind by an
// older version. Appending mismatched columns would corrupt the log,
// so this is fatal for the caller.
var ErrHeaderMismatch = errors.New("log file has an incompatible header")

// Log is an append-only CSV log of sensor readings. Methods open and
// close the file per call; no handle is held between ticks.
type Log struct {
	path string
}

// New creates a Log for the given file path. The file itself is
// created lazily on the first Append.
func New(path string) *Log {
	return &Log{path: path}
}

// Path returns the log file location.
func (l *Log) Path() string {
	return l.path
}

// Append writes one reading as one row, creating the file with a
// header row first if it does not exist or is empty.
func (l *Log) Append(r sensor.Reading) error {
	empty, err := l.checkHeader()
	if err != nil {
		return err
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}

	w := csv.NewWriter(f)
	if empty {
		if err = w.Write(Header); err != nil {
			_ = f.Close()
			return fmt.Errorf("writing header: %w", err)
		}
	}

	row := []string{
		r.Timestamp.Format(TimeLayout),
		strconv.Itoa(r.AQI),
		strconv.FormatFloat(r.PM25, 'f', 2, 64),
		strconv.FormatFloat(r.Humidity, 'f', 1, 64),
		strconv.FormatFloat(r.TemperatureF, 'f', 1, 64),
	}
	if err = w.Write(row); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing row: %w", err)
	}

	w.Flush()
	if err = w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("flushing row: %w", err)
	}

	if err = f.Close(); err != nil {
		return fmt.Errorf("closing log file: %w", err)
	}
	return nil
}

// ReadAll parses the whole log into chart points ordered as stored.
// Rows with unparsable timestamps or values are skipped, not fatal;
// the count of skipped rows is returned alongside the points.
func (l *Log) ReadAll() ([]chart.Point, int, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return nil, 0, fmt.Errorf("opening log file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("reading header: %w", err)
	}
	if !headerMatches(header) {
		return nil, 0, fmt.Errorf("%w: %q", ErrHeaderMismatch, strings.Join(header, ","))
	}

	var points []chart.Point
	var skipped int
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Ragged or otherwise broken row, e.g. a partial write
			// from a crash. Skip it like an unparsable one.
			skipped++
			continue
		}

		ts, err := time.ParseInLocation(TimeLayout, row[0], time.Local)
		if err != nil {
			skipped++
			continue
		}
		value, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			skipped++
			continue
		}

		points = append(points, chart.Point{Time: ts, Value: value})
	}

	return points, skipped, nil
}

// Truncate drops rows older than retention relative to the newest row
// and rewrites the file atomically via a temp file in the same
// directory. Row content other than the timestamp is preserved
// verbatim. A missing file or a file with nothing out of window is a
// no-op.
func (l *Log) Truncate(retention time.Duration) error {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("opening log file: %w", err)
	}

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	_ = f.Close()
	if err != nil {
		return fmt.Errorf("reading log file: %w", err)
	}
	if len(records) < 2 {
		return nil
	}
	if !headerMatches(records[0]) {
		return fmt.Errorf("%w: %q", ErrHeaderMismatch, strings.Join(records[0], ","))
	}

	rows := records[1:]

	var latest time.Time
	for _, row := range rows {
		if ts, err := time.ParseInLocation(TimeLayout, row[0], time.Local); err == nil && ts.After(latest) {
			latest = ts
		}
	}
	if latest.IsZero() {
		return nil
	}

	cutoff := latest.Add(-retention)
	kept := rows[:0:0]
	for _, row := range rows {
		ts, err := time.ParseInLocation(TimeLayout, row[0], time.Local)
		if err != nil || !ts.Before(cutoff) {
			// Unparsable rows are kept here; ReadAll skips them when
			// plotting and the next trim cycle sees them again.
			kept = append(kept, row)
		}
	}
	if len(kept) == len(rows) {
		return nil
	}

	return l.rewrite(kept)
}

func (l *Log) rewrite(rows [][]string) error {
	dir := filepath.Dir(l.path)
	tmp, err := os.CreateTemp(dir, ".csvlog-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err = w.Write(Header); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing header: %w", err)
	}
	if err = w.WriteAll(rows); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing rows: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err = os.Rename(tmp.Name(), l.path); err != nil {
		return fmt.Errorf("replacing log file: %w", err)
	}
	return nil
}

// checkHeader reports whether the file needs a header written and
// validates an existing one.
func (l *Log) checkHeader() (empty bool, err error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, fmt.Errorf("opening log file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return true, nil
		}
		return false, fmt.Errorf("reading header: %w", err)
	}

	if !headerMatches(header) {
		return false, fmt.Errorf("%w: %q", ErrHeaderMismatch, strings.Join(header, ","))
	}
	return false, nil
}

func headerMatches(header []string) bool {
	if len(header) != len(Header) {
		return false
	}
	for i, name := range Header {
		if header[i] != name {
			return false
		}
	}
	return true
}

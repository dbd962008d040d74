// Package archive persists every reading into a SQLite database so the
// full history survives the CSV retention trim. It is optional; the
// daemon runs without it.
package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/openaer/pachart/internal/chart"
	"github.com/openaer/pachart/internal/sensor"
)

const initSchemaSQL = `
CREATE TABLE IF NOT EXISTS readings (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp     DATETIME NOT NULL,
    sensor_id     TEXT,
    aqi           INTEGER NOT NULL,
    pm25_raw      REAL NOT NULL,
    pm25_a        REAL,
    pm25_b        REAL,
    humidity      REAL,
    temperature_f REAL,
    pressure      REAL
);

CREATE INDEX IF NOT EXISTS idx_readings_timestamp ON readings (timestamp);
`

const insertReadingSQL = `
INSERT INTO readings (timestamp,
                      sensor_id,
                      aqi,
                      pm25_raw,
                      pm25_a,
                      pm25_b,
                      humidity,
                      temperature_f,
                      pressure)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const selectPointsSQL = `
SELECT
    timestamp,
    aqi
FROM readings
WHERE
    timestamp >= ?
ORDER BY timestamp
`

// Store handles database operations for the readings archive.
type Store struct {
	dbPath string

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

// New creates a store for the given database file. Connections are
// opened lazily; the schema is initialized on the first write.
func New(dbPath string) *Store {
	return &Store{dbPath: dbPath}
}

func (s *Store) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL"))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}

		if _, err = db.Exec(initSchemaSQL); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

func (s *Store) getReadDB() (*sql.DB, error) {
	s.readDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "mode=ro"))
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

// Insert stores one reading.
func (s *Store) Insert(ctx context.Context, r sensor.Reading) (err error) {
	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	stmt, err := db.PrepareContext(ctx, insertReadingSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer func() {
		if cErr := stmt.Close(); cErr != nil && err == nil {
			err = fmt.Errorf("closing statement: %w", cErr)
		}
	}()

	var sensorID sql.NullString
	if r.SensorID != "" {
		sensorID.Valid = true
		sensorID.String = r.SensorID
	}

	if _, err = stmt.ExecContext(
		ctx,
		r.Timestamp.UTC(),
		sensorID,
		r.AQI,
		r.PM25,
		r.PM25A,
		r.PM25B,
		r.Humidity,
		r.TemperatureF,
		r.Pressure,
	); err != nil {
		return fmt.Errorf("inserting reading: %w", err)
	}
	return nil
}

// Points returns chart points for readings at or after since, ordered
// by timestamp. A zero since returns the full history.
func (s *Store) Points(ctx context.Context, since time.Time) (points []chart.Point, err error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}

	rows, err := db.QueryContext(ctx, selectPointsSQL, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("querying readings: %w", err)
	}
	defer func() {
		if cErr := rows.Close(); cErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", cErr)
		}
	}()

	for rows.Next() {
		var ts time.Time
		var aqi int
		if err = rows.Scan(&ts, &aqi); err != nil {
			return nil, fmt.Errorf("scanning reading: %w", err)
		}
		points = append(points, chart.Point{Time: ts.Local(), Value: float64(aqi)})
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating readings: %w", err)
	}
	return points, nil
}

// Close closes the database connections. It is safe to call multiple
// times.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		var writeErr, readErr error

		if s.writeDB != nil {
			writeErr = s.writeDB.Close()
			s.writeDB = nil
		}

		if s.readDB != nil {
			readErr = s.readDB.Close()
			s.readDB = nil
		}

		switch {
		case writeErr != nil && readErr != nil:
			s.closeErr = errors.Join(writeErr, readErr)
		case writeErr != nil:
			s.closeErr = writeErr
		case readErr != nil:
			s.closeErr = readErr
		}
	})

	return s.closeErr
}

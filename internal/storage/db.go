// Package storage persists parsed obstacles and filter history.
//
// SQLite serves as a local obstacle cache, PostgreSQL as the shared obstacle
// store behind the API, and ClickHouse keeps the history of filter runs.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"dof_filter/internal/dof"
)

// Config holds database connection settings for both ClickHouse and PostgreSQL.
type Config struct {
	ClickHouse ClickHouseConfig
	Postgres   PostgresConfig
	SQLitePath string
}

// DefaultConfig returns a configuration with default local development settings.
func DefaultConfig() Config {
	return Config{
		ClickHouse: ClickHouseConfig{
			Host:     "localhost",
			Port:     9000,
			Database: "dof",
			User:     "default",
			Password: "",
		},
		Postgres: PostgresConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "dof",
			User:     "dof",
			Password: "dof",
		},
		SQLitePath: "obstacles.db",
	}
}

// DB wraps both ClickHouse and PostgreSQL connections.
type DB struct {
	CH *ClickHouseDB // ClickHouse for filter run history.
	PG *PostgresDB   // PostgreSQL for obstacles.
}

// Open opens connections to both ClickHouse and PostgreSQL.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	ch, err := OpenClickHouse(ctx, cfg.ClickHouse)
	if err != nil {
		return nil, fmt.Errorf("clickhouse: %w", err)
	}

	pg, err := OpenPostgres(ctx, cfg.Postgres)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("postgres: %w", err)
	}

	return &DB{CH: ch, PG: pg}, nil
}

// Close closes both database connections.
func (d *DB) Close() error {
	if d.PG != nil {
		d.PG.Close()
	}
	if d.CH != nil {
		if err := d.CH.Close(); err != nil {
			return fmt.Errorf("clickhouse: %w", err)
		}
	}
	return nil
}

// CreateSchemas creates the schemas in both databases.
func (d *DB) CreateSchemas(ctx context.Context) error {
	if err := d.CH.CreateSchema(ctx); err != nil {
		return fmt.Errorf("clickhouse schema: %w", err)
	}
	if err := d.PG.CreateSchema(ctx); err != nil {
		return fmt.Errorf("postgres schema: %w", err)
	}
	return nil
}

// obstacleColumns is the column order shared by the SQL obstacle tables.
const obstacleColumns = `line, oas_code, obstacle_number, verification_status,
	country_id, state_id, city_name,
	lat_deg, lat_min, lat_sec, lat_hem, lon_deg, lon_min, lon_sec, lon_hem,
	obstacle_type, quantity, agl_height, amsl_height, lighting,
	horizontal_accuracy, vertical_accuracy, mark_indicator,
	faa_study_number, action, julian_date, latitude, longitude`

// obstacleArgs returns r's values in obstacleColumns order. Missing (NaN)
// numerics become NULL in every SQL store.
func obstacleArgs(r dof.Record) []any {
	num := func(v float64) any {
		if math.IsNaN(v) {
			return nil
		}
		return v
	}
	lat, lon := r.Position()
	return []any{
		r.Line, r.OASCode, r.ObstacleNumber, r.VerificationStatus,
		r.CountryID, r.StateID, r.City,
		num(r.LatDeg), num(r.LatMin), num(r.LatSec), r.LatHem,
		num(r.LonDeg), num(r.LonMin), num(r.LonSec), r.LonHem,
		r.ObstacleType, num(r.Quantity), num(r.AGL), num(r.AMSL), r.Lighting,
		num(r.HorizontalAccuracy), num(r.VerticalAccuracy), r.MarkIndicator,
		r.FAAStudyNumber, r.Action, r.JulianDate, lat, lon,
	}
}

// rowScanner is satisfied by *sql.Rows and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanObstacle reads a row selected with obstacleColumns. NULL numerics
// become NaN.
func scanObstacle(row rowScanner) (dof.Record, error) {
	var r dof.Record
	var latDeg, latMin, latSec, lonDeg, lonMin, lonSec sql.NullFloat64
	var qty, agl, amsl, hacc, vacc sql.NullFloat64
	var lat, lon float64

	err := row.Scan(
		&r.Line, &r.OASCode, &r.ObstacleNumber, &r.VerificationStatus,
		&r.CountryID, &r.StateID, &r.City,
		&latDeg, &latMin, &latSec, &r.LatHem,
		&lonDeg, &lonMin, &lonSec, &r.LonHem,
		&r.ObstacleType, &qty, &agl, &amsl, &r.Lighting,
		&hacc, &vacc, &r.MarkIndicator,
		&r.FAAStudyNumber, &r.Action, &r.JulianDate, &lat, &lon,
	)
	if err != nil {
		return dof.Record{}, fmt.Errorf("scan obstacle: %w", err)
	}

	r.LatDeg, r.LatMin, r.LatSec = orNaN(latDeg), orNaN(latMin), orNaN(latSec)
	r.LonDeg, r.LonMin, r.LonSec = orNaN(lonDeg), orNaN(lonMin), orNaN(lonSec)
	r.Quantity, r.AGL, r.AMSL = orNaN(qty), orNaN(agl), orNaN(amsl)
	r.HorizontalAccuracy, r.VerticalAccuracy = orNaN(hacc), orNaN(vacc)
	return r, nil
}

func orNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

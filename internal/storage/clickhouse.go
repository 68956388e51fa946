package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"dof_filter/internal/filter"
)

// ClickHouseConfig holds ClickHouse connection settings.
type ClickHouseConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// ClickHouseDB wraps a ClickHouse connection for filter run history.
type ClickHouseDB struct {
	conn driver.Conn
}

// OpenClickHouse opens a connection to ClickHouse.
func OpenClickHouse(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseDB, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout:     10 * time.Second,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("open clickhouse: %w", err)
	}

	// Test the connection.
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}

	return &ClickHouseDB{conn: conn}, nil
}

// Close closes the ClickHouse connection.
func (d *ClickHouseDB) Close() error {
	return d.conn.Close()
}

// CreateSchema creates the ClickHouse tables.
func (d *ClickHouseDB) CreateSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS filter_runs (
			id                String,
			created_at        DateTime64(3),
			lat_min           Float64,
			lat_max           Float64,
			lon_min           Float64,
			lon_max           Float64,
			radius_deg        Float64,
			altitude_delta_ft Float64,
			samples           UInt32,
			matches           UInt32
		)
		ENGINE = MergeTree()
		PARTITION BY toYYYYMM(created_at)
		ORDER BY (created_at, id)`,

		`CREATE TABLE IF NOT EXISTS filter_matches (
			run_id          String,
			created_at      DateTime64(3),
			obstacle_id     String,
			obstacle_type   LowCardinality(String),
			state_id        LowCardinality(String),
			latitude        Float64,
			longitude       Float64,
			agl_height      Float64,
			amsl_height     Float64,
			sample_index    UInt32,
			distance_deg    Float64,
			delta_ft        Float64
		)
		ENGINE = MergeTree()
		PARTITION BY toYYYYMM(created_at)
		ORDER BY (obstacle_id, created_at)`,
	}

	for _, q := range queries {
		if err := d.conn.Exec(ctx, q); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// RecordReport stores a filter run and its matches.
func (d *ClickHouseDB) RecordReport(ctx context.Context, rep filter.Report) error {
	b := rep.Config.Bounds
	err := d.conn.Exec(ctx, `
		INSERT INTO filter_runs (id, created_at, lat_min, lat_max, lon_min, lon_max, radius_deg, altitude_delta_ft, samples, matches)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rep.ID, rep.CreatedAt, b.MinLat, b.MaxLat, b.MinLon, b.MaxLon,
		rep.Config.RadiusDeg, rep.Config.AltitudeDeltaFt, uint32(rep.Samples), uint32(len(rep.Matches)))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	if len(rep.Matches) == 0 {
		return nil
	}

	batch, err := d.conn.PrepareBatch(ctx, `
		INSERT INTO filter_matches (run_id, created_at, obstacle_id, obstacle_type, state_id, latitude, longitude, agl_height, amsl_height, sample_index, distance_deg, delta_ft)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, m := range rep.Matches {
		r := m.Record
		err = batch.Append(rep.ID, rep.CreatedAt, r.ID(), r.ObstacleType, r.StateID, m.Lat, m.Lon,
			r.AGL, r.AMSL, uint32(m.SampleIndex), m.DistanceDeg, m.DeltaFt)
		if err != nil {
			_ = batch.Abort()
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// ObstacleHits is how often an obstacle appeared in filter results.
type ObstacleHits struct {
	ObstacleID   string
	ObstacleType string
	Hits         uint64
	LastSeen     time.Time
}

// TopObstacles returns the obstacles matched most often since the given time.
func (d *ClickHouseDB) TopObstacles(ctx context.Context, since time.Time, limit int) ([]ObstacleHits, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := d.conn.Query(ctx, `
		SELECT obstacle_id, any(obstacle_type), count(), max(created_at)
		FROM filter_matches
		WHERE created_at >= ?
		GROUP BY obstacle_id
		ORDER BY count() DESC
		LIMIT ?
	`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("query top obstacles: %w", err)
	}
	defer rows.Close()

	var out []ObstacleHits
	for rows.Next() {
		var h ObstacleHits
		if err := rows.Scan(&h.ObstacleID, &h.ObstacleType, &h.Hits, &h.LastSeen); err != nil {
			return nil, fmt.Errorf("scan top obstacles: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

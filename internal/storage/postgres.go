package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"dof_filter/internal/dof"
	"dof_filter/internal/geo"
)

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// PostgresDB wraps a PostgreSQL connection pool for obstacle storage.
type PostgresDB struct {
	pool *pgxpool.Pool
}

// upsertBatchSize bounds the number of statements queued per pgx batch.
const upsertBatchSize = 1000

// OpenPostgres opens a connection pool to PostgreSQL.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*PostgresDB, error) {
	connStr := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	// Test the connection.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresDB{pool: pool}, nil
}

// Close closes the PostgreSQL connection pool.
func (d *PostgresDB) Close() {
	d.pool.Close()
}

// CreateSchema creates the PostgreSQL tables.
func (d *PostgresDB) CreateSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS obstacles (
		line                INTEGER NOT NULL,
		oas_code            TEXT NOT NULL,
		obstacle_number     TEXT NOT NULL,
		verification_status TEXT NOT NULL DEFAULT '',
		country_id          TEXT NOT NULL DEFAULT '',
		state_id            TEXT NOT NULL DEFAULT '',
		city_name           TEXT NOT NULL DEFAULT '',
		lat_deg             DOUBLE PRECISION,
		lat_min             DOUBLE PRECISION,
		lat_sec             DOUBLE PRECISION,
		lat_hem             TEXT NOT NULL DEFAULT '',
		lon_deg             DOUBLE PRECISION,
		lon_min             DOUBLE PRECISION,
		lon_sec             DOUBLE PRECISION,
		lon_hem             TEXT NOT NULL DEFAULT '',
		obstacle_type       TEXT NOT NULL DEFAULT '',
		quantity            DOUBLE PRECISION,
		agl_height          DOUBLE PRECISION,
		amsl_height         DOUBLE PRECISION,
		lighting            TEXT NOT NULL DEFAULT '',
		horizontal_accuracy DOUBLE PRECISION,
		vertical_accuracy   DOUBLE PRECISION,
		mark_indicator      TEXT NOT NULL DEFAULT '',
		faa_study_number    TEXT NOT NULL DEFAULT '',
		action              TEXT NOT NULL DEFAULT '',
		julian_date         TEXT NOT NULL DEFAULT '',
		latitude            DOUBLE PRECISION NOT NULL,
		longitude           DOUBLE PRECISION NOT NULL,
		first_seen          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (oas_code, obstacle_number)
	);

	CREATE INDEX IF NOT EXISTS idx_obstacles_position ON obstacles(latitude, longitude);
	CREATE INDEX IF NOT EXISTS idx_obstacles_state ON obstacles(state_id);
	`

	_, err := d.pool.Exec(ctx, schema)
	return err
}

// upsertObstacleSQL inserts or refreshes one obstacle.
var upsertObstacleSQL = func() string {
	cols := strings.Fields(strings.ReplaceAll(obstacleColumns, ",", " "))
	params := make([]string, len(cols))
	var updates []string
	for i, c := range cols {
		params[i] = fmt.Sprintf("$%d", i+1)
		if c != "oas_code" && c != "obstacle_number" {
			updates = append(updates, c+" = EXCLUDED."+c)
		}
	}
	updates = append(updates, "updated_at = NOW()")
	return `INSERT INTO obstacles (` + strings.Join(cols, ", ") + `)
		VALUES (` + strings.Join(params, ", ") + `)
		ON CONFLICT (oas_code, obstacle_number) DO UPDATE SET ` + strings.Join(updates, ", ")
}()

// UpsertObstacles inserts or updates records in batches.
func (d *PostgresDB) UpsertObstacles(ctx context.Context, records []dof.Record) error {
	for start := 0; start < len(records); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(records))

		batch := &pgx.Batch{}
		for _, r := range records[start:end] {
			batch.Queue(upsertObstacleSQL, obstacleArgs(r)...)
		}

		br := d.pool.SendBatch(ctx, batch)
		for _, r := range records[start:end] {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return fmt.Errorf("upsert obstacle %s: %w", r.ID(), err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("close batch: %w", err)
		}
	}
	return nil
}

// ObstaclesInBounds returns obstacles whose decimal position lies in b,
// ordered by source line.
func (d *PostgresDB) ObstaclesInBounds(ctx context.Context, b geo.Bounds) ([]dof.Record, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT `+obstacleColumns+`
		FROM obstacles
		WHERE latitude BETWEEN $1 AND $2 AND longitude BETWEEN $3 AND $4
		ORDER BY line, oas_code, obstacle_number
	`, b.MinLat, b.MaxLat, b.MinLon, b.MaxLon)
	if err != nil {
		return nil, fmt.Errorf("query obstacles: %w", err)
	}
	defer rows.Close()

	var out []dof.Record
	for rows.Next() {
		r, err := scanObstacle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetObstacle retrieves one obstacle by OAS code and number.
func (d *PostgresDB) GetObstacle(ctx context.Context, oasCode, number string) (*dof.Record, error) {
	row := d.pool.QueryRow(ctx, `
		SELECT `+obstacleColumns+`
		FROM obstacles WHERE oas_code = $1 AND obstacle_number = $2
	`, oasCode, number)
	r, err := scanObstacle(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &r, nil
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"dof_filter/internal/dof"
	"dof_filter/internal/geo"
)

// SQLiteDB wraps a SQLite database used as a local obstacle cache.
type SQLiteDB struct {
	db *sql.DB
}

// OpenSQLite opens or creates a SQLite database at the given path.
func OpenSQLite(path string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrent access.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	if err := createSQLiteSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteDB{db: db}, nil
}

// Close closes the database connection.
func (d *SQLiteDB) Close() error {
	return d.db.Close()
}

// createSQLiteSchema creates the obstacle table and indices.
func createSQLiteSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS obstacles (
		line                INTEGER NOT NULL,
		oas_code            TEXT NOT NULL,
		obstacle_number     TEXT NOT NULL,
		verification_status TEXT,
		country_id          TEXT,
		state_id            TEXT,
		city_name           TEXT,
		lat_deg             REAL,
		lat_min             REAL,
		lat_sec             REAL,
		lat_hem             TEXT,
		lon_deg             REAL,
		lon_min             REAL,
		lon_sec             REAL,
		lon_hem             TEXT,
		obstacle_type       TEXT,
		quantity            REAL,
		agl_height          REAL,
		amsl_height         REAL,
		lighting            TEXT,
		horizontal_accuracy REAL,
		vertical_accuracy   REAL,
		mark_indicator      TEXT,
		faa_study_number    TEXT,
		action              TEXT,
		julian_date         TEXT,
		latitude            REAL NOT NULL,
		longitude           REAL NOT NULL,
		imported_at         TEXT DEFAULT (datetime('now')),
		PRIMARY KEY (oas_code, obstacle_number)
	);

	CREATE INDEX IF NOT EXISTS idx_obstacles_position ON obstacles(latitude, longitude);
	CREATE INDEX IF NOT EXISTS idx_obstacles_line ON obstacles(line);
	`

	_, err := db.Exec(schema)
	return err
}

// InsertObstacles stores records in a single transaction, replacing any
// existing obstacle with the same OAS code and number.
func (d *SQLiteDB) InsertObstacles(ctx context.Context, records []dof.Record) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", 28), ", ")
	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO obstacles (`+obstacleColumns+`) VALUES (`+placeholders+`)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, obstacleArgs(r)...); err != nil {
			return fmt.Errorf("insert obstacle %s: %w", r.ID(), err)
		}
	}

	return tx.Commit()
}

// ObstaclesInBounds returns obstacles whose decimal position lies in b,
// ordered by source line.
func (d *SQLiteDB) ObstaclesInBounds(ctx context.Context, b geo.Bounds) ([]dof.Record, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT `+obstacleColumns+`
		FROM obstacles
		WHERE latitude BETWEEN ? AND ? AND longitude BETWEEN ? AND ?
		ORDER BY line, oas_code, obstacle_number
	`, b.MinLat, b.MaxLat, b.MinLon, b.MaxLon)
	if err != nil {
		return nil, fmt.Errorf("query obstacles: %w", err)
	}
	defer func() { _ = rows.Close() }()

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

// GetObstacle retrieves one obstacle by OAS code and number, or nil if it
// is not cached.
func (d *SQLiteDB) GetObstacle(ctx context.Context, oasCode, number string) (*dof.Record, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT `+obstacleColumns+`
		FROM obstacles WHERE oas_code = ? AND obstacle_number = ?
	`, oasCode, number)
	r, err := scanObstacle(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &r, nil
}

// Count returns the number of stored obstacles.
func (d *SQLiteDB) Count(ctx context.Context) (int, error) {
	var n int
	err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM obstacles`).Scan(&n)
	return n, err
}

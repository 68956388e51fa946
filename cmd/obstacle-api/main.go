// Package main provides the obstacle-api server.
//
// This is a standalone REST API server that answers obstacle lookups and
// flight path filter requests. Obstacles come from one of:
//
//   - a DOF file or snapshot loaded into memory (-dof)
//   - a SQLite cache written by "dof_filter import" (-sqlite)
//   - PostgreSQL (default)
//
// Filter runs can be recorded to ClickHouse (-clickhouse) and announced on
// NATS (-nats-url).
//
// Usage:
//
//	obstacle-api [options]
//
// Options:
//
//	-dof PATH           Serve obstacles from a DOF file or .snap snapshot
//	-sqlite PATH        Serve obstacles from a SQLite cache
//	-pg-host HOST       PostgreSQL host (default: localhost, env: POSTGRES_HOST)
//	-pg-port PORT       PostgreSQL port (default: 5432, env: POSTGRES_PORT)
//	-pg-database DB     PostgreSQL database (default: dof, env: POSTGRES_DATABASE)
//	-pg-user USER       PostgreSQL user (default: dof, env: POSTGRES_USER)
//	-pg-password PASS   PostgreSQL password (default: dof, env: POSTGRES_PASSWORD)
//	-clickhouse         Record filter runs in ClickHouse (env: CLICKHOUSE_*)
//	-nats-url URL       Publish filter reports to NATS (env: NATS_URL)
//	-radius R           Default match radius in degrees (default: 0.5)
//	-alt-delta D        Default altitude band in feet (default: 500)
//	-cache N            Cached filter responses (default: 256)
//	-port N             HTTP port (default: 8082)
//	-auth               Enable API key authentication
//	-api-keys KEYS      Comma-separated list of valid API keys
//
// API Endpoints:
//
//	GET /api/v1/health
//	    Health check endpoint.
//
//	GET /api/v1/obstacles?lat_min=&lat_max=&lon_min=&lon_max=
//	    Obstacles inside a window (default: the configured window).
//
//	GET /api/v1/obstacles/{oas}/{number}
//	    A single obstacle, e.g. /api/v1/obstacles/06/000123.
//
//	POST /api/v1/filter
//	    Filter a flight path. Body: {"lat": [...], "lon": [...], "agl": [...]}
//	    with optional "radius_deg", "altitude_delta_ft" and "bounds".
//
// Authentication:
//
//	When -auth is enabled, requests must include an API key via:
//	  - X-API-Key header
//	  - Authorization: Bearer <key> header
//	  - ?api_key=<key> query parameter
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"dof_filter/internal/api"
	"dof_filter/internal/dof"
	"dof_filter/internal/filter"
	"dof_filter/internal/publish"
	"dof_filter/internal/storage"
)

func main() {
	def := storage.DefaultConfig()
	filterCfg := filter.DefaultConfig()

	// Obstacle source flags.
	dofPath := flag.String("dof", envOrDefault("DOF_INPUT", ""), "Serve obstacles from a DOF file or snapshot")
	sqlitePath := flag.String("sqlite", envOrDefault("DOF_SQLITE", ""), "Serve obstacles from a SQLite cache")

	// PostgreSQL connection flags.
	pgHost := flag.String("pg-host", envOrDefault("POSTGRES_HOST", def.Postgres.Host), "PostgreSQL host")
	pgPort := flag.Int("pg-port", envOrDefaultInt("POSTGRES_PORT", def.Postgres.Port), "PostgreSQL port")
	pgUser := flag.String("pg-user", envOrDefault("POSTGRES_USER", def.Postgres.User), "PostgreSQL user")
	pgPassword := flag.String("pg-password", envOrDefault("POSTGRES_PASSWORD", def.Postgres.Password), "PostgreSQL password")
	pgDB := flag.String("pg-database", envOrDefault("POSTGRES_DATABASE", def.Postgres.Database), "PostgreSQL database")

	// ClickHouse connection flags.
	useCH := flag.Bool("clickhouse", false, "Record filter runs in ClickHouse")
	chHost := flag.String("ch-host", envOrDefault("CLICKHOUSE_HOST", def.ClickHouse.Host), "ClickHouse host")
	chPort := flag.Int("ch-port", envOrDefaultInt("CLICKHOUSE_PORT", def.ClickHouse.Port), "ClickHouse port")
	chUser := flag.String("ch-user", envOrDefault("CLICKHOUSE_USER", def.ClickHouse.User), "ClickHouse user")
	chPassword := flag.String("ch-password", envOrDefault("CLICKHOUSE_PASSWORD", def.ClickHouse.Password), "ClickHouse password")
	chDB := flag.String("ch-database", envOrDefault("CLICKHOUSE_DATABASE", def.ClickHouse.Database), "ClickHouse database")

	// NATS flags.
	natsURL := flag.String("nats-url", envOrDefault("NATS_URL", ""), "Publish filter reports to this NATS server")
	subject := flag.String("subject", envOrDefault("NATS_SUBJECT", publish.DefaultSubject), "NATS subject for reports")

	// Filter defaults.
	flag.Float64Var(&filterCfg.RadiusDeg, "radius", filterCfg.RadiusDeg, "Default match radius in degrees")
	flag.Float64Var(&filterCfg.AltitudeDeltaFt, "alt-delta", filterCfg.AltitudeDeltaFt, "Default altitude band in feet")
	flag.Float64Var(&filterCfg.Bounds.MinLat, "lat-min", filterCfg.Bounds.MinLat, "Default window southern edge")
	flag.Float64Var(&filterCfg.Bounds.MaxLat, "lat-max", filterCfg.Bounds.MaxLat, "Default window northern edge")
	flag.Float64Var(&filterCfg.Bounds.MinLon, "lon-min", filterCfg.Bounds.MinLon, "Default window western edge")
	flag.Float64Var(&filterCfg.Bounds.MaxLon, "lon-max", filterCfg.Bounds.MaxLon, "Default window eastern edge")
	cacheSize := flag.Int("cache", 256, "Cached filter responses (0 disables)")

	// API server flags.
	port := flag.Int("port", envOrDefaultInt("PORT", 8082), "HTTP port for API server")
	authEnabled := flag.Bool("auth", false, "Enable API key authentication")
	apiKeys := flag.String("api-keys", "", "Comma-separated list of valid API keys (when auth enabled)")

	flag.Parse()

	ctx := context.Background()

	pgCfg := storage.PostgresConfig{
		Host:     *pgHost,
		Port:     *pgPort,
		Database: *pgDB,
		User:     *pgUser,
		Password: *pgPassword,
	}
	chCfg := storage.ClickHouseConfig{
		Host:     *chHost,
		Port:     *chPort,
		Database: *chDB,
		User:     *chUser,
		Password: *chPassword,
	}

	var (
		source     api.ObstacleSource
		sourceName string
		ch         *storage.ClickHouseDB
	)
	switch {
	case *dofPath != "":
		records, err := loadRecords(*dofPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading %s: %v\n", *dofPath, err)
			os.Exit(1)
		}
		log.Printf("Loaded %s obstacles from %s", humanize.Comma(int64(len(records))), *dofPath)
		source, sourceName = storage.NewMemoryStore(records), "file:"+filepath.Base(*dofPath)

	case *sqlitePath != "":
		db, err := storage.OpenSQLite(*sqlitePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening SQLite: %v\n", err)
			os.Exit(1)
		}
		defer db.Close()
		if n, err := db.Count(ctx); err == nil {
			log.Printf("SQLite cache %s holds %s obstacles", *sqlitePath, humanize.Comma(int64(n)))
		}
		source, sourceName = db, "sqlite"

	case *useCH:
		// PostgreSQL obstacles with ClickHouse run history.
		db, err := storage.Open(ctx, storage.Config{ClickHouse: chCfg, Postgres: pgCfg})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening databases: %v\n", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.CreateSchemas(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating schemas: %v\n", err)
			os.Exit(1)
		}
		source, sourceName, ch = db.PG, "postgres", db.CH

	default:
		pg, err := storage.OpenPostgres(ctx, pgCfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening PostgreSQL: %v\n", err)
			os.Exit(1)
		}
		defer pg.Close()
		if err := pg.CreateSchema(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating PostgreSQL schema: %v\n", err)
			os.Exit(1)
		}
		source, sourceName = pg, "postgres"
	}

	var sinks []api.ReportSink

	if *useCH && ch == nil {
		var err error
		ch, err = storage.OpenClickHouse(ctx, chCfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening ClickHouse: %v\n", err)
			os.Exit(1)
		}
		defer ch.Close()
		if err := ch.CreateSchema(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating ClickHouse schema: %v\n", err)
			os.Exit(1)
		}
	}
	if ch != nil {
		logTopObstacles(ctx, ch)
		sinks = append(sinks, ch)
	}

	if *natsURL != "" {
		pub, err := publish.Connect(*natsURL, *subject)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error connecting to NATS: %v\n", err)
			os.Exit(1)
		}
		defer pub.Close()
		log.Printf("Publishing filter reports to %s on %s", *natsURL, pub.Subject())
		sinks = append(sinks, pub)
	}

	// Parse API keys.
	var keys []string
	if *apiKeys != "" {
		keys = strings.Split(*apiKeys, ",")
		for i := range keys {
			keys[i] = strings.TrimSpace(keys[i])
		}
	}

	// Create and run server.
	server, err := api.NewServer(source, api.Config{
		Port:        *port,
		AuthEnabled: *authEnabled,
		APIKeys:     keys,
		Filter:      filterCfg,
		CacheSize:   *cacheSize,
		SourceName:  sourceName,
	}, sinks...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid server settings: %v\n", err)
		os.Exit(1)
	}

	if err := server.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}

// loadRecords reads a snapshot (".snap") or parses a DOF file.
func loadRecords(path string) ([]dof.Record, error) {
	if strings.EqualFold(filepath.Ext(path), ".snap") {
		snap, err := storage.LoadSnapshot(path)
		if err != nil {
			return nil, err
		}
		return snap.Records, nil
	}
	records, st, err := dof.ParseFile(path, dof.ParseOptions{})
	if err != nil {
		return nil, err
	}
	if st.UnknownHemisphere > 0 {
		log.Printf("warning: %d records have an unknown hemisphere code", st.UnknownHemisphere)
	}
	return records, nil
}

// logTopObstacles summarises the last week of recorded filter runs.
func logTopObstacles(ctx context.Context, ch *storage.ClickHouseDB) {
	top, err := ch.TopObstacles(ctx, time.Now().Add(-7*24*time.Hour), 5)
	if err != nil {
		log.Printf("clickhouse: top obstacles: %v", err)
		return
	}
	for _, h := range top {
		log.Printf("clickhouse: %s (%s) matched %s times, last %s",
			h.ObstacleID, h.ObstacleType, humanize.Comma(int64(h.Hits)), humanize.Time(h.LastSeen))
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

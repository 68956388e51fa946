// Command-line entry point for the DOF obstacle filter.
//
// Input files
// -----------
// The FAA Digital Obstacle File is distributed as fixed-width text, one
// obstacle per line, per state (e.g. "06-CA.Dat") or for the whole country
// (DOF.DAT inside DAILY_DOF.ZIP). Any of these are accepted:
//  1. Plain text:  06-CA.Dat
//  2. Compressed:  06-CA.Dat.gz, 06-CA.Dat.zst
//  3. FAA archive: DAILY_DOF_DAT.ZIP (first .dat entry)
//  4. Snapshot:    obstacles.snap written by "parse -snapshot"
//
// Flight tracks are CSV files of "lat,lon,agl" rows, with an optional header.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"

	"dof_filter/internal/dof"
	"dof_filter/internal/export"
	"dof_filter/internal/filter"
	"dof_filter/internal/flight"
	"dof_filter/internal/publish"
	"dof_filter/internal/storage"
)

func usage(w io.Writer) {
	fmt.Fprintln(w, "dof_filter - commands:")
	fmt.Fprintln(w, "  parse   - parse a DOF file and output JSON (optionally a snapshot)")
	fmt.Fprintln(w, "  filter  - select obstacles near a flight track")
	fmt.Fprintln(w, "  import  - load obstacles into SQLite and/or PostgreSQL")
	fmt.Fprintln(w, "  export  - render snapshot obstacles as KML or GeoJSON")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  dof_filter parse -input 06-CA.Dat [-output out.json] [-pretty] [-stats] [-workers N] [-snapshot ca.snap]")
	fmt.Fprintln(w, "  dof_filter filter -input 06-CA.Dat -track track.csv [-radius 0.5] [-alt-delta 500] [-index] [-format json|kml|geojson]")
	fmt.Fprintln(w, "  dof_filter import -input DOF.DAT [-sqlite obstacles.db] [-pg]   (no target: ./obstacles.db)")
	fmt.Fprintln(w, "  dof_filter export -snapshot ca.snap [-format kml|geojson] [-output ca.kml]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - Inputs may be plain, .gz, .zst, .zip or a .snap snapshot.")
	fmt.Fprintln(w, "  - Window flags (-lat-min, -lat-max, -lon-min, -lon-max) default to 36..40 N, 124..120 W.")
	fmt.Fprintln(w, "")
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}
	cmd := strings.ToLower(os.Args[1])
	switch cmd {
	case "parse":
		runParse(os.Args[2:])
	case "filter":
		runFilter(os.Args[2:])
	case "import":
		runImport(os.Args[2:])
	case "export":
		runExport(os.Args[2:])
	case "-h", "--help", "help":
		usage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage(os.Stderr)
		os.Exit(2)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// setupLogging sends log output to a rotating file when path is set.
func setupLogging(path string) {
	if path == "" {
		return
	}
	log.SetOutput(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    32, // MB
		MaxBackups: 3,
		MaxAge:     14,
		Compress:   true,
	})
}

// boundsFlags registers the window flags on fs.
func boundsFlags(fs *flag.FlagSet, cfg *filter.Config) {
	fs.Float64Var(&cfg.Bounds.MinLat, "lat-min", envOrDefaultFloat("DOF_LAT_MIN", cfg.Bounds.MinLat), "Southern edge of the window")
	fs.Float64Var(&cfg.Bounds.MaxLat, "lat-max", envOrDefaultFloat("DOF_LAT_MAX", cfg.Bounds.MaxLat), "Northern edge of the window")
	fs.Float64Var(&cfg.Bounds.MinLon, "lon-min", envOrDefaultFloat("DOF_LON_MIN", cfg.Bounds.MinLon), "Western edge of the window")
	fs.Float64Var(&cfg.Bounds.MaxLon, "lon-max", envOrDefaultFloat("DOF_LON_MAX", cfg.Bounds.MaxLon), "Eastern edge of the window")
}

// writeOutput runs write against stdout when path is empty, otherwise
// against a new file at path. Close errors are returned like write errors.
func writeOutput(path string, write func(io.Writer) error) error {
	if path == "" {
		return write(os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func marshalJSON(v any, pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(v, "", "  ")
	}
	return json.Marshal(v)
}

func printStats(source string, st dof.Stats, elapsed time.Duration) {
	fmt.Fprintf(os.Stderr,
		"stats: source=%s lines=%s records=%s header=%d separator=%s too_short=%s unknown_hemisphere=%s elapsed=%s\n",
		source, humanize.Comma(int64(st.Lines)), humanize.Comma(int64(st.Records)), st.Header,
		humanize.Comma(int64(st.Separator)), humanize.Comma(int64(st.TooShort)),
		humanize.Comma(int64(st.UnknownHemisphere)), elapsed.Round(time.Millisecond),
	)
}

func runParse(args []string) {
	fs := flag.NewFlagSet("parse", flag.ExitOnError)
	inPath := fs.String("input", envOrDefault("DOF_INPUT", ""), "Input DOF file")
	outPath := fs.String("output", "", "Output JSON file (default: stdout)")
	pretty := fs.Bool("pretty", false, "Pretty-print JSON output")
	showStats := fs.Bool("stats", false, "Print line counters to stderr")
	workers := fs.Int("workers", envOrDefaultInt("DOF_WORKERS", 0), "Parse goroutines (0 = one per CPU)")
	snapPath := fs.String("snapshot", "", "Also write a zstd/msgpack snapshot to this path")
	logFile := fs.String("log-file", "", "Write log output to a rotating file")
	_ = fs.Parse(args)

	setupLogging(*logFile)
	if *inPath == "" {
		fatalf("-input is required")
	}

	start := time.Now()
	records, st, err := loadRecords(*inPath, dof.ParseOptions{Workers: *workers})
	if err != nil {
		fatalf("Failed to read input: %v", err)
	}
	warnUnknownHemispheres(st)

	if *snapPath != "" {
		err := storage.SaveSnapshot(*snapPath, storage.Snapshot{
			Created: time.Now().UTC(),
			Source:  *inPath,
			Stats:   st,
			Records: records,
		})
		if err != nil {
			fatalf("Failed to write snapshot: %v", err)
		}
		log.Printf("wrote snapshot %s (%s records)", *snapPath, humanize.Comma(int64(len(records))))
	}

	enc, err := marshalJSON(records, *pretty)
	if err != nil {
		fatalf("JSON encode error: %v", err)
	}
	err = writeOutput(*outPath, func(w io.Writer) error {
		_, err := w.Write(append(enc, '\n'))
		return err
	})
	if err != nil {
		fatalf("Failed to write output: %v", err)
	}

	if *showStats {
		printStats(*inPath, st, time.Since(start))
	}
}

func runFilter(args []string) {
	cfg := filter.DefaultConfig()

	fs := flag.NewFlagSet("filter", flag.ExitOnError)
	inPath := fs.String("input", envOrDefault("DOF_INPUT", ""), "Input DOF file or snapshot")
	trackPath := fs.String("track", "", "Flight track CSV (lat,lon,agl)")
	fs.Float64Var(&cfg.RadiusDeg, "radius", envOrDefaultFloat("DOF_RADIUS", cfg.RadiusDeg), "Match radius in degrees")
	fs.Float64Var(&cfg.AltitudeDeltaFt, "alt-delta", envOrDefaultFloat("DOF_ALT_DELTA", cfg.AltitudeDeltaFt), "Altitude band in feet")
	boundsFlags(fs, &cfg)
	useIndex := fs.Bool("index", false, "Use the R-tree index instead of a linear scan")
	format := fs.String("format", "json", "Output format: json, kml or geojson")
	outPath := fs.String("output", "", "Output file (default: stdout)")
	pretty := fs.Bool("pretty", false, "Pretty-print JSON output")
	showStats := fs.Bool("stats", false, "Print counters to stderr")
	workers := fs.Int("workers", envOrDefaultInt("DOF_WORKERS", 0), "Parse goroutines (0 = one per CPU)")
	natsURL := fs.String("nats-url", envOrDefault("NATS_URL", ""), "Publish the report to this NATS server")
	subject := fs.String("subject", envOrDefault("NATS_SUBJECT", publish.DefaultSubject), "NATS subject for reports")
	logFile := fs.String("log-file", "", "Write log output to a rotating file")
	_ = fs.Parse(args)

	setupLogging(*logFile)
	if *inPath == "" || *trackPath == "" {
		fatalf("-input and -track are required")
	}
	if err := cfg.Validate(); err != nil {
		fatalf("Invalid filter settings: %v", err)
	}

	start := time.Now()
	records, st, err := loadRecords(*inPath, dof.ParseOptions{Workers: *workers})
	if err != nil {
		fatalf("Failed to read input: %v", err)
	}
	warnUnknownHemispheres(st)

	path, err := readTrack(*trackPath)
	if err != nil {
		fatalf("Failed to read track: %v", err)
	}

	var matches []filter.Match
	if *useIndex {
		matches = filter.NewIndex(records).Apply(path, cfg)
	} else {
		matches = filter.Apply(records, path, cfg)
	}
	if matches == nil {
		matches = []filter.Match{}
	}
	rep := filter.NewReport(cfg, path, matches)

	if *natsURL != "" {
		pub, err := publish.Connect(*natsURL, *subject)
		if err != nil {
			log.Printf("nats: %v", err)
		} else {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := pub.RecordReport(ctx, rep); err != nil {
				log.Printf("publish report %s: %v", rep.ID, err)
			}
			cancel()
			_ = pub.Close()
		}
	}

	err = writeOutput(*outPath, func(w io.Writer) error {
		return writeMatches(w, *format, rep, path, *pretty)
	})
	if err != nil {
		fatalf("Failed to write output: %v", err)
	}

	if *showStats {
		printStats(*inPath, st, time.Since(start))
		fmt.Fprintf(os.Stderr, "stats: samples=%s matches=%s\n",
			humanize.Comma(int64(len(path))), humanize.Comma(int64(len(matches))))
	}
}

// writeMatches renders rep in the requested format.
func writeMatches(w io.Writer, format string, rep filter.Report, path flight.Path, pretty bool) error {
	switch strings.ToLower(format) {
	case "json":
		enc, err := marshalJSON(rep, pretty)
		if err != nil {
			return err
		}
		_, err = w.Write(append(enc, '\n'))
		return err
	case "kml":
		return export.WriteKML(w, rep.Matches)
	case "geojson":
		return export.WriteGeoJSON(w, rep.Matches, path)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func runImport(args []string) {
	def := storage.DefaultConfig()

	fs := flag.NewFlagSet("import", flag.ExitOnError)
	inPath := fs.String("input", envOrDefault("DOF_INPUT", ""), "Input DOF file or snapshot")
	sqlitePath := fs.String("sqlite", envOrDefault("DOF_SQLITE", ""), "SQLite database path")
	usePG := fs.Bool("pg", false, "Upsert into PostgreSQL")
	pgHost := fs.String("pg-host", envOrDefault("POSTGRES_HOST", def.Postgres.Host), "PostgreSQL host")
	pgPort := fs.Int("pg-port", envOrDefaultInt("POSTGRES_PORT", def.Postgres.Port), "PostgreSQL port")
	pgUser := fs.String("pg-user", envOrDefault("POSTGRES_USER", def.Postgres.User), "PostgreSQL user")
	pgPassword := fs.String("pg-password", envOrDefault("POSTGRES_PASSWORD", def.Postgres.Password), "PostgreSQL password")
	pgDB := fs.String("pg-database", envOrDefault("POSTGRES_DATABASE", def.Postgres.Database), "PostgreSQL database")
	workers := fs.Int("workers", envOrDefaultInt("DOF_WORKERS", 0), "Parse goroutines (0 = one per CPU)")
	showStats := fs.Bool("stats", false, "Print counters to stderr")
	logFile := fs.String("log-file", "", "Write log output to a rotating file")
	_ = fs.Parse(args)

	setupLogging(*logFile)
	if *inPath == "" {
		fatalf("-input is required")
	}
	if *sqlitePath == "" && !*usePG {
		*sqlitePath = def.SQLitePath
		log.Printf("no -sqlite or -pg given, importing into %s", *sqlitePath)
	}

	start := time.Now()
	records, st, err := loadRecords(*inPath, dof.ParseOptions{Workers: *workers})
	if err != nil {
		fatalf("Failed to read input: %v", err)
	}
	warnUnknownHemispheres(st)

	eg, ctx := errgroup.WithContext(context.Background())

	if *sqlitePath != "" {
		eg.Go(func() error {
			db, err := storage.OpenSQLite(*sqlitePath)
			if err != nil {
				return fmt.Errorf("sqlite: %w", err)
			}
			defer db.Close()
			if err := db.InsertObstacles(ctx, records); err != nil {
				return fmt.Errorf("sqlite: %w", err)
			}
			log.Printf("sqlite: stored %s obstacles in %s", humanize.Comma(int64(len(records))), *sqlitePath)
			return nil
		})
	}

	if *usePG {
		eg.Go(func() error {
			pg, err := storage.OpenPostgres(ctx, storage.PostgresConfig{
				Host:     *pgHost,
				Port:     *pgPort,
				Database: *pgDB,
				User:     *pgUser,
				Password: *pgPassword,
			})
			if err != nil {
				return err
			}
			defer pg.Close()
			if err := pg.CreateSchema(ctx); err != nil {
				return fmt.Errorf("postgres schema: %w", err)
			}
			if err := pg.UpsertObstacles(ctx, records); err != nil {
				return fmt.Errorf("postgres: %w", err)
			}
			log.Printf("postgres: upserted %s obstacles", humanize.Comma(int64(len(records))))
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		fatalf("Import failed: %v", err)
	}

	if *showStats {
		printStats(*inPath, st, time.Since(start))
	}
}

func runExport(args []string) {
	cfg := filter.DefaultConfig()

	fs := flag.NewFlagSet("export", flag.ExitOnError)
	snapPath := fs.String("snapshot", "", "Snapshot written by parse -snapshot")
	format := fs.String("format", "kml", "Output format: kml or geojson")
	outPath := fs.String("output", "", "Output file (default: stdout)")
	boundsFlags(fs, &cfg)
	logFile := fs.String("log-file", "", "Write log output to a rotating file")
	_ = fs.Parse(args)

	setupLogging(*logFile)
	if *snapPath == "" {
		fatalf("-snapshot is required")
	}
	if f := strings.ToLower(*format); f != "kml" && f != "geojson" {
		fatalf("Unknown format %q (want kml or geojson)", *format)
	}
	if err := cfg.Validate(); err != nil {
		fatalf("Invalid window: %v", err)
	}

	snap, err := storage.LoadSnapshot(*snapPath)
	if err != nil {
		fatalf("Failed to read snapshot: %v", err)
	}

	matches := windowMatches(snap.Records, cfg)
	log.Printf("export: %s of %s obstacles inside the window",
		humanize.Comma(int64(len(matches))), humanize.Comma(int64(len(snap.Records))))

	rep := filter.Report{Config: cfg, Matches: matches}
	err = writeOutput(*outPath, func(w io.Writer) error {
		return writeMatches(w, *format, rep, nil, false)
	})
	if err != nil {
		fatalf("Failed to write output: %v", err)
	}
}

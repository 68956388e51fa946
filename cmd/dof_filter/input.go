package main

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"dof_filter/internal/dof"
	"dof_filter/internal/filter"
	"dof_filter/internal/flight"
	"dof_filter/internal/storage"
)

// loadRecords reads a snapshot (".snap") or parses a DOF file.
func loadRecords(path string, opts dof.ParseOptions) ([]dof.Record, dof.Stats, error) {
	if strings.EqualFold(filepath.Ext(path), ".snap") {
		snap, err := storage.LoadSnapshot(path)
		if err != nil {
			return nil, dof.Stats{}, err
		}
		return snap.Records, snap.Stats, nil
	}
	return dof.ParseFile(path, opts)
}

func readTrack(path string) (flight.Path, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return flight.ReadCSV(f)
}

func warnUnknownHemispheres(st dof.Stats) {
	if st.UnknownHemisphere > 0 {
		log.Printf("warning: %d records have an unknown hemisphere code and were placed as N/E", st.UnknownHemisphere)
	}
}

// windowMatches wraps every record inside cfg.Bounds as a Match with no
// associated path sample.
func windowMatches(records []dof.Record, cfg filter.Config) []filter.Match {
	inside := storage.NewMemoryStore(records).Index().InBounds(cfg.Bounds)
	matches := make([]filter.Match, len(inside))
	for i, r := range inside {
		lat, lon := r.Position()
		matches[i] = filter.Match{Record: r, Lat: lat, Lon: lon, SampleIndex: -1}
	}
	return matches
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

func envOrDefaultFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

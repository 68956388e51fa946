package main

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dof_filter/internal/dof"
	"dof_filter/internal/filter"
	"dof_filter/internal/storage"
)

func record(line int, latDeg, lonDeg float64) dof.Record {
	return dof.Record{
		Line:           line,
		OASCode:        "06",
		ObstacleNumber: "000100",
		LatDeg:         latDeg,
		LatHem:         "N",
		LonDeg:         lonDeg,
		LonHem:         "W",
		ObstacleType:   "TOWER",
		AGL:            250,
		AMSL:           900,
	}
}

func TestLoadRecordsSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ca.SNAP")
	want := storage.Snapshot{
		Stats:   dof.Stats{Lines: 5, Header: 4, Records: 1},
		Records: []dof.Record{record(4, 38, 122)},
	}
	if err := storage.SaveSnapshot(path, want); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	records, st, err := loadRecords(path, dof.ParseOptions{})
	if err != nil {
		t.Fatalf("loadRecords: %v", err)
	}
	if len(records) != 1 || records[0].Line != 4 {
		t.Errorf("records = %+v", records)
	}
	if st != want.Stats {
		t.Errorf("stats = %+v, want %+v", st, want.Stats)
	}
}

func TestLoadRecordsDOFFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "06-CA.Dat")
	text := "header 1\nheader 2\nheader 3\nheader 4\n------------\n\n"
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}

	records, st, err := loadRecords(path, dof.ParseOptions{Workers: 1})
	if err != nil {
		t.Fatalf("loadRecords: %v", err)
	}
	if len(records) != 0 || st.Header != 4 || st.Separator != 1 || st.TooShort != 1 {
		t.Errorf("records = %d, stats = %+v", len(records), st)
	}
}

func TestLoadRecordsMissing(t *testing.T) {
	if _, _, err := loadRecords(filepath.Join(t.TempDir(), "missing.Dat"), dof.ParseOptions{}); err == nil {
		t.Error("expected error")
	}
}

func TestWindowMatches(t *testing.T) {
	records := []dof.Record{
		record(4, 38, 122),
		record(5, 35, 122),
		record(6, 37, 121),
	}
	matches := windowMatches(records, filter.DefaultConfig())
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(matches))
	}
	for i, want := range []int{4, 6} {
		m := matches[i]
		if m.Record.Line != want || m.SampleIndex != -1 {
			t.Errorf("match %d = line %d sample %d", i, m.Record.Line, m.SampleIndex)
		}
	}
	if matches[0].Lat != 38 || matches[0].Lon != -122 {
		t.Errorf("position = %v, %v", matches[0].Lat, matches[0].Lon)
	}
}

func TestWriteMatches(t *testing.T) {
	rep := filter.Report{
		ID:      "run-1",
		Config:  filter.DefaultConfig(),
		Matches: windowMatches([]dof.Record{record(4, 38, 122)}, filter.DefaultConfig()),
	}

	tests := []struct {
		format  string
		want    string
		wantErr bool
	}{
		{format: "json", want: `"id":"run-1"`},
		{format: "KML", want: "<kml"},
		{format: "geojson", want: `"FeatureCollection"`},
		{format: "csv", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			err := writeMatches(&buf, tt.format, rep, nil, false)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("writeMatches: %v", err)
			}
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("output missing %q:\n%s", tt.want, buf.String())
			}
		})
	}
}

func TestWriteOutput(t *testing.T) {
	dir := t.TempDir()

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(dir, "matches.kml")
		err := writeOutput(path, func(w io.Writer) error {
			return writeMatches(w, "kml", filter.Report{}, nil, false)
		})
		if err != nil {
			t.Fatalf("writeOutput: %v", err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(data), "</kml>") {
			t.Errorf("file not flushed:\n%s", data)
		}
	})

	t.Run("write error", func(t *testing.T) {
		errFull := errors.New("disk full")
		err := writeOutput(filepath.Join(dir, "partial.json"), func(io.Writer) error {
			return errFull
		})
		if !errors.Is(err, errFull) {
			t.Errorf("err = %v, want %v", err, errFull)
		}
	})

	t.Run("bad format", func(t *testing.T) {
		err := writeOutput(filepath.Join(dir, "out.csv"), func(w io.Writer) error {
			return writeMatches(w, "csv", filter.Report{}, nil, false)
		})
		if err == nil {
			t.Error("expected error")
		}
	})

	t.Run("create error", func(t *testing.T) {
		called := false
		err := writeOutput(filepath.Join(dir, "missing", "out.json"), func(io.Writer) error {
			called = true
			return nil
		})
		if err == nil || called {
			t.Errorf("err = %v, called = %v", err, called)
		}
	})
}

func TestEnvOrDefaultFloat(t *testing.T) {
	t.Setenv("DOF_TEST_RADIUS", "0.1")
	if got := envOrDefaultFloat("DOF_TEST_RADIUS", 0.5); got != 0.1 {
		t.Errorf("got %v, want 0.1", got)
	}
	t.Setenv("DOF_TEST_RADIUS", "wide")
	if got := envOrDefaultFloat("DOF_TEST_RADIUS", 0.5); got != 0.5 {
		t.Errorf("got %v, want 0.5", got)
	}
}

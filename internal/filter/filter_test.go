package filter

import (
	"encoding/json"
	"errors"
	"math"
	"math/rand"
	"strings"
	"testing"

	"dof_filter/internal/dof"
	"dof_filter/internal/flight"
	"dof_filter/internal/geo"
)

// obstacle builds a record at whole-degree DMS coordinates.
func obstacle(line int, latDeg, lonDeg, agl float64) dof.Record {
	latHem, lonHem := "N", "E"
	if latDeg < 0 {
		latHem, latDeg = "S", -latDeg
	}
	if lonDeg < 0 {
		lonHem, lonDeg = "W", -lonDeg
	}
	return dof.Record{
		Line:   line,
		LatDeg: latDeg,
		LatHem: latHem,
		LonDeg: lonDeg,
		LonHem: lonHem,
		AGL:    agl,
	}
}

func TestApplyScenarios(t *testing.T) {
	path := flight.Path{{Lat: 38.0, Lon: -122.0, AGL: 250}}
	tower := obstacle(4, 38, -122, 300)

	tests := []struct {
		name     string
		record   dof.Record
		radius   float64
		altDelta float64
		want     bool
	}{
		{name: "retained", record: tower, radius: 0.5, altDelta: 500, want: true},
		{name: "altitude band too small", record: tower, radius: 0.5, altDelta: 10, want: false},
		{name: "altitude band equal to delta", record: tower, radius: 0.5, altDelta: 50, want: false},
		{name: "outside bounds", record: obstacle(4, 35, -122, 300), radius: 100, altDelta: 1e6, want: false},
		{name: "too far", record: obstacle(4, 39, -122, 300), radius: 0.5, altDelta: 500, want: false},
		{name: "at radius", record: obstacle(4, 38.5, -122, 300), radius: 0.5, altDelta: 500, want: true},
		{name: "NaN height", record: obstacle(4, 38, -122, math.NaN()), radius: 0.5, altDelta: 1e9, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{Bounds: DefaultBounds, RadiusDeg: tt.radius, AltitudeDeltaFt: tt.altDelta}
			got := Apply([]dof.Record{tt.record}, path, cfg)
			if (len(got) == 1) != tt.want {
				t.Errorf("retained = %v, want %v", len(got) == 1, tt.want)
			}
		})
	}
}

// dofLine lays out a 127-column DOF data line. Fields map 1-based start
// columns to their text.
func dofLine(fields map[int]string) string {
	line := []byte(strings.Repeat(" ", 127))
	for col, text := range fields {
		copy(line[col-1:], text)
	}
	return string(line)
}

func towerLine(num, latDeg, agl string) string {
	return dofLine(map[int]string{
		1:  "06",
		4:  num,
		11: "O",
		13: "US",
		16: "CA",
		19: "SAN JOSE",
		36: latDeg,
		39: "00",
		42: "00.00",
		47: "N",
		49: "122",
		53: "00",
		56: "00.00",
		61: "W",
		63: "TOWER",
		82: "1",
		84: agl,
		90: "00900",
		96: "R",
	})
}

func TestParsedLinesThroughFilter(t *testing.T) {
	lines := []string{
		"  UPDATED DATA",
		"header 2",
		"header 3",
		"header 4",
		strings.Repeat("-", 127),
		towerLine("000001", "38", "00300"),
		towerLine("000002", "35", "00300"), // south of the window
		"",
	}
	records, st := dof.ParseLines(lines, dof.ParseOptions{Workers: 2})
	if st.Records != 2 {
		t.Fatalf("parsed %d records, want 2 (stats %+v)", st.Records, st)
	}

	path, err := flight.NewPath([]float64{38.0}, []float64{-122.0}, []float64{250})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		delta     float64
		wantLines []int
	}{
		{name: "within altitude band", delta: 500, wantLines: []int{5}},
		{name: "outside altitude band", delta: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.AltitudeDeltaFt = tt.delta

			got := Apply(records, path, cfg)
			if len(got) != len(tt.wantLines) {
				t.Fatalf("got %d matches, want %d", len(got), len(tt.wantLines))
			}
			for i, line := range tt.wantLines {
				m := got[i]
				if m.Record.Line != line || m.Lat != 38 || m.Lon != -122 || m.DeltaFt != 50 {
					t.Errorf("match %d = %+v", i, m)
				}
			}

			if n := len(NewIndex(records).Apply(path, cfg)); n != len(tt.wantLines) {
				t.Errorf("index returned %d matches, want %d", n, len(tt.wantLines))
			}
		})
	}
}

func TestApplyMatchDetails(t *testing.T) {
	path := flight.Path{
		{Lat: 30, Lon: -100, AGL: 0},
		{Lat: 38.1, Lon: -122, AGL: 1000},
		{Lat: 38, Lon: -122, AGL: 250},
	}
	got := Apply([]dof.Record{obstacle(9, 38, -122, 300)}, path, DefaultConfig())
	if len(got) != 1 {
		t.Fatalf("got %d matches, want 1", len(got))
	}
	m := got[0]
	if m.SampleIndex != 2 {
		t.Errorf("SampleIndex = %d, want 2", m.SampleIndex)
	}
	if m.Lat != 38 || m.Lon != -122 || m.DeltaFt != 50 || m.DistanceDeg != 0 {
		t.Errorf("unexpected match %+v", m)
	}
	if m.Record.Line != 9 {
		t.Errorf("Record.Line = %d", m.Record.Line)
	}
}

func TestApplyBoundsEdges(t *testing.T) {
	cfg := Config{Bounds: DefaultBounds, RadiusDeg: 10, AltitudeDeltaFt: 1000}
	path := flight.Path{{Lat: 38, Lon: -122, AGL: 0}}

	records := []dof.Record{
		obstacle(0, 40, -122, 0), // on lat_max
		obstacle(1, 38, -124, 0), // on lon_min
		obstacle(2, 41, -122, 0), // beyond lat_max
		obstacle(3, 38, -125, 0), // beyond lon_min
		obstacle(4, 36, -120, 0), // corner
	}
	got := Apply(records, path, cfg)

	var lines []int
	for _, m := range got {
		lines = append(lines, m.Record.Line)
	}
	want := []int{0, 1, 4}
	if len(lines) != len(want) {
		t.Fatalf("lines = %v, want %v", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("lines = %v, want %v", lines, want)
		}
	}
}

func TestApplyPreservesOrder(t *testing.T) {
	var records []dof.Record
	for i := 0; i < 50; i++ {
		records = append(records, obstacle(i, 38+float64(i%5)*0.1, -122, 100))
	}
	path := flight.Path{{Lat: 38.2, Lon: -122, AGL: 100}}
	got := Apply(records, path, Config{Bounds: DefaultBounds, RadiusDeg: 0.15, AltitudeDeltaFt: 10})

	if len(got) != 30 {
		t.Fatalf("got %d matches, want 30", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Record.Line <= got[i-1].Record.Line {
			t.Fatalf("order broken at %d", i)
		}
	}
}

func TestApplyEmptyPath(t *testing.T) {
	got := Apply([]dof.Record{obstacle(0, 38, -122, 0)}, nil, DefaultConfig())
	if len(got) != 0 {
		t.Errorf("expected no matches for empty path, got %d", len(got))
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "default", mutate: func(*Config) {}},
		{name: "zero radius", mutate: func(c *Config) { c.RadiusDeg = 0 }},
		{name: "negative radius", mutate: func(c *Config) { c.RadiusDeg = -1 }, wantErr: true},
		{name: "NaN radius", mutate: func(c *Config) { c.RadiusDeg = math.NaN() }, wantErr: true},
		{name: "infinite radius", mutate: func(c *Config) { c.RadiusDeg = math.Inf(1) }, wantErr: true},
		{name: "negative delta", mutate: func(c *Config) { c.AltitudeDeltaFt = -5 }, wantErr: true},
		{name: "infinite delta", mutate: func(c *Config) { c.AltitudeDeltaFt = math.Inf(1) }, wantErr: true},
		{name: "NaN delta", mutate: func(c *Config) { c.AltitudeDeltaFt = math.NaN() }, wantErr: true},
		{name: "infinite bounds", mutate: func(c *Config) { c.Bounds.MaxLon = math.Inf(1) }, wantErr: true},
		{name: "inverted bounds", mutate: func(c *Config) { c.Bounds.MinLat = 45 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr != (err != nil) {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
			if err == nil {
				if _, err := json.Marshal(NewReport(cfg, nil, nil)); err != nil {
					t.Errorf("valid config does not encode: %v", err)
				}
			}
		})
	}
}

func TestIndexMatchesLinear(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	var records []dof.Record
	for i := 0; i < 2000; i++ {
		r := dof.Record{
			Line:   i,
			LatDeg: float64(35 + rng.Intn(6)),
			LatMin: float64(rng.Intn(60)),
			LatSec: rng.Float64() * 60,
			LatHem: "N",
			LonDeg: float64(119 + rng.Intn(6)),
			LonMin: float64(rng.Intn(60)),
			LonSec: rng.Float64() * 60,
			LonHem: "W",
			AGL:    float64(rng.Intn(2000)),
		}
		if i%97 == 0 {
			r.AGL = math.NaN()
		}
		records = append(records, r)
	}

	var path flight.Path
	for i := 0; i < 40; i++ {
		path = append(path, flight.Sample{
			Lat: 36 + rng.Float64()*4,
			Lon: -124 + rng.Float64()*4,
			AGL: rng.Float64() * 2000,
		})
	}

	ix := NewIndex(records)
	if ix.Len() != len(records) {
		t.Fatalf("Len() = %d", ix.Len())
	}

	for _, radius := range []float64{0, 0.05, 0.1, 0.5, 3} {
		cfg := Config{Bounds: DefaultBounds, RadiusDeg: radius, AltitudeDeltaFt: 300}
		linear := Apply(records, path, cfg)
		indexed := ix.Apply(path, cfg)

		if len(linear) != len(indexed) {
			t.Fatalf("radius %v: linear %d matches, indexed %d", radius, len(linear), len(indexed))
		}
		for i := range linear {
			if linear[i].Record.Line != indexed[i].Record.Line || linear[i].SampleIndex != indexed[i].SampleIndex {
				t.Fatalf("radius %v: match %d differs", radius, i)
			}
		}
	}
}

func TestIndexInBounds(t *testing.T) {
	records := []dof.Record{
		obstacle(0, 38, -122, 0),
		obstacle(1, 35, -122, 0),
		obstacle(2, 40, -124, 0),
		obstacle(3, 37, -121, 0),
	}
	ix := NewIndex(records)

	got := ix.InBounds(DefaultBounds)
	if len(got) != 3 || got[0].Line != 0 || got[1].Line != 2 || got[2].Line != 3 {
		t.Errorf("InBounds = %+v", got)
	}

	if got := ix.InBounds(geo.Bounds{MinLat: 1, MaxLat: 0}); got != nil {
		t.Errorf("expected nil for invalid bounds, got %d", len(got))
	}

	// A degenerate window still finds an obstacle sitting exactly on it.
	if got := ix.InBounds(geo.Bounds{MinLat: 35, MaxLat: 35, MinLon: -122, MaxLon: -122}); len(got) != 1 || got[0].Line != 1 {
		t.Errorf("point window = %+v", got)
	}

	if all := ix.Records(); len(all) != 4 || all[1].Line != 1 {
		t.Errorf("Records = %+v", all)
	}
}

func TestNewReport(t *testing.T) {
	path := flight.Path{{Lat: 38, Lon: -122, AGL: 250}}
	rep := NewReport(DefaultConfig(), path, nil)
	if rep.ID == "" || rep.Samples != 1 || rep.CreatedAt.IsZero() {
		t.Errorf("unexpected report %+v", rep)
	}
	if other := NewReport(DefaultConfig(), path, nil); other.ID == rep.ID {
		t.Error("report IDs should be unique")
	}
}

package export

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"math"
	"strings"
	"testing"
	"time"

	"dof_filter/internal/dof"
	"dof_filter/internal/filter"
	"dof_filter/internal/flight"
)

func sampleMatches() []filter.Match {
	tower := dof.Record{
		OASCode:        "06",
		ObstacleNumber: "000123",
		ObstacleType:   "TOWER",
		City:           "SAN FRANCISCO",
		AGL:            300,
		AMSL:           math.NaN(),
		Lighting:       "R",
		Action:         "A",
		JulianDate:     "2019123",
	}
	unplaced := dof.Record{
		OASCode:        "06",
		ObstacleNumber: "000999",
		ObstacleType:   "BLDG",
	}
	return []filter.Match{
		{Record: tower, Lat: 38, Lon: -122},
		{Record: unplaced},
	}
}

func TestBuildKML(t *testing.T) {
	k := BuildKML(sampleMatches(), time.Date(2025, 1, 19, 0, 0, 0, 0, time.UTC))

	if len(k.Document.Placemarks) != 1 {
		t.Fatalf("got %d placemarks, want 1 (origin obstacle skipped)", len(k.Document.Placemarks))
	}
	pm := k.Document.Placemarks[0]
	if pm.Point.Coordinates != "-122.000000,38.000000,0.0" {
		t.Errorf("coordinates = %q", pm.Point.Coordinates)
	}
	for _, want := range []string{"OAS#06-000123", "AGL Height: 300 ft", "AMSL Height: ? ft", "City: SAN FRANCISCO"} {
		if !strings.Contains(pm.Description, want) {
			t.Errorf("description missing %q: %s", want, pm.Description)
		}
	}
}

func TestWriteKML(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteKML(&buf, sampleMatches()); err != nil {
		t.Fatalf("WriteKML: %v", err)
	}
	if !strings.HasPrefix(buf.String(), xml.Header) {
		t.Error("missing XML header")
	}
	var k KML
	if err := xml.Unmarshal(buf.Bytes(), &k); err != nil {
		t.Fatalf("output is not valid XML: %v", err)
	}
}

func TestWriteGeoJSON(t *testing.T) {
	path := flight.Path{{Lat: 38, Lon: -122, AGL: 250}, {Lat: 38.1, Lon: -122.1, AGL: 300}}

	var buf bytes.Buffer
	if err := WriteGeoJSON(&buf, sampleMatches(), path); err != nil {
		t.Fatalf("WriteGeoJSON: %v", err)
	}

	var doc struct {
		Type     string `json:"type"`
		Features []struct {
			ID       string         `json:"id"`
			Geometry map[string]any `json:"geometry"`
			Props    map[string]any `json:"properties"`
		} `json:"features"`
	}
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if doc.Type != "FeatureCollection" || len(doc.Features) != 2 {
		t.Fatalf("unexpected document: %s", buf.String())
	}
	if doc.Features[0].ID != "06-000123" || doc.Features[0].Props["amsl_ft"] != nil {
		t.Errorf("obstacle feature = %+v", doc.Features[0])
	}
	if doc.Features[1].Geometry["type"] != "LineString" {
		t.Errorf("path geometry = %v", doc.Features[1].Geometry)
	}
}

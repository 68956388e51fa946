package export

import (
	"fmt"
	"io"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"dof_filter/internal/filter"
	"dof_filter/internal/flight"
)

func nullableFloat(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

// BuildGeoJSON returns a feature collection with one point per obstacle and,
// when path is non-empty, a line string for the flight track.
func BuildGeoJSON(matches []filter.Match, path flight.Path) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	for _, m := range matches {
		if !plottable(m) {
			continue
		}
		r := m.Record
		f := geojson.NewFeature(orb.Point{m.Lon, m.Lat})
		f.ID = r.ID()
		f.Properties["kind"] = "obstacle"
		f.Properties["obstacle_type"] = r.ObstacleType
		f.Properties["city"] = r.City
		f.Properties["agl_ft"] = nullableFloat(r.AGL)
		f.Properties["amsl_ft"] = nullableFloat(r.AMSL)
		f.Properties["lighting"] = r.Lighting
		f.Properties["action"] = r.Action
		f.Properties["julian_date"] = r.JulianDate
		f.Properties["sample_index"] = m.SampleIndex
		f.Properties["description"] = describe(m)
		fc.Append(f)
	}

	if len(path) > 0 {
		line := make(orb.LineString, len(path))
		agls := make([]any, len(path))
		for i, s := range path {
			line[i] = orb.Point{s.Lon, s.Lat}
			agls[i] = nullableFloat(s.AGL)
		}
		f := geojson.NewFeature(line)
		f.Properties["kind"] = "flight_path"
		f.Properties["agl_ft"] = agls
		fc.Append(f)
	}

	return fc
}

// WriteGeoJSON writes matches and the flight path as GeoJSON.
func WriteGeoJSON(w io.Writer, matches []filter.Match, path flight.Path) error {
	data, err := BuildGeoJSON(matches, path).MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshal geojson: %w", err)
	}
	_, err = w.Write(data)
	return err
}

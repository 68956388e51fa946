// Package flight holds aircraft position samples and reads them from track
// files.
package flight

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"dof_filter/internal/geo"
)

// ErrLengthMismatch is returned when the latitude, longitude and altitude
// arrays of a path differ in length.
var ErrLengthMismatch = errors.New("flight path arrays differ in length")

// Sample is one aircraft position.
type Sample struct {
	Lat float64 `json:"lat"` // Decimal degrees.
	Lon float64 `json:"lon"` // Decimal degrees.
	AGL float64 `json:"agl"` // Height above ground level, feet.
}

// Path is an ordered sequence of samples.
type Path []Sample

// NewPath zips parallel latitude, longitude and altitude arrays into a Path.
func NewPath(lats, lons, agls []float64) (Path, error) {
	if len(lats) != len(lons) || len(lats) != len(agls) {
		return nil, fmt.Errorf("%w: lat=%d lon=%d agl=%d", ErrLengthMismatch, len(lats), len(lons), len(agls))
	}
	p := make(Path, len(lats))
	for i := range lats {
		p[i] = Sample{Lat: lats[i], Lon: lons[i], AGL: agls[i]}
	}
	return p, nil
}

// ReadCSV reads a track as "lat,lon,agl" rows. A first row whose latitude
// does not parse is taken as a header. Latitudes and longitudes may be
// decimal degrees or packed DMS with a hemisphere suffix ("3800.0N").
// Blank lines and lines starting with '#' are ignored.
func ReadCSV(r io.Reader) (Path, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var path Path
	for row := 1; ; row++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("track csv: %w", err)
		}

		lat, ok := geo.ParseLatitude(rec[0])
		if !ok && row == 1 {
			continue
		}
		if len(rec) < 3 {
			return nil, fmt.Errorf("track row %d: want 3 columns, got %d", row, len(rec))
		}
		if !ok {
			return nil, fmt.Errorf("track row %d: bad latitude %q", row, rec[0])
		}
		lon, ok := geo.ParseLongitude(rec[1])
		if !ok {
			return nil, fmt.Errorf("track row %d: bad longitude %q", row, rec[1])
		}
		agl, err := strconv.ParseFloat(strings.TrimSpace(rec[2]), 64)
		if err != nil {
			return nil, fmt.Errorf("track row %d: bad altitude %q", row, rec[2])
		}

		path = append(path, Sample{Lat: lat, Lon: lon, AGL: agl})
	}
	return path, nil
}

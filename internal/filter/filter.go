// Package filter selects the obstacles that are relevant to a flight path.
//
// An obstacle is relevant when it lies inside a static geographic window and
// at least one path sample is both within a planar radius (in degrees) and
// within an altitude band of the obstacle's height above ground.
package filter

import (
	"errors"
	"fmt"
	"math"

	"dof_filter/internal/dof"
	"dof_filter/internal/flight"
	"dof_filter/internal/geo"
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("invalid filter config")

// Config holds the filter parameters.
type Config struct {
	Bounds          geo.Bounds `json:"bounds"`
	RadiusDeg       float64    `json:"radius_deg"`        // Match when planar distance <= RadiusDeg.
	AltitudeDeltaFt float64    `json:"altitude_delta_ft"` // Match when |AGL difference| < AltitudeDeltaFt.
}

// DefaultBounds is the Northern California window the tool was first used with.
var DefaultBounds = geo.Bounds{MinLat: 36, MaxLat: 40, MinLon: -124, MaxLon: -120}

// DefaultConfig returns the default window, a 0.5 degree radius and a 500 ft
// altitude band.
func DefaultConfig() Config {
	return Config{
		Bounds:          DefaultBounds,
		RadiusDeg:       0.5,
		AltitudeDeltaFt: 500,
	}
}

// Validate rejects negative or non-finite thresholds and malformed bounds.
// A valid Config always encodes as JSON.
func (c Config) Validate() error {
	if !finite(c.RadiusDeg) || c.RadiusDeg < 0 {
		return fmt.Errorf("%w: radius %v", ErrInvalidConfig, c.RadiusDeg)
	}
	if !finite(c.AltitudeDeltaFt) || c.AltitudeDeltaFt < 0 {
		return fmt.Errorf("%w: altitude delta %v", ErrInvalidConfig, c.AltitudeDeltaFt)
	}
	if !c.Bounds.Valid() {
		return fmt.Errorf("%w: bounds %+v", ErrInvalidConfig, c.Bounds)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Match is an obstacle retained by the filter.
type Match struct {
	Record      dof.Record `json:"obstacle"`
	Lat         float64    `json:"lat"`
	Lon         float64    `json:"lon"`
	SampleIndex int        `json:"sample_index"` // First path sample that matched.
	DistanceDeg float64    `json:"distance_deg"`
	DeltaFt     float64    `json:"delta_ft"`
}

// Apply returns the records relevant to path, in input order.
func Apply(records []dof.Record, path flight.Path, cfg Config) []Match {
	var out []Match
	for _, r := range records {
		if m, ok := match(r, path, cfg); ok {
			out = append(out, m)
		}
	}
	return out
}

// match tests one record: bounds first, then each sample in order.
func match(r dof.Record, path flight.Path, cfg Config) (Match, bool) {
	lat, lon := r.Position()
	if !cfg.Bounds.Contains(lat, lon) {
		return Match{}, false
	}

	for i, s := range path {
		dist := geo.PlanarDistance(lat, lon, s.Lat, s.Lon)
		if !(dist <= cfg.RadiusDeg) {
			continue
		}
		// NaN heights fail this comparison and never match.
		delta := math.Abs(r.AGL - s.AGL)
		if delta < cfg.AltitudeDeltaFt {
			return Match{
				Record:      r,
				Lat:         lat,
				Lon:         lon,
				SampleIndex: i,
				DistanceDeg: dist,
				DeltaFt:     delta,
			}, true
		}
	}
	return Match{}, false
}

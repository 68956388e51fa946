// Package dof parses the FAA Digital Obstacle File, a fixed-width text format
// with one obstacle per data line.
package dof

import (
	"encoding/json"
	"math"

	"dof_filter/internal/geo"
)

// Record is one obstacle parsed from a single DOF data line.
//
// Numeric fields that could not be parsed hold NaN. A Record is never
// modified after ParseLine returns it.
type Record struct {
	Line int `msgpack:"line"` // 0-based index of the source line.

	OASCode            string `msgpack:"oas"`
	ObstacleNumber     string `msgpack:"num"`
	VerificationStatus string `msgpack:"verif"`

	CountryID string `msgpack:"country"`
	StateID   string `msgpack:"state"`
	City      string `msgpack:"city"`

	LatDeg float64 `msgpack:"lat_deg"`
	LatMin float64 `msgpack:"lat_min"`
	LatSec float64 `msgpack:"lat_sec"`
	LatHem string  `msgpack:"lat_hem"`
	LonDeg float64 `msgpack:"lon_deg"`
	LonMin float64 `msgpack:"lon_min"`
	LonSec float64 `msgpack:"lon_sec"`
	LonHem string  `msgpack:"lon_hem"`

	ObstacleType string `msgpack:"type"`

	Quantity float64 `msgpack:"qty"`
	AGL      float64 `msgpack:"agl"`  // Height above ground level, feet.
	AMSL     float64 `msgpack:"amsl"` // Height above mean sea level, feet.
	Lighting string  `msgpack:"light"`

	HorizontalAccuracy float64 `msgpack:"hacc"`
	VerticalAccuracy   float64 `msgpack:"vacc"`
	MarkIndicator      string  `msgpack:"mark"`

	FAAStudyNumber string `msgpack:"study"`
	Action         string `msgpack:"action"`
	JulianDate     string `msgpack:"jdate"` // Raw text, not parsed as a date.
}

// ID returns the OAS code and obstacle number joined as "06-000123".
func (r Record) ID() string {
	return r.OASCode + "-" + r.ObstacleNumber
}

// Position returns the obstacle location in decimal degrees.
func (r Record) Position() (lat, lon float64) {
	lat = geo.DMSToDecimal(r.LatDeg, r.LatMin, r.LatSec, r.LatHem)
	lon = geo.DMSToDecimal(r.LonDeg, r.LonMin, r.LonSec, r.LonHem)
	return lat, lon
}

// HemispheresKnown reports whether both hemisphere codes are N/S/E/W.
// Unknown codes are treated as positive by Position.
func (r Record) HemispheresKnown() bool {
	return geo.IsKnownHemisphere(r.LatHem) && geo.IsKnownHemisphere(r.LonHem)
}

// recordJSON mirrors Record with nullable numerics, since encoding/json
// rejects NaN.
type recordJSON struct {
	Line               int      `json:"line"`
	OASCode            string   `json:"oas_code"`
	ObstacleNumber     string   `json:"obstacle_number"`
	VerificationStatus string   `json:"verification_status"`
	CountryID          string   `json:"country_id"`
	StateID            string   `json:"state_id"`
	City               string   `json:"city_name"`
	LatDeg             *float64 `json:"lat_deg"`
	LatMin             *float64 `json:"lat_min"`
	LatSec             *float64 `json:"lat_sec"`
	LatHem             string   `json:"lat_hem"`
	LonDeg             *float64 `json:"lon_deg"`
	LonMin             *float64 `json:"lon_min"`
	LonSec             *float64 `json:"lon_sec"`
	LonHem             string   `json:"lon_hem"`
	ObstacleType       string   `json:"obstacle_type"`
	Quantity           *float64 `json:"quantity"`
	AGL                *float64 `json:"agl_height"`
	AMSL               *float64 `json:"amsl_height"`
	Lighting           string   `json:"lighting"`
	HorizontalAccuracy *float64 `json:"horizontal_accuracy"`
	VerticalAccuracy   *float64 `json:"vertical_accuracy"`
	MarkIndicator      string   `json:"mark_indicator"`
	FAAStudyNumber     string   `json:"faa_study_number"`
	Action             string   `json:"action"`
	JulianDate         string   `json:"julian_date"`
}

func nullable(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func fromNullable(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}

// MarshalJSON writes NaN numeric fields as null.
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(recordJSON{
		Line:               r.Line,
		OASCode:            r.OASCode,
		ObstacleNumber:     r.ObstacleNumber,
		VerificationStatus: r.VerificationStatus,
		CountryID:          r.CountryID,
		StateID:            r.StateID,
		City:               r.City,
		LatDeg:             nullable(r.LatDeg),
		LatMin:             nullable(r.LatMin),
		LatSec:             nullable(r.LatSec),
		LatHem:             r.LatHem,
		LonDeg:             nullable(r.LonDeg),
		LonMin:             nullable(r.LonMin),
		LonSec:             nullable(r.LonSec),
		LonHem:             r.LonHem,
		ObstacleType:       r.ObstacleType,
		Quantity:           nullable(r.Quantity),
		AGL:                nullable(r.AGL),
		AMSL:               nullable(r.AMSL),
		Lighting:           r.Lighting,
		HorizontalAccuracy: nullable(r.HorizontalAccuracy),
		VerticalAccuracy:   nullable(r.VerticalAccuracy),
		MarkIndicator:      r.MarkIndicator,
		FAAStudyNumber:     r.FAAStudyNumber,
		Action:             r.Action,
		JulianDate:         r.JulianDate,
	})
}

// UnmarshalJSON reads null numeric fields back as NaN.
func (r *Record) UnmarshalJSON(data []byte) error {
	var j recordJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	*r = Record{
		Line:               j.Line,
		OASCode:            j.OASCode,
		ObstacleNumber:     j.ObstacleNumber,
		VerificationStatus: j.VerificationStatus,
		CountryID:          j.CountryID,
		StateID:            j.StateID,
		City:               j.City,
		LatDeg:             fromNullable(j.LatDeg),
		LatMin:             fromNullable(j.LatMin),
		LatSec:             fromNullable(j.LatSec),
		LatHem:             j.LatHem,
		LonDeg:             fromNullable(j.LonDeg),
		LonMin:             fromNullable(j.LonMin),
		LonSec:             fromNullable(j.LonSec),
		LonHem:             j.LonHem,
		ObstacleType:       j.ObstacleType,
		Quantity:           fromNullable(j.Quantity),
		AGL:                fromNullable(j.AGL),
		AMSL:               fromNullable(j.AMSL),
		Lighting:           j.Lighting,
		HorizontalAccuracy: fromNullable(j.HorizontalAccuracy),
		VerticalAccuracy:   fromNullable(j.VerticalAccuracy),
		MarkIndicator:      j.MarkIndicator,
		FAAStudyNumber:     j.FAAStudyNumber,
		Action:             j.Action,
		JulianDate:         j.JulianDate,
	}
	return nil
}

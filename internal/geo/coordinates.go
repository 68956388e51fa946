// Package geo provides coordinate conversion and bounding-box helpers shared
// by the DOF parser, the flight track reader and the obstacle filter.
package geo

import (
	"math"
	"strconv"
	"strings"
)

// DMSToDecimal converts degrees, minutes, seconds and a hemisphere code into
// signed decimal degrees.
//
// NaN components count as 0. "S" and "W" (any case) negate the result; any
// other hemisphere, including an empty one, leaves it positive.
func DMSToDecimal(deg, min, sec float64, hem string) float64 {
	decimal := orZero(deg) + orZero(min)/60.0 + orZero(sec)/3600.0
	if IsNegativeHemisphere(hem) {
		decimal = -decimal
	}
	return decimal
}

// IsNegativeHemisphere reports whether hem is a south or west code.
func IsNegativeHemisphere(hem string) bool {
	switch strings.ToUpper(strings.TrimSpace(hem)) {
	case "S", "W":
		return true
	}
	return false
}

// IsKnownHemisphere reports whether hem is one of N, S, E or W.
func IsKnownHemisphere(hem string) bool {
	switch strings.ToUpper(strings.TrimSpace(hem)) {
	case "N", "S", "E", "W":
		return true
	}
	return false
}

func orZero(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}

// ParseLatitude parses a latitude written either as signed decimal degrees
// ("38.25", "-33.9") or as packed DMS with a hemisphere suffix ("3815.0N",
// "381500S"). Packed latitudes use 2 degree digits.
func ParseLatitude(s string) (float64, bool) {
	v, ok := parseCoord(s, 2, "NS")
	if !ok || v < -90 || v > 90 {
		return 0, false
	}
	return v, true
}

// ParseLongitude is ParseLatitude for longitudes. Packed longitudes use 3
// degree digits.
func ParseLongitude(s string) (float64, bool) {
	v, ok := parseCoord(s, 3, "EW")
	if !ok || v < -180 || v > 180 {
		return 0, false
	}
	return v, true
}

func parseCoord(s string, degDigits int, hems string) (float64, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return 0, false
	}

	last := s[len(s)-1:]
	if !strings.Contains(hems, last) {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return v, true
	}

	return parsePackedDMS(strings.TrimSpace(s[:len(s)-1]), degDigits, last)
}

// parsePackedDMS handles DDMM.M / DDDMM.M (decimal minutes) and
// DDMMSS / DDDMMSS (whole seconds).
func parsePackedDMS(s string, degDigits int, dir string) (float64, bool) {
	var deg, min, sec float64

	if whole, frac, found := strings.Cut(s, "."); found {
		if len(whole) != degDigits+2 {
			return 0, false
		}
		d, err := strconv.Atoi(whole[:degDigits])
		if err != nil {
			return 0, false
		}
		m, err := strconv.ParseFloat(whole[degDigits:]+"."+frac, 64)
		if err != nil {
			return 0, false
		}
		deg, min = float64(d), m
	} else {
		switch len(s) {
		case degDigits + 2:
			d, err1 := strconv.Atoi(s[:degDigits])
			m, err2 := strconv.Atoi(s[degDigits:])
			if err1 != nil || err2 != nil {
				return 0, false
			}
			deg, min = float64(d), float64(m)
		case degDigits + 4:
			d, err1 := strconv.Atoi(s[:degDigits])
			m, err2 := strconv.Atoi(s[degDigits : degDigits+2])
			sc, err3 := strconv.Atoi(s[degDigits+2:])
			if err1 != nil || err2 != nil || err3 != nil {
				return 0, false
			}
			deg, min, sec = float64(d), float64(m), float64(sc)
		default:
			return 0, false
		}
	}

	if min >= 60 || sec >= 60 {
		return 0, false
	}
	return DMSToDecimal(deg, min, sec, dir), true
}

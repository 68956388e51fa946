package dof

import (
	"math"
	"strconv"
	"strings"
)

// column is a 1-based inclusive column range from the DOF layout.
type column struct {
	start, end int
}

// text returns the trimmed contents of the range. Ranges that run past the
// end of the line are clipped; a range starting past the end is empty.
func (c column) text(line string) string {
	start, end := c.start-1, c.end
	if start >= len(line) {
		return ""
	}
	if end > len(line) {
		end = len(line)
	}
	return strings.TrimSpace(line[start:end])
}

// number parses the range as a float, or NaN when it is empty or malformed.
func (c column) number(line string) float64 {
	return parseNumber(c.text(line))
}

func parseNumber(s string) float64 {
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// DOF column layout.
var (
	colOASCode            = column{1, 2}
	colObstacleNumber     = column{4, 9}
	colVerification       = column{11, 11}
	colCountryID          = column{13, 14}
	colStateID            = column{16, 17}
	colCity               = column{19, 34}
	colLatDeg             = column{36, 37}
	colLatMin             = column{39, 40}
	colLatSec             = column{42, 46}
	colLatHem             = column{47, 47}
	colLonDeg             = column{49, 51}
	colLonMin             = column{53, 54}
	colLonSec             = column{56, 60}
	colLonHem             = column{61, 61}
	colObstacleType       = column{63, 80}
	colQuantity           = column{82, 82}
	colAGL                = column{84, 88}
	colAMSL               = column{90, 94}
	colLighting           = column{96, 96}
	colHorizontalAccuracy = column{98, 98}
	colVerticalAccuracy   = column{100, 100}
	colMarkIndicator      = column{102, 102}
	colFAAStudyNumber     = column{104, 117}
	colAction             = column{119, 119}
	colJulianDate         = column{121, 127}
)

// ParseLine extracts a Record from a data line. It never fails: missing or
// malformed fields become empty strings or NaN.
func ParseLine(line string, index int) Record {
	return Record{
		Line: index,

		OASCode:            colOASCode.text(line),
		ObstacleNumber:     colObstacleNumber.text(line),
		VerificationStatus: colVerification.text(line),

		CountryID: colCountryID.text(line),
		StateID:   colStateID.text(line),
		City:      colCity.text(line),

		LatDeg: colLatDeg.number(line),
		LatMin: colLatMin.number(line),
		LatSec: colLatSec.number(line),
		LatHem: colLatHem.text(line),
		LonDeg: colLonDeg.number(line),
		LonMin: colLonMin.number(line),
		LonSec: colLonSec.number(line),
		LonHem: colLonHem.text(line),

		ObstacleType: colObstacleType.text(line),

		Quantity: colQuantity.number(line),
		AGL:      colAGL.number(line),
		AMSL:     colAMSL.number(line),
		Lighting: colLighting.text(line),

		HorizontalAccuracy: colHorizontalAccuracy.number(line),
		VerticalAccuracy:   colVerticalAccuracy.number(line),
		MarkIndicator:      colMarkIndicator.text(line),

		FAAStudyNumber: colFAAStudyNumber.text(line),
		Action:         colAction.text(line),
		JulianDate:     colJulianDate.text(line),
	}
}

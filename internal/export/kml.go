// Package export writes filtered obstacles in formats map viewers can load.
package export

import (
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"dof_filter/internal/filter"
)

// KML structures for XML marshalling.
// These follow the KML 2.2 specification: https://developers.google.com/kml/documentation/kmlreference

// KML is the root element of a KML document.
type KML struct {
	XMLName   xml.Name `xml:"kml"`
	Namespace string   `xml:"xmlns,attr"`
	Document  Document `xml:"Document"`
}

// Document contains the document metadata and features.
type Document struct {
	Name        string      `xml:"name"`
	Description string      `xml:"description,omitempty"`
	Styles      []Style     `xml:"Style,omitempty"`
	Placemarks  []Placemark `xml:"Placemark"`
}

// Style defines the visual appearance of features.
type Style struct {
	ID        string    `xml:"id,attr"`
	IconStyle IconStyle `xml:"IconStyle"`
}

// IconStyle defines how icons are displayed.
type IconStyle struct {
	Scale float64 `xml:"scale,omitempty"`
	Icon  Icon    `xml:"Icon"`
}

// Icon specifies the icon image.
type Icon struct {
	Href string `xml:"href"`
}

// Placemark represents a geographic feature with geometry and metadata.
type Placemark struct {
	Name         string        `xml:"name"`
	Description  string        `xml:"description,omitempty"`
	StyleURL     string        `xml:"styleUrl,omitempty"`
	Point        Point         `xml:"Point"`
	ExtendedData *ExtendedData `xml:"ExtendedData,omitempty"`
}

// Point represents a geographic location.
type Point struct {
	Coordinates string `xml:"coordinates"` // Format: lon,lat,altitude
}

// ExtendedData holds custom data associated with a placemark.
type ExtendedData struct {
	Data []Data `xml:"Data"`
}

// Data represents a single piece of extended data.
type Data struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value"`
}

// plottable reports whether a match can be placed on a map. Obstacles that
// decode to exactly (0, 0) carry no usable position.
func plottable(m filter.Match) bool {
	return !(m.Lat == 0 && m.Lon == 0)
}

// formatFeet renders a height, or "?" when it is missing.
func formatFeet(v float64) string {
	if math.IsNaN(v) {
		return "?"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// describe builds the popup text for an obstacle.
func describe(m filter.Match) string {
	r := m.Record
	return fmt.Sprintf(
		"OAS#%s\nType: %s\nCity: %s\nAGL Height: %s ft\nAMSL Height: %s ft\nLighting: %s\nAction: %s\nJulian Date: %s",
		r.ID(), r.ObstacleType, r.City, formatFeet(r.AGL), formatFeet(r.AMSL), r.Lighting, r.Action, r.JulianDate,
	)
}

// BuildKML creates a KML document from the matches.
func BuildKML(matches []filter.Match, generated time.Time) KML {
	placemarks := make([]Placemark, 0, len(matches))
	for _, m := range matches {
		if !plottable(m) {
			continue
		}
		r := m.Record

		// KML altitude is metres; AMSL is feet.
		alt := 0.0
		if !math.IsNaN(r.AMSL) {
			alt = r.AMSL * 0.3048
		}

		placemarks = append(placemarks, Placemark{
			Name:        r.ObstacleType,
			Description: describe(m),
			StyleURL:    "#obstacleStyle",
			Point: Point{
				Coordinates: fmt.Sprintf("%.6f,%.6f,%.1f", m.Lon, m.Lat, alt),
			},
			ExtendedData: &ExtendedData{
				Data: []Data{
					{Name: "id", Value: r.ID()},
					{Name: "agl_ft", Value: formatFeet(r.AGL)},
					{Name: "amsl_ft", Value: formatFeet(r.AMSL)},
					{Name: "sample_index", Value: strconv.Itoa(m.SampleIndex)},
				},
			},
		})
	}

	return KML{
		Namespace: "http://www.opengis.net/kml/2.2",
		Document: Document{
			Name:        "DOF Obstacles",
			Description: fmt.Sprintf("Obstacles near the flight path. Generated %s.", generated.Format("2006-01-02 15:04:05")),
			Styles: []Style{
				{
					ID: "obstacleStyle",
					IconStyle: IconStyle{
						Scale: 0.8,
						Icon: Icon{
							Href: "http://maps.google.com/mapfiles/kml/shapes/caution.png",
						},
					},
				},
			},
			Placemarks: placemarks,
		},
	}
}

// WriteKML writes matches as an indented KML document.
func WriteKML(w io.Writer, matches []filter.Match) error {
	data, err := xml.MarshalIndent(BuildKML(matches, time.Now()), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal kml: %w", err)
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

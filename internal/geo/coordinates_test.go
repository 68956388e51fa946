package geo

import (
	"math"
	"testing"
)

// almostEqual checks if two floats are equal within a tolerance.
func almostEqual(a, b, tolerance float64) bool {
	return math.Abs(a-b) < tolerance
}

func TestDMSToDecimal(t *testing.T) {
	nan := math.NaN()
	tests := []struct {
		name string
		deg  float64
		min  float64
		sec  float64
		hem  string
		want float64
	}{
		{name: "south negates", deg: 1, hem: "S", want: -1.0},
		{name: "north positive", deg: 1, hem: "N", want: 1.0},
		{name: "minutes only east", min: 30, hem: "E", want: 0.5},
		{name: "NaN degrees count as zero", deg: nan, min: 30, hem: "N", want: 0.5},
		{name: "all NaN", deg: nan, min: nan, sec: nan, hem: "W", want: 0},
		{name: "lowercase west", deg: 122, min: 30, hem: "w", want: -122.5},
		{name: "seconds", deg: 37, min: 46, sec: 30, hem: "N", want: 37.775},
		{name: "unknown hemisphere stays positive", deg: 10, hem: "X", want: 10},
		{name: "empty hemisphere stays positive", deg: 10, hem: "", want: 10},
		{name: "padded hemisphere", deg: 10, hem: " s ", want: -10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DMSToDecimal(tt.deg, tt.min, tt.sec, tt.hem)
			if !almostEqual(got, tt.want, 1e-9) {
				t.Errorf("DMSToDecimal(%v, %v, %v, %q) = %v, want %v", tt.deg, tt.min, tt.sec, tt.hem, got, tt.want)
			}
		})
	}
}

func TestIsKnownHemisphere(t *testing.T) {
	for _, hem := range []string{"N", "s", "E", "w"} {
		if !IsKnownHemisphere(hem) {
			t.Errorf("IsKnownHemisphere(%q) = false, want true", hem)
		}
	}
	for _, hem := range []string{"", "X", "NE"} {
		if IsKnownHemisphere(hem) {
			t.Errorf("IsKnownHemisphere(%q) = true, want false", hem)
		}
	}
}

func TestParseLatitude(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   float64
		wantOK bool
	}{
		{name: "decimal", input: "38.25", want: 38.25, wantOK: true},
		{name: "negative decimal", input: "-33.9", want: -33.9, wantOK: true},
		{name: "DDMM.M north", input: "3413.8N", want: 34.23, wantOK: true},
		{name: "DDMM.M south", input: "3413.8S", want: -34.23, wantOK: true},
		{name: "DDMMSS", input: "341348N", want: 34.23, wantOK: true},
		{name: "DDMM", input: "3800N", want: 38.0, wantOK: true},
		{name: "out of range", input: "95.0", wantOK: false},
		{name: "bad minutes", input: "3475.0N", wantOK: false},
		{name: "garbage", input: "abc", wantOK: false},
		{name: "empty", input: "", wantOK: false},
		{name: "NaN literal", input: "NaN", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseLatitude(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("ParseLatitude(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if ok && !almostEqual(got, tt.want, 0.001) {
				t.Errorf("ParseLatitude(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseLongitude(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   float64
		wantOK bool
	}{
		{name: "decimal west", input: "-122.0", want: -122.0, wantOK: true},
		{name: "DDDMM.M west", input: "12200.0W", want: -122.0, wantOK: true},
		{name: "DDDMMSS east", input: "1512335E", want: 151.393056, wantOK: true},
		{name: "two degree digits rejected", input: "3413.8E", wantOK: false},
		{name: "out of range", input: "181", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseLongitude(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("ParseLongitude(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if ok && !almostEqual(got, tt.want, 0.001) {
				t.Errorf("ParseLongitude(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestBoundsContains(t *testing.T) {
	b := Bounds{MinLat: 36, MaxLat: 40, MinLon: -124, MaxLon: -120}

	tests := []struct {
		name     string
		lat, lon float64
		want     bool
	}{
		{name: "inside", lat: 38, lon: -122, want: true},
		{name: "on lat_max", lat: 40, lon: -122, want: true},
		{name: "on lon_min", lat: 38, lon: -124, want: true},
		{name: "beyond lat_max", lat: 41, lon: -122, want: false},
		{name: "beyond lon_min", lat: 38, lon: -125, want: false},
		{name: "below lat_min", lat: 35, lon: -122, want: false},
		{name: "NaN", lat: math.NaN(), lon: -122, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := b.Contains(tt.lat, tt.lon); got != tt.want {
				t.Errorf("Contains(%v, %v) = %v, want %v", tt.lat, tt.lon, got, tt.want)
			}
		})
	}
}

func TestBoundsExpand(t *testing.T) {
	b := Bounds{MinLat: 36, MaxLat: 40, MinLon: -124, MaxLon: -120}
	got := b.Expand(0.5)
	want := Bounds{MinLat: 35.5, MaxLat: 40.5, MinLon: -124.5, MaxLon: -119.5}
	if got != want {
		t.Errorf("Expand = %+v, want %+v", got, want)
	}
	if !got.Contains(35.5, -119.5) || b.Contains(35.5, -119.5) {
		t.Error("expanded bounds should admit the new corner")
	}
}

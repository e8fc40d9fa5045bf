package geo

import (
	"encoding/json"
	"math"
	"strconv"
)

// EarthRadiusKm is the mean Earth radius used by HaversineKm.
const EarthRadiusKm = 6371.0

// Point is a position in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether p lies inside the latitude/longitude ranges.
func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180 &&
		!math.IsNaN(p.Lat) && !math.IsNaN(p.Lng)
}

// PointFrom builds a point from optional components. Either nil yields nil.
func PointFrom(lat, lng *float64) *Point {
	if lat == nil || lng == nil {
		return nil
	}
	return &Point{Lat: *lat, Lng: *lng}
}

// HaversineKm returns the great-circle distance in kilometers.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

// Distance is either a known number of kilometers or unknown.
// The zero value is Unknown.
type Distance struct {
	km    float64
	known bool
}

// Known wraps a computed distance.
func Known(km float64) Distance { return Distance{km: km, known: true} }

// Unknown is the distance of a donor without a usable position.
var Unknown = Distance{}

// Between returns the distance between a and b, or Unknown when either is absent.
// A coordinate of exactly zero is a real position.
func Between(a, b *Point) Distance {
	if a == nil || b == nil {
		return Unknown
	}
	return Known(HaversineKm(a.Lat, a.Lng, b.Lat, b.Lng))
}

// Km returns the kilometers and whether the distance is known.
func (d Distance) Km() (float64, bool) { return d.km, d.known }

func (d Distance) IsKnown() bool { return d.known }

// Compare orders distances ascending with Unknown after every known value.
// Two unknowns compare equal.
func (d Distance) Compare(o Distance) int {
	switch {
	case !d.known && !o.known:
		return 0
	case !d.known:
		return 1
	case !o.known:
		return -1
	case d.km < o.km:
		return -1
	case d.km > o.km:
		return 1
	}
	return 0
}

func (d Distance) Less(o Distance) bool { return d.Compare(o) < 0 }

// Label formats a known distance with one decimal, or returns unknownLabel.
func (d Distance) Label(unknownLabel string) string {
	if !d.known {
		return unknownLabel
	}
	return strconv.FormatFloat(d.km, 'f', 1, 64) + " km"
}

// MarshalJSON encodes a known distance as a number and Unknown as null.
func (d Distance) MarshalJSON() ([]byte, error) {
	if !d.known {
		return []byte("null"), nil
	}
	return json.Marshal(d.km)
}

func (d *Distance) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*d = Unknown
		return nil
	}
	var km float64
	if err := json.Unmarshal(b, &km); err != nil {
		return err
	}
	*d = Known(km)
	return nil
}

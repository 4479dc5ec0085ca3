// Package geo converts between photo pixels, ground distance and geodetic
// coordinates using the capture metadata of a drone photo.
package geo

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
)

const (
	degToRad = math.Pi / 180

	// Half-width of the window used to measure meters per degree around a point.
	metersPerDegreeDelta = 0.005
)

// Point is a geodetic position in degrees (EPSG:4326).
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Validate checks that the point lies within the valid latitude/longitude range.
func (p Point) Validate() error {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) || p.Lat < -90 || p.Lat > 90 || p.Lon < -180 || p.Lon > 180 {
		return fmt.Errorf("%w: (%f, %f)", ErrInvalidCoordinate, p.Lat, p.Lon)
	}
	return nil
}

// Orb returns the point in orb's (lon, lat) order.
func (p Point) Orb() orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// Distance returns the great-circle distance between two points in meters.
func Distance(a, b Point) float64 {
	return orbgeo.DistanceHaversine(a.Orb(), b.Orb())
}

// MetersPerDegree returns the ground length of one degree of latitude and one
// degree of longitude at p. Both are measured as great-circle distances across
// a small window centred on p, since a degree of longitude shrinks with
// latitude.
func MetersPerDegree(p Point) (lat, lon float64) {
	const d = metersPerDegreeDelta
	south := math.Max(p.Lat-d, -90)
	north := math.Min(p.Lat+d, 90)
	lat = Distance(Point{Lat: south, Lon: p.Lon}, Point{Lat: north, Lon: p.Lon}) / (north - south)
	lon = Distance(Point{Lat: p.Lat, Lon: p.Lon - d}, Point{Lat: p.Lat, Lon: p.Lon + d}) / (2 * d)
	return lat, lon
}

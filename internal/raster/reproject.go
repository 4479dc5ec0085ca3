package raster

import (
	"fmt"
	"math"

	"argos/internal/geo"
)

// Reprojector converts between a raster's native CRS and EPSG:4326. Native
// coordinates are always (x, y) = (easting, northing) or (lon, lat).
type Reprojector interface {
	ToGeodetic(x, y float64) (geo.Point, error)
	FromGeodetic(p geo.Point) (x, y float64, err error)
}

// Geographic is the identity reprojector for rasters already in EPSG:4326.
type Geographic struct{}

func (Geographic) ToGeodetic(x, y float64) (geo.Point, error) {
	p := geo.Point{Lat: y, Lon: x}
	if err := p.Validate(); err != nil {
		return geo.Point{}, err
	}
	return p, nil
}

func (Geographic) FromGeodetic(p geo.Point) (float64, float64, error) {
	if err := p.Validate(); err != nil {
		return 0, 0, err
	}
	return p.Lon, p.Lat, nil
}

const (
	degToRad = math.Pi / 180

	// Spherical mercator scale terms.
	mercX    = 20037508.34 / 180
	mercY    = mercX / degToRad
	mercHalf = degToRad / 2

	maxMercatorLat = 85.05112878
)

// WebMercator converts EPSG:3857 in closed form, without GDAL.
type WebMercator struct{}

func (WebMercator) ToGeodetic(x, y float64) (geo.Point, error) {
	p := geo.Point{
		Lon: x / mercX,
		Lat: math.Atan(math.Exp(y/mercY))/mercHalf - 90,
	}
	if err := p.Validate(); err != nil {
		return geo.Point{}, fmt.Errorf("%w: %v", ErrReproject, err)
	}
	return p, nil
}

func (WebMercator) FromGeodetic(p geo.Point) (float64, float64, error) {
	if err := p.Validate(); err != nil {
		return 0, 0, err
	}
	if math.Abs(p.Lat) > maxMercatorLat {
		return 0, 0, fmt.Errorf("%w: latitude %f outside web mercator", ErrReproject, p.Lat)
	}
	return p.Lon * mercX, math.Log(math.Tan((90+p.Lat)*mercHalf)) * mercY, nil
}

// ReprojectorForEPSG returns a closed-form reprojector for the codes that
// need no GDAL, or false.
func ReprojectorForEPSG(code int) (Reprojector, bool) {
	switch code {
	case 4326:
		return Geographic{}, true
	case 3857, 900913:
		return WebMercator{}, true
	}
	return nil, false
}

// Package gdalio reads orthomaps and ground-truth shapefiles through GDAL.
package gdalio

import (
	"fmt"
	"sync"

	"github.com/airbusgeo/godal"

	"argos/internal/geo"
	"argos/internal/raster"
)

var registerOnce sync.Once

func register() {
	registerOnce.Do(godal.RegisterAll)
}

// SRSReprojector converts between an arbitrary GDAL spatial reference and
// EPSG:4326. GDAL transforms are not reentrant, so calls are serialised.
type SRSReprojector struct {
	mu      sync.Mutex
	toGeo   *godal.Transform
	fromGeo *godal.Transform
}

var (
	srsMu    sync.Mutex
	srsCache = map[string]raster.Reprojector{}
)

// ReprojectorForWKT returns a reprojector for the CRS described by wkt.
// Instances are shared per WKT string and live for the process.
func ReprojectorForWKT(wkt string) (raster.Reprojector, error) {
	if wkt == "" {
		return raster.Geographic{}, nil
	}
	srsMu.Lock()
	defer srsMu.Unlock()
	if r, ok := srsCache[wkt]; ok {
		return r, nil
	}
	register()
	native, err := godal.NewSpatialRefFromWKT(wkt)
	if err != nil {
		return nil, fmt.Errorf("parse crs: %w", err)
	}
	r, err := newSRSReprojector(native)
	native.Close()
	if err != nil {
		return nil, err
	}
	srsCache[wkt] = r
	return r, nil
}

// ReprojectorForEPSG returns a closed-form reprojector when one exists and a
// GDAL-backed one otherwise.
func ReprojectorForEPSG(code int) (raster.Reprojector, error) {
	if r, ok := raster.ReprojectorForEPSG(code); ok {
		return r, nil
	}
	key := fmt.Sprintf("EPSG:%d", code)
	srsMu.Lock()
	defer srsMu.Unlock()
	if r, ok := srsCache[key]; ok {
		return r, nil
	}
	register()
	native, err := godal.NewSpatialRefFromEPSG(code)
	if err != nil {
		return nil, fmt.Errorf("epsg %d: %w", code, err)
	}
	r, err := newSRSReprojector(native)
	native.Close()
	if err != nil {
		return nil, err
	}
	srsCache[key] = r
	return r, nil
}

func newSRSReprojector(native *godal.SpatialRef) (*SRSReprojector, error) {
	wgs84, err := godal.NewSpatialRefFromEPSG(4326)
	if err != nil {
		return nil, fmt.Errorf("epsg 4326: %w", err)
	}
	defer wgs84.Close()

	toGeo, err := godal.NewTransform(native, wgs84)
	if err != nil {
		return nil, fmt.Errorf("transform to epsg 4326: %w", err)
	}
	fromGeo, err := godal.NewTransform(wgs84, native)
	if err != nil {
		toGeo.Close()
		return nil, fmt.Errorf("transform from epsg 4326: %w", err)
	}
	return &SRSReprojector{toGeo: toGeo, fromGeo: fromGeo}, nil
}

func (r *SRSReprojector) transform(tr *godal.Transform, x, y float64) (float64, float64, error) {
	xs, ys := []float64{x}, []float64{y}
	ok := make([]bool, 1)
	r.mu.Lock()
	err := tr.TransformEx(xs, ys, nil, ok)
	r.mu.Unlock()
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", raster.ErrReproject, err)
	}
	if !ok[0] {
		return 0, 0, fmt.Errorf("%w: (%f, %f)", raster.ErrReproject, x, y)
	}
	return xs[0], ys[0], nil
}

// ToGeodetic implements raster.Reprojector.
func (r *SRSReprojector) ToGeodetic(x, y float64) (geo.Point, error) {
	lon, lat, err := r.transform(r.toGeo, x, y)
	if err != nil {
		return geo.Point{}, err
	}
	p := geo.Point{Lat: lat, Lon: lon}
	if err := p.Validate(); err != nil {
		return geo.Point{}, err
	}
	return p, nil
}

// FromGeodetic implements raster.Reprojector.
func (r *SRSReprojector) FromGeodetic(p geo.Point) (float64, float64, error) {
	if err := p.Validate(); err != nil {
		return 0, 0, err
	}
	return r.transform(r.fromGeo, p.Lon, p.Lat)
}

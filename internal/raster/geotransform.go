// Package raster maps orthomap pixels to geodetic coordinates through the
// raster's affine geotransform and native coordinate reference system.
package raster

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"argos/internal/geo"
	"argos/pkg/geometry"
)

// Affine is a GDAL geotransform: originX, xRes, xSkew, originY, ySkew, yRes.
type Affine [6]float64

// Forward returns the native coordinates of pixel (col, row).
func (a Affine) Forward(col, row float64) (x, y float64) {
	p := geometry.FromGDAL(a).Apply(geometry.Point2D{X: col, Y: row})
	return p.X, p.Y
}

func (a Affine) linear() *mat.Dense {
	return mat.NewDense(2, 2, []float64{a[1], a[2], a[4], a[5]})
}

// GeoTransform converts between orthomap pixels and EPSG:4326. It is
// read-only after construction and safe for concurrent use, provided the
// Reprojector is.
type GeoTransform struct {
	affine        Affine
	crs           Reprojector
	lin           *mat.Dense
	width, height int
}

// NewGeoTransform validates the affine and binds it to a reprojector. A nil
// crs means the raster is in EPSG:4326.
func NewGeoTransform(affine Affine, crs Reprojector) (*GeoTransform, error) {
	lin := affine.linear()
	if det := mat.Det(lin); math.Abs(det) < 1e-300 || math.IsNaN(det) {
		return nil, fmt.Errorf("%w: %v", ErrSingularTransform, affine)
	}
	if crs == nil {
		crs = Geographic{}
	}
	return &GeoTransform{affine: affine, crs: crs, lin: lin}, nil
}

// WithSize returns a copy that knows the raster dimensions.
func (g *GeoTransform) WithSize(width, height int) *GeoTransform {
	out := *g
	out.width, out.height = width, height
	return &out
}

// Size returns the raster dimensions, or zeros if unknown.
func (g *GeoTransform) Size() (width, height int) { return g.width, g.height }

// Affine returns the underlying geotransform.
func (g *GeoTransform) Affine() Affine { return g.affine }

// PixelToGeodetic returns the position of map pixel p.
func (g *GeoTransform) PixelToGeodetic(p geometry.MapPixel) (geo.Point, error) {
	x, y := g.affine.Forward(p.Col, p.Row)
	pt, err := g.crs.ToGeodetic(x, y)
	if err != nil {
		return geo.Point{}, fmt.Errorf("pixel (%g, %g): %w", p.Col, p.Row, err)
	}
	return pt, nil
}

// GeodeticToFractionalPixel returns the exact (col, row) of pt.
func (g *GeoTransform) GeodeticToFractionalPixel(pt geo.Point) (geometry.MapPixel, error) {
	x, y, err := g.crs.FromGeodetic(pt)
	if err != nil {
		return geometry.MapPixel{}, err
	}
	b := mat.NewVecDense(2, []float64{x - g.affine[0], y - g.affine[3]})
	var v mat.VecDense
	if err := v.SolveVec(g.lin, b); err != nil {
		return geometry.MapPixel{}, fmt.Errorf("%w: %v", ErrSingularTransform, err)
	}
	return geometry.MapPixel{Col: v.AtVec(0), Row: v.AtVec(1)}, nil
}

// GeodeticToPixel returns the map pixel containing pt, with both components
// truncated toward zero.
func (g *GeoTransform) GeodeticToPixel(pt geo.Point) (geometry.MapPixel, error) {
	p, err := g.GeodeticToFractionalPixel(pt)
	if err != nil {
		return geometry.MapPixel{}, err
	}
	col, row := p.Truncate()
	return geometry.MapPixel{Col: float64(col), Row: float64(row)}, nil
}

// DisplayToGeodetic converts a position given as fractions of the displayed
// map's width and height, as from a click on a scaled rendering.
func (g *GeoTransform) DisplayToGeodetic(colFraction, rowFraction float64) (geo.Point, error) {
	if g.width <= 0 || g.height <= 0 {
		return geo.Point{}, ErrNoRasterSize
	}
	return g.PixelToGeodetic(geometry.MapPixel{
		Col: colFraction * float64(g.width),
		Row: rowFraction * float64(g.height),
	})
}

// Contains reports whether map pixel p lies inside the raster.
func (g *GeoTransform) Contains(p geometry.MapPixel) bool {
	return p.Col >= 0 && p.Row >= 0 && p.Col < float64(g.width) && p.Row < float64(g.height)
}

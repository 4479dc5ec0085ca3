// Package georef composes a photo's homography with its orthomap's
// geotransform to georeference every pixel of the raw photo.
package georef

import (
	"errors"
	"fmt"
	"image"

	"argos/internal/geo"
	"argos/internal/homography"
	"argos/internal/raster"
	"argos/pkg/geometry"
)

var (
	ErrInvalidReferencer = errors.New("referencer has no homography")
	ErrInvalidHomography = errors.New("invalid homography")
)

// Referencer maps between raw photo pixels, orthomap pixels and geodetic
// coordinates. It is immutable and safe for concurrent use.
type Referencer struct {
	h       homography.Homography
	fwd     geometry.Perspective
	inv     geometry.Perspective
	valid   bool
	size    image.Point
	mapping *raster.GeoTransform
}

// New builds a referencer for a photo of the given size. A homography without
// a matrix gives a referencer whose every transform fails with
// ErrInvalidReferencer; a singular matrix is rejected here.
func New(h homography.Homography, photoSize image.Point, mapping *raster.GeoTransform) (*Referencer, error) {
	r := &Referencer{h: h, size: photoSize, mapping: mapping}
	if !h.Valid() {
		return r, nil
	}
	if mapping == nil {
		return nil, fmt.Errorf("%w: no map geotransform", ErrInvalidHomography)
	}
	inv, err := h.Matrix.Inverse()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHomography, err)
	}
	r.fwd, r.inv, r.valid = *h.Matrix, inv, true
	return r, nil
}

// Valid reports whether the referencer can transform points.
func (r *Referencer) Valid() bool { return r.valid }

// Homography returns the homography the referencer was built from.
func (r *Referencer) Homography() homography.Homography { return r.h }

// PhotoSize returns the raw photo dimensions.
func (r *Referencer) PhotoSize() image.Point { return r.size }

// ImageToMapPixel maps a raw photo pixel onto the orthomap.
func (r *Referencer) ImageToMapPixel(p geometry.RawPixel) (geometry.MapPixel, error) {
	if !r.valid {
		return geometry.MapPixel{}, ErrInvalidReferencer
	}
	crop := geometry.ImageCropPixel{Col: p.Col - float64(r.h.ImageLeft), Row: p.Row - float64(r.h.ImageLower)}
	q, ok := r.fwd.Apply(crop.Point())
	if !ok {
		return geometry.MapPixel{}, fmt.Errorf("%w: pixel (%g, %g) maps to infinity", ErrInvalidHomography, p.Col, p.Row)
	}
	mc := geometry.MapCropPixel{Col: q.X, Row: q.Y}
	return geometry.MapPixel{Col: mc.Col + float64(r.h.MapLeft), Row: mc.Row + float64(r.h.MapLower)}, nil
}

// MapPixelToImage maps an orthomap pixel into the raw photo.
func (r *Referencer) MapPixelToImage(p geometry.MapPixel) (geometry.RawPixel, error) {
	if !r.valid {
		return geometry.RawPixel{}, ErrInvalidReferencer
	}
	crop := geometry.MapCropPixel{Col: p.Col - float64(r.h.MapLeft), Row: p.Row - float64(r.h.MapLower)}
	q, ok := r.inv.Apply(crop.Point())
	if !ok {
		return geometry.RawPixel{}, fmt.Errorf("%w: map pixel (%g, %g) maps to infinity", ErrInvalidHomography, p.Col, p.Row)
	}
	ic := geometry.ImageCropPixel{Col: q.X, Row: q.Y}
	return geometry.RawPixel{Col: ic.Col + float64(r.h.ImageLeft), Row: ic.Row + float64(r.h.ImageLower)}, nil
}

// PixelToGeodetic returns the ground position imaged at raw pixel p.
func (r *Referencer) PixelToGeodetic(p geometry.RawPixel) (geo.Point, error) {
	mp, err := r.ImageToMapPixel(p)
	if err != nil {
		return geo.Point{}, err
	}
	return r.mapping.PixelToGeodetic(mp)
}

// GeodeticToPixel returns the raw pixel where pt is imaged. The result may
// lie outside the photo.
func (r *Referencer) GeodeticToPixel(pt geo.Point) (geometry.RawPixel, error) {
	if !r.valid {
		return geometry.RawPixel{}, ErrInvalidReferencer
	}
	mp, err := r.mapping.GeodeticToFractionalPixel(pt)
	if err != nil {
		return geometry.RawPixel{}, err
	}
	return r.MapPixelToImage(mp)
}

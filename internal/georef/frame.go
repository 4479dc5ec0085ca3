package georef

import (
	"argos/internal/geo"
	"argos/pkg/geometry"
)

// ImageFrame expresses ground positions as fractions of a raw photo, through
// the photo's referencer. Alpha runs down the rows, Beta across the columns.
type ImageFrame struct {
	ref    *Referencer
	center geo.Point
}

// NewImageFrame returns the frame of the referenced photo. center is the
// position used to look up nearby ground truth, normally the photo's GPS fix.
func NewImageFrame(ref *Referencer, center geo.Point) *ImageFrame {
	return &ImageFrame{ref: ref, center: center}
}

// Center returns the query position of the frame.
func (f *ImageFrame) Center() geo.Point { return f.center }

// ToUnit returns pt as fractions of the photo's rows and columns.
func (f *ImageFrame) ToUnit(pt geo.Point) (geo.Unit, error) {
	px, err := f.ref.GeodeticToPixel(pt)
	if err != nil {
		return geo.Unit{}, err
	}
	size := f.ref.PhotoSize()
	return geo.Unit{
		Alpha: px.Row / float64(size.Y),
		Beta:  px.Col / float64(size.X),
	}, nil
}

// FromUnit is the inverse of ToUnit.
func (f *ImageFrame) FromUnit(u geo.Unit) (geo.Point, error) {
	size := f.ref.PhotoSize()
	return f.ref.PixelToGeodetic(geometry.RawPixel{
		Row: u.Alpha * float64(size.Y),
		Col: u.Beta * float64(size.X),
	})
}

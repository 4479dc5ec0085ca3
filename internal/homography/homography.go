// Package homography estimates the projective transform that registers a
// drone photo onto the orthomap it was flown over.
package homography

import (
	"errors"
	"image"

	"argos/pkg/geometry"
)

var (
	ErrNoMatchFound = errors.New("no homography match found")
	ErrBadWindow    = errors.New("empty crop window")
)

// Homography maps pixels of a photo crop onto pixels of a map crop. The crop
// origins are stored alongside the matrix: a raw photo pixel is shifted by
// (ImageLeft, ImageLower) before the matrix applies, and the result is
// shifted back by (MapLeft, MapLower) into orthomap pixels.
type Homography struct {
	Matrix     *geometry.Perspective `json:"matrix"`
	ImageLower int                   `json:"image_lower"`
	ImageLeft  int                   `json:"image_left"`
	MapLower   int                   `json:"map_lower"`
	MapLeft    int                   `json:"map_left"`

	Matches int `json:"matches,omitempty"`
	Inliers int `json:"inliers,omitempty"`
}

// Valid reports whether the homography carries a matrix.
func (h Homography) Valid() bool { return h.Matrix != nil }

// ImageOrigin returns the top-left pixel of the photo crop.
func (h Homography) ImageOrigin() image.Point { return image.Pt(h.ImageLeft, h.ImageLower) }

// MapOrigin returns the top-left pixel of the map crop.
func (h Homography) MapOrigin() image.Point { return image.Pt(h.MapLeft, h.MapLower) }

// CropWindow returns the size×size window centred on center, shifted (not
// shrunk) to stay inside bounds. Only when bounds is smaller than size along
// an axis does the window shrink to bounds along that axis.
func CropWindow(center image.Point, size int, bounds image.Rectangle) (image.Rectangle, error) {
	if size <= 0 || bounds.Empty() {
		return image.Rectangle{}, ErrBadWindow
	}
	x0, x1 := cropAxis(center.X, size, bounds.Min.X, bounds.Max.X)
	y0, y1 := cropAxis(center.Y, size, bounds.Min.Y, bounds.Max.Y)
	return image.Rect(x0, y0, x1, y1), nil
}

func cropAxis(c, size, lo, hi int) (int, int) {
	if hi-lo <= size {
		return lo, hi
	}
	start := c - size/2
	if start < lo {
		start = lo
	}
	if start+size > hi {
		start = hi - size
	}
	return start, start + size
}

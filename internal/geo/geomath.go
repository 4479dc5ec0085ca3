package geo

import (
	"fmt"
	"math"
	"time"
)

// Vec is a unit direction in (row, col) pixel space.
type Vec struct {
	Row float64
	Col float64
}

// Dot returns the projection of the pixel offset (dr, dc) onto v.
func (v Vec) Dot(dr, dc float64) float64 {
	return v.Row*dr + v.Col*dc
}

// MetersPerPixel returns the ground sampling distance of a nadir photo taken
// at altitudeM with a diagonal field of view of fovDeg, where diagonalPx is
// the image diagonal in pixels.
func MetersPerPixel(fovDeg, altitudeM, diagonalPx float64) (float64, error) {
	switch {
	case !(fovDeg > 0 && fovDeg < 180):
		return 0, fmt.Errorf("%w: field of view %f", ErrDomain, fovDeg)
	case !(altitudeM > 0):
		return 0, fmt.Errorf("%w: altitude %f", ErrDomain, altitudeM)
	case !(diagonalPx > 0):
		return 0, fmt.Errorf("%w: diagonal %f", ErrDomain, diagonalPx)
	}
	return altitudeM * math.Tan(fovDeg*degToRad/2) / (diagonalPx / 2), nil
}

// UnitVectors returns the pixel directions of true north and east for a
// camera whose top edge points yawDeg clockwise from north.
func UnitVectors(yawDeg float64) (north, east Vec) {
	a := yawDeg * degToRad
	sin, cos := math.Sincos(a)
	north = Vec{Row: -cos, Col: -sin}
	east = Vec{Row: -sin, Col: cos}
	return north, east
}

// CameraUnitVectors corrects the recorded yaw for magnetic declination at p
// and returns the resulting north and east pixel directions.
func CameraUnitVectors(yawDeg float64, p Point, at time.Time, decl Declination) (north, east Vec, err error) {
	yaw, err := decl.CorrectYaw(yawDeg, p, at)
	if err != nil {
		return Vec{}, Vec{}, err
	}
	north, east = UnitVectors(yaw)
	return north, east, nil
}

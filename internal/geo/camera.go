package geo

import (
	"fmt"
	"math"
	"time"

	"github.com/paulmach/orb"

	"argos/pkg/geometry"
)

// CameraExif is the capture metadata needed to georeference a nadir photo.
type CameraExif struct {
	FieldOfView      float64   `json:"field_of_view"`     // diagonal, degrees
	RelativeAltitude float64   `json:"relative_altitude"` // meters above takeoff
	Yaw              float64   `json:"yaw"`               // degrees clockwise from north
	Center           Point     `json:"center"`
	Width            int       `json:"width"`
	Height           int       `json:"height"`
	Captured         time.Time `json:"captured"`
}

// Diagonal returns the image diagonal in pixels.
func (e CameraExif) Diagonal() float64 {
	return math.Hypot(float64(e.Width), float64(e.Height))
}

// Camera converts between raw photo pixels and geodetic coordinates from the
// photo's capture metadata alone. It is immutable once built.
type Camera struct {
	exif        CameraExif
	mpp         float64
	north, east Vec
	mLat, mLon  float64 // meters per degree around the image centre
}

// NewCamera precomputes the ground scale and orientation of a photo.
func NewCamera(exif CameraExif, decl Declination) (*Camera, error) {
	if err := exif.Center.Validate(); err != nil {
		return nil, err
	}
	if exif.Width <= 0 || exif.Height <= 0 {
		return nil, fmt.Errorf("%w: image size %dx%d", ErrDomain, exif.Width, exif.Height)
	}
	mpp, err := MetersPerPixel(exif.FieldOfView, exif.RelativeAltitude, exif.Diagonal())
	if err != nil {
		return nil, err
	}
	north, east, err := CameraUnitVectors(exif.Yaw, exif.Center, exif.Captured, decl)
	if err != nil {
		return nil, err
	}
	mLat, mLon := MetersPerDegree(exif.Center)
	if mLat <= 0 || mLon <= 0 {
		return nil, fmt.Errorf("%w: no ground scale at %v", ErrDomain, exif.Center)
	}
	return &Camera{exif: exif, mpp: mpp, north: north, east: east, mLat: mLat, mLon: mLon}, nil
}

// Exif returns the metadata the camera was built from.
func (c *Camera) Exif() CameraExif { return c.exif }

// MetersPerPixel returns the ground sampling distance of the photo.
func (c *Camera) MetersPerPixel() float64 { return c.mpp }

// UnitVectors returns the declination-corrected north and east directions.
func (c *Camera) UnitVectors() (north, east Vec) { return c.north, c.east }

func (c *Camera) halfSize() (rows, cols float64) {
	return float64(c.exif.Height) / 2, float64(c.exif.Width) / 2
}

// PixelToGeodetic returns the ground position imaged at p.
func (c *Camera) PixelToGeodetic(p geometry.RawPixel) (Point, error) {
	hr, hc := c.halfSize()
	dr, dc := p.Row-hr, p.Col-hc
	northM := c.north.Dot(dr, dc) * c.mpp
	eastM := c.east.Dot(dr, dc) * c.mpp
	out := Point{
		Lat: c.exif.Center.Lat + northM/c.mLat,
		Lon: c.exif.Center.Lon + eastM/c.mLon,
	}
	if err := out.Validate(); err != nil {
		return Point{}, err
	}
	return out, nil
}

// GeodeticToPixel returns the raw pixel where pt would be imaged. The result
// may lie outside the photo.
func (c *Camera) GeodeticToPixel(pt Point) (geometry.RawPixel, error) {
	if err := pt.Validate(); err != nil {
		return geometry.RawPixel{}, err
	}
	northPx := (pt.Lat - c.exif.Center.Lat) * c.mLat / c.mpp
	eastPx := (pt.Lon - c.exif.Center.Lon) * c.mLon / c.mpp
	hr, hc := c.halfSize()
	return geometry.RawPixel{
		Row: hr + northPx*c.north.Row + eastPx*c.east.Row,
		Col: hc + northPx*c.north.Col + eastPx*c.east.Col,
	}, nil
}

// Contains reports whether pt falls strictly inside the photo frame.
func (c *Camera) Contains(pt Point) bool {
	px, err := c.GeodeticToPixel(pt)
	if err != nil {
		return false
	}
	return px.Row > 0 && px.Row < float64(c.exif.Height) && px.Col > 0 && px.Col < float64(c.exif.Width)
}

// Footprint returns the ground outline of the photo as a closed ring in
// (lon, lat) order, starting at the top-left corner.
func (c *Camera) Footprint() (orb.Polygon, error) {
	w, h := float64(c.exif.Width), float64(c.exif.Height)
	corners := []geometry.RawPixel{{Col: 0, Row: 0}, {Col: w, Row: 0}, {Col: w, Row: h}, {Col: 0, Row: h}}
	ring := make(orb.Ring, 0, len(corners)+1)
	for _, px := range corners {
		pt, err := c.PixelToGeodetic(px)
		if err != nil {
			return nil, fmt.Errorf("footprint corner: %w", err)
		}
		ring = append(ring, pt.Orb())
	}
	ring = append(ring, ring[0])
	return orb.Polygon{ring}, nil
}

// Unit is a position expressed as fractions of a frame: Alpha runs down the
// rows and Beta across the columns.
type Unit struct {
	Alpha float64 `json:"alpha"`
	Beta  float64 `json:"beta"`
}

// InRegion reports whether both components lie in [0, 1].
func (u Unit) InRegion() bool {
	return u.Alpha >= 0 && u.Alpha <= 1 && u.Beta >= 0 && u.Beta <= 1
}

// GeodeticToUnit returns pt as fractions of the photo's rows and columns.
func (c *Camera) GeodeticToUnit(pt Point) (Unit, error) {
	px, err := c.GeodeticToPixel(pt)
	if err != nil {
		return Unit{}, err
	}
	return Unit{Alpha: px.Row / float64(c.exif.Height), Beta: px.Col / float64(c.exif.Width)}, nil
}

// UnitToGeodetic is the inverse of GeodeticToUnit.
func (c *Camera) UnitToGeodetic(u Unit) (Point, error) {
	return c.PixelToGeodetic(geometry.RawPixel{
		Row: u.Alpha * float64(c.exif.Height),
		Col: u.Beta * float64(c.exif.Width),
	})
}

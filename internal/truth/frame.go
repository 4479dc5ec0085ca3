package truth

import (
	"image"

	"argos/internal/geo"
	"argos/internal/raster"
	"argos/internal/region"
	"argos/pkg/colorutil"
	"argos/pkg/geometry"
)

// Frame is a rectangle ground truth can be placed on: a map, a tile or a
// photo. Unit coordinates inside the frame lie in [0, 1]².
type Frame interface {
	// Center is where nearby truth is looked up from.
	Center() geo.Point
	ToUnit(p geo.Point) (geo.Unit, error)
}

// RegionFrame places truth on a north-up map or tile region.
type RegionFrame struct {
	Region region.UnitRegion
}

func (f RegionFrame) Center() geo.Point { return f.Region.Center() }

func (f RegionFrame) ToUnit(p geo.Point) (geo.Unit, error) { return f.Region.ToUnit(p), nil }

// MapFrame places truth on a georeferenced orthomap through its geotransform.
type MapFrame struct {
	gt     *raster.GeoTransform
	center geo.Point
	w, h   float64
}

// NewMapFrame requires gt to know the raster size.
func NewMapFrame(gt *raster.GeoTransform) (*MapFrame, error) {
	w, h := gt.Size()
	if w <= 0 || h <= 0 {
		return nil, raster.ErrNoRasterSize
	}
	c, err := gt.PixelToGeodetic(geometry.MapPixel{Col: float64(w) / 2, Row: float64(h) / 2})
	if err != nil {
		return nil, err
	}
	return &MapFrame{gt: gt, center: c, w: float64(w), h: float64(h)}, nil
}

func (f *MapFrame) Center() geo.Point { return f.center }

func (f *MapFrame) ToUnit(p geo.Point) (geo.Unit, error) {
	px, err := f.gt.GeodeticToFractionalPixel(p)
	if err != nil {
		return geo.Unit{}, err
	}
	return geo.Unit{Alpha: px.Row / f.h, Beta: px.Col / f.w}, nil
}

// CameraFrame places truth on a raw photo from its capture metadata alone.
type CameraFrame struct {
	Camera *geo.Camera
}

func (f CameraFrame) Center() geo.Point { return f.Camera.Exif().Center }

func (f CameraFrame) ToUnit(p geo.Point) (geo.Unit, error) { return f.Camera.GeodeticToUnit(p) }

// Mask flags unit positions that hold no imagery.
type Mask interface {
	Blank(u geo.Unit) bool
}

// WhiteMask treats saturated white pixels of a rendering as padding.
type WhiteMask struct {
	Image image.Image
}

func (m WhiteMask) Blank(u geo.Unit) bool {
	b := m.Image.Bounds()
	if b.Empty() {
		return false
	}
	x := b.Min.X + clampIndex(int(u.Beta*float64(b.Dx())), b.Dx())
	y := b.Min.Y + clampIndex(int(u.Alpha*float64(b.Dy())), b.Dy())
	return colorutil.IsWhite(m.Image.At(x, y))
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

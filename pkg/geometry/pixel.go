package geometry

import (
	"errors"
	"fmt"
)

// ErrSpaceMismatch is returned when a tagged pixel is read back as a pixel
// of a different space.
var ErrSpaceMismatch = errors.New("pixel space mismatch")

// PixelSpace names the pixel grid a coordinate belongs to.
type PixelSpace int

const (
	SpaceUnknown   PixelSpace = iota
	SpaceRawImage             // Full-resolution drone photo
	SpaceOrthomap             // Full orthorectified basemap raster
	SpaceTile                 // Tile cut from a basemap
	SpaceImageCrop            // Window cropped from a raw photo for matching
	SpaceMapCrop              // Window cropped from the basemap for matching
)

func (s PixelSpace) String() string {
	switch s {
	case SpaceRawImage:
		return "raw-image"
	case SpaceOrthomap:
		return "orthomap"
	case SpaceTile:
		return "tile"
	case SpaceImageCrop:
		return "image-crop"
	case SpaceMapCrop:
		return "map-crop"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s PixelSpace) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *PixelSpace) UnmarshalText(b []byte) error {
	for _, c := range []PixelSpace{SpaceRawImage, SpaceOrthomap, SpaceTile, SpaceImageCrop, SpaceMapCrop} {
		if c.String() == string(b) {
			*s = c
			return nil
		}
	}
	return fmt.Errorf("unknown pixel space %q", b)
}

// Each pixel space gets its own type so that a transform's input and output
// space is checked by the compiler. Converting between them needs either an
// explicit transform or an explicit type conversion at the call site.

// RawPixel is a position in a raw drone photo.
type RawPixel struct {
	Col float64 `json:"col"`
	Row float64 `json:"row"`
}

// MapPixel is a position in an orthomap raster.
type MapPixel struct {
	Col float64 `json:"col"`
	Row float64 `json:"row"`
}

// TilePixel is a position in a map tile.
type TilePixel struct {
	Col float64 `json:"col"`
	Row float64 `json:"row"`
}

// ImageCropPixel is a position inside the matching window of a raw photo.
type ImageCropPixel struct {
	Col float64 `json:"col"`
	Row float64 `json:"row"`
}

// MapCropPixel is a position inside the matching window of an orthomap.
type MapCropPixel struct {
	Col float64 `json:"col"`
	Row float64 `json:"row"`
}

// Point returns the pixel as an (x=col, y=row) point.
func (p RawPixel) Point() Point2D { return Point2D{X: p.Col, Y: p.Row} }

// Point returns the pixel as an (x=col, y=row) point.
func (p MapPixel) Point() Point2D { return Point2D{X: p.Col, Y: p.Row} }

// Point returns the pixel as an (x=col, y=row) point.
func (p TilePixel) Point() Point2D { return Point2D{X: p.Col, Y: p.Row} }

// Point returns the pixel as an (x=col, y=row) point.
func (p ImageCropPixel) Point() Point2D { return Point2D{X: p.Col, Y: p.Row} }

// Point returns the pixel as an (x=col, y=row) point.
func (p MapCropPixel) Point() Point2D { return Point2D{X: p.Col, Y: p.Row} }

// Tagged returns the serialisable form of the pixel.
func (p RawPixel) Tagged() PixelPoint { return PixelPoint{SpaceRawImage, p.Col, p.Row} }

// Tagged returns the serialisable form of the pixel.
func (p MapPixel) Tagged() PixelPoint { return PixelPoint{SpaceOrthomap, p.Col, p.Row} }

// Tagged returns the serialisable form of the pixel.
func (p TilePixel) Tagged() PixelPoint { return PixelPoint{SpaceTile, p.Col, p.Row} }

// Truncate returns the pixel with both components truncated toward zero.
func (p MapPixel) Truncate() (col, row int) { return int(p.Col), int(p.Row) }

// PixelPoint is a pixel position carrying its space as data, for records
// that cross a serialisation boundary.
type PixelPoint struct {
	Space PixelSpace `json:"space"`
	Col   float64    `json:"col"`
	Row   float64    `json:"row"`
}

func (p PixelPoint) expect(s PixelSpace) error {
	if p.Space != s {
		return fmt.Errorf("%w: have %s, want %s", ErrSpaceMismatch, p.Space, s)
	}
	return nil
}

// Raw returns the point as a RawPixel.
func (p PixelPoint) Raw() (RawPixel, error) {
	if err := p.expect(SpaceRawImage); err != nil {
		return RawPixel{}, err
	}
	return RawPixel{Col: p.Col, Row: p.Row}, nil
}

// Map returns the point as a MapPixel.
func (p PixelPoint) Map() (MapPixel, error) {
	if err := p.expect(SpaceOrthomap); err != nil {
		return MapPixel{}, err
	}
	return MapPixel{Col: p.Col, Row: p.Row}, nil
}

// Tile returns the point as a TilePixel.
func (p PixelPoint) Tile() (TilePixel, error) {
	if err := p.expect(SpaceTile); err != nil {
		return TilePixel{}, err
	}
	return TilePixel{Col: p.Col, Row: p.Row}, nil
}

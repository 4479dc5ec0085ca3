// Package exif reads the capture metadata of DJI drone photos: GPS position
// and capture time from EXIF, altitude and yaw from the DJI XMP block.
package exif

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"io"
	"math"
	"os"
	"regexp"
	"strconv"

	goexif "github.com/rwcarlsen/goexif/exif"

	"argos/internal/geo"
)

// Diagonal of a 35mm film frame in millimetres.
const fullFrameDiagonal = 43.27

var ErrMissingTag = errors.New("missing metadata tag")

var xmpAttr = regexp.MustCompile(`drone-dji:(\w+)\s*=\s*"([^"]*)"`)
var xmpElem = regexp.MustCompile(`<drone-dji:(\w+)>([^<]*)</drone-dji:\w+>`)

// Options controls fallbacks for photos with incomplete metadata.
type Options struct {
	// FieldOfView is used when the photo has no 35mm-equivalent focal length.
	// Zero means the tag is required.
	FieldOfView float64
}

// ReadFile reads the capture metadata of the photo at path.
func ReadFile(path string, opts Options) (geo.CameraExif, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return geo.CameraExif{}, fmt.Errorf("read %s: %w", path, err)
	}
	meta, err := Read(bytes.NewReader(data), opts)
	if err != nil {
		return geo.CameraExif{}, fmt.Errorf("%s: %w", path, err)
	}
	return meta, nil
}

// Read decodes the capture metadata from a JPEG stream.
func Read(r io.Reader, opts Options) (geo.CameraExif, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return geo.CameraExif{}, err
	}
	x, err := goexif.Decode(bytes.NewReader(data))
	if err != nil {
		return geo.CameraExif{}, fmt.Errorf("decode exif: %w", err)
	}

	var out geo.CameraExif
	lat, lon, err := x.LatLong()
	if err != nil {
		return geo.CameraExif{}, fmt.Errorf("%w: gps position: %v", ErrMissingTag, err)
	}
	out.Center = geo.Point{Lat: lat, Lon: lon}
	if tm, err := x.DateTime(); err == nil {
		out.Captured = tm
	}

	out.FieldOfView = opts.FieldOfView
	if f35, ok := intTag(x, goexif.FocalLengthIn35mmFilm); ok && f35 > 0 {
		out.FieldOfView = FieldOfView(float64(f35))
	}
	if out.FieldOfView == 0 {
		return geo.CameraExif{}, fmt.Errorf("%w: FocalLengthIn35mmFilm", ErrMissingTag)
	}

	w, wok := intTag(x, goexif.PixelXDimension)
	h, hok := intTag(x, goexif.PixelYDimension)
	if !wok || !hok || w <= 0 || h <= 0 {
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return geo.CameraExif{}, fmt.Errorf("%w: image size: %v", ErrMissingTag, err)
		}
		w, h = cfg.Width, cfg.Height
	}
	out.Width, out.Height = w, h

	if err := applyXMP(&out, ParseXMP(data)); err != nil {
		return geo.CameraExif{}, err
	}
	return out, nil
}

func intTag(x *goexif.Exif, name goexif.FieldName) (int, bool) {
	tag, err := x.Get(name)
	if err != nil {
		return 0, false
	}
	v, err := tag.Int(0)
	if err != nil {
		return 0, false
	}
	return v, true
}

// FieldOfView returns the diagonal field of view in degrees of a lens with
// the given 35mm-equivalent focal length. It spans the frame diagonal, not the
// 36mm long side, to pair with the image diagonal in geo.MetersPerPixel.
func FieldOfView(focal35mm float64) float64 {
	return 2 * math.Atan(fullFrameDiagonal/(2*focal35mm)) * 180 / math.Pi
}

// ParseXMP extracts the drone-dji fields from an XMP packet, in either
// attribute or element form.
func ParseXMP(data []byte) map[string]string {
	fields := make(map[string]string)
	for _, m := range xmpAttr.FindAllSubmatch(data, -1) {
		fields[string(m[1])] = string(m[2])
	}
	for _, m := range xmpElem.FindAllSubmatch(data, -1) {
		fields[string(m[1])] = string(m[2])
	}
	return fields
}

func applyXMP(out *geo.CameraExif, fields map[string]string) error {
	alt, err := xmpFloat(fields, "RelativeAltitude")
	if err != nil {
		return err
	}
	out.RelativeAltitude = alt

	yaw, err := xmpFloat(fields, "GimbalYawDegree")
	if errors.Is(err, ErrMissingTag) {
		yaw, err = xmpFloat(fields, "FlightYawDegree")
	}
	if err != nil {
		return err
	}
	out.Yaw = yaw
	return nil
}

func xmpFloat(fields map[string]string, name string) (float64, error) {
	s, ok := fields[name]
	if !ok {
		return 0, fmt.Errorf("%w: drone-dji:%s", ErrMissingTag, name)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse drone-dji:%s %q: %w", name, s, err)
	}
	return v, nil
}

package gdalio

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/airbusgeo/godal"

	"argos/internal/raster"
)

var ErrWindow = errors.New("window outside raster")

// Orthomap is a georeferenced raster on disk. The dataset is opened for each
// read and closed straight after, so an Orthomap holds no file handles.
type Orthomap struct {
	path          string
	width, height int
	bands         int
	gt            *raster.GeoTransform
}

// OpenOrthomap reads the size, geotransform and CRS of the raster at path.
// Rasters without an embedded geotransform fall back to a world-file sidecar
// in EPSG:4326.
func OpenOrthomap(path string) (*Orthomap, error) {
	register()
	ds, err := godal.Open(path, godal.RasterOnly())
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer ds.Close()

	st := ds.Structure()
	if st.NBands < 1 {
		return nil, fmt.Errorf("%s: no raster bands", path)
	}

	var affine raster.Affine
	gt, gtErr := ds.GeoTransform()
	if gtErr == nil {
		affine = gt
	} else if wf := raster.FindWorldFile(path); wf != "" {
		if affine, err = raster.ReadWorldFile(wf); err != nil {
			return nil, err
		}
	} else {
		return nil, fmt.Errorf("%s: no geotransform: %w", path, gtErr)
	}

	crs, err := ReprojectorForWKT(ds.Projection())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	g, err := raster.NewGeoTransform(affine, crs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &Orthomap{
		path:   path,
		width:  st.SizeX,
		height: st.SizeY,
		bands:  st.NBands,
		gt:     g.WithSize(st.SizeX, st.SizeY),
	}, nil
}

// Path returns the raster file path.
func (m *Orthomap) Path() string { return m.path }

// Bounds returns the pixel extent of the raster.
func (m *Orthomap) Bounds() image.Rectangle { return image.Rect(0, 0, m.width, m.height) }

// GeoTransform returns the pixel/geodetic mapping of the raster.
func (m *Orthomap) GeoTransform() *raster.GeoTransform { return m.gt }

// ReadRGBA reads window r. Single-band rasters are expanded to gray RGB.
func (m *Orthomap) ReadRGBA(r image.Rectangle) (*image.RGBA, error) {
	if r.Empty() || !r.In(m.Bounds()) {
		return nil, fmt.Errorf("%w: %v not in %v", ErrWindow, r, m.Bounds())
	}
	ds, err := godal.Open(m.path, godal.RasterOnly())
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", m.path, err)
	}
	defer ds.Close()

	w, h := r.Dx(), r.Dy()
	bands := ds.Bands()
	channels := make([][]byte, 3)
	for i := range channels {
		src := i
		if src >= len(bands) {
			src = 0
		}
		if i > 0 && src == 0 {
			channels[i] = channels[0]
			continue
		}
		buf := make([]byte, w*h)
		if err := bands[src].Read(r.Min.X, r.Min.Y, buf, w, h); err != nil {
			return nil, fmt.Errorf("read band %d of %s: %w", src+1, m.path, err)
		}
		channels[i] = buf
	}

	out := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < w*h; i++ {
		out.Pix[4*i] = channels[0][i]
		out.Pix[4*i+1] = channels[1][i]
		out.Pix[4*i+2] = channels[2][i]
		out.Pix[4*i+3] = 0xff
	}
	return out, nil
}

// Window reads window r as single-channel intensity.
func (m *Orthomap) Window(r image.Rectangle) (*image.Gray, error) {
	rgba, err := m.ReadRGBA(r)
	if err != nil {
		return nil, err
	}
	b := rgba.Bounds()
	gray := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			gray.SetGray(x, y, color.GrayModel.Convert(rgba.RGBAAt(x, y)).(color.Gray))
		}
	}
	return gray, nil
}

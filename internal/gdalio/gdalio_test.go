package gdalio

import (
	"image"
	"path/filepath"
	"testing"

	"github.com/airbusgeo/godal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"argos/internal/geo"
	"argos/internal/raster"
	"argos/pkg/geometry"
)

// writeTestRaster creates a 3-band UTM 17N GeoTIFF whose red channel encodes
// the column and green channel the row.
func writeTestRaster(t *testing.T, w, h int) string {
	t.Helper()
	register()
	path := filepath.Join(t.TempDir(), "ortho.tif")
	ds, err := godal.Create(godal.GTiff, path, 3, godal.Byte, w, h)
	require.NoError(t, err)

	require.NoError(t, ds.SetGeoTransform([6]float64{330000, 0.05, 0, 4980000, 0, -0.05}))
	sr, err := godal.NewSpatialRefFromEPSG(32617)
	require.NoError(t, err)
	require.NoError(t, ds.SetSpatialRef(sr))
	sr.Close()

	red := make([]byte, w*h)
	green := make([]byte, w*h)
	blue := make([]byte, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			red[y*w+x] = byte(x)
			green[y*w+x] = byte(y)
			blue[y*w+x] = 0xff
		}
	}
	bands := ds.Bands()
	require.NoError(t, bands[0].Write(0, 0, red, w, h))
	require.NoError(t, bands[1].Write(0, 0, green, w, h))
	require.NoError(t, bands[2].Write(0, 0, blue, w, h))
	require.NoError(t, ds.Close())
	return path
}

func TestOpenOrthomap(t *testing.T) {
	path := writeTestRaster(t, 64, 48)
	m, err := OpenOrthomap(path)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 64, 48), m.Bounds())

	gt := m.GeoTransform()
	w, h := gt.Size()
	assert.Equal(t, 64, w)
	assert.Equal(t, 48, h)

	pt, err := gt.PixelToGeodetic(geometry.MapPixel{Col: 10.5, Row: 20.5})
	require.NoError(t, err)
	assert.InDelta(t, 44.96, pt.Lat, 0.1)
	assert.InDelta(t, -83.1, pt.Lon, 0.2)

	back, err := gt.GeodeticToPixel(pt)
	require.NoError(t, err)
	assert.InDelta(t, 10, back.Col, 1)
	assert.InDelta(t, 20, back.Row, 1)
}

func TestOrthomapWindows(t *testing.T) {
	m, err := OpenOrthomap(writeTestRaster(t, 64, 48))
	require.NoError(t, err)

	rgba, err := m.ReadRGBA(image.Rect(8, 4, 24, 20))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 16, 16), rgba.Bounds())
	c := rgba.RGBAAt(3, 5)
	assert.Equal(t, uint8(11), c.R)
	assert.Equal(t, uint8(9), c.G)
	assert.Equal(t, uint8(0xff), c.B)

	gray, err := m.Window(image.Rect(0, 0, 64, 48))
	require.NoError(t, err)
	assert.Equal(t, 64*48, len(gray.Pix))

	_, err = m.Window(image.Rect(60, 40, 70, 50))
	assert.ErrorIs(t, err, ErrWindow)
}

func TestReprojectorForEPSG(t *testing.T) {
	r, err := ReprojectorForEPSG(4326)
	require.NoError(t, err)
	assert.IsType(t, raster.Geographic{}, r)

	utm, err := ReprojectorForEPSG(32617)
	require.NoError(t, err)
	again, err := ReprojectorForEPSG(32617)
	require.NoError(t, err)
	assert.Same(t, utm, again)

	p := geo.Point{Lat: 44.95, Lon: -83.05}
	x, y, err := utm.FromGeodetic(p)
	require.NoError(t, err)
	back, err := utm.ToGeodetic(x, y)
	require.NoError(t, err)
	assert.InDelta(t, p.Lat, back.Lat, 1e-8)
	assert.InDelta(t, p.Lon, back.Lon, 1e-8)
}

package raster

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"argos/internal/geo"
	"argos/pkg/geometry"
)

var geographicAffine = Affine{-83.1, 2e-6, 0, 45.0, 0, -2e-6}

func TestGeoTransformRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		affine Affine
		crs    Reprojector
	}{
		{"geographic", geographicAffine, Geographic{}},
		{"nil crs", geographicAffine, nil},
		{"web mercator", Affine{-9250000, 0.03, 0, 5620000, 0, -0.03}, WebMercator{}},
		{"skewed", Affine{-83.1, 2e-6, 1e-7, 45.0, 2e-7, -2e-6}, Geographic{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gt, err := NewGeoTransform(tt.affine, tt.crs)
			require.NoError(t, err)

			for _, px := range []geometry.MapPixel{{Col: 0.5, Row: 0.5}, {Col: 1234.5, Row: 567.5}, {Col: 9000.25, Row: 20.75}} {
				pt, err := gt.PixelToGeodetic(px)
				require.NoError(t, err)

				back, err := gt.GeodeticToPixel(pt)
				require.NoError(t, err)
				col, row := px.Truncate()
				assert.InDelta(t, float64(col), back.Col, 1)
				assert.InDelta(t, float64(row), back.Row, 1)

				exact, err := gt.GeodeticToFractionalPixel(pt)
				require.NoError(t, err)
				assert.InDelta(t, px.Col, exact.Col, 1e-4)
				assert.InDelta(t, px.Row, exact.Row, 1e-4)
			}
		})
	}
}

func TestGeodeticToPixelTruncates(t *testing.T) {
	gt, err := NewGeoTransform(geographicAffine, Geographic{})
	require.NoError(t, err)

	px, err := gt.GeodeticToPixel(geo.Point{Lat: 45.0 - 10.5*2e-6, Lon: -83.1 + 20.5*2e-6})
	require.NoError(t, err)
	assert.Equal(t, geometry.MapPixel{Col: 20, Row: 10}, px)
}

func TestNewGeoTransformRejectsSingular(t *testing.T) {
	_, err := NewGeoTransform(Affine{0, 1, 2, 0, 2, 4}, nil)
	assert.ErrorIs(t, err, ErrSingularTransform)

	_, err = NewGeoTransform(Affine{}, nil)
	assert.ErrorIs(t, err, ErrSingularTransform)
}

func TestGeographicRejectsInvalidCoordinates(t *testing.T) {
	gt, err := NewGeoTransform(Affine{179, 1, 0, 0, 0, -1}, nil)
	require.NoError(t, err)

	_, err = gt.PixelToGeodetic(geometry.MapPixel{Col: 5, Row: 0})
	assert.ErrorIs(t, err, geo.ErrInvalidCoordinate)

	_, err = gt.GeodeticToPixel(geo.Point{Lat: 91})
	assert.ErrorIs(t, err, geo.ErrInvalidCoordinate)
}

func TestWebMercator(t *testing.T) {
	x, y, err := WebMercator{}.FromGeodetic(geo.Point{Lat: 0, Lon: 180})
	require.NoError(t, err)
	assert.InDelta(t, 20037508.34, x, 1e-6)
	assert.InDelta(t, 0, y, 1e-6)

	p := geo.Point{Lat: 44.95, Lon: -83.05}
	x, y, err = WebMercator{}.FromGeodetic(p)
	require.NoError(t, err)
	back, err := WebMercator{}.ToGeodetic(x, y)
	require.NoError(t, err)
	assert.InDelta(t, p.Lat, back.Lat, 1e-9)
	assert.InDelta(t, p.Lon, back.Lon, 1e-9)

	_, _, err = WebMercator{}.FromGeodetic(geo.Point{Lat: 89})
	assert.ErrorIs(t, err, ErrReproject)
}

func TestReprojectorForEPSG(t *testing.T) {
	r, ok := ReprojectorForEPSG(4326)
	require.True(t, ok)
	assert.IsType(t, Geographic{}, r)

	r, ok = ReprojectorForEPSG(3857)
	require.True(t, ok)
	assert.IsType(t, WebMercator{}, r)

	_, ok = ReprojectorForEPSG(32617)
	assert.False(t, ok)
}

func TestDisplayToGeodetic(t *testing.T) {
	gt, err := NewGeoTransform(geographicAffine, nil)
	require.NoError(t, err)

	_, err = gt.DisplayToGeodetic(0.5, 0.5)
	assert.ErrorIs(t, err, ErrNoRasterSize)

	sized := gt.WithSize(10000, 5000)
	w, h := sized.Size()
	assert.Equal(t, 10000, w)
	assert.Equal(t, 5000, h)

	pt, err := sized.DisplayToGeodetic(0.5, 0.5)
	require.NoError(t, err)
	assert.InDelta(t, 45.0-2500*2e-6, pt.Lat, 1e-12)
	assert.InDelta(t, -83.1+5000*2e-6, pt.Lon, 1e-12)

	assert.True(t, sized.Contains(geometry.MapPixel{Col: 9999, Row: 0}))
	assert.False(t, sized.Contains(geometry.MapPixel{Col: 10000, Row: 0}))
	assert.False(t, gt.Contains(geometry.MapPixel{}))
}

func TestParseWorldFile(t *testing.T) {
	a, err := ParseWorldFile(strings.NewReader("0.05\n0.0\n0.0\n-0.05\n500000.025\n4980000.975\n"))
	require.NoError(t, err)
	assert.InDelta(t, 500000.0, a[0], 1e-9)
	assert.InDelta(t, 0.05, a[1], 1e-12)
	assert.InDelta(t, 4980001.0, a[3], 1e-9)
	assert.InDelta(t, -0.05, a[5], 1e-12)

	tests := []struct {
		name, body string
	}{
		{"too few", "1\n2\n3\n"},
		{"too many", "1\n0\n0\n-1\n0\n0\n7\n"},
		{"not a number", "1\n0\nzero\n-1\n0\n0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseWorldFile(strings.NewReader(tt.body))
			assert.ErrorIs(t, err, ErrWorldFile)
		})
	}
}

func TestFindWorldFile(t *testing.T) {
	dir := t.TempDir()
	tif := filepath.Join(dir, "ortho.tif")
	assert.Equal(t, "", FindWorldFile(tif))

	tfw := filepath.Join(dir, "ortho.tfw")
	require.NoError(t, os.WriteFile(tfw, []byte("1\n0\n0\n-1\n0.5\n-0.5\n"), 0o644))
	assert.Equal(t, tfw, FindWorldFile(tif))

	a, err := ReadWorldFile(tfw)
	require.NoError(t, err)
	assert.Equal(t, Affine{0, 1, 0, 0, 0, -1}, a)
}

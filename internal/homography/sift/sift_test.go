package sift

import (
	"context"
	"errors"
	"image"
	"image/color"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"argos/internal/geo"
	"argos/internal/homography"
	"argos/internal/raster"
	"argos/pkg/geometry"
)

// texture draws random overlapping rectangles, which give SIFT plenty of
// corners to work with.
func texture(w, h int, seed int64) *image.Gray {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 128
	}
	for n := 0; n < 250; n++ {
		x0, y0 := rng.Intn(w), rng.Intn(h)
		rw, rh := 6+rng.Intn(40), 6+rng.Intn(40)
		v := color.Gray{Y: uint8(rng.Intn(256))}
		for y := y0; y < y0+rh && y < h; y++ {
			for x := x0; x < x0+rw && x < w; x++ {
				img.SetGray(x, y, v)
			}
		}
	}
	return img
}

func uniform(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	return img
}

func TestMatchShiftedTexture(t *testing.T) {
	base := texture(520, 520, 3)
	photo := base.SubImage(image.Rect(0, 0, 400, 400)).(*image.Gray)
	ortho := base.SubImage(image.Rect(15, 9, 415, 409)).(*image.Gray)

	cands, err := New().Match(context.Background(), photo, ortho)
	require.NoError(t, err)

	src, dst := homography.RatioTest(cands, 0.8)
	require.GreaterOrEqual(t, len(src), 8)

	h, inliers, err := geometry.PerspectiveRANSAC(context.Background(), src, dst, geometry.RANSACOptions{
		Iterations: 1000,
		Threshold:  3,
		Rand:       rand.New(rand.NewSource(1)),
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(inliers), 8)

	// A photo pixel at (x, y) sits at (x-15, y-9) in the map crop.
	got, ok := h.Apply(geometry.Point2D{X: 200, Y: 200})
	require.True(t, ok)
	assert.InDelta(t, 185, got.X, 1.5)
	assert.InDelta(t, 191, got.Y, 1.5)
}

func TestMatchUniformImageFindsNothing(t *testing.T) {
	cands, err := New().Match(context.Background(), uniform(300, 300), texture(300, 300, 5))
	require.NoError(t, err)
	src, _ := homography.RatioTest(cands, 0.8)
	assert.Less(t, len(src), 8)
}

func TestMatchRejectsEmptyImage(t *testing.T) {
	_, err := New().Match(context.Background(), image.NewGray(image.Rectangle{}), uniform(10, 10))
	assert.Error(t, err)
}

type grayPhoto struct {
	img  *image.Gray
	exif geo.CameraExif
}

func (p grayPhoto) Exif() geo.CameraExif { return p.exif }

func (p grayPhoto) Bounds() image.Rectangle { return p.img.Bounds() }

func (p grayPhoto) Window(r image.Rectangle) (*image.Gray, error) {
	return p.img.SubImage(r).(*image.Gray), nil
}

type grayOrtho struct {
	grayPhoto
	gt *raster.GeoTransform
}

func (o grayOrtho) GeoTransform() *raster.GeoTransform { return o.gt }

func testOrtho(t *testing.T, img *image.Gray) grayOrtho {
	t.Helper()
	gt, err := raster.NewGeoTransform(raster.Affine{-83.1, 1e-5, 0, 45.0, 0, -1e-5}, nil)
	require.NoError(t, err)
	b := img.Bounds()
	return grayOrtho{grayPhoto: grayPhoto{img: img}, gt: gt.WithSize(b.Dx(), b.Dy())}
}

func testPhoto(img *image.Gray) grayPhoto {
	b := img.Bounds()
	return grayPhoto{
		img:  img,
		exif: geo.CameraExif{Center: geo.Point{Lat: 44.997, Lon: -83.097}, Width: b.Dx(), Height: b.Dy()},
	}
}

func TestEstimatorFeaturelessPhoto(t *testing.T) {
	est := homography.NewEstimator(New(), homography.Options{CropSize: 300})
	_, err := est.Estimate(context.Background(), testPhoto(uniform(600, 400)), testOrtho(t, texture(600, 600, 11)))
	assert.ErrorIs(t, err, homography.ErrNoMatchFound)
}

func TestEstimatorUnrelatedImages(t *testing.T) {
	photoImg := texture(600, 400, 21)
	orthoImg := texture(600, 600, 22)

	// Both images are textured, so the rejection comes from the ratio test
	// and RANSAC rather than from an empty detection.
	cands, err := New().Match(context.Background(), photoImg, orthoImg)
	require.NoError(t, err)
	require.NotEmpty(t, cands)

	est := homography.NewEstimator(New(), homography.Options{CropSize: 300, MinMatches: 12, Seed: 1})
	_, err = est.Estimate(context.Background(), testPhoto(photoImg), testOrtho(t, orthoImg))
	assert.True(t, errors.Is(err, homography.ErrNoMatchFound), "got %v", err)
}

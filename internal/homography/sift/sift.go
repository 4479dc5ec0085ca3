// Package sift implements homography.FeatureMatcher with OpenCV SIFT features
// and brute-force k-nearest-neighbour descriptor matching.
package sift

import (
	"context"
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"argos/internal/homography"
	"argos/pkg/geometry"
)

// Matcher is safe for concurrent use; OpenCV objects are created per call.
type Matcher struct{}

// New returns a SIFT matcher.
func New() *Matcher { return &Matcher{} }

// Match implements homography.FeatureMatcher.
func (m *Matcher) Match(ctx context.Context, photo, ortho *image.Gray) ([]homography.Candidate, error) {
	photoMat, err := toMat(photo)
	if err != nil {
		return nil, fmt.Errorf("photo crop: %w", err)
	}
	defer photoMat.Close()
	orthoMat, err := toMat(ortho)
	if err != nil {
		return nil, fmt.Errorf("map crop: %w", err)
	}
	defer orthoMat.Close()

	detector := gocv.NewSIFT()
	defer detector.Close()

	mask := gocv.NewMat()
	defer mask.Close()

	photoKP, photoDesc := detector.DetectAndCompute(photoMat, mask)
	defer photoDesc.Close()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	orthoKP, orthoDesc := detector.DetectAndCompute(orthoMat, mask)
	defer orthoDesc.Close()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Uniform crops produce no features at all.
	if photoDesc.Empty() || orthoDesc.Empty() || len(orthoKP) < 2 {
		return nil, nil
	}

	bf := gocv.NewBFMatcher()
	defer bf.Close()
	knn := bf.KnnMatch(photoDesc, orthoDesc, 2)

	out := make([]homography.Candidate, 0, len(knn))
	for _, pair := range knn {
		if len(pair) == 0 {
			continue
		}
		q := pair[0].QueryIdx
		if q < 0 || q >= len(photoKP) {
			continue
		}
		c := homography.Candidate{Point: geometry.Point2D{X: photoKP[q].X, Y: photoKP[q].Y}}
		for _, dm := range pair {
			if dm.TrainIdx < 0 || dm.TrainIdx >= len(orthoKP) {
				continue
			}
			kp := orthoKP[dm.TrainIdx]
			c.Neighbors = append(c.Neighbors, homography.Neighbor{
				Point:    geometry.Point2D{X: kp.X, Y: kp.Y},
				Distance: dm.Distance,
			})
		}
		out = append(out, c)
	}
	return out, nil
}

// toMat copies a gray image into a CV_8U Mat.
func toMat(img *image.Gray) (gocv.Mat, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return gocv.NewMat(), fmt.Errorf("empty image")
	}
	pix := make([]byte, w*h)
	for y := 0; y < h; y++ {
		off := img.PixOffset(b.Min.X, b.Min.Y+y)
		copy(pix[y*w:(y+1)*w], img.Pix[off:off+w])
	}
	return gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8U, pix)
}

package homography

import (
	"context"
	"image"

	"argos/pkg/geometry"
)

// Neighbor is one candidate match of a photo feature in the map crop.
type Neighbor struct {
	Point    geometry.Point2D
	Distance float64
}

// Candidate is a photo feature with its nearest map features, closest first.
type Candidate struct {
	Point     geometry.Point2D
	Neighbors []Neighbor
}

// FeatureMatcher detects features in both crops and returns, for each photo
// feature, its two nearest map features in descriptor space.
type FeatureMatcher interface {
	Match(ctx context.Context, photo, ortho *image.Gray) ([]Candidate, error)
}

// RatioTest keeps candidates whose best neighbor is clearly better than the
// second best, and returns them as photo-crop → map-crop point pairs.
func RatioTest(cands []Candidate, ratio float64) (src, dst []geometry.Point2D) {
	for _, c := range cands {
		if len(c.Neighbors) < 2 {
			continue
		}
		if c.Neighbors[0].Distance < ratio*c.Neighbors[1].Distance {
			src = append(src, c.Point)
			dst = append(dst, c.Neighbors[0].Point)
		}
	}
	return src, dst
}

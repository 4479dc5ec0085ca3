package geometry

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// RANSACOptions configures PerspectiveRANSAC.
type RANSACOptions struct {
	Iterations int        // Number of random 4-point samples
	Threshold  float64    // Inlier reprojection distance in pixels
	Rand       *rand.Rand // Optional source; nil uses the global source
}

// DefaultRANSACOptions returns the settings used for photo-to-map matching.
func DefaultRANSACOptions() RANSACOptions {
	return RANSACOptions{Iterations: 2000, Threshold: 5.0}
}

// FitPerspective computes the projective transform mapping src[i] to dst[i]
// with the normalised direct linear transform. Four pairs give an exact fit,
// more pairs give the algebraic least-squares fit.
func FitPerspective(src, dst []Point2D) (Perspective, error) {
	if len(src) != len(dst) {
		return Perspective{}, fmt.Errorf("point count mismatch: %d vs %d", len(src), len(dst))
	}
	n := len(src)
	if n < 4 {
		return Perspective{}, fmt.Errorf("need at least 4 points, got %d", n)
	}

	tSrc, okSrc := normalization(src)
	tDst, okDst := normalization(dst)
	if !okSrc || !okDst {
		return Perspective{}, fmt.Errorf("degenerate points")
	}

	// Each correspondence contributes two rows of A*h = 0.
	A := mat.NewDense(2*n, 9, nil)
	for i := 0; i < n; i++ {
		s, _ := tSrc.Apply(src[i])
		d, _ := tDst.Apply(dst[i])
		x, y := s.X, s.Y
		u, v := d.X, d.Y

		A.SetRow(2*i, []float64{-x, -y, -1, 0, 0, 0, u * x, u * y, u})
		A.SetRow(2*i+1, []float64{0, 0, 0, -x, -y, -1, v * x, v * y, v})
	}

	var svd mat.SVD
	if ok := svd.Factorize(A, mat.SVDFull); !ok {
		return Perspective{}, fmt.Errorf("SVD failed to factorize")
	}
	var V mat.Dense
	svd.VTo(&V)

	// The solution is the right singular vector of the smallest singular value.
	var hn Perspective
	for k := 0; k < 9; k++ {
		hn[k/3][k%3] = V.At(k, 8)
	}

	invDst, err := tDst.Inverse()
	if err != nil {
		return Perspective{}, err
	}
	h := invDst.Mul(hn).Mul(tSrc)
	if math.Abs(h[2][2]) < 1e-12 {
		return Perspective{}, fmt.Errorf("degenerate homography")
	}
	h = h.normalized()
	if det := h.Determinant(); math.Abs(det) < 1e-12 || math.IsNaN(det) {
		return Perspective{}, fmt.Errorf("degenerate homography")
	}
	return h, nil
}

// normalization returns the similarity that moves the centroid of pts to the
// origin and scales their mean distance from it to sqrt(2).
func normalization(pts []Point2D) (Perspective, bool) {
	c := Centroid(pts)
	var mean float64
	for _, p := range pts {
		mean += p.Distance(c)
	}
	mean /= float64(len(pts))
	if mean < 1e-12 {
		return Perspective{}, false
	}
	s := math.Sqrt2 / mean
	return Perspective{
		{s, 0, -s * c.X},
		{0, s, -s * c.Y},
		{0, 0, 1},
	}, true
}

// PerspectiveRANSAC computes a projective transform from point
// correspondences that may contain outliers. It returns the transform refit on
// all inliers of the best 4-point hypothesis, and the inlier indices.
func PerspectiveRANSAC(ctx context.Context, srcPoints, dstPoints []Point2D, opts RANSACOptions) (Perspective, []int, error) {
	if len(srcPoints) != len(dstPoints) || len(srcPoints) < 4 {
		return Perspective{}, nil, fmt.Errorf("invalid point sets")
	}
	if opts.Iterations <= 0 {
		opts.Iterations = DefaultRANSACOptions().Iterations
	}
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultRANSACOptions().Threshold
	}
	perm := rand.Perm
	if opts.Rand != nil {
		perm = opts.Rand.Perm
	}

	n := len(srcPoints)
	bestInliers := []int{}

	sample := make([]Point2D, 4)
	target := make([]Point2D, 4)
	for iter := 0; iter < opts.Iterations; iter++ {
		if iter%64 == 0 {
			if err := ctx.Err(); err != nil {
				return Perspective{}, nil, err
			}
		}

		// Randomly sample 4 points
		indices := perm(n)[:4]
		for i, idx := range indices {
			sample[i] = srcPoints[idx]
			target[i] = dstPoints[idx]
		}

		transform, err := FitPerspective(sample, target)
		if err != nil {
			continue
		}

		inliers := countInliers(transform, srcPoints, dstPoints, opts.Threshold)
		if len(inliers) > len(bestInliers) {
			bestInliers = inliers
			if len(bestInliers) == n {
				break
			}
		}
	}

	if len(bestInliers) < 4 {
		return Perspective{}, nil, fmt.Errorf("RANSAC failed to find enough inliers")
	}

	// Recompute transform using all inliers
	inlierSrc := make([]Point2D, len(bestInliers))
	inlierDst := make([]Point2D, len(bestInliers))
	for i, idx := range bestInliers {
		inlierSrc[i] = srcPoints[idx]
		inlierDst[i] = dstPoints[idx]
	}

	final, err := FitPerspective(inlierSrc, inlierDst)
	if err != nil {
		return Perspective{}, nil, err
	}

	// The refit may move the model; report the inliers it actually explains.
	return final, countInliers(final, srcPoints, dstPoints, opts.Threshold), nil
}

func countInliers(h Perspective, src, dst []Point2D, threshold float64) []int {
	var inliers []int
	for i := range src {
		mapped, ok := h.Apply(src[i])
		if !ok {
			continue
		}
		if mapped.Distance(dst[i]) < threshold {
			inliers = append(inliers, i)
		}
	}
	return inliers
}

// ReprojectionError returns the mean distance between the mapped source
// points and their targets.
func ReprojectionError(h Perspective, src, dst []Point2D) float64 {
	if len(src) != len(dst) || len(src) == 0 {
		return math.Inf(1)
	}

	var total float64
	for i := range src {
		mapped, ok := h.Apply(src[i])
		if !ok {
			return math.Inf(1)
		}
		total += mapped.Distance(dst[i])
	}
	return total / float64(len(src))
}

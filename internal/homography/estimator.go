package homography

import (
	"context"
	"fmt"
	"image"
	"math/rand"

	"argos/internal/geo"
	"argos/internal/raster"
	"argos/pkg/geometry"
)

// Photo is a raw drone photo with its capture metadata.
type Photo interface {
	Exif() geo.CameraExif
	Bounds() image.Rectangle
	Window(r image.Rectangle) (*image.Gray, error)
}

// Orthomap is a georeferenced basemap raster.
type Orthomap interface {
	GeoTransform() *raster.GeoTransform
	Bounds() image.Rectangle
	Window(r image.Rectangle) (*image.Gray, error)
}

// Options configures an Estimator.
type Options struct {
	CropSize        int     // Side of the square crops matched, in pixels
	Ratio           float64 // Lowe ratio-test threshold
	MinMatches      int     // Minimum accepted matches and RANSAC inliers
	ReprojThreshold float64 // RANSAC inlier distance in map-crop pixels
	Iterations      int     // RANSAC iterations

	// ImageReference is the photo pixel the photo crop is centred on, for
	// cameras whose optical centre is not the image centre. Nil means the
	// image centre.
	ImageReference *image.Point

	// Seed fixes RANSAC sampling when non-zero.
	Seed int64
}

// DefaultOptions returns the estimator settings used for DJI survey photos.
func DefaultOptions() Options {
	return Options{
		CropSize:        800,
		Ratio:           0.8,
		MinMatches:      8,
		ReprojThreshold: 5.0,
		Iterations:      geometry.DefaultRANSACOptions().Iterations,
	}
}

// Estimator registers photos onto orthomaps. It is safe for concurrent use
// if its FeatureMatcher is.
type Estimator struct {
	opts    Options
	matcher FeatureMatcher
}

// NewEstimator returns an estimator; zero fields of opts take their defaults.
func NewEstimator(matcher FeatureMatcher, opts Options) *Estimator {
	def := DefaultOptions()
	if opts.CropSize <= 0 {
		opts.CropSize = def.CropSize
	}
	if opts.Ratio <= 0 {
		opts.Ratio = def.Ratio
	}
	if opts.MinMatches < 4 {
		opts.MinMatches = def.MinMatches
	}
	if opts.ReprojThreshold <= 0 {
		opts.ReprojThreshold = def.ReprojThreshold
	}
	if opts.Iterations <= 0 {
		opts.Iterations = def.Iterations
	}
	return &Estimator{opts: opts, matcher: matcher}
}

// Options returns the effective settings.
func (e *Estimator) Options() Options { return e.opts }

// Estimate crops the orthomap around the photo's GPS position and the photo
// around its reference point, matches features between the two crops and
// fits a homography from photo crop to map crop. It fails with
// ErrNoMatchFound rather than returning an identity fallback.
func (e *Estimator) Estimate(ctx context.Context, photo Photo, ortho Orthomap) (Homography, error) {
	center, err := ortho.GeoTransform().GeodeticToPixel(photo.Exif().Center)
	if err != nil {
		return Homography{}, fmt.Errorf("locate photo on map: %w", err)
	}
	mapWin, err := CropWindow(image.Pt(int(center.Col), int(center.Row)), e.opts.CropSize, ortho.Bounds())
	if err != nil {
		return Homography{}, fmt.Errorf("map crop: %w", err)
	}

	ref := centerOf(photo.Bounds())
	if e.opts.ImageReference != nil {
		ref = *e.opts.ImageReference
	}
	imgWin, err := CropWindow(ref, e.opts.CropSize, photo.Bounds())
	if err != nil {
		return Homography{}, fmt.Errorf("photo crop: %w", err)
	}

	mapCrop, err := ortho.Window(mapWin)
	if err != nil {
		return Homography{}, fmt.Errorf("read map crop: %w", err)
	}
	imgCrop, err := photo.Window(imgWin)
	if err != nil {
		return Homography{}, fmt.Errorf("read photo crop: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return Homography{}, err
	}

	cands, err := e.matcher.Match(ctx, imgCrop, mapCrop)
	if err != nil {
		return Homography{}, fmt.Errorf("match features: %w", err)
	}
	src, dst := RatioTest(cands, e.opts.Ratio)
	if len(src) < e.opts.MinMatches {
		return Homography{}, fmt.Errorf("%w: %d good matches, need %d", ErrNoMatchFound, len(src), e.opts.MinMatches)
	}
	if err := ctx.Err(); err != nil {
		return Homography{}, err
	}

	ransac := geometry.RANSACOptions{Iterations: e.opts.Iterations, Threshold: e.opts.ReprojThreshold}
	if e.opts.Seed != 0 {
		ransac.Rand = rand.New(rand.NewSource(e.opts.Seed))
	}
	h, inliers, err := geometry.PerspectiveRANSAC(ctx, src, dst, ransac)
	if err != nil {
		if ctx.Err() != nil {
			return Homography{}, err
		}
		return Homography{}, fmt.Errorf("%w: %v", ErrNoMatchFound, err)
	}
	if len(inliers) < e.opts.MinMatches {
		return Homography{}, fmt.Errorf("%w: %d inliers, need %d", ErrNoMatchFound, len(inliers), e.opts.MinMatches)
	}

	return Homography{
		Matrix:     &h,
		ImageLower: imgWin.Min.Y,
		ImageLeft:  imgWin.Min.X,
		MapLower:   mapWin.Min.Y,
		MapLeft:    mapWin.Min.X,
		Matches:    len(src),
		Inliers:    len(inliers),
	}, nil
}

func centerOf(r image.Rectangle) image.Point {
	return image.Pt((r.Min.X+r.Max.X)/2, (r.Min.Y+r.Max.Y)/2)
}

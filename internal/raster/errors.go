package raster

import "errors"

var (
	ErrSingularTransform = errors.New("singular geotransform")
	ErrReproject         = errors.New("reprojection failed")
	ErrNoRasterSize      = errors.New("raster size unknown")
	ErrWorldFile         = errors.New("malformed world file")
)

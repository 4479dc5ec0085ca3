package geo

import "errors"

var (
	ErrDomain            = errors.New("invalid numeric input")
	ErrInvalidCoordinate = errors.New("coordinate out of range")
	ErrDeclination       = errors.New("declination model failed")
)

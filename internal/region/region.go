// Package region describes the geographic extent of survey maps and tiles and
// maps positions to fractional (alpha, beta) coordinates over them.
package region

import (
	"errors"
	"fmt"

	"argos/internal/geo"
)

var (
	ErrNoBoundaries   = errors.New("no boundaries")
	ErrBadIdentifier  = errors.New("malformed identifier")
	ErrDegenerateArea = errors.New("degenerate bounds")
)

// Unit is a fractional position: Alpha from north (0) to south (1), Beta from
// west (0) to east (1).
type Unit = geo.Unit

// Bounds is a north-up geographic rectangle in degrees.
type Bounds struct {
	North float64 `json:"north" mapstructure:"north"`
	South float64 `json:"south" mapstructure:"south"`
	East  float64 `json:"east" mapstructure:"east"`
	West  float64 `json:"west" mapstructure:"west"`
}

// Validate rejects bounds with no extent or out-of-range coordinates.
func (b Bounds) Validate() error {
	for _, p := range []geo.Point{{Lat: b.North, Lon: b.West}, {Lat: b.South, Lon: b.East}} {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	if b.North == b.South || b.East == b.West {
		return fmt.Errorf("%w: %+v", ErrDegenerateArea, b)
	}
	return nil
}

// Center returns the midpoint of the bounds.
func (b Bounds) Center() geo.Point {
	return geo.Point{Lat: (b.North + b.South) / 2, Lon: (b.East + b.West) / 2}
}

// UnitRegion linearly maps positions inside Bounds to [0, 1]².
type UnitRegion struct {
	Bounds Bounds
}

// NewUnitRegion validates b.
func NewUnitRegion(b Bounds) (UnitRegion, error) {
	if err := b.Validate(); err != nil {
		return UnitRegion{}, err
	}
	return UnitRegion{Bounds: b}, nil
}

// Center returns the centre of the region.
func (r UnitRegion) Center() geo.Point { return r.Bounds.Center() }

// ToUnit returns p as fractions of the region. Points outside the region give
// components outside [0, 1].
func (r UnitRegion) ToUnit(p geo.Point) Unit {
	b := r.Bounds
	return Unit{
		Alpha: (p.Lat - b.North) / (b.South - b.North),
		Beta:  (p.Lon - b.West) / (b.East - b.West),
	}
}

// ToGeodetic is the inverse of ToUnit.
func (r UnitRegion) ToGeodetic(u Unit) geo.Point {
	b := r.Bounds
	return geo.Point{
		Lat: b.North*(1-u.Alpha) + b.South*u.Alpha,
		Lon: b.West*(1-u.Beta) + b.East*u.Beta,
	}
}

// Contains reports whether p lies inside the region, edges included.
func (r UnitRegion) Contains(p geo.Point) bool {
	return r.ToUnit(p).InRegion()
}

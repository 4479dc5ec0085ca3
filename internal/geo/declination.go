package geo

import (
	"fmt"
	"strings"
	"time"

	"github.com/westphae/geomag/pkg/egm96"
	"github.com/westphae/geomag/pkg/wmm"
)

// DeclinationModel returns the magnetic declination in degrees (east positive)
// at a position and time.
type DeclinationModel interface {
	Declination(p Point, at time.Time) (float64, error)
}

// WMM evaluates the World Magnetic Model at ground level.
type WMM struct{}

// Declination implements DeclinationModel.
func (WMM) Declination(p Point, at time.Time) (float64, error) {
	if at.IsZero() {
		at = time.Now()
	}
	loc := egm96.NewLocationGeodetic(p.Lat, p.Lon, 0)
	field, err := wmm.CalculateWMMMagneticField(loc, at)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDeclination, err)
	}
	return field.D(), nil
}

// FixedDeclination is a constant declination, for surveys where the value is
// known up front.
type FixedDeclination float64

// Declination implements DeclinationModel.
func (f FixedDeclination) Declination(Point, time.Time) (float64, error) {
	return float64(f), nil
}

// DeclinationConvention selects how declination is applied to the recorded
// camera yaw.
type DeclinationConvention int

const (
	DeclinationAdd DeclinationConvention = iota
	DeclinationSubtract
	DeclinationIgnore
)

func (c DeclinationConvention) String() string {
	switch c {
	case DeclinationAdd:
		return "add"
	case DeclinationSubtract:
		return "subtract"
	case DeclinationIgnore:
		return "ignore"
	default:
		return fmt.Sprintf("DeclinationConvention(%d)", int(c))
	}
}

// ParseDeclinationConvention parses "add", "subtract" or "ignore". An empty
// string selects DeclinationAdd.
func ParseDeclinationConvention(s string) (DeclinationConvention, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "add":
		return DeclinationAdd, nil
	case "subtract":
		return DeclinationSubtract, nil
	case "ignore", "none":
		return DeclinationIgnore, nil
	}
	return 0, fmt.Errorf("unknown declination convention %q", s)
}

// Declination pairs a model with the convention used to apply it. The zero
// value applies no correction.
type Declination struct {
	Model      DeclinationModel
	Convention DeclinationConvention
}

// CorrectYaw returns the camera yaw in degrees after applying declination at p.
func (d Declination) CorrectYaw(yawDeg float64, p Point, at time.Time) (float64, error) {
	if d.Model == nil || d.Convention == DeclinationIgnore {
		return yawDeg, nil
	}
	decl, err := d.Model.Declination(p, at)
	if err != nil {
		return 0, err
	}
	if d.Convention == DeclinationSubtract {
		return yawDeg - decl, nil
	}
	return yawDeg + decl, nil
}

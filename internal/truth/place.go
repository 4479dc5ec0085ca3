package truth

import (
	"errors"
	"fmt"
	"sort"

	"argos/internal/geo"
	"argos/internal/spatial"
)

// Neighbourhood sizes used when looking up truth around a frame's centre.
const (
	MapNeighbors   = 300
	ImageNeighbors = 100
)

// errOutOfRegion ends a placement scan at the first neighbour outside the
// frame: every later neighbour is farther from the centre.
var errOutOfRegion = errors.New("out of region")

var errBlank = errors.New("blank pixel")

// Options configures PlaceOnRegion.
type Options struct {
	// K is the number of nearest points examined. Zero means MapNeighbors.
	K int
	// Exhaustive examines all K neighbours instead of stopping at the first
	// one outside the frame, for rotated or irregular footprints.
	Exhaustive bool
	// Mask, if set, skips points that fall on blank padding.
	Mask Mask
}

// Placement is a ground-truth point positioned on a frame.
type Placement struct {
	Alpha          float64 `json:"alpha"`
	Beta           float64 `json:"beta"`
	Code           string  `json:"code"`
	ScientificName string  `json:"scientific_name"`
	CommonName     string  `json:"common_name"`
	ColorCode      string  `json:"color_code"`
	Distance       float64 `json:"-"`
}

// Result lists the truth found on a frame in ascending distance from its
// centre, plus one placement per target.
type Result struct {
	Nearby []Placement `json:"nearby"`
	Unique []Placement `json:"unique"`
}

// PlaceOnRegion returns the labelled ground truth that falls on frame.
// Points whose code matches no target are dropped.
func PlaceOnRegion(frame Frame, idx *spatial.Index[Point], tax *Taxonomy, opts Options) (Result, error) {
	k := opts.K
	if k <= 0 {
		k = MapNeighbors
	}
	if idx == nil || tax == nil {
		return Result{}, ErrNotLoaded
	}
	res := Result{Nearby: []Placement{}}
scan:
	for _, n := range idx.Query(frame.Center(), k) {
		u, err := locate(frame, n.Value.Position, opts.Mask)
		switch {
		case errors.Is(err, errOutOfRegion):
			if opts.Exhaustive {
				continue
			}
			break scan
		case errors.Is(err, errBlank):
			continue
		}
		t, ok := tax.Lookup(n.Value.Code)
		if !ok {
			continue
		}
		res.Nearby = append(res.Nearby, Placement{
			Alpha:          u.Alpha,
			Beta:           u.Beta,
			Code:           n.Value.Code,
			ScientificName: t.ScientificName,
			CommonName:     t.CommonName,
			ColorCode:      t.ColorCode,
			Distance:       n.Distance,
		})
	}
	res.Unique = Unique(res.Nearby)
	return res, nil
}

func locate(frame Frame, p geo.Point, mask Mask) (geo.Unit, error) {
	u, err := frame.ToUnit(p)
	if err != nil {
		// Points the frame cannot map lie outside it.
		return geo.Unit{}, fmt.Errorf("%w: %v", errOutOfRegion, err)
	}
	if !u.InRegion() {
		return geo.Unit{}, errOutOfRegion
	}
	if mask != nil && mask.Blank(u) {
		return geo.Unit{}, errBlank
	}
	return u, nil
}

// Unique keeps the first placement of each scientific name and sorts the
// survivors by name.
func Unique(ps []Placement) []Placement {
	seen := make(map[string]bool, len(ps))
	out := []Placement{}
	for _, p := range ps {
		if seen[p.ScientificName] {
			continue
		}
		seen[p.ScientificName] = true
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ScientificName < out[j].ScientificName })
	return out
}

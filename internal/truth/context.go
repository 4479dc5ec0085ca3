package truth

import (
	"errors"
	"sync/atomic"

	"argos/internal/spatial"
)

var ErrNotLoaded = errors.New("ground truth not loaded")

// Context holds the loaded ground truth and taxonomy shared by placement
// requests. Both are replaced wholesale; readers see either the old or the
// new set, never a mix.
type Context struct {
	points spatial.Snapshot[Point]
	tax    atomic.Pointer[Taxonomy]
}

// NewContext indexes points and targets.
func NewContext(points []Point, targets []Target) (*Context, error) {
	c := &Context{}
	if err := c.SetTargets(targets); err != nil {
		return nil, err
	}
	if err := c.Rebuild(points); err != nil {
		return nil, err
	}
	return c, nil
}

// Rebuild reindexes the ground truth after points were added or removed.
func (c *Context) Rebuild(points []Point) error {
	entries := make([]spatial.Entry[Point], len(points))
	for i, p := range points {
		entries[i] = spatial.Entry[Point]{Position: p.Position, Value: p}
	}
	_, err := c.points.Rebuild(entries)
	return err
}

// SetTargets replaces the taxonomy.
func (c *Context) SetTargets(targets []Target) error {
	tax, err := NewTaxonomy(targets)
	if err != nil {
		return err
	}
	c.tax.Store(tax)
	return nil
}

// Len returns the number of indexed points.
func (c *Context) Len() int { return c.points.Load().Len() }

// Taxonomy returns the current taxonomy.
func (c *Context) Taxonomy() *Taxonomy { return c.tax.Load() }

// Place runs PlaceOnRegion against the current snapshot.
func (c *Context) Place(frame Frame, opts Options) (Result, error) {
	idx := c.points.Load()
	if idx == nil {
		return Result{}, ErrNotLoaded
	}
	return PlaceOnRegion(frame, idx, c.tax.Load(), opts)
}

// Package spatial indexes geodetic points for k-nearest-neighbour queries
// under great-circle distance.
package spatial

import (
	"errors"
	"fmt"
	"sort"
	"sync/atomic"

	"gonum.org/v1/gonum/spatial/vptree"

	"argos/internal/geo"
)

var ErrEmptyIndex = errors.New("empty index")

// Entry is an indexed position and its payload.
type Entry[T any] struct {
	Position geo.Point
	Value    T
}

// Neighbor is a query result. Distance is in meters.
type Neighbor[T any] struct {
	Distance float64
	Entry[T]
}

// node adapts a position to the vantage-point tree. The haversine distance
// is a true metric so the tree's pruning is exact.
type node struct {
	p geo.Point
	i int
}

func (n node) Distance(c vptree.Comparable) float64 {
	return geo.Distance(n.p, c.(node).p)
}

// Index is an immutable metric tree over a set of entries. Changes to the
// underlying point set require building a new Index.
type Index[T any] struct {
	entries []Entry[T]
	tree    *vptree.Tree
}

// Build validates every position and constructs the tree.
func Build[T any](entries []Entry[T]) (*Index[T], error) {
	own := make([]Entry[T], len(entries))
	copy(own, entries)

	nodes := make([]vptree.Comparable, len(own))
	for i, e := range own {
		if err := e.Position.Validate(); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		nodes[i] = node{p: e.Position, i: i}
	}
	idx := &Index[T]{entries: own}
	if len(nodes) == 0 {
		return idx, nil
	}
	tree, err := vptree.New(nodes, 0, nil)
	if err != nil {
		return nil, fmt.Errorf("build vp-tree: %w", err)
	}
	idx.tree = tree
	return idx, nil
}

// Len returns the number of indexed entries.
func (x *Index[T]) Len() int {
	if x == nil {
		return 0
	}
	return len(x.entries)
}

// Query returns up to k entries nearest to p, ordered by ascending distance.
func (x *Index[T]) Query(p geo.Point, k int) []Neighbor[T] {
	if x == nil || x.tree == nil || k <= 0 {
		return nil
	}
	keep := vptree.NewNKeeper(k)
	x.tree.NearestSet(keep, node{p: p})

	out := make([]Neighbor[T], 0, len(keep.Heap))
	for _, cd := range keep.Heap {
		n, ok := cd.Comparable.(node)
		if !ok {
			continue
		}
		out = append(out, Neighbor[T]{Distance: cd.Dist, Entry: x.entries[n.i]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	return out
}

// Snapshot publishes the current Index to concurrent readers. Rebuild
// constructs a replacement off to the side and swaps it in atomically.
type Snapshot[T any] struct {
	cur atomic.Pointer[Index[T]]
}

// Load returns the published index, or nil before the first Rebuild.
func (s *Snapshot[T]) Load() *Index[T] { return s.cur.Load() }

// Rebuild replaces the published index. On error the previous index stays.
func (s *Snapshot[T]) Rebuild(entries []Entry[T]) (*Index[T], error) {
	idx, err := Build(entries)
	if err != nil {
		return nil, err
	}
	s.cur.Store(idx)
	return idx, nil
}

// Query runs k-nearest against the published index.
func (s *Snapshot[T]) Query(p geo.Point, k int) ([]Neighbor[T], error) {
	idx := s.Load()
	if idx == nil {
		return nil, ErrEmptyIndex
	}
	return idx.Query(p, k), nil
}

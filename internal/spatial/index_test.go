package spatial

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"argos/internal/geo"
)

func randomEntries(n int, seed int64) []Entry[string] {
	rnd := rand.New(rand.NewSource(seed))
	out := make([]Entry[string], n)
	for i := range out {
		out[i] = Entry[string]{
			Position: geo.Point{Lat: 44.9 + rnd.Float64()*0.1, Lon: -83.1 + rnd.Float64()*0.1},
			Value:    fmt.Sprintf("p%03d", i),
		}
	}
	return out
}

func TestQueryAscending(t *testing.T) {
	entries := randomEntries(500, 1)
	idx, err := Build(entries)
	require.NoError(t, err)
	assert.Equal(t, 500, idx.Len())

	q := geo.Point{Lat: 44.95, Lon: -83.05}
	got := idx.Query(q, 50)
	require.Len(t, got, 50)
	assert.True(t, sort.SliceIsSorted(got, func(i, j int) bool { return got[i].Distance < got[j].Distance }))

	// Same result as a brute-force scan.
	dists := make([]float64, len(entries))
	for i, e := range entries {
		dists[i] = geo.Distance(q, e.Position)
	}
	sort.Float64s(dists)
	for i, n := range got {
		assert.InDelta(t, dists[i], n.Distance, 1e-6)
	}
}

func TestQuerySelf(t *testing.T) {
	entries := randomEntries(100, 2)
	idx, err := Build(entries)
	require.NoError(t, err)

	for _, e := range entries[:10] {
		got := idx.Query(e.Position, 3)
		require.NotEmpty(t, got)
		assert.InDelta(t, 0, got[0].Distance, 1e-9)
		assert.Equal(t, e.Value, got[0].Value)
	}
}

func TestQueryFewerThanK(t *testing.T) {
	idx, err := Build(randomEntries(5, 3))
	require.NoError(t, err)
	assert.Len(t, idx.Query(geo.Point{Lat: 45, Lon: -83}, 300), 5)
	assert.Empty(t, idx.Query(geo.Point{Lat: 45, Lon: -83}, 0))
}

func TestBuildEmptyAndInvalid(t *testing.T) {
	idx, err := Build[int](nil)
	require.NoError(t, err)
	assert.Empty(t, idx.Query(geo.Point{}, 10))

	_, err = Build([]Entry[int]{{Position: geo.Point{Lat: 91}}})
	assert.ErrorIs(t, err, geo.ErrInvalidCoordinate)
}

func TestSnapshotRebuild(t *testing.T) {
	var s Snapshot[string]
	_, err := s.Query(geo.Point{}, 1)
	assert.ErrorIs(t, err, ErrEmptyIndex)

	first := []Entry[string]{{Position: geo.Point{Lat: 45, Lon: -83}, Value: "a"}}
	_, err = s.Rebuild(first)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				got, err := s.Query(geo.Point{Lat: 45, Lon: -83}, 1)
				assert.NoError(t, err)
				assert.Len(t, got, 1)
			}
		}()
	}
	for i := 0; i < 20; i++ {
		_, err := s.Rebuild(randomEntries(50, int64(i)))
		require.NoError(t, err)
	}
	wg.Wait()

	old := s.Load()
	_, err = s.Rebuild([]Entry[string]{{Position: geo.Point{Lat: -100}}})
	assert.Error(t, err)
	assert.Same(t, old, s.Load())
}

package truth

import (
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"argos/internal/geo"
	"argos/internal/raster"
	"argos/internal/region"
	"argos/internal/spatial"
)

var siteBounds = region.Bounds{North: 45.0, South: 44.9, East: -83.0, West: -83.1}

func testTargets() []Target {
	return append([]Target{
		{ScientificName: "Spartina alterniflora", CommonName: "Smooth cordgrass", ColorCode: "#15b01a", Codes: []string{"SPAL", "SA"}},
		{ScientificName: "Typha latifolia", CommonName: "Cattail", ColorCode: "#c04e01", Codes: []string{"TYLA"}},
	}, PhysicalFeatures()...)
}

func testFrame(t *testing.T) RegionFrame {
	r, err := region.NewUnitRegion(siteBounds)
	require.NoError(t, err)
	return RegionFrame{Region: r}
}

func buildIndex(t *testing.T, pts []Point) *spatial.Index[Point] {
	entries := make([]spatial.Entry[Point], len(pts))
	for i, p := range pts {
		entries[i] = spatial.Entry[Point]{Position: p.Position, Value: p}
	}
	idx, err := spatial.Build(entries)
	require.NoError(t, err)
	return idx
}

func pt(lat, lon float64, code string) Point {
	return Point{Position: geo.Point{Lat: lat, Lon: lon}, Code: code, Name: code + " obs"}
}

func TestParseFieldCode(t *testing.T) {
	tests := []struct {
		name string
		want string
		ok   bool
	}{
		{"SPAL 12 north bank", "SPAL", true},
		{"CR  creek", "CR", true},
		{"TYLA\tcluster", "TYLA", true},
		{"SPAL", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFieldCode(tt.name)
			if !tt.ok {
				assert.ErrorIs(t, err, ErrNoFieldCode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromFields(t *testing.T) {
	p, err := FromFields(geo.Point{Lat: 44.95, Lon: -83.05}, map[string]string{
		FieldName: "SPAL 3", FieldSymbol: "Flag, Green", FieldRecorded: "2018-07-12 10:31:00",
	})
	require.NoError(t, err)
	assert.Equal(t, "SPAL", p.Code)
	assert.Equal(t, "Flag, Green", p.Symbol)

	_, err = FromFields(geo.Point{Lat: 44.95, Lon: -83.05}, map[string]string{})
	assert.ErrorIs(t, err, ErrNoFieldCode)

	_, err = FromFields(geo.Point{Lat: 99}, map[string]string{FieldName: "SPAL 3"})
	assert.ErrorIs(t, err, geo.ErrInvalidCoordinate)
}

func TestTaxonomy(t *testing.T) {
	tax, err := NewTaxonomy([]Target{
		{ScientificName: "A", ColorCode: "#000000", Codes: []string{"X", "Y"}},
		{ScientificName: "B", ColorCode: "#ffffff", Codes: []string{"X"}},
	})
	require.NoError(t, err)

	got, ok := tax.Lookup("X")
	require.True(t, ok)
	assert.Equal(t, "B", got.ScientificName)

	got, ok = tax.Lookup("Y")
	require.True(t, ok)
	assert.Equal(t, "A", got.ScientificName)

	_, ok = tax.Lookup("Z")
	assert.False(t, ok)
	assert.Len(t, tax.Targets(), 2)

	for _, bad := range []Target{
		{ColorCode: "#000000", Codes: []string{"X"}},
		{ScientificName: "A", ColorCode: "#000000"},
		{ScientificName: "A", ColorCode: "black", Codes: []string{"X"}},
	} {
		_, err := NewTaxonomy([]Target{bad})
		assert.ErrorIs(t, err, ErrBadTarget)
	}
}

func TestPlaceOnRegionBoundary(t *testing.T) {
	inside := []Point{
		pt(44.95, -83.05, "SPAL"),
		pt(44.96, -83.04, "TYLA"),
		pt(44.93, -83.07, "SA"),
		pt(44.97, -83.03, "CR"),
		pt(44.94, -83.06, "SPAL"),
	}
	outside := []Point{
		pt(45.05, -83.05, "SPAL"),
		pt(44.85, -83.05, "TYLA"),
		pt(44.95, -83.2, "CR"),
	}
	idx := buildIndex(t, append(append([]Point{}, inside...), outside...))
	tax, err := NewTaxonomy(testTargets())
	require.NoError(t, err)

	for _, exhaustive := range []bool{false, true} {
		res, err := PlaceOnRegion(testFrame(t), idx, tax, Options{K: 20, Exhaustive: exhaustive})
		require.NoError(t, err)
		require.Len(t, res.Nearby, len(inside))
		for i, p := range res.Nearby {
			assert.True(t, geo.Unit{Alpha: p.Alpha, Beta: p.Beta}.InRegion())
			if i > 0 {
				assert.GreaterOrEqual(t, p.Distance, res.Nearby[i-1].Distance)
			}
		}
		assert.Equal(t, "SPAL", res.Nearby[0].Code)
		assert.InDelta(t, 0.5, res.Nearby[0].Alpha, 1e-9)
		assert.InDelta(t, 0.5, res.Nearby[0].Beta, 1e-9)

		names := make([]string, len(res.Unique))
		for i, u := range res.Unique {
			names[i] = u.ScientificName
		}
		assert.Equal(t, []string{"H2O", "Spartina alterniflora", "Typha latifolia"}, names)
	}
}

func TestPlaceOnRegionDropsUnknownCodes(t *testing.T) {
	idx := buildIndex(t, []Point{pt(44.95, -83.05, "ZZZ"), pt(44.951, -83.05, "ROCK")})
	tax, err := NewTaxonomy(testTargets())
	require.NoError(t, err)

	res, err := PlaceOnRegion(testFrame(t), idx, tax, Options{})
	require.NoError(t, err)
	require.Len(t, res.Nearby, 1)
	assert.Equal(t, "Rocky Rockinius", res.Nearby[0].ScientificName)
	assert.Equal(t, "#ada587", res.Nearby[0].ColorCode)
}

func TestPlaceOnRegionStopsAtFirstOutside(t *testing.T) {
	// Just past the north edge, but nearer the centre than the south-west
	// corner point.
	pts := []Point{
		pt(44.95, -83.05, "SPAL"),
		pt(45.001, -83.05, "SPAL"),
		pt(44.905, -83.095, "TYLA"),
	}
	idx := buildIndex(t, pts)
	tax, err := NewTaxonomy(testTargets())
	require.NoError(t, err)

	res, err := PlaceOnRegion(testFrame(t), idx, tax, Options{K: 10})
	require.NoError(t, err)
	assert.Len(t, res.Nearby, 1)

	res, err = PlaceOnRegion(testFrame(t), idx, tax, Options{K: 10, Exhaustive: true})
	require.NoError(t, err)
	assert.Len(t, res.Nearby, 2)
}

// unmappableFrame cannot convert one position, like a photo frame whose
// homography sends it past the horizon.
type unmappableFrame struct {
	RegionFrame
	bad geo.Point
}

func (f unmappableFrame) ToUnit(p geo.Point) (geo.Unit, error) {
	if p == f.bad {
		return geo.Unit{}, errors.New("point does not map")
	}
	return f.RegionFrame.ToUnit(p)
}

func TestPlaceOnRegionTreatsUnmappableAsOutside(t *testing.T) {
	bad := pt(44.951, -83.05, "TYLA")
	idx := buildIndex(t, []Point{pt(44.95, -83.05, "SPAL"), bad, pt(44.91, -83.09, "SA")})
	tax, err := NewTaxonomy(testTargets())
	require.NoError(t, err)
	frame := unmappableFrame{RegionFrame: testFrame(t), bad: bad.Position}

	res, err := PlaceOnRegion(frame, idx, tax, Options{K: 10})
	require.NoError(t, err)
	require.Len(t, res.Nearby, 1)
	assert.Equal(t, "SPAL", res.Nearby[0].Code)

	res, err = PlaceOnRegion(frame, idx, tax, Options{K: 10, Exhaustive: true})
	require.NoError(t, err)
	require.Len(t, res.Nearby, 2)
	assert.Equal(t, "SA", res.Nearby[1].Code)
}

func TestPlaceOnRegionNeedsIndex(t *testing.T) {
	tax, err := NewTaxonomy(testTargets())
	require.NoError(t, err)
	_, err = PlaceOnRegion(testFrame(t), nil, tax, Options{})
	assert.ErrorIs(t, err, ErrNotLoaded)
}

func TestPlaceOnRegionWhiteMask(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(0, 0, 5, 10), image.NewUniform(color.RGBA{R: 40, G: 90, B: 30, A: 255}), image.Point{}, draw.Src)

	idx := buildIndex(t, []Point{pt(44.95, -83.07, "SPAL"), pt(44.95, -83.02, "TYLA")})
	tax, err := NewTaxonomy(testTargets())
	require.NoError(t, err)

	res, err := PlaceOnRegion(testFrame(t), idx, tax, Options{Mask: WhiteMask{Image: img}})
	require.NoError(t, err)
	require.Len(t, res.Nearby, 1)
	assert.Equal(t, "SPAL", res.Nearby[0].Code)

	assert.True(t, WhiteMask{Image: img}.Blank(geo.Unit{Alpha: 1, Beta: 1}))
}

func TestMapFrame(t *testing.T) {
	gt, err := raster.NewGeoTransform(raster.Affine{-83.1, 0.0001, 0, 45.0, 0, -0.0001}, nil)
	require.NoError(t, err)

	_, err = NewMapFrame(gt)
	assert.ErrorIs(t, err, raster.ErrNoRasterSize)

	f, err := NewMapFrame(gt.WithSize(1000, 1000))
	require.NoError(t, err)
	assert.InDelta(t, 44.95, f.Center().Lat, 1e-9)
	assert.InDelta(t, -83.05, f.Center().Lon, 1e-9)

	u, err := f.ToUnit(geo.Point{Lat: 44.925, Lon: -83.09})
	require.NoError(t, err)
	assert.InDelta(t, 0.75, u.Alpha, 1e-9)
	assert.InDelta(t, 0.1, u.Beta, 1e-9)
}

func TestCameraFrame(t *testing.T) {
	cam, err := geo.NewCamera(geo.CameraExif{
		FieldOfView: 84, RelativeAltitude: 60, Yaw: 30,
		Center: geo.Point{Lat: 44.95, Lon: -83.05}, Width: 4000, Height: 3000,
	}, geo.Declination{})
	require.NoError(t, err)

	f := CameraFrame{Camera: cam}
	u, err := f.ToUnit(f.Center())
	require.NoError(t, err)
	assert.InDelta(t, 0.5, u.Alpha, 1e-9)
	assert.InDelta(t, 0.5, u.Beta, 1e-9)

	idx := buildIndex(t, []Point{pt(44.95, -83.05, "SPAL"), pt(44.96, -83.05, "TYLA")})
	tax, err := NewTaxonomy(testTargets())
	require.NoError(t, err)
	res, err := PlaceOnRegion(f, idx, tax, Options{K: ImageNeighbors})
	require.NoError(t, err)
	require.Len(t, res.Nearby, 1)
	assert.Equal(t, "SPAL", res.Nearby[0].Code)
}

func TestContext(t *testing.T) {
	var empty Context
	_, err := empty.Place(testFrame(t), Options{})
	assert.ErrorIs(t, err, ErrNotLoaded)

	c, err := NewContext([]Point{pt(44.95, -83.05, "SPAL")}, testTargets())
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())

	res, err := c.Place(testFrame(t), Options{})
	require.NoError(t, err)
	assert.Len(t, res.Nearby, 1)

	require.NoError(t, c.Rebuild([]Point{pt(44.95, -83.05, "TYLA"), pt(44.96, -83.05, "CR")}))
	res, err = c.Place(testFrame(t), Options{})
	require.NoError(t, err)
	assert.Len(t, res.Nearby, 2)
	assert.Equal(t, "TYLA", res.Nearby[0].Code)

	assert.Error(t, c.SetTargets([]Target{{}}))
	assert.Len(t, c.Taxonomy().Targets(), len(testTargets()))
}

func TestResultJSON(t *testing.T) {
	res := Result{Nearby: []Placement{{Alpha: 0.25, Beta: 0.5, Code: "CR", ScientificName: "H2O", CommonName: "water", ColorCode: "#0e87cc", Distance: 12}}}
	res.Unique = Unique(res.Nearby)

	b, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"nearby": [{"alpha":0.25,"beta":0.5,"code":"CR","scientific_name":"H2O","common_name":"water","color_code":"#0e87cc"}],
		"unique": [{"alpha":0.25,"beta":0.5,"code":"CR","scientific_name":"H2O","common_name":"water","color_code":"#0e87cc"}]
	}`, string(b))
}

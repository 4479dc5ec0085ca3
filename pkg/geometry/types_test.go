package geometry

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAffineGDALRoundTrip(t *testing.T) {
	gt := [6]float64{500000, 0.05, 0.001, 4980000, 0.002, -0.05}
	a := FromGDAL(gt)
	assert.Equal(t, gt, a.GDAL())

	p := a.Apply(Point2D{X: 10, Y: 20})
	assert.InDelta(t, 500000+0.05*10+0.001*20, p.X, 1e-9)
	assert.InDelta(t, 4980000+0.002*10-0.05*20, p.Y, 1e-9)

	inv, ok := a.Inverse()
	require.True(t, ok)
	back := inv.Apply(p)
	assert.InDelta(t, 10, back.X, 1e-6)
	assert.InDelta(t, 20, back.Y, 1e-6)

	_, ok = AffineTransform{A: 1, B: 2, C: 2, D: 4}.Inverse()
	assert.False(t, ok)
}

func TestPixelPointSpaces(t *testing.T) {
	raw := RawPixel{Col: 12.5, Row: 3}
	tagged := raw.Tagged()
	assert.Equal(t, SpaceRawImage, tagged.Space)

	back, err := tagged.Raw()
	require.NoError(t, err)
	assert.Equal(t, raw, back)

	_, err = tagged.Map()
	assert.ErrorIs(t, err, ErrSpaceMismatch)
	_, err = tagged.Tile()
	assert.ErrorIs(t, err, ErrSpaceMismatch)
}

func TestPixelPointJSON(t *testing.T) {
	b, err := json.Marshal(MapPixel{Col: 4, Row: 9}.Tagged())
	require.NoError(t, err)
	assert.JSONEq(t, `{"space":"orthomap","col":4,"row":9}`, string(b))

	var p PixelPoint
	require.NoError(t, json.Unmarshal(b, &p))
	m, err := p.Map()
	require.NoError(t, err)
	assert.Equal(t, MapPixel{Col: 4, Row: 9}, m)

	assert.Error(t, json.Unmarshal([]byte(`{"space":"sideways"}`), &p))
}

func TestMapPixelTruncate(t *testing.T) {
	col, row := MapPixel{Col: 10.99, Row: -0.5}.Truncate()
	assert.Equal(t, 10, col)
	assert.Equal(t, 0, row)
}

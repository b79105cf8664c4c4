package spatial

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

// unit square (0,0)-(2,2) with a hole (0.5,0.5)-(1.5,1.5)
func squareWithHole(t *testing.T) *geom.Polygon {
	t.Helper()
	poly := geom.NewPolygon(geom.XY)
	outer := geom.NewLinearRingFlat(geom.XY, []float64{0, 0, 2, 0, 2, 2, 0, 2, 0, 0})
	hole := geom.NewLinearRingFlat(geom.XY, []float64{0.5, 0.5, 1.5, 0.5, 1.5, 1.5, 0.5, 1.5, 0.5, 0.5})
	require.NoError(t, poly.Push(outer))
	require.NoError(t, poly.Push(hole))
	return poly
}

func TestContains_Polygon(t *testing.T) {
	poly := squareWithHole(t)

	assert.True(t, Contains(poly, 0.25, 0.25)) // inside, outside hole
	assert.False(t, Contains(poly, 1.0, 1.0))  // inside hole
	assert.False(t, Contains(poly, 3.0, 3.0))  // outside
}

func TestContains_MultiPolygon(t *testing.T) {
	mp := geom.NewMultiPolygon(geom.XY)
	a := geom.NewPolygon(geom.XY)
	require.NoError(t, a.Push(geom.NewLinearRingFlat(geom.XY, []float64{0, 0, 1, 0, 1, 1, 0, 1, 0, 0})))
	b := geom.NewPolygon(geom.XY)
	require.NoError(t, b.Push(geom.NewLinearRingFlat(geom.XY, []float64{5, 5, 6, 5, 6, 6, 5, 6, 5, 5})))
	require.NoError(t, mp.Push(a))
	require.NoError(t, mp.Push(b))

	assert.True(t, Contains(mp, 0.5, 0.5))
	assert.True(t, Contains(mp, 5.5, 5.5))
	assert.False(t, Contains(mp, 3.0, 3.0))
}

func TestContains_FailsOpen(t *testing.T) {
	// Nil and non-polygonal geometry count as "inside" rather than hiding
	// the observation.
	assert.True(t, Contains(nil, 1, 1))
	assert.True(t, Contains(geom.NewPointFlat(geom.XY, []float64{1, 1}), 1, 1))
	assert.True(t, Contains(geom.NewPolygon(geom.XY), 1, 1)) // no rings
}

func TestCentroid(t *testing.T) {
	poly := geom.NewPolygon(geom.XY)
	require.NoError(t, poly.Push(geom.NewLinearRingFlat(geom.XY, []float64{0, 0, 2, 0, 2, 2, 0, 2, 0, 0})))

	lat, lng, ok := Centroid(poly)
	require.True(t, ok)
	assert.InDelta(t, 1.0, lat, 1e-9)
	assert.InDelta(t, 1.0, lng, 1e-9)
}

func TestCentroid_Unavailable(t *testing.T) {
	_, _, ok := Centroid(nil)
	assert.False(t, ok)
	_, _, ok = Centroid(geom.NewPointFlat(geom.XY, []float64{1, 1}))
	assert.False(t, ok)
}

package cluster

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/featherline/rarity-mapper/internal/model"
)

func obs(species, locID string, lat, lng float64, day int) model.Observation {
	return model.Observation{
		Species:     species,
		LocationID:  locID,
		Lat:         lat,
		Lng:         lng,
		HasPoint:    true,
		ObservedAt:  time.Date(2026, 8, day, 12, 0, 0, 0, time.UTC),
		DateKnown:   true,
		ReportCount: 1,
	}
}

func buttePoly(t *testing.T) *geom.Polygon {
	t.Helper()
	p := geom.NewPolygon(geom.XY)
	require.NoError(t, p.Push(geom.NewLinearRingFlat(geom.XY,
		[]float64{-122, 39, -121, 39, -121, 40, -122, 40, -122, 39})))
	return p
}

func TestDecide_CollapsedCluster(t *testing.T) {
	b := Bucket{
		StateCode:  "CA",
		CountyName: "Butte",
		Boundary:   buttePoly(t),
		Obs: []model.Observation{
			withRarity(obs("Painted Redstart", "L1", 39.5, -121.5, 10), 2),
			withRarity(obs("Ross's Gull", "L2", 39.6, -121.6, 11), 4),
			obs("Unknown Bird", "L3", 39.7, -121.7, 12),
		},
	}

	r := Decide(b, false)
	assert.False(t, r.Expanded)
	require.NotNil(t, r.Cluster)
	assert.Nil(t, r.Markers)
	assert.Equal(t, 3, r.Cluster.Count)
	assert.Equal(t, model.RarityCode(4), r.Cluster.Rarity)
	assert.Equal(t, "#fb923c", r.Cluster.Color)
	// Polygon centroid, not observation mean.
	assert.InDelta(t, 39.5, r.Cluster.Lat, 1e-9)
	assert.InDelta(t, -121.5, r.Cluster.Lng, 1e-9)
	assert.Greater(t, r.Cluster.Size, 40.0)
	assert.LessOrEqual(t, r.Cluster.Size, 60.0)
}

func withRarity(o model.Observation, code model.RarityCode) model.Observation {
	o.Rarity = code
	return o
}

func TestDecide_CollapsedWithoutBoundaryFallsBackToMean(t *testing.T) {
	b := Bucket{
		StateCode:  "CA",
		CountyName: "Butte",
		Obs: []model.Observation{
			obs("A", "L1", 39.0, -121.0, 10),
			obs("B", "L2", 40.0, -122.0, 11),
		},
	}
	r := Decide(b, false)
	require.NotNil(t, r.Cluster)
	assert.InDelta(t, 39.5, r.Cluster.Lat, 1e-9)
	assert.InDelta(t, -121.5, r.Cluster.Lng, 1e-9)
}

func TestDecide_Expanded(t *testing.T) {
	// 3 records, two of them the same species+location.
	older := obs("Painted Redstart", "L1", 39.5, -121.5, 10)
	newer := obs("Painted Redstart", "L1", 39.5, -121.5, 12)
	newer.ReportID = "R2"
	other := obs("Ross's Gull", "L1", 39.5, -121.5, 11)

	b := Bucket{StateCode: "CA", CountyName: "Butte", Obs: []model.Observation{older, newer, other}}
	r := Decide(b, true)
	assert.True(t, r.Expanded)
	assert.Nil(t, r.Cluster)
	require.Len(t, r.Markers, 2)

	byName := map[string]PointMarker{}
	for _, m := range r.Markers {
		byName[m.Species] = m
	}
	// Most recent report represents the pair.
	assert.Equal(t, "R2", byName["Painted Redstart"].ReportID)
	// Two distinct species share L1.
	assert.Equal(t, 2, byName["Painted Redstart"].SpeciesCount)
}

func TestDecide_EmptyBucket(t *testing.T) {
	r := Decide(Bucket{StateCode: "CA", CountyName: "Butte"}, false)
	assert.Nil(t, r.Cluster)
	assert.Nil(t, r.Markers)
}

func TestMarkerSize_Monotonic(t *testing.T) {
	assert.InDelta(t, 40.0, markerSize(1), 1e-9)
	assert.Less(t, markerSize(5), markerSize(50))
	assert.InDelta(t, 60.0, markerSize(100000), 1e-9)
}

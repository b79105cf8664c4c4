package indexer

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/featherline/rarity-mapper/internal/spatial"
)

func TestWriteIndex_RoundTrip(t *testing.T) {
	entries := []spatial.Entry{
		{
			FIPS5:  "06007",
			MinLng: -122.1, MinLat: 39.3, MaxLng: -121.1, MaxLat: 40.2,
			CentLng: -121.6, CentLat: 39.7,
			CountyRegion: "US-CA-007",
		},
	}

	path := filepath.Join(t.TempDir(), "index.json")
	require.NoError(t, WriteIndex(path, entries))

	ix, err := spatial.LoadIndex(path)
	require.NoError(t, err)
	assert.Equal(t, 1, ix.Len())

	region, ok := ix.Locate(39.7, -121.8)
	require.True(t, ok)
	assert.Equal(t, "US-CA-007", region.CountyRegion)
}

func TestBuild_MissingFile(t *testing.T) {
	_, err := Build(filepath.Join(t.TempDir(), "nope.shp"))
	assert.Error(t, err)
}

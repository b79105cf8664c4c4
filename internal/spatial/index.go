// Package spatial resolves geographic points to counties: a bundled
// bounding-box/centroid index for fast lookup with no geometry loaded, and an
// exact point-in-polygon test for when boundary geometry is available.
package spatial

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"

	"github.com/featherline/rarity-mapper/internal/fips"
)

// Entry is one county in the bundled index.
type Entry struct {
	FIPS5        string  `json:"fips5"`
	MinLng       float64 `json:"minLng"`
	MinLat       float64 `json:"minLat"`
	MaxLng       float64 `json:"maxLng"`
	MaxLat       float64 `json:"maxLat"`
	CentLng      float64 `json:"centLng"`
	CentLat      float64 `json:"centLat"`
	CountyRegion string  `json:"countyRegion"`
}

// Index holds the county bounding boxes and centroids.
type Index struct {
	entries []Entry
}

// NewIndex builds an index from entries.
func NewIndex(entries []Entry) *Index {
	return &Index{entries: entries}
}

// LoadIndex reads a JSON index file produced by the index builder.
func LoadIndex(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "spatial: read index %s", path)
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, eris.Wrapf(err, "spatial: parse index %s", path)
	}
	return NewIndex(entries), nil
}

// Len returns the number of indexed counties.
func (ix *Index) Len() int { return len(ix.entries) }

// ValidCoords reports whether a lat/lng pair is inside the valid coordinate
// range. Out-of-range lookups are a client error, not a miss.
func ValidCoords(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// Locate maps a point to its owning county. Bounding boxes are inclusive and
// may overlap near borders; with multiple candidates the nearest centroid by
// squared Euclidean distance in lat/lng space wins. That distance is not
// geodesically exact, which is adequate at county scale and preserved for
// behavior parity. The second return is false when no box contains the point
// (off-coast points, territories outside the index).
func (ix *Index) Locate(lat, lng float64) (fips.Region, bool) {
	var best *Entry
	bestDist := 0.0
	for i := range ix.entries {
		e := &ix.entries[i]
		if lng < e.MinLng || lng > e.MaxLng || lat < e.MinLat || lat > e.MaxLat {
			continue
		}
		d := (e.CentLng-lng)*(e.CentLng-lng) + (e.CentLat-lat)*(e.CentLat-lat)
		if best == nil || d < bestDist {
			best = e
			bestDist = d
		}
	}
	if best == nil {
		return fips.Region{}, false
	}
	region, err := fips.FromFIPS5(best.FIPS5)
	if err != nil {
		// Index rows outside the FIPS state set (territories) still resolve
		// by their recorded region code.
		region = fips.Region{FIPS5: best.FIPS5, CountyRegion: best.CountyRegion}
	}
	return region, true
}

// Package cluster decides how a county's observations render on the map:
// one aggregate cluster marker when the county is not the active selection,
// or one marker per distinct (species, location) pair when it is.
package cluster

import (
	"math"

	"github.com/twpayne/go-geom"

	"github.com/featherline/rarity-mapper/internal/aggregate"
	"github.com/featherline/rarity-mapper/internal/model"
	"github.com/featherline/rarity-mapper/internal/rarity"
	"github.com/featherline/rarity-mapper/internal/spatial"
)

// Bucket is one county's worth of filtered observations plus its boundary
// geometry when loaded. Observations without coordinates never reach a
// bucket.
type Bucket struct {
	StateCode  string
	CountyName string
	Boundary   geom.T // nil when the polygon has not loaded
	Obs        []model.Observation
}

// ClusterMarker is the single collapsed marker for an unselected county.
// Clicking it is wired by the shell to the county-selection transition, not
// to observation detail.
type ClusterMarker struct {
	StateCode  string           `json:"state_code"`
	CountyName string           `json:"county_name"`
	Lat        float64          `json:"lat"`
	Lng        float64          `json:"lng"`
	Count      int              `json:"count"`
	Size       float64          `json:"size"`
	Rarity     model.RarityCode `json:"rarity"`
	Color      string           `json:"color"`
}

// PointMarker is one expanded marker inside the selected county.
type PointMarker struct {
	Lat          float64          `json:"lat"`
	Lng          float64          `json:"lng"`
	Species      string           `json:"species"`
	LocationID   string           `json:"location_id"`
	LocationName string           `json:"location_name"`
	ReportID     string           `json:"report_id"`
	Rarity       model.RarityCode `json:"rarity"`
	Color        string           `json:"color"`
	Confirmed    bool             `json:"confirmed"`
	SpeciesCount int              `json:"species_count"` // distinct species at this location
}

// Rendering holds the decision for one county bucket. Exactly one of Cluster
// and Markers is populated.
type Rendering struct {
	StateCode  string         `json:"state_code"`
	CountyName string         `json:"county_name"`
	Expanded   bool           `json:"expanded"`
	Cluster    *ClusterMarker `json:"cluster,omitempty"`
	Markers    []PointMarker  `json:"markers,omitempty"`
}

// Decide renders one bucket, expanded when the bucket's county is the current
// selection.
func Decide(b Bucket, selected bool) Rendering {
	r := Rendering{StateCode: b.StateCode, CountyName: b.CountyName, Expanded: selected}
	if selected {
		r.Markers = expand(b)
		return r
	}
	r.Cluster = collapse(b)
	return r
}

func expand(b Bucket) []PointMarker {
	locs := aggregate.ByLocation(b.Obs)
	out := make([]PointMarker, 0, len(locs))
	for _, la := range locs {
		o := la.Representative
		if !o.HasPoint {
			continue
		}
		out = append(out, PointMarker{
			Lat:          o.Lat,
			Lng:          o.Lng,
			Species:      o.Species,
			LocationID:   o.LocationID,
			LocationName: o.LocationName,
			ReportID:     o.ReportID,
			Rarity:       o.Rarity,
			Color:        rarity.Color(o.Rarity),
			Confirmed:    o.Confirmed(),
			SpeciesCount: la.SpeciesCount,
		})
	}
	return out
}

func collapse(b Bucket) *ClusterMarker {
	count := len(b.Obs)
	if count == 0 {
		return nil
	}

	lat, lng, ok := spatial.Centroid(b.Boundary)
	if !ok {
		// No usable polygon: arithmetic mean of constituent points.
		var latSum, lngSum float64
		var n int
		for _, o := range b.Obs {
			if !o.HasPoint {
				continue
			}
			latSum += o.Lat
			lngSum += o.Lng
			n++
		}
		if n == 0 {
			return nil
		}
		lat, lng = latSum/float64(n), lngSum/float64(n)
	}

	highest := model.RarityUnknown
	for _, o := range b.Obs {
		if o.Rarity.Known() && o.Rarity > highest {
			highest = o.Rarity
		}
	}

	return &ClusterMarker{
		StateCode:  b.StateCode,
		CountyName: b.CountyName,
		Lat:        lat,
		Lng:        lng,
		Count:      count,
		Size:       markerSize(count),
		Rarity:     highest,
		Color:      rarity.Color(highest),
	}
}

// markerSize grows logarithmically with observation count, clamped to the
// icon budget.
func markerSize(count int) float64 {
	return math.Min(40+math.Log(float64(count))*5, 60)
}

package session

import (
	"sort"
	"strings"
	"time"

	"github.com/twpayne/go-geom"

	"github.com/featherline/rarity-mapper/internal/aggregate"
	"github.com/featherline/rarity-mapper/internal/cluster"
	"github.com/featherline/rarity-mapper/internal/model"
	"github.com/featherline/rarity-mapper/internal/spatial"
)

// BoundaryLookup resolves a county's polygon for cluster centroid placement.
// It may return nil; rendering then falls back to the mean of the points.
type BoundaryLookup func(stateCode, countyName string) geom.T

// ViewModel is the complete render instruction set derived from one State.
// Every field is recomputed together; nothing survives a filter change.
type ViewModel struct {
	CountyRows  []model.CountyAggregate
	Lower48Rows []model.CountyAggregate

	Markers []cluster.Rendering

	UniqueCount    int
	SpeciesOptions []string
	Status         string
}

// Recompute derives the full view model from the state. Pure: same state,
// same now, same output. The recompute order is filtered datasets, then
// tables, then markers, then summary counts, so no view is left stale.
func Recompute(s State, now time.Time, boundaries BoundaryLookup) ViewModel {
	notableWindow := filterByDays(s.Notable, s.Filters.DaysBack, now)
	lower48Window := filterByDays(s.Lower48, s.Filters.DaysBack, now)

	// Tables apply the county selection; markers do not, so unselected
	// counties still cluster on the map.
	countyTable := filterBySpecies(
		filterByMinRarity(applyCountySelection(notableWindow, s.Selection), s.Filters.CountyMinRarity),
		s.Filters.Species)
	notableMap := filterBySpecies(
		filterByMinRarity(notableWindow, s.Filters.CountyMinRarity),
		s.Filters.Species)
	lower48Filtered := filterBySpecies(
		filterByMinRarity(lower48Window, s.Filters.Lower48MinRarity),
		s.Filters.Species)

	countyRows := aggregate.ByCounty(countyTable)
	aggregate.SortRows(countyRows)
	lower48Rows := aggregate.ByCounty(lower48Filtered)
	aggregate.SortRows(lower48Rows)

	vm := ViewModel{
		CountyRows:  aggregate.TopRows(countyRows),
		Lower48Rows: aggregate.TopRows(lower48Rows),
		Status:      s.Status,
	}

	markerSet := notableMap
	if s.ShowLower48Markers {
		markerSet = append(append([]model.Observation(nil), notableMap...), lower48Filtered...)
	}
	vm.Markers = renderMarkers(markerSet, s.Selection, boundaries)

	vm.UniqueCount = aggregate.UniqueSpeciesLocations(countyTable)
	vm.SpeciesOptions = aggregate.Species(notableWindow)
	return vm
}

// filterByDays keeps observations within the days-back window. Records with
// unparseable dates always pass; recency filters never exclude them.
func filterByDays(obs []model.Observation, daysBack int, now time.Time) []model.Observation {
	cutoff := now.Add(-time.Duration(ClampDaysBack(daysBack)) * 24 * time.Hour)
	out := make([]model.Observation, 0, len(obs))
	for _, o := range obs {
		if o.DateKnown && o.ObservedAt.Before(cutoff) {
			continue
		}
		out = append(out, o)
	}
	return out
}

// filterByMinRarity keeps observations at or above the threshold. Unknown
// codes are excluded, not given the benefit of the doubt.
func filterByMinRarity(obs []model.Observation, min model.RarityCode) []model.Observation {
	out := make([]model.Observation, 0, len(obs))
	for _, o := range obs {
		if o.Rarity.Known() && o.Rarity >= min {
			out = append(out, o)
		}
	}
	return out
}

func filterBySpecies(obs []model.Observation, species string) []model.Observation {
	if species == "" {
		return obs
	}
	out := make([]model.Observation, 0, len(obs))
	for _, o := range obs {
		if o.Species == species {
			out = append(out, o)
		}
	}
	return out
}

// applyCountySelection scopes a dataset to the selected county. Polygon
// containment is preferred; when geometry is missing, or the polygon test
// matches nothing despite a known selection, it falls back to
// case-insensitive name+state equality so a county whose polygon failed to
// load still filters.
func applyCountySelection(obs []model.Observation, sel Selection) []model.Observation {
	if !sel.Active {
		return obs
	}
	if sel.Boundary != nil {
		matched := make([]model.Observation, 0, len(obs))
		for _, o := range obs {
			if !o.HasPoint {
				continue
			}
			if spatial.Contains(sel.Boundary, o.Lat, o.Lng) {
				matched = append(matched, o)
			}
		}
		if len(matched) > 0 || sel.Name == "" {
			return matched
		}
	}
	return filterByCountyName(obs, sel)
}

func filterByCountyName(obs []model.Observation, sel Selection) []model.Observation {
	target := normalizeCountyName(sel.Name)
	if target == "" {
		return obs
	}
	out := make([]model.Observation, 0, len(obs))
	for _, o := range obs {
		name := o.CountyName
		if name == "" {
			name = o.CountyRegion
		}
		if normalizeCountyName(name) == target {
			out = append(out, o)
		}
	}
	return out
}

// renderMarkers groups map-worthy observations by (state, county) and makes
// the cluster-or-expand decision per bucket. Bucket order is deterministic:
// state, then county, case-insensitive.
func renderMarkers(obs []model.Observation, sel Selection, boundaries BoundaryLookup) []cluster.Rendering {
	type bucketKey struct{ state, county string }
	groups := make(map[bucketKey]*cluster.Bucket)
	order := make([]bucketKey, 0)

	for _, o := range obs {
		if !o.HasPoint {
			continue
		}
		k := bucketKey{state: o.StateCode, county: o.CountyName}
		b, ok := groups[k]
		if !ok {
			b = &cluster.Bucket{StateCode: o.StateCode, CountyName: o.CountyName}
			if boundaries != nil {
				b.Boundary = boundaries(o.StateCode, o.CountyName)
			}
			groups[k] = b
			order = append(order, k)
		}
		b.Obs = append(b.Obs, o)
	}

	sort.Slice(order, func(i, j int) bool {
		si, sj := strings.ToLower(order[i].state), strings.ToLower(order[j].state)
		if si != sj {
			return si < sj
		}
		return strings.ToLower(order[i].county) < strings.ToLower(order[j].county)
	})

	out := make([]cluster.Rendering, 0, len(order))
	for _, k := range order {
		b := groups[k]
		out = append(out, cluster.Decide(*b, sel.Matches(b.StateCode, b.CountyName)))
	}
	return out
}

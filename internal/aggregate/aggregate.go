// Package aggregate implements the grouping and reduction pipeline behind the
// table views and the map marker content: per (species, state, county)
// aggregates, per (species, location) dedupe, and distinct-report counting.
package aggregate

import (
	"sort"

	"github.com/featherline/rarity-mapper/internal/model"
)

type key struct {
	species string
	state   string
	county  string
}

// ByCounty reduces observations into (species, state, county) aggregates in a
// single pass. Counts accumulate ReportCount so pre-aggregated records keep
// their weight; extremes use strict comparisons so ties keep the first-seen
// value; representative fields are first-writer-wins.
func ByCounty(obs []model.Observation) []model.CountyAggregate {
	groups := make(map[key]*model.CountyAggregate)
	order := make([]key, 0)

	for _, o := range obs {
		k := key{species: o.Species, state: o.StateCode, county: o.CountyName}
		agg, ok := groups[k]
		if !ok {
			agg = &model.CountyAggregate{
				Species:    o.Species,
				StateCode:  o.StateCode,
				CountyName: o.CountyName,
			}
			groups[k] = agg
			order = append(order, k)
		}

		n := o.ReportCount
		if n < 1 {
			n = 1
		}
		agg.Count += n

		first, firstKnown := o.ObservedAt, o.DateKnown
		if o.FirstDateKnown {
			first, firstKnown = o.FirstObservedAt, true
		}
		if firstKnown {
			if !agg.HasFirst || first.Before(agg.First) {
				agg.First = first
				agg.HasFirst = true
			}
		}
		if o.DateKnown {
			if !agg.HasLast || o.ObservedAt.After(agg.Last) {
				agg.Last = o.ObservedAt
				agg.HasLast = true
			}
		}

		// Most severe code wins; unknown never raises it.
		if o.Rarity.Known() && o.Rarity > agg.Rarity {
			agg.Rarity = o.Rarity
		}

		agg.ConfirmedAny = agg.ConfirmedAny || o.Confirmed()

		if !agg.HasPoint && o.HasPoint {
			agg.Lat = o.Lat
			agg.Lng = o.Lng
			agg.HasPoint = true
		}
		if agg.LocationID == "" && o.LocationID != "" {
			agg.LocationID = o.LocationID
		}
	}

	out := make([]model.CountyAggregate, 0, len(order))
	for _, k := range order {
		out = append(out, *groups[k])
	}
	return out
}

func locationKey(o model.Observation) string {
	if o.LocationID != "" {
		return o.LocationID
	}
	return o.LocationName
}

// DedupeByLocation collapses raw records into one representative per
// (species, location) pair: the most recent by timestamp, with confirmation
// OR-combined across the group. Once a group is confirmed, the reviewed and
// valid flags are set on the representative so badge rendering stays
// consistent. Records with neither location id nor name are dropped.
func DedupeByLocation(obs []model.Observation) []model.Observation {
	type slot struct{ rep model.Observation }
	groups := make(map[string]*slot)
	order := make([]string, 0)

	for _, o := range obs {
		loc := locationKey(o)
		if o.Species == "" || loc == "" {
			continue
		}
		k := o.Species + "|" + loc
		s, ok := groups[k]
		if !ok {
			groups[k] = &slot{rep: o}
			order = append(order, k)
			continue
		}
		confirmed := s.rep.Confirmed() || o.Confirmed()
		// Later record wins only with a strictly newer parsed date, or when
		// the current representative has no parseable date at all.
		if o.DateKnown && (!s.rep.DateKnown || o.ObservedAt.After(s.rep.ObservedAt)) {
			s.rep = o
		}
		if confirmed {
			s.rep.Reviewed = true
			s.rep.Valid = true
		}
	}

	out := make([]model.Observation, 0, len(order))
	for _, k := range order {
		out = append(out, groups[k].rep)
	}
	return out
}

// AggregateReports collapses records into one row per (species, location)
// counting distinct report identifiers, not raw records, so a checklist that
// reappears across paginated fetches is counted once. Confirmation and
// recency reduce the same way as DedupeByLocation.
func AggregateReports(obs []model.Observation) []model.Observation {
	type slot struct {
		rep     model.Observation
		reports map[string]struct{}
		first   model.Observation // earliest-dated member, for the first-seen column
	}
	groups := make(map[string]*slot)
	order := make([]string, 0)

	for _, o := range obs {
		loc := locationKey(o)
		if o.Species == "" || loc == "" {
			continue
		}
		k := o.Species + "|" + loc
		s, ok := groups[k]
		if !ok {
			s = &slot{rep: o, reports: make(map[string]struct{}), first: o}
			if o.ReportID != "" {
				s.reports[o.ReportID] = struct{}{}
			}
			s.rep.ReportCount = 1
			groups[k] = s
			order = append(order, k)
			continue
		}
		if o.ReportID != "" {
			s.reports[o.ReportID] = struct{}{}
		}
		confirmed := s.rep.Confirmed() || o.Confirmed()
		if o.DateKnown && (!s.rep.DateKnown || o.ObservedAt.After(s.rep.ObservedAt)) {
			count := s.rep.ReportCount
			s.rep = o
			s.rep.ReportCount = count
		}
		if o.DateKnown && (!s.first.DateKnown || o.ObservedAt.Before(s.first.ObservedAt)) {
			s.first = o
		}
		if confirmed {
			s.rep.Reviewed = true
			s.rep.Valid = true
		}
		if n := len(s.reports); n > s.rep.ReportCount {
			s.rep.ReportCount = n
		}
	}

	out := make([]model.Observation, 0, len(order))
	for _, k := range order {
		s := groups[k]
		if s.first.DateKnown {
			s.rep.FirstObservedAt = s.first.ObservedAt
			s.rep.FirstDateKnown = true
		}
		out = append(out, s.rep)
	}
	return out
}

// ByLocation builds the expanded-marker view for a selected county: one
// representative per (species, location) plus the count of distinct species
// at each representative's location.
func ByLocation(obs []model.Observation) []model.LocationAggregate {
	reps := DedupeByLocation(obs)

	speciesAt := make(map[string]map[string]struct{})
	for _, o := range obs {
		loc := locationKey(o)
		if loc == "" || o.Species == "" {
			continue
		}
		set, ok := speciesAt[loc]
		if !ok {
			set = make(map[string]struct{})
			speciesAt[loc] = set
		}
		set[o.Species] = struct{}{}
	}

	out := make([]model.LocationAggregate, 0, len(reps))
	for _, rep := range reps {
		out = append(out, model.LocationAggregate{
			Representative: rep,
			SpeciesCount:   len(speciesAt[locationKey(rep)]),
		})
	}
	return out
}

// UniqueSpeciesLocations counts distinct (species, location) pairs, for the
// summary counter.
func UniqueSpeciesLocations(obs []model.Observation) int {
	seen := make(map[string]struct{})
	for _, o := range obs {
		seen[o.Species+"::"+locationKey(o)] = struct{}{}
	}
	return len(seen)
}

// Species returns the sorted distinct species names in a dataset, for the
// species dropdown.
func Species(obs []model.Observation) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, o := range obs {
		if o.Species == "" {
			continue
		}
		if _, ok := seen[o.Species]; ok {
			continue
		}
		seen[o.Species] = struct{}{}
		out = append(out, o.Species)
	}
	sort.Strings(out)
	return out
}

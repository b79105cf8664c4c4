// Package normalize converts raw upstream observation records into the
// canonical internal schema. The transform is pure: malformed records are
// filtered out, never raised as errors.
package normalize

import (
	"strings"
	"time"

	"github.com/featherline/rarity-mapper/internal/model"
	"github.com/featherline/rarity-mapper/internal/rarity"
)

// Observation timestamps arrive as "2026-08-21 07:15" and occasionally
// date-only. Anything else is unparseable, which keeps the record but drops
// it from date-based sort keys.
var obsDateLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseObsDate leniently parses an upstream observation timestamp.
// The second return is false when the value is missing or malformed.
func ParseObsDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range obsDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// StateAbbrev derives the two-letter state abbreviation from a compound
// region code like "US-CA": split on hyphen, take the final segment.
func StateAbbrev(regionCode string) string {
	code := strings.TrimSpace(regionCode)
	if code == "" {
		return ""
	}
	if i := strings.LastIndex(code, "-"); i >= 0 {
		return code[i+1:]
	}
	return code
}

// Record normalizes one raw record. The second return is false when the
// record is rejected (missing species name).
func Record(raw model.RawObservation, codes *rarity.Table) (model.Observation, bool) {
	species := strings.TrimSpace(raw.ComName)
	if species == "" {
		return model.Observation{}, false
	}

	obs := model.Observation{
		Species:      species,
		StateCode:    StateAbbrev(raw.Subnational1Code),
		CountyRegion: strings.ToUpper(strings.TrimSpace(raw.Subnational2Code)),
		LocationID:   raw.LocID,
		LocationName: raw.LocName,
		ReportID:     raw.SubID,
		Reviewed:     raw.ObsReviewed == 1,
		Valid:        raw.ObsValid == 1,
		Rarity:       codes.Code(species),
		ReportCount:  1,
	}

	obs.ObservedAt, obs.DateKnown = ParseObsDate(raw.ObsDt)
	if raw.FirstObsDt != "" {
		obs.FirstObservedAt, obs.FirstDateKnown = ParseObsDate(raw.FirstObsDt)
	}

	obs.CountyName = strings.TrimSpace(raw.Subnational2Name)
	if obs.CountyName == "" {
		obs.CountyName = obs.CountyRegion
	}

	if raw.Lat != nil && raw.Lng != nil {
		obs.Lat = *raw.Lat
		obs.Lng = *raw.Lng
		obs.HasPoint = true
	}

	if raw.ReportCount != nil && *raw.ReportCount > 0 {
		obs.ReportCount = *raw.ReportCount
	}

	return obs, true
}

// Records normalizes a batch, dropping rejected records.
func Records(raws []model.RawObservation, codes *rarity.Table) []model.Observation {
	out := make([]model.Observation, 0, len(raws))
	for _, raw := range raws {
		if obs, ok := Record(raw, codes); ok {
			out = append(out, obs)
		}
	}
	return out
}

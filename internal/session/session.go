// Package session holds the single active spatial selection and the
// cross-cutting filters, and recomputes every dependent view deterministically
// on each change. Recompute is a pure function of the state; the Controller is
// the thin mutating shell around it.
package session

import (
	"strings"

	"github.com/twpayne/go-geom"

	"github.com/featherline/rarity-mapper/internal/model"
)

// Filter defaults and bounds.
const (
	MinDaysBack     = 1
	MaxDaysBack     = 30
	DefaultDaysBack = 7

	DefaultMinRarity = model.RarityCode(3)
)

// Selection is the currently selected county, or none.
type Selection struct {
	Active    bool
	FIPS5     string
	Name      string
	StateCode string
	Boundary  geom.T // nil when the polygon has not loaded
}

// Matches reports whether a (state, county) bucket is the selected county,
// by case-insensitive name and state comparison.
func (s Selection) Matches(stateCode, countyName string) bool {
	if !s.Active || s.Name == "" {
		return false
	}
	return strings.EqualFold(s.StateCode, stateCode) &&
		normalizeCountyName(s.Name) == normalizeCountyName(countyName)
}

func normalizeCountyName(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

// Filters are the cross-cutting view filters. Two independent rarity
// thresholds: one for the county notable table and map, one for the
// nationwide lower-48 table and map.
type Filters struct {
	DaysBack         int
	CountyMinRarity  model.RarityCode
	Lower48MinRarity model.RarityCode
	Species          string
}

// DefaultFilters returns the filter state after "clear filters".
func DefaultFilters() Filters {
	return Filters{
		DaysBack:         DefaultDaysBack,
		CountyMinRarity:  DefaultMinRarity,
		Lower48MinRarity: DefaultMinRarity,
	}
}

// ClampDaysBack clamps a requested window to the supported range, falling
// back to the default when the value is zero.
func ClampDaysBack(n int) int {
	if n == 0 {
		return DefaultDaysBack
	}
	if n < MinDaysBack {
		return MinDaysBack
	}
	if n > MaxDaysBack {
		return MaxDaysBack
	}
	return n
}

// State is everything the views derive from. It is a value: Recompute never
// mutates it.
type State struct {
	// Region is the active region code, e.g. "US-CA".
	Region string

	// Notable is the region-scoped notable dataset; Lower48 the nationwide
	// rarity-tier dataset.
	Notable []model.Observation
	Lower48 []model.Observation

	// ShowLower48Markers mirrors the per-table map toggle.
	ShowLower48Markers bool

	Selection Selection
	Filters   Filters

	// Status is the most recent significant outcome, set by the Controller.
	Status string
}

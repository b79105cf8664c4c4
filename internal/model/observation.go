// Package model defines the normalized observation schema shared by every
// stage of the pipeline. Downstream code operates only on these types, never
// on raw upstream field names.
package model

import "time"

// RarityCode classifies a species' regional rarity tier (ABA code).
// Higher is rarer. Zero means the species is absent from the static
// classification table; an unknown code never raises a group's stored code
// and sorts below code 1.
type RarityCode int

// RarityUnknown marks a species with no entry in the classification table.
const RarityUnknown RarityCode = 0

// Known reports whether the code carries a real classification.
func (c RarityCode) Known() bool { return c >= 1 }

// Observation is a single normalized sighting report. It is created once by
// the normalizer and never mutated afterwards.
type Observation struct {
	Species string `json:"species"`

	// ObservedAt is the parsed observation timestamp. DateKnown is false when
	// the upstream value was missing or unparseable; such records are treated
	// as always inside any date window but excluded from date-based sort keys.
	ObservedAt time.Time `json:"observed_at"`
	DateKnown  bool      `json:"date_known"`

	// FirstObservedAt carries the earliest report date for records that arrive
	// pre-aggregated from the nationwide endpoint. FirstDateKnown is false for
	// raw single reports.
	FirstObservedAt time.Time `json:"first_observed_at,omitempty"`
	FirstDateKnown  bool      `json:"first_date_known,omitempty"`

	// Geographic point. HasPoint is false when the upstream record carried no
	// coordinates; such records never reach the map but stay in tables as long
	// as they carry county/state text.
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	HasPoint bool    `json:"has_point"`

	StateCode    string `json:"state_code"`    // two-letter, e.g. "CA"
	CountyName   string `json:"county_name"`   // display name, may be empty
	CountyRegion string `json:"county_region"` // US-XX-NNN when upstream tagged it

	LocationID   string `json:"location_id"`
	LocationName string `json:"location_name"`
	ReportID     string `json:"report_id"` // checklist identifier

	Reviewed bool       `json:"reviewed"`
	Valid    bool       `json:"valid"`
	Rarity   RarityCode `json:"rarity"`

	// ReportCount is 1 for raw records and the distinct-checklist count for
	// records that arrive pre-aggregated.
	ReportCount int `json:"report_count"`
}

// Confirmed reports whether this observation was reviewed and accepted.
func (o Observation) Confirmed() bool { return o.Reviewed && o.Valid }

// CountyAggregate is the derived (species, state, county) grouping used by
// the table views. Recomputed from scratch on every filter change.
type CountyAggregate struct {
	Species    string `json:"species"`
	StateCode  string `json:"state_code"`
	CountyName string `json:"county_name"`

	Count int `json:"count"`

	First    time.Time `json:"first,omitempty"`
	Last     time.Time `json:"last,omitempty"`
	HasFirst bool      `json:"has_first"`
	HasLast  bool      `json:"has_last"`

	// Rarity is the maximum across contributing observations; unknown codes
	// never raise it.
	Rarity RarityCode `json:"rarity"`

	// ConfirmedAny is the OR across contributing observations. Once true it
	// stays true for the group.
	ConfirmedAny bool `json:"confirmed_any"`

	// Representative point and location, first-writer-wins per field.
	Lat        float64 `json:"lat,omitempty"`
	Lng        float64 `json:"lng,omitempty"`
	HasPoint   bool    `json:"has_point"`
	LocationID string  `json:"location_id,omitempty"`
}

// LocationAggregate is the per (species, location) dedupe used for expanded
// map markers inside a selected county.
type LocationAggregate struct {
	// Representative is the most recent observation for the pair; its
	// reviewed/valid flags reflect the group's OR-combined confirmation.
	Representative Observation `json:"representative"`

	// SpeciesCount is the number of distinct species present at the
	// representative's location, for badge rendering.
	SpeciesCount int `json:"species_count"`
}

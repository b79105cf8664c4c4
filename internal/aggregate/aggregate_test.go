package aggregate

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/featherline/rarity-mapper/internal/model"
)

func obsAt(species, state, county string, day int) model.Observation {
	return model.Observation{
		Species:     species,
		StateCode:   state,
		CountyName:  county,
		ObservedAt:  time.Date(2026, 8, day, 12, 0, 0, 0, time.UTC),
		DateKnown:   true,
		ReportCount: 1,
	}
}

func TestByCounty_CountsAndDates(t *testing.T) {
	a := obsAt("Painted Redstart", "CA", "Alameda", 10)
	b := obsAt("Painted Redstart", "CA", "Alameda", 14)
	c := obsAt("Painted Redstart", "CA", "Alameda", 12)

	rows := ByCounty([]model.Observation{a, b, c})
	require.Len(t, rows, 1)
	row := rows[0]
	assert.Equal(t, 3, row.Count)
	assert.Equal(t, 10, row.First.Day())
	assert.Equal(t, 14, row.Last.Day())
	assert.True(t, !row.First.After(row.Last))
}

func TestByCounty_RarityMonotonicMax(t *testing.T) {
	a := obsAt("Ross's Gull", "NY", "Monroe", 10)
	a.Rarity = 4
	b := obsAt("Ross's Gull", "NY", "Monroe", 11)
	b.Rarity = 2
	c := obsAt("Ross's Gull", "NY", "Monroe", 12)
	c.Rarity = model.RarityUnknown

	rows := ByCounty([]model.Observation{b, a, c})
	require.Len(t, rows, 1)
	assert.Equal(t, model.RarityCode(4), rows[0].Rarity)
}

func TestByCounty_ConfirmedAnyMonotonic(t *testing.T) {
	confirmed := obsAt("Painted Redstart", "CA", "Alameda", 10)
	confirmed.Reviewed, confirmed.Valid = true, true
	pending := obsAt("Painted Redstart", "CA", "Alameda", 11)

	rows := ByCounty([]model.Observation{confirmed, pending})
	require.Len(t, rows, 1)
	assert.True(t, rows[0].ConfirmedAny)

	rows = ByCounty([]model.Observation{pending, confirmed})
	assert.True(t, rows[0].ConfirmedAny)
}

func TestByCounty_RepresentativeFirstWriterWins(t *testing.T) {
	noPoint := obsAt("Painted Redstart", "CA", "Alameda", 10)
	withPoint := obsAt("Painted Redstart", "CA", "Alameda", 11)
	withPoint.Lat, withPoint.Lng, withPoint.HasPoint = 37.5, -122.0, true
	withPoint.LocationID = "L1"
	later := obsAt("Painted Redstart", "CA", "Alameda", 12)
	later.Lat, later.Lng, later.HasPoint = 40.0, -100.0, true
	later.LocationID = "L2"

	rows := ByCounty([]model.Observation{noPoint, withPoint, later})
	require.Len(t, rows, 1)
	assert.Equal(t, 37.5, rows[0].Lat)
	assert.Equal(t, "L1", rows[0].LocationID)
}

func TestByCounty_PreAggregatedWeights(t *testing.T) {
	pre := obsAt("Ross's Gull", "NY", "Monroe", 14)
	pre.ReportCount = 5
	pre.FirstObservedAt = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	pre.FirstDateKnown = true

	rows := ByCounty([]model.Observation{pre})
	require.Len(t, rows, 1)
	assert.Equal(t, 5, rows[0].Count)
	assert.Equal(t, 1, rows[0].First.Day())
	assert.Equal(t, 14, rows[0].Last.Day())
}

func TestByCounty_UnknownDatesExcludedFromExtremes(t *testing.T) {
	undated := model.Observation{Species: "X", StateCode: "CA", CountyName: "Alameda", ReportCount: 1}
	rows := ByCounty([]model.Observation{undated})
	require.Len(t, rows, 1)
	assert.False(t, rows[0].HasFirst)
	assert.False(t, rows[0].HasLast)
	assert.Equal(t, 1, rows[0].Count)
}

func TestDedupeByLocation_MostRecentWinsConfirmationPropagates(t *testing.T) {
	older := obsAt("Painted Redstart", "CA", "Alameda", 10)
	older.LocationID = "L1"
	older.ReportID = "R1"
	older.Reviewed, older.Valid = true, true
	newer := obsAt("Painted Redstart", "CA", "Alameda", 12)
	newer.LocationID = "L1"
	newer.ReportID = "R2"

	out := DedupeByLocation([]model.Observation{older, newer})
	require.Len(t, out, 1)
	assert.Equal(t, "R2", out[0].ReportID)
	// Group confirmation written back onto the representative.
	assert.True(t, out[0].Reviewed)
	assert.True(t, out[0].Valid)
}

func TestDedupeByLocation_DistinctLocationsKept(t *testing.T) {
	a := obsAt("Painted Redstart", "CA", "Alameda", 10)
	a.LocationID = "L1"
	b := obsAt("Painted Redstart", "CA", "Alameda", 10)
	b.LocationID = "L2"
	out := DedupeByLocation([]model.Observation{a, b})
	assert.Len(t, out, 2)
}

func TestDedupeByLocation_LocationNameFallback(t *testing.T) {
	a := obsAt("Painted Redstart", "CA", "Alameda", 10)
	a.LocationName = "Lake Merritt"
	b := obsAt("Painted Redstart", "CA", "Alameda", 11)
	b.LocationName = "Lake Merritt"
	out := DedupeByLocation([]model.Observation{a, b})
	assert.Len(t, out, 1)
}

func TestAggregateReports_DistinctChecklists(t *testing.T) {
	r1 := obsAt("Painted Redstart", "CA", "Alameda", 10)
	r1.LocationID = "L1"
	r1.ReportID = "R1"
	r1.Reviewed, r1.Valid = true, true
	r2 := obsAt("Painted Redstart", "CA", "Alameda", 12)
	r2.LocationID = "L1"
	r2.ReportID = "R2"
	dupR2 := r2 // same checklist repeated by pagination

	out := AggregateReports([]model.Observation{r1, r2, dupR2})
	require.Len(t, out, 1)
	assert.Equal(t, 2, out[0].ReportCount)
	assert.True(t, out[0].Confirmed())
	assert.True(t, out[0].FirstDateKnown)
	assert.Equal(t, 10, out[0].FirstObservedAt.Day())
	assert.Equal(t, 12, out[0].ObservedAt.Day())
}

func TestScenario_PaintedRedstartMixedReview(t *testing.T) {
	// Two reports at the same location, one confirmed and one not:
	// reportCount=2, confirmedAny=true.
	r1 := obsAt("Painted Redstart", "CA", "Alameda", 10)
	r1.LocationID = "L77"
	r1.ReportID = "R1"
	r1.Reviewed, r1.Valid = true, true
	r2 := obsAt("Painted Redstart", "CA", "Alameda", 11)
	r2.LocationID = "L77"
	r2.ReportID = "R2"

	out := AggregateReports([]model.Observation{r1, r2})
	require.Len(t, out, 1)
	assert.Equal(t, 2, out[0].ReportCount)
	assert.True(t, out[0].Confirmed())
}

func TestByLocation_SpeciesCounts(t *testing.T) {
	a := obsAt("Painted Redstart", "CA", "Alameda", 10)
	a.LocationID = "L1"
	b := obsAt("Ross's Gull", "CA", "Alameda", 10)
	b.LocationID = "L1"
	c := obsAt("Painted Redstart", "CA", "Alameda", 10)
	c.LocationID = "L2"

	out := ByLocation([]model.Observation{a, b, c})
	require.Len(t, out, 3)
	counts := make(map[string]int)
	for _, la := range out {
		counts[la.Representative.LocationID] = la.SpeciesCount
	}
	assert.Equal(t, 2, counts["L1"])
	assert.Equal(t, 1, counts["L2"])
}

func TestUniqueSpeciesLocations(t *testing.T) {
	a := obsAt("Painted Redstart", "CA", "Alameda", 10)
	a.LocationID = "L1"
	b := a
	c := obsAt("Ross's Gull", "CA", "Alameda", 10)
	c.LocationID = "L1"
	assert.Equal(t, 2, UniqueSpeciesLocations([]model.Observation{a, b, c}))
}

func TestSpecies(t *testing.T) {
	obs := []model.Observation{
		obsAt("Ross's Gull", "NY", "Monroe", 10),
		obsAt("Painted Redstart", "CA", "Alameda", 10),
		obsAt("Ross's Gull", "NY", "Monroe", 11),
	}
	assert.Equal(t, []string{"Painted Redstart", "Ross's Gull"}, Species(obs))
}

func TestSortRows_Order(t *testing.T) {
	mk := func(species, state, county string, code model.RarityCode, lastDay int) model.CountyAggregate {
		agg := model.CountyAggregate{Species: species, StateCode: state, CountyName: county, Rarity: code}
		if lastDay > 0 {
			agg.Last = time.Date(2026, 8, lastDay, 0, 0, 0, 0, time.UTC)
			agg.HasLast = true
		}
		return agg
	}

	rows := []model.CountyAggregate{
		mk("A", "ca", "alameda", 2, 10),
		mk("B", "CA", "Alameda", 4, 5),
		mk("C", "AZ", "Pima", 4, 7),
		mk("D", "CA", "Butte", 4, 9),
		mk("E", "CA", "Alameda", 4, 8),
		mk("F", "TX", "Harris", model.RarityUnknown, 20),
	}
	SortRows(rows)

	got := make([]string, len(rows))
	for i, r := range rows {
		got[i] = r.Species
	}
	// Code 4 first (AZ < CA, Alameda < Butte, newer last-date first within
	// a full county tie), then code 2, unknown last.
	assert.Equal(t, []string{"C", "E", "B", "D", "A", "F"}, got)
}

func TestSortRows_StableOnFullTie(t *testing.T) {
	rows := []model.CountyAggregate{}
	for i := 0; i < 4; i++ {
		rows = append(rows, model.CountyAggregate{
			Species: fmt.Sprintf("S%d", i), StateCode: "CA", CountyName: "Alameda", Rarity: 3,
		})
	}
	SortRows(rows)
	for i := 0; i < 4; i++ {
		assert.Equal(t, fmt.Sprintf("S%d", i), rows[i].Species)
	}
}

func TestTopRows_Cap(t *testing.T) {
	rows := make([]model.CountyAggregate, 0, 60)
	for i := 0; i < 60; i++ {
		rows = append(rows, model.CountyAggregate{Species: fmt.Sprintf("S%03d", i), Rarity: 3})
	}
	out := TopRows(rows)
	assert.Len(t, out, MaxRows)
}

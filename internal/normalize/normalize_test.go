package normalize

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/featherline/rarity-mapper/internal/model"
	"github.com/featherline/rarity-mapper/internal/rarity"
)

func testCodes() *rarity.Table {
	return rarity.New(map[string]int{
		"Painted Redstart": 2,
		"Ross's Gull":      4,
	}, 6)
}

func fptr(v float64) *float64 { return &v }

func TestParseObsDate(t *testing.T) {
	dt, ok := ParseObsDate("2026-08-21 07:15")
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 8, 21, 7, 15, 0, 0, time.UTC), dt)

	dt, ok = ParseObsDate("2026-08-21")
	require.True(t, ok)
	assert.Equal(t, 21, dt.Day())

	_, ok = ParseObsDate("")
	assert.False(t, ok)
	_, ok = ParseObsDate("yesterday")
	assert.False(t, ok)
	_, ok = ParseObsDate("21/08/2026")
	assert.False(t, ok)
}

func TestStateAbbrev(t *testing.T) {
	assert.Equal(t, "CA", StateAbbrev("US-CA"))
	assert.Equal(t, "BC", StateAbbrev("CA-BC"))
	assert.Equal(t, "CA", StateAbbrev("CA"))
	assert.Equal(t, "", StateAbbrev(""))
}

func TestRecord_Full(t *testing.T) {
	raw := model.RawObservation{
		ComName:          "Painted Redstart",
		ObsDt:            "2026-08-20 09:30",
		Lat:              fptr(37.5),
		Lng:              fptr(-121.9),
		Subnational1Code: "US-CA",
		Subnational2Code: "US-CA-001",
		Subnational2Name: "Alameda",
		LocID:            "L123",
		LocName:          "Lake Merritt",
		SubID:            "S100",
		ObsReviewed:      1,
		ObsValid:         1,
	}

	obs, ok := Record(raw, testCodes())
	require.True(t, ok)
	assert.Equal(t, "Painted Redstart", obs.Species)
	assert.Equal(t, "CA", obs.StateCode)
	assert.Equal(t, "Alameda", obs.CountyName)
	assert.Equal(t, "US-CA-001", obs.CountyRegion)
	assert.True(t, obs.HasPoint)
	assert.True(t, obs.DateKnown)
	assert.True(t, obs.Confirmed())
	assert.Equal(t, model.RarityCode(2), obs.Rarity)
	assert.Equal(t, 1, obs.ReportCount)
}

func TestRecord_RejectsMissingSpecies(t *testing.T) {
	_, ok := Record(model.RawObservation{ObsDt: "2026-08-20"}, testCodes())
	assert.False(t, ok)
	_, ok = Record(model.RawObservation{ComName: "   "}, testCodes())
	assert.False(t, ok)
}

func TestRecord_UnparseableDateKept(t *testing.T) {
	obs, ok := Record(model.RawObservation{ComName: "Ross's Gull", ObsDt: "soon"}, testCodes())
	require.True(t, ok)
	assert.False(t, obs.DateKnown)
	assert.True(t, obs.ObservedAt.IsZero())
}

func TestRecord_NoPoint(t *testing.T) {
	obs, ok := Record(model.RawObservation{
		ComName:          "Ross's Gull",
		Subnational1Code: "US-NY",
		Subnational2Name: "Monroe",
	}, testCodes())
	require.True(t, ok)
	assert.False(t, obs.HasPoint)
	assert.Equal(t, "Monroe", obs.CountyName)
}

func TestRecord_CountyNameFallsBackToRegionCode(t *testing.T) {
	obs, ok := Record(model.RawObservation{
		ComName:          "Ross's Gull",
		Subnational2Code: "us-ny-055",
	}, testCodes())
	require.True(t, ok)
	assert.Equal(t, "US-NY-055", obs.CountyName)
}

func TestRecord_ConfirmationRequiresBothFlags(t *testing.T) {
	obs, _ := Record(model.RawObservation{ComName: "X", ObsReviewed: 1, ObsValid: 0}, testCodes())
	assert.False(t, obs.Confirmed())
	obs, _ = Record(model.RawObservation{ComName: "X", ObsReviewed: 0, ObsValid: 1}, testCodes())
	assert.False(t, obs.Confirmed())
}

func TestRecord_UnknownSpeciesCode(t *testing.T) {
	obs, _ := Record(model.RawObservation{ComName: "House Sparrow"}, testCodes())
	assert.Equal(t, model.RarityUnknown, obs.Rarity)
}

func TestRecord_PreAggregatedReportCount(t *testing.T) {
	n := 3
	obs, _ := Record(model.RawObservation{
		ComName:     "Ross's Gull",
		ObsDt:       "2026-08-20 10:00",
		FirstObsDt:  "2026-08-14",
		ReportCount: &n,
	}, testCodes())
	assert.Equal(t, 3, obs.ReportCount)
	assert.True(t, obs.FirstDateKnown)
}

func TestFlag_UnmarshalVariants(t *testing.T) {
	var raw model.RawObservation
	require.NoError(t, json.Unmarshal([]byte(`{"comName":"X","obsReviewed":true,"obsValid":1}`), &raw))
	assert.Equal(t, model.Flag(1), raw.ObsReviewed)
	assert.Equal(t, model.Flag(1), raw.ObsValid)

	require.NoError(t, json.Unmarshal([]byte(`{"comName":"X","obsReviewed":false,"obsValid":"1"}`), &raw))
	assert.Equal(t, model.Flag(0), raw.ObsReviewed)
	assert.Equal(t, model.Flag(1), raw.ObsValid)

	require.NoError(t, json.Unmarshal([]byte(`{"comName":"X","obsReviewed":"maybe"}`), &raw))
	assert.Equal(t, model.Flag(0), raw.ObsReviewed)
}

func TestRecords_Idempotent(t *testing.T) {
	raws := []model.RawObservation{
		{ComName: "Painted Redstart", ObsDt: "2026-08-20 09:30", Lat: fptr(37.5), Lng: fptr(-121.9)},
		{ComName: "", ObsDt: "2026-08-20"},
		{ComName: "Ross's Gull", ObsDt: "bogus"},
	}
	first := Records(raws, testCodes())
	second := Records(raws, testCodes())
	assert.Equal(t, first, second)
	assert.Len(t, first, 2)
}

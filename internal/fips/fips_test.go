package fips

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCountyRegion_Valid(t *testing.T) {
	r, err := ParseCountyRegion("US-CA-001")
	require.NoError(t, err)
	assert.Equal(t, "CA", r.StateCode)
	assert.Equal(t, "001", r.CountyCode)
	assert.Equal(t, "06", r.StateFIPS)
	assert.Equal(t, "06001", r.FIPS5)
	assert.Equal(t, "US-CA-001", r.CountyRegion)
}

func TestParseCountyRegion_Lowercase(t *testing.T) {
	r, err := ParseCountyRegion("us-tx-201")
	require.NoError(t, err)
	assert.Equal(t, "48201", r.FIPS5)
}

func TestParseCountyRegion_Invalid(t *testing.T) {
	for _, bad := range []string{"", "US-CA", "US-CAL-001", "CA-001", "US-CA-1"} {
		_, err := ParseCountyRegion(bad)
		assert.Error(t, err, bad)
	}
}

func TestFromFIPS5(t *testing.T) {
	r, err := FromFIPS5("06001")
	require.NoError(t, err)
	assert.Equal(t, "US-CA-001", r.CountyRegion)
	assert.Equal(t, "CA", r.StateCode)

	_, err = FromFIPS5("99001")
	assert.Error(t, err)

	_, err = FromFIPS5("0600")
	assert.Error(t, err)
}

func TestStateRegion(t *testing.T) {
	assert.Equal(t, "US-CA", StateRegion("06"))
	assert.Equal(t, "US-AL", StateRegion("1")) // single digit padded
	assert.Equal(t, "", StateRegion("99"))
}

func TestIsLower48(t *testing.T) {
	assert.True(t, IsLower48("US-CA"))
	assert.True(t, IsLower48("us-ny"))
	assert.False(t, IsLower48("US-AK"))
	assert.False(t, IsLower48("US-HI"))
	assert.False(t, IsLower48("CA-ON"))
	assert.False(t, IsLower48(""))
}

func TestValidRegionCode(t *testing.T) {
	assert.True(t, ValidRegionCode("US"))
	assert.True(t, ValidRegionCode("ABA"))
	assert.True(t, ValidRegionCode("us-ca"))
	assert.False(t, ValidRegionCode("US-CA-001"))
	assert.False(t, ValidRegionCode("EU"))
}

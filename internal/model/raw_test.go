package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlag_UnmarshalJSON(t *testing.T) {
	cases := []struct {
		in   string
		want Flag
	}{
		{`true`, 1},
		{`false`, 0},
		{`null`, 0},
		{`1`, 1},
		{`0`, 0},
		{`"1"`, 1},
		{`"0"`, 0},
		{`1.0`, 1},
		{`"garbage"`, 0},
	}
	for _, tc := range cases {
		var f Flag
		require.NoError(t, json.Unmarshal([]byte(tc.in), &f), "input %s", tc.in)
		assert.Equal(t, tc.want, f, "input %s", tc.in)
	}
}

func TestObservation_Confirmed(t *testing.T) {
	assert.True(t, Observation{Reviewed: true, Valid: true}.Confirmed())
	assert.False(t, Observation{Reviewed: true}.Confirmed())
	assert.False(t, Observation{Valid: true}.Confirmed())
}

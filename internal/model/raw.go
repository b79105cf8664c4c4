package model

import (
	"bytes"
	"strconv"
)

// Flag is an upstream review/validity flag. eBird has served these both as
// booleans and as 0/1 numbers; confirmation requires the numeric value 1.
type Flag int

// UnmarshalJSON accepts true/false, numbers, and numeric strings.
func (f *Flag) UnmarshalJSON(data []byte) error {
	s := string(bytes.TrimSpace(data))
	switch s {
	case "true":
		*f = 1
		return nil
	case "false", "null":
		*f = 0
		return nil
	}
	s = trimQuotes(s)
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*f = 0
		return nil // malformed flags degrade to unconfirmed, never fail the batch
	}
	*f = Flag(n)
	return nil
}

func trimQuotes(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// RawObservation mirrors one record of the upstream observation endpoint.
// It exists only at the normalization boundary.
type RawObservation struct {
	ComName          string   `json:"comName"`
	ObsDt            string   `json:"obsDt"`
	FirstObsDt       string   `json:"firstObsDt,omitempty"`
	Lat              *float64 `json:"lat"`
	Lng              *float64 `json:"lng"`
	Subnational1Code string   `json:"subnational1Code"`
	Subnational2Code string   `json:"subnational2Code"`
	Subnational2Name string   `json:"subnational2Name"`
	LocID            string   `json:"locId"`
	LocName          string   `json:"locName"`
	SubID            string   `json:"subId"`
	ObsReviewed      Flag     `json:"obsReviewed"`
	ObsValid         Flag     `json:"obsValid"`
	ReportCount      *int     `json:"reportCount,omitempty"`
}

// Package fips handles US state/county FIPS arithmetic and normalized
// county-region codes of the form US-XX-NNN.
package fips

import (
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
)

// StateCodeToFIPS maps two-letter state codes to two-digit state FIPS codes.
var StateCodeToFIPS = map[string]string{
	"AL": "01", "AK": "02", "AZ": "04", "AR": "05", "CA": "06", "CO": "08",
	"CT": "09", "DE": "10", "DC": "11", "FL": "12", "GA": "13", "HI": "15",
	"ID": "16", "IL": "17", "IN": "18", "IA": "19", "KS": "20", "KY": "21",
	"LA": "22", "ME": "23", "MD": "24", "MA": "25", "MI": "26", "MN": "27",
	"MS": "28", "MO": "29", "MT": "30", "NE": "31", "NV": "32", "NH": "33",
	"NJ": "34", "NM": "35", "NY": "36", "NC": "37", "ND": "38", "OH": "39",
	"OK": "40", "OR": "41", "PA": "42", "RI": "44", "SC": "45", "SD": "46",
	"TN": "47", "TX": "48", "UT": "49", "VT": "50", "VA": "51", "WA": "53",
	"WV": "54", "WI": "55", "WY": "56",
}

// StateFIPSToCode is the inverse of StateCodeToFIPS.
var StateFIPSToCode = func() map[string]string {
	m := make(map[string]string, len(StateCodeToFIPS))
	for code, fips := range StateCodeToFIPS {
		m[fips] = code
	}
	return m
}()

var countyRegionRe = regexp.MustCompile(`^US-([A-Z]{2})-(\d{3})$`)

// Region identifies one county across the code systems in play.
type Region struct {
	StateCode    string // "CA"
	CountyCode   string // "001"
	StateFIPS    string // "06"
	FIPS5        string // "06001"
	CountyRegion string // "US-CA-001"
}

// ParseCountyRegion parses a normalized US-XX-NNN county region code.
func ParseCountyRegion(s string) (Region, error) {
	m := countyRegionRe.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(s)))
	if m == nil {
		return Region{}, eris.Errorf("fips: invalid county region %q, expected US-XX-NNN", s)
	}
	r := Region{
		StateCode:    m[1],
		CountyCode:   m[2],
		CountyRegion: "US-" + m[1] + "-" + m[2],
	}
	if sf, ok := StateCodeToFIPS[r.StateCode]; ok {
		r.StateFIPS = sf
		r.FIPS5 = sf + r.CountyCode
	}
	return r, nil
}

// FromFIPS5 builds a Region from a 5-digit combined state+county FIPS code.
func FromFIPS5(fips5 string) (Region, error) {
	if len(fips5) != 5 {
		return Region{}, eris.Errorf("fips: invalid FIPS5 %q", fips5)
	}
	stateFIPS := fips5[:2]
	code, ok := StateFIPSToCode[stateFIPS]
	if !ok {
		return Region{}, eris.Errorf("fips: unknown state FIPS %q", stateFIPS)
	}
	return Region{
		StateCode:    code,
		CountyCode:   fips5[2:],
		StateFIPS:    stateFIPS,
		FIPS5:        fips5,
		CountyRegion: "US-" + code + "-" + fips5[2:],
	}, nil
}

// StateRegion returns the US-XX region code for a two-digit state FIPS, or ""
// when the FIPS is unknown.
func StateRegion(stateFIPS string) string {
	if len(stateFIPS) == 1 {
		stateFIPS = "0" + stateFIPS
	}
	code, ok := StateFIPSToCode[stateFIPS]
	if !ok {
		return ""
	}
	return "US-" + code
}

// IsLower48 reports whether a subnational1 region code belongs to the
// contiguous United States.
func IsLower48(subnational1Code string) bool {
	c := strings.ToUpper(subnational1Code)
	return strings.HasPrefix(c, "US-") && c != "US-AK" && c != "US-HI"
}

var regionCodeRe = regexp.MustCompile(`^US-[A-Z]{2}$`)

// ValidRegionCode reports whether a query region code is one the observation
// endpoints accept: US, ABA, or a US state.
func ValidRegionCode(r string) bool {
	v := strings.ToUpper(strings.TrimSpace(r))
	return v == "US" || v == "ABA" || regionCodeRe.MatchString(v)
}

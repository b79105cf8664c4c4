package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/featherline/rarity-mapper/internal/aggregate"
	"github.com/featherline/rarity-mapper/internal/boundary"
	"github.com/featherline/rarity-mapper/internal/ebird"
	"github.com/featherline/rarity-mapper/internal/fips"
	"github.com/featherline/rarity-mapper/internal/model"
	"github.com/featherline/rarity-mapper/internal/normalize"
	"github.com/featherline/rarity-mapper/internal/resolver"
	"github.com/featherline/rarity-mapper/internal/spatial"
)

const (
	defaultRegion = "US-CA"

	maxBackRegional   = 14
	maxBackNationwide = 30
	defaultBackWide   = 7
)

func (s *Server) handleABAMeta(w http.ResponseWriter, _ *http.Request) error {
	writeJSON(w, http.StatusOK, map[string]int{"maxCode": int(s.deps.Rarity.MaxCode())})
	return nil
}

func (s *Server) handleRegions(w http.ResponseWriter, r *http.Request) error {
	country := strings.ToUpper(r.URL.Query().Get("country"))
	if country == "" {
		country = "US"
	}
	regions, err := s.deps.Observations.Regions(r.Context(), country)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, regions)
	return nil
}

func (s *Server) handleRarities(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()
	region := strings.ToUpper(q.Get("region"))
	if region == "" {
		region = defaultRegion
	}
	if !fips.ValidRegionCode(region) {
		return errBadRequest("Invalid region code")
	}
	back := ebird.ClampBack(q.Get("back"), maxBackRegional, maxBackRegional)

	raws, err := s.deps.Observations.RecentNotable(r.Context(), region, back, "full")
	if err != nil {
		return err
	}
	obs := aggregate.DedupeByLocation(normalize.Records(raws, s.deps.Rarity))

	w.Header().Set("X-Data-Back", strconv.Itoa(back))
	w.Header().Set("X-Data-Region", region)
	writeJSON(w, http.StatusOK, toDTOs(obs, false))
	return nil
}

func (s *Server) handleLower48Rarities(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()
	minRarity := parseIntOr(q.Get("minAba"), 3)
	back := ebird.ClampBack(q.Get("back"), defaultBackWide, maxBackNationwide)

	raws, err := s.deps.Observations.RecentNotable(r.Context(), "US", back, "full")
	if err != nil {
		return err
	}

	// Filter on the raw region code: a blank or malformed subnational1Code
	// is not lower-48 even when a state abbreviation could be salvaged.
	kept := make([]model.RawObservation, 0, len(raws))
	for _, raw := range raws {
		if fips.IsLower48(raw.Subnational1Code) {
			kept = append(kept, raw)
		}
	}

	filtered := make([]model.Observation, 0, len(kept))
	for _, o := range normalize.Records(kept, s.deps.Rarity) {
		if !o.Rarity.Known() || int(o.Rarity) < minRarity {
			continue
		}
		filtered = append(filtered, o)
	}

	w.Header().Set("X-Data-Back", strconv.Itoa(back))
	w.Header().Set("X-Data-Region", "US")
	w.Header().Set("X-ABA-Source", "lower48-notable")
	w.Header().Set("X-ABA-Min", strconv.Itoa(minRarity))
	w.Header().Set("X-Lower48", "1")
	writeJSON(w, http.StatusOK, toDTOs(aggregate.AggregateReports(filtered), true))
	return nil
}

// countyResolveResponse is the local point-in-county lookup result.
type countyResolveResponse struct {
	FIPS5        string `json:"fips5"`
	StateFIPS    string `json:"stateFips"`
	CountyFIPS   string `json:"countyFips"`
	StateCode    string `json:"stateCode"`
	CountyRegion string `json:"countyRegion"`
}

func resolveResponse(region fips.Region) countyResolveResponse {
	return countyResolveResponse{
		FIPS5:        region.FIPS5,
		StateFIPS:    region.StateFIPS,
		CountyFIPS:   region.CountyCode,
		StateCode:    region.StateCode,
		CountyRegion: region.CountyRegion,
	}
}

func (s *Server) handleCountyResolve(w http.ResponseWriter, r *http.Request) error {
	lat, lng, ok := parseCoords(r)
	if !ok {
		return errBadRequest("Invalid coordinates")
	}
	region, found := s.deps.Index.Locate(lat, lng)
	if !found {
		return errNotFound("County not found")
	}
	cacheControl(w, 2592000)
	writeJSON(w, http.StatusOK, resolveResponse(region))
	return nil
}

type outlineResponse struct {
	Type               string             `json:"type"`
	Features           []*geojson.Feature `json:"features"`
	ActiveCountyFIPS   string             `json:"activeCountyFips"`
	ActiveCountyRegion string             `json:"activeCountyRegion"`
	StateFIPS          string             `json:"stateFips"`
	CountyName         *string            `json:"countyName"`
}

func (s *Server) handleCountyOutline(w http.ResponseWriter, r *http.Request) error {
	lat, lng, ok := parseCoords(r)
	if !ok || !spatial.ValidCoords(lat, lng) {
		return errBadRequest("Invalid coordinates")
	}
	region, found := s.deps.Index.Locate(lat, lng)
	if !found {
		return errNotFound("County not found for coordinates")
	}

	counties, err := s.deps.Boundaries.StateCounties(r.Context(), region.StateCode)
	if err != nil {
		return err
	}

	resp := outlineResponse{
		Type:               "FeatureCollection",
		Features:           make([]*geojson.Feature, 0, len(counties.Features)),
		ActiveCountyFIPS:   region.FIPS5,
		ActiveCountyRegion: region.CountyRegion,
		StateFIPS:          region.StateFIPS,
	}
	for _, f := range counties.Features {
		active := f.FIPS5 == region.FIPS5
		if active {
			name := f.Name
			resp.CountyName = &name
		}
		resp.Features = append(resp.Features, &geojson.Feature{
			Geometry: f.Geometry,
			Properties: map[string]any{
				"fips5":          f.FIPS5,
				"name":           f.Name,
				"isActiveCounty": active,
			},
		})
	}

	cacheControl(w, 43200)
	writeJSON(w, http.StatusOK, resp)
	return nil
}

type hiResResponse struct {
	Type         string             `json:"type"`
	Features     []*geojson.Feature `json:"features"`
	CountyRegion string             `json:"countyRegion"`
	FIPS5        string             `json:"fips5"`
	HiRes        bool               `json:"hiRes"`
}

func (s *Server) handleCountyHiRes(w http.ResponseWriter, r *http.Request) error {
	region, err := fips.ParseCountyRegion(r.URL.Query().Get("countyRegion"))
	if err != nil || region.FIPS5 == "" {
		return errBadRequest("Invalid countyRegion. Expected US-XX-NNN")
	}

	geometry, name, err := s.deps.Boundaries.CountyHiRes(r.Context(), region)
	switch {
	case eris.Is(err, boundary.ErrCountyNotFound):
		return errNotFound("County high-res geometry not found")
	case eris.Is(err, boundary.ErrHiResInFlight):
		return &apiError{status: http.StatusServiceUnavailable, message: "County geometry load in progress"}
	case err != nil:
		return err
	}

	feature := &geojson.Feature{
		Geometry: geometry,
		Properties: map[string]any{
			"fips5":          region.FIPS5,
			"countyRegion":   region.CountyRegion,
			"stateCode":      region.StateCode,
			"countyCode":     region.CountyCode,
			"stateFips":      region.StateFIPS,
			"name":           name,
			"isActiveCounty": true,
			"hiRes":          true,
		},
	}

	cacheControl(w, 86400)
	writeJSON(w, http.StatusOK, hiResResponse{
		Type:         "FeatureCollection",
		Features:     []*geojson.Feature{feature},
		CountyRegion: region.CountyRegion,
		FIPS5:        region.FIPS5,
		HiRes:        true,
	})
	return nil
}

type countyNotablesResponse struct {
	CountyRegion   string           `json:"countyRegion"`
	CountyFIPS     string           `json:"countyFips"`
	CountyName     *string          `json:"countyName"`
	StateFIPS      string           `json:"stateFips"`
	Back           int              `json:"back"`
	SourceRegion   string           `json:"sourceRegion"`
	SourceStrategy string           `json:"sourceStrategy"`
	Observations   []observationDTO `json:"observations"`
}

func (s *Server) handleCountyNotables(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()
	lat, lng, ok := parseCoords(r)
	if !ok || !spatial.ValidCoords(lat, lng) {
		return errBadRequest("Invalid coordinates")
	}
	back := ebird.ClampBack(q.Get("back"), defaultBackWide, maxBackRegional)

	region, parseErr := fips.ParseCountyRegion(q.Get("countyRegion"))
	if parseErr != nil {
		var found bool
		region, found = s.deps.Index.Locate(lat, lng)
		if !found {
			return errNotFound("County not found for coordinates")
		}
	}
	if region.CountyRegion == "" {
		return &apiError{status: http.StatusBadGateway, message: "Unable to derive county region code"}
	}

	result, err := s.deps.Resolver.CountyNotables(r.Context(), resolver.Query{
		Region: region,
		Lat:    lat,
		Lng:    lng,
		Back:   back,
	})
	if err != nil {
		return err
	}
	obs := aggregate.DedupeByLocation(normalize.Records(result.Observations, s.deps.Rarity))

	w.Header().Set("X-Data-Region", result.SourceRegion)
	w.Header().Set("X-Data-Back", strconv.Itoa(back))
	cacheControl(w, 900)
	writeJSON(w, http.StatusOK, countyNotablesResponse{
		CountyRegion:   result.CountyRegion,
		CountyFIPS:     result.FIPS5,
		StateFIPS:      result.StateFIPS,
		Back:           back,
		SourceRegion:   result.SourceRegion,
		SourceStrategy: result.Strategy,
		Observations:   toDTOs(obs, false),
	})
	return nil
}

type notableCountsResponse struct {
	Back   int            `json:"back"`
	States map[string]int `json:"states"`
}

func (s *Server) handleUSNotableCounts(w http.ResponseWriter, r *http.Request) error {
	back := ebird.ClampBack(r.URL.Query().Get("back"), defaultBackWide, maxBackRegional)

	raws, err := s.deps.Observations.RecentNotable(r.Context(), "US", back, "simple")
	if err != nil {
		return err
	}

	counts := make(map[string]int)
	for _, raw := range raws {
		code := strings.ToUpper(raw.Subnational1Code)
		if !strings.HasPrefix(code, "US-") {
			continue
		}
		counts[code[3:]]++
	}

	cacheControl(w, 1800)
	writeJSON(w, http.StatusOK, notableCountsResponse{Back: back, States: counts})
	return nil
}

func parseCoords(r *http.Request) (lat, lng float64, ok bool) {
	q := r.URL.Query()
	lat, errLat := strconv.ParseFloat(strings.TrimSpace(q.Get("lat")), 64)
	lng, errLng := strconv.ParseFloat(strings.TrimSpace(q.Get("lon")), 64)
	return lat, lng, errLat == nil && errLng == nil
}

// parseIntOr mirrors the lenient integer parsing clients rely on: junk,
// empty, and zero all fall back to the default, other values pass unchanged.
func parseIntOr(raw string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n == 0 {
		return def
	}
	return n
}

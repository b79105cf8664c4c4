package server

import (
	"github.com/featherline/rarity-mapper/internal/model"
)

const obsDateLayout = "2006-01-02 15:04"

// observationDTO is the wire shape of one observation, using the upstream
// field names browser clients already consume. Internals never touch these
// names; the DTO exists only at the response boundary.
type observationDTO struct {
	ComName          string   `json:"comName"`
	ObsDt            string   `json:"obsDt,omitempty"`
	FirstObsDt       string   `json:"firstObsDt,omitempty"`
	Lat              *float64 `json:"lat,omitempty"`
	Lng              *float64 `json:"lng,omitempty"`
	Subnational1Code string   `json:"subnational1Code,omitempty"`
	Subnational2Code string   `json:"subnational2Code,omitempty"`
	Subnational2Name string   `json:"subnational2Name,omitempty"`
	LocID            string   `json:"locId,omitempty"`
	LocName          string   `json:"locName,omitempty"`
	SubID            string   `json:"subId,omitempty"`
	ObsReviewed      int      `json:"obsReviewed"`
	ObsValid         int      `json:"obsValid"`
	ConfirmedAny     bool     `json:"confirmedAny"`
	AbaCode          int      `json:"abaCode,omitempty"`
	ReportCount      int      `json:"reportCount,omitempty"`
}

func toDTO(o model.Observation, includeReportCount bool) observationDTO {
	dto := observationDTO{
		ComName:          o.Species,
		Subnational2Code: o.CountyRegion,
		Subnational2Name: o.CountyName,
		LocID:            o.LocationID,
		LocName:          o.LocationName,
		SubID:            o.ReportID,
		ConfirmedAny:     o.Confirmed(),
	}
	if o.StateCode != "" {
		dto.Subnational1Code = "US-" + o.StateCode
	}
	if o.DateKnown {
		dto.ObsDt = o.ObservedAt.Format(obsDateLayout)
	}
	if o.FirstDateKnown {
		dto.FirstObsDt = o.FirstObservedAt.Format(obsDateLayout)
	}
	if o.HasPoint {
		lat, lng := o.Lat, o.Lng
		dto.Lat, dto.Lng = &lat, &lng
	}
	if o.Reviewed {
		dto.ObsReviewed = 1
	}
	if o.Valid {
		dto.ObsValid = 1
	}
	if o.Rarity.Known() {
		dto.AbaCode = int(o.Rarity)
	}
	if includeReportCount {
		dto.ReportCount = o.ReportCount
	}
	return dto
}

func toDTOs(obs []model.Observation, includeReportCount bool) []observationDTO {
	out := make([]observationDTO, 0, len(obs))
	for _, o := range obs {
		out = append(out, toDTO(o, includeReportCount))
	}
	return out
}

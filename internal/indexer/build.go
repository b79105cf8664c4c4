// Package indexer builds the county bounding-box index from the Census
// TIGER/Line county shapefile. The output feeds spatial.LoadIndex, so the
// server never touches shapefiles at runtime.
package indexer

import (
	"encoding/json"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/featherline/rarity-mapper/internal/fips"
	"github.com/featherline/rarity-mapper/internal/spatial"
)

// Build reads a TIGER county shapefile and produces one index entry per
// county. Records without a usable GEOID or outside the state FIPS table
// (territories) are skipped.
func Build(shpPath string) ([]spatial.Entry, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "indexer: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	fieldIdx := make(map[string]int, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToUpper(name)] = i
	}
	for _, required := range []string{"GEOID", "INTPTLAT", "INTPTLON"} {
		if _, ok := fieldIdx[required]; !ok {
			return nil, eris.Errorf("indexer: shapefile missing %s field", required)
		}
	}

	attr := func(name string) string {
		idx, ok := fieldIdx[name]
		if !ok {
			return ""
		}
		return strings.TrimSpace(strings.TrimRight(reader.Attribute(idx), "\x00"))
	}

	var entries []spatial.Entry
	var skipped int

	for reader.Next() {
		_, shape := reader.Shape()
		if shape == nil {
			skipped++
			continue
		}

		geoid := attr("GEOID")
		region, err := fips.FromFIPS5(geoid)
		if err != nil {
			skipped++
			continue
		}

		box := shape.BBox()
		entry := spatial.Entry{
			FIPS5:        geoid,
			MinLng:       box.MinX,
			MinLat:       box.MinY,
			MaxLng:       box.MaxX,
			MaxLat:       box.MaxY,
			CountyRegion: region.CountyRegion,
		}

		// TIGER's internal point is a better centroid than the bbox
		// center for oddly shaped counties.
		lat, latErr := strconv.ParseFloat(attr("INTPTLAT"), 64)
		lng, lngErr := strconv.ParseFloat(attr("INTPTLON"), 64)
		if latErr == nil && lngErr == nil {
			entry.CentLat, entry.CentLng = lat, lng
		} else {
			entry.CentLat = (box.MinY + box.MaxY) / 2
			entry.CentLng = (box.MinX + box.MaxX) / 2
		}

		entries = append(entries, entry)
	}

	if skipped > 0 {
		zap.L().Debug("indexer: skipped shapefile records", zap.Int("skipped", skipped))
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].FIPS5 < entries[j].FIPS5 })
	return entries, nil
}

// WriteIndex writes entries as the JSON file spatial.LoadIndex reads.
func WriteIndex(path string, entries []spatial.Entry) error {
	data, err := json.MarshalIndent(entries, "", " ")
	if err != nil {
		return eris.Wrap(err, "indexer: marshal index")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "indexer: write index %s", path)
	}
	return nil
}

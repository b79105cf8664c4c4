package aggregate

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/featherline/rarity-mapper/internal/model"
)

// MaxRows caps the sorted table output. This is a display cap only: the full
// aggregate set remains available to the map and to callers that need it.
const MaxRows = 50

// SortRows orders aggregate rows for presentation: descending rarity code
// (unknown below code 1), ascending state, ascending county (both
// case-insensitive), then descending most-recent date. The sort is stable, so
// full ties preserve input order.
func SortRows(rows []model.CountyAggregate) {
	coll := collate.New(language.English, collate.IgnoreCase)
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Rarity != b.Rarity {
			return a.Rarity > b.Rarity
		}
		if c := coll.CompareString(a.StateCode, b.StateCode); c != 0 {
			return c < 0
		}
		if c := coll.CompareString(a.CountyName, b.CountyName); c != 0 {
			return c < 0
		}
		at, bt := lastSortKey(a), lastSortKey(b)
		return at > bt
	})
}

func lastSortKey(a model.CountyAggregate) int64 {
	if !a.HasLast {
		return 0
	}
	return a.Last.UnixMilli()
}

// TopRows sorts rows and truncates to MaxRows.
func TopRows(rows []model.CountyAggregate) []model.CountyAggregate {
	SortRows(rows)
	if len(rows) > MaxRows {
		rows = rows[:MaxRows]
	}
	return rows
}

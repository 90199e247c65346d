package domain

import (
	"math"
	"time"
)

// HistoryCapacity is the maximum number of remembered location queries.
// Inserting beyond it evicts the oldest entry.
const HistoryCapacity = 50

// DedupEpsilonDegrees is the per-axis tolerance under which two coordinates
// count as the same place (about one meter at the equator).
const DedupEpsilonDegrees = 1e-5

// QueryHistoryEntry is one remembered location search.
type QueryHistoryEntry struct {
	ID         string    `json:"id"`
	Query      string    `json:"query"`
	Lat        float64   `json:"lat"`
	Lon        float64   `json:"lon"`
	RecordedAt time.Time `json:"recorded_at"`
}

// SameTarget reports whether the entry already covers the given query and
// coordinate, within the dedup epsilon on each axis.
func (e QueryHistoryEntry) SameTarget(query string, lat, lon float64) bool {
	return e.Query == query &&
		math.Abs(e.Lat-lat) < DedupEpsilonDegrees &&
		math.Abs(e.Lon-lon) < DedupEpsilonDegrees
}

package recommend

import (
	"sort"
	"time"

	"github.com/kilianp07/evreco/core/metrics"
	"github.com/kilianp07/evreco/core/model"
)

// Recommendation is one ranked station.
type Recommendation struct {
	Station           model.Station `json:"station"`
	Score             float64       `json:"score"`
	PredictedWaitTime int           `json:"predicted_wait_time"`
	Distance          float64       `json:"distance"`
}

// Request is a ranking request.
type Request struct {
	Location    model.Location     `json:"location"`
	Preferences *model.Preferences `json:"preferences,omitempty"`
	Limit       int                `json:"limit"`
}

// Result is a ranked list with provenance.
type Result struct {
	RequestID       string           `json:"request_id"`
	Source          metrics.Source   `json:"source"`
	FallbackReason  string           `json:"fallback_reason,omitempty"`
	GeneratedAt     time.Time        `json:"generated_at"`
	Candidates      int              `json:"candidates"`
	Skipped         int              `json:"skipped"`
	Recommendations []Recommendation `json:"recommendations"`
}

// Fallback reasons.
const (
	ReasonNoModel       = "no_model"
	ReasonStationList   = "station_listing_failed"
	ReasonAllFailed     = "all_stations_failed"
	ReasonScoringFailed = "scoring_failed"
)

// rank sorts by score descending, breaking ties by station ID, and
// truncates to limit.
func rank(recs []Recommendation, limit int) []Recommendation {
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Score != recs[j].Score {
			return recs[i].Score > recs[j].Score
		}
		return recs[i].Station.ID < recs[j].Station.ID
	})
	if limit >= 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return recs
}

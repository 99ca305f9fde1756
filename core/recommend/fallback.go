package recommend

import (
	"context"
	"fmt"
	"math"

	"github.com/kilianp07/evreco/core/features"
	"github.com/kilianp07/evreco/core/logger"
	"github.com/kilianp07/evreco/core/model"
)

// Formula selects the rule-based weighting.
type Formula string

const (
	// FormulaRating weights availability, rating and proximity.
	FormulaRating Formula = "rating"
	// FormulaCapacity weights availability, port count and proximity.
	FormulaCapacity Formula = "capacity"
)

// minDistance bounds the proximity term.
const minDistance = 0.1

// RuleScore computes the deterministic score of a station.
func RuleScore(f Formula, st model.Station, occupancy, distance float64) float64 {
	availability := 100 - occupancy
	proximity := 1 / math.Max(distance, minDistance)
	if f == FormulaCapacity {
		return 0.4*availability + 0.3*float64(st.TotalPorts()) + 0.3*proximity
	}
	return 0.4*availability + 0.4*(st.AverageRating*20) + 0.2*proximity
}

// RuleBased ranks stations without a trained model.
type RuleBased struct {
	stations StationSource
	builder  *features.Builder
	formula  Formula
	log      logger.Logger
}

// NewRuleBased returns a scorer using formula f (FormulaRating when empty).
func NewRuleBased(stations StationSource, b *features.Builder, f Formula, log logger.Logger) *RuleBased {
	if f == "" {
		f = FormulaRating
	}
	return &RuleBased{stations: stations, builder: b, formula: f, log: logger.OrNop(log)}
}

// Formula returns the weighting in use.
func (r *RuleBased) Formula() Formula { return r.formula }

// Rank scores every active station. Any failure discards the whole list.
func (r *RuleBased) Rank(ctx context.Context, user model.Location, limit int) ([]Recommendation, error) {
	stations, err := r.stations.ActiveStations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stations: %w", err)
	}
	recs := make([]Recommendation, 0, len(stations))
	for _, st := range stations {
		if err := st.Validate(); err != nil {
			return nil, err
		}
		occ := r.builder.OccupancyRate(ctx, st)
		dist := model.ProxyDistance(st.Location, user)
		score := RuleScore(r.formula, st, occ, dist)
		if math.IsNaN(score) || math.IsInf(score, 0) {
			return nil, fmt.Errorf("station %d: non-finite score", st.ID)
		}
		recs = append(recs, Recommendation{
			Station:           st,
			Score:             score,
			PredictedWaitTime: features.WaitTime(occ),
			Distance:          dist,
		})
	}
	return rank(recs, limit), nil
}

// Recommend is Rank with failures turned into an empty list.
func (r *RuleBased) Recommend(ctx context.Context, user model.Location, limit int) []Recommendation {
	recs, err := r.Rank(ctx, user, limit)
	if err != nil {
		r.log.Warnf("rule-based ranking failed: %v", err)
		return []Recommendation{}
	}
	return recs
}

package recommend

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/evreco/core/features"
	"github.com/kilianp07/evreco/core/logger"
	"github.com/kilianp07/evreco/core/metrics"
	"github.com/kilianp07/evreco/core/model"
	"github.com/kilianp07/evreco/core/scoring"
)

// Recommender ranks active stations with the held artifact.
type Recommender struct {
	stations StationSource
	store    ArtifactStore
	holder   *Holder
	builder  *features.Builder
	fallback *RuleBased
	log      logger.Logger
	now      func() time.Time
	onLoad   func(*scoring.Artifact)
}

// NewRecommender builds a Recommender. store may be nil.
func NewRecommender(stations StationSource, store ArtifactStore, h *Holder, b *features.Builder, fb *RuleBased, log logger.Logger, now func() time.Time) *Recommender {
	if now == nil {
		now = time.Now
	}
	return &Recommender{
		stations: stations,
		store:    store,
		holder:   h,
		builder:  b,
		fallback: fb,
		log:      logger.OrNop(log),
		now:      now,
	}
}

// Rank scores every active station and returns the top req.Limit. A
// negative limit returns every station. The error is non-nil only when the
// rule-based path was taken and failed too, in which case the result is
// empty.
func (r *Recommender) Rank(ctx context.Context, req Request) (Result, error) {
	res := Result{RequestID: uuid.NewString(), GeneratedAt: r.now(), Source: metrics.SourceModel}

	art, fromStore, err := r.holder.Load(r.store)
	if err != nil {
		r.log.Debugf("no model available: %v", err)
		return r.fallbackResult(ctx, res, req, ReasonNoModel)
	}
	if fromStore && r.onLoad != nil {
		r.onLoad(art)
	}

	stations, err := r.stations.ActiveStations(ctx)
	if err != nil {
		r.log.Warnf("list active stations: %v", err)
		return r.fallbackResult(ctx, res, req, ReasonStationList)
	}
	res.Candidates = len(stations)
	ts := r.now()
	recs := make([]Recommendation, 0, len(stations))
	for _, st := range stations {
		rec, err := r.score(ctx, art, st, req, ts)
		if err != nil {
			res.Skipped++
			r.log.Warnf("station %d skipped: %v", st.ID, err)
			continue
		}
		recs = append(recs, rec)
	}
	if len(stations) > 0 && len(recs) == 0 {
		return r.fallbackResult(ctx, res, req, ReasonAllFailed)
	}
	res.Recommendations = rank(recs, req.Limit)
	return res, nil
}

func (r *Recommender) score(ctx context.Context, art *scoring.Artifact, st model.Station, req Request, ts time.Time) (rec Recommendation, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	v, err := r.builder.BuildStrict(ctx, st, req.Location, ts, req.Preferences)
	if err != nil {
		return rec, err
	}
	s, err := art.Score(v.Slice())
	if err != nil {
		return rec, err
	}
	return Recommendation{
		Station:           st,
		Score:             math.Max(s, 0),
		PredictedWaitTime: features.WaitTime(v[features.IdxOccupancy]),
		Distance:          v[features.IdxDistance],
	}, nil
}

func (r *Recommender) fallbackResult(ctx context.Context, res Result, req Request, reason string) (Result, error) {
	res.Source = metrics.SourceRuleBased
	res.FallbackReason = reason
	res.Skipped = 0
	recs, err := r.fallback.Rank(ctx, req.Location, req.Limit)
	if err != nil {
		r.log.Warnf("rule-based ranking failed: %v", err)
		res.Recommendations = []Recommendation{}
		return res, errors.Join(errors.New(reason), err)
	}
	res.Recommendations = recs
	return res, nil
}

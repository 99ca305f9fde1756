package recommend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kilianp07/evreco/core/decisionlog"
	"github.com/kilianp07/evreco/core/events"
	"github.com/kilianp07/evreco/core/features"
	"github.com/kilianp07/evreco/core/logger"
	"github.com/kilianp07/evreco/core/metrics"
	"github.com/kilianp07/evreco/core/model"
	"github.com/kilianp07/evreco/core/monitoring"
	"github.com/kilianp07/evreco/core/scoring"
	"github.com/kilianp07/evreco/internal/eventbus"
)

// Deps groups the collaborators of an Engine. Only Stations and Bookings
// are required.
type Deps struct {
	Stations  StationSource
	Bookings  BookingSource
	Store     ArtifactStore
	Bus       eventbus.Publisher[events.ModelEvent]
	Metrics   metrics.MetricsSink
	Decisions decisionlog.Store
	Logger    logger.Logger
	Clock     func() time.Time
}

// Status is the model state shown on dashboards.
type Status struct {
	Trained              bool       `json:"is_trained"`
	TrainedAt            *time.Time `json:"trained_at,omitempty"`
	Samples              int        `json:"samples"`
	Trees                int        `json:"trees"`
	TotalBookings        int        `json:"total_bookings"`
	BookingsWithFeedback int        `json:"bookings_with_feedback"`
	FallbackFormula      Formula    `json:"fallback_formula"`
}

// Engine is the entry point used by the API, the CLI and the retrain job.
type Engine struct {
	cfg         Config
	holder      *Holder
	store       ArtifactStore
	bookings    BookingSource
	trainer     *Trainer
	recommender *Recommender
	fallback    *RuleBased
	sink        metrics.MetricsSink
	decisions   decisionlog.Store
	bus         eventbus.Publisher[events.ModelEvent]
	log         logger.Logger
	now         func() time.Time
}

// NewEngine validates cfg and wires the engine.
func NewEngine(cfg Config, d Deps) (*Engine, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	if d.Stations == nil || d.Bookings == nil {
		return nil, errors.New("engine: station and booking sources are required")
	}
	e := &Engine{
		cfg:       cfg,
		holder:    NewHolder(),
		store:     d.Store,
		bookings:  d.Bookings,
		sink:      d.Metrics,
		decisions: d.Decisions,
		bus:       d.Bus,
		log:       logger.OrNop(d.Logger),
		now:       d.Clock,
	}
	if e.now == nil {
		e.now = cfg.Clock()
	}
	if e.sink == nil {
		e.sink = metrics.NopSink{}
	}
	if e.decisions == nil {
		e.decisions = decisionlog.NopStore{}
	}
	b := features.NewBuilder(d.Bookings, features.WithClock(e.now), features.WithLogger(e.log))
	e.fallback = NewRuleBased(d.Stations, b, cfg.FallbackFormula, e.log)
	e.trainer = NewTrainer(cfg, TrainerDeps{
		Stations: d.Stations,
		Bookings: d.Bookings,
		Store:    d.Store,
		Holder:   e.holder,
		Builder:  b,
		Bus:      d.Bus,
		Logger:   e.log,
		Clock:    e.now,
	})
	e.recommender = NewRecommender(d.Stations, d.Store, e.holder, b, e.fallback, e.log, e.now)
	e.recommender.onLoad = e.artifactLoaded
	return e, nil
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// Train runs a training pass and reports whether a new model is live.
func (e *Engine) Train(ctx context.Context) bool {
	_, err := e.TrainWithReport(ctx)
	return err == nil
}

// TrainWithReport is Train with the run report and failure cause.
func (e *Engine) TrainWithReport(ctx context.Context) (rep Report, err error) {
	defer e.recoverTo("train", &err)
	rep, err = e.trainer.Run(ctx)
	ev := metrics.TrainingEvent{
		Success:  err == nil,
		Eligible: rep.Eligible,
		Samples:  rep.Assembled,
		Duration: rep.Duration,
		Time:     e.now(),
	}
	switch {
	case err == nil:
		e.recordModelState()
	case errors.Is(err, ErrInsufficientData):
		ev.Reason = "insufficient_data"
		e.log.Infof("training skipped: %v", err)
	case errors.Is(err, ErrTrainingInProgress):
		ev.Reason = "in_progress"
	default:
		ev.Reason = "error"
		e.log.Errorf("training failed: %v", err)
		monitoring.CaptureException(err, map[string]string{"component": "trainer"})
	}
	if rerr := recordTraining(e.sink, ev); rerr != nil {
		e.log.Debugf("record training metric: %v", rerr)
	}
	return rep, err
}

// Recommend returns the ranked stations for a user. It never fails; in the
// worst case the list is empty.
func (e *Engine) Recommend(ctx context.Context, loc model.Location, prefs *model.Preferences, limit int) []Recommendation {
	return e.RecommendDetailed(ctx, Request{Location: loc, Preferences: prefs, Limit: limit}).Recommendations
}

// RecommendDetailed is Recommend with provenance. The request is logged to
// the decision log and the metrics sink.
func (e *Engine) RecommendDetailed(ctx context.Context, req Request) (res Result) {
	start := time.Now()
	req.Limit = e.cfg.Limit(req.Limit)
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("recommend panic: %v", r)
			e.log.Errorf("%v", err)
			monitoring.CaptureException(err, map[string]string{"component": "recommender"})
			res = Result{Source: metrics.SourceRuleBased, FallbackReason: ReasonScoringFailed, GeneratedAt: e.now()}
			res.Recommendations = e.fallback.Recommend(ctx, req.Location, req.Limit)
		}
	}()

	res, err := e.recommender.Rank(ctx, req)
	if err != nil {
		e.log.Warnf("recommendation %s: %v", res.RequestID, err)
	}
	e.observe(ctx, req, res, time.Since(start))
	return res
}

// IsTrained reports whether a model is held in memory.
func (e *Engine) IsTrained() bool { return e.holder.Loaded() }

// Warm restores a persisted model, if any, so the first request does not
// pay for the load. It reports whether a model is live afterwards.
func (e *Engine) Warm() bool {
	art, fromStore, err := e.holder.Load(e.store)
	if err != nil {
		e.log.Infof("no persisted model: %v", err)
		return false
	}
	if fromStore {
		e.artifactLoaded(art)
	}
	return true
}

// Status summarises the live model and the booking table.
func (e *Engine) Status(ctx context.Context) Status {
	st := Status{FallbackFormula: e.fallback.Formula()}
	if a := e.holder.Get(); a != nil {
		t := a.TrainedAt
		st.Trained = true
		st.TrainedAt = &t
		st.Samples = a.Samples
		st.Trees = len(a.Model.Trees)
	}
	stats, err := e.bookings.BookingStats(ctx)
	if err != nil {
		e.log.Warnf("booking stats: %v", err)
		return st
	}
	st.TotalBookings = stats.Total
	st.BookingsWithFeedback = stats.WithFeedback
	return st
}

// Decisions returns the decision log.
func (e *Engine) Decisions() decisionlog.Store { return e.decisions }

func (e *Engine) observe(ctx context.Context, req Request, res Result, latency time.Duration) {
	if err := e.sink.RecordRecommendation(metrics.RecommendationEvent{
		RequestID:  res.RequestID,
		Source:     res.Source,
		Candidates: res.Candidates,
		Returned:   len(res.Recommendations),
		Skipped:    res.Skipped,
		Latency:    latency,
		Time:       res.GeneratedAt,
	}); err != nil {
		e.log.Debugf("record recommendation metric: %v", err)
	}
	if res.Source == metrics.SourceRuleBased {
		if fr, ok := e.sink.(metrics.FallbackRecorder); ok {
			_ = fr.RecordFallback(metrics.FallbackEvent{RequestID: res.RequestID, Reason: res.FallbackReason, Time: res.GeneratedAt})
		}
	}
	if err := e.decisions.Append(ctx, decisionRecord(req, res)); err != nil {
		e.log.Warnf("decision log append: %v", err)
	}
}

func (e *Engine) artifactLoaded(a *scoring.Artifact) {
	e.log.Infof("model restored (%d samples, trained %s)", a.Samples, a.TrainedAt.Format(time.RFC3339))
	if e.bus != nil {
		e.bus.Publish(events.ModelEvent{
			Kind:      events.ModelLoaded,
			Samples:   a.Samples,
			TrainedAt: a.TrainedAt,
			Persisted: true,
			Time:      e.now(),
		})
	}
	e.recordModelState()
}

func (e *Engine) recordModelState() {
	rec, ok := e.sink.(metrics.ModelStateRecorder)
	if !ok {
		return
	}
	ev := metrics.ModelStateEvent{Time: e.now()}
	if a := e.holder.Get(); a != nil {
		ev.Trained = true
		ev.Samples = a.Samples
		ev.TrainedAt = a.TrainedAt
	}
	_ = rec.RecordModelState(ev)
}

func (e *Engine) recoverTo(op string, err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%s panic: %v", op, r)
		e.log.Errorf("%v", *err)
		monitoring.CaptureException(*err, map[string]string{"component": op})
	}
}

func recordTraining(s metrics.MetricsSink, ev metrics.TrainingEvent) error {
	if rec, ok := s.(metrics.TrainingRecorder); ok {
		return rec.RecordTraining(ev)
	}
	return nil
}

func decisionRecord(req Request, res Result) decisionlog.Record {
	rec := decisionlog.Record{
		RequestID:      res.RequestID,
		Timestamp:      res.GeneratedAt,
		Source:         string(res.Source),
		FallbackReason: res.FallbackReason,
		Lat:            req.Location.Lat,
		Lng:            req.Location.Lng,
		Limit:          req.Limit,
		Candidates:     res.Candidates,
		Skipped:        res.Skipped,
		Items:          make([]decisionlog.Item, len(res.Recommendations)),
	}
	if req.Preferences != nil {
		rec.ChargerType = string(req.Preferences.ChargerType)
	}
	for i, r := range res.Recommendations {
		rec.Items[i] = decisionlog.Item{
			StationID:         r.Station.ID,
			Score:             r.Score,
			PredictedWaitTime: r.PredictedWaitTime,
			Distance:          r.Distance,
		}
	}
	return rec
}

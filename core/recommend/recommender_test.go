package recommend

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/kilianp07/evreco/core/decisionlog"
	"github.com/kilianp07/evreco/core/features"
	"github.com/kilianp07/evreco/core/metrics"
	"github.com/kilianp07/evreco/core/model"
	"github.com/kilianp07/evreco/core/scoring"
)

func newTestEngine(t *testing.T, st *fakeStations, bk *fakeBookings, store ArtifactStore, extra ...func(*Deps)) *Engine {
	t.Helper()
	d := Deps{Stations: st, Bookings: bk, Store: store, Clock: fixedClock}
	for _, f := range extra {
		f(&d)
	}
	e, err := NewEngine(testConfig(), d)
	require.NoError(t, err)
	return e
}

func TestEngine_NoModelMatchesRuleBased(t *testing.T) {
	st := newFakeStations(testStations()...)
	bk := &fakeBookings{accepted: map[int64]int{1: 3}}
	e := newTestEngine(t, st, bk, &memStore{})

	user := model.DefaultLocation
	got := e.Recommend(context.Background(), user, nil, 5)

	b := features.NewBuilder(bk, features.WithClock(fixedClock))
	want := NewRuleBased(st, b, FormulaRating, nil).Recommend(context.Background(), user, 5)
	assert.Equal(t, want, got)
	assert.False(t, e.IsTrained())
}

func TestEngine_TrainThenRecommend(t *testing.T) {
	st := newFakeStations(testStations()...)
	bk := &fakeBookings{bookings: trainingBookings(), accepted: map[int64]int{1: 5, 2: 1}}
	store := &memStore{}
	e := newTestEngine(t, st, bk, store)

	require.True(t, e.Train(context.Background()))
	require.True(t, e.IsTrained())

	res := e.RecommendDetailed(context.Background(), Request{Location: model.DefaultLocation, Limit: 2})
	assert.Equal(t, metrics.SourceModel, res.Source)
	assert.NotEmpty(t, res.RequestID)
	assert.Equal(t, 3, res.Candidates)
	require.Len(t, res.Recommendations, 2)
	for i, r := range res.Recommendations {
		assert.GreaterOrEqual(t, r.PredictedWaitTime, 1)
		assert.GreaterOrEqual(t, r.Score, 0.0)
		if i > 0 {
			assert.GreaterOrEqual(t, res.Recommendations[i-1].Score, r.Score)
		}
	}
	// station 1: 5 accepted over 6 ports
	for _, r := range res.Recommendations {
		if r.Station.ID == 1 {
			assert.Equal(t, 8, r.PredictedWaitTime)
		}
	}

	// A fresh engine on the same store restores the model lazily.
	e2 := newTestEngine(t, st, bk, store)
	assert.False(t, e2.IsTrained())
	res2 := e2.RecommendDetailed(context.Background(), Request{Location: model.DefaultLocation, Limit: 2})
	assert.Equal(t, metrics.SourceModel, res2.Source)
	assert.True(t, e2.IsTrained())
	for i := range res.Recommendations {
		assert.Equal(t, res.Recommendations[i].Score, res2.Recommendations[i].Score)
	}
}

func TestEngine_TrainInsufficient(t *testing.T) {
	e := newTestEngine(t, newFakeStations(testStations()...), &fakeBookings{bookings: trainingBookings()[:3]}, nil)
	assert.False(t, e.Train(context.Background()))
	_, err := e.TrainWithReport(context.Background())
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestRecommender_AllStationsFailFallsBack(t *testing.T) {
	st := newFakeStations(testStations()...)
	bk := &fakeBookings{}
	// Artifact with the wrong width: every station fails to score.
	X := mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6})
	art, err := scoring.Train(X, []float64{1, 2, 3}, scoring.DefaultForestParams(), features.LayoutVersion, wednesday10)
	require.NoError(t, err)

	e := newTestEngine(t, st, bk, nil)
	e.holder.Swap(art)
	res := e.RecommendDetailed(context.Background(), Request{Location: model.DefaultLocation})
	assert.Equal(t, metrics.SourceRuleBased, res.Source)
	assert.Equal(t, ReasonAllFailed, res.FallbackReason)
	assert.Len(t, res.Recommendations, 3)
}

func TestRecommender_ListingErrorFallsBack(t *testing.T) {
	st := newFakeStations(testStations()...)
	st.listErr = errors.New("db down")
	e := newTestEngine(t, st, &fakeBookings{bookings: trainingBookings()}, nil)
	st.listErr = nil
	require.True(t, e.Train(context.Background()))
	st.listErr = errors.New("db down")

	res := e.RecommendDetailed(context.Background(), Request{Location: model.DefaultLocation})
	assert.Equal(t, metrics.SourceRuleBased, res.Source)
	assert.Equal(t, ReasonStationList, res.FallbackReason)
	assert.Empty(t, res.Recommendations)
	assert.NotNil(t, res.Recommendations)
}

func TestRecommender_SkipsBadStation(t *testing.T) {
	sts := testStations()
	bad := sts[2]
	bad.ID = 4
	bad.Location.Lat = math.NaN()
	st := newFakeStations(append(sts, bad)...)
	e := newTestEngine(t, st, &fakeBookings{bookings: trainingBookings()}, nil)
	require.True(t, e.Train(context.Background()))

	res := e.RecommendDetailed(context.Background(), Request{Location: model.DefaultLocation, Limit: 10})
	assert.Equal(t, metrics.SourceModel, res.Source)
	assert.Equal(t, 1, res.Skipped)
	assert.Len(t, res.Recommendations, 3)
}

func TestRuleBased_DominatingStationFirst(t *testing.T) {
	def := model.DefaultLocation
	strong := model.StationInput{ID: 20, FastChargers: intp(4), AverageRating: floatp(4.8),
		Latitude: floatp(19.08), Longitude: floatp(72.88)}.Resolve(def)
	weak := model.StationInput{ID: 10, FastChargers: intp(4), AverageRating: floatp(2.5),
		Latitude: floatp(19.30), Longitude: floatp(73.10)}.Resolve(def)
	st := newFakeStations(weak, strong)
	bk := &fakeBookings{accepted: map[int64]int{10: 3, 20: 1}}
	b := features.NewBuilder(bk, features.WithClock(fixedClock))

	for _, f := range []Formula{FormulaRating, FormulaCapacity} {
		recs := NewRuleBased(st, b, f, nil).Recommend(context.Background(), def, 5)
		require.Len(t, recs, 2)
		assert.Equal(t, int64(20), recs[0].Station.ID, "formula %s", f)
	}
}

func TestRuleBased_InvalidStationEmptiesList(t *testing.T) {
	sts := testStations()
	sts[1].AverageRating = math.Inf(1)
	st := newFakeStations(sts...)
	b := features.NewBuilder(&fakeBookings{}, features.WithClock(fixedClock))
	recs := NewRuleBased(st, b, FormulaRating, nil).Recommend(context.Background(), model.DefaultLocation, 5)
	assert.Empty(t, recs)
}

func TestRuleScore(t *testing.T) {
	st := model.Station{RapidChargers: 2, FastChargers: 3, AverageRating: 4}
	// 0.4*80 + 0.4*80 + 0.2*(1/0.1)
	assert.InDelta(t, 66.0, RuleScore(FormulaRating, st, 20, 0.01), 1e-9)
	// 0.4*80 + 0.3*5 + 0.3*(1/0.5)
	assert.InDelta(t, 34.1, RuleScore(FormulaCapacity, st, 20, 0.5), 1e-9)
}

func TestRank_TiesAndLimit(t *testing.T) {
	recs := []Recommendation{
		{Station: model.Station{ID: 3}, Score: 1},
		{Station: model.Station{ID: 2}, Score: 5},
		{Station: model.Station{ID: 1}, Score: 1},
	}
	out := rank(recs, 2)
	require.Len(t, out, 2)
	assert.Equal(t, int64(2), out[0].Station.ID)
	assert.Equal(t, int64(1), out[1].Station.ID)
}

type captureSink struct {
	metrics.NopSink
	mu        sync.Mutex
	recs      []metrics.RecommendationEvent
	fallbacks []metrics.FallbackEvent
	training  []metrics.TrainingEvent
}

func (c *captureSink) RecordRecommendation(ev metrics.RecommendationEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recs = append(c.recs, ev)
	return nil
}

func (c *captureSink) RecordFallback(ev metrics.FallbackEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fallbacks = append(c.fallbacks, ev)
	return nil
}

func (c *captureSink) RecordTraining(ev metrics.TrainingEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.training = append(c.training, ev)
	return nil
}

type captureLog struct {
	decisionlog.NopStore
	recs []decisionlog.Record
}

func (c *captureLog) Append(_ context.Context, r decisionlog.Record) error {
	c.recs = append(c.recs, r)
	return nil
}

func TestEngine_ObservesRequests(t *testing.T) {
	sink := &captureSink{}
	dl := &captureLog{}
	e := newTestEngine(t, newFakeStations(testStations()...), &fakeBookings{bookings: trainingBookings()[:2]}, nil,
		func(d *Deps) { d.Metrics = sink; d.Decisions = dl })

	prefs := &model.Preferences{ChargerType: model.ChargerRapid}
	recs := e.Recommend(context.Background(), model.DefaultLocation, prefs, 0)
	assert.Len(t, recs, 3)
	assert.False(t, e.Train(context.Background()))

	require.Len(t, sink.recs, 1)
	assert.Equal(t, metrics.SourceRuleBased, sink.recs[0].Source)
	require.Len(t, sink.fallbacks, 1)
	assert.Equal(t, ReasonNoModel, sink.fallbacks[0].Reason)
	require.Len(t, sink.training, 1)
	assert.Equal(t, "insufficient_data", sink.training[0].Reason)

	require.Len(t, dl.recs, 1)
	assert.Equal(t, "rapid", dl.recs[0].ChargerType)
	assert.Equal(t, 5, dl.recs[0].Limit)
	assert.Len(t, dl.recs[0].Items, 3)
}

func TestEngine_Status(t *testing.T) {
	bk := &fakeBookings{bookings: trainingBookings()}
	e := newTestEngine(t, newFakeStations(testStations()...), bk, nil)
	st := e.Status(context.Background())
	assert.False(t, st.Trained)
	assert.Nil(t, st.TrainedAt)
	assert.Equal(t, 8, st.TotalBookings)
	assert.Equal(t, 7, st.BookingsWithFeedback)

	require.True(t, e.Train(context.Background()))
	st = e.Status(context.Background())
	assert.True(t, st.Trained)
	require.NotNil(t, st.TrainedAt)
	assert.Equal(t, wednesday10, *st.TrainedAt)
	assert.Equal(t, 6, st.Samples)
	assert.Equal(t, 20, st.Trees)
}

func TestEngine_Warm(t *testing.T) {
	st := newFakeStations(testStations()...)
	bk := &fakeBookings{bookings: trainingBookings()}
	store := &memStore{}
	assert.False(t, newTestEngine(t, st, bk, store).Warm())

	require.True(t, newTestEngine(t, st, bk, store).Train(context.Background()))
	e := newTestEngine(t, st, bk, store)
	assert.True(t, e.Warm())
	assert.True(t, e.IsTrained())
}

func TestHolder_ConcurrentSwap(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	a1, err := scoring.Train(X, []float64{1, 1, 2, 2}, scoring.DefaultForestParams(), 1, wednesday10)
	require.NoError(t, err)
	a2, err := scoring.Train(X, []float64{5, 5, 6, 6}, scoring.DefaultForestParams(), 1, wednesday10)
	require.NoError(t, err)

	h := NewHolder()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				h.Swap(a1)
				h.Swap(a2)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if a := h.Get(); a != nil && a.Model.Features != len(a.Scaler.Mean) {
					t.Errorf("torn artifact")
				}
			}
		}()
	}
	wg.Wait()
	assert.True(t, h.Loaded())
}

func TestHolder_LoadFromStore(t *testing.T) {
	h := NewHolder()
	_, _, err := h.Load(nil)
	assert.ErrorIs(t, err, ErrNoArtifact)
	_, _, err = h.Load(&memStore{})
	assert.ErrorIs(t, err, ErrNoArtifact)
	assert.ErrorIs(t, err, errEmptyStore)
}

func TestHolder_RemembersEmptyStore(t *testing.T) {
	now := wednesday10
	h := NewHolder()
	h.now = func() time.Time { return now }
	store := &memStore{}

	_, read, err := h.Load(store)
	assert.ErrorIs(t, err, errEmptyStore)
	assert.True(t, read)

	X := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	art, err := scoring.Train(X, []float64{1, 1, 2, 2}, scoring.DefaultForestParams(), 1, wednesday10)
	require.NoError(t, err)
	require.NoError(t, store.Save(art))

	// Within the retry window the store is not consulted.
	_, read, err = h.Load(store)
	assert.ErrorIs(t, err, ErrNoArtifact)
	assert.False(t, read)

	now = now.Add(MissRetry)
	got, read, err := h.Load(store)
	require.NoError(t, err)
	assert.True(t, read)
	assert.Same(t, art, got)
}

func TestConfig(t *testing.T) {
	cfg := Config{}
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 100, cfg.Trees)
	assert.Equal(t, 5, cfg.Limit(0))
	assert.Equal(t, 6, cfg.Limit(6))
	assert.Equal(t, 50, cfg.Limit(500))
	assert.Equal(t, model.DefaultLocation, cfg.DefaultLocation)

	bad := cfg
	bad.FallbackFormula = "distance"
	assert.Error(t, bad.Validate())
	bad = cfg
	bad.MinSamples = 10
	assert.Error(t, bad.Validate())
}

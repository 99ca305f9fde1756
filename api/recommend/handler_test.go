package recommend

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/evreco/core/decisionlog"
	"github.com/kilianp07/evreco/core/metrics"
	"github.com/kilianp07/evreco/core/model"
	"github.com/kilianp07/evreco/core/recommend"
)

type fakeEngine struct {
	cfg      recommend.Config
	lastReq  recommend.Request
	result   recommend.Result
	report   recommend.Report
	trainErr error
	status   recommend.Status
}

func (f *fakeEngine) RecommendDetailed(_ context.Context, req recommend.Request) recommend.Result {
	f.lastReq = req
	return f.result
}

func (f *fakeEngine) TrainWithReport(context.Context) (recommend.Report, error) {
	return f.report, f.trainErr
}

func (f *fakeEngine) Status(context.Context) recommend.Status { return f.status }
func (f *fakeEngine) Config() recommend.Config                { return f.cfg }

func newFakeEngine() *fakeEngine {
	cfg := recommend.Config{}
	cfg.SetDefaults()
	return &fakeEngine{cfg: cfg}
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRecommend_Defaults(t *testing.T) {
	eng := newFakeEngine()
	eng.result = recommend.Result{RequestID: "r1", Source: metrics.SourceRuleBased, FallbackReason: recommend.ReasonNoModel}
	h := NewRouter(eng, nil, Options{})

	rr := do(t, h, http.MethodPost, "/api/recommendations", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, model.DefaultLocation, eng.lastReq.Location)
	require.NotNil(t, eng.lastReq.Preferences)
	assert.Equal(t, model.ChargerFast, eng.lastReq.Preferences.ChargerType)
	assert.Equal(t, 0, eng.lastReq.Limit)

	var out recommend.Result
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	assert.Equal(t, "rule_based", string(out.Source))
	assert.NotNil(t, out.Recommendations)
	assert.Contains(t, rr.Body.String(), `"recommendations":[]`)
}

func TestRecommend_PassesRequest(t *testing.T) {
	eng := newFakeEngine()
	eng.result = recommend.Result{
		Source: metrics.SourceModel,
		Recommendations: []recommend.Recommendation{
			{Station: model.Station{ID: 2, Name: "Bandra"}, Score: 4.2, PredictedWaitTime: 5, Distance: 0.1},
		},
	}
	h := NewRouter(eng, nil, Options{})

	rr := do(t, h, http.MethodPost, "/api/recommendations", `{"lat":19.1,"lng":72.9,"charger_type":"rapid","limit":6}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, model.Location{Lat: 19.1, Lng: 72.9}, eng.lastReq.Location)
	assert.Equal(t, model.ChargerRapid, eng.lastReq.Preferences.ChargerType)
	assert.Equal(t, 6, eng.lastReq.Limit)
	assert.Contains(t, rr.Body.String(), `"predicted_wait_time":5`)
}

func TestRecommend_Validation(t *testing.T) {
	h := NewRouter(newFakeEngine(), nil, Options{})
	cases := map[string]string{
		"bad json":     `{"lat":`,
		"bad charger":  `{"charger_type":"turbo"}`,
		"limit high":   `{"limit":51}`,
		"negative":     `{"limit":-1}`,
		"bad latitude": `{"lat":95}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rr := do(t, h, http.MethodPost, "/api/recommendations", body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status %d body %s", rr.Code, rr.Body.String())
			}
		})
	}
}

func TestTrain_Outcomes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
		msg  string
	}{
		{"success", nil, http.StatusOK, "Model trained successfully"},
		{"insufficient", recommend.ErrInsufficientData, http.StatusUnprocessableEntity, InsufficientDataMessage},
		{"in progress", recommend.ErrTrainingInProgress, http.StatusConflict, "Training already in progress"},
		{"failure", errors.New("db down"), http.StatusInternalServerError, "Training failed"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			eng := newFakeEngine()
			eng.trainErr = tc.err
			eng.report = recommend.Report{RunID: "run", Eligible: 6, Assembled: 6, Labels: map[string]int{"positive": 3}}
			rr := do(t, NewRouter(eng, nil, Options{}), http.MethodPost, "/api/model/train", "")
			require.Equal(t, tc.code, rr.Code)
			var out TrainResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
			assert.Equal(t, tc.msg, out.Message)
			assert.Equal(t, tc.err == nil, out.Success)
		})
	}
}

func TestTrain_RateLimited(t *testing.T) {
	eng := newFakeEngine()
	h := NewRouter(eng, nil, Options{TrainRatePerMinute: 1})
	first := do(t, h, http.MethodPost, "/api/model/train", "")
	require.Equal(t, http.StatusOK, first.Code)
	second := do(t, h, http.MethodPost, "/api/model/train", "")
	require.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestStatus(t *testing.T) {
	eng := newFakeEngine()
	at := time.Date(2024, 1, 10, 10, 0, 0, 0, time.UTC)
	eng.status = recommend.Status{Trained: true, TrainedAt: &at, Samples: 6, Trees: 100, TotalBookings: 8, BookingsWithFeedback: 6}
	rr := do(t, NewRouter(eng, nil, Options{}), http.MethodGet, "/api/model/status", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"is_trained":true`)
	assert.Contains(t, rr.Body.String(), `"bookings_with_feedback":6`)
}

func TestHealthz(t *testing.T) {
	rr := do(t, NewRouter(newFakeEngine(), nil, Options{}), http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rr.Code)
}

type memDecisions struct {
	decisionlog.NopStore
	records []decisionlog.Record
	last    decisionlog.Query
}

func (m *memDecisions) Query(_ context.Context, q decisionlog.Query) ([]decisionlog.Record, error) {
	m.last = q
	var out []decisionlog.Record
	for _, r := range m.records {
		if q.Matches(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

func TestDecisions_Query(t *testing.T) {
	now := time.Date(2024, 1, 10, 10, 0, 0, 0, time.UTC)
	store := &memDecisions{records: []decisionlog.Record{
		{RequestID: "a", Timestamp: now, Source: "model", Items: []decisionlog.Item{{StationID: 1}}},
		{RequestID: "b", Timestamp: now.Add(time.Hour), Source: "rule_based", Items: []decisionlog.Item{{StationID: 2}}},
	}}
	h := NewRouter(newFakeEngine(), store, Options{})

	rr := do(t, h, http.MethodGet, "/api/decisions?station_id=2&start="+now.Format(time.RFC3339), "")
	require.Equal(t, http.StatusOK, rr.Code)
	var out []decisionlog.Record
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "b", out[0].RequestID)
	assert.Equal(t, int64(2), store.last.StationID)

	bad := do(t, h, http.MethodGet, "/api/decisions?station_id=x", "")
	assert.Equal(t, http.StatusBadRequest, bad.Code)

	empty := do(t, h, http.MethodGet, "/api/decisions?source=none", "")
	assert.Equal(t, "[]\n", empty.Body.String())
}

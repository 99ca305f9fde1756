package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/evreco/core/metrics"
)

type lineRecorder struct {
	mu     sync.Mutex
	bodies []string
}

func (l *lineRecorder) server(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		l.mu.Lock()
		l.bodies = append(l.bodies, strings.TrimSpace(string(b)))
		l.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func (l *lineRecorder) single(t *testing.T, p *write.Point) {
	t.Helper()
	l.mu.Lock()
	defer l.mu.Unlock()
	exp := strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
	if len(l.bodies) != 1 || l.bodies[0] != exp {
		t.Errorf("bodies: %#v, want %q", l.bodies, exp)
	}
}

func TestInfluxSink_RecordRecommendation(t *testing.T) {
	var rec lineRecorder
	srv := rec.server(t)
	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	defer sink.Close()
	now := time.Now()

	ev := coremetrics.RecommendationEvent{
		RequestID:  "req-1",
		Source:     coremetrics.SourceModel,
		Candidates: 4,
		Returned:   3,
		Skipped:    1,
		Latency:    1500 * time.Microsecond,
		Time:       now,
	}
	if err := sink.RecordRecommendation(ev); err != nil {
		t.Fatalf("record error: %v", err)
	}
	p := write.NewPointWithMeasurement("recommendation").
		AddTag("source", "model").
		AddTag("component", "recommender").
		AddField("request_id", "req-1").
		AddField("candidates", 4).
		AddField("returned", 3).
		AddField("skipped", 1).
		AddField("latency_ms", 1.5).
		SetTime(now)
	rec.single(t, p)
}

func TestInfluxSink_RecordFallback(t *testing.T) {
	var rec lineRecorder
	srv := rec.server(t)
	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	defer sink.Close()
	now := time.Now()

	if err := sink.RecordFallback(coremetrics.FallbackEvent{RequestID: "r", Reason: "no_model", Time: now}); err != nil {
		t.Fatalf("record: %v", err)
	}
	p := write.NewPointWithMeasurement("fallback_applied").
		AddTag("reason", "no_model").
		AddTag("component", "recommender").
		AddField("request_id", "r").
		SetTime(now)
	rec.single(t, p)
}

func TestInfluxSink_RecordTraining(t *testing.T) {
	var rec lineRecorder
	srv := rec.server(t)
	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	defer sink.Close()
	now := time.Now()

	ev := coremetrics.TrainingEvent{Success: false, Reason: "insufficient_data", Eligible: 2, Duration: 2 * time.Millisecond, Time: now}
	if err := sink.RecordTraining(ev); err != nil {
		t.Fatalf("record: %v", err)
	}
	p := write.NewPointWithMeasurement("model_training").
		AddTag("success", "false").
		AddTag("component", "trainer").
		AddTag("reason", "insufficient_data").
		AddField("eligible", 2).
		AddField("samples", 0).
		AddField("duration_ms", 2.0).
		SetTime(now)
	rec.single(t, p)
}

func TestInfluxSink_RecordModelState(t *testing.T) {
	var rec lineRecorder
	srv := rec.server(t)
	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	defer sink.Close()
	now := time.Now()
	trained := now.Add(-time.Hour)

	if err := sink.RecordModelState(coremetrics.ModelStateEvent{Trained: true, Samples: 12, TrainedAt: trained, Time: now}); err != nil {
		t.Fatalf("record: %v", err)
	}
	p := write.NewPointWithMeasurement("model_state").
		AddTag("component", "engine").
		AddField("trained", true).
		AddField("samples", 12).
		AddField("trained_at", trained.Unix()).
		SetTime(now)
	rec.single(t, p)
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(srv.URL+"/api/v2/write", "tok", "org", "bucket")
	if _, ok := sink.(*InfluxSink); ok {
		t.Fatalf("expected NopSink on failing health check")
	}
	if !called {
		t.Fatalf("health endpoint not called")
	}
}

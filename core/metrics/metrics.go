package metrics

import "time"

// Source names the ranking path that produced a recommendation list.
type Source string

const (
	SourceModel     Source = "model"
	SourceRuleBased Source = "rule_based"
)

// RecommendationEvent describes one answered recommendation request.
type RecommendationEvent struct {
	RequestID  string
	Source     Source
	Candidates int
	Returned   int
	Skipped    int
	Latency    time.Duration
	Time       time.Time
}

// MetricsSink records recommendation activity for observability purposes.
type MetricsSink interface {
	RecordRecommendation(ev RecommendationEvent) error
}

// TrainingEvent captures the outcome of a training run.
type TrainingEvent struct {
	Success  bool
	Reason   string
	Eligible int
	Samples  int
	Duration time.Duration
	Time     time.Time
}

// TrainingRecorder records training runs.
type TrainingRecorder interface {
	RecordTraining(ev TrainingEvent) error
}

// FallbackEvent records a switch to the rule-based ranking.
type FallbackEvent struct {
	RequestID string
	Reason    string
	Time      time.Time
}

// FallbackRecorder records fallback applications.
type FallbackRecorder interface {
	RecordFallback(ev FallbackEvent) error
}

// ModelStateEvent is a snapshot of the live artifact.
type ModelStateEvent struct {
	Trained   bool
	Samples   int
	TrainedAt time.Time
	Time      time.Time
}

// ModelStateRecorder records model state changes.
type ModelStateRecorder interface {
	RecordModelState(ev ModelStateEvent) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordRecommendation(RecommendationEvent) error { return nil }
func (NopSink) RecordTraining(TrainingEvent) error             { return nil }
func (NopSink) RecordFallback(FallbackEvent) error             { return nil }
func (NopSink) RecordModelState(ModelStateEvent) error         { return nil }

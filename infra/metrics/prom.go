package metrics

import (
	"strconv"

	coremetrics "github.com/kilianp07/evreco/core/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// PromSink records recommendation events in Prometheus metrics.
type PromSink struct {
	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	returned  prometheus.Histogram
	skipped   prometheus.Counter
	fallbacks *prometheus.CounterVec
	trainings *prometheus.CounterVec
	trainTime prometheus.Histogram
	trained   prometheus.Gauge
	samples   prometheus.Gauge
	trainedAt prometheus.Gauge
}

// NewPromSink registers metrics on the default Prometheus registerer.
// The Prometheus server should be started separately with StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Metrics
// already registered by another sink are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{}
	var err error
	if s.requests, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recommendation_requests_total",
		Help: "Recommendation requests by ranking source",
	}, []string{"source"})); err != nil {
		return nil, err
	}
	if s.latency, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "recommendation_latency_seconds",
		Help:    "Time to rank stations for one request",
		Buckets: prometheus.DefBuckets,
	}, []string{"source"})); err != nil {
		return nil, err
	}
	if s.returned, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "recommendation_results",
		Help:    "Number of stations returned per request",
		Buckets: []float64{0, 1, 2, 3, 5, 6, 10, 20, 50},
	})); err != nil {
		return nil, err
	}
	if s.skipped, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recommendation_skipped_stations_total",
		Help: "Stations skipped because they could not be scored",
	})); err != nil {
		return nil, err
	}
	if s.fallbacks, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recommendation_fallbacks_total",
		Help: "Requests served by the rule-based ranking",
	}, []string{"reason"})); err != nil {
		return nil, err
	}
	if s.trainings, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "model_training_runs_total",
		Help: "Training runs by outcome",
	}, []string{"success", "reason"})); err != nil {
		return nil, err
	}
	if s.trainTime, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "model_training_duration_seconds",
		Help:    "Duration of training runs",
		Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
	})); err != nil {
		return nil, err
	}
	if s.trained, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "model_trained",
		Help: "1 when a trained model is live",
	})); err != nil {
		return nil, err
	}
	if s.samples, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "model_training_samples",
		Help: "Rows the live model was trained on",
	})); err != nil {
		return nil, err
	}
	if s.trainedAt, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "model_trained_timestamp_seconds",
		Help: "Unix time the live model was trained",
	})); err != nil {
		return nil, err
	}
	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		var zero C
		return zero, err
	}
	return c, nil
}

// RecordRecommendation counts the request and observes its latency.
func (s *PromSink) RecordRecommendation(ev coremetrics.RecommendationEvent) error {
	src := string(ev.Source)
	s.requests.WithLabelValues(src).Inc()
	s.latency.WithLabelValues(src).Observe(ev.Latency.Seconds())
	s.returned.Observe(float64(ev.Returned))
	if ev.Skipped > 0 {
		s.skipped.Add(float64(ev.Skipped))
	}
	return nil
}

// RecordFallback counts a rule-based response.
func (s *PromSink) RecordFallback(ev coremetrics.FallbackEvent) error {
	s.fallbacks.WithLabelValues(ev.Reason).Inc()
	return nil
}

// RecordTraining counts a training run.
func (s *PromSink) RecordTraining(ev coremetrics.TrainingEvent) error {
	s.trainings.WithLabelValues(strconv.FormatBool(ev.Success), ev.Reason).Inc()
	s.trainTime.Observe(ev.Duration.Seconds())
	return nil
}

// RecordModelState updates the model gauges.
func (s *PromSink) RecordModelState(ev coremetrics.ModelStateEvent) error {
	if !ev.Trained {
		s.trained.Set(0)
		return nil
	}
	s.trained.Set(1)
	s.samples.Set(float64(ev.Samples))
	s.trainedAt.Set(float64(ev.TrainedAt.Unix()))
	return nil
}

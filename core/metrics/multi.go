package metrics

// MultiSink fans events out to several sinks. Optional recorders are only
// called on sinks that implement them.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordRecommendation forwards the event to all sinks, returning the first error encountered.
func (m *MultiSink) RecordRecommendation(ev RecommendationEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordRecommendation(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordTraining forwards training events.
func (m *MultiSink) RecordTraining(ev TrainingEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(TrainingRecorder); ok {
			if err := rec.RecordTraining(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordFallback forwards fallback events.
func (m *MultiSink) RecordFallback(ev FallbackEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(FallbackRecorder); ok {
			if err := rec.RecordFallback(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordModelState forwards model snapshots.
func (m *MultiSink) RecordModelState(ev ModelStateEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(ModelStateRecorder); ok {
			if err := rec.RecordModelState(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

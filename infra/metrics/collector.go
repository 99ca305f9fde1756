package metrics

import (
	"context"

	"github.com/kilianp07/evreco/core/events"
	coremetrics "github.com/kilianp07/evreco/core/metrics"
	"github.com/kilianp07/evreco/internal/eventbus"
)

// StartEventCollector subscribes to model events and records a model state
// snapshot for each one. It stops when the context is canceled or the bus
// is closed.
func StartEventCollector(ctx context.Context, bus *eventbus.TypedBus[events.ModelEvent], sink coremetrics.MetricsSink) {
	if bus == nil || sink == nil {
		return
	}
	rec, ok := sink.(coremetrics.ModelStateRecorder)
	if !ok {
		return
	}
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if ev.Kind == events.TrainingFailed {
					continue
				}
				_ = rec.RecordModelState(coremetrics.ModelStateEvent{
					Trained:   true,
					Samples:   ev.Samples,
					TrainedAt: ev.TrainedAt,
					Time:      ev.Time,
				})
			}
		}
	}()
}

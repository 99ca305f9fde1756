package mqtt

import (
	"context"
	"time"

	"github.com/kilianp07/evreco/core/events"
	"github.com/kilianp07/evreco/core/logger"
	coremqtt "github.com/kilianp07/evreco/core/mqtt"
	"github.com/kilianp07/evreco/internal/eventbus"
)

// StatusForwarder republishes model events from the bus as status messages.
type StatusForwarder struct {
	Bus       *eventbus.TypedBus[events.ModelEvent]
	Publisher coremqtt.Publisher
	// Initial reports whether a model is live when the forwarder starts.
	Initial func() (trained bool, trainedAt time.Time, samples int)
	Log     logger.Logger
}

// StatusFromEvent converts a model event into a status message.
// A failed training run leaves the previous model in place, so trained
// carries the state at the time of the event.
func StatusFromEvent(ev events.ModelEvent, trained bool) coremqtt.StatusMessage {
	msg := coremqtt.StatusMessage{
		IsTrained: trained,
		Event:     string(ev.Kind),
		Samples:   ev.Samples,
		Persisted: ev.Persisted,
		Reason:    ev.Reason,
		Timestamp: ev.Time.Unix(),
	}
	if !ev.TrainedAt.IsZero() {
		at := ev.TrainedAt
		msg.TrainedAt = &at
	}
	return msg
}

// Serve publishes the initial state then forwards events until ctx is done.
func (f *StatusForwarder) Serve(ctx context.Context) error {
	log := logger.OrNop(f.Log)
	sub := f.Bus.Subscribe()
	defer f.Bus.Unsubscribe(sub)

	trained := false
	if f.Initial != nil {
		var at time.Time
		var samples int
		trained, at, samples = f.Initial()
		msg := coremqtt.StatusMessage{IsTrained: trained, Event: "startup", Samples: samples, Timestamp: time.Now().Unix()}
		if trained {
			msg.TrainedAt = &at
		}
		if err := f.Publisher.PublishStatus(msg); err != nil {
			log.Warnf("publish startup status: %v", err)
		}
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub:
			if !ok {
				return nil
			}
			if ev.Kind != events.TrainingFailed {
				trained = true
			}
			if err := f.Publisher.PublishStatus(StatusFromEvent(ev, trained)); err != nil {
				log.Warnf("publish %s status: %v", ev.Kind, err)
			}
		}
	}
}

// String names the service for the supervisor.
func (f *StatusForwarder) String() string { return "mqtt-status" }

package recommend

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/kilianp07/evreco/core/events"
	"github.com/kilianp07/evreco/core/features"
	"github.com/kilianp07/evreco/core/logger"
	"github.com/kilianp07/evreco/core/model"
	"github.com/kilianp07/evreco/core/monitoring"
	"github.com/kilianp07/evreco/core/scoring"
	"github.com/kilianp07/evreco/internal/eventbus"
)

var (
	// ErrInsufficientData is returned when too few bookings can be used.
	ErrInsufficientData = errors.New("insufficient training data")
	// ErrTrainingInProgress is returned when another run holds the trainer.
	ErrTrainingInProgress = errors.New("training already in progress")
)

// Report describes a training run.
type Report struct {
	RunID     string         `json:"run_id"`
	Eligible  int            `json:"eligible"`
	Assembled int            `json:"assembled"`
	Skipped   int            `json:"skipped"`
	Labels    map[string]int `json:"labels"`
	Trees     int            `json:"trees"`
	Persisted bool           `json:"persisted"`
	TrainedAt time.Time      `json:"trained_at,omitempty"`
	Duration  time.Duration  `json:"duration"`
}

// Trainer fits a new artifact from historical bookings.
type Trainer struct {
	cfg      Config
	stations StationSource
	bookings BookingSource
	store    ArtifactStore
	holder   *Holder
	builder  *features.Builder
	bus      eventbus.Publisher[events.ModelEvent]
	log      logger.Logger
	now      func() time.Time
	loc      *time.Location

	mu sync.Mutex
}

// TrainerDeps groups the collaborators of a Trainer.
type TrainerDeps struct {
	Stations StationSource
	Bookings BookingSource
	Store    ArtifactStore
	Holder   *Holder
	Builder  *features.Builder
	Bus      eventbus.Publisher[events.ModelEvent]
	Logger   logger.Logger
	Clock    func() time.Time
}

// NewTrainer builds a Trainer. A nil Store disables persistence and a nil
// Bus disables event publication.
func NewTrainer(cfg Config, d TrainerDeps) *Trainer {
	t := &Trainer{
		cfg:      cfg,
		stations: d.Stations,
		bookings: d.Bookings,
		store:    d.Store,
		holder:   d.Holder,
		builder:  d.Builder,
		bus:      d.Bus,
		log:      logger.OrNop(d.Logger),
		now:      d.Clock,
		loc:      cfg.Location(),
	}
	if t.now == nil {
		t.now = time.Now
	}
	if t.holder == nil {
		t.holder = NewHolder()
	}
	if t.builder == nil {
		t.builder = features.NewBuilder(d.Bookings, features.WithClock(t.now), features.WithLogger(t.log))
	}
	return t
}

// Run performs one training pass. On success the new artifact is saved and
// then published in the holder. Only one run may be active at a time.
func (t *Trainer) Run(ctx context.Context) (rep Report, err error) {
	if !t.mu.TryLock() {
		return Report{}, ErrTrainingInProgress
	}
	defer t.mu.Unlock()

	start := t.now()
	rep = Report{RunID: uuid.NewString(), Labels: map[string]int{}}
	defer func() { rep.Duration = t.now().Sub(start) }()

	bookings, err := t.bookings.EligibleBookings(ctx, model.UsableOutcomes)
	if err != nil {
		t.publish(events.ModelEvent{Kind: events.TrainingFailed, Reason: err.Error()})
		return rep, fmt.Errorf("load bookings: %w", err)
	}
	eligible := make([]model.Booking, 0, len(bookings))
	for _, b := range bookings {
		if b.Eligible() {
			eligible = append(eligible, b)
		}
	}
	rep.Eligible = len(eligible)
	if rep.Eligible < t.cfg.MinEligible {
		err := fmt.Errorf("%w: %d eligible bookings, need %d", ErrInsufficientData, rep.Eligible, t.cfg.MinEligible)
		t.publish(events.ModelEvent{Kind: events.TrainingFailed, Reason: err.Error()})
		return rep, err
	}

	data := make([]float64, 0, len(eligible)*features.Size)
	labels := make([]float64, 0, len(eligible))
	for _, b := range eligible {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		row, label, err := t.assemble(ctx, b)
		if err != nil {
			rep.Skipped++
			t.log.Warnf("training row for booking %d skipped: %v", b.ID, err)
			continue
		}
		data = append(data, row[:]...)
		labels = append(labels, label)
		rep.Labels[strconv.FormatFloat(label, 'f', 1, 64)]++
	}
	rep.Assembled = len(labels)
	if rep.Assembled < t.cfg.MinSamples {
		err := fmt.Errorf("%w: %d usable rows, need %d", ErrInsufficientData, rep.Assembled, t.cfg.MinSamples)
		t.publish(events.ModelEvent{Kind: events.TrainingFailed, Reason: err.Error()})
		return rep, err
	}

	X := mat.NewDense(rep.Assembled, features.Size, data)
	art, err := scoring.Train(X, labels, t.cfg.ForestParams(), features.LayoutVersion, t.now())
	if err != nil {
		t.publish(events.ModelEvent{Kind: events.TrainingFailed, Reason: err.Error()})
		return rep, fmt.Errorf("fit: %w", err)
	}
	rep.Trees = len(art.Model.Trees)
	rep.TrainedAt = art.TrainedAt

	if t.store != nil {
		if err := t.store.Save(art); err != nil {
			t.log.Errorf("persist artifact: %v", err)
			monitoring.CaptureException(err, map[string]string{"component": "modelstore"})
		} else {
			rep.Persisted = true
		}
	}
	t.holder.Swap(art)
	t.log.Infof("model trained on %d rows (%d skipped), %d trees", rep.Assembled, rep.Skipped, rep.Trees)
	t.publish(events.ModelEvent{
		Kind:      events.ModelTrained,
		Samples:   art.Samples,
		TrainedAt: art.TrainedAt,
		Persisted: rep.Persisted,
	})
	return rep, nil
}

// assemble turns one booking into a feature row and label. Panics count as
// a failure of this row only.
func (t *Trainer) assemble(ctx context.Context, b model.Booking) (row features.Vector, label float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	st, err := t.stations.Station(ctx, b.StationID)
	if err != nil {
		return row, 0, err
	}
	// Hour and weekday are learned in the same timezone requests are scored in.
	row, err = t.builder.BuildStrict(ctx, st, t.cfg.DefaultLocation, b.ArrivalTime.In(t.loc), nil)
	if err != nil {
		return row, 0, err
	}
	return row, Label(b, t.cfg.LabelSource), nil
}

func (t *Trainer) publish(ev events.ModelEvent) {
	if t.bus == nil {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = t.now()
	}
	t.bus.Publish(ev)
}

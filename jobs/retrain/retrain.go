// Package retrain schedules batch training runs with a cron expression.
package retrain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kilianp07/evreco/core/logger"
	"github.com/kilianp07/evreco/core/recommend"
)

// Config holds the retrain schedule.
type Config struct {
	// Schedule is a standard five-field cron spec. Empty disables retraining.
	Schedule string `json:"schedule"`
	// OnStart triggers one run as soon as the job starts.
	OnStart bool `json:"on_start"`
}

// Enabled reports whether a schedule is configured.
func (c Config) Enabled() bool { return c.Schedule != "" }

// Validate checks that the schedule parses.
func (c Config) Validate() error {
	if !c.Enabled() {
		return nil
	}
	if _, err := cron.ParseStandard(c.Schedule); err != nil {
		return fmt.Errorf("retrain.schedule: %w", err)
	}
	return nil
}

// Trainer runs one training pass.
type Trainer interface {
	TrainWithReport(ctx context.Context) (recommend.Report, error)
}

// Job invokes the trainer on a schedule.
type Job struct {
	cfg     Config
	trainer Trainer
	log     logger.Logger
	loc     *time.Location
}

// New creates a Job. loc selects the timezone the schedule is evaluated in.
func New(cfg Config, t Trainer, loc *time.Location, log logger.Logger) (*Job, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.Local
	}
	return &Job{cfg: cfg, trainer: t, log: logger.OrNop(log), loc: loc}, nil
}

// RunOnce performs a single run. Rejections for lack of data or a
// concurrent run are logged and not treated as failures.
func (j *Job) RunOnce(ctx context.Context) error {
	rep, err := j.trainer.TrainWithReport(ctx)
	switch {
	case err == nil:
		j.log.Infof("scheduled retrain %s: %d samples, persisted=%t", rep.RunID, rep.Assembled, rep.Persisted)
		return nil
	case errors.Is(err, recommend.ErrInsufficientData), errors.Is(err, recommend.ErrTrainingInProgress):
		j.log.Infof("scheduled retrain skipped: %v", err)
		return nil
	default:
		j.log.Errorf("scheduled retrain failed: %v", err)
		return err
	}
}

// Serve runs the scheduler until ctx is canceled.
func (j *Job) Serve(ctx context.Context) error {
	c := cron.New(cron.WithLocation(j.loc))
	if _, err := c.AddFunc(j.cfg.Schedule, func() { _ = j.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("schedule retrain: %w", err)
	}
	if j.cfg.OnStart {
		_ = j.RunOnce(ctx)
	}
	c.Start()
	j.log.Infof("retrain scheduled with %q", j.cfg.Schedule)
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// String names the service for the supervisor.
func (j *Job) String() string { return "retrain" }

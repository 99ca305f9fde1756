// Package app wires the engine, its data sources and the long-running
// services from a Config.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/thejerf/suture/v4"

	apirecommend "github.com/kilianp07/evreco/api/recommend"
	"github.com/kilianp07/evreco/config"
	"github.com/kilianp07/evreco/core/decisionlog"
	"github.com/kilianp07/evreco/core/events"
	"github.com/kilianp07/evreco/core/features"
	coremetrics "github.com/kilianp07/evreco/core/metrics"
	coremon "github.com/kilianp07/evreco/core/monitoring"
	"github.com/kilianp07/evreco/core/recommend"
	"github.com/kilianp07/evreco/infra/logger"
	"github.com/kilianp07/evreco/infra/metrics"
	"github.com/kilianp07/evreco/infra/modelstore"
	"github.com/kilianp07/evreco/infra/monitoring"
	"github.com/kilianp07/evreco/infra/mqtt"
	"github.com/kilianp07/evreco/infra/stationdb"
	"github.com/kilianp07/evreco/internal/eventbus"
	"github.com/kilianp07/evreco/jobs/retrain"
)

// Service holds the engine and the resources it was built from.
type Service struct {
	Engine    *recommend.Engine
	Repo      *stationdb.Repository
	Decisions decisionlog.Store
	Sink      coremetrics.MetricsSink
	Bus       *eventbus.TypedBus[events.ModelEvent]

	cfg *config.Config
	log logger.Logger
}

// BuildEngine opens the data sources and builds the engine without
// starting any background service. It is used by the CLI commands.
func BuildEngine(ctx context.Context, cfg *config.Config) (*Service, error) {
	log := logger.New("service")

	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)

	repo, err := stationdb.Open(ctx, cfg.Datasource, cfg.Engine.DefaultLocation, logger.New("stationdb"))
	if err != nil {
		return nil, fmt.Errorf("station db: %w", err)
	}
	decisions, err := decisionlog.Open(cfg.DecisionLog)
	if err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("decision log: %w", err)
	}
	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		_ = repo.Close()
		_ = decisions.Close()
		return nil, fmt.Errorf("metrics sink: %w", err)
	}

	bus := eventbus.NewTyped[events.ModelEvent]()
	store := modelstore.New(cfg.Engine.ModelDir, features.LayoutVersion, logger.New("modelstore"))
	engine, err := recommend.NewEngine(cfg.Engine, recommend.Deps{
		Stations:  repo,
		Bookings:  repo,
		Store:     store,
		Bus:       bus,
		Metrics:   sink,
		Decisions: decisions,
		Logger:    logger.New("engine"),
	})
	if err != nil {
		_ = repo.Close()
		_ = decisions.Close()
		return nil, err
	}
	return &Service{
		Engine:    engine,
		Repo:      repo,
		Decisions: decisions,
		Sink:      sink,
		Bus:       bus,
		cfg:       cfg,
		log:       log,
	}, nil
}

// Run restores the persisted model and supervises the API, the metrics
// endpoint, the retrain job and the MQTT forwarder until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	if s.Engine.Warm() {
		s.log.Infof("restored persisted model")
	}
	metrics.StartEventCollector(ctx, s.Bus, s.Sink)

	sup := suture.New("evreco", suture.Spec{
		EventHook: func(e suture.Event) {
			s.log.Warnf("supervisor: %s", e)
		},
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		Timeout:          10 * time.Second,
	})
	for _, svc := range s.services() {
		sup.Add(svc)
	}
	err := sup.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (s *Service) services() []suture.Service {
	cfg := s.cfg
	api := &apirecommend.Server{
		Addr: cfg.Server.Addr,
		Handler: apirecommend.NewRouter(s.Engine, s.Decisions, apirecommend.Options{
			TrainRatePerMinute: cfg.Server.TrainRatePerMinute,
			Log:                logger.New("api"),
		}),
		Log: logger.New("api"),
	}
	svcs := []suture.Service{api}
	if cfg.Metrics.PrometheusAddr != "" {
		svcs = append(svcs, metrics.PromServer{Addr: cfg.Metrics.PrometheusAddr, Log: logger.New("prometheus")})
	}
	if cfg.Retrain.Enabled() {
		loc, err := time.LoadLocation(cfg.Engine.Timezone)
		if err != nil {
			loc = time.Local
		}
		job, err := retrain.New(cfg.Retrain, s.Engine, loc, logger.New("retrain"))
		if err != nil {
			s.log.Errorf("retrain job disabled: %v", err)
		} else {
			svcs = append(svcs, job)
		}
	}
	if cfg.MQTT.Enabled {
		svcs = append(svcs, &mqttService{cfg: cfg.MQTT, svc: s})
	}
	return svcs
}

// mqttService connects lazily so a broker outage is retried by the supervisor.
type mqttService struct {
	cfg mqtt.Config
	svc *Service
}

func (m *mqttService) Serve(ctx context.Context) error {
	cli, err := mqtt.NewPahoClient(m.cfg)
	if err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	defer cli.Disconnect()
	fwd := &mqtt.StatusForwarder{
		Bus:       m.svc.Bus,
		Publisher: cli,
		Initial:   m.svc.modelState,
		Log:       logger.New("mqtt_status"),
	}
	return fwd.Serve(ctx)
}

func (m *mqttService) String() string { return "mqtt-status" }

func (s *Service) modelState() (bool, time.Time, int) {
	st := s.Engine.Status(context.Background())
	if !st.Trained || st.TrainedAt == nil {
		return false, time.Time{}, 0
	}
	return true, *st.TrainedAt, st.Samples
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.Bus.Close()
	coremon.Flush(2 * time.Second)
	return errors.Join(s.Decisions.Close(), s.Repo.Close())
}

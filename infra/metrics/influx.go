package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/evreco/core/metrics"
	"github.com/kilianp07/evreco/infra/logger"
)

// InfluxSink writes recommendation events to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

func (s *InfluxSink) write(p *write.Point) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordRecommendation writes one point per served request.
func (s *InfluxSink) RecordRecommendation(ev coremetrics.RecommendationEvent) error {
	p := write.NewPointWithMeasurement("recommendation").
		AddTag("source", string(ev.Source)).
		AddTag("component", "recommender").
		AddField("request_id", ev.RequestID).
		AddField("candidates", ev.Candidates).
		AddField("returned", ev.Returned).
		AddField("skipped", ev.Skipped).
		AddField("latency_ms", round3(ev.Latency.Seconds()*1000)).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordFallback records a rule-based response.
func (s *InfluxSink) RecordFallback(ev coremetrics.FallbackEvent) error {
	p := write.NewPointWithMeasurement("fallback_applied").
		AddTag("reason", ev.Reason).
		AddTag("component", "recommender").
		AddField("request_id", ev.RequestID).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordTraining records a training run.
func (s *InfluxSink) RecordTraining(ev coremetrics.TrainingEvent) error {
	p := write.NewPointWithMeasurement("model_training").
		AddTag("success", strconv.FormatBool(ev.Success)).
		AddTag("component", "trainer")
	if ev.Reason != "" {
		p = p.AddTag("reason", ev.Reason)
	}
	p = p.AddField("eligible", ev.Eligible).
		AddField("samples", ev.Samples).
		AddField("duration_ms", round3(ev.Duration.Seconds()*1000)).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordModelState records a model snapshot.
func (s *InfluxSink) RecordModelState(ev coremetrics.ModelStateEvent) error {
	p := write.NewPointWithMeasurement("model_state").
		AddTag("component", "engine").
		AddField("trained", ev.Trained).
		AddField("samples", ev.Samples)
	if !ev.TrainedAt.IsZero() {
		p = p.AddField("trained_at", ev.TrainedAt.Unix())
	}
	return s.write(p.SetTime(ev.Time))
}

// Close releases the client.
func (s *InfluxSink) Close() { s.client.Close() }

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}

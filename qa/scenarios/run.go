package scenarios

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/evreco/core/events"
	"github.com/kilianp07/evreco/core/features"
	"github.com/kilianp07/evreco/core/model"
	"github.com/kilianp07/evreco/core/recommend"
	"github.com/kilianp07/evreco/infra/logger"
	"github.com/kilianp07/evreco/infra/metrics"
	"github.com/kilianp07/evreco/infra/modelstore"
	"github.com/kilianp07/evreco/infra/stationdb"
	"github.com/kilianp07/evreco/internal/eventbus"
)

func RunScenario(t *testing.T, sc *Scenario) {
	t.Helper()
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	sink, err := metrics.NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("prom sink: %v", err)
	}

	dsn := fmt.Sprintf("file:scenario_%s?mode=memory&cache=shared", strings.ReplaceAll(sc.Name, " ", "_"))
	repo, err := stationdb.Open(ctx, stationdb.Config{Driver: "sqlite", DSN: dsn}, model.DefaultLocation, logger.NopLogger{})
	if err != nil {
		t.Fatalf("open repo: %v", err)
	}
	defer repo.Close()
	if _, err := repo.ImportFixtures(ctx, sc.Fixtures); err != nil {
		t.Fatalf("import fixtures: %v", err)
	}

	now := sc.Now.UTC()
	cfg := recommend.Config{ModelDir: t.TempDir(), Trees: 20, FallbackFormula: recommend.Formula(sc.FallbackFormula)}
	bus := eventbus.NewTyped[events.ModelEvent]()
	defer bus.Close()
	engine, err := recommend.NewEngine(cfg, recommend.Deps{
		Stations: repo,
		Bookings: repo,
		Store:    modelstore.New(cfg.ModelDir, features.LayoutVersion, logger.NopLogger{}),
		Bus:      bus,
		Metrics:  sink,
		Clock:    func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("engine: %v", err)
	}

	if sc.Train {
		if got := engine.Train(ctx); got != sc.ExpectTrained {
			t.Fatalf("scenario %s: Train() = %t, want %t", sc.Name, got, sc.ExpectTrained)
		}
	}

	for i, rd := range sc.Requests {
		req := recommend.Request{Location: model.Location{Lat: rd.Lat, Lng: rd.Lng}, Limit: rd.Limit}
		if rd.ChargerType != "" {
			req.Preferences = &model.Preferences{ChargerType: model.ChargerType(rd.ChargerType)}
		}
		checkResult(t, fmt.Sprintf("%s request %d", sc.Name, i), rd.Expected, engine.RecommendDetailed(ctx, req))
	}

	if sc.Fallbacks != nil {
		if got := counterTotal(t, reg, "recommendation_fallbacks_total"); got != float64(*sc.Fallbacks) {
			t.Errorf("scenario %s expected %d fallbacks, got %v", sc.Name, *sc.Fallbacks, got)
		}
	}
}

func checkResult(t *testing.T, label string, exp Expected, res recommend.Result) {
	t.Helper()
	if exp.Source != "" && string(res.Source) != exp.Source {
		t.Errorf("%s: source %s, want %s", label, res.Source, exp.Source)
	}
	if exp.FallbackReason != "" && res.FallbackReason != exp.FallbackReason {
		t.Errorf("%s: fallback reason %q, want %q", label, res.FallbackReason, exp.FallbackReason)
	}
	recs := res.Recommendations
	if exp.Count != nil && len(recs) != *exp.Count {
		t.Errorf("%s: %d recommendations, want %d", label, len(recs), *exp.Count)
	}
	if exp.Top != 0 && (len(recs) == 0 || recs[0].Station.ID != exp.Top) {
		t.Errorf("%s: top station %v, want %d", label, stationIDs(recs), exp.Top)
	}
	if len(exp.Order) > 0 {
		got := stationIDs(recs)
		if fmt.Sprint(got) != fmt.Sprint(exp.Order) {
			t.Errorf("%s: order %v, want %v", label, got, exp.Order)
		}
	}
	for _, id := range exp.Excludes {
		for _, r := range recs {
			if r.Station.ID == id {
				t.Errorf("%s: station %d should not be recommended", label, id)
			}
		}
	}
	for i, r := range recs {
		if r.PredictedWaitTime < 1 {
			t.Errorf("%s: station %d wait %d < 1", label, r.Station.ID, r.PredictedWaitTime)
		}
		if i > 0 && recs[i-1].Score < r.Score {
			t.Errorf("%s: list not sorted at %d", label, i)
		}
	}
}

func stationIDs(recs []recommend.Recommendation) []int64 {
	out := make([]int64, len(recs))
	for i, r := range recs {
		out[i] = r.Station.ID
	}
	return out
}

func counterTotal(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var total float64
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/evreco/config"
	"github.com/kilianp07/evreco/core/decisionlog"
	coremetrics "github.com/kilianp07/evreco/core/metrics"
	"github.com/kilianp07/evreco/core/model"
	"github.com/kilianp07/evreco/core/recommend"
	"github.com/kilianp07/evreco/infra/stationdb"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.Engine.ModelDir = dir
	cfg.Engine.Trees = 15
	cfg.Datasource.Driver = "sqlite"
	cfg.Datasource.DSN = fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	cfg.DecisionLog.Path = filepath.Join(dir, "decisions.jsonl")
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())
	return cfg
}

func seed(t *testing.T, repo *stationdb.Repository) {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "fixtures.example.yaml"))
	require.NoError(t, err)
	f, err := stationdb.ParseFixtures(data)
	require.NoError(t, err)
	_, err = repo.ImportFixtures(context.Background(), f)
	require.NoError(t, err)
}

func TestBuildEngine_TrainAndRecommend(t *testing.T) {
	ctx := context.Background()
	svc, err := BuildEngine(ctx, testConfig(t))
	require.NoError(t, err)
	defer svc.Close()
	seed(t, svc.Repo)

	before := svc.Engine.RecommendDetailed(ctx, recommendRequest())
	assert.Equal(t, coremetrics.SourceRuleBased, before.Source)
	require.Len(t, before.Recommendations, 4)

	require.True(t, svc.Engine.Train(ctx))
	assert.True(t, svc.Engine.IsTrained())

	after := svc.Engine.RecommendDetailed(ctx, recommendRequest())
	assert.Equal(t, coremetrics.SourceModel, after.Source)
	require.Len(t, after.Recommendations, 4)
	for i := 1; i < len(after.Recommendations); i++ {
		assert.GreaterOrEqual(t, after.Recommendations[i-1].Score, after.Recommendations[i].Score)
	}

	st := svc.Engine.Status(ctx)
	assert.True(t, st.Trained)
	assert.Equal(t, 8, st.TotalBookings)
	assert.Equal(t, 7, st.BookingsWithFeedback)

	recs, err := svc.Decisions.Query(ctx, decisionlog.Query{})
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestBuildEngine_RestoresPersistedModel(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	first, err := BuildEngine(ctx, cfg)
	require.NoError(t, err)
	seed(t, first.Repo)
	require.True(t, first.Engine.Train(ctx))

	second, err := BuildEngine(ctx, cfg)
	require.NoError(t, err)
	defer second.Close()
	assert.False(t, second.Engine.IsTrained())
	assert.True(t, second.Engine.Warm())
	assert.True(t, second.Engine.IsTrained())
	require.NoError(t, first.Close())
}

func recommendRequest() recommend.Request {
	return recommend.Request{Location: model.Location{Lat: 19.07, Lng: 72.87}, Limit: 6}
}

package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptodata/internal/adapter"
	"cryptodata/internal/cache"
	"cryptodata/internal/config"
	"cryptodata/internal/quality"
	"cryptodata/internal/repair"
	"cryptodata/internal/request"
	"cryptodata/internal/schema"
	"cryptodata/internal/table"
)

// dirty returns daily closes with a hole on day 3 and a spike on day 4
func dirtyFetch(_ context.Context, req *request.Request) (*table.Table, error) {
	ticker := req.Tickers()[0]
	tbl := table.New(schema.FieldClose)
	tbl.Set(day(1), ticker, schema.FieldClose, 100, req.Source())
	tbl.Set(day(2), ticker, schema.FieldClose, 101, req.Source())
	tbl.Set(day(4), ticker, schema.FieldClose, 1000, req.Source())
	tbl.Set(day(5), ticker, schema.FieldClose, 102, req.Source())
	return tbl, nil
}

func newTestPipeline(t *testing.T, cacher cache.Cacher) *Pipeline {
	t.Helper()
	cfg := config.Default()
	cfg.Quality.OutlierMinObs = 2
	cfg.Extract.Retry.MaxRetries = 0
	cfg.Extract.DefaultBudget = config.ProviderBudget{RequestsPerSec: 1000, Burst: 1000, MaxConcurrent: 8}

	reg := NewRegistry()
	reg.Register(&mockAdapter{Base: adapter.NewBase("mock", cryptoCaps(1)), fetch: dirtyFetch})

	orch := NewOrchestrator(reg, cfg.Extract, nil, nil, nil)
	qe := quality.NewEngine(cfg.Quality, quality.AlwaysOpen{}, nil)
	re, err := repair.NewEngine(cfg.Repair, cfg.Quality, nil)
	require.NoError(t, err)

	return NewPipeline(orch, qe, re, cfg, cacher, nil, nil, nil)
}

func TestPipelineRunCleansAndAudits(t *testing.T) {
	p := newTestPipeline(t, nil)
	req := newRequest(t, request.Params{Tickers: []string{"BTC"}, Fields: []string{"close"}})

	result, err := p.Run(context.Background(), req)
	require.NoError(t, err)

	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", result.RunID.String())
	assert.Equal(t, 2, result.Defects.Len())
	assert.Len(t, result.Repairs, 2)
	assert.Empty(t, result.Unresolved)
	assert.False(t, result.FromCache)

	// the hole is filled and the spike tamed
	v3, ok := result.Table.Value(day(3), "BTC", schema.FieldClose)
	require.True(t, ok)
	assert.Greater(t, v3, 100.0)
	v4, _ := result.Table.Value(day(4), "BTC", schema.FieldClose)
	assert.Less(t, v4, 1000.0)

	require.Len(t, result.Summary.Series, 1)
	assert.Equal(t, 5, result.Summary.Series[0].Obs)
}

func TestPipelineCachesResults(t *testing.T) {
	p := newTestPipeline(t, cache.NewMemoryCache())
	req := newRequest(t, request.Params{Tickers: []string{"BTC"}, Fields: []string{"close"}})

	first, err := p.Run(context.Background(), req)
	require.NoError(t, err)
	require.False(t, first.FromCache)

	second, err := p.Run(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.RunID, second.RunID)
	assert.Equal(t, first.Table.Len(), second.Table.Len())

	v, ok := second.Table.Value(day(3), "BTC", schema.FieldClose)
	require.True(t, ok)
	assert.Greater(t, v, 100.0)
}

func TestPipelineReportsCoverageGaps(t *testing.T) {
	p := newTestPipeline(t, nil)
	// volume requested but the mock never returns it
	req := newRequest(t, request.Params{Tickers: []string{"BTC"}, Fields: []string{"close", "volume"}})

	result, err := p.Run(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, result.Unresolved, 1)
	assert.Equal(t, schema.FieldVolume, result.Unresolved[0].Field)
}

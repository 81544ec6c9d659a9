package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptodata/internal/adapter"
	"cryptodata/internal/config"
	"cryptodata/internal/extract"
	"cryptodata/internal/quality"
	"cryptodata/internal/repair"
	"cryptodata/internal/request"
	"cryptodata/internal/schema"
	"cryptodata/internal/table"
)

type stubAdapter struct {
	*adapter.Base
}

func (s *stubAdapter) Fetch(_ context.Context, req *request.Request) (*table.Table, error) {
	tbl := table.New(schema.FieldClose)
	for d := 1; d <= 5; d++ {
		ts := time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
		tbl.Set(ts, req.Tickers()[0], schema.FieldClose, 100+float64(d), req.Source())
	}
	return tbl, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Default()
	cfg.Extract.Retry.MaxRetries = 0
	cfg.Extract.DefaultBudget = config.ProviderBudget{RequestsPerSec: 1000, Burst: 1000, MaxConcurrent: 8}

	registry := extract.NewRegistry()
	registry.Register(&stubAdapter{Base: adapter.NewBase("stub", adapter.Capabilities{
		Categories:  []schema.Category{schema.CategoryCrypto},
		Fields:      []schema.Field{schema.FieldClose},
		Frequencies: []schema.Frequency{schema.FreqDaily},
		MarketTypes: []schema.MarketType{schema.MarketTypeSpot},
		Priority:    1,
	})})

	orch := extract.NewOrchestrator(registry, cfg.Extract, nil, nil, nil)
	qe := quality.NewEngine(cfg.Quality, quality.AlwaysOpen{}, nil)
	re, err := repair.NewEngine(cfg.Repair, cfg.Quality, nil)
	require.NoError(t, err)
	pipeline := extract.NewPipeline(orch, qe, re, cfg, nil, nil, nil, nil)

	return NewServer(cfg, pipeline, registry, request.StandardDefaults(), nil)
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)

	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestSeriesEndpoint(t *testing.T) {
	srv := newTestServer(t)

	body, _ := json.Marshal(request.Params{Tickers: []string{"BTC"}, Fields: []string{"close"}})
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/series", bytes.NewReader(body)))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		RunID  string         `json:"run_id"`
		Rows   []*table.Row   `json:"rows"`
		Fields []schema.Field `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.RunID)
	assert.Len(t, resp.Rows, 5)
	assert.Equal(t, []schema.Field{schema.FieldClose}, resp.Fields)
}

func TestSeriesEndpointRejectsInvalidRequest(t *testing.T) {
	srv := newTestServer(t)

	body := []byte(`{"tickers":["BTC"],"fields":["sentiment"]}`)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/series", bytes.NewReader(body)))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "VALIDATION_ERROR")
}

func TestCatalogFieldsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/catalog/fields?cat=macro", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "surprise")
	assert.NotContains(t, w.Body.String(), "funding_rate")
}

func TestCatalogTickersEndpoint(t *testing.T) {
	srv := newTestServer(t)

	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/catalog/tickers?cat=fx", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"EUR"`)
	assert.NotContains(t, w.Body.String(), `"BTC"`)
}

func TestSeriesEndpointRejectsMiscategorizedTicker(t *testing.T) {
	srv := newTestServer(t)

	body := []byte(`{"tickers":["EUR"],"fields":["close"]}`)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/series", bytes.NewReader(body)))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "VALIDATION_ERROR")
}

func TestCatalogProvidersEndpoint(t *testing.T) {
	srv := newTestServer(t)

	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/catalog/providers", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"stub"`)
}

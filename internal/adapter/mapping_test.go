package adapter

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperr "cryptodata/internal/errors"
	"cryptodata/internal/request"
	"cryptodata/internal/schema"
)

func testCaps() Capabilities {
	return Capabilities{
		Categories:  []schema.Category{schema.CategoryCrypto},
		Fields:      []schema.Field{schema.FieldClose, schema.FieldVolume},
		Frequencies: []schema.Frequency{schema.FreqDaily},
		MarketTypes: []schema.MarketType{schema.MarketTypeSpot},
	}
}

func testMapping() Mapping {
	return Mapping{
		Symbols: map[string]string{"XBTUSD": "BTC"},
		Fields:  map[string]schema.Field{"c": schema.FieldClose, "v": schema.FieldVolume},
		Scale:   map[schema.Field]float64{schema.FieldVolume: 1e-8},
	}
}

func newReq(t *testing.T, p request.Params) *request.Request {
	t.Helper()
	req, err := request.New(p, request.StandardDefaults())
	require.NoError(t, err)
	return req
}

func TestMappingApply(t *testing.T) {
	req := newReq(t, request.Params{
		Tickers: []string{"BTC"},
		Fields:  []string{"close", "volume"},
		Source:  "kraken",
	})

	ts := time.Date(2024, 1, 2, 13, 45, 0, 0, time.UTC)
	records := []Record{
		{Timestamp: ts, Symbol: "XBTUSD", Values: map[string]float64{"c": 42000, "v": 5e9, "ignored": 1}},
		{Timestamp: ts, Symbol: "ETHUSD", Values: map[string]float64{"c": 2500}},
	}

	tbl, err := testMapping().Apply(req, testCaps(), records)
	require.NoError(t, err)

	// timestamp truncated to the daily bar, symbol translated
	bar := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	v, ok := tbl.Value(bar, "BTC", schema.FieldClose)
	require.True(t, ok)
	assert.Equal(t, 42000.0, v)

	// volume rescaled from satoshis
	v, ok = tbl.Value(bar, "BTC", schema.FieldVolume)
	require.True(t, ok)
	assert.InDelta(t, 50.0, v, 1e-9)

	// unrequested ticker dropped
	assert.Empty(t, tbl.Series("ETHUSD", schema.FieldClose))
	assert.Empty(t, tbl.Series("ETH", schema.FieldClose))

	// cells carry the provider for audit
	row, _ := tbl.RowAt(bar, "BTC")
	assert.Equal(t, "kraken", row.Sources[schema.FieldClose])
}

func TestMappingApplyRangeFilter(t *testing.T) {
	req := newReq(t, request.Params{
		Tickers:   []string{"BTC"},
		Fields:    []string{"close"},
		StartDate: "2024-01-02",
		EndDate:   "2024-01-03",
	})

	records := []Record{
		{Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Symbol: "XBTUSD", Values: map[string]float64{"c": 1}},
		{Timestamp: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Symbol: "XBTUSD", Values: map[string]float64{"c": 2}},
		{Timestamp: time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC), Symbol: "XBTUSD", Values: map[string]float64{"c": 3}},
	}

	tbl, err := testMapping().Apply(req, testCaps(), records)
	require.NoError(t, err)
	assert.Equal(t, 1, tbl.Len())
}

func TestMappingApplyKeepsIntradayBarsOnEndDate(t *testing.T) {
	req := newReq(t, request.Params{
		Tickers:   []string{"BTC"},
		Fields:    []string{"close"},
		Freq:      "1h",
		StartDate: "2024-01-01",
		EndDate:   "2024-01-02",
	})
	caps := testCaps()
	caps.Frequencies = []schema.Frequency{schema.Freq1H}

	records := []Record{
		{Timestamp: time.Date(2024, 1, 2, 13, 0, 0, 0, time.UTC), Symbol: "XBTUSD", Values: map[string]float64{"c": 1}},
		{Timestamp: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), Symbol: "XBTUSD", Values: map[string]float64{"c": 2}},
	}

	tbl, err := testMapping().Apply(req, caps, records)
	require.NoError(t, err)
	require.Equal(t, 1, tbl.Len())

	// the bar inside the final requested day survives the range filter
	_, ok := tbl.Value(time.Date(2024, 1, 2, 13, 0, 0, 0, time.UTC), "BTC", schema.FieldClose)
	assert.True(t, ok)
}

func TestMappingApplySkipsNaN(t *testing.T) {
	req := newReq(t, request.Params{Tickers: []string{"BTC"}, Fields: []string{"close"}})
	records := []Record{
		{Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Symbol: "XBTUSD",
			Values: map[string]float64{"c": math.NaN()}},
	}

	tbl, err := testMapping().Apply(req, testCaps(), records)
	require.NoError(t, err)
	assert.Empty(t, tbl.Series("BTC", schema.FieldClose))
	assert.True(t, tbl.HasField(schema.FieldClose), "claimed field stays a column")
}

func TestMappingApplyRejectsZeroTimestamp(t *testing.T) {
	req := newReq(t, request.Params{Tickers: []string{"BTC"}, Fields: []string{"close"}})
	_, err := testMapping().Apply(req, testCaps(), []Record{{Symbol: "XBTUSD", Values: map[string]float64{"c": 1}}})
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, apperr.ErrCodeSchemaMapping))
}

func TestNormalizeTimestampWeekly(t *testing.T) {
	// Thursday 2024-01-04 belongs to the week starting Monday 2024-01-01
	ts := NormalizeTimestamp(time.Date(2024, 1, 4, 10, 0, 0, 0, time.UTC), time.UTC, schema.FreqWeekly)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), ts)
}

func TestSupportsUsesCapabilityTables(t *testing.T) {
	base := NewBase("kraken", testCaps())

	assert.True(t, base.Supports(newReq(t, request.Params{Tickers: []string{"BTC"}, Fields: []string{"close"}})))
	assert.False(t, base.Supports(newReq(t, request.Params{Category: "fx", Tickers: []string{"EUR"}, Fields: []string{"close"}})))
	assert.False(t, base.Supports(newReq(t, request.Params{Freq: "1h", Tickers: []string{"BTC"}, Fields: []string{"close"}})))
}

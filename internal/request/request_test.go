package request

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperr "cryptodata/internal/errors"
	"cryptodata/internal/schema"
)

func TestNewAppliesDefaults(t *testing.T) {
	req, err := New(Params{}, StandardDefaults())
	require.NoError(t, err)

	assert.Equal(t, []string{"BTC"}, req.Tickers())
	assert.Equal(t, []schema.Field{schema.FieldClose}, req.Fields())
	assert.Equal(t, schema.FreqDaily, req.Freq())
	assert.Equal(t, "USD", req.QuoteCcy())
	assert.Equal(t, schema.ExchangeAggregate, req.Exchange())
	assert.Equal(t, schema.MarketTypeSpot, req.MarketType())
	assert.Equal(t, schema.CategoryCrypto, req.Category())
	assert.Equal(t, "UTC", req.Timezone())
	assert.Nil(t, req.StartDate())
	assert.Nil(t, req.EndDate())
}

func TestNewNormalizesTickersAndFields(t *testing.T) {
	req, err := New(Params{
		Tickers: []string{" btc ", "eth", "BTC"},
		Fields:  []string{"Close", "volume", "close"},
	}, StandardDefaults())
	require.NoError(t, err)

	assert.Equal(t, []string{"BTC", "ETH"}, req.Tickers())
	assert.Equal(t, []schema.Field{schema.FieldClose, schema.FieldVolume}, req.Fields())
}

func TestNewValidationFailures(t *testing.T) {
	cases := []struct {
		name   string
		params Params
	}{
		{"unknown field", Params{Fields: []string{"sentiment"}}},
		{"unknown frequency", Params{Freq: "fortnightly"}},
		{"unknown category", Params{Category: "weather"}},
		{"field illegal for category", Params{Category: "fx", Fields: []string{"funding_rate"}}},
		{"tick on option market", Params{MarketType: "option", Freq: "tick"}},
		{"tick on perpetual market", Params{MarketType: "perpetual_future", Freq: "tick", Fields: []string{"funding_rate"}}},
		{"sub-hour on future market", Params{MarketType: "future", Freq: "5min"}},
		{"ticker bound to another category", Params{Tickers: []string{"EUR"}}},
		{"bad timezone", Params{Timezone: "Mars/Olympus"}},
		{"bad date format", Params{StartDate: "01/02/2024"}},
		{"start after end", Params{StartDate: "2024-02-01", EndDate: "2024-01-01"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.params, StandardDefaults())
			require.Error(t, err)
			assert.True(t, apperr.IsCode(err, apperr.ErrCodeValidation))
		})
	}
}

func TestNewAcceptsUncataloguedTicker(t *testing.T) {
	req, err := New(Params{Tickers: []string{"FOOCOIN"}}, StandardDefaults())
	require.NoError(t, err)
	assert.Equal(t, []string{"FOOCOIN"}, req.Tickers())
}

func TestNewParsesDates(t *testing.T) {
	req, err := New(Params{StartDate: "2024-01-01", EndDate: "2024-01-05"}, StandardDefaults())
	require.NoError(t, err)
	require.NotNil(t, req.StartDate())
	require.NotNil(t, req.EndDate())
	assert.True(t, req.StartDate().Before(*req.EndDate()))
}

func TestSubsetAndWithSource(t *testing.T) {
	req, err := New(Params{
		Tickers: []string{"BTC", "ETH"},
		Fields:  []string{"close", "volume"},
	}, StandardDefaults())
	require.NoError(t, err)

	sub := req.Subset([]string{"ETH"}, []schema.Field{schema.FieldVolume}).WithSource("coinmetrics")
	assert.Equal(t, []string{"ETH"}, sub.Tickers())
	assert.Equal(t, []schema.Field{schema.FieldVolume}, sub.Fields())
	assert.Equal(t, "coinmetrics", sub.Source())

	// original untouched
	assert.Equal(t, []string{"BTC", "ETH"}, req.Tickers())
	assert.Equal(t, "", req.Source())
}

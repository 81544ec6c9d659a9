package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseFrequency(t *testing.T) {
	f, err := ParseFrequency("d")
	assert.NoError(t, err)
	assert.Equal(t, FreqDaily, f)

	_, err = ParseFrequency("fortnightly")
	assert.Error(t, err)
}

func TestValidFrequency(t *testing.T) {
	assert.True(t, ValidFrequency(MarketTypeSpot, FreqTick))
	assert.True(t, ValidFrequency(MarketTypeSpot, FreqDaily))

	// options and ETFs have no tick data
	assert.False(t, ValidFrequency(MarketTypeOption, FreqTick))
	assert.False(t, ValidFrequency(MarketTypeETF, FreqTick))
	assert.True(t, ValidFrequency(MarketTypeOption, FreqDaily))

	// funding settles hourly at the finest
	assert.False(t, ValidFrequency(MarketTypePerpetualFuture, FreqTick))
	assert.False(t, ValidFrequency(MarketTypePerpetualFuture, Freq5Min))
	assert.False(t, ValidFrequency(MarketTypeFuture, Freq30Min))
	assert.False(t, ValidFrequency(MarketTypeSwap, Freq1Min))
	assert.True(t, ValidFrequency(MarketTypePerpetualFuture, Freq1H))
	assert.True(t, ValidFrequency(MarketTypeFuture, Freq8H))
	assert.True(t, ValidFrequency(MarketTypeSwap, FreqDaily))
}

func TestFieldCatalogLegality(t *testing.T) {
	assert.True(t, LegalFor(FieldClose, CategoryCrypto))
	assert.True(t, LegalFor(FieldClose, CategoryFX))
	assert.True(t, LegalFor(FieldFundingRate, CategoryCrypto))
	assert.False(t, LegalFor(FieldFundingRate, CategoryFX))
	assert.True(t, LegalFor(FieldActual, CategoryMacro))
	assert.False(t, LegalFor(FieldActual, CategoryCrypto))
}

func TestFieldMetaPositivity(t *testing.T) {
	meta, ok := Lookup(FieldClose)
	assert.True(t, ok)
	assert.True(t, meta.RequiresPositive)

	meta, ok = Lookup(FieldFundingRate)
	assert.True(t, ok)
	assert.False(t, meta.RequiresPositive)

	meta, ok = Lookup(FieldSurprise)
	assert.True(t, ok)
	assert.False(t, meta.RequiresPositive)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "BTC", NormalizeTicker(" btc "))
	assert.Equal(t, FieldClose, NormalizeField(" Close "))
}

func TestSearchFields(t *testing.T) {
	hits := SearchFields("price")
	assert.Contains(t, hits, FieldClose)
	assert.NotContains(t, hits, FieldVolume)
}

func TestTickerCatalogLegality(t *testing.T) {
	meta, ok := LookupTicker("BTC")
	assert.True(t, ok)
	assert.Equal(t, "Bitcoin", meta.Name)

	assert.True(t, LegalTicker("BTC", CategoryCrypto))
	assert.False(t, LegalTicker("BTC", CategoryFX))
	assert.True(t, LegalTicker("EUR", CategoryFX))
	assert.False(t, LegalTicker("EUR", CategoryCrypto))
	assert.True(t, LegalTicker("US_RATES_10Y", CategoryBonds))

	// uncatalogued symbols stay legal everywhere
	_, ok = LookupTicker("FOOCOIN")
	assert.False(t, ok)
	assert.True(t, LegalTicker("FOOCOIN", CategoryCrypto))
}

func TestTickersForCategory(t *testing.T) {
	symbols := func(metas []TickerMeta) []string {
		var out []string
		for _, m := range metas {
			out = append(out, m.Symbol)
		}
		return out
	}

	fx := symbols(TickersFor(CategoryFX))
	assert.Contains(t, fx, "EUR")
	assert.NotContains(t, fx, "BTC")

	hits := symbols(SearchTickers("yield"))
	assert.Contains(t, hits, "US_RATES_10Y")
	assert.NotContains(t, hits, "BTC")
}

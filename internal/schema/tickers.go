package schema

import (
	"sort"
	"strings"
)

// TickerMeta holds the fixed metadata of a catalogued ticker. The catalog is
// not exhaustive: providers serve symbols beyond it, and unknown symbols pass
// through untouched. A symbol the catalog does know is bound to its
// categories, so requesting it under another category is a caller error.
type TickerMeta struct {
	Symbol     string
	Name       string
	Categories []Category
}

var tickerCatalog = map[string]TickerMeta{
	// cryptoassets
	"BTC":  {"BTC", "Bitcoin", cryptoOnly},
	"ETH":  {"ETH", "Ethereum", cryptoOnly},
	"SOL":  {"SOL", "Solana", cryptoOnly},
	"XRP":  {"XRP", "XRP", cryptoOnly},
	"ADA":  {"ADA", "Cardano", cryptoOnly},
	"DOGE": {"DOGE", "Dogecoin", cryptoOnly},
	"LTC":  {"LTC", "Litecoin", cryptoOnly},
	"DOT":  {"DOT", "Polkadot", cryptoOnly},
	"AVAX": {"AVAX", "Avalanche", cryptoOnly},
	"LINK": {"LINK", "Chainlink", cryptoOnly},

	// fx majors, quoted against the request quote currency
	"EUR": {"EUR", "Euro", []Category{CategoryFX}},
	"GBP": {"GBP", "Pound sterling", []Category{CategoryFX}},
	"JPY": {"JPY", "Japanese yen", []Category{CategoryFX}},
	"CHF": {"CHF", "Swiss franc", []Category{CategoryFX}},
	"AUD": {"AUD", "Australian dollar", []Category{CategoryFX}},
	"CAD": {"CAD", "Canadian dollar", []Category{CategoryFX}},
	"NZD": {"NZD", "New Zealand dollar", []Category{CategoryFX}},

	// equity indices
	"SPX": {"SPX", "S&P 500 index", []Category{CategoryEquity}},
	"NDX": {"NDX", "Nasdaq 100 index", []Category{CategoryEquity}},
	"DJI": {"DJI", "Dow Jones Industrial Average", []Category{CategoryEquity}},

	// commodities
	"XAU": {"XAU", "Gold", []Category{CategoryCmdty}},
	"XAG": {"XAG", "Silver", []Category{CategoryCmdty}},
	"WTI": {"WTI", "WTI crude oil", []Category{CategoryCmdty}},

	// rates and bonds
	"US_RATES_3M":  {"US_RATES_3M", "US 3-month rate", []Category{CategoryRates}},
	"US_RATES_10Y": {"US_RATES_10Y", "US 10-year yield", []Category{CategoryRates, CategoryBonds}},
	"DE_RATES_10Y": {"DE_RATES_10Y", "German 10-year yield", []Category{CategoryRates, CategoryBonds}},

	// macro release series
	"US_GDP":    {"US_GDP", "US gross domestic product", []Category{CategoryMacro}},
	"US_CPI":    {"US_CPI", "US consumer price index", []Category{CategoryMacro}},
	"US_UNEMPL": {"US_UNEMPL", "US unemployment rate", []Category{CategoryMacro}},
	"EZ_CPI":    {"EZ_CPI", "Euro area consumer price index", []Category{CategoryMacro}},
	"CN_PMI":    {"CN_PMI", "China manufacturing PMI", []Category{CategoryMacro}},
}

// LookupTicker returns the catalog metadata for a symbol
func LookupTicker(symbol string) (TickerMeta, bool) {
	meta, ok := tickerCatalog[symbol]
	return meta, ok
}

// LegalTicker reports whether the symbol may be requested for the category.
// Symbols the catalog does not know are legal for every category.
func LegalTicker(symbol string, cat Category) bool {
	meta, ok := tickerCatalog[symbol]
	if !ok {
		return true
	}
	for _, c := range meta.Categories {
		if c == cat {
			return true
		}
	}
	return false
}

// TickersFor returns the sorted catalogued symbols of a category
func TickersFor(cat Category) []TickerMeta {
	var metas []TickerMeta
	for _, meta := range tickerCatalog {
		for _, c := range meta.Categories {
			if c == cat {
				metas = append(metas, meta)
				break
			}
		}
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].Symbol < metas[j].Symbol })
	return metas
}

// SearchTickers returns catalogued tickers whose symbol or name contains the
// keyword
func SearchTickers(keyword string) []TickerMeta {
	kw := strings.ToLower(keyword)
	var metas []TickerMeta
	for _, meta := range tickerCatalog {
		if strings.Contains(strings.ToLower(meta.Symbol), kw) || strings.Contains(strings.ToLower(meta.Name), kw) {
			metas = append(metas, meta)
		}
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].Symbol < metas[j].Symbol })
	return metas
}

package schema

import (
	"sort"
	"strings"
)

// Field is a canonical, vendor-independent field name. Renaming a canonical
// field is a breaking change for every adapter and downstream consumer.
type Field string

// Canonical field vocabulary
const (
	FieldOpen         Field = "open"
	FieldHigh         Field = "high"
	FieldLow          Field = "low"
	FieldClose        Field = "close"
	FieldVWAP         Field = "vwap"
	FieldVolume       Field = "volume"
	FieldTrades       Field = "trades"
	FieldFundingRate  Field = "funding_rate"
	FieldOpenInterest Field = "open_interest"
	FieldActiveAddr   Field = "active_addresses"
	FieldTxCount      Field = "tx_count"
	FieldHashrate     Field = "hashrate"
	FieldDifficulty   Field = "difficulty"
	FieldSupply       Field = "supply"
	FieldIssuance     Field = "issuance"
	FieldMktCap       Field = "mkt_cap"
	FieldActual       Field = "actual"
	FieldExpected     Field = "expected"
	FieldSurprise     Field = "surprise"
)

// ValueClass describes the statistical nature of a field. Level fields carry
// a state forward between observations (supply, market cap); flow fields are
// per-bar quantities that cannot be carried forward (volume, issuance).
type ValueClass string

const (
	ClassPrice ValueClass = "price"
	ClassFlow  ValueClass = "flow"
	ClassLevel ValueClass = "level"
	ClassRate  ValueClass = "rate"
)

// FieldMeta holds the fixed semantics of a canonical field. The unit and
// scale are part of the contract: adapters convert vendor values into these
// units before handing rows back.
type FieldMeta struct {
	Name             Field
	Class            ValueClass
	Unit             string
	RequiresPositive bool
	Categories       []Category
	Description      string
}

var allCategories = Categories

var marketCategories = []Category{
	CategoryCrypto, CategoryFX, CategoryEquity, CategoryCmdty,
	CategoryRates, CategoryBonds, CategoryCredit, CategoryAlt,
}

var cryptoOnly = []Category{CategoryCrypto}

// fieldCatalog is the canonical field registry. It plays the role of the
// fields metadata table every adapter and consumer agrees on.
var fieldCatalog = map[Field]FieldMeta{
	FieldOpen:         {FieldOpen, ClassPrice, "quote_ccy", true, marketCategories, "bar open price"},
	FieldHigh:         {FieldHigh, ClassPrice, "quote_ccy", true, marketCategories, "bar high price"},
	FieldLow:          {FieldLow, ClassPrice, "quote_ccy", true, marketCategories, "bar low price"},
	FieldClose:        {FieldClose, ClassPrice, "quote_ccy", true, marketCategories, "bar close price"},
	FieldVWAP:         {FieldVWAP, ClassPrice, "quote_ccy", true, marketCategories, "volume-weighted average price"},
	FieldVolume:       {FieldVolume, ClassFlow, "base_units", true, marketCategories, "traded volume in base units"},
	FieldTrades:       {FieldTrades, ClassFlow, "count", true, marketCategories, "number of trades in bar"},
	FieldFundingRate:  {FieldFundingRate, ClassRate, "fraction", false, cryptoOnly, "perpetual funding rate per settlement"},
	FieldOpenInterest: {FieldOpenInterest, ClassLevel, "quote_ccy", true, cryptoOnly, "notional open interest"},
	FieldActiveAddr:   {FieldActiveAddr, ClassFlow, "count", true, cryptoOnly, "active on-chain addresses in bar"},
	FieldTxCount:      {FieldTxCount, ClassFlow, "count", true, cryptoOnly, "on-chain transactions in bar"},
	FieldHashrate:     {FieldHashrate, ClassLevel, "hash_per_sec", true, cryptoOnly, "network hashrate"},
	FieldDifficulty:   {FieldDifficulty, ClassLevel, "dimensionless", true, cryptoOnly, "mining difficulty"},
	FieldSupply:       {FieldSupply, ClassLevel, "base_units", true, cryptoOnly, "circulating supply"},
	FieldIssuance:     {FieldIssuance, ClassFlow, "base_units", true, cryptoOnly, "new supply issued in bar"},
	FieldMktCap:       {FieldMktCap, ClassLevel, "quote_ccy", true, cryptoOnly, "market capitalization"},
	FieldActual:       {FieldActual, ClassLevel, "series_units", false, []Category{CategoryMacro}, "released value of macro series"},
	FieldExpected:     {FieldExpected, ClassLevel, "series_units", false, []Category{CategoryMacro}, "consensus forecast of macro series"},
	FieldSurprise:     {FieldSurprise, ClassLevel, "series_units", false, []Category{CategoryMacro}, "actual minus expected"},
}

// Lookup returns the metadata for a canonical field
func Lookup(f Field) (FieldMeta, bool) {
	meta, ok := fieldCatalog[f]
	return meta, ok
}

// Known reports whether f is a canonical field
func Known(f Field) bool {
	_, ok := fieldCatalog[f]
	return ok
}

// LegalFor reports whether the field may be requested for the category
func LegalFor(f Field, cat Category) bool {
	meta, ok := fieldCatalog[f]
	if !ok {
		return false
	}
	for _, c := range meta.Categories {
		if c == cat {
			return true
		}
	}
	return false
}

// LegalFields returns the sorted list of canonical fields legal for a category
func LegalFields(cat Category) []Field {
	var fields []Field
	for f, meta := range fieldCatalog {
		for _, c := range meta.Categories {
			if c == cat {
				fields = append(fields, f)
				break
			}
		}
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i] < fields[j] })
	return fields
}

// SearchFields returns fields whose name or description contains the keyword
func SearchFields(keyword string) []Field {
	kw := strings.ToLower(keyword)
	var fields []Field
	for f, meta := range fieldCatalog {
		if strings.Contains(string(f), kw) || strings.Contains(strings.ToLower(meta.Description), kw) {
			fields = append(fields, f)
		}
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i] < fields[j] })
	return fields
}

// NormalizeField converts a raw field name into canonical form
// (lower case, trimmed). It does not check catalog membership.
func NormalizeField(s string) Field {
	return Field(strings.ToLower(strings.TrimSpace(s)))
}

// NormalizeTicker converts a raw ticker symbol into canonical form
// (upper case, trimmed).
func NormalizeTicker(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

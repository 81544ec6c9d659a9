package schema

import (
	"fmt"
	"time"
)

// Category represents the asset class of a requested series
type Category string

const (
	CategoryCrypto Category = "crypto"
	CategoryFX     Category = "fx"
	CategoryEquity Category = "eqty"
	CategoryCmdty  Category = "cmdty"
	CategoryRates  Category = "rates"
	CategoryBonds  Category = "bonds"
	CategoryCredit Category = "credit"
	CategoryMacro  Category = "macro"
	CategoryAlt    Category = "alt"
)

// Categories lists all valid categories
var Categories = []Category{
	CategoryCrypto,
	CategoryFX,
	CategoryEquity,
	CategoryCmdty,
	CategoryRates,
	CategoryBonds,
	CategoryCredit,
	CategoryMacro,
	CategoryAlt,
}

// Valid reports whether the category is a known category
func (c Category) Valid() bool {
	for _, cat := range Categories {
		if c == cat {
			return true
		}
	}
	return false
}

// MarketType represents the type of market
type MarketType string

const (
	MarketTypeSpot            MarketType = "spot"
	MarketTypeETF             MarketType = "etf"
	MarketTypePerpetualFuture MarketType = "perpetual_future"
	MarketTypeFuture          MarketType = "future"
	MarketTypeSwap            MarketType = "swap"
	MarketTypeOption          MarketType = "option"
)

// MarketTypes lists all valid market types
var MarketTypes = []MarketType{
	MarketTypeSpot,
	MarketTypeETF,
	MarketTypePerpetualFuture,
	MarketTypeFuture,
	MarketTypeSwap,
	MarketTypeOption,
}

// Valid reports whether the market type is a known market type
func (m MarketType) Valid() bool {
	for _, mt := range MarketTypes {
		if m == mt {
			return true
		}
	}
	return false
}

// Frequency represents the observation frequency of a series
type Frequency string

const (
	FreqTick    Frequency = "tick"
	Freq1Min    Frequency = "1min"
	Freq5Min    Frequency = "5min"
	Freq15Min   Frequency = "15min"
	Freq30Min   Frequency = "30min"
	Freq1H      Frequency = "1h"
	Freq2H      Frequency = "2h"
	Freq4H      Frequency = "4h"
	Freq8H      Frequency = "8h"
	Freq12H     Frequency = "12h"
	FreqDaily   Frequency = "d"
	FreqBizDay  Frequency = "b"
	FreqWeekly  Frequency = "w"
	FreqMonthly Frequency = "m"
	FreqQuarter Frequency = "q"
	FreqYearly  Frequency = "y"
)

// frequencies maps each valid frequency to its nominal bar duration.
// Calendar frequencies (m, q, y) use an approximate duration; the expected
// timestamp grid for those is computed on calendar boundaries, not by
// adding the duration.
var frequencies = map[Frequency]time.Duration{
	FreqTick:    0,
	Freq1Min:    time.Minute,
	Freq5Min:    5 * time.Minute,
	Freq15Min:   15 * time.Minute,
	Freq30Min:   30 * time.Minute,
	Freq1H:      time.Hour,
	Freq2H:      2 * time.Hour,
	Freq4H:      4 * time.Hour,
	Freq8H:      8 * time.Hour,
	Freq12H:     12 * time.Hour,
	FreqDaily:   24 * time.Hour,
	FreqBizDay:  24 * time.Hour,
	FreqWeekly:  7 * 24 * time.Hour,
	FreqMonthly: 30 * 24 * time.Hour,
	FreqQuarter: 91 * 24 * time.Hour,
	FreqYearly:  365 * 24 * time.Hour,
}

// Valid reports whether the frequency is a known frequency
func (f Frequency) Valid() bool {
	_, ok := frequencies[f]
	return ok
}

// Duration returns the nominal bar duration for the frequency
func (f Frequency) Duration() time.Duration {
	return frequencies[f]
}

// Intraday reports whether the frequency is finer than one day
func (f Frequency) Intraday() bool {
	d := frequencies[f]
	return d > 0 && d < 24*time.Hour
}

// ValidFrequency reports whether the frequency can be served for the given
// market type. Funding-style derivatives data is settled on fixed intervals
// and has no tick or sub-hour representation.
func ValidFrequency(mkt MarketType, freq Frequency) bool {
	if !freq.Valid() || !mkt.Valid() {
		return false
	}
	switch mkt {
	case MarketTypePerpetualFuture, MarketTypeFuture, MarketTypeSwap:
		// funding settles on fixed intervals of an hour or more
		return frequencies[freq] >= time.Hour
	case MarketTypeOption, MarketTypeETF:
		// no tick-level history for these market types
		return freq != FreqTick
	default:
		return true
	}
}

// ExchangeAggregate is the sentinel exchange name meaning a volume-weighted
// aggregate across exchanges rather than a single venue.
const ExchangeAggregate = "agg"

// ParseCategory converts a raw string into a Category
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", fmt.Errorf("invalid category: %q (valid: %v)", s, Categories)
	}
	return c, nil
}

// ParseMarketType converts a raw string into a MarketType
func ParseMarketType(s string) (MarketType, error) {
	m := MarketType(s)
	if !m.Valid() {
		return "", fmt.Errorf("invalid market type: %q (valid: %v)", s, MarketTypes)
	}
	return m, nil
}

// ParseFrequency converts a raw string into a Frequency
func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(s)
	if !f.Valid() {
		return "", fmt.Errorf("invalid frequency: %q", s)
	}
	return f, nil
}

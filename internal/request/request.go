package request

import (
	"fmt"
	"time"

	apperr "cryptodata/internal/errors"
	"cryptodata/internal/schema"
)

// Params carries the raw, caller-supplied request parameters. Zero values
// are replaced by Defaults at construction.
type Params struct {
	Source     string   `json:"source" yaml:"source"`
	Tickers    []string `json:"tickers" yaml:"tickers"`
	Fields     []string `json:"fields" yaml:"fields"`
	Freq       string   `json:"freq" yaml:"freq"`
	QuoteCcy   string   `json:"quote_ccy" yaml:"quote_ccy"`
	Exchange   string   `json:"exch" yaml:"exch"`
	MarketType string   `json:"mkt_type" yaml:"mkt_type"`
	StartDate  string   `json:"start_date" yaml:"start_date"` // YYYY-MM-DD, empty = earliest available
	EndDate    string   `json:"end_date" yaml:"end_date"`     // YYYY-MM-DD, empty = latest available
	Timezone   string   `json:"tz" yaml:"tz"`
	Category   string   `json:"cat" yaml:"cat"`

	// Escape hatch for callers that already know the provider-native
	// symbols, frequency or field names. Adapters use these verbatim
	// instead of translating the canonical ones.
	SourceTickers []string `json:"source_tickers,omitempty" yaml:"source_tickers,omitempty"`
	SourceFreq    string   `json:"source_freq,omitempty" yaml:"source_freq,omitempty"`
	SourceFields  []string `json:"source_fields,omitempty" yaml:"source_fields,omitempty"`
}

// Defaults is the externally supplied default table consulted once at
// request construction. There is no hidden module-level fallback.
type Defaults struct {
	Tickers    []string `yaml:"tickers"`
	Fields     []string `yaml:"fields"`
	Freq       string   `yaml:"freq"`
	QuoteCcy   string   `yaml:"quote_ccy"`
	Exchange   string   `yaml:"exch"`
	MarketType string   `yaml:"mkt_type"`
	Timezone   string   `yaml:"tz"`
	Category   string   `yaml:"cat"`
}

// StandardDefaults returns the default table used when the configuration
// does not override it: daily bars, USD quotes, volume-weighted aggregate
// across exchanges, UTC timestamps, crypto category.
func StandardDefaults() Defaults {
	return Defaults{
		Tickers:    []string{"BTC"},
		Fields:     []string{string(schema.FieldClose)},
		Freq:       string(schema.FreqDaily),
		QuoteCcy:   "USD",
		Exchange:   schema.ExchangeAggregate,
		MarketType: string(schema.MarketTypeSpot),
		Timezone:   "UTC",
		Category:   string(schema.CategoryCrypto),
	}
}

// Request is an immutable, validated description of the wanted series.
// Construct it with New; adapters and the quality engine only read it.
type Request struct {
	source     string
	tickers    []string
	fields     []schema.Field
	freq       schema.Frequency
	quoteCcy   string
	exchange   string
	marketType schema.MarketType
	startDate  *time.Time
	endDate    *time.Time
	location   *time.Location
	tz         string
	category   schema.Category

	sourceTickers []string
	sourceFreq    string
	sourceFields  []string
}

// New validates and normalizes the raw parameters, resolving defaults once.
// Returned requests are immutable; re-validating one is a no-op.
func New(p Params, d Defaults) (*Request, error) {
	if len(p.Tickers) == 0 {
		p.Tickers = d.Tickers
	}
	if len(p.Fields) == 0 {
		p.Fields = d.Fields
	}
	if p.Freq == "" {
		p.Freq = d.Freq
	}
	if p.QuoteCcy == "" {
		p.QuoteCcy = d.QuoteCcy
	}
	if p.Exchange == "" {
		p.Exchange = d.Exchange
	}
	if p.MarketType == "" {
		p.MarketType = d.MarketType
	}
	if p.Timezone == "" {
		p.Timezone = d.Timezone
	}
	if p.Category == "" {
		p.Category = d.Category
	}

	if len(p.Tickers) == 0 {
		return nil, apperr.New(apperr.ErrCodeValidation, "no tickers after default substitution", nil)
	}
	if len(p.Fields) == 0 {
		return nil, apperr.New(apperr.ErrCodeValidation, "no fields after default substitution", nil)
	}

	cat, err := schema.ParseCategory(p.Category)
	if err != nil {
		return nil, apperr.New(apperr.ErrCodeValidation, err.Error(), nil)
	}
	freq, err := schema.ParseFrequency(p.Freq)
	if err != nil {
		return nil, apperr.New(apperr.ErrCodeValidation, err.Error(), nil)
	}
	mkt, err := schema.ParseMarketType(p.MarketType)
	if err != nil {
		return nil, apperr.New(apperr.ErrCodeValidation, err.Error(), nil)
	}
	if !schema.ValidFrequency(mkt, freq) {
		return nil, apperr.Newf(apperr.ErrCodeValidation,
			"frequency %q is not available for market type %q", freq, mkt)
	}

	tickers := make([]string, 0, len(p.Tickers))
	seen := make(map[string]struct{})
	for _, raw := range p.Tickers {
		tk := schema.NormalizeTicker(raw)
		if tk == "" {
			return nil, apperr.New(apperr.ErrCodeValidation, "empty ticker symbol", nil)
		}
		if !schema.LegalTicker(tk, cat) {
			return nil, apperr.Newf(apperr.ErrCodeValidation,
				"ticker %q is not defined for category %q", tk, cat)
		}
		if _, dup := seen[tk]; dup {
			continue
		}
		seen[tk] = struct{}{}
		tickers = append(tickers, tk)
	}

	fields := make([]schema.Field, 0, len(p.Fields))
	seenF := make(map[schema.Field]struct{})
	for _, raw := range p.Fields {
		f := schema.NormalizeField(raw)
		if !schema.Known(f) {
			return nil, apperr.Newf(apperr.ErrCodeValidation, "unknown canonical field: %q", raw)
		}
		if !schema.LegalFor(f, cat) {
			return nil, apperr.Newf(apperr.ErrCodeValidation,
				"field %q is not defined for category %q", f, cat)
		}
		if _, dup := seenF[f]; dup {
			continue
		}
		seenF[f] = struct{}{}
		fields = append(fields, f)
	}

	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return nil, apperr.Newf(apperr.ErrCodeValidation, "invalid timezone: %q", p.Timezone)
	}

	var start, end *time.Time
	if p.StartDate != "" {
		t, err := time.ParseInLocation("2006-01-02", p.StartDate, loc)
		if err != nil {
			return nil, apperr.Newf(apperr.ErrCodeValidation,
				`start date must be in "YYYY-MM-DD" format, got %q`, p.StartDate)
		}
		start = &t
	}
	if p.EndDate != "" {
		t, err := time.ParseInLocation("2006-01-02", p.EndDate, loc)
		if err != nil {
			return nil, apperr.Newf(apperr.ErrCodeValidation,
				`end date must be in "YYYY-MM-DD" format, got %q`, p.EndDate)
		}
		end = &t
	}
	if start != nil && end != nil && start.After(*end) {
		return nil, apperr.Newf(apperr.ErrCodeValidation,
			"start date %s is after end date %s", p.StartDate, p.EndDate)
	}

	return &Request{
		source:        p.Source,
		tickers:       tickers,
		fields:        fields,
		freq:          freq,
		quoteCcy:      p.QuoteCcy,
		exchange:      p.Exchange,
		marketType:    mkt,
		startDate:     start,
		endDate:       end,
		location:      loc,
		tz:            p.Timezone,
		category:      cat,
		sourceTickers: append([]string(nil), p.SourceTickers...),
		sourceFreq:    p.SourceFreq,
		sourceFields:  append([]string(nil), p.SourceFields...),
	}, nil
}

// Source returns the explicitly requested provider, or "" for "best available"
func (r *Request) Source() string { return r.source }

// Tickers returns the ordered canonical ticker set
func (r *Request) Tickers() []string { return append([]string(nil), r.tickers...) }

// Fields returns the ordered canonical field set
func (r *Request) Fields() []schema.Field { return append([]schema.Field(nil), r.fields...) }

// Freq returns the requested observation frequency
func (r *Request) Freq() schema.Frequency { return r.freq }

// QuoteCcy returns the quote currency
func (r *Request) QuoteCcy() string { return r.quoteCcy }

// Exchange returns the requested exchange, or schema.ExchangeAggregate
func (r *Request) Exchange() string { return r.exchange }

// MarketType returns the requested market type
func (r *Request) MarketType() schema.MarketType { return r.marketType }

// StartDate returns the start of the requested range; nil means earliest available
func (r *Request) StartDate() *time.Time { return copyTime(r.startDate) }

// EndDate returns the end of the requested range; nil means latest available
func (r *Request) EndDate() *time.Time { return copyTime(r.endDate) }

// Location returns the timezone all timestamps are normalized to
func (r *Request) Location() *time.Location { return r.location }

// Timezone returns the tz database name of the request timezone
func (r *Request) Timezone() string { return r.tz }

// Category returns the asset category
func (r *Request) Category() schema.Category { return r.category }

// SourceTickers returns the caller-supplied provider-native symbols, if any
func (r *Request) SourceTickers() []string { return append([]string(nil), r.sourceTickers...) }

// SourceFreq returns the caller-supplied provider-native frequency, if any
func (r *Request) SourceFreq() string { return r.sourceFreq }

// SourceFields returns the caller-supplied provider-native field names, if any
func (r *Request) SourceFields() []string { return append([]string(nil), r.sourceFields...) }

// Subset derives a request scoped to a subset of tickers and fields,
// preserving every other parameter. The orchestrator uses it to split one
// request across adapters.
func (r *Request) Subset(tickers []string, fields []schema.Field) *Request {
	sub := *r
	sub.tickers = append([]string(nil), tickers...)
	sub.fields = append([]schema.Field(nil), fields...)
	return &sub
}

// WithSource derives a request pinned to one provider
func (r *Request) WithSource(source string) *Request {
	sub := *r
	sub.source = source
	return &sub
}

// String describes the request for logs
func (r *Request) String() string {
	return fmt.Sprintf("request{source=%q tickers=%v fields=%v freq=%s mkt=%s cat=%s}",
		r.source, r.tickers, r.fields, r.freq, r.marketType, r.category)
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

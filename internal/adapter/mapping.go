package adapter

import (
	"math"
	"time"

	apperr "cryptodata/internal/errors"
	"cryptodata/internal/request"
	"cryptodata/internal/schema"
	"cryptodata/internal/table"
)

// Record is one raw provider observation after transport decoding: a
// provider-native symbol, a timestamp, and named numeric values. Adapters
// build Records from vendor payloads and hand them to a Mapping.
type Record struct {
	Timestamp time.Time
	Symbol    string
	Values    map[string]float64
}

// Mapping translates provider-native records into the canonical schema:
// symbol translation, field renaming, unit rescaling and timestamp
// normalization to the requested timezone. One Mapping per adapter,
// built from its static translation tables.
type Mapping struct {
	// Symbols maps provider-native symbols to canonical tickers,
	// e.g. "XBTUSD" -> "BTC". Unmapped symbols fall back to canonical
	// normalization of the native symbol.
	Symbols map[string]string

	// Fields maps provider-native field names to canonical fields.
	// Native names not in the map are dropped silently; a canonical field
	// the provider omits entirely stays a column of missing cells.
	Fields map[string]schema.Field

	// Scale rescales a canonical field's values into the canonical unit,
	// e.g. satoshis -> BTC. Zero/absent means no rescaling.
	Scale map[schema.Field]float64
}

// CanonicalTicker translates a provider-native symbol
func (m Mapping) CanonicalTicker(symbol string) string {
	if tk, ok := m.Symbols[symbol]; ok {
		return tk
	}
	return schema.NormalizeTicker(symbol)
}

// NativeSymbol translates a canonical ticker back into the provider's
// format, for building provider queries
func (m Mapping) NativeSymbol(ticker string) string {
	for native, canonical := range m.Symbols {
		if canonical == ticker {
			return native
		}
	}
	return ticker
}

// Apply maps raw records into a canonical series table for the request.
// Every requested field the adapter claims is a column even when no record
// carries it. Records outside the requested range or for unrequested
// tickers are discarded. NaN and infinite values are treated as missing.
func (m Mapping) Apply(req *request.Request, caps Capabilities, records []Record) (*table.Table, error) {
	fields := make([]schema.Field, 0, len(req.Fields()))
	for _, f := range req.Fields() {
		if caps.HasField(f) {
			fields = append(fields, f)
		}
	}
	tbl := table.New(fields...)

	wanted := make(map[string]struct{}, len(req.Tickers()))
	for _, tk := range req.Tickers() {
		wanted[tk] = struct{}{}
	}
	requested := make(map[schema.Field]struct{}, len(fields))
	for _, f := range fields {
		requested[f] = struct{}{}
	}

	source := req.Source()
	for _, rec := range records {
		if rec.Timestamp.IsZero() {
			return nil, apperr.Newf(apperr.ErrCodeSchemaMapping,
				"record for symbol %q has no timestamp", rec.Symbol)
		}
		ticker := m.CanonicalTicker(rec.Symbol)
		if _, ok := wanted[ticker]; !ok {
			continue
		}
		ts := NormalizeTimestamp(rec.Timestamp, req.Location(), req.Freq())
		if start := req.StartDate(); start != nil && ts.Before(*start) {
			continue
		}
		if end := req.EndDate(); end != nil && ts.After(endOfRange(*end, req.Freq())) {
			continue
		}
		for native, value := range rec.Values {
			f, ok := m.Fields[native]
			if !ok {
				continue
			}
			if _, ok := requested[f]; !ok {
				continue
			}
			if math.IsNaN(value) || math.IsInf(value, 0) {
				continue
			}
			if scale := m.Scale[f]; scale != 0 {
				value *= scale
			}
			tbl.Set(ts, ticker, f, value, source)
		}
	}
	return tbl, nil
}

// endOfRange widens a date-resolution end bound to cover the whole end date
// for sub-daily frequencies, so intraday bars inside the final requested day
// survive the range filter.
func endOfRange(end time.Time, freq schema.Frequency) time.Time {
	if freq == schema.FreqTick || freq.Intraday() {
		return end.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return end
}

// NormalizeTimestamp converts a provider timestamp into the request
// timezone and truncates it to the bar boundary of the requested frequency.
func NormalizeTimestamp(ts time.Time, loc *time.Location, freq schema.Frequency) time.Time {
	ts = ts.In(loc)
	switch freq {
	case schema.FreqTick:
		return ts
	case schema.FreqDaily, schema.FreqBizDay:
		return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, loc)
	case schema.FreqWeekly:
		// bars start on Monday
		d := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, loc)
		offset := (int(d.Weekday()) + 6) % 7
		return d.AddDate(0, 0, -offset)
	case schema.FreqMonthly:
		return time.Date(ts.Year(), ts.Month(), 1, 0, 0, 0, 0, loc)
	case schema.FreqQuarter:
		q := (int(ts.Month()) - 1) / 3
		return time.Date(ts.Year(), time.Month(q*3+1), 1, 0, 0, 0, 0, loc)
	case schema.FreqYearly:
		return time.Date(ts.Year(), 1, 1, 0, 0, 0, 0, loc)
	default:
		return ts.Truncate(freq.Duration())
	}
}

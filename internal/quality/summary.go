package quality

import (
	"sort"

	"cryptodata/internal/schema"
	"cryptodata/internal/table"
)

// SeriesSummary aggregates observation and defect counts for one
// (ticker, field) series
type SeriesSummary struct {
	Ticker  string             `json:"ticker"`
	Field   schema.Field       `json:"field"`
	Obs     int                `json:"obs"`
	Defects map[DefectKind]int `json:"defects,omitempty"`
}

// Summary is the per-series quality roll-up reported alongside a cleaned
// table
type Summary struct {
	Series []SeriesSummary    `json:"series"`
	Totals map[DefectKind]int `json:"totals,omitempty"`
}

// Summarize tallies the report per series. Row-level defects with no field
// count against every requested field of the ticker.
func Summarize(tbl *table.Table, report Report) Summary {
	fields := tbl.Fields()
	type key struct {
		ticker string
		field  schema.Field
	}
	counts := make(map[key]map[DefectKind]int)
	bump := func(k key, kind DefectKind) {
		if counts[k] == nil {
			counts[k] = make(map[DefectKind]int)
		}
		counts[k][kind]++
	}
	for _, d := range report.Defects {
		if d.Field == "" {
			for _, f := range fields {
				bump(key{d.Ticker, f}, d.Kind)
			}
			continue
		}
		bump(key{d.Ticker, d.Field}, d.Kind)
	}

	summary := Summary{Totals: report.CountByKind()}
	for _, ticker := range tbl.Tickers() {
		for _, field := range fields {
			summary.Series = append(summary.Series, SeriesSummary{
				Ticker:  ticker,
				Field:   field,
				Obs:     len(tbl.Series(ticker, field)),
				Defects: counts[key{ticker, field}],
			})
		}
	}
	sort.Slice(summary.Series, func(i, j int) bool {
		a, b := summary.Series[i], summary.Series[j]
		if a.Ticker != b.Ticker {
			return a.Ticker < b.Ticker
		}
		return a.Field < b.Field
	})
	return summary
}

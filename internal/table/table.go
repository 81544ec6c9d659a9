package table

import (
	"fmt"
	"sort"
	"time"

	"cryptodata/internal/schema"
)

// Key identifies one row of the tidy table
type Key struct {
	Timestamp time.Time
	Ticker    string
}

// Row is one (timestamp, ticker) observation. A field absent from Values is
// a missing value; the column itself still exists on the table. Sources
// records which provider contributed each cell, for audit only.
type Row struct {
	Timestamp time.Time
	Ticker    string
	Values    map[schema.Field]float64
	Sources   map[schema.Field]string
}

// NewRow creates an empty row for the given key
func NewRow(ts time.Time, ticker string) *Row {
	return &Row{
		Timestamp: ts,
		Ticker:    ticker,
		Values:    make(map[schema.Field]float64),
		Sources:   make(map[schema.Field]string),
	}
}

// Key returns the row's (timestamp, ticker) key
func (r *Row) Key() Key {
	return Key{Timestamp: r.Timestamp, Ticker: r.Ticker}
}

// Set stores a cell value and its contributing source
func (r *Row) Set(field schema.Field, value float64, source string) {
	r.Values[field] = value
	if source != "" {
		r.Sources[field] = source
	}
}

// Value returns a cell value and whether it is observed
func (r *Row) Value(field schema.Field) (float64, bool) {
	v, ok := r.Values[field]
	return v, ok
}

// Clone deep-copies the row
func (r *Row) Clone() *Row {
	c := NewRow(r.Timestamp, r.Ticker)
	for f, v := range r.Values {
		c.Values[f] = v
	}
	for f, s := range r.Sources {
		c.Sources[f] = s
	}
	return c
}

// Point is one observation of a single (ticker, field) series
type Point struct {
	Timestamp time.Time
	Value     float64
}

// Table is the canonical tidy series table: one row per (timestamp, ticker),
// one column per canonical field. Rows are kept sorted by (timestamp,
// ticker); Append marks the table dirty and the next read re-sorts.
type Table struct {
	fields []schema.Field
	rows   []*Row
	index  map[Key]int
	dirty  bool
}

// New creates an empty table with the given column set
func New(fields ...schema.Field) *Table {
	t := &Table{
		fields: append([]schema.Field(nil), fields...),
		index:  make(map[Key]int),
	}
	sort.Slice(t.fields, func(i, j int) bool { return t.fields[i] < t.fields[j] })
	return t
}

// Fields returns the table's column set in stable order
func (t *Table) Fields() []schema.Field {
	return append([]schema.Field(nil), t.fields...)
}

// HasField reports whether the table carries the given column
func (t *Table) HasField(f schema.Field) bool {
	for _, field := range t.fields {
		if field == f {
			return true
		}
	}
	return false
}

// AddField adds a column if not present
func (t *Table) AddField(f schema.Field) {
	if t.HasField(f) {
		return
	}
	t.fields = append(t.fields, f)
	sort.Slice(t.fields, func(i, j int) bool { return t.fields[i] < t.fields[j] })
}

// Len returns the number of rows
func (t *Table) Len() int {
	return len(t.rows)
}

// Append adds a row. Duplicate keys are allowed here; they surface via the
// duplicate-timestamp detector and are resolved by the repair engine.
func (t *Table) Append(r *Row) {
	inOrder := len(t.rows) == 0 || !rowLess(r, t.rows[len(t.rows)-1])
	t.rows = append(t.rows, r)
	if _, exists := t.index[r.Key()]; !exists {
		t.index[r.Key()] = len(t.rows) - 1
	}
	if !inOrder {
		t.dirty = true
	}
}

func rowLess(a, b *Row) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}
	return a.Ticker < b.Ticker
}

// RowAt returns the first row for the key, if any
func (t *Table) RowAt(ts time.Time, ticker string) (*Row, bool) {
	t.ensureSorted()
	i, ok := t.index[Key{Timestamp: ts, Ticker: ticker}]
	if !ok {
		return nil, false
	}
	return t.rows[i], true
}

// Set stores a cell, creating the row if needed
func (t *Table) Set(ts time.Time, ticker string, field schema.Field, value float64, source string) {
	t.AddField(field)
	if row, ok := t.RowAt(ts, ticker); ok {
		row.Set(field, value, source)
		return
	}
	row := NewRow(ts, ticker)
	row.Set(field, value, source)
	t.Append(row)
}

// Value returns the cell at (ts, ticker, field)
func (t *Table) Value(ts time.Time, ticker string, field schema.Field) (float64, bool) {
	row, ok := t.RowAt(ts, ticker)
	if !ok {
		return 0, false
	}
	return row.Value(field)
}

// Rows returns the sorted row slice. Callers must not reorder it.
func (t *Table) Rows() []*Row {
	t.ensureSorted()
	return t.rows
}

// Tickers returns the sorted set of tickers present
func (t *Table) Tickers() []string {
	seen := make(map[string]struct{})
	for _, r := range t.rows {
		seen[r.Ticker] = struct{}{}
	}
	tickers := make([]string, 0, len(seen))
	for tk := range seen {
		tickers = append(tickers, tk)
	}
	sort.Strings(tickers)
	return tickers
}

// Series returns the observed points of one (ticker, field) series in
// timestamp order. Missing cells are skipped.
func (t *Table) Series(ticker string, field schema.Field) []Point {
	t.ensureSorted()
	var pts []Point
	for _, r := range t.rows {
		if r.Ticker != ticker {
			continue
		}
		if v, ok := r.Value(field); ok {
			pts = append(pts, Point{Timestamp: r.Timestamp, Value: v})
		}
	}
	return pts
}

// Timestamps returns the sorted row timestamps for a ticker
func (t *Table) Timestamps(ticker string) []time.Time {
	t.ensureSorted()
	var ts []time.Time
	for _, r := range t.rows {
		if r.Ticker == ticker {
			ts = append(ts, r.Timestamp)
		}
	}
	return ts
}

// Merge folds src into t on the (timestamp, ticker) key. Existing cells win:
// the orchestrator merges adapter results in descending priority order, so
// the first writer for a cell is the highest-priority source. New fields and
// rows are adopted from src.
func (t *Table) Merge(src *Table) {
	for _, f := range src.fields {
		t.AddField(f)
	}
	for _, r := range src.Rows() {
		dst, ok := t.RowAt(r.Timestamp, r.Ticker)
		if !ok {
			t.Append(r.Clone())
			continue
		}
		for f, v := range r.Values {
			if _, taken := dst.Values[f]; !taken {
				dst.Set(f, v, r.Sources[f])
			}
		}
	}
}

// Validate checks the structural invariants: unique (timestamp, ticker)
// keys and strictly increasing timestamps within each ticker. A violation
// after merge indicates an orchestrator defect upstream.
func (t *Table) Validate() error {
	t.ensureSorted()
	for i := 1; i < len(t.rows); i++ {
		prev, cur := t.rows[i-1], t.rows[i]
		if prev.Ticker == cur.Ticker && prev.Timestamp.Equal(cur.Timestamp) {
			return fmt.Errorf("non-unique index: duplicate key (%s, %s)",
				cur.Timestamp.Format(time.RFC3339), cur.Ticker)
		}
	}
	return nil
}

// Clone deep-copies the table
func (t *Table) Clone() *Table {
	c := New(t.fields...)
	for _, r := range t.Rows() {
		c.Append(r.Clone())
	}
	return c
}

// sort order: timestamp then ticker, independent of fetch completion order
func (t *Table) ensureSorted() {
	if !t.dirty {
		return
	}
	sort.SliceStable(t.rows, func(i, j int) bool { return rowLess(t.rows[i], t.rows[j]) })
	t.index = make(map[Key]int, len(t.rows))
	for i, r := range t.rows {
		if _, exists := t.index[r.Key()]; !exists {
			t.index[r.Key()] = i
		}
	}
	t.dirty = false
}

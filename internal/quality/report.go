package quality

import (
	"fmt"
	"sort"
	"time"

	"cryptodata/internal/schema"
)

// DefectKind enumerates the quality defect classes scoped to financial and
// crypto time series
type DefectKind string

const (
	DefectOutlier            DefectKind = "outlier"
	DefectStaleRepeat        DefectKind = "stale_repeat"
	DefectMissingValue       DefectKind = "missing_value"
	DefectMissingBar         DefectKind = "missing_bar"
	DefectNonPositive        DefectKind = "non_positive_price"
	DefectDuplicateTimestamp DefectKind = "duplicate_timestamp"
)

// Evidence carries the statistical support for a defect
type Evidence struct {
	Value     float64 `json:"value,omitempty"`
	ZScore    float64 `json:"z_score,omitempty"`
	Median    float64 `json:"median,omitempty"`
	MAD       float64 `json:"mad,omitempty"`
	RunLength int     `json:"run_length,omitempty"`
}

// Defect is one detected quality issue. Defects are immutable once
// produced: repairs reference them, they never alter them.
type Defect struct {
	Ticker    string     `json:"ticker"`
	Field     schema.Field `json:"field"`
	Timestamp time.Time  `json:"timestamp"`
	// EndTimestamp is set for run/range defects (gaps, stale runs)
	EndTimestamp time.Time  `json:"end_timestamp,omitempty"`
	Kind         DefectKind `json:"kind"`
	Severity     float64    `json:"severity"`
	Evidence     Evidence   `json:"evidence"`
}

// Key uniquely identifies a defect; re-running detection on the same table
// produces the same key set.
func (d Defect) Key() string {
	return fmt.Sprintf("%s|%s|%d|%s", d.Ticker, d.Field, d.Timestamp.UnixNano(), d.Kind)
}

// Report is the concatenated output of all detectors, deduplicated by key
// and deterministically ordered.
type Report struct {
	Defects []Defect `json:"defects"`
}

// NewReport builds a report from raw detector output
func NewReport(defects []Defect) Report {
	seen := make(map[string]struct{}, len(defects))
	unique := make([]Defect, 0, len(defects))
	for _, d := range defects {
		key := d.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, d)
	}
	sort.Slice(unique, func(i, j int) bool {
		a, b := unique[i], unique[j]
		if a.Ticker != b.Ticker {
			return a.Ticker < b.Ticker
		}
		if a.Field != b.Field {
			return a.Field < b.Field
		}
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return a.Kind < b.Kind
	})
	return Report{Defects: unique}
}

// Len returns the number of defects
func (r Report) Len() int {
	return len(r.Defects)
}

// CountByKind tallies defects per kind
func (r Report) CountByKind() map[DefectKind]int {
	counts := make(map[DefectKind]int)
	for _, d := range r.Defects {
		counts[d.Kind]++
	}
	return counts
}

// ForSeries returns the defects of one (ticker, field) series
func (r Report) ForSeries(ticker string, field schema.Field) []Defect {
	var out []Defect
	for _, d := range r.Defects {
		if d.Ticker == ticker && d.Field == field {
			out = append(out, d)
		}
	}
	return out
}

package quality

import (
	"cryptodata/internal/request"
	"cryptodata/internal/table"
)

// StaleDetector flags runs of consecutive identical values longer than the
// configured run length. Feeds that go stale keep republishing the last
// print, which a naive consumer mistakes for a live market.
type StaleDetector struct {
	runLength int
}

// NewStaleDetector creates a stale-repeat detector; runs strictly longer
// than runLength are flagged.
func NewStaleDetector(runLength int) *StaleDetector {
	if runLength < 2 {
		runLength = 2
	}
	return &StaleDetector{runLength: runLength}
}

func (d *StaleDetector) Name() string { return "stale_repeat" }

// Detect emits one defect per stale run, anchored at the run's first repeat
func (d *StaleDetector) Detect(tbl *table.Table, _ *request.Request) []Defect {
	var defects []Defect
	for _, field := range tbl.Fields() {
		for _, ticker := range tbl.Tickers() {
			series := tbl.Series(ticker, field)
			i := 0
			for i < len(series) {
				j := i + 1
				for j < len(series) && series[j].Value == series[i].Value {
					j++
				}
				run := j - i
				if run > d.runLength {
					defects = append(defects, Defect{
						Ticker:       ticker,
						Field:        field,
						Timestamp:    series[i].Timestamp,
						EndTimestamp: series[j-1].Timestamp,
						Kind:         DefectStaleRepeat,
						Severity:     staleSeverity(run, d.runLength),
						Evidence: Evidence{
							Value:     series[i].Value,
							RunLength: run,
						},
					})
				}
				i = j
			}
		}
	}
	return defects
}

// staleSeverity grows with run length past the threshold, saturating at
// three thresholds
func staleSeverity(run, threshold int) float64 {
	s := float64(run) / float64(3*threshold)
	if s > 1 {
		return 1
	}
	return s
}

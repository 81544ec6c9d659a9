package quality

import (
	"time"

	"cryptodata/internal/request"
	"cryptodata/internal/schema"
	"cryptodata/internal/table"
)

// GapDetector compares each (ticker, field) series against the expected bar
// grid and classifies missing runs. Runs short enough to bridge are
// missing_value defects, one per absent bar; longer runs become a single
// missing_bar defect spanning the whole hole.
//
// The grid spans [first observation, last observation] of each series, so a
// ticker listed mid-range is not penalized for bars before it existed.
type GapDetector struct {
	maxGap int
	cal    Calendar
}

// NewGapDetector creates a gap detector. maxGap is the longest run of
// missing bars still classified as interpolatable missing values; a nil
// calendar defaults per request category.
func NewGapDetector(maxGap int, cal Calendar) *GapDetector {
	return &GapDetector{maxGap: maxGap, cal: cal}
}

func (d *GapDetector) Name() string { return "gap" }

// Detect walks the expected grid of every series and classifies missing
// runs
func (d *GapDetector) Detect(tbl *table.Table, req *request.Request) []Defect {
	freq := schema.FreqDaily
	cal := d.cal
	if req != nil {
		freq = req.Freq()
		if cal == nil {
			cal = CalendarFor(req.Category(), freq)
		}
	}
	if freq == schema.FreqTick {
		return nil
	}

	var defects []Defect
	for _, field := range tbl.Fields() {
		for _, ticker := range tbl.Tickers() {
			series := tbl.Series(ticker, field)
			if len(series) < 2 {
				continue
			}
			present := make(map[int64]struct{}, len(series))
			for _, p := range series {
				present[p.Timestamp.UnixNano()] = struct{}{}
			}
			grid := ExpectedGrid(series[0].Timestamp, series[len(series)-1].Timestamp, freq, cal)
			defects = append(defects, d.classify(ticker, field, grid, present)...)
		}
	}
	return defects
}

// classify groups consecutive missing grid bars into runs and emits the
// defects for each run
func (d *GapDetector) classify(ticker string, field schema.Field, grid []time.Time, present map[int64]struct{}) []Defect {
	var defects []Defect
	i := 0
	for i < len(grid) {
		if _, ok := present[grid[i].UnixNano()]; ok {
			i++
			continue
		}
		j := i
		for j < len(grid) {
			if _, ok := present[grid[j].UnixNano()]; ok {
				break
			}
			j++
		}
		run := j - i
		if run <= d.maxGap {
			for k := i; k < j; k++ {
				defects = append(defects, Defect{
					Ticker:    ticker,
					Field:     field,
					Timestamp: grid[k],
					Kind:      DefectMissingValue,
					Severity:  0.5,
					Evidence:  Evidence{RunLength: run},
				})
			}
		} else {
			defects = append(defects, Defect{
				Ticker:       ticker,
				Field:        field,
				Timestamp:    grid[i],
				EndTimestamp: grid[j-1],
				Kind:         DefectMissingBar,
				Severity:     1,
				Evidence:     Evidence{RunLength: run},
			})
		}
		i = j
	}
	return defects
}

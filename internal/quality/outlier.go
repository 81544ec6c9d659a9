package quality

import (
	"math"
	"time"

	"cryptodata/internal/request"
	"cryptodata/internal/table"
)

// OutlierDetector flags values whose rolling robust z-score exceeds the
// threshold. The score window holds only observations strictly before the
// candidate, so a spike cannot mask itself by inflating its own window.
//
// A candidate that co-moves with a sibling ticker on the same field is not
// flagged: a jump shared across the cross-section is a market move, not a
// data error.
type OutlierDetector struct {
	window    int
	threshold float64
	minObs    int
}

// NewOutlierDetector creates an outlier detector. window is the number of
// prior observations scored against, threshold the absolute score above
// which a value is flagged, minObs the fewest prior observations required
// before scoring starts.
func NewOutlierDetector(window int, threshold float64, minObs int) *OutlierDetector {
	if minObs < 2 {
		minObs = 2
	}
	if minObs > window {
		minObs = window
	}
	return &OutlierDetector{window: window, threshold: threshold, minObs: minObs}
}

func (d *OutlierDetector) Name() string { return "outlier" }

type scoredPoint struct {
	ts     time.Time
	value  float64
	score  float64
	median float64
	mad    float64
}

// Detect scores every series, then cross-checks candidates against sibling
// tickers before flagging.
func (d *OutlierDetector) Detect(tbl *table.Table, req *request.Request) []Defect {
	tickers := tbl.Tickers()

	var defects []Defect
	for _, field := range tbl.Fields() {
		// score all tickers of a field first so the cross-check sees
		// every sibling's score at each timestamp
		candidates := make(map[string][]scoredPoint, len(tickers))
		flagged := make(map[string]map[int64]float64, len(tickers))
		for _, ticker := range tickers {
			pts := d.score(tbl.Series(ticker, field))
			candidates[ticker] = pts
			marks := make(map[int64]float64)
			for _, p := range pts {
				if math.Abs(p.score) > d.threshold {
					marks[p.ts.UnixNano()] = p.score
				}
			}
			flagged[ticker] = marks
		}

		for _, ticker := range tickers {
			for _, p := range candidates[ticker] {
				score, hot := flagged[ticker][p.ts.UnixNano()]
				if !hot {
					continue
				}
				if d.coMoves(ticker, p.ts, score, flagged) {
					continue
				}
				defects = append(defects, Defect{
					Ticker:    ticker,
					Field:     field,
					Timestamp: p.ts,
					Kind:      DefectOutlier,
					Severity:  severityFromScore(score, d.threshold),
					Evidence: Evidence{
						Value:  p.value,
						ZScore: score,
						Median: p.median,
						MAD:    p.mad,
					},
				})
			}
		}
	}
	return defects
}

// score computes the rolling robust z-score of every point with enough
// history
func (d *OutlierDetector) score(series []table.Point) []scoredPoint {
	var out []scoredPoint
	values := make([]float64, len(series))
	for i, p := range series {
		values[i] = p.Value
	}
	for i, p := range series {
		lo := i - d.window
		if lo < 0 {
			lo = 0
		}
		prior := values[lo:i]
		if len(prior) < d.minObs {
			continue
		}
		med := Median(prior)
		mad := MAD(prior, med)
		out = append(out, scoredPoint{
			ts:     p.Timestamp,
			value:  p.Value,
			score:  RobustScore(p.Value, med, mad),
			median: med,
			mad:    mad,
		})
	}
	return out
}

// coMoves reports whether another ticker is also flagged at ts in the same
// direction
func (d *OutlierDetector) coMoves(ticker string, ts time.Time, score float64, flagged map[string]map[int64]float64) bool {
	for other, marks := range flagged {
		if other == ticker {
			continue
		}
		if sib, ok := marks[ts.UnixNano()]; ok && sameSign(sib, score) {
			return true
		}
	}
	return false
}

func sameSign(a, b float64) bool {
	return (a > 0) == (b > 0)
}

// severityFromScore maps a score to [0, 1] relative to the threshold,
// saturating at three times the threshold
func severityFromScore(score, thresh float64) float64 {
	if thresh <= 0 {
		return 1
	}
	s := math.Abs(score) / (3 * thresh)
	if s > 1 || math.IsInf(score, 0) {
		return 1
	}
	return s
}

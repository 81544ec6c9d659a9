package quality

import (
	"time"

	"cryptodata/internal/schema"
)

// Calendar decides which bar timestamps a series is expected to have.
// Crypto trades continuously; traditional markets skip weekends.
type Calendar interface {
	// Open reports whether a bar is expected at ts
	Open(ts time.Time) bool
}

// AlwaysOpen is the 24/7 calendar used for crypto series
type AlwaysOpen struct{}

func (AlwaysOpen) Open(time.Time) bool { return true }

// Weekdays skips Saturday and Sunday; used for fx, equity, rates and macro
// series observed on business days.
type Weekdays struct{}

func (Weekdays) Open(ts time.Time) bool {
	wd := ts.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// CalendarFor picks the expected-bar calendar for a category and frequency.
// Business-day series always use the weekday calendar regardless of category.
func CalendarFor(cat schema.Category, freq schema.Frequency) Calendar {
	if freq == schema.FreqBizDay {
		return Weekdays{}
	}
	if cat == schema.CategoryCrypto || cat == schema.CategoryAlt {
		return AlwaysOpen{}
	}
	if freq == schema.FreqDaily || freq.Intraday() {
		return Weekdays{}
	}
	return AlwaysOpen{}
}

// nextBar advances ts by one bar of freq. Calendar frequencies step by
// calendar units so month-length drift does not desynchronize the grid.
func nextBar(ts time.Time, freq schema.Frequency) time.Time {
	switch freq {
	case schema.FreqWeekly:
		return ts.AddDate(0, 0, 7)
	case schema.FreqMonthly:
		return ts.AddDate(0, 1, 0)
	case schema.FreqQuarter:
		return ts.AddDate(0, 3, 0)
	case schema.FreqYearly:
		return ts.AddDate(1, 0, 0)
	case schema.FreqDaily, schema.FreqBizDay:
		return ts.AddDate(0, 0, 1)
	default:
		return ts.Add(freq.Duration())
	}
}

// ExpectedGrid enumerates the bar timestamps from start to end inclusive,
// filtered by the calendar. Tick series have no grid.
func ExpectedGrid(start, end time.Time, freq schema.Frequency, cal Calendar) []time.Time {
	if freq == schema.FreqTick || start.After(end) {
		return nil
	}
	if cal == nil {
		cal = AlwaysOpen{}
	}
	var grid []time.Time
	for ts := start; !ts.After(end); ts = nextBar(ts, freq) {
		if cal.Open(ts) {
			grid = append(grid, ts)
		}
	}
	return grid
}

package quality

import (
	"math"
	"sort"
)

// mad-to-sigma consistency constant for normal data
const madScale = 0.6745

// Median returns the sample median; NaN for an empty sample
func Median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return math.NaN()
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// MAD returns the median absolute deviation around med
func MAD(values []float64, med float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	devs := make([]float64, len(values))
	for i, v := range values {
		devs[i] = math.Abs(v - med)
	}
	return Median(devs)
}

// RobustScore is the modified z-score of x against a window summarized by
// (med, mad). A zero MAD means the window is constant: any deviation from
// the median is infinitely surprising.
func RobustScore(x, med, mad float64) float64 {
	if mad == 0 {
		if x == med {
			return 0
		}
		return math.Inf(int(math.Copysign(1, x-med)))
	}
	return madScale * (x - med) / mad
}

// ClipBounds returns the [lo, hi] band outside which a value scores beyond
// thresh. Values clipped onto a bound score exactly thresh and are not
// re-flagged, so repair followed by re-detection converges.
func ClipBounds(med, mad, thresh float64) (lo, hi float64) {
	span := thresh * mad / madScale
	return med - span, med + span
}

// Package stats computes the cohort-level statistics the classification
// rules are built on: interpolated quartiles, IQR-derived acceptable
// ranges and empirical percentile ranks.
package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// MinCohortSize is the smallest cohort for which a quartile split is
// statistically meaningful. Below this the IQR bounds are degenerate.
const MinCohortSize = 4

// Bounds is the acceptable interval derived from the cohort quartiles:
// [Q1 - k*IQR, Q3 + k*IQR] for IQR multiplier k.
type Bounds struct {
	// Lower and Upper delimit the acceptable interval, inclusive.
	Lower float64 `yaml:"lower"`
	Upper float64 `yaml:"upper"`

	// Q1 and Q3 are the first and third quartiles of the finite cohort
	// values. IQR is Q3 - Q1.
	Q1  float64 `yaml:"q1"`
	Q3  float64 `yaml:"q3"`
	IQR float64 `yaml:"iqr"`

	// N is the number of finite values the bounds were estimated from.
	N int `yaml:"n"`

	// Degenerate is true when fewer than MinCohortSize finite values were
	// available. Degenerate bounds are (-Inf, +Inf): outlier detection
	// degrades to a no-op rather than failing samples against a baseline
	// that does not exist.
	Degenerate bool `yaml:"degenerate"`
}

// Contains reports whether v lies inside the acceptable interval.
// Both endpoints are inclusive.
func (b Bounds) Contains(v float64) bool {
	return v >= b.Lower && v <= b.Upper
}

// ComputeBounds derives the IQR-based acceptable interval for one metric
// over a cohort of values. Non-finite values are dropped before the
// quartiles are taken. Fewer than MinCohortSize finite values yields
// degenerate (-Inf, +Inf) bounds. Pure function; the input slice is not
// modified.
func ComputeBounds(values []float64, multiplier float64) Bounds {
	finite := finiteSorted(values)

	if len(finite) < MinCohortSize {
		return Bounds{
			Lower:      math.Inf(-1),
			Upper:      math.Inf(1),
			N:          len(finite),
			Degenerate: true,
		}
	}

	q1 := interpolatedQuantile(finite, 0.25)
	q3 := interpolatedQuantile(finite, 0.75)
	iqr := q3 - q1

	return Bounds{
		Lower: q1 - multiplier*iqr,
		Upper: q3 + multiplier*iqr,
		Q1:    q1,
		Q3:    q3,
		IQR:   iqr,
		N:     len(finite),
	}
}

// interpolatedQuantile evaluates the q-quantile of sorted values by linear
// interpolation between order statistics: position q*(n-1), interpolating
// between the two bracketing sorted values. This is the convention the
// upstream pipeline's numpy-based tooling uses; it differs from gonum's
// stat.Quantile interpolation kinds, and the bounds must reproduce the
// same numbers run over run.
func interpolatedQuantile(sorted []float64, q float64) float64 {
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// PercentileRank places a value within a cohort distribution, returning a
// mid-rank percentile in [0, 100]: the percentage of cohort values below
// v, counting ties as half. An empty cohort yields NaN.
func PercentileRank(v float64, cohort []float64) float64 {
	sorted := finiteSorted(cohort)
	if len(sorted) == 0 {
		return math.NaN()
	}

	lo := sort.SearchFloat64s(sorted, v)
	hi := lo
	for hi < len(sorted) && sorted[hi] == v {
		hi++
	}

	mid := float64(lo) + 0.5*float64(hi-lo)
	return 100 * mid / float64(len(sorted))
}

// Summary holds descriptive statistics for one metric column across the
// cohort, used for report annotations.
type Summary struct {
	// N is the number of finite values summarized.
	N int `yaml:"n"`

	// Mean and StdDev are the sample mean and standard deviation.
	Mean   float64 `yaml:"mean"`
	StdDev float64 `yaml:"stddev"`

	// Median is the interpolated 0.5 quantile.
	Median float64 `yaml:"median"`

	// Min and Max are the extreme finite values.
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Summarize computes descriptive statistics over the finite values of the
// cohort. An empty cohort yields a zero Summary with N == 0.
func Summarize(values []float64) Summary {
	finite := finiteSorted(values)
	if len(finite) == 0 {
		return Summary{}
	}

	mean, std := stat.MeanStdDev(finite, nil)
	if len(finite) == 1 {
		std = 0
	}

	return Summary{
		N:      len(finite),
		Mean:   mean,
		StdDev: std,
		Median: interpolatedQuantile(finite, 0.5),
		Min:    finite[0],
		Max:    finite[len(finite)-1],
	}
}

// finiteSorted returns a sorted copy of the finite values in the input.
func finiteSorted(values []float64) []float64 {
	finite := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	sort.Float64s(finite)
	return finite
}

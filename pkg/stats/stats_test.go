package stats

import (
	"math"
	"testing"
)

const tolerance = 1e-9

// TestComputeBoundsQuartiles verifies the interpolated quartiles and the
// derived interval on a cohort with one extreme outlier.
func TestComputeBoundsQuartiles(t *testing.T) {
	// Sorted: [98, 100, 102, 105, 1000]. Q1 sits at position 1 (100),
	// Q3 at position 3 (105), so IQR = 5 and k=3 gives [85, 120].
	values := []float64{100, 105, 98, 102, 1000}
	b := ComputeBounds(values, 3)

	if b.Degenerate {
		t.Fatal("Bounds should not be degenerate for 5 values")
	}
	if math.Abs(b.Q1-100) > tolerance {
		t.Errorf("Expected Q1 = 100, got %f", b.Q1)
	}
	if math.Abs(b.Q3-105) > tolerance {
		t.Errorf("Expected Q3 = 105, got %f", b.Q3)
	}
	if math.Abs(b.Lower-85) > tolerance {
		t.Errorf("Expected lower bound 85, got %f", b.Lower)
	}
	if math.Abs(b.Upper-120) > tolerance {
		t.Errorf("Expected upper bound 120, got %f", b.Upper)
	}

	if b.Contains(1000) {
		t.Error("1000 should be outside the bounds")
	}
	for _, v := range []float64{98, 100, 102, 105} {
		if !b.Contains(v) {
			t.Errorf("%f should be inside the bounds", v)
		}
	}
}

// TestComputeBoundsInterpolation verifies the linear interpolation between
// order statistics at fractional quartile positions.
func TestComputeBoundsInterpolation(t *testing.T) {
	// For [1,2,3,4] the quartile positions are 0.75 and 2.25, giving
	// Q1 = 1.75 and Q3 = 3.25.
	b := ComputeBounds([]float64{4, 1, 3, 2}, 1)

	if math.Abs(b.Q1-1.75) > tolerance {
		t.Errorf("Expected Q1 = 1.75, got %f", b.Q1)
	}
	if math.Abs(b.Q3-3.25) > tolerance {
		t.Errorf("Expected Q3 = 3.25, got %f", b.Q3)
	}
}

// TestComputeBoundsInvariants verifies the interval identities on a few
// cohorts: lower <= Q1 <= Q3 <= upper and the interval width implied by
// the multiplier.
func TestComputeBoundsInvariants(t *testing.T) {
	cohorts := [][]float64{
		{1, 2, 3, 4},
		{5, 5, 5, 5, 5},
		{0.1, 0.9, 0.4, 0.2, 0.8, 0.35},
		{100, 105, 98, 102, 1000},
	}

	for _, values := range cohorts {
		for _, k := range []float64{1, 1.5, 3} {
			b := ComputeBounds(values, k)

			if b.Lower > b.Q1 || b.Q1 > b.Q3 || b.Q3 > b.Upper {
				t.Errorf("Bound ordering violated for %v k=%f: %+v", values, k, b)
			}

			// Width is (1 + 2k) * IQR by construction.
			wantWidth := (1 + 2*k) * b.IQR
			if math.Abs((b.Upper-b.Lower)-wantWidth) > tolerance {
				t.Errorf("Expected width %f for %v k=%f, got %f", wantWidth, values, k, b.Upper-b.Lower)
			}
		}
	}
}

// TestComputeBoundsDegenerate verifies that cohorts below the minimum
// size yield infinite bounds that cannot fail any sample.
func TestComputeBoundsDegenerate(t *testing.T) {
	for n := 0; n < MinCohortSize; n++ {
		values := make([]float64, n)
		for i := range values {
			values[i] = float64(i)
		}

		b := ComputeBounds(values, 3)
		if !b.Degenerate {
			t.Errorf("Expected degenerate bounds for %d values", n)
		}
		if !math.IsInf(b.Lower, -1) || !math.IsInf(b.Upper, 1) {
			t.Errorf("Expected (-Inf, +Inf) for %d values, got (%f, %f)", n, b.Lower, b.Upper)
		}
		if !b.Contains(1e12) || !b.Contains(-1e12) {
			t.Error("Degenerate bounds should contain everything")
		}
	}
}

// TestComputeBoundsNonFinite verifies that NaN and infinite values are
// excluded before the quartiles are taken.
func TestComputeBoundsNonFinite(t *testing.T) {
	values := []float64{100, math.NaN(), 105, math.Inf(1), 98, 102, math.Inf(-1), 1000}
	b := ComputeBounds(values, 3)

	if b.N != 5 {
		t.Errorf("Expected 5 finite values, got %d", b.N)
	}
	if math.Abs(b.Lower-85) > tolerance || math.Abs(b.Upper-120) > tolerance {
		t.Errorf("Expected bounds [85, 120], got [%f, %f]", b.Lower, b.Upper)
	}

	// All-NaN input degrades to the no-op bounds, not an error.
	b = ComputeBounds([]float64{math.NaN(), math.NaN(), math.NaN(), math.NaN()}, 3)
	if !b.Degenerate || b.N != 0 {
		t.Errorf("Expected degenerate bounds with N=0, got %+v", b)
	}
}

// TestComputeBoundsInputUntouched verifies the input slice is not
// reordered by the computation.
func TestComputeBoundsInputUntouched(t *testing.T) {
	values := []float64{100, 105, 98, 102, 1000}
	ComputeBounds(values, 3)

	want := []float64{100, 105, 98, 102, 1000}
	for i := range want {
		if values[i] != want[i] {
			t.Fatalf("Input slice was modified: %v", values)
		}
	}
}

// TestPercentileRank verifies the mid-rank percentile placement,
// including ties and out-of-range values.
func TestPercentileRank(t *testing.T) {
	cohort := []float64{1, 2, 3, 4, 5}

	cases := []struct {
		value float64
		want  float64
	}{
		{3, 50},   // middle value: 2 below + half of itself
		{5, 90},   // maximum: 4 below + half of itself
		{1, 10},   // minimum
		{0, 0},    // below the whole cohort
		{6, 100},  // above the whole cohort
		{2.5, 40}, // between samples: 2 below, no ties
	}

	for _, tc := range cases {
		got := PercentileRank(tc.value, cohort)
		if math.Abs(got-tc.want) > tolerance {
			t.Errorf("PercentileRank(%f) = %f, want %f", tc.value, got, tc.want)
		}
	}

	// Ties count as half.
	got := PercentileRank(2, []float64{1, 2, 2, 3})
	if math.Abs(got-50) > tolerance {
		t.Errorf("PercentileRank with ties = %f, want 50", got)
	}

	// Empty cohort has no ranks.
	if !math.IsNaN(PercentileRank(1, nil)) {
		t.Error("Expected NaN rank for empty cohort")
	}
}

// TestSummarize verifies the descriptive statistics on a small cohort.
func TestSummarize(t *testing.T) {
	s := Summarize([]float64{4, 1, 3, 2, math.NaN()})

	if s.N != 4 {
		t.Errorf("Expected N = 4, got %d", s.N)
	}
	if math.Abs(s.Mean-2.5) > tolerance {
		t.Errorf("Expected mean 2.5, got %f", s.Mean)
	}
	if math.Abs(s.Median-2.5) > tolerance {
		t.Errorf("Expected median 2.5, got %f", s.Median)
	}
	if s.Min != 1 || s.Max != 4 {
		t.Errorf("Expected min 1 and max 4, got %f and %f", s.Min, s.Max)
	}

	empty := Summarize(nil)
	if empty.N != 0 {
		t.Errorf("Expected empty summary, got %+v", empty)
	}
}

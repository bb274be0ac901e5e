package features

import "math"

// NaN-aware column math matching the semantics the models were trained
// under: rolling windows count only defined values and yield NaN below
// minPeriods, the standard deviation is the sample deviation (and NaN for a
// single value), and shifts/diffs propagate NaN.

// shift returns x displaced k places toward the end; the first k values
// become NaN.
func shift(x []float64, k int) []float64 {
	out := make([]float64, len(x))
	for i := range out {
		if i < k {
			out[i] = math.NaN()
		} else {
			out[i] = x[i-k]
		}
	}
	return out
}

// diff1 returns x[i] - x[i-1] with a leading NaN.
func diff1(x []float64) []float64 {
	out := make([]float64, len(x))
	for i := range out {
		if i == 0 {
			out[i] = math.NaN()
		} else {
			out[i] = x[i] - x[i-1]
		}
	}
	return out
}

// rollingMean computes the trailing-window mean over defined values.
// A position gets NaN when fewer than minPeriods defined values fall in
// its window.
func rollingMean(x []float64, window, minPeriods int) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		sum, n := 0.0, 0
		for j := max(0, i-window+1); j <= i; j++ {
			if !math.IsNaN(x[j]) {
				sum += x[j]
				n++
			}
		}
		if n < minPeriods || n == 0 {
			out[i] = math.NaN()
		} else {
			out[i] = sum / float64(n)
		}
	}
	return out
}

// rollingStd computes the trailing-window sample standard deviation over
// defined values. One defined value is not enough for a sample deviation,
// so those positions are NaN regardless of minPeriods.
func rollingStd(x []float64, window, minPeriods int) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		sum, n := 0.0, 0
		for j := max(0, i-window+1); j <= i; j++ {
			if !math.IsNaN(x[j]) {
				sum += x[j]
				n++
			}
		}
		if n < minPeriods || n < 2 {
			out[i] = math.NaN()
			continue
		}
		mean := sum / float64(n)
		ss := 0.0
		for j := max(0, i-window+1); j <= i; j++ {
			if !math.IsNaN(x[j]) {
				d := x[j] - mean
				ss += d * d
			}
		}
		out[i] = math.Sqrt(ss / float64(n-1))
	}
	return out
}

// fillForward replaces each NaN with the most recent defined value.
func fillForward(x []float64) []float64 {
	out := make([]float64, len(x))
	last := math.NaN()
	for i, v := range x {
		if !math.IsNaN(v) {
			last = v
		}
		out[i] = last
	}
	return out
}

// fillBackward replaces each NaN with the next defined value.
func fillBackward(x []float64) []float64 {
	out := make([]float64, len(x))
	next := math.NaN()
	for i := len(x) - 1; i >= 0; i-- {
		if !math.IsNaN(x[i]) {
			next = x[i]
		}
		out[i] = next
	}
	return out
}

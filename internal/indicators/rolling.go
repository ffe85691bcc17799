package indicators

import (
	"math"

	"github.com/wonny/tickerflow/internal/contracts"
)

// RollingMean returns mean(values[i-window+1..i]) for every i.
// Positions before the first full window, and windows containing a null, are NaN.
func RollingMean(values []float64, window int) []float64 {
	out := nullSlice(len(values))
	if window <= 0 {
		return out
	}

	for i := window - 1; i < len(values); i++ {
		sum := 0.0
		ok := true
		for _, v := range values[i-window+1 : i+1] {
			if contracts.IsNull(v) {
				ok = false
				break
			}
			sum += v
		}
		if ok {
			out[i] = sum / float64(window)
		}
	}
	return out
}

// RollingSampleStd returns the sample standard deviation (n-1 denominator)
// over each full window. Same NaN rules as RollingMean.
func RollingSampleStd(values []float64, window int) []float64 {
	out := nullSlice(len(values))
	if window < 2 {
		return out
	}

	means := RollingMean(values, window)
	for i := window - 1; i < len(values); i++ {
		mean := means[i]
		if contracts.IsNull(mean) {
			continue
		}
		ss := 0.0
		for _, v := range values[i-window+1 : i+1] {
			d := v - mean
			ss += d * d
		}
		out[i] = math.Sqrt(ss / float64(window-1))
	}
	return out
}

// PctReturns returns r[k] = values[k]/values[k-1] - 1 aligned to values.
// r[0] is NaN, as is any return touching a null or zero previous value.
func PctReturns(values []float64) []float64 {
	out := nullSlice(len(values))
	for k := 1; k < len(values); k++ {
		prev, cur := values[k-1], values[k]
		if contracts.IsNull(prev) || contracts.IsNull(cur) || prev == 0 {
			continue
		}
		out[k] = cur/prev - 1
	}
	return out
}

func closes(rows []contracts.Row) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = r.Close
	}
	return out
}

func nullSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = contracts.Null()
	}
	return out
}

package replay

import (
	"math"
)

const minPrecision = 1e-8

// Interpolate synthesizes n evaluation values leading from orig to y along
// a geometric path shifted just below min(orig, y). The k-th value sits at
// fraction k/n of the way in log space, so the last one is exactly y.
// The sequence is cut right after the first value within precision of
// target.
func Interpolate(orig, y float64, n int, precision, target float64) []float64 {
	if n <= 0 {
		return nil
	}
	if precision <= 0 {
		precision = minPrecision
	}

	ys := make([]float64, 0, n)
	if math.IsInf(orig, 0) || math.IsNaN(orig) || math.IsInf(y, 0) || math.IsNaN(y) {
		for k := 0; k < n; k++ {
			ys = append(ys, y)
		}
		return truncate(ys, precision, target)
	}

	// Both endpoints must stay strictly above base for the logs to exist
	base := math.Min(orig, y) - precision
	for shift := 1; base == orig || base == y; shift++ {
		base -= precision * math.Exp2(float64(shift))
	}

	lo := math.Log(orig - base)
	hi := math.Log(y - base)
	for k := 1; k < n; k++ {
		t := float64(k) / float64(n)
		ys = append(ys, math.Exp(lo+(hi-lo)*t)+base)
	}
	ys = append(ys, y)

	return truncate(ys, precision, target)
}

func truncate(ys []float64, precision, target float64) []float64 {
	for i, v := range ys {
		if v-target < precision {
			return ys[:i+1]
		}
	}
	return ys
}

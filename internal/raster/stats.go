package raster

import "math"

// accumulator keeps running min/max/mean over the valid samples of a band.
type accumulator struct {
	noData *float64
	count  int64
	sum    float64
	min    float64
	max    float64
}

func newAccumulator(noData *float64) *accumulator {
	return &accumulator{noData: noData, min: math.Inf(1), max: math.Inf(-1)}
}

func (a *accumulator) add(v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return
	}
	if a.noData != nil && v == *a.noData {
		return
	}
	a.count++
	a.sum += v
	if v < a.min {
		a.min = v
	}
	if v > a.max {
		a.max = v
	}
}

// apply copies the statistics onto b; a band without valid samples keeps
// nil statistics.
func (a *accumulator) apply(b *Band) {
	if a.count == 0 {
		return
	}
	min, max, mean := a.min, a.max, a.sum/float64(a.count)
	b.Min, b.Max, b.Mean = &min, &max, &mean
}

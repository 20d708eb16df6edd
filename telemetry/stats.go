package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// CoverageThreshold is the trail intensity above which a cell counts as
// covered.
const CoverageThreshold = 0.05

// FieldStats summarises the trail field at one point in time.
// Intensity is r+g+b per cell, the quantity agents sense.
type FieldStats struct {
	Frame     uint64 `csv:"frame"`
	FieldSize int    `csv:"field_size"`
	Agents    int    `csv:"agents"`

	Mean     float64 `csv:"mean"`
	Std      float64 `csv:"std"`
	Max      float64 `csv:"max"`
	P50      float64 `csv:"p50"`
	P90      float64 `csv:"p90"`
	Coverage float64 `csv:"coverage"` // fraction of cells above CoverageThreshold

	// Per-channel means
	MeanR float64 `csv:"mean_r"`
	MeanG float64 `csv:"mean_g"`
	MeanB float64 `csv:"mean_b"`
}

// Percentile calculates the p-th percentile of a sorted slice.
// p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	// Linear interpolation
	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// ComputeFieldStats computes statistics of an RGBA float field readback.
// pix holds size*size*4 values.
func ComputeFieldStats(pix []float32, size int) FieldStats {
	s := FieldStats{FieldSize: size}
	n := size * size
	if n == 0 || len(pix) < n*4 {
		return s
	}

	intensity := make([]float64, n)
	var sumR, sumG, sumB float64
	covered := 0
	for i := range n {
		r, g, b := float64(pix[i*4]), float64(pix[i*4+1]), float64(pix[i*4+2])
		sumR += r
		sumG += g
		sumB += b
		v := r + g + b
		intensity[i] = v
		if v > CoverageThreshold {
			covered++
		}
	}

	s.Mean, s.Std = stat.PopMeanStdDev(intensity, nil)
	s.Max = floats.Max(intensity)
	s.Coverage = float64(covered) / float64(n)
	s.MeanR = sumR / float64(n)
	s.MeanG = sumG / float64(n)
	s.MeanB = sumB / float64(n)

	sort.Float64s(intensity)
	s.P50 = Percentile(intensity, 0.50)
	s.P90 = Percentile(intensity, 0.90)
	return s
}

// LogValue implements slog.LogValuer for structured logging.
func (s FieldStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("frame", s.Frame),
		slog.Int("field_size", s.FieldSize),
		slog.Int("agents", s.Agents),
		slog.Float64("mean", s.Mean),
		slog.Float64("std", s.Std),
		slog.Float64("max", s.Max),
		slog.Float64("p50", s.P50),
		slog.Float64("p90", s.P90),
		slog.Float64("coverage", s.Coverage),
	)
}

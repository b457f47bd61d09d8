package reideval

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Distribution summarises a sample of similarity scores for plotting
type Distribution struct {
	Count  int     `json:"count" yaml:"count"`
	Mean   float64 `json:"mean" yaml:"mean"`
	StdDev float64 `json:"std_dev" yaml:"std_dev"`
	Min    float64 `json:"min" yaml:"min"`
	Max    float64 `json:"max" yaml:"max"`
	// Edges holds bins+1 equal width bin edges over [Min, Max]
	Edges []float64 `json:"edges" yaml:"edges"`
	// Density is the histogram normalised so its area is one
	Density []float64 `json:"density" yaml:"density"`
}

// Summarize returns the moments and a density normalised histogram of the
// samples using the given number of equal width bins
func Summarize(samples []float64, bins int) (Distribution, error) {

	if bins <= 0 {
		return Distribution{}, fmt.Errorf("%w: bins must be positive, got %d",
			ErrInvalidArgument, bins)
	}

	if len(samples) == 0 {
		return Distribution{}, fmt.Errorf("%w: no samples to summarise", ErrEmptyResult)
	}

	for i, v := range samples {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Distribution{}, fmt.Errorf("%w: sample %d is %v", ErrInvalidArgument, i, v)
		}
	}

	x := slices.Clone(samples)
	slices.Sort(x)

	lo, hi := x[0], x[len(x)-1]

	if hi == lo {
		hi = lo + 1e-9
	}

	edges := make([]float64, bins+1)
	floats.Span(edges, lo, hi)

	// histogram bins are half open, let the maximum land in the last one
	dividers := slices.Clone(edges)
	dividers[bins] = math.Nextafter(hi, math.Inf(1))

	counts := stat.Histogram(make([]float64, bins), dividers, x, nil)

	width := (hi - lo) / float64(bins)
	density := make([]float64, bins)

	for i, c := range counts {
		density[i] = c / (float64(len(x)) * width)
	}

	mean, std := stat.MeanStdDev(x, nil)

	if len(x) == 1 {
		std = 0
	}

	return Distribution{
		Count:   len(x),
		Mean:    mean,
		StdDev:  std,
		Min:     x[0],
		Max:     x[len(x)-1],
		Edges:   edges,
		Density: density,
	}, nil
}

// Separation describes how well two similarity distributions are pulled apart
type Separation struct {
	// MeanGap is the positive mean minus the negative mean
	MeanGap float64 `json:"mean_gap" yaml:"mean_gap"`
	// DPrime is the mean gap over the pooled standard deviation
	DPrime float64 `json:"d_prime" yaml:"d_prime"`
	// NegAbovePosMean is the share of negative scores at or above the
	// positive mean
	NegAbovePosMean float64 `json:"neg_above_pos_mean" yaml:"neg_above_pos_mean"`
}

// Separate compares a positive and negative similarity sample
func Separate(pos, neg []float64) (Separation, error) {

	if len(pos) == 0 || len(neg) == 0 {
		return Separation{}, fmt.Errorf("%w: need positive and negative samples",
			ErrEmptyResult)
	}

	pMean, pVar := stat.MeanVariance(pos, nil)
	nMean, nVar := stat.MeanVariance(neg, nil)

	// a single sample has no spread
	if len(pos) == 1 {
		pVar = 0
	}

	if len(neg) == 1 {
		nVar = 0
	}

	sep := Separation{MeanGap: pMean - nMean}

	if pooled := math.Sqrt((pVar + nVar) / 2); pooled > 0 {
		sep.DPrime = sep.MeanGap / pooled
	}

	above := 0

	for _, v := range neg {
		if v >= pMean {
			above++
		}
	}

	sep.NegAbovePosMean = float64(above) / float64(len(neg))

	return sep, nil
}

package core

import (
	"math"

	"github.com/montanaflynn/stats"
)

// -----------------------------------------------------------------------------

// CalculateMeanStd returns the mean and population standard deviation, both
// zero for an empty series.
func CalculateMeanStd(data []float64) (float64, float64) {
	if len(data) == 0 {
		return 0, 0
	}
	mean, _ := stats.Mean(data)
	std, _ := stats.StandardDeviationPopulation(data)
	return mean, std
}

// -----------------------------------------------------------------------------

// CalculateCorrelation computes the Pearson coefficient of two equal-length
// series; zero when either series is constant or shorter than two points.
func CalculateCorrelation(x, y []float64) float64 {
	if len(x) != len(y) || len(x) < 2 {
		return 0
	}

	r, err := stats.Correlation(x, y)
	if err != nil || math.IsNaN(r) {
		return 0
	}
	return math.Max(-1, math.Min(1, r))
}

// -----------------------------------------------------------------------------

// CalculateZScore calculates Z-Score (Standard Score).
func CalculateZScore(value, mean, std float64) float64 {
	if std == 0 {
		return 0.0
	}
	return (value - mean) / std
}

package common

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Basic numeric helpers shared across the analysis packages, using gonum
// for the statistical parts.

// WeightedMean calculates the weighted arithmetic mean using gonum.
// A nil weight slice degrades to the plain mean; mismatched lengths return 0.
func WeightedMean(data, weights []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	if weights == nil {
		return stat.Mean(data, nil)
	}
	if len(weights) != len(data) {
		return 0.0
	}
	return stat.Mean(data, weights)
}

// RMS calculates root mean square
func RMS(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}

	sumSquares := 0.0
	for _, val := range data {
		sumSquares += val * val
	}

	return math.Sqrt(sumSquares / float64(len(data)))
}

// Energy calculates the mean power (mean of squared samples)
func Energy(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}

	sumSquares := 0.0
	for _, val := range data {
		sumSquares += val * val
	}

	return sumSquares / float64(len(data))
}

// Clamp constrains a value to a range
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// IsPowerOfTwo checks if n is a power of 2
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// NextPowerOfTwo finds the next power of 2 >= n
func NextPowerOfTwo(n int) int {
	if n <= 0 {
		return 1
	}

	power := 1
	for power < n {
		power <<= 1
	}
	return power
}

// ParabolicPeak refines an integer extremum position by fitting a parabola
// through data[idx-1..idx+1]. Returns the refined position and the curvature
// coefficient of the fit (negative for a maximum, positive for a minimum).
// Edge positions are returned unrefined with zero curvature.
func ParabolicPeak(data []float64, idx int) (pos, curvature float64) {
	if idx <= 0 || idx >= len(data)-1 {
		return float64(idx), 0
	}

	y1 := data[idx-1]
	y2 := data[idx]
	y3 := data[idx+1]

	a := (y1 - 2*y2 + y3) / 2
	b := (y3 - y1) / 2

	if a == 0 {
		return float64(idx), 0
	}

	xPeak := -b / (2 * a)

	return float64(idx) + xPeak, a
}

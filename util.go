package main

import (
	"math"
	"math/rand/v2"
)

// Clamp restricts v to [min, max]
func Clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// Distance returns the distance between two points
func Distance(x1, y1, x2, y2 float64) float64 {
	dx := x2 - x1
	dy := y2 - y1
	return math.Sqrt(dx*dx + dy*dy)
}

// finite reports whether every value is a real number (no NaN or Inf)
func finite(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// randomColor picks an RGB triple, each channel in [0, 255]
func randomColor() [3]int {
	return [3]int{rand.IntN(256), rand.IntN(256), rand.IntN(256)}
}

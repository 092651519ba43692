package triad

import (
	"math"

	"golang.org/x/exp/constraints"
)

const Epsilon = 1e-8

var (
	Infinity         = math.Inf(1)
	NegativeInfinity = math.Inf(-1)
)

func Eq[F constraints.Float](a, b, tol F) bool {
	if a == b {
		return true
	}
	return F(math.Abs(float64(a-b))) <= tol
}

func Leq[F constraints.Float](a, b, tol F) bool {
	return a <= b+tol
}

func Geq[F constraints.Float](a, b, tol F) bool {
	return a+tol >= b
}

func IsPositiveInfinity(v float64) bool {
	return math.IsInf(v, 1)
}

func IsNegativeInfinity(v float64) bool {
	return math.IsInf(v, -1)
}

// Saturate maps values beyond ±limit to the corresponding infinity. Solver
// APIs often use a large finite sentinel (1e30, 1e20) for infinite bounds.
func Saturate(v, limit float64) float64 {
	switch {
	case v >= limit:
		return Infinity
	case v <= -limit:
		return NegativeInfinity
	}
	return v
}

// Clamp replaces infinities with ±limit.
func Clamp(v, limit float64) float64 {
	return math.Max(-limit, math.Min(limit, v))
}

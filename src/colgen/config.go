package colgen

import (
	"math"

	"lp_colgen/src/model"
	"lp_colgen/src/solver"
	"lp_colgen/src/triad"
)

type Config struct {
	// MaxIterations bounds the pricing rounds. Zero means no bound.
	MaxIterations int
	// Epsilon is the reduced cost a candidate has to beat.
	Epsilon float64

	// MaximumReducedCost is the initial removal threshold. It shrinks by
	// ShrinkFactor, never below MinimumReducedCost, while more than
	// MaxColumns columns are live after a removal pass.
	MaximumReducedCost float64
	ShrinkFactor       float64
	MinimumReducedCost float64
	MaxColumns         int
	// RemoveEvery runs a removal pass every that many iterations. Zero
	// disables removal.
	RemoveEvery int

	FixingRounds int
	FixingBar    float64
	// FixFallback is the value the best column needs to be fixed when no
	// column reaches FixingBar.
	FixFallback float64

	ColumnDomain model.Domain
	ColumnUpper  float64

	Solver *solver.Config
}

func DefaultConfig() Config {
	return Config{
		MaxIterations:      200,
		Epsilon:            1e-6,
		MaximumReducedCost: 100,
		ShrinkFactor:       2.0 / 3.0,
		MinimumReducedCost: 5,
		MaxColumns:         1000,
		RemoveEvery:        10,
		FixingRounds:       0,
		FixingBar:          0.9,
		FixFallback:        1e-3,
		ColumnDomain:       model.Integer,
		ColumnUpper:        triad.Infinity,
		Solver:             solver.NewConfig(),
	}
}

// shrink floors the threshold before scaling it. The epsilon keeps 99·2/3
// at 66 like integer arithmetic would.
func (cfg *Config) shrink(threshold float64) float64 {
	return math.Max(math.Floor(math.Floor(threshold)*cfg.ShrinkFactor+triad.Epsilon), cfg.MinimumReducedCost)
}

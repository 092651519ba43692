package triad

import (
	"slices"

	"lp_colgen/src/model"
)

// Feasibility returns a copy of m with a zero objective that keeps only the
// given rows, in the given order. Column j keeps its lower bound when
// lower[j] is set and its upper bound when upper[j] is set; dropped bounds
// become infinite. Rows of the copy record their index in m as origin.
func (m *Model) Feasibility(rows []int, lower, upper []bool) *Model {
	f := &Model{
		Name:      m.Name + "-feasibility",
		Variables: slices.Clone(m.Variables),
		Objective: Objective{
			Category:     model.Minimize,
			Coefficients: make([]float64, len(m.Variables)),
		},
	}
	for j := range f.Variables {
		if !lower[j] {
			f.Variables[j].Lower = NegativeInfinity
		}
		if !upper[j] {
			f.Variables[j].Upper = Infinity
		}
	}
	f.Constraints.Starts = []int{0}
	for _, i := range rows {
		f.Constraints.add(slices.Clone(m.Constraints.Row(i)), m.Constraints.Signs[i], m.Constraints.RHS[i],
			m.Constraints.Names[i], i, Feasibility)
	}
	return f
}

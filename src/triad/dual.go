package triad

import (
	"github.com/pkg/errors"

	"lp_colgen/src/model"
)

// Normalized reports whether every column is x >= 0, x <= 0 or free.
func (m *Model) Normalized() bool {
	for i := range m.Variables {
		v := &m.Variables[i]
		if !(IsNegativeInfinity(v.Lower) || v.Lower == 0) || !(IsPositiveInfinity(v.Upper) || v.Upper == 0) {
			return false
		}
		if v.Lower == 0 && v.Upper == 0 {
			return false
		}
	}
	return true
}

// Normalize moves every bound that is neither infinite nor zero into a row
// named <column>_lb or <column>_ub. A column fixed at zero keeps x >= 0 and
// gets its upper bound as a row.
func (m *Model) Normalize() {
	for j := range m.Variables {
		v := &m.Variables[j]
		if !(IsNegativeInfinity(v.Lower) || v.Lower == 0) {
			m.Constraints.add(
				[]Cell{{Col: j, Coefficient: 1}}, model.GreaterEqual, v.Lower,
				v.Name+"_lb", j, LowerBound,
			)
			v.Lower = NegativeInfinity
		}
		if !(IsPositiveInfinity(v.Upper) || v.Upper == 0) || (v.Lower == 0 && v.Upper == 0) {
			m.Constraints.add(
				[]Cell{{Col: j, Coefficient: 1}}, model.LessEqual, v.Upper,
				v.Name+"_ub", j, UpperBound,
			)
			v.Upper = Infinity
		}
	}
}

// Dual returns the LP dual of a normalized model. Row i of m becomes
// column i of the dual and column j becomes row j.
func (m *Model) Dual() (*Model, error) {
	if !m.Normalized() {
		return nil, ErrNotNormalized
	}
	if m.Objective.IsQuadratic() {
		return nil, ErrQuadratic
	}
	minimize := m.Objective.Category == model.Minimize

	d := &Model{
		Name: m.Name + "-dual",
		Objective: Objective{
			Category: m.Objective.Category.Reverse(),
			Constant: m.Objective.Constant,
		},
	}
	for i := 0; i < m.Constraints.Len(); i++ {
		lower, upper := NegativeInfinity, Infinity
		switch sign := m.Constraints.Signs[i]; {
		case sign == model.GreaterEqual && minimize, sign == model.LessEqual && !minimize:
			lower = 0
		case sign == model.LessEqual && minimize, sign == model.GreaterEqual && !minimize:
			upper = 0
		}
		d.addVariable(Variable{
			Name:   m.Constraints.Names[i] + "_dual",
			Domain: model.Continuous,
			Lower:  lower,
			Upper:  upper,
			Origin: i,
			Source: Dual,
		})
		d.Objective.Coefficients[i] = m.Constraints.RHS[i]
	}

	d.Constraints.Starts = []int{0}
	for j, col := range m.Columns() {
		v := &m.Variables[j]
		var sign Sign
		switch {
		case v.Free():
			sign = model.Equal
		case v.Lower == 0:
			sign = model.LessEqual
		default:
			sign = model.GreaterEqual
		}
		if !minimize && sign != model.Equal {
			if sign == model.LessEqual {
				sign = model.GreaterEqual
			} else {
				sign = model.LessEqual
			}
		}
		cells := make([]Cell, len(col))
		for k, c := range col {
			cells[k] = Cell{Col: c.Row, Coefficient: c.Coefficient}
		}
		d.Constraints.add(cells, sign, m.Objective.Coefficients[j], v.Name+"_dual", j, Dual)
	}

	if err := d.Validate(); err != nil {
		return nil, errors.Wrap(err, "dual")
	}
	return d, nil
}

package triad

import (
	"fmt"
	"slices"

	"lp_colgen/src/model"
)

// ElasticTier selects what an elastic copy may violate.
type ElasticTier int

const (
	// ElasticBounds relaxes finite column bounds only.
	ElasticBounds ElasticTier = iota
	// ElasticInequalities relaxes bounds and inequality rows.
	ElasticInequalities
	// ElasticAll relaxes bounds and every row.
	ElasticAll
)

func (t ElasticTier) String() string {
	return [...]string{"bounds", "inequalities", "all"}[t]
}

// Elastic returns a copy of m where the parts selected by tier can be
// violated through non-negative slack columns. The copy minimizes the sum of
// slacks. m is not modified.
func (m *Model) Elastic(tier ElasticTier) *Model {
	e := &Model{
		Name:      fmt.Sprintf("%s-elastic-%v", m.Name, tier),
		Variables: slices.Clone(m.Variables),
		Objective: Objective{
			Category:     model.Minimize,
			Coefficients: make([]float64, len(m.Variables)),
		},
	}
	newSlack := func(name string, owner SlackOwner, index, direction int) int {
		col := e.addVariable(Variable{
			Name:   name,
			Domain: model.Continuous,
			Lower:  0,
			Upper:  Infinity,
			Origin: -1,
			Source: Elastic,
			Slack:  &Slack{Owner: owner, Index: index, Direction: direction},
		})
		e.Objective.Coefficients[col] = 1
		return col
	}

	e.Constraints.Starts = []int{0}
	for i := 0; i < m.Constraints.Len(); i++ {
		cells := slices.Clone(m.Constraints.Row(i))
		sign := m.Constraints.Signs[i]
		name := m.Constraints.Names[i]
		source := m.Constraints.Sources[i]

		relax := tier == ElasticAll || (tier == ElasticInequalities && sign != model.Equal)
		if relax {
			source = Elastic
			switch sign {
			case model.LessEqual:
				cells = append(cells, Cell{Col: newSlack(name+"_slack", RowSlack, i, -1), Coefficient: -1})
			case model.GreaterEqual:
				cells = append(cells, Cell{Col: newSlack(name+"_slack", RowSlack, i, 1), Coefficient: 1})
			case model.Equal:
				cells = append(cells,
					Cell{Col: newSlack(name+"_pos_slack", RowSlack, i, 1), Coefficient: 1},
					Cell{Col: newSlack(name+"_neg_slack", RowSlack, i, -1), Coefficient: -1},
				)
			}
		}
		e.Constraints.add(cells, sign, m.Constraints.RHS[i], name, m.Constraints.Origins[i], source)
	}

	// newSlack grows e.Variables, so columns are addressed by index here.
	for j, v := range m.Variables {
		if !IsNegativeInfinity(v.Lower) {
			s := newSlack(v.Name+"_lb_slack", LowerBoundSlack, j, 1)
			e.Constraints.add(
				[]Cell{{Col: j, Coefficient: 1}, {Col: s, Coefficient: 1}}, model.GreaterEqual, v.Lower,
				v.Name+"_elastic_lb", j, ElasticLowerBound,
			)
			e.Variables[j].Lower = NegativeInfinity
		}
		if !IsPositiveInfinity(v.Upper) {
			s := newSlack(v.Name+"_ub_slack", UpperBoundSlack, j, -1)
			e.Constraints.add(
				[]Cell{{Col: j, Coefficient: 1}, {Col: s, Coefficient: -1}}, model.LessEqual, v.Upper,
				v.Name+"_elastic_ub", j, ElasticUpperBound,
			)
			e.Variables[j].Upper = Infinity
		}
	}
	return e
}

type SlackValue struct {
	Slack
	Col   int
	Value float64
}

// Violations lists the slack columns of an elastic model whose value in x
// exceeds tol, in column order.
func (m *Model) Violations(x []float64, tol float64) []SlackValue {
	ret := make([]SlackValue, 0)
	for j := range m.Variables {
		v := &m.Variables[j]
		if v.Slack == nil || j >= len(x) {
			continue
		}
		if x[j] > tol {
			ret = append(ret, SlackValue{Slack: *v.Slack, Col: j, Value: x[j]})
		}
	}
	return ret
}

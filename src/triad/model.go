package triad

import (
	"fmt"
	"slices"
	"strings"

	"github.com/pkg/errors"

	"lp_colgen/src/model"
)

type (
	Sign     = model.Sign
	Category = model.Category
	Domain   = model.Domain
)

var (
	ErrNotNormalized = errors.New("model is not normalized")
	ErrDanglingCell  = errors.New("cell references a missing column")
	ErrQuadratic     = errors.New("model has a quadratic objective")
)

// Source tells where a row or a column of the triad comes from.
type Source int

const (
	Origin Source = iota
	LowerBound
	UpperBound
	Dual
	FarkasDual
	Feasibility
	Elastic
	ElasticLowerBound
	ElasticUpperBound
)

func (s Source) String() string {
	return [...]string{
		"origin", "lower_bound", "upper_bound", "dual", "farkas_dual",
		"feasibility", "elastic", "elastic_lower_bound", "elastic_upper_bound",
	}[s]
}

type SlackOwner int

const (
	RowSlack SlackOwner = iota
	LowerBoundSlack
	UpperBoundSlack
)

// Slack names what an elastic column relaxes: a row or a bound of some
// column of the model the elastic copy was made from.
type Slack struct {
	Owner SlackOwner
	Index int
	// Direction is +1 when the slack adds to the left-hand side.
	Direction int
}

type Variable struct {
	Index  int
	Name   string
	Domain Domain
	Lower  float64
	Upper  float64
	// Origin is the token index (or row index for dual columns), -1 when
	// the column is synthetic.
	Origin int
	Source Source
	Slack  *Slack
}

func (v *Variable) String() string {
	return v.Name
}

func (v *Variable) Free() bool {
	return IsNegativeInfinity(v.Lower) && IsPositiveInfinity(v.Upper)
}

func (v *Variable) Fixed() bool {
	return v.Lower == v.Upper
}

type Cell struct {
	Row         int
	Col         int
	Coefficient float64
}

// Constraints stores rows in row-major order: the cells of row i are
// Cells[Starts[i]:Starts[i+1]].
type Constraints struct {
	Cells   []Cell
	Starts  []int
	Signs   []Sign
	RHS     []float64
	Names   []string
	Origins []int
	Sources []Source
}

func (c *Constraints) Len() int {
	return len(c.Signs)
}

func (c *Constraints) Row(i int) []Cell {
	return c.Cells[c.Starts[i]:c.Starts[i+1]]
}

func (c *Constraints) add(cells []Cell, sign Sign, rhs float64, name string, origin int, source Source) int {
	row := len(c.Signs)
	if len(c.Starts) == 0 {
		c.Starts = append(c.Starts, 0)
	}
	for _, cell := range cells {
		cell.Row = row
		c.Cells = append(c.Cells, cell)
	}
	c.Starts = append(c.Starts, len(c.Cells))
	c.Signs = append(c.Signs, sign)
	c.RHS = append(c.RHS, rhs)
	c.Names = append(c.Names, name)
	c.Origins = append(c.Origins, origin)
	c.Sources = append(c.Sources, source)
	return row
}

func (c *Constraints) clone() Constraints {
	return Constraints{
		Cells:   slices.Clone(c.Cells),
		Starts:  slices.Clone(c.Starts),
		Signs:   slices.Clone(c.Signs),
		RHS:     slices.Clone(c.RHS),
		Names:   slices.Clone(c.Names),
		Origins: slices.Clone(c.Origins),
		Sources: slices.Clone(c.Sources),
	}
}

// QuadraticCell adds Coefficient·x[Row]·x[Col] to the objective. Only the
// lower triangle is stored: Row >= Col.
type QuadraticCell struct {
	Row         int
	Col         int
	Coefficient float64
}

// Objective is dense: one coefficient per column. Quadratic is sparse.
type Objective struct {
	Category     Category
	Coefficients []float64
	Quadratic    []QuadraticCell
	Constant     float64
}

func (o *Objective) IsQuadratic() bool {
	return len(o.Quadratic) > 0
}

type Model struct {
	Name        string
	Variables   []Variable
	Constraints Constraints
	Objective   Objective
}

func (m *Model) NumCols() int {
	return len(m.Variables)
}

func (m *Model) NumRows() int {
	return m.Constraints.Len()
}

func (m *Model) Clone() *Model {
	vars := slices.Clone(m.Variables)
	for i := range vars {
		if vars[i].Slack != nil {
			s := *vars[i].Slack
			vars[i].Slack = &s
		}
	}
	return &Model{
		Name:        m.Name,
		Variables:   vars,
		Constraints: m.Constraints.clone(),
		Objective: Objective{
			Category:     m.Objective.Category,
			Coefficients: slices.Clone(m.Objective.Coefficients),
			Quadratic:    slices.Clone(m.Objective.Quadratic),
			Constant:     m.Objective.Constant,
		},
	}
}

func (m *Model) addVariable(v Variable) int {
	v.Index = len(m.Variables)
	m.Variables = append(m.Variables, v)
	m.Objective.Coefficients = append(m.Objective.Coefficients, 0)
	return v.Index
}

func (m *Model) ContainsInteger() bool {
	return slices.ContainsFunc(m.Variables, func(v Variable) bool {
		return v.Domain.IsInteger() || v.Domain == model.SemiContinuous
	})
}

func (m *Model) ContainsBinary() bool {
	return slices.ContainsFunc(m.Variables, func(v Variable) bool {
		return v.Domain == model.Binary
	})
}

// Columns returns the column-major view of the constraint matrix. Cells of
// every column are ordered by row.
func (m *Model) Columns() [][]Cell {
	cols := make([][]Cell, len(m.Variables))
	for _, cell := range m.Constraints.Cells {
		cols[cell.Col] = append(cols[cell.Col], cell)
	}
	return cols
}

// Validate checks that every cell references an existing column.
func (m *Model) Validate() error {
	for _, cell := range m.Constraints.Cells {
		if cell.Col < 0 || cell.Col >= len(m.Variables) {
			return errors.Wrapf(ErrDanglingCell, "row %s, column %d", m.Constraints.Names[cell.Row], cell.Col)
		}
	}
	if len(m.Objective.Coefficients) != len(m.Variables) {
		return errors.Wrapf(ErrDanglingCell, "objective has %d coefficients for %d columns",
			len(m.Objective.Coefficients), len(m.Variables))
	}
	for _, q := range m.Objective.Quadratic {
		if q.Col < 0 || q.Row < q.Col || q.Row >= len(m.Variables) {
			return errors.Wrapf(ErrDanglingCell, "quadratic objective cell (%d, %d)", q.Row, q.Col)
		}
	}
	return nil
}

// LinearRelax turns every integer, binary and semi-continuous column into a
// continuous one. Bounds are kept.
func (m *Model) LinearRelax() {
	for i := range m.Variables {
		m.Variables[i].Domain = model.Continuous
	}
}

func (m *Model) String() string {
	s := new(strings.Builder)
	fmt.Fprintf(s, "%s: %d columns, %d rows, %d nonzeros", m.Name, m.NumCols(), m.NumRows(), len(m.Constraints.Cells))
	return s.String()
}

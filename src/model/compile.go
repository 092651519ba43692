package model

import (
	"math"
	"runtime"
	"slices"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

var (
	ErrDanglingToken = errors.New("term references a token outside the model")
	ErrNaN           = errors.New("NaN value")
)

// Cell is one merged (column, coefficient) entry of a compiled row.
type Cell struct {
	Col         int
	Coefficient float64
}

// Mechanism is a constraint with like terms merged, zero cells dropped and
// cells sorted by column.
type Mechanism struct {
	Name  string
	Cells []Cell
	Sign  Sign
	RHS   float64
}

// QuadraticCell is Coefficient·x[Row]·x[Col] with Row >= Col.
type QuadraticCell struct {
	Row         int
	Col         int
	Coefficient float64
}

type MechanismObjective struct {
	Category  Category
	Cells     []Cell
	Quadratic []QuadraticCell
	Constant  float64
}

const minBlockSize = 64

func (m *Model) ownsToken(t *Token) bool {
	return t != nil && t.index >= 0 && t.index < len(m.tokens) && m.tokens[t.index] == t
}

func (m *Model) mergeTerms(terms []Term, sign float64, acc map[int]float64, order *[]int) error {
	for _, term := range terms {
		if !m.ownsToken(term.Token) {
			return errors.Wrapf(ErrDanglingToken, "token %v", term.Token)
		}
		if math.IsNaN(term.Coefficient) {
			return errors.Wrapf(ErrNaN, "coefficient of %s", term.Token.Name)
		}
		if _, ok := acc[term.Token.index]; !ok {
			*order = append(*order, term.Token.index)
		}
		acc[term.Token.index] += sign * term.Coefficient
	}
	return nil
}

func collectCells(acc map[int]float64, order []int) []Cell {
	cells := make([]Cell, 0, len(order))
	for _, col := range order {
		if acc[col] != 0 {
			cells = append(cells, Cell{Col: col, Coefficient: acc[col]})
		}
	}
	slices.SortFunc(cells, func(x, y Cell) int { return x.Col - y.Col })
	return cells
}

func (m *Model) compileConstraint(c *Constraint) (Mechanism, error) {
	if math.IsNaN(c.RHS) {
		return Mechanism{}, errors.Wrapf(ErrNaN, "rhs of %s", c.Name)
	}
	acc := make(map[int]float64, len(c.Terms))
	order := make([]int, 0, len(c.Terms))
	if err := m.mergeTerms(c.Terms, 1, acc, &order); err != nil {
		return Mechanism{}, errors.Wrapf(err, "constraint %s", c.Name)
	}
	return Mechanism{
		Name:  c.Name,
		Cells: collectCells(acc, order),
		Sign:  c.Sign,
		RHS:   c.RHS,
	}, nil
}

// CompileObjective merges the sub-objectives into one cell list. A
// sub-objective of the opposite category is subtracted.
func (m *Model) CompileObjective() (MechanismObjective, error) {
	acc := make(map[int]float64)
	order := make([]int, 0)
	quad := make(map[pair]float64)
	constant := 0.0
	for _, sub := range m.objective.Subs {
		sign := 1.0
		if sub.Category != m.objective.Category {
			sign = -1
		}
		if err := m.mergeTerms(sub.Terms, sign, acc, &order); err != nil {
			return MechanismObjective{}, errors.Wrap(err, "objective")
		}
		if err := m.mergeQuadratic(sub.Quadratic, sign, quad); err != nil {
			return MechanismObjective{}, errors.Wrap(err, "quadratic objective")
		}
		constant += sign * sub.Constant
	}
	return MechanismObjective{
		Category:  m.objective.Category,
		Cells:     collectCells(acc, order),
		Quadratic: collectQuadratic(quad),
		Constant:  constant,
	}, nil
}

type pair struct{ row, col int }

func (m *Model) mergeQuadratic(terms []QuadraticTerm, sign float64, acc map[pair]float64) error {
	for _, term := range terms {
		if !m.ownsToken(term.First) || !m.ownsToken(term.Second) {
			return errors.Wrapf(ErrDanglingToken, "tokens %v, %v", term.First, term.Second)
		}
		if math.IsNaN(term.Coefficient) {
			return errors.Wrapf(ErrNaN, "coefficient of %s·%s", term.First.Name, term.Second.Name)
		}
		i, j := term.First.index, term.Second.index
		acc[pair{max(i, j), min(i, j)}] += sign * term.Coefficient
	}
	return nil
}

func collectQuadratic(acc map[pair]float64) []QuadraticCell {
	cells := make([]QuadraticCell, 0, len(acc))
	for p, v := range acc {
		if v != 0 {
			cells = append(cells, QuadraticCell{Row: p.row, Col: p.col, Coefficient: v})
		}
	}
	slices.SortFunc(cells, func(x, y QuadraticCell) int {
		if x.Row != y.Row {
			return x.Row - y.Row
		}
		return x.Col - y.Col
	})
	return cells
}

// Compile turns every constraint into its mechanism form. With concurrent set
// the constraints are split into contiguous blocks compiled in parallel; the
// result is the same either way.
func (m *Model) Compile(concurrent bool) ([]Mechanism, error) {
	for _, t := range m.tokens {
		if math.IsNaN(t.Lower) || math.IsNaN(t.Upper) {
			return nil, errors.Wrapf(ErrNaN, "bounds of %s", t.Name)
		}
	}

	out := make([]Mechanism, len(m.constraints))
	compileBlock := func(from, to int) error {
		for i := from; i < to; i++ {
			mc, err := m.compileConstraint(m.constraints[i])
			if err != nil {
				return err
			}
			out[i] = mc
		}
		return nil
	}

	if !concurrent || len(m.constraints) < 2*minBlockSize {
		if err := compileBlock(0, len(m.constraints)); err != nil {
			return nil, err
		}
		return out, nil
	}

	workers := runtime.NumCPU()
	blockSize := max(minBlockSize, (len(m.constraints)+workers-1)/workers)
	g := new(errgroup.Group)
	for from := 0; from < len(m.constraints); from += blockSize {
		from := from
		to := min(from+blockSize, len(m.constraints))
		g.Go(func() error {
			return compileBlock(from, to)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

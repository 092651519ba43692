package solver

import (
	"math"
	"slices"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"lp_colgen/src/model"
	"lp_colgen/src/triad"
)

var (
	errInfeasible = errors.New("infeasible")
	errUnbounded  = errors.New("unbounded")
)

type BoundKind int

const (
	BoundFree BoundKind = iota
	BoundLower
	BoundUpper
	BoundDouble
	BoundFixed
)

func boundKind(lower, upper float64) BoundKind {
	lowerInf, upperInf := triad.IsNegativeInfinity(lower), triad.IsPositiveInfinity(upper)
	switch {
	case lowerInf && upperInf:
		return BoundFree
	case upperInf:
		return BoundLower
	case lowerInf:
		return BoundUpper
	case lower == upper:
		return BoundFixed
	}
	return BoundDouble
}

type Entry struct {
	Col   int
	Value float64
}

// Problem is the native model of the simplex backend. Costs are stored for
// minimization; Sense is -1 when the triad maximizes.
type Problem struct {
	Sense          float64
	Costs          []float64
	Constant       float64
	Lower          []float64
	Upper          []float64
	Integer        []bool
	SemiContinuous []bool
	// SemiLower is the lower bound a semi-continuous column takes when it
	// is not zero.
	SemiLower []float64
	Rows      [][]Entry
	Signs     []model.Sign
	RHS       []float64
	Names     []string
}

func NewProblem(m *triad.Model) (*Problem, error) {
	n := m.NumCols()
	p := &Problem{
		Sense:          1,
		Costs:          make([]float64, n),
		Lower:          make([]float64, n),
		Upper:          make([]float64, n),
		Integer:        make([]bool, n),
		SemiContinuous: make([]bool, n),
		SemiLower:      make([]float64, n),
		Rows:           make([][]Entry, m.NumRows()),
		Signs:          append([]model.Sign(nil), m.Constraints.Signs...),
		RHS:            append([]float64(nil), m.Constraints.RHS...),
		Names:          append([]string(nil), m.Constraints.Names...),
	}
	if m.Objective.Category == model.Maximize {
		p.Sense = -1
	}
	p.Constant = p.Sense * m.Objective.Constant
	for j, v := range m.Variables {
		if v.Lower > v.Upper {
			return nil, errors.Errorf("column %s has lower bound %g above upper bound %g", v.Name, v.Lower, v.Upper)
		}
		if triad.IsPositiveInfinity(v.Lower) || triad.IsNegativeInfinity(v.Upper) {
			return nil, errors.Errorf("column %s has an empty domain", v.Name)
		}
		p.Costs[j] = p.Sense * m.Objective.Coefficients[j]
		p.Lower[j], p.Upper[j] = v.Lower, v.Upper
		p.Integer[j] = v.Domain.IsInteger()
		if v.Domain == model.SemiContinuous {
			p.SemiContinuous[j] = true
			p.SemiLower[j] = v.Lower
			p.Lower[j] = math.Min(0, v.Lower)
			p.Integer[j] = false
		}
	}
	for i := 0; i < m.NumRows(); i++ {
		row := m.Constraints.Row(i)
		entries := make([]Entry, len(row))
		for k, c := range row {
			entries[k] = Entry{Col: c.Col, Value: c.Coefficient}
		}
		p.Rows[i] = entries
	}
	return p, nil
}

// column j of the original problem is Offset + Σ Factor·z[Std].
type substitution struct {
	offset float64
	std    []int
	factor []float64
}

type standardForm struct {
	subs []substitution
	a    [][]float64
	b    []float64
	c    []float64
	nStd int
}

func (sf *standardForm) newColumn(cost float64) int {
	sf.c = append(sf.c, cost)
	for i := range sf.a {
		sf.a[i] = append(sf.a[i], 0)
	}
	sf.nStd++
	return sf.nStd - 1
}

// toStandard rewrites min c'x, rows, lower <= x <= upper as
// min c'z, Az = b, z >= 0.
func (p *Problem) toStandard(lower, upper []float64) (*standardForm, error) {
	n := len(p.Costs)
	sf := &standardForm{subs: make([]substitution, n)}

	boundRows := make([]struct {
		col   int
		bound float64
	}, 0)
	for j := 0; j < n; j++ {
		lo, hi := lower[j], upper[j]
		if lo > hi+integralityTol {
			return nil, errInfeasible
		}
		switch boundKind(lo, hi) {
		case BoundFree:
			sf.subs[j] = substitution{std: []int{sf.newColumn(p.Costs[j]), sf.newColumn(-p.Costs[j])}, factor: []float64{1, -1}}
		case BoundLower:
			sf.subs[j] = substitution{offset: lo, std: []int{sf.newColumn(p.Costs[j])}, factor: []float64{1}}
		case BoundUpper:
			sf.subs[j] = substitution{offset: hi, std: []int{sf.newColumn(-p.Costs[j])}, factor: []float64{-1}}
		case BoundFixed:
			sf.subs[j] = substitution{offset: lo}
		case BoundDouble:
			if hi-lo <= integralityTol {
				sf.subs[j] = substitution{offset: lo}
				continue
			}
			col := sf.newColumn(p.Costs[j])
			sf.subs[j] = substitution{offset: lo, std: []int{col}, factor: []float64{1}}
			boundRows = append(boundRows, struct {
				col   int
				bound float64
			}{col, hi - lo})
		}
	}

	addRow := func() int {
		sf.a = append(sf.a, make([]float64, sf.nStd))
		sf.b = append(sf.b, 0)
		return len(sf.a) - 1
	}
	for i, row := range p.Rows {
		r := addRow()
		rhs := p.RHS[i]
		for _, e := range row {
			s := sf.subs[e.Col]
			rhs -= e.Value * s.offset
			for k, col := range s.std {
				sf.a[r][col] += e.Value * s.factor[k]
			}
		}
		sf.b[r] = rhs
		switch p.Signs[i] {
		case model.LessEqual:
			sf.a[r][sf.newColumn(0)] = 1
		case model.GreaterEqual:
			sf.a[r][sf.newColumn(0)] = -1
		}
	}
	for _, br := range boundRows {
		r := addRow()
		sf.a[r][br.col] = 1
		sf.b[r] = br.bound
		sf.a[r][sf.newColumn(0)] = 1
	}

	for i := range sf.a {
		if sf.b[i] < 0 {
			floats.Scale(-1, sf.a[i])
			sf.b[i] = -sf.b[i]
		}
	}
	return sf, nil
}

// reduce drops empty and linearly dependent rows and pins empty columns to
// zero. It reports the infeasibility it can prove on the way. idle is set
// when an empty column has a negative cost: the model is unbounded once the
// remaining rows turn out feasible.
func (sf *standardForm) reduce() (rows []int, cols []int, idle bool, err error) {
	for j := 0; j < sf.nStd; j++ {
		empty := true
		for i := range sf.a {
			if sf.a[i][j] != 0 {
				empty = false
				break
			}
		}
		if !empty {
			cols = append(cols, j)
		} else if sf.c[j] < 0 {
			idle = true
		}
	}

	basis := make([][]float64, 0, len(sf.a))
	basisB := make([]float64, 0, len(sf.a))
	pivots := make([]int, 0, len(sf.a))
	for i := range sf.a {
		v := append([]float64(nil), sf.a[i]...)
		vb := sf.b[i]
		scale := math.Max(1, floats.Norm(v, math.Inf(1)))
		for k, row := range basis {
			if f := v[pivots[k]] / row[pivots[k]]; f != 0 {
				floats.AddScaled(v, -f, row)
				vb -= f * basisB[k]
			}
		}
		pivot := floats.MaxIdx(absSlice(v))
		if math.Abs(v[pivot]) <= dependencyTol*scale {
			if math.Abs(vb) > feasibilityTol*math.Max(1, math.Abs(sf.b[i])) {
				return nil, nil, false, errInfeasible
			}
			continue
		}
		basis = append(basis, v)
		basisB = append(basisB, vb)
		pivots = append(pivots, pivot)
		rows = append(rows, i)
	}
	return rows, cols, idle, nil
}

func absSlice(v []float64) []float64 {
	ret := make([]float64, len(v))
	for i, x := range v {
		ret[i] = math.Abs(x)
	}
	return ret
}

const (
	integralityTol = 1e-6
	feasibilityTol = 1e-6
	dependencyTol  = 1e-9
	// defaultTolerance is handed to gonum's simplex unless the "tolerance"
	// extra overrides it. Bland's rule stalls and reports spurious
	// unboundedness at zero.
	defaultTolerance = 1e-10
)

func simplexTolerance(cfg *Config) float64 {
	return ExtraFloat(cfg, "tolerance", defaultTolerance)
}

// solveReduced solves min c'z, Az = b, z >= 0 for a full row rank A and a
// non-negative b.
func solveReduced(c []float64, a *mat.Dense, b []float64, tol float64) ([]float64, error) {
	m, n := a.Dims()
	if m == n {
		return solveSquare(a, b)
	}
	_, x, err := lp.Simplex(c, a, b, tol, nil)
	switch {
	case errors.Is(err, lp.ErrUnbounded):
		return nil, errUnbounded
	case err != nil:
		// gonum's own phase one can give up on degenerate starts; the
		// artificial basis settles infeasibility for good.
		return solveArtificial(c, a, b, tol)
	}
	return x, nil
}

// solveSquare handles a nonsingular A, whose only solution is feasible or
// not.
func solveSquare(a *mat.Dense, b []float64) ([]float64, error) {
	var z mat.VecDense
	if err := z.SolveVec(a, mat.NewVecDense(len(b), slices.Clone(b))); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, errors.Wrap(err, "square system")
		}
	}
	x := make([]float64, len(b))
	for i := range x {
		v := z.AtVec(i)
		if v < -feasibilityTol*math.Max(1, math.Abs(v)) {
			return nil, errInfeasible
		}
		x[i] = math.Max(0, v)
	}
	return x, nil
}

// solveArtificial adds one artificial column per row and starts both passes
// from their basis: the first minimizes the artificial sum to decide
// feasibility, the second prices the artificials out with a large weight.
func solveArtificial(c []float64, a *mat.Dense, b []float64, tol float64) ([]float64, error) {
	m, n := a.Dims()
	aug := mat.NewDense(m, n+m, nil)
	basis := make([]int, m)
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			aug.Set(i, j, a.At(i, j))
		}
		aug.Set(i, n+i, 1)
		basis[i] = n + i
	}
	scale := feasibilityTol * math.Max(1, floats.Norm(b, math.Inf(1)))

	phaseOne := make([]float64, n+m)
	for i := 0; i < m; i++ {
		phaseOne[n+i] = 1
	}
	residual, _, err := lp.Simplex(phaseOne, aug, b, tol, basis)
	if err != nil {
		return nil, errors.Wrap(err, "artificial phase")
	}
	if residual > scale {
		return nil, errInfeasible
	}

	weight := 1e6 * math.Max(1, floats.Norm(c, math.Inf(1)))
	cost := make([]float64, n+m)
	copy(cost, c)
	for i := 0; i < m; i++ {
		cost[n+i] = weight
	}
	_, x, err := lp.Simplex(cost, aug, b, tol, basis)
	switch {
	case errors.Is(err, lp.ErrUnbounded):
		return nil, errUnbounded
	case err != nil:
		return nil, errors.Wrap(err, "simplex")
	}
	if floats.Sum(x[n:]) > scale {
		return nil, errInfeasible
	}
	return x[:n], nil
}

// solveLP solves the continuous relaxation of p with the given column
// bounds. It returns the column values and the minimization objective.
func (p *Problem) solveLP(lower, upper []float64, tol float64) ([]float64, float64, error) {
	if len(p.Costs) == 0 {
		for i, row := range p.Rows {
			if len(row) == 0 && !rhsSatisfied(p.Signs[i], 0, p.RHS[i]) {
				return nil, 0, errInfeasible
			}
		}
		return []float64{}, p.Constant, nil
	}

	sf, err := p.toStandard(lower, upper)
	if err != nil {
		return nil, 0, err
	}
	z := make([]float64, sf.nStd)
	if sf.nStd > 0 {
		rows, cols, idle, err := sf.reduce()
		if err != nil {
			return nil, 0, err
		}
		if len(rows) > 0 {
			a := mat.NewDense(len(rows), len(cols), nil)
			b := make([]float64, len(rows))
			c := make([]float64, len(cols))
			for ri, i := range rows {
				for ci, j := range cols {
					a.Set(ri, ci, sf.a[i][j])
				}
				b[ri] = sf.b[i]
			}
			for ci, j := range cols {
				c[ci] = sf.c[j]
			}
			x, err := solveReduced(c, a, b, tol)
			if err != nil {
				return nil, 0, err
			}
			for ci, j := range cols {
				z[j] = x[ci]
			}
		} else {
			for _, j := range cols {
				if sf.c[j] < 0 {
					return nil, 0, errUnbounded
				}
			}
		}
		if idle {
			return nil, 0, errUnbounded
		}
	} else {
		// every column is fixed; rows only have to be checked.
		for i := range sf.a {
			if math.Abs(sf.b[i]) > feasibilityTol {
				return nil, 0, errInfeasible
			}
		}
	}

	x := make([]float64, len(p.Costs))
	for j, s := range sf.subs {
		x[j] = s.offset
		for k, col := range s.std {
			x[j] += s.factor[k] * z[col]
		}
	}
	return x, p.objective(x), nil
}

func rhsSatisfied(sign model.Sign, lhs, rhs float64) bool {
	switch sign {
	case model.LessEqual:
		return lhs <= rhs+feasibilityTol*math.Max(1, math.Abs(rhs))
	case model.GreaterEqual:
		return lhs >= rhs-feasibilityTol*math.Max(1, math.Abs(rhs))
	}
	return math.Abs(lhs-rhs) <= feasibilityTol*math.Max(1, math.Abs(rhs))
}

// objective is in minimization form.
func (p *Problem) objective(x []float64) float64 {
	return floats.Dot(p.Costs, x) + p.Constant
}

// feasible checks rows, bounds, integrality and semi-continuity of x.
func (p *Problem) feasible(x []float64, lower, upper []float64) bool {
	for j, v := range x {
		if v < lower[j]-feasibilityTol || v > upper[j]+feasibilityTol {
			return false
		}
		if p.Integer[j] && math.Abs(v-math.Round(v)) > integralityTol {
			return false
		}
		if p.SemiContinuous[j] && math.Abs(v) > integralityTol && v < p.SemiLower[j]-feasibilityTol {
			return false
		}
	}
	for i, row := range p.Rows {
		lhs := 0.0
		for _, e := range row {
			lhs += e.Value * x[e.Col]
		}
		if !rhsSatisfied(p.Signs[i], lhs, p.RHS[i]) {
			return false
		}
	}
	return true
}

package solver

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lp_colgen/src/model"
	"lp_colgen/src/triad"
)

const tol = 1e-6

// production: max 3a + 5b, a <= 4, 2b <= 12, 3a + 2b <= 18.
func production(t *testing.T, domain model.Domain) *triad.Model {
	m := model.New("production", model.Maximize)
	a := m.AddToken("a", model.Continuous, 0, math.Inf(1))
	b := m.AddToken("b", domain, 0, 10)
	m.AddConstraint("plant1", []model.Term{{Token: a, Coefficient: 1}}, model.LessEqual, 4)
	m.AddConstraint("plant2", []model.Term{{Token: b, Coefficient: 2}}, model.LessEqual, 12)
	m.AddConstraint("plant3", []model.Term{{Token: a, Coefficient: 3}, {Token: b, Coefficient: 2}}, model.LessEqual, 18)
	m.AddObjective(model.Maximize, 0, model.Term{Token: a, Coefficient: 3}, model.Term{Token: b, Coefficient: 5})
	tm, err := triad.Build(m, triad.BuildConfig{})
	require.NoError(t, err)
	return tm
}

func knapsack(t *testing.T) *triad.Model {
	m := model.New("knapsack", model.Maximize)
	weights := []float64{5, 7, 4, 3}
	values := []float64{8, 11, 6, 4}
	terms := make([]model.Term, len(weights))
	for j := range weights {
		x := m.AddToken(string(rune('w'+j)), model.Binary, 0, 1)
		terms[j] = model.Term{Token: x, Coefficient: weights[j]}
		m.AddObjectiveTerm(x, values[j])
	}
	m.AddConstraint("capacity", terms, model.LessEqual, 14)
	tm, err := triad.Build(m, triad.BuildConfig{})
	require.NoError(t, err)
	return tm
}

func TestSimplexContinuous(t *testing.T) {
	out, err := Run(context.Background(), NewSimplex, production(t, model.Continuous), NewConfig())
	require.NoError(t, err)

	assert.Equal(t, Optimal, out.Status)
	assert.InDelta(t, 36, out.Objective, tol)
	assert.InDeltaSlice(t, []float64{2, 6}, out.Solution, tol)
	assert.Equal(t, 0.0, out.Gap)
	assert.Equal(t, out.Objective, out.BestBound)
}

func TestSimplexInteger(t *testing.T) {
	out, err := Run(context.Background(), NewSimplex, knapsack(t), NewConfig())
	require.NoError(t, err)

	assert.Equal(t, Optimal, out.Status)
	assert.InDelta(t, 21, out.Objective, tol)
	assert.InDeltaSlice(t, []float64{0, 1, 1, 1}, out.Solution, tol)
	assert.GreaterOrEqual(t, out.Gap, 0.0)
	assert.GreaterOrEqual(t, out.BestBound, out.Objective-tol)
}

func TestSimplexSemiContinuous(t *testing.T) {
	// min -x + 3z with x <= 2 + z; z is either 0 or in [1, 4].
	m := model.New("semi", model.Minimize)
	x := m.AddToken("x", model.Continuous, 0, 10)
	z := m.AddToken("z", model.SemiContinuous, 1, 4)
	m.AddConstraint("link", []model.Term{{Token: x, Coefficient: 1}, {Token: z, Coefficient: -1}}, model.LessEqual, 2)
	m.AddConstraint("floor", []model.Term{{Token: z, Coefficient: 1}}, model.GreaterEqual, 0.5)
	m.AddObjective(model.Minimize, 0, model.Term{Token: x, Coefficient: -1}, model.Term{Token: z, Coefficient: 3})
	tm, err := triad.Build(m, triad.BuildConfig{})
	require.NoError(t, err)

	out, err := Run(context.Background(), NewSimplex, tm, NewConfig())
	require.NoError(t, err)
	assert.InDelta(t, 1, out.Solution[1], tol)
	assert.InDelta(t, 3, out.Solution[0], tol)
	assert.InDelta(t, 0, out.Objective, tol)
}

func TestInfeasible(t *testing.T) {
	m := model.New("balance", model.Minimize)
	capital := m.AddToken("capital", model.Continuous, 0, math.Inf(1))
	m.AddConstraint("min_capital", []model.Term{{Token: capital, Coefficient: 1}}, model.GreaterEqual, 10)
	m.AddConstraint("max_liability", []model.Term{{Token: capital, Coefficient: 1}}, model.LessEqual, 5)
	m.AddObjective(model.Minimize, 0, model.Term{Token: capital, Coefficient: 1})
	tm, err := triad.Build(m, triad.BuildConfig{})
	require.NoError(t, err)

	_, err = Run(context.Background(), NewSimplex, tm, NewConfig())
	require.Error(t, err)
	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, ModelInfeasible, e.Kind)
	assert.Equal(t, PhaseAnalyzeStatus, e.Phase)
	assert.True(t, e.Kind.Legitimate())
}

func unbounded(t *testing.T) *triad.Model {
	m := model.New("ray", model.Minimize)
	x := m.AddToken("x", model.Continuous, 0, math.Inf(1))
	m.AddConstraint("at_least", []model.Term{{Token: x, Coefficient: 1}}, model.GreaterEqual, 1)
	m.AddObjective(model.Minimize, 0, model.Term{Token: x, Coefficient: -1})
	tm, err := triad.Build(m, triad.BuildConfig{})
	require.NoError(t, err)
	return tm
}

func TestUnbounded(t *testing.T) {
	_, err := Run(context.Background(), NewSimplex, unbounded(t), NewConfig())
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, ModelUnbounded, kind)
}

func TestUnboundedWithDualsIsLegitimate(t *testing.T) {
	_, err := Run(context.Background(), NewSimplex, unbounded(t), NewConfig(WithDuals(true)))
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.True(t, kind.Legitimate(), kind.String())
}

func TestStrongDuality(t *testing.T) {
	primal := production(t, model.Continuous)
	normalized := primal.Clone()
	normalized.Normalize()
	dual, err := normalized.Dual()
	require.NoError(t, err)

	p, err := Run(context.Background(), NewSimplex, primal, NewConfig())
	require.NoError(t, err)
	d, err := Run(context.Background(), NewSimplex, dual, NewConfig())
	require.NoError(t, err)
	assert.InDelta(t, p.Objective, d.Objective, tol)
}

func TestDuals(t *testing.T) {
	out, err := Run(context.Background(), NewSimplex, production(t, model.Continuous), NewConfig(WithDuals(true)))
	require.NoError(t, err)

	assert.InDelta(t, 36, out.Objective, tol)
	assert.InDeltaSlice(t, []float64{0, 1.5, 1}, out.Duals, tol)
}

func TestDualsIgnoredForIntegerModels(t *testing.T) {
	out, err := Run(context.Background(), NewSimplex, production(t, model.Integer), NewConfig(WithDuals(true)))
	require.NoError(t, err)
	assert.InDelta(t, 36, out.Objective, tol)
	assert.Nil(t, out.Duals)
}

func TestCallBackMutatesNativeModel(t *testing.T) {
	var points []Point
	record := func(p Point) CallBack {
		return func(any, *triad.Model) error {
			points = append(points, p)
			return nil
		}
	}
	cfg := NewConfig(
		WithCallBack(AfterModeling, func(native any, m *triad.Model) error {
			native.(*Problem).Upper[0] = 1
			return nil
		}),
		WithCallBack(AfterModeling, record(AfterModeling)),
		WithCallBack(Configuration, record(Configuration)),
		WithCallBack(AnalyzingSolution, record(AnalyzingSolution)),
		WithCallBack(AfterFailure, record(AfterFailure)),
	)

	tm := production(t, model.Continuous)
	out, err := Run(context.Background(), NewSimplex, tm, cfg)
	require.NoError(t, err)
	assert.InDelta(t, 33, out.Objective, tol)
	assert.Equal(t, []Point{AfterModeling, Configuration, AnalyzingSolution}, points)
	assert.True(t, triad.IsPositiveInfinity(tm.Variables[0].Upper), "triad untouched")
}

func TestCallBackFailureStopsRun(t *testing.T) {
	failed := false
	cfg := NewConfig(
		WithCallBack(Configuration, func(any, *triad.Model) error { return errors.New("rejected") }),
		WithCallBack(AfterFailure, func(any, *triad.Model) error {
			failed = true
			return nil
		}),
	)
	_, err := Run(context.Background(), NewSimplex, production(t, model.Continuous), cfg)
	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, ModelingException, e.Kind)
	assert.Equal(t, PhaseConfigure, e.Phase)
	assert.True(t, failed)
}

func TestSolutionPool(t *testing.T) {
	tm := knapsack(t)
	out, err := Run(context.Background(), NewSimplex, tm, NewConfig(WithSolutionAmount(3)))
	require.NoError(t, err)

	require.NotEmpty(t, out.Pool)
	assert.LessOrEqual(t, len(out.Pool), 3)
	assert.InDeltaSlice(t, out.Solution, out.Pool[0], tol)
	previous := math.Inf(1)
	for _, x := range out.Pool {
		value := 0.0
		for j, c := range tm.Objective.Coefficients {
			value += c * x[j]
		}
		assert.LessOrEqual(t, value, previous+tol)
		previous = value
	}
}

func TestCanceledContextTerminates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, NewSimplex, knapsack(t), NewConfig())
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, Terminated, kind)
}

func TestGap(t *testing.T) {
	assert.Equal(t, 0.0, Gap(10, 9, false))
	assert.InDelta(t, 0.1, Gap(10, 9, true), 1e-9)
	assert.InDelta(t, 0.1, Gap(-10, -11, true), 1e-9)
	assert.Equal(t, 0.0, Gap(0, 0, true))
	assert.Equal(t, 0.0, Gap(21, 21, true))
	assert.Greater(t, Gap(0, 1, true), 1.0)
}

type fakeAdapter struct {
	failAt Phase
	status Status
	closed int
}

func (f *fakeAdapter) fail(p Phase) error {
	if f.failAt == p {
		return errors.Errorf("fake failure in %v", p)
	}
	return nil
}

func (f *fakeAdapter) Init(context.Context, *Config) error { return f.fail(PhaseInit) }
func (f *fakeAdapter) Dump(*triad.Model) error             { return f.fail(PhaseDump) }
func (f *fakeAdapter) Configure(*Config) error             { return f.fail(PhaseConfigure) }
func (f *fakeAdapter) Solve(context.Context) error         { return f.fail(PhaseSolve) }
func (f *fakeAdapter) AnalyzeStatus() (Status, error)      { return f.status, f.fail(PhaseAnalyzeStatus) }
func (f *fakeAdapter) Native() any                         { return nil }
func (f *fakeAdapter) Close() error                        { f.closed++; return nil }
func (f *fakeAdapter) AnalyzeSolution() (*Output, error) {
	if err := f.fail(PhaseAnalyzeSolution); err != nil {
		return nil, err
	}
	return &Output{Objective: 7, Solution: []float64{1}}, nil
}

func TestPhasesShortCircuit(t *testing.T) {
	expected := map[Phase]ErrorKind{
		PhaseInit:            EnvironmentLost,
		PhaseDump:            ModelingException,
		PhaseConfigure:       ModelingException,
		PhaseSolve:           SolvingFailure,
		PhaseAnalyzeStatus:   SolvingFailure,
		PhaseAnalyzeSolution: SolvingFailure,
	}
	tm := production(t, model.Continuous)
	for phase, kind := range expected {
		phase, kind := phase, kind
		t.Run(phase.String(), func(t *testing.T) {
			f := &fakeAdapter{failAt: phase}
			_, err := Run(context.Background(), func() Adapter { return f }, tm, NewConfig())
			var e *Error
			require.True(t, errors.As(err, &e))
			assert.Equal(t, kind, e.Kind)
			assert.Equal(t, phase, e.Phase)
			assert.Equal(t, 1, f.closed)
		})
	}
}

func TestNoSolutionStatus(t *testing.T) {
	f := &fakeAdapter{failAt: -1, status: NoSolution}
	_, err := Run(context.Background(), func() Adapter { return f }, production(t, model.Continuous), NewConfig())
	kind, _ := KindOf(err)
	assert.Equal(t, ModelInfeasible, kind)
	assert.Equal(t, 1, f.closed)
}

func TestSolutionIsPadded(t *testing.T) {
	f := &fakeAdapter{failAt: -1, status: Feasible}
	out, err := Run(context.Background(), func() Adapter { return f }, production(t, model.Continuous), NewConfig())
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0}, out.Solution)
	assert.Equal(t, Feasible, out.Status)
}

func TestCombinatorial(t *testing.T) {
	tm := production(t, model.Integer)
	broken := Named{Name: "broken", Factory: func() Adapter { return &fakeAdapter{failAt: PhaseSolve} }}
	simplex := Named{Name: "simplex", Factory: NewSimplex}

	out, name, err := Combinatorial(context.Background(), []Named{broken, simplex}, tm, NewConfig(), First)
	require.NoError(t, err)
	assert.Equal(t, "simplex", name)
	assert.InDelta(t, 36, out.Objective, tol)

	lucky := Named{Name: "lucky", Factory: func() Adapter { return &fakeAdapter{failAt: -1} }}
	out, name, err = Combinatorial(context.Background(), []Named{simplex, lucky}, tm, NewConfig(), Best)
	require.NoError(t, err)
	assert.Equal(t, "simplex", name, "36 beats 7 when maximizing")
	assert.InDelta(t, 36, out.Objective, tol)

	_, _, err = Combinatorial(context.Background(), []Named{broken}, tm, NewConfig(), Best)
	kind, _ := KindOf(err)
	assert.Equal(t, SolvingFailure, kind)
}

func TestRegistry(t *testing.T) {
	assert.Contains(t, Backends(), "simplex")
	f, err := Lookup("simplex")
	require.NoError(t, err)
	assert.IsType(t, &Simplex{}, f())

	_, err = Lookup("cplex")
	assert.ErrorContains(t, err, "simplex")
}

func TestConfigWithCopies(t *testing.T) {
	base := NewConfig(WithExtra("node_limit", 10), WithCallBack(AfterModeling, func(any, *triad.Model) error { return nil }))
	derived := base.With(WithExtra("node_limit", 20), WithCallBack(AfterModeling, func(any, *triad.Model) error { return nil }))

	assert.Equal(t, 10, ExtraInt(base, "node_limit", 0))
	assert.Equal(t, 20, ExtraInt(derived, "node_limit", 0))
	assert.Len(t, base.callBacks[AfterModeling], 1)
	assert.Len(t, derived.callBacks[AfterModeling], 2)
	assert.Equal(t, 1e-4, base.Gap)
}

// mixedBounds: max -2x1 - 3x3 + 2x4, 3x0 + x3 = 6 over columns bounded
// from both sides, from one side and not at all. Optimum 13 at
// (2, -1.5, 0, 0, 5).
func mixedBounds(t *testing.T) *triad.Model {
	m := model.New("mixed_bounds", model.Maximize)
	x0 := m.AddToken("x0", model.Continuous, 0, 2)
	x1 := m.AddToken("x1", model.Continuous, -1.5, 3)
	m.AddToken("x2", model.Continuous, 0, math.Inf(1))
	x3 := m.AddToken("x3", model.Continuous, math.Inf(-1), 5)
	x4 := m.AddToken("x4", model.Continuous, math.Inf(-1), 5)
	m.AddConstraint("link", []model.Term{{Token: x0, Coefficient: 3}, {Token: x3, Coefficient: 1}}, model.Equal, 6)
	m.AddObjective(model.Maximize, 0, model.Term{Token: x1, Coefficient: -2}, model.Term{Token: x3, Coefficient: -3}, model.Term{Token: x4, Coefficient: 2})
	tm, err := triad.Build(m, triad.BuildConfig{})
	require.NoError(t, err)
	return tm
}

// singlePoint has (3, 6, 3) as its only feasible point; once bounds become
// rows the standard form is square.
func singlePoint(t *testing.T) *triad.Model {
	m := model.New("single_point", model.Minimize)
	x0 := m.AddToken("x0", model.Continuous, 0, 10)
	x1 := m.AddToken("x1", model.Continuous, 0, 10)
	x2 := m.AddToken("x2", model.Continuous, 0, 10)
	m.AddConstraint("fix", []model.Term{{Token: x2, Coefficient: 1}}, model.Equal, 3)
	m.AddConstraint("slack", []model.Term{{Token: x0, Coefficient: 2}, {Token: x1, Coefficient: -1}, {Token: x2, Coefficient: -2}}, model.LessEqual, -5)
	m.AddConstraint("pair", []model.Term{{Token: x0, Coefficient: 2}, {Token: x1, Coefficient: 3}}, model.Equal, 24)
	m.AddConstraint("sum", []model.Term{{Token: x0, Coefficient: 2}, {Token: x2, Coefficient: 2}}, model.Equal, 12)
	m.AddObjective(model.Minimize, 0, model.Term{Token: x0, Coefficient: -4}, model.Term{Token: x1, Coefficient: -1}, model.Term{Token: x2, Coefficient: 2})
	tm, err := triad.Build(m, triad.BuildConfig{})
	require.NoError(t, err)
	return tm
}

// idleColumn is infeasible through x alone; y appears in no row and would
// make the objective unbounded.
func idleColumn(t *testing.T) *triad.Model {
	m := model.New("idle_column", model.Minimize)
	x := m.AddToken("x", model.Continuous, math.Inf(-1), math.Inf(1))
	y := m.AddToken("y", model.Continuous, 0, math.Inf(1))
	m.AddConstraint("at_least", []model.Term{{Token: x, Coefficient: 1}}, model.GreaterEqual, 1)
	m.AddConstraint("at_most", []model.Term{{Token: x, Coefficient: 1}}, model.LessEqual, 0)
	m.AddObjective(model.Minimize, 0, model.Term{Token: y, Coefficient: -1})
	tm, err := triad.Build(m, triad.BuildConfig{})
	require.NoError(t, err)
	return tm
}

func TestContinuousEdgeCases(t *testing.T) {
	tests := []struct {
		name      string
		build     func(*testing.T) *triad.Model
		objective float64
		solution  []float64
		kind      ErrorKind
		fails     bool
	}{
		{name: "mixed bounds", build: mixedBounds, objective: 13, solution: []float64{2, -1.5, 0, 0, 5}},
		{name: "single point", build: singlePoint, objective: -12, solution: []float64{3, 6, 3}},
		{name: "idle column", build: idleColumn, kind: ModelInfeasible, fails: true},
	}
	for _, tt := range tests {
		tt := tt
		for _, duals := range []bool{false, true} {
			duals := duals
			t.Run(fmt.Sprintf("%s/duals=%v", tt.name, duals), func(t *testing.T) {
				out, err := Run(context.Background(), NewSimplex, tt.build(t), NewConfig(WithDuals(duals)))
				if tt.fails {
					kind, ok := KindOf(err)
					require.True(t, ok, "%v", err)
					if duals {
						assert.True(t, kind.Legitimate(), kind.String())
					} else {
						assert.Equal(t, tt.kind, kind)
					}
					return
				}
				require.NoError(t, err)
				assert.Equal(t, Optimal, out.Status)
				assert.InDelta(t, tt.objective, out.Objective, tol)
				assert.InDeltaSlice(t, tt.solution, out.Solution, tol)
				if duals {
					assert.Len(t, out.Duals, tt.build(t).NumRows())
				}
			})
		}
	}
}

func TestMixedBoundsDual(t *testing.T) {
	normalized := mixedBounds(t)
	normalized.Normalize()
	dual, err := normalized.Dual()
	require.NoError(t, err)

	d, err := Run(context.Background(), NewSimplex, dual, NewConfig())
	require.NoError(t, err)
	assert.InDelta(t, 13, d.Objective, tol)
}

func TestDefaultTolerance(t *testing.T) {
	assert.Equal(t, defaultTolerance, simplexTolerance(NewConfig()))
	assert.Equal(t, 1e-8, simplexTolerance(NewConfig(WithExtra("tolerance", 1e-8))))
}

// feasibleLP draws a model around a point that satisfies every row and
// bound, so it is feasible but may be unbounded.
func feasibleLP(r *rand.Rand, id int) *triad.Model {
	category := model.Minimize
	if r.Intn(2) == 0 {
		category = model.Maximize
	}
	m := model.New(fmt.Sprintf("random_%d", id), category)
	n, rows := 3+r.Intn(4), 2+r.Intn(4)
	point := make([]float64, n)
	tokens := make([]*model.Token, n)
	for j := 0; j < n; j++ {
		point[j] = float64(r.Intn(7) - 3)
		lower, upper := point[j]-float64(r.Intn(3)), point[j]+float64(1+r.Intn(3))
		switch r.Intn(4) {
		case 1:
			upper = math.Inf(1)
		case 2:
			lower = math.Inf(-1)
		case 3:
			lower, upper = math.Inf(-1), math.Inf(1)
		}
		tokens[j] = m.AddToken(fmt.Sprintf("x%d", j), model.Continuous, lower, upper)
		m.AddObjectiveTerm(tokens[j], float64(r.Intn(11)-5))
	}
	for i := 0; i < rows; i++ {
		var terms []model.Term
		lhs := 0.0
		for j := 0; j < n; j++ {
			if r.Intn(3) == 0 {
				continue
			}
			coef := float64(r.Intn(9) - 4)
			terms = append(terms, model.Term{Token: tokens[j], Coefficient: coef})
			lhs += coef * point[j]
		}
		sign := model.Sign(r.Intn(3))
		rhs := lhs
		switch sign {
		case model.LessEqual:
			rhs += float64(r.Intn(3))
		case model.GreaterEqual:
			rhs -= float64(r.Intn(3))
		}
		m.AddConstraint(fmt.Sprintf("r%d", i), terms, sign, rhs)
	}
	tm, err := triad.Build(m, triad.BuildConfig{})
	if err != nil {
		panic(err)
	}
	return tm
}

func TestRandomStrongDuality(t *testing.T) {
	r := rand.New(rand.NewSource(20))
	solved := 0
	for id := 0; id < 60; id++ {
		primal := feasibleLP(r, id)
		t.Run(primal.Name, func(t *testing.T) {
			p, err := Run(context.Background(), NewSimplex, primal, NewConfig())
			if kind, ok := KindOf(err); ok && kind == ModelUnbounded {
				t.Skip("unbounded")
			}
			require.NoError(t, err)
			solved++

			normalized := primal.Clone()
			normalized.Normalize()
			dual, err := normalized.Dual()
			require.NoError(t, err)
			d, err := Run(context.Background(), NewSimplex, dual, NewConfig())
			require.NoError(t, err)
			assert.InDelta(t, p.Objective, d.Objective, tol*math.Max(1, math.Abs(p.Objective)))

			withDuals, err := Run(context.Background(), NewSimplex, primal, NewConfig(WithDuals(true)))
			require.NoError(t, err)
			assert.InDelta(t, p.Objective, withDuals.Objective, tol*math.Max(1, math.Abs(p.Objective)))
			assert.Len(t, withDuals.Duals, primal.NumRows())
		})
	}
	assert.Positive(t, solved)
}

func TestContinuousSolveStopsAtDeadline(t *testing.T) {
	cfg := NewConfig(WithTimeLimit(time.Minute))
	s := NewSimplex()
	require.NoError(t, s.Init(context.Background(), cfg))
	require.NoError(t, s.Dump(production(t, model.Continuous)))
	require.NoError(t, s.Configure(cfg))

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	require.NoError(t, s.Solve(ctx))

	status, err := s.AnalyzeStatus()
	assert.Equal(t, SolvingException, status)
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, Terminated, kind)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestSolveLPContextReturnsOnCancel(t *testing.T) {
	p, err := NewProblem(production(t, model.Continuous))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = p.solveLPContext(ctx, p.Lower, p.Upper, defaultTolerance)
	assert.True(t, isTerminated(err))

	x, obj, err := p.solveLPContext(context.Background(), p.Lower, p.Upper, defaultTolerance)
	require.NoError(t, err)
	assert.InDelta(t, -36, obj, tol)
	assert.InDeltaSlice(t, []float64{2, 6}, x, tol)
}

func TestQuadraticObjectiveRejected(t *testing.T) {
	m := model.New("quadratic", model.Minimize)
	x := m.AddToken("x", model.Continuous, 0, 1)
	m.AddQuadraticObjectiveTerm(x, x, 1)
	tm, err := triad.Build(m, triad.BuildConfig{})
	require.NoError(t, err)

	_, err = Run(context.Background(), NewSimplex, tm, NewConfig())
	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, SolvingFailure, e.Kind)
	assert.Equal(t, PhaseDump, e.Phase)
	assert.True(t, errors.Is(err, triad.ErrQuadratic))
}

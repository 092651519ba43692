//go:build highs

package solver

import (
	"context"
	"slices"
	"time"

	log "github.com/golang/glog"
	"github.com/lanl/highs"
	"github.com/pkg/errors"

	"lp_colgen/src/model"
	"lp_colgen/src/triad"
)

func init() {
	Register("highs", NewHiGHS)
}

// Options read by the simplex backend only; they are not HiGHS options.
var simplexOnly = map[string]bool{"tolerance": true, "node_limit": true}

// HiGHS drives the HiGHS solver through its cgo bindings. Dump fills the
// high-level model, Configure turns it into a raw model and sets options on
// it.
type HiGHS struct {
	cfg     *Config
	lp      *highs.Model
	raw     *highs.RawModel
	integer bool
	// negated is set when a maximized quadratic objective was passed to
	// HiGHS as a minimization.
	negated  bool
	solution *highs.RawSolution
	elapsed  time.Duration
}

func NewHiGHS() Adapter {
	return &HiGHS{}
}

func (h *HiGHS) Init(ctx context.Context, cfg *Config) error {
	h.cfg = cfg
	h.lp = new(highs.Model)
	return ctx.Err()
}

func (h *HiGHS) Dump(m *triad.Model) error {
	n := m.NumCols()
	h.lp.Maximize = m.Objective.Category == model.Maximize
	h.lp.ColCosts = slices.Clone(m.Objective.Coefficients)
	h.lp.Offset = m.Objective.Constant
	if m.Objective.IsQuadratic() {
		h.dumpHessian(m)
	}
	h.lp.ColLower = make([]float64, n)
	h.lp.ColUpper = make([]float64, n)
	h.lp.VarTypes = make([]highs.VariableType, n)

	for j, v := range m.Variables {
		switch boundKind(v.Lower, v.Upper) {
		case BoundFree:
			h.lp.ColLower[j], h.lp.ColUpper[j] = triad.NegativeInfinity, triad.Infinity
		case BoundLower:
			h.lp.ColLower[j], h.lp.ColUpper[j] = v.Lower, triad.Infinity
		case BoundUpper:
			h.lp.ColLower[j], h.lp.ColUpper[j] = triad.NegativeInfinity, v.Upper
		case BoundFixed:
			h.lp.ColLower[j], h.lp.ColUpper[j] = v.Lower, v.Lower
		case BoundDouble:
			h.lp.ColLower[j], h.lp.ColUpper[j] = v.Lower, v.Upper
		}
		switch v.Domain {
		case model.Integer, model.Binary:
			h.lp.VarTypes[j] = highs.IntegerType
			h.integer = true
		case model.SemiContinuous:
			if triad.IsPositiveInfinity(v.Upper) {
				return errors.Errorf("column %s: semi-continuous columns need a finite upper bound", v.Name)
			}
			h.lp.VarTypes[j] = highs.SemiContinuousType
			h.integer = true
		}
	}

	h.lp.RowLower = make([]float64, m.NumRows())
	h.lp.RowUpper = make([]float64, m.NumRows())
	for i := range m.NumRows() {
		rhs := m.Constraints.RHS[i]
		switch m.Constraints.Signs[i] {
		case model.LessEqual:
			h.lp.RowLower[i], h.lp.RowUpper[i] = triad.NegativeInfinity, rhs
		case model.GreaterEqual:
			h.lp.RowLower[i], h.lp.RowUpper[i] = rhs, triad.Infinity
		case model.Equal:
			h.lp.RowLower[i], h.lp.RowUpper[i] = rhs, rhs
		}
	}
	h.lp.ConstMatrix = make([]highs.Nonzero, 0, len(m.Constraints.Cells))
	for _, c := range m.Constraints.Cells {
		h.lp.ConstMatrix = append(h.lp.ConstMatrix, highs.Nonzero{Row: c.Row, Col: c.Col, Val: c.Coefficient})
	}
	return nil
}

// dumpHessian fills the upper triangle HiGHS expects. HiGHS minimizes
// c'x + x'Qx/2, so diagonal entries are doubled.
func (h *HiGHS) dumpHessian(m *triad.Model) {
	sign := 1.0
	if h.lp.Maximize {
		// HiGHS only solves convex minimizations.
		h.negated, h.lp.Maximize, sign = true, false, -1
		for j := range h.lp.ColCosts {
			h.lp.ColCosts[j] = -h.lp.ColCosts[j]
		}
		h.lp.Offset = -h.lp.Offset
	}
	h.lp.HessianMatrix = make([]highs.Nonzero, 0, len(m.Objective.Quadratic))
	for _, q := range m.Objective.Quadratic {
		v := sign * q.Coefficient
		if q.Row == q.Col {
			v *= 2
		}
		h.lp.HessianMatrix = append(h.lp.HessianMatrix, highs.Nonzero{Row: q.Col, Col: q.Row, Val: v})
	}
}

func (h *HiGHS) Configure(cfg *Config) error {
	h.cfg = cfg
	raw, err := h.lp.ToRawModel()
	if err != nil {
		return err
	}
	h.raw = raw
	if err := raw.SetBoolOption("output_flag", ExtraBool(cfg, "output_flag", false)); err != nil {
		return err
	}
	if cfg.TimeLimit > 0 {
		if err := raw.SetFloat64Option("time_limit", cfg.TimeLimit.Seconds()); err != nil {
			return err
		}
	}
	if h.integer {
		if err := raw.SetFloat64Option("mip_rel_gap", cfg.Gap); err != nil {
			return err
		}
	}
	if cfg.Threads > 0 {
		if err := raw.SetIntOption("threads", cfg.Threads); err != nil {
			return err
		}
	}
	for key, value := range cfg.Extra {
		if simplexOnly[key] || key == "output_flag" {
			continue
		}
		if err := setOption(raw, key, value); err != nil {
			return errors.Wrapf(err, "option %s", key)
		}
	}
	return nil
}

func setOption(raw *highs.RawModel, key string, value any) error {
	switch v := value.(type) {
	case bool:
		return raw.SetBoolOption(key, v)
	case int:
		return raw.SetIntOption(key, v)
	case float64:
		return raw.SetFloat64Option(key, v)
	case string:
		return raw.SetStringOption(key, v)
	case time.Duration:
		return raw.SetFloat64Option(key, v.Seconds())
	}
	return errors.Errorf("unsupported value %v of type %T", value, value)
}

// Native returns the high-level model until Configure builds the raw one.
func (h *HiGHS) Native() any {
	if h.raw != nil {
		return h.raw
	}
	return h.lp
}

func (h *HiGHS) Solve(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return NewError(Terminated, err)
	}
	// the cgo call cannot be interrupted, so the context deadline becomes
	// the engine time limit
	if deadline, ok := ctx.Deadline(); ok {
		left := time.Until(deadline)
		if h.cfg.TimeLimit > 0 {
			left = min(left, h.cfg.TimeLimit)
		}
		if err := h.raw.SetFloat64Option("time_limit", max(left.Seconds(), 0)); err != nil {
			return err
		}
	}
	start := time.Now()
	solution, err := h.raw.Solve()
	h.elapsed = time.Since(start)
	if err != nil {
		return err
	}
	h.solution = solution
	log.V(1).Infof("highs: %v in %v", solution.Status, h.elapsed)
	if errors.Is(ctx.Err(), context.Canceled) {
		return NewError(Terminated, ctx.Err())
	}
	return nil
}

// hasPrimal reports whether HiGHS holds a feasible primal solution.
func (h *HiGHS) hasPrimal() bool {
	status, err := h.solution.GetIntInfo("primal_solution_status")
	return err == nil && status == primalFeasible
}

// primal_solution_status value of a feasible point
const primalFeasible = 2

func (h *HiGHS) AnalyzeStatus() (Status, error) {
	switch h.solution.Status {
	case highs.Optimal:
		return Optimal, nil
	case highs.Infeasible:
		return NoSolution, nil
	case highs.UnboundedOrInfeasible:
		return NoSolution, NewError(ModelInfeasibleOrUnbounded, errors.Errorf("status: %v", h.solution.Status))
	case highs.Unbounded:
		return Unbounded, nil
	case highs.TimeLimit, highs.IterationLimit:
		if h.hasPrimal() {
			return Feasible, nil
		}
		return SolvingException, NewError(Terminated, errors.Errorf("status: %v without a feasible point", h.solution.Status))
	}
	return SolvingException, errors.Errorf("status: %v", h.solution.Status)
}

func (h *HiGHS) AnalyzeSolution() (*Output, error) {
	objective := h.solution.Objective
	bound := objective
	if h.integer {
		b, err := h.solution.GetFloat64Info("mip_dual_bound")
		if err != nil {
			return nil, errors.Wrap(err, "mip dual bound")
		}
		bound = b
	}
	if h.negated {
		objective, bound = -objective, -bound
	}
	return &Output{
		Objective: objective,
		Solution:  slices.Clone(h.solution.ColumnPrimal),
		Time:      h.elapsed,
		BestBound: bound,
	}, nil
}

func (h *HiGHS) Duals() ([]float64, error) {
	if h.integer {
		return nil, errors.New("no duals for an integer model")
	}
	duals := slices.Clone(h.solution.RowDual)
	if h.negated {
		for i := range duals {
			duals[i] = -duals[i]
		}
	}
	return duals, nil
}

func (h *HiGHS) Close() error {
	h.lp, h.raw, h.solution = nil, nil, nil
	return nil
}

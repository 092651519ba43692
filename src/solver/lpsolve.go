//go:build lpsolve

package solver

import (
	"context"
	"time"

	"github.com/draffensperger/golp"
	log "github.com/golang/glog"
	"github.com/pkg/errors"

	"lp_colgen/src/model"
	"lp_colgen/src/triad"
)

func init() {
	Register("lpsolve", NewLPSolve)
}

// lp_solve treats magnitudes at or above this value as infinite.
const lpSolveInfinity = 1e30

type LPSolve struct {
	cfg      *Config
	lp       *golp.LP
	constant float64
	result   golp.SolutionType
	elapsed  time.Duration
}

func NewLPSolve() Adapter {
	return &LPSolve{}
}

func (l *LPSolve) Init(ctx context.Context, cfg *Config) error {
	l.cfg = cfg
	return ctx.Err()
}

func (l *LPSolve) Dump(m *triad.Model) error {
	if m.Objective.IsQuadratic() {
		return NewError(SolvingFailure, errors.Wrap(triad.ErrQuadratic, "lp_solve backend"))
	}
	l.lp = golp.NewLP(0, m.NumCols())
	l.lp.SetVerboseLevel(golp.NEUTRAL)
	if m.Objective.Category == model.Maximize {
		l.lp.SetMaximize()
	}
	l.lp.SetObjFn(m.Objective.Coefficients)

	for j, v := range m.Variables {
		l.lp.SetColName(j, v.Name)
		switch v.Domain {
		case model.SemiContinuous:
			return errors.Errorf("column %s: semi-continuous columns are not supported by this backend", v.Name)
		case model.Integer, model.Binary:
			l.lp.SetInt(j, true)
		}
		if v.Free() {
			l.lp.SetUnbounded(j)
			continue
		}
		l.lp.SetBounds(j, triad.Clamp(v.Lower, lpSolveInfinity), triad.Clamp(v.Upper, lpSolveInfinity))
	}

	for i := range m.NumRows() {
		row := m.Constraints.Row(i)
		entries := make([]golp.Entry, len(row))
		for k, c := range row {
			entries[k] = golp.Entry{Col: c.Col, Val: c.Coefficient}
		}
		var ct golp.ConstraintType
		switch m.Constraints.Signs[i] {
		case model.LessEqual:
			ct = golp.LE
		case model.GreaterEqual:
			ct = golp.GE
		default:
			ct = golp.EQ
		}
		if err := l.lp.AddConstraintSparse(entries, ct, m.Constraints.RHS[i]); err != nil {
			return errors.Wrapf(err, "row %s", m.Constraints.Names[i])
		}
	}
	// lp_solve has no objective constant.
	l.constant = m.Objective.Constant
	log.V(2).Infof("lpsolve: %s dumped with %d rows", m.Name, m.NumRows())
	return nil
}

func (l *LPSolve) Configure(cfg *Config) error {
	l.cfg = cfg
	return nil
}

func (l *LPSolve) Native() any {
	return l.lp
}

func (l *LPSolve) Solve(ctx context.Context) error {
	start := time.Now()
	l.result = l.lp.Solve()
	l.elapsed = time.Since(start)
	return ctx.Err()
}

func (l *LPSolve) AnalyzeStatus() (Status, error) {
	switch l.result {
	case golp.OPTIMAL, golp.PRESOLVED:
		return Optimal, nil
	case golp.SUBOPTIMAL:
		return Feasible, nil
	case golp.INFEASIBLE:
		return NoSolution, nil
	case golp.UNBOUNDED:
		return Unbounded, nil
	}
	return SolvingException, errors.Errorf("status: %v", l.result)
}

func (l *LPSolve) AnalyzeSolution() (*Output, error) {
	obj := l.lp.Objective() + l.constant
	return &Output{
		Objective: obj,
		Solution:  l.lp.Variables(),
		Time:      l.elapsed,
		BestBound: obj,
	}, nil
}

func (l *LPSolve) Close() error {
	l.lp = nil
	return nil
}

package solver

import (
	"context"
	"slices"
	"time"

	"github.com/pkg/errors"

	"lp_colgen/src/triad"
)

func init() {
	Register("simplex", NewSimplex)
}

// Simplex is the pure Go backend: gonum's simplex for continuous models and
// best-first branch and bound over it for integer ones.
type Simplex struct {
	cfg     *Config
	integer bool
	problem *Problem

	result  *bbResult
	elapsed time.Duration
	closed  bool
}

func NewSimplex() Adapter {
	return &Simplex{}
}

func (s *Simplex) Init(ctx context.Context, cfg *Config) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.cfg = cfg
	return nil
}

func (s *Simplex) Dump(m *triad.Model) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if m.Objective.IsQuadratic() {
		return NewError(SolvingFailure, errors.Wrap(triad.ErrQuadratic, "simplex backend"))
	}
	p, err := NewProblem(m)
	if err != nil {
		return err
	}
	s.problem = p
	s.integer = p.hasDiscrete()
	return nil
}

func (s *Simplex) Configure(cfg *Config) error {
	if cfg.Gap < 0 {
		return errors.Errorf("negative gap %g", cfg.Gap)
	}
	if ExtraInt(cfg, "node_limit", defaultNodeLimit) <= 0 {
		return errors.New("node_limit must be positive")
	}
	s.cfg = cfg
	return nil
}

func (s *Simplex) Native() any {
	return s.problem
}

func (s *Simplex) Solve(ctx context.Context) error {
	if s.cfg.TimeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.TimeLimit)
		defer cancel()
	}
	start := time.Now()
	defer func() { s.elapsed = time.Since(start) }()

	if !s.integer {
		x, obj, err := s.problem.solveLPContext(ctx, s.problem.Lower, s.problem.Upper, simplexTolerance(s.cfg))
		switch {
		case err == errInfeasible:
			s.result = &bbResult{status: NoSolution}
		case err == errUnbounded:
			s.result = &bbResult{status: Unbounded}
		case errors.Is(err, context.DeadlineExceeded):
			s.result = timedOut(err)
		case err != nil:
			return err
		default:
			inc := &incumbent{x: x, objective: obj}
			s.result = &bbResult{status: Optimal, best: inc, bound: obj, pool: []incumbent{*inc}}
		}
	} else {
		res, err := newBranchAndBound(s.problem, s.cfg).run(ctx)
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			s.result = timedOut(err)
		case err != nil:
			return err
		default:
			s.result = res
		}
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return NewError(Terminated, ctx.Err())
	}
	return nil
}

// timedOut reports a solve stopped by the time limit before it found a
// solution.
func timedOut(err error) *bbResult {
	return &bbResult{status: SolvingException, reason: NewError(Terminated, errors.Wrap(err, "time limit reached"))}
}

func (s *Simplex) AnalyzeStatus() (Status, error) {
	if s.result == nil {
		return SolvingException, errors.New("not solved")
	}
	return s.result.status, s.result.reason
}

type lpResult struct {
	x   []float64
	obj float64
	err error
}

// solveLPContext runs solveLP until ctx is done. gonum's simplex cannot be
// interrupted: an abandoned solve finishes in the background and its result
// is dropped.
func (p *Problem) solveLPContext(ctx context.Context, lower, upper []float64, tol float64) ([]float64, float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, NewError(Terminated, err)
	}
	done := make(chan lpResult, 1)
	go func() {
		x, obj, err := p.solveLP(lower, upper, tol)
		done <- lpResult{x: x, obj: obj, err: err}
	}()
	select {
	case r := <-done:
		return r.x, r.obj, r.err
	case <-ctx.Done():
		return nil, 0, NewError(Terminated, ctx.Err())
	}
}

func (s *Simplex) AnalyzeSolution() (*Output, error) {
	best := s.result.best
	if best == nil {
		return nil, errors.New("no solution available")
	}
	sense := s.problem.Sense
	return &Output{
		Objective: sense * best.objective,
		Solution:  slices.Clone(best.x),
		Time:      s.elapsed,
		BestBound: sense * s.result.bound,
	}, nil
}

func (s *Simplex) Pool(amount int) ([][]float64, error) {
	pool := make([][]float64, 0, min(amount, len(s.result.pool)))
	for _, inc := range s.result.pool {
		if len(pool) == amount {
			break
		}
		pool = append(pool, slices.Clone(inc.x))
	}
	return pool, nil
}

func (s *Simplex) Close() error {
	if s.closed {
		return errors.New("simplex backend closed twice")
	}
	s.closed = true
	s.problem = nil
	return nil
}

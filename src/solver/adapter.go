package solver

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"sync"

	log "github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
	"golang.org/x/sync/errgroup"

	"lp_colgen/src/triad"
)

// Adapter drives one solver engine through the solving phases. An adapter
// instance solves one model once; Run creates a fresh one per call and
// always closes it.
type Adapter interface {
	Init(ctx context.Context, cfg *Config) error
	Dump(m *triad.Model) error
	Configure(cfg *Config) error
	Solve(ctx context.Context) error
	AnalyzeStatus() (Status, error)
	AnalyzeSolution() (*Output, error)
	// Native returns the engine model handed to callbacks.
	Native() any
	Close() error
}

// DualProvider is implemented by adapters that read row duals from the
// engine after a continuous solve.
type DualProvider interface {
	Duals() ([]float64, error)
}

// PoolProvider is implemented by adapters that keep alternative solutions.
type PoolProvider interface {
	Pool(amount int) ([][]float64, error)
}

type Factory func() Adapter

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register makes a backend available by name. Backends register themselves
// from init.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = f
}

func Lookup(name string) (Factory, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[name]
	if !ok {
		return nil, errors.Errorf("unknown solver %q, available: %v", name, backends())
	}
	return f, nil
}

func Backends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return backends()
}

func backends() []string {
	names := maps.Keys(registry)
	slices.Sort(names)
	return names
}

func phaseError(phase Phase, kind ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Phase == 0 && phase != 0 {
			e.Phase = phase
		}
		return e
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		kind = Terminated
	}
	return &Error{Kind: kind, Phase: phase, Err: err}
}

// Run solves m with a new adapter from newAdapter. Phases run in order and
// the first failure is returned as an *Error. When cfg.Duals is set and the
// adapter cannot report duals itself, the dual model is solved alongside
// the primal and the first failure of either cancels the other.
func Run(ctx context.Context, newAdapter Factory, m *triad.Model, cfg *Config) (*Output, error) {
	if cfg == nil {
		cfg = NewConfig()
	}
	if !cfg.Duals || m.ContainsInteger() || providesDuals(newAdapter) {
		return runPhases(ctx, newAdapter, m, cfg)
	}

	var (
		primal, dual       *Output
		primalErr, dualErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		primal, primalErr = runPhases(gctx, newAdapter, m, cfg)
		return primalErr
	})
	g.Go(func() error {
		dual, dualErr = solveDual(gctx, newAdapter, m, cfg)
		return dualErr
	})
	_ = g.Wait()

	switch {
	case primalErr != nil && (dualErr == nil || !isTerminated(primalErr)):
		return nil, primalErr
	case dualErr != nil:
		return nil, dualErr
	}
	primal.Duals = dual.Solution[:m.NumRows()]
	return primal, nil
}

func providesDuals(newAdapter Factory) bool {
	a := newAdapter()
	defer a.Close()
	_, ok := a.(DualProvider)
	return ok
}

func isTerminated(err error) bool {
	kind, ok := KindOf(err)
	return ok && kind == Terminated
}

// solveDual solves the LP dual of m. Legitimate failures are reported as
// the kind they imply for m itself.
func solveDual(ctx context.Context, newAdapter Factory, m *triad.Model, cfg *Config) (*Output, error) {
	normalized := m.Clone()
	normalized.LinearRelax()
	normalized.Normalize()
	d, err := normalized.Dual()
	if err != nil {
		return nil, NewError(ModelingException, err)
	}
	out, err := runPhases(ctx, newAdapter, d, cfg.With(WithDuals(false), WithSolutionAmount(0)))
	if err != nil {
		var e *Error
		if errors.As(err, &e) {
			switch e.Kind {
			case ModelUnbounded:
				return nil, &Error{Kind: ModelInfeasible, Phase: e.Phase, Err: errors.New("dual model is unbounded")}
			case ModelInfeasible, ModelInfeasibleOrUnbounded:
				return nil, &Error{Kind: ModelInfeasibleOrUnbounded, Phase: e.Phase, Err: errors.New("dual model is infeasible")}
			}
		}
		return nil, errors.Wrap(err, "dual model")
	}
	return out, nil
}

func runPhases(ctx context.Context, newAdapter Factory, m *triad.Model, cfg *Config) (out *Output, err error) {
	a := newAdapter()
	defer func() {
		if cerr := a.Close(); cerr != nil {
			log.Warningf("closing solver for %s: %v", m.Name, cerr)
		}
	}()
	defer func() {
		if err != nil {
			log.V(1).Infof("%s: %v", m.Name, err)
			if cbErr := cfg.runCallBacks(AfterFailure, a.Native(), m); cbErr != nil {
				log.Warningf("failure callback for %s: %v", m.Name, cbErr)
			}
		}
	}()

	if err = phaseError(PhaseInit, EnvironmentLost, a.Init(ctx, cfg)); err != nil {
		return nil, err
	}
	if err = phaseError(PhaseDump, ModelingException, a.Dump(m)); err != nil {
		return nil, err
	}
	if cfg.ExportDir != "" {
		m.ExportAsync(filepath.Join(cfg.ExportDir, fmt.Sprintf("%s-%s.lp", m.Name, uuid.NewString())))
	}
	if err = phaseError(PhaseDump, ModelingException, cfg.runCallBacks(AfterModeling, a.Native(), m)); err != nil {
		return nil, err
	}
	if err = phaseError(PhaseConfigure, ModelingException, a.Configure(cfg)); err != nil {
		return nil, err
	}
	if err = phaseError(PhaseConfigure, ModelingException, cfg.runCallBacks(Configuration, a.Native(), m)); err != nil {
		return nil, err
	}
	log.V(1).Infof("%s: solving %v", m.Name, m)
	if err = phaseError(PhaseSolve, SolvingFailure, a.Solve(ctx)); err != nil {
		return nil, err
	}

	status, serr := a.AnalyzeStatus()
	if err = phaseError(PhaseAnalyzeStatus, SolvingFailure, serr); err != nil {
		return nil, err
	}
	if !status.Succeeded() {
		err = &Error{Kind: failureKind(status), Phase: PhaseAnalyzeStatus}
		return nil, err
	}

	out, serr = a.AnalyzeSolution()
	if err = phaseError(PhaseAnalyzeSolution, SolvingFailure, serr); err != nil {
		return nil, err
	}
	out.Status = status
	integer := m.ContainsInteger()
	if !integer {
		out.BestBound = out.Objective
	}
	out.Gap = Gap(out.Objective, out.BestBound, integer)
	if len(out.Solution) < m.NumCols() {
		out.Solution = append(out.Solution, make([]float64, m.NumCols()-len(out.Solution))...)
	}

	if cfg.Duals && !integer {
		if dp, ok := a.(DualProvider); ok {
			duals, derr := dp.Duals()
			if err = phaseError(PhaseAnalyzeSolution, SolvingFailure, derr); err != nil {
				return nil, err
			}
			out.Duals = duals
		}
	}
	if cfg.SolutionAmount > 1 {
		if pp, ok := a.(PoolProvider); ok {
			pool, perr := pp.Pool(cfg.SolutionAmount)
			if err = phaseError(PhaseAnalyzeSolution, SolvingFailure, perr); err != nil {
				return nil, err
			}
			out.Pool = pool
		}
		if len(out.Pool) == 0 {
			out.Pool = [][]float64{slices.Clone(out.Solution)}
		}
	}

	if err = phaseError(PhaseAnalyzeSolution, SolvingFailure, cfg.runCallBacks(AnalyzingSolution, a.Native(), m)); err != nil {
		return nil, err
	}
	log.V(1).Infof("%s: %v, objective %g, bound %g, gap %g, %v", m.Name, status, out.Objective, out.BestBound, out.Gap, out.Time)
	return out, nil
}

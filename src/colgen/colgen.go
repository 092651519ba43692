package colgen

import (
	"context"
	"math"

	log "github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"lp_colgen/src/model"
	"lp_colgen/src/shadow"
	"lp_colgen/src/solver"
	"lp_colgen/src/triad"
)

type Candidate[T any] struct {
	Content     T
	ReducedCost float64
}

// Pricer solves one pricing subproblem. It returns no candidate when it
// finds no improving column; an error aborts the whole run.
type Pricer[T, A any] func(ctx context.Context, prices *shadow.Map[A]) ([]Candidate[T], error)

type Problem[T, A any] interface {
	Describer[T]
	Master() *model.Model
	// Prices turns the row duals of the relaxed master into a price map.
	Prices(duals []float64) (*shadow.Map[A], error)
	Pricers() []Pricer[T, A]
}

type Selection[T any] struct {
	Column *Column[T]
	Value  float64
}

type Result[T any] struct {
	RunID string
	// Relaxed holds the relaxed master objective of every iteration.
	Relaxed    []float64
	Iterations int
	Objective  float64
	Output     *solver.Output
	// Selected are the columns used by the final integer solution.
	Selected []Selection[T]
}

// Bound is the last relaxed objective, a bound on the integer optimum over
// the generated columns.
func (r *Result[T]) Bound() float64 {
	if len(r.Relaxed) == 0 {
		return math.NaN()
	}
	return r.Relaxed[len(r.Relaxed)-1]
}

func relaxedSolve(ctx context.Context, master *model.Model, newAdapter solver.Factory, cfg *solver.Config) (*solver.Output, error) {
	tm, err := triad.Build(master, cfg.BuildConfig())
	if err != nil {
		return nil, solver.NewError(solver.ModelingException, err)
	}
	tm.LinearRelax()
	out, err := solver.Run(ctx, newAdapter, tm, cfg.With(solver.WithDuals(true)))
	if err != nil {
		return nil, err
	}
	if err := master.SetSolution(out.Solution); err != nil {
		return nil, err
	}
	return out, nil
}

// price runs every pricer concurrently on the frozen map. Each pricer fills
// its own slot; the first failure cancels the others.
func price[T, A any](ctx context.Context, pricers []Pricer[T, A], prices *shadow.Map[A]) ([][]Candidate[T], error) {
	results := make([][]Candidate[T], len(pricers))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range pricers {
		i, p := i, p
		g.Go(func() error {
			candidates, err := p(gctx, prices)
			if err != nil {
				return errors.Wrapf(err, "pricer %d", i)
			}
			results[i] = candidates
			return nil
		})
	}
	return results, g.Wait()
}

func (c *Context[T]) improving(results [][]Candidate[T], epsilon float64) []T {
	var contents []T
	for _, candidates := range results {
		for _, cand := range candidates {
			if c.sense()*cand.ReducedCost < -epsilon {
				contents = append(contents, cand.Content)
			}
		}
	}
	return contents
}

// Run generates columns for p starting from initial until no pricer finds
// an improving column, then solves the master with integer columns.
func Run[T, A any](ctx context.Context, p Problem[T, A], initial []T, newAdapter solver.Factory, cfg Config) (*Result[T], error) {
	if cfg.Solver == nil {
		cfg.Solver = solver.NewConfig()
	}
	res := &Result[T]{RunID: uuid.NewString()}
	c := NewContext[T](p.Master(), p, cfg)
	if len(c.AddColumns(initial)) == 0 {
		return nil, ErrNoColumns
	}
	log.V(1).Infof("colgen %s: %s starts with %d columns", res.RunID, c.master.Name(), c.Live())

	for cfg.MaxIterations == 0 || res.Iterations < cfg.MaxIterations {
		if err := ctx.Err(); err != nil {
			return nil, solver.NewError(solver.Terminated, err)
		}
		out, err := relaxedSolve(ctx, c.master, newAdapter, cfg.Solver)
		if err != nil {
			return nil, errors.Wrapf(err, "relaxed master at iteration %d", res.Iterations)
		}
		if n := len(res.Relaxed); n > 0 && c.sense()*(out.Objective-res.Relaxed[n-1]) > triad.Epsilon*math.Max(1, math.Abs(out.Objective)) {
			log.Warningf("colgen %s: relaxed objective went from %g to %g", res.RunID, res.Relaxed[n-1], out.Objective)
		}
		res.Relaxed = append(res.Relaxed, out.Objective)
		res.Iterations++

		prices, err := p.Prices(out.Duals)
		if err != nil {
			return nil, err
		}
		prices.Freeze()
		results, err := price(ctx, p.Pricers(), prices)
		if err != nil {
			return nil, errors.Wrapf(err, "pricing at iteration %d", res.Iterations-1)
		}
		added := c.AddColumns(c.improving(results, cfg.Epsilon))
		log.V(1).Infof("colgen %s: iteration %d relaxed %g, %d new columns", res.RunID, res.Iterations-1, out.Objective, len(added))
		if len(added) == 0 {
			break
		}

		if cfg.RemoveEvery > 0 && res.Iterations%cfg.RemoveEvery == 0 {
			c.Keep(c.ExtractKept())
			c.RemoveColumns(out.Duals)
			c.kept.Clear()
		}
	}

	if err := c.fixingRounds(ctx, newAdapter, cfg); err != nil {
		return nil, err
	}

	tm, err := triad.Build(c.master, cfg.Solver.BuildConfig())
	if err != nil {
		return nil, solver.NewError(solver.ModelingException, err)
	}
	out, err := solver.Run(ctx, newAdapter, tm, cfg.Solver.With(solver.WithDuals(false)))
	if err != nil {
		return nil, errors.Wrap(err, "integer master")
	}
	if err := c.master.SetSolution(out.Solution); err != nil {
		return nil, err
	}
	res.Output = out
	res.Objective = out.Objective
	for _, col := range c.columns {
		if v := col.Value(); !c.Removed(col) && v >= 1-triad.Epsilon {
			res.Selected = append(res.Selected, Selection[T]{Column: col, Value: math.Round(v)})
		}
	}
	c.Flush()
	log.V(1).Infof("colgen %s: %s done after %d iterations, objective %g, bound %g", res.RunID, c.master.Name(), res.Iterations, res.Objective, res.Bound())
	return res, nil
}

// fixingRounds fixes columns of the relaxed solution before the integer
// solve. A legitimate failure of the relaxed master undoes the fixing.
func (c *Context[T]) fixingRounds(ctx context.Context, newAdapter solver.Factory, cfg Config) error {
	for round := 0; round < cfg.FixingRounds; round++ {
		out, err := relaxedSolve(ctx, c.master, newAdapter, cfg.Solver)
		if err != nil {
			if kind, ok := solver.KindOf(err); ok && kind.Legitimate() {
				log.V(1).Infof("%s: fixing round %d made the master infeasible, flushing", c.master.Name(), round)
				c.Flush()
				return nil
			}
			return err
		}
		if integral(out.Solution) {
			return nil
		}
		global := c.ExtractFixed()
		if err := c.GloballyFix(global); err != nil {
			return err
		}
		local := c.LocallyFix(cfg.FixingBar)
		log.V(1).Infof("%s: fixing round %d fixed %d globally, %d locally", c.master.Name(), round, len(global), len(local))
		if len(global) == 0 && len(local) == 0 {
			return nil
		}
	}
	return nil
}

func integral(x []float64) bool {
	for _, v := range x {
		if math.Abs(v-math.Round(v)) > 1e-6 {
			return false
		}
	}
	return true
}

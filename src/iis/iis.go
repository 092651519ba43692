// Package iis explains why a model is infeasible.
//
// Elastic filtering relaxes the model in three growing tiers and reports the
// cheapest relaxation that restores feasibility. Deletion filtering then
// narrows the rows and bounds down to an irreducible infeasible subset.
package iis

import (
	"context"
	"fmt"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	log "github.com/golang/glog"
	"github.com/pkg/errors"

	"lp_colgen/src/model"
	"lp_colgen/src/solver"
	"lp_colgen/src/triad"
)

var ErrFeasible = errors.New("model is feasible")

type Stage int

const (
	StageElastic Stage = iota
	StageDeletion
)

func (s Stage) String() string {
	return [...]string{"elastic", "deletion"}[s]
}

type Progress struct {
	Stage            Stage
	Tier             triad.ElasticTier
	RestBounds       int
	TotalBounds      int
	RestConstraints  int
	TotalConstraints int
	Elapsed          time.Duration
}

type Config struct {
	// SlackTolerance is the slack value above which a relaxation counts.
	SlackTolerance float64
	// Progress is called after every tier and deletion probe. An error
	// stops the computation and the result so far is returned.
	Progress func(Progress) error
	// Isolate runs deletion filtering even when a tier restores
	// feasibility.
	Isolate bool
	Solver  *solver.Config
}

func DefaultConfig() Config {
	return Config{
		SlackTolerance: 1e-6,
		Solver:         solver.NewConfig(),
	}
}

// Relaxation is one slack of the elastic model with a positive value.
type Relaxation struct {
	Owner triad.SlackOwner
	// Index is a row index for row slacks and a column index otherwise.
	Index  int
	Name   string
	Amount float64
}

func (r Relaxation) String() string {
	return fmt.Sprintf("%s by %g", r.Name, r.Amount)
}

// Bound names one side of a column's bounds.
type Bound struct {
	Col   int
	Upper bool
}

type Result struct {
	// Tier is the first tier whose relaxation is feasible. Relaxed is false
	// when none is.
	Tier        triad.ElasticTier
	Relaxed     bool
	Relaxations []Relaxation

	// Rows are the irreducible infeasible rows and Guards the bounds that
	// have to stay with them. Both are empty unless deletion filtering ran
	// to completion.
	Rows     []int
	Guards   []Bound
	Isolated bool

	Aborted bool
	Elapsed time.Duration
}

func (r *Result) RowNames(m *triad.Model) []string {
	names := make([]string, len(r.Rows))
	for k, i := range r.Rows {
		names[k] = m.Constraints.Names[i]
	}
	return names
}

type computation struct {
	m          *triad.Model
	newAdapter solver.Factory
	cfg        Config
	start      time.Time
	res        *Result
}

// Compute diagnoses m. It returns ErrFeasible when m has a solution and a
// solver error when a sub-solve fails for another reason than
// infeasibility.
func Compute(ctx context.Context, m *triad.Model, newAdapter solver.Factory, cfg Config) (*Result, error) {
	if cfg.Solver == nil {
		cfg.Solver = solver.NewConfig()
	}
	c := &computation{m: m, newAdapter: newAdapter, cfg: cfg, start: time.Now(), res: &Result{}}
	defer func() { c.res.Elapsed = time.Since(c.start) }()

	feasible, err := c.feasible(ctx, m)
	if err != nil {
		return nil, err
	}
	if feasible {
		return nil, ErrFeasible
	}

	stop, err := c.elastic(ctx)
	if err != nil || stop {
		return c.res, err
	}
	if c.res.Relaxed && !cfg.Isolate {
		return c.res, nil
	}
	if _, err := c.deletion(ctx); err != nil {
		return nil, err
	}
	return c.res, nil
}

// feasible solves x with a zero objective. Legitimate failures mean
// infeasible; every other failure is returned.
func (c *computation) feasible(ctx context.Context, x *triad.Model) (bool, error) {
	zeroed := x
	if len(x.Objective.Coefficients) > 0 || x.Objective.IsQuadratic() {
		zeroed = x.Clone()
		clear(zeroed.Objective.Coefficients)
		zeroed.Objective.Quadratic = nil
		zeroed.Objective.Constant = 0
	}
	_, err := solver.Run(ctx, c.newAdapter, zeroed, c.cfg.Solver.With(solver.WithDuals(false), solver.WithSolutionAmount(0)))
	if err == nil {
		return true, nil
	}
	if kind, ok := solver.KindOf(err); ok && kind.Legitimate() {
		return false, nil
	}
	return false, err
}

func (c *computation) counts() (bounds, rows int) {
	for _, v := range c.m.Variables {
		if !triad.IsNegativeInfinity(v.Lower) {
			bounds++
		}
		if !triad.IsPositiveInfinity(v.Upper) {
			bounds++
		}
	}
	return bounds, c.m.NumRows()
}

// report calls the progress callback. It returns true when the callback
// asks to stop.
func (c *computation) report(p Progress) bool {
	if c.cfg.Progress == nil {
		return false
	}
	p.TotalBounds, p.TotalConstraints = c.counts()
	p.Elapsed = time.Since(c.start)
	if err := c.cfg.Progress(p); err != nil {
		log.V(1).Infof("iis of %s stopped after %v: %v", c.m.Name, p.Stage, err)
		c.res.Aborted = true
		return true
	}
	return false
}

func (c *computation) elastic(ctx context.Context) (bool, error) {
	for _, tier := range []triad.ElasticTier{triad.ElasticBounds, triad.ElasticInequalities, triad.ElasticAll} {
		e := c.m.Elastic(tier)
		out, err := solver.Run(ctx, c.newAdapter, e, c.cfg.Solver.With(solver.WithDuals(false), solver.WithSolutionAmount(0)))
		if err != nil {
			if kind, ok := solver.KindOf(err); !ok || !kind.Legitimate() {
				return false, errors.Wrapf(err, "elastic tier %v", tier)
			}
		} else {
			c.res.Tier = tier
			c.res.Relaxed = true
			c.res.Relaxations = c.relaxations(e.Violations(out.Solution, c.cfg.SlackTolerance))
			log.V(1).Infof("iis of %s: tier %v relaxes %v", c.m.Name, tier, c.res.Relaxations)
		}

		// every tier relaxes all bounds.
		if c.report(Progress{Stage: StageElastic, Tier: tier, RestConstraints: c.rigidRows(tier)}) {
			return true, nil
		}
		if c.res.Relaxed {
			return false, nil
		}
	}
	return false, nil
}

// rigidRows counts the rows a tier does not relax.
func (c *computation) rigidRows(tier triad.ElasticTier) int {
	switch tier {
	case triad.ElasticBounds:
		return c.m.NumRows()
	case triad.ElasticInequalities:
		rest := 0
		for _, s := range c.m.Constraints.Signs {
			if s == model.Equal {
				rest++
			}
		}
		return rest
	}
	return 0
}

func (c *computation) relaxations(slacks []triad.SlackValue) []Relaxation {
	ret := make([]Relaxation, len(slacks))
	for k, s := range slacks {
		r := Relaxation{Owner: s.Owner, Index: s.Index, Amount: s.Value}
		switch s.Owner {
		case triad.RowSlack:
			r.Name = c.m.Constraints.Names[s.Index]
		case triad.LowerBoundSlack:
			r.Name = c.m.Variables[s.Index].Name + "_lb"
		case triad.UpperBoundSlack:
			r.Name = c.m.Variables[s.Index].Name + "_ub"
		}
		ret[k] = r
	}
	return ret
}

type member struct {
	row   int
	bound Bound
	isRow bool
}

func (mb member) String() string {
	if mb.isRow {
		return fmt.Sprintf("row %d", mb.row)
	}
	if mb.bound.Upper {
		return fmt.Sprintf("upper bound of column %d", mb.bound.Col)
	}
	return fmt.Sprintf("lower bound of column %d", mb.bound.Col)
}

// deletion drops members one at a time in declaration order: rows first,
// then bounds with the lower bound of a column before its upper bound. A
// member whose removal keeps the model infeasible is dropped for good;
// the others form the irreducible subset.
func (c *computation) deletion(ctx context.Context) (bool, error) {
	var members []member
	for i := 0; i < c.m.NumRows(); i++ {
		members = append(members, member{row: i, isRow: true})
	}
	for j, v := range c.m.Variables {
		if !triad.IsNegativeInfinity(v.Lower) {
			members = append(members, member{bound: Bound{Col: j}})
		}
		if !triad.IsPositiveInfinity(v.Upper) {
			members = append(members, member{bound: Bound{Col: j, Upper: true}})
		}
	}
	kept := mapset.NewThreadUnsafeSet(members...)

	for _, mb := range members {
		if err := ctx.Err(); err != nil {
			return false, solver.NewError(solver.Terminated, err)
		}
		kept.Remove(mb)
		feasible, err := c.feasible(ctx, c.restrict(kept))
		if err != nil {
			return false, errors.Wrapf(err, "deletion probe on %v", mb)
		}
		if feasible {
			kept.Add(mb)
		}

		rows, bounds := 0, 0
		for k := range kept.Iter() {
			if k.isRow {
				rows++
			} else {
				bounds++
			}
		}
		if c.report(Progress{Stage: StageDeletion, RestBounds: bounds, RestConstraints: rows}) {
			return true, nil
		}
	}

	c.res.Rows, c.res.Guards = nil, nil
	for _, mb := range members {
		if !kept.Contains(mb) {
			continue
		}
		if mb.isRow {
			c.res.Rows = append(c.res.Rows, mb.row)
		} else {
			c.res.Guards = append(c.res.Guards, mb.bound)
		}
	}
	c.res.Isolated = true
	log.V(1).Infof("iis of %s: %d rows, %d bounds", c.m.Name, len(c.res.Rows), len(c.res.Guards))
	return false, nil
}

func (c *computation) restrict(kept mapset.Set[member]) *triad.Model {
	n := c.m.NumCols()
	lower, upper := make([]bool, n), make([]bool, n)
	var rows []int
	for i := 0; i < c.m.NumRows(); i++ {
		if kept.Contains(member{row: i, isRow: true}) {
			rows = append(rows, i)
		}
	}
	for j := 0; j < n; j++ {
		lower[j] = kept.Contains(member{bound: Bound{Col: j}})
		upper[j] = kept.Contains(member{bound: Bound{Col: j, Upper: true}})
	}
	return c.m.Feasibility(rows, lower, upper)
}

// Package cuttingstock solves the one-dimensional cutting stock problem by
// column generation over cutting patterns.
package cuttingstock

import (
	"context"
	"fmt"
	"math"
	"strings"

	log "github.com/golang/glog"
	"github.com/pkg/errors"
	"gopkg.in/dnaeon/go-priorityqueue.v1"

	"lp_colgen/src/colgen"
	"lp_colgen/src/model"
	"lp_colgen/src/shadow"
	"lp_colgen/src/solver"
	"lp_colgen/src/triad"
)

// demandKey identifies the demand row of a product in the price map.
type demandKey struct {
	product int
}

type problem struct {
	inst       *Instance
	master     *model.Model
	demands    []*model.Constraint
	newAdapter solver.Factory
	cfg        *solver.Config
}

func newProblem(inst *Instance, newAdapter solver.Factory, cfg *solver.Config) *problem {
	p := &problem{
		inst:       inst,
		master:     model.New("cutting_stock", model.Minimize),
		newAdapter: newAdapter,
		cfg:        cfg,
	}
	for i, prod := range inst.Products {
		p.demands = append(p.demands, p.master.AddConstraint(
			fmt.Sprintf("product_demand_%d", i), nil, model.GreaterEqual, float64(prod.Demand)))
	}
	return p
}

func (p *problem) Master() *model.Model { return p.master }

func (p *problem) Key(pattern Pattern) string { return pattern.key() }

// Cost of a pattern is one bar.
func (p *problem) Cost(Pattern) float64 { return 1 }

func (p *problem) Terms(pattern Pattern) []colgen.Coefficient {
	var ret []colgen.Coefficient
	for i, n := range pattern {
		if n > 0 {
			ret = append(ret, colgen.Coefficient{Constraint: p.demands[i], Value: float64(n)})
		}
	}
	return ret
}

func (p *problem) Prices(duals []float64) (*shadow.Map[int], error) {
	prices := shadow.New[int](func(m *shadow.Map[int], product int) (float64, bool) {
		return m.Get(demandKey{product})
	})
	keys := make([]any, len(p.demands))
	for i := range p.demands {
		keys[i] = demandKey{i}
	}
	return prices, prices.Load(keys, duals)
}

func (p *problem) Pricers() []colgen.Pricer[Pattern, int] {
	return []colgen.Pricer[Pattern, int]{p.knapsack, p.greedy}
}

func (p *problem) values(prices *shadow.Map[int]) ([]float64, error) {
	ret := make([]float64, len(p.inst.Products))
	for i := range ret {
		v, ok := prices.Extract(i)
		if !ok {
			return nil, errors.Errorf("no price for %s", p.inst.productName(i))
		}
		ret[i] = v
	}
	return ret, nil
}

// reducedCost is the cost of a bar minus the priced pieces it yields.
func reducedCost(pattern Pattern, values []float64) float64 {
	rc := 1.0
	for i, n := range pattern {
		rc -= float64(n) * values[i]
	}
	return rc
}

// knapsack finds the pattern of least reduced cost with an integer solve.
func (p *problem) knapsack(ctx context.Context, prices *shadow.Map[int]) ([]colgen.Candidate[Pattern], error) {
	values, err := p.values(prices)
	if err != nil {
		return nil, err
	}
	m := model.New("pattern", model.Minimize)
	terms := make([]model.Term, 0, len(values))
	objective := make([]model.Term, 0, len(values))
	for i, prod := range p.inst.Products {
		y := m.AddToken(fmt.Sprintf("y_%d", i), model.Integer, 0, math.Floor(p.inst.Stock/prod.Length))
		terms = append(terms, model.Term{Token: y, Coefficient: prod.Length})
		objective = append(objective, model.Term{Token: y, Coefficient: -values[i]})
	}
	m.AddConstraint("stock", terms, model.LessEqual, p.inst.Stock)
	m.AddObjective(model.Minimize, 1, objective...)

	tm, err := triad.Build(m, p.cfg.BuildConfig())
	if err != nil {
		return nil, err
	}
	out, err := solver.Run(ctx, p.newAdapter, tm, p.cfg.With(solver.WithDuals(false), solver.WithGap(1e-6), solver.WithSolutionAmount(0)))
	if err != nil {
		return nil, errors.Wrap(err, "pattern knapsack")
	}
	pattern := make(Pattern, len(values))
	for i, v := range out.Solution {
		pattern[i] = int(math.Round(v))
	}
	if pattern.key() == "" {
		return nil, nil
	}
	return []colgen.Candidate[Pattern]{{Content: pattern, ReducedCost: reducedCost(pattern, values)}}, nil
}

// greedy fills one bar by decreasing price per unit of length.
func (p *problem) greedy(_ context.Context, prices *shadow.Map[int]) ([]colgen.Candidate[Pattern], error) {
	values, err := p.values(prices)
	if err != nil {
		return nil, err
	}
	pq := priorityqueue.New[int, float64](priorityqueue.MinHeap)
	for i, prod := range p.inst.Products {
		if values[i] > 0 {
			pq.Put(i, -values[i]/prod.Length)
		}
	}
	pattern := make(Pattern, len(values))
	space := p.inst.Stock
	for pq.Len() > 0 {
		i := pq.Get().Value
		n := int(math.Floor(space / p.inst.Products[i].Length))
		pattern[i] = n
		space -= float64(n) * p.inst.Products[i].Length
	}
	if pattern.key() == "" {
		return nil, nil
	}
	return []colgen.Candidate[Pattern]{{Content: pattern, ReducedCost: reducedCost(pattern, values)}}, nil
}

type Cut struct {
	Pattern Pattern
	Amount  int
	Waste   float64
}

type Plan struct {
	Instance *Instance
	RunID    string
	Bars     int
	Cuts     []Cut
	// Bound is the relaxed master optimum; no plan uses fewer bars than
	// its ceiling.
	Bound      float64
	Iterations int
}

func (plan *Plan) Waste() float64 {
	total := 0.0
	for _, c := range plan.Cuts {
		total += float64(c.Amount) * c.Waste
	}
	return total
}

// Produced returns the number of pieces cut for every product.
func (plan *Plan) Produced() []int {
	ret := make([]int, len(plan.Instance.Products))
	for _, c := range plan.Cuts {
		for i, n := range c.Pattern {
			ret[i] += c.Amount * n
		}
	}
	return ret
}

func (plan *Plan) String() string {
	s := new(strings.Builder)
	fmt.Fprintf(s, "Bars: %d (bound %.4g), waste %g, %d iterations\n", plan.Bars, plan.Bound, plan.Waste(), plan.Iterations)
	for _, c := range plan.Cuts {
		fmt.Fprintf(s, "%d x", c.Amount)
		for i, n := range c.Pattern {
			if n > 0 {
				fmt.Fprintf(s, " %d*%s", n, plan.Instance.productName(i))
			}
		}
		fmt.Fprintf(s, " (waste %g)\n", c.Waste)
	}
	return s.String()
}

// Solve cuts inst with as few bars as column generation finds.
func Solve(ctx context.Context, inst *Instance, newAdapter solver.Factory, cfg colgen.Config) (*Plan, error) {
	if err := inst.Validate(); err != nil {
		return nil, err
	}
	if cfg.Solver == nil {
		cfg.Solver = solver.NewConfig()
	}
	p := newProblem(inst, newAdapter, cfg.Solver)

	initial := append(inst.singlePatterns(), inst.greedyPatterns()...)
	log.V(1).Infof("%s: %d initial patterns", inst.Name, len(initial))
	res, err := colgen.Run[Pattern, int](ctx, p, initial, newAdapter, cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "solving %s", inst.Name)
	}

	lengths := inst.lengths()
	plan := &Plan{
		Instance:   inst,
		RunID:      res.RunID,
		Bars:       int(math.Round(res.Objective)),
		Bound:      res.Bound(),
		Iterations: res.Iterations,
	}
	for _, sel := range res.Selected {
		plan.Cuts = append(plan.Cuts, Cut{
			Pattern: sel.Column.Content,
			Amount:  int(sel.Value),
			Waste:   inst.Stock - sel.Column.Content.used(lengths),
		})
	}
	return plan, nil
}

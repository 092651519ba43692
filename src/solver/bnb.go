package solver

import (
	"context"
	"math"
	"slices"

	log "github.com/golang/glog"
	"gopkg.in/dnaeon/go-priorityqueue.v1"
)

const (
	defaultNodeLimit = 50000
	depthBias        = 1e-9
)

type bbNode struct {
	lower []float64
	upper []float64
	x     []float64
	bound float64
	depth int
}

type incumbent struct {
	x         []float64
	objective float64
}

type branchAndBound struct {
	p         *Problem
	tol       float64
	gap       float64
	nodeLimit int
	poolSize  int

	integralObjective bool

	best     *incumbent
	pool     []incumbent
	explored int
}

type bbResult struct {
	status Status
	// reason explains a status that is not a verdict on the model.
	reason    error
	best      *incumbent
	bound     float64
	pool      []incumbent
	explored  int
	unbounded bool
}

func newBranchAndBound(p *Problem, cfg *Config) *branchAndBound {
	bb := &branchAndBound{
		p:         p,
		tol:       simplexTolerance(cfg),
		gap:       cfg.Gap,
		nodeLimit: ExtraInt(cfg, "node_limit", defaultNodeLimit),
		poolSize:  max(cfg.SolutionAmount, 1),
	}
	bb.integralObjective = p.integralObjective()
	return bb
}

func (p *Problem) hasDiscrete() bool {
	return slices.Contains(p.Integer, true) || slices.Contains(p.SemiContinuous, true)
}

// integralObjective reports whether every feasible objective value is an
// integer, which lets node bounds be rounded up.
func (p *Problem) integralObjective() bool {
	for j, c := range p.Costs {
		if c != 0 && (!p.Integer[j] || c != math.Round(c)) {
			return false
		}
	}
	return p.Constant == math.Round(p.Constant)
}

func (bb *branchAndBound) nodeBound(obj float64) float64 {
	if bb.integralObjective {
		return math.Ceil(obj - integralityTol)
	}
	return obj
}

func relativeGap(objective, bound float64) float64 {
	return math.Abs(objective-bound) / math.Max(math.Abs(objective), 1e-10)
}

// branching returns the column to branch on, or -1 when x satisfies every
// integrality and semi-continuity requirement.
func (bb *branchAndBound) branching(x []float64) int {
	col, best := -1, 0.0
	for j, v := range x {
		var score float64
		switch {
		case bb.p.Integer[j]:
			frac := v - math.Floor(v)
			if frac <= integralityTol || frac >= 1-integralityTol {
				continue
			}
			score = 0.5 - math.Abs(frac-0.5)
		case bb.p.SemiContinuous[j]:
			if math.Abs(v) <= integralityTol || v >= bb.p.SemiLower[j]-feasibilityTol {
				continue
			}
			score = 1
		default:
			continue
		}
		if score > best {
			col, best = j, score
		}
	}
	return col
}

func (bb *branchAndBound) children(n *bbNode, col int) []*bbNode {
	down := &bbNode{lower: slices.Clone(n.lower), upper: slices.Clone(n.upper), depth: n.depth + 1}
	up := &bbNode{lower: slices.Clone(n.lower), upper: slices.Clone(n.upper), depth: n.depth + 1}
	if bb.p.SemiContinuous[col] {
		down.lower[col], down.upper[col] = 0, 0
		up.lower[col] = bb.p.SemiLower[col]
	} else {
		down.upper[col] = math.Floor(n.x[col])
		up.lower[col] = math.Ceil(n.x[col])
	}
	return []*bbNode{down, up}
}

func sameSolution(x, y []float64) bool {
	for j := range x {
		if math.Abs(x[j]-y[j]) > integralityTol {
			return false
		}
	}
	return true
}

func (bb *branchAndBound) offer(x []float64) {
	if !bb.p.feasible(x, bb.p.Lower, bb.p.Upper) {
		return
	}
	for j := range x {
		if bb.p.Integer[j] {
			x[j] = math.Round(x[j])
		}
	}
	inc := incumbent{x: x, objective: bb.p.objective(x)}
	if bb.best == nil || inc.objective < bb.best.objective-1e-9 {
		bb.best = &inc
		log.V(2).Infof("new incumbent %g after %d nodes", inc.objective, bb.explored)
	}
	for _, other := range bb.pool {
		if sameSolution(other.x, x) {
			return
		}
	}
	bb.pool = append(bb.pool, inc)
	slices.SortStableFunc(bb.pool, func(a, b incumbent) int {
		switch {
		case a.objective < b.objective:
			return -1
		case a.objective > b.objective:
			return 1
		}
		return 0
	})
	if len(bb.pool) > bb.poolSize {
		bb.pool = bb.pool[:bb.poolSize]
	}
}

// round tries the nearest and the upward rounding of a fractional node
// solution as incumbents.
func (bb *branchAndBound) round(n *bbNode) {
	for _, r := range []func(float64) float64{math.Round, math.Ceil} {
		x := slices.Clone(n.x)
		for j := range x {
			if bb.p.Integer[j] {
				x[j] = math.Max(n.lower[j], math.Min(n.upper[j], r(x[j])))
			}
		}
		bb.offer(x)
	}
}

type childResult struct {
	node *bbNode
	err  error
}

func (bb *branchAndBound) solveChildren(ctx context.Context, children []*bbNode) []childResult {
	results := make([]childResult, len(children))
	done := make(chan int, len(children))
	for i, c := range children {
		i, c := i, c
		go func() {
			x, obj, err := bb.p.solveLPContext(ctx, c.lower, c.upper, bb.tol)
			if err == nil {
				c.x = x
				c.bound = bb.nodeBound(obj)
			}
			results[i] = childResult{node: c, err: err}
			done <- i
		}()
	}
	for range children {
		<-done
	}
	return results
}

func (bb *branchAndBound) run(ctx context.Context) (*bbResult, error) {
	root := &bbNode{lower: slices.Clone(bb.p.Lower), upper: slices.Clone(bb.p.Upper)}
	x, obj, err := bb.p.solveLPContext(ctx, root.lower, root.upper, bb.tol)
	switch {
	case err == errInfeasible:
		return &bbResult{status: NoSolution}, nil
	case err == errUnbounded:
		return &bbResult{status: Unbounded, unbounded: true}, nil
	case err != nil:
		return nil, err
	}
	root.x, root.bound = x, bb.nodeBound(obj)

	pq := priorityqueue.New[int, float64](priorityqueue.MinHeap)
	nodes := make(map[int]*bbNode)
	nextID := 0
	push := func(n *bbNode) {
		nodes[nextID] = n
		pq.Put(nextID, n.bound-depthBias*float64(n.depth))
		nextID++
	}
	push(root)

	stopped, openBound := false, math.Inf(1)
search:
	for pq.Len() > 0 {
		item := pq.Get()
		n := nodes[item.Value]
		delete(nodes, item.Value)

		if bb.best != nil && (n.bound >= bb.best.objective-1e-9 || relativeGap(bb.best.objective, n.bound) <= bb.gap) {
			openBound = n.bound
			break
		}
		if ctx.Err() != nil || bb.explored >= bb.nodeLimit {
			stopped, openBound = true, n.bound
			break
		}

		col := bb.branching(n.x)
		if col < 0 {
			bb.offer(n.x)
			continue
		}
		bb.explored++
		log.V(2).Infof("node %d depth %d bound %g branching on column %d", bb.explored, n.depth, n.bound, col)

		for _, r := range bb.solveChildren(ctx, bb.children(n, col)) {
			switch {
			case r.err == errInfeasible:
				continue
			case ctx.Err() != nil && isTerminated(r.err):
				stopped, openBound = true, n.bound
				break search
			case r.err == errUnbounded:
				return &bbResult{status: Unbounded, unbounded: true}, nil
			case r.err != nil:
				return nil, r.err
			}
			if bb.branching(r.node.x) < 0 {
				bb.offer(r.node.x)
				continue
			}
			bb.round(r.node)
			if bb.best == nil || r.node.bound < bb.best.objective-1e-9 {
				push(r.node)
			}
		}
	}

	res := &bbResult{best: bb.best, pool: bb.pool, explored: bb.explored}
	switch {
	case bb.best == nil && stopped:
		res.status = SolvingException
	case bb.best == nil:
		res.status = NoSolution
	case stopped:
		res.status = Feasible
		res.bound = math.Min(openBound, bb.best.objective)
	default:
		res.status = Optimal
		res.bound = math.Min(openBound, bb.best.objective)
	}
	log.V(1).Infof("branch and bound: %v after %d nodes", res.status, bb.explored)
	return res, nil
}

package solver

import (
	"context"

	log "github.com/golang/glog"
	"github.com/pkg/errors"

	"lp_colgen/src/model"
	"lp_colgen/src/triad"
)

type CombinatorialMode int

const (
	// First returns the first successful solve and cancels the others.
	First CombinatorialMode = iota
	// Best waits for every backend and keeps the best objective.
	Best
)

type Named struct {
	Name    string
	Factory Factory
}

type namedOutput struct {
	name string
	out  *Output
	err  error
}

// Combinatorial solves m with every backend concurrently. The model is only
// read by the backends.
func Combinatorial(ctx context.Context, backends []Named, m *triad.Model, cfg *Config, mode CombinatorialMode) (*Output, string, error) {
	if len(backends) == 0 {
		return nil, "", errors.New("no backend given")
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan namedOutput, len(backends))
	for _, b := range backends {
		b := b
		go func() {
			out, err := Run(ctx, b.Factory, m, cfg)
			results <- namedOutput{name: b.Name, out: out, err: err}
		}()
	}

	var (
		best     *namedOutput
		firstErr error
	)
	for range backends {
		r := <-results
		if r.err != nil {
			log.V(1).Infof("%s failed on %s: %v", r.name, m.Name, r.err)
			if firstErr == nil && !isTerminated(r.err) {
				firstErr = r.err
			}
			continue
		}
		log.V(1).Infof("%s solved %s: %g", r.name, m.Name, r.out.Objective)
		if mode == First {
			cancel()
			return r.out, r.name, nil
		}
		if best == nil || better(m.Objective.Category, r.out.Objective, best.out.Objective) {
			best = &r
		}
	}
	if best != nil {
		return best.out, best.name, nil
	}
	if firstErr == nil {
		firstErr = NewError(Terminated, ctx.Err())
	}
	return nil, "", firstErr
}

func better(category model.Category, x, y float64) bool {
	if category == model.Maximize {
		return x > y
	}
	return x < y
}

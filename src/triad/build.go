package triad

import (
	"runtime"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"lp_colgen/src/model"
)

type BuildConfig struct {
	// Concurrent splits row extraction across goroutines.
	Concurrent bool
	// MechanismConcurrent compiles the abstract constraints in parallel.
	MechanismConcurrent bool
}

const rowBlockSize = 256

// Build translates an abstract model. Columns follow token order and rows
// follow constraint order whatever the concurrency settings are.
func Build(m *model.Model, cfg BuildConfig) (*Model, error) {
	mechanisms, err := m.Compile(cfg.MechanismConcurrent)
	if err != nil {
		return nil, errors.Wrapf(err, "compiling %s", m.Name())
	}
	objective, err := m.CompileObjective()
	if err != nil {
		return nil, errors.Wrapf(err, "compiling %s", m.Name())
	}

	tokens := m.Tokens()
	t := &Model{
		Name:      m.Name(),
		Variables: make([]Variable, len(tokens)),
		Objective: Objective{
			Category:     objective.Category,
			Coefficients: make([]float64, len(tokens)),
			Constant:     objective.Constant,
		},
	}
	for j, tok := range tokens {
		t.Variables[j] = Variable{
			Index:  j,
			Name:   tok.Name,
			Domain: tok.Domain,
			Lower:  tok.Lower,
			Upper:  tok.Upper,
			Origin: j,
			Source: Origin,
		}
	}
	for _, cell := range objective.Cells {
		t.Objective.Coefficients[cell.Col] = cell.Coefficient
	}
	for _, q := range objective.Quadratic {
		t.Objective.Quadratic = append(t.Objective.Quadratic, QuadraticCell{Row: q.Row, Col: q.Col, Coefficient: q.Coefficient})
	}

	blocks := make([][]Cell, (len(mechanisms)+rowBlockSize-1)/rowBlockSize)
	extract := func(b int) {
		from := b * rowBlockSize
		to := min(from+rowBlockSize, len(mechanisms))
		cells := make([]Cell, 0)
		for i := from; i < to; i++ {
			for _, c := range mechanisms[i].Cells {
				cells = append(cells, Cell{Row: i, Col: c.Col, Coefficient: c.Coefficient})
			}
		}
		blocks[b] = cells
	}
	if cfg.Concurrent && len(blocks) > 1 {
		g := new(errgroup.Group)
		g.SetLimit(runtime.NumCPU())
		for b := range blocks {
			b := b
			g.Go(func() error {
				extract(b)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for b := range blocks {
			extract(b)
		}
	}

	cons := &t.Constraints
	cons.Starts = make([]int, 1, len(mechanisms)+1)
	cons.Signs = make([]Sign, 0, len(mechanisms))
	cons.RHS = make([]float64, 0, len(mechanisms))
	cons.Names = make([]string, 0, len(mechanisms))
	cons.Origins = make([]int, 0, len(mechanisms))
	cons.Sources = make([]Source, 0, len(mechanisms))
	for _, block := range blocks {
		cons.Cells = append(cons.Cells, block...)
	}
	offset := 0
	for i, mc := range mechanisms {
		offset += len(mc.Cells)
		cons.Starts = append(cons.Starts, offset)
		cons.Signs = append(cons.Signs, mc.Sign)
		cons.RHS = append(cons.RHS, mc.RHS)
		cons.Names = append(cons.Names, mc.Name)
		cons.Origins = append(cons.Origins, i)
		cons.Sources = append(cons.Sources, Origin)
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

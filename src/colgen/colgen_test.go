package colgen

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lp_colgen/src/model"
	"lp_colgen/src/shadow"
	"lp_colgen/src/solver"
	"lp_colgen/src/triad"
)

type offer struct {
	name  string
	cover float64
	cost  float64
}

type need struct{}

// covering: min Σ cost·x over offers with Σ cover·x >= 3.
type covering struct {
	master *model.Model
	row    *model.Constraint
	pool   []offer
	fail   error
}

func newCovering(pool ...offer) *covering {
	m := model.New("covering", model.Minimize)
	return &covering{
		master: m,
		row:    m.AddConstraint("need", nil, model.GreaterEqual, 3),
		pool:   pool,
	}
}

func (p *covering) Key(o offer) string    { return o.name }
func (p *covering) Cost(o offer) float64  { return o.cost }
func (p *covering) Master() *model.Model  { return p.master }
func (p *covering) Terms(o offer) []Coefficient {
	return []Coefficient{{Constraint: p.row, Value: o.cover}}
}

func (p *covering) Prices(duals []float64) (*shadow.Map[struct{}], error) {
	prices := shadow.New[struct{}]()
	return prices, prices.Load([]any{need{}}, duals)
}

func (p *covering) Pricers() []Pricer[offer, struct{}] {
	return []Pricer[offer, struct{}]{
		func(ctx context.Context, prices *shadow.Map[struct{}]) ([]Candidate[offer], error) {
			if p.fail != nil {
				return nil, p.fail
			}
			dual, _ := prices.Get(need{})
			candidates := make([]Candidate[offer], len(p.pool))
			for i, o := range p.pool {
				candidates[i] = Candidate[offer]{Content: o, ReducedCost: o.cost - o.cover*dual}
			}
			return candidates, nil
		},
	}
}

func TestRun(t *testing.T) {
	p := newCovering(offer{"pair", 2, 4}, offer{"triple", 3, 7})
	res, err := Run[offer, struct{}](context.Background(), p, []offer{{"single", 1, 10}}, solver.NewSimplex, DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, 2, res.Iterations)
	assert.InDeltaSlice(t, []float64{30, 6}, res.Relaxed, 1e-6)
	assert.InDelta(t, 6, res.Bound(), 1e-6)
	assert.InDelta(t, 7, res.Objective, 1e-6)
	require.Len(t, res.Selected, 1)
	assert.Equal(t, "triple", res.Selected[0].Column.Content.name)
	assert.Equal(t, 1.0, res.Selected[0].Value)
	assert.NotEmpty(t, res.RunID)
	assert.Len(t, p.master.Tokens(), 3)
}

func TestRunMonotone(t *testing.T) {
	pool := []offer{{"a", 2, 5}, {"b", 3, 7}, {"c", 5, 11}, {"d", 4, 8.5}}
	p := newCovering(pool...)
	p.master.Constraints()[0].RHS = 17
	res, err := Run[offer, struct{}](context.Background(), p, []offer{{"single", 1, 10}}, solver.NewSimplex, DefaultConfig())
	require.NoError(t, err)
	for i := 1; i < len(res.Relaxed); i++ {
		assert.LessOrEqual(t, res.Relaxed[i], res.Relaxed[i-1]+1e-9)
	}
	assert.GreaterOrEqual(t, res.Objective, res.Bound()-1e-6)
}

func TestRunPricingFailureAborts(t *testing.T) {
	p := newCovering(offer{"pair", 2, 4})
	p.fail = errors.New("pricing engine down")
	_, err := Run[offer, struct{}](context.Background(), p, []offer{{"single", 1, 10}}, solver.NewSimplex, DefaultConfig())
	require.Error(t, err)
	assert.Equal(t, p.fail, errors.Cause(err))
}

func TestRunWithoutColumns(t *testing.T) {
	p := newCovering()
	_, err := Run[offer, struct{}](context.Background(), p, nil, solver.NewSimplex, DefaultConfig())
	assert.Equal(t, ErrNoColumns, err)
}

func TestAddColumnsDeduplicates(t *testing.T) {
	p := newCovering()
	c := NewContext[offer](p.master, p, DefaultConfig())

	first := c.AddColumns([]offer{{"a", 1, 1}, {"b", 2, 2}, {"a", 1, 1}})
	require.Len(t, first, 2)
	second := c.AddColumns([]offer{{"b", 2, 2}, {"c", 3, 3}})
	require.Len(t, second, 1)

	assert.Equal(t, 2, c.Iteration())
	assert.Equal(t, 3, c.Live())
	col := second[0]
	assert.Equal(t, 2, col.Index)
	assert.Equal(t, 1, col.Iteration)
	assert.Equal(t, 0, col.Position)
	assert.Equal(t, "x_1_0", col.Token.Name)
	assert.Len(t, p.row.Terms, 3)
	assert.Equal(t, model.Term{Token: col.Token, Coefficient: 3}, p.row.Terms[2])

	tm, err := triad.Build(p.master, triad.BuildConfig{})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, tm.Objective.Coefficients)
}

func TestRemoveColumns(t *testing.T) {
	p := newCovering()
	cfg := DefaultConfig()
	cfg.MaximumReducedCost = 100
	cfg.MaxColumns = 1
	c := NewContext[offer](p.master, p, cfg)
	cols := c.AddColumns([]offer{{"cheap", 1, 1}, {"dear", 1, 300}, {"fixed", 1, 500}, {"kept", 1, 400}})
	require.NoError(t, c.GloballyFix(cols[2:3]))
	c.Keep(cols[3:4])

	duals := []float64{1}
	assert.Equal(t, 1, c.RemoveColumns(duals))
	assert.True(t, c.Removed(cols[1]))
	assert.Equal(t, 0.0, cols[1].Token.Upper)
	assert.Equal(t, 3, c.Live())
	assert.Equal(t, 66.0, c.MaximumReducedCost())

	assert.Equal(t, 0, c.RemoveColumns(duals), "never removed twice")
	assert.Same(t, cols[1], c.Bunch(0)[1])
	assert.Equal(t, 1, cols[1].Position)
	assert.Equal(t, 44.0, c.MaximumReducedCost())

	again := c.AddColumns([]offer{{"dear", 1, 300}})
	require.Len(t, again, 1, "a removed column no longer blocks its content")
	assert.Equal(t, 4, again[0].Index)
}

func TestShrinkFloor(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 66.0, cfg.shrink(99.5))
	assert.Equal(t, 5.0, cfg.shrink(7))
	assert.Equal(t, 5.0, cfg.shrink(5))
}

func TestFixing(t *testing.T) {
	p := newCovering()
	c := NewContext[offer](p.master, p, DefaultConfig())
	cols := c.AddColumns([]offer{{"a", 1, 1}, {"b", 1, 1}, {"c", 1, 1}})

	require.NoError(t, p.master.SetSolution([]float64{1, 0.4, 0}))
	fixed := c.ExtractFixed()
	assert.Equal(t, cols[:1], fixed)
	assert.Equal(t, cols[:2], c.ExtractKept())

	require.NoError(t, c.GloballyFix(fixed))
	require.NoError(t, c.GloballyFix(fixed))
	assert.Equal(t, 1.0, cols[0].Token.Lower)
	assert.True(t, triad.IsPositiveInfinity(cols[0].Token.Upper))

	local := c.LocallyFix(0.9)
	assert.Equal(t, cols[1:2], local, "fallback fixes the best column")
	assert.True(t, c.Fixed(cols[1]))

	require.NoError(t, p.master.SetSolution([]float64{1, 1, 0.0001}))
	assert.Empty(t, c.LocallyFix(0.9))

	c.Flush()
	assert.False(t, c.Fixed(cols[0]))
	assert.Equal(t, 0.0, cols[0].Token.Lower)
	assert.Equal(t, 0.0, cols[1].Token.Lower)
}

func TestFixingRemovedColumnFails(t *testing.T) {
	p := newCovering()
	c := NewContext[offer](p.master, p, DefaultConfig())
	cols := c.AddColumns([]offer{{"a", 1, 1000}})
	c.RemoveColumns([]float64{0})
	err := c.GloballyFix(cols)
	assert.Equal(t, ErrRemovedColumn, errors.Cause(err))
}

func TestRunWithFixingRounds(t *testing.T) {
	p := newCovering(offer{"pair", 2, 4}, offer{"triple", 3, 7})
	cfg := DefaultConfig()
	cfg.FixingRounds = 3
	res, err := Run[offer, struct{}](context.Background(), p, []offer{{"single", 1, 10}}, solver.NewSimplex, cfg)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, res.Objective, res.Bound()-1e-6)
	for _, col := range res.Selected {
		assert.GreaterOrEqual(t, col.Value, 1.0)
	}
	for _, tok := range p.master.Tokens() {
		assert.Equal(t, 0.0, tok.Lower, "flushed after the integer solve")
	}
}

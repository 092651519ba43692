// Package colgen grows a restricted master problem column by column.
//
// Columns are kept in an explicit Context: every column has an auto index,
// the iteration that produced it and its position inside that iteration.
// These never change once assigned, even after the column is removed.
package colgen

import (
	"fmt"
	"math"

	mapset "github.com/deckarep/golang-set/v2"
	log "github.com/golang/glog"
	"github.com/pkg/errors"

	"lp_colgen/src/model"
	"lp_colgen/src/triad"
)

var (
	ErrNoColumns     = errors.New("no column to start from")
	ErrRemovedColumn = errors.New("column has been removed")
)

// Coefficient is the contribution of a column to one master row.
type Coefficient struct {
	Constraint *model.Constraint
	Value      float64
}

// Describer tells the context how to identify, price and inject a column.
type Describer[T any] interface {
	// Key identifies a column by content; two columns with the same key are
	// duplicates.
	Key(content T) string
	Cost(content T) float64
	Terms(content T) []Coefficient
}

type Column[T any] struct {
	Index     int
	Iteration int
	Position  int
	Key       string
	Cost      float64
	Content   T
	Terms     []Coefficient
	Token     *model.Token

	lower float64
	upper float64
}

// Value returns the value of the column in the last solution pushed to the
// master.
func (col *Column[T]) Value() float64 {
	v, _ := col.Token.Value()
	return v
}

type Context[T any] struct {
	master   *model.Model
	describe Describer[T]
	cfg      Config

	columns    []*Column[T]
	iterations [][]*Column[T]
	live       map[string]*Column[T]
	removed    mapset.Set[int]
	fixed      mapset.Set[int]
	kept       mapset.Set[int]

	maximumReducedCost float64
	counter            int
}

func NewContext[T any](master *model.Model, describe Describer[T], cfg Config) *Context[T] {
	return &Context[T]{
		master:             master,
		describe:           describe,
		cfg:                cfg,
		live:               make(map[string]*Column[T]),
		removed:            mapset.NewThreadUnsafeSet[int](),
		fixed:              mapset.NewThreadUnsafeSet[int](),
		kept:               mapset.NewThreadUnsafeSet[int](),
		maximumReducedCost: cfg.MaximumReducedCost,
	}
}

func (c *Context[T]) Master() *model.Model {
	return c.master
}

// Iteration is the number of AddColumns calls so far.
func (c *Context[T]) Iteration() int {
	return len(c.iterations)
}

func (c *Context[T]) Columns() []*Column[T] {
	return c.columns
}

// Bunch returns the columns added by iteration i, in insertion order.
func (c *Context[T]) Bunch(i int) []*Column[T] {
	return c.iterations[i]
}

// Live is the number of columns that have not been removed.
func (c *Context[T]) Live() int {
	return len(c.columns) - c.removed.Cardinality()
}

func (c *Context[T]) MaximumReducedCost() float64 {
	return c.maximumReducedCost
}

func (c *Context[T]) Removed(col *Column[T]) bool {
	return c.removed.Contains(col.Index)
}

func (c *Context[T]) Fixed(col *Column[T]) bool {
	return c.fixed.Contains(col.Index)
}

// sense turns reduced costs into the minimization convention.
func (c *Context[T]) sense() float64 {
	if c.master.Objective().Category == model.Maximize {
		return -1
	}
	return 1
}

// AddColumns opens a new iteration holding the contents that are neither
// duplicated within the call nor duplicates of a live column. Every added
// column becomes a master token and its coefficients are appended to the
// rows it touches.
func (c *Context[T]) AddColumns(contents []T) []*Column[T] {
	iteration := len(c.iterations)
	seen := mapset.NewThreadUnsafeSet[string]()
	bunch := make([]*Column[T], 0, len(contents))
	for _, content := range contents {
		key := c.describe.Key(content)
		if seen.Contains(key) {
			continue
		}
		seen.Add(key)
		if _, ok := c.live[key]; ok {
			continue
		}

		col := &Column[T]{
			Index:     c.counter,
			Iteration: iteration,
			Position:  len(bunch),
			Key:       key,
			Cost:      c.describe.Cost(content),
			Content:   content,
			Terms:     c.describe.Terms(content),
			lower:     0,
			upper:     c.cfg.ColumnUpper,
		}
		c.counter++
		col.Token = c.master.AddToken(fmt.Sprintf("x_%d_%d", iteration, col.Position), c.cfg.ColumnDomain, col.lower, col.upper)
		c.master.AddObjectiveTerm(col.Token, col.Cost)
		for _, term := range col.Terms {
			c.master.AddTerm(term.Constraint, col.Token, term.Value)
		}

		bunch = append(bunch, col)
		c.columns = append(c.columns, col)
		c.live[key] = col
	}
	c.iterations = append(c.iterations, bunch)
	log.V(2).Infof("%s: iteration %d adds %d of %d columns", c.master.Name(), iteration, len(bunch), len(contents))
	return bunch
}

// ReducedCost is cost minus the dual-weighted column coefficients.
func (c *Context[T]) ReducedCost(col *Column[T], duals []float64) float64 {
	rc := col.Cost
	for _, term := range col.Terms {
		rc -= term.Value * duals[term.Constraint.Index()]
	}
	return rc
}

// RemoveColumns soft-removes every live column whose reduced cost reaches
// the current threshold, unless it is fixed or kept. A removed column is
// bounded to zero and stays in its iteration. When more than MaxColumns
// columns remain, the threshold shrinks.
func (c *Context[T]) RemoveColumns(duals []float64) int {
	count := 0
	for _, col := range c.columns {
		if c.removed.Contains(col.Index) || c.fixed.Contains(col.Index) || c.kept.Contains(col.Index) {
			continue
		}
		if c.sense()*c.ReducedCost(col, duals) < c.maximumReducedCost {
			continue
		}
		c.master.SetBounds(col.Token, 0, 0)
		c.removed.Add(col.Index)
		delete(c.live, col.Key)
		count++
	}

	if c.cfg.MaxColumns > 0 && c.Live() > c.cfg.MaxColumns {
		c.maximumReducedCost = c.cfg.shrink(c.maximumReducedCost)
	}
	log.V(1).Infof("%s: removed %d columns, %d live, threshold %g", c.master.Name(), count, c.Live(), c.maximumReducedCost)
	return count
}

// Keep protects columns from removal until the next Flush.
func (c *Context[T]) Keep(cols []*Column[T]) {
	for _, col := range cols {
		c.kept.Add(col.Index)
	}
}

func (c *Context[T]) extract(accept func(float64) bool) []*Column[T] {
	var ret []*Column[T]
	for _, col := range c.columns {
		if c.removed.Contains(col.Index) {
			continue
		}
		if v, ok := col.Token.Value(); ok && accept(v) {
			ret = append(ret, col)
		}
	}
	return ret
}

// ExtractFixed returns the live columns whose value is one.
func (c *Context[T]) ExtractFixed() []*Column[T] {
	return c.extract(func(v float64) bool { return triad.Eq(v, 1, triad.Epsilon) })
}

// ExtractKept returns the live columns with a positive value.
func (c *Context[T]) ExtractKept() []*Column[T] {
	return c.extract(func(v float64) bool { return v > triad.Epsilon })
}

func (c *Context[T]) fix(col *Column[T]) {
	c.master.SetBounds(col.Token, 1, math.Max(1, col.Token.Upper))
	c.fixed.Add(col.Index)
}

// GloballyFix forces every given column into the solution. Fixing a fixed
// column again leaves it unchanged.
func (c *Context[T]) GloballyFix(cols []*Column[T]) error {
	for _, col := range cols {
		if c.removed.Contains(col.Index) {
			return errors.Wrapf(ErrRemovedColumn, "fix %s", col.Token.Name)
		}
		c.fix(col)
	}
	return nil
}

// LocallyFix fixes every unfixed live column whose value reaches bar. When
// none does, the best column is fixed if its value reaches the fallback.
func (c *Context[T]) LocallyFix(bar float64) []*Column[T] {
	var (
		ret  []*Column[T]
		best *Column[T]
	)
	for _, col := range c.columns {
		if c.removed.Contains(col.Index) || c.fixed.Contains(col.Index) {
			continue
		}
		v, ok := col.Token.Value()
		if !ok {
			continue
		}
		if best == nil || v > best.Value() {
			best = col
		}
		if v >= bar {
			ret = append(ret, col)
		}
	}
	if len(ret) == 0 && best != nil && best.Value() >= c.cfg.FixFallback {
		ret = append(ret, best)
	}
	for _, col := range ret {
		c.fix(col)
	}
	return ret
}

// Flush releases fixed and kept columns. Live columns get their original
// bounds back; removed columns stay at zero.
func (c *Context[T]) Flush() {
	for _, col := range c.columns {
		if c.fixed.Contains(col.Index) && !c.removed.Contains(col.Index) {
			c.master.SetBounds(col.Token, col.lower, col.upper)
		}
	}
	c.fixed.Clear()
	c.kept.Clear()
}

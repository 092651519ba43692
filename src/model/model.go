package model

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

type Domain int

const (
	Continuous Domain = iota
	Integer
	Binary
	SemiContinuous
)

func (d Domain) IsInteger() bool {
	return d == Integer || d == Binary
}

func (d Domain) String() string {
	switch d {
	case Continuous:
		return "continuous"
	case Integer:
		return "integer"
	case Binary:
		return "binary"
	case SemiContinuous:
		return "semi-continuous"
	}
	return fmt.Sprintf("domain(%d)", int(d))
}

type Sign int

const (
	LessEqual Sign = iota
	GreaterEqual
	Equal
)

func (s Sign) String() string {
	switch s {
	case LessEqual:
		return "<="
	case GreaterEqual:
		return ">="
	case Equal:
		return "="
	}
	return "?"
}

type Category int

const (
	Minimize Category = iota
	Maximize
)

func (c Category) Reverse() Category {
	if c == Minimize {
		return Maximize
	}
	return Minimize
}

func (c Category) String() string {
	if c == Maximize {
		return "Maximize"
	}
	return "Minimize"
}

// Token is a decision variable of the abstract model. Its index is assigned
// on creation and never changes.
type Token struct {
	index  int
	Name   string
	Domain Domain
	Lower  float64
	Upper  float64

	solved bool
	value  float64
}

func (t *Token) Index() int {
	return t.index
}

// Value returns the value pushed by the last SetSolution, if any.
func (t *Token) Value() (float64, bool) {
	return t.value, t.solved
}

func (t *Token) String() string {
	return t.Name
}

type Term struct {
	Token       *Token
	Coefficient float64
}

type Constraint struct {
	index int
	Name  string
	Terms []Term
	Sign  Sign
	RHS   float64
}

func (c *Constraint) Index() int {
	return c.index
}

// QuadraticTerm is Coefficient·First·Second. First and Second may be the
// same token.
type QuadraticTerm struct {
	First       *Token
	Second      *Token
	Coefficient float64
}

type SubObjective struct {
	Category  Category
	Terms     []Term
	Quadratic []QuadraticTerm
	Constant  float64
}

type Objective struct {
	Category Category
	Subs     []SubObjective
}

// Model is the abstract linear model handed to the triad builder. Terms may
// be appended to existing constraints while the model grows (column
// generation); those appends are serialized by the model.
type Model struct {
	name string

	mu          sync.Mutex
	tokens      []*Token
	constraints []*Constraint
	objective   Objective
}

func New(name string, category Category) *Model {
	return &Model{
		name:      name,
		objective: Objective{Category: category},
	}
}

func (m *Model) Name() string {
	return m.name
}

func (m *Model) Tokens() []*Token {
	return m.tokens
}

func (m *Model) Constraints() []*Constraint {
	return m.constraints
}

func (m *Model) Objective() *Objective {
	return &m.objective
}

func (m *Model) AddToken(name string, domain Domain, lower, upper float64) *Token {
	m.mu.Lock()
	defer m.mu.Unlock()

	if domain == Binary {
		lower = math.Max(lower, 0)
		upper = math.Min(upper, 1)
	}
	t := &Token{
		index:  len(m.tokens),
		Name:   name,
		Domain: domain,
		Lower:  lower,
		Upper:  upper,
	}
	m.tokens = append(m.tokens, t)
	return t
}

func (m *Model) AddConstraint(name string, terms []Term, sign Sign, rhs float64) *Constraint {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := &Constraint{
		index: len(m.constraints),
		Name:  name,
		Terms: terms,
		Sign:  sign,
		RHS:   rhs,
	}
	m.constraints = append(m.constraints, c)
	return c
}

// AddTerm appends coef*token to the left-hand side of c.
func (m *Model) AddTerm(c *Constraint, token *Token, coef float64) {
	m.mu.Lock()
	c.Terms = append(c.Terms, Term{Token: token, Coefficient: coef})
	m.mu.Unlock()
}

func (m *Model) AddObjective(category Category, constant float64, terms ...Term) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.objective.Subs = append(m.objective.Subs, SubObjective{
		Category: category,
		Terms:    terms,
		Constant: constant,
	})
}

// AddObjectiveTerm appends a term to the first sub-objective, creating one
// with the model category if needed.
func (m *Model) AddObjectiveTerm(token *Token, coef float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.objective.Subs) == 0 {
		m.objective.Subs = append(m.objective.Subs, SubObjective{Category: m.objective.Category})
	}
	sub := &m.objective.Subs[0]
	sub.Terms = append(sub.Terms, Term{Token: token, Coefficient: coef})
}

// AddQuadraticObjectiveTerm appends coef·first·second to the first
// sub-objective.
func (m *Model) AddQuadraticObjectiveTerm(first, second *Token, coef float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.objective.Subs) == 0 {
		m.objective.Subs = append(m.objective.Subs, SubObjective{Category: m.objective.Category})
	}
	sub := &m.objective.Subs[0]
	sub.Quadratic = append(sub.Quadratic, QuadraticTerm{First: first, Second: second, Coefficient: coef})
}

func (m *Model) SetBounds(token *Token, lower, upper float64) {
	m.mu.Lock()
	token.Lower = lower
	token.Upper = upper
	m.mu.Unlock()
}

// SetSolution pushes one value per token, ordered by token index.
func (m *Model) SetSolution(values []float64) error {
	if len(values) != len(m.tokens) {
		return errors.Errorf("solution has %d values, model %q has %d tokens", len(values), m.name, len(m.tokens))
	}
	for i, t := range m.tokens {
		t.value = values[i]
		t.solved = true
	}
	return nil
}

func (m *Model) ClearSolution() {
	for _, t := range m.tokens {
		t.value = 0
		t.solved = false
	}
}

func (m *Model) String() string {
	s := new(strings.Builder)
	fmt.Fprintf(s, "Model %s: %d tokens, %d constraints\n", m.name, len(m.tokens), len(m.constraints))
	fmt.Fprintln(s, m.objective.Category)
	for _, c := range m.constraints {
		fmt.Fprintf(s, " %s: ", c.Name)
		for i, t := range c.Terms {
			if i != 0 {
				s.WriteString(" + ")
			}
			fmt.Fprintf(s, "%g %s", t.Coefficient, t.Token)
		}
		fmt.Fprintf(s, " %v %g\n", c.Sign, c.RHS)
	}
	return s.String()
}

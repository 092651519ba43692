// Package shadow keeps the dual prices of a master problem under typed keys.
//
// A Map is filled from the row duals of one relaxed master solve, frozen, and
// then read concurrently by every pricing subproblem of the iteration.
package shadow

import (
	"slices"
	"sync/atomic"

	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
)

var ErrFrozen = errors.New("shadow price map is frozen")

type Price struct {
	Row   int
	Value float64
}

// Extractor computes the price associated with args, reporting false when it
// does not know the shape of args.
type Extractor[Args any] func(m *Map[Args], args Args) (float64, bool)

type Map[Args any] struct {
	prices     map[any]Price
	extractors []Extractor[Args]
	frozen     atomic.Bool
}

func New[Args any](extractors ...Extractor[Args]) *Map[Args] {
	return &Map[Args]{
		prices:     make(map[any]Price),
		extractors: extractors,
	}
}

// Put records the price of the row identified by key. Keys must be
// comparable; typed struct keys keep different key shapes apart.
func (m *Map[Args]) Put(key any, row int, value float64) error {
	if m.frozen.Load() {
		return ErrFrozen
	}
	m.prices[key] = Price{Row: row, Value: value}
	return nil
}

// Load puts duals[i] under keys[i]. Rows with a nil key are skipped.
func (m *Map[Args]) Load(keys []any, duals []float64) error {
	if len(keys) > len(duals) {
		return errors.Errorf("%d keys for %d dual values", len(keys), len(duals))
	}
	for i, key := range keys {
		if key == nil {
			continue
		}
		if err := m.Put(key, i, duals[i]); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the price stored under key, zero when absent.
func (m *Map[Args]) Get(key any) (float64, bool) {
	p, ok := m.prices[key]
	return p.Value, ok
}

func (m *Map[Args]) Lookup(key any) (Price, bool) {
	p, ok := m.prices[key]
	return p, ok
}

// Extract asks every extractor in registration order and returns the first
// answer.
func (m *Map[Args]) Extract(args Args) (float64, bool) {
	for _, e := range m.extractors {
		if v, ok := e(m, args); ok {
			return v, true
		}
	}
	return 0, false
}

// Freeze makes the map read-only. Pricing goroutines may then share it.
func (m *Map[Args]) Freeze() {
	m.frozen.Store(true)
}

func (m *Map[Args]) Frozen() bool {
	return m.frozen.Load()
}

func (m *Map[Args]) Len() int {
	return len(m.prices)
}

// Keys returns the keys ordered by row.
func (m *Map[Args]) Keys() []any {
	keys := maps.Keys(m.prices)
	slices.SortFunc(keys, func(a, b any) int {
		return m.prices[a].Row - m.prices[b].Row
	})
	return keys
}

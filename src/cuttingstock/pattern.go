package cuttingstock

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gopkg.in/dnaeon/go-priorityqueue.v1"
)

// Pattern is the number of pieces of every product cut from one bar.
type Pattern []int

func (p Pattern) key() string {
	s := new(strings.Builder)
	for i, n := range p {
		if n > 0 {
			fmt.Fprintf(s, "%d:%d,", i, n)
		}
	}
	return s.String()
}

func (p Pattern) used(lengths []float64) float64 {
	amounts := make([]float64, len(p))
	for i, n := range p {
		amounts[i] = float64(n)
	}
	return floats.Dot(amounts, lengths)
}

// singlePatterns cuts as many pieces of one product as a bar holds.
func (inst *Instance) singlePatterns() []Pattern {
	ret := make([]Pattern, 0, len(inst.Products))
	for i, p := range inst.Products {
		if p.Demand == 0 {
			continue
		}
		pattern := make(Pattern, len(inst.Products))
		pattern[i] = int(math.Floor(inst.Stock / p.Length))
		ret = append(ret, pattern)
	}
	return ret
}

// greedyPatterns fills bars longest product first until every demand is
// covered and returns the distinct patterns used.
func (inst *Instance) greedyPatterns() []Pattern {
	remaining := make([]int, len(inst.Products))
	for i, p := range inst.Products {
		remaining[i] = p.Demand
	}
	seen := make(map[string]bool)
	var ret []Pattern

	for {
		pq := priorityqueue.New[int, float64](priorityqueue.MinHeap)
		for i, p := range inst.Products {
			if remaining[i] > 0 {
				pq.Put(i, -p.Length)
			}
		}
		if pq.Len() == 0 {
			return ret
		}

		pattern := make(Pattern, len(inst.Products))
		space := inst.Stock
		for pq.Len() > 0 {
			item := pq.Get()
			i := item.Value
			n := min(remaining[i], int(math.Floor(space/inst.Products[i].Length)))
			pattern[i] = n
			space -= float64(n) * inst.Products[i].Length
		}

		// repeat the pattern while it does not overshoot any demand
		times := math.MaxInt
		for i, n := range pattern {
			if n > 0 {
				times = min(times, remaining[i]/n)
			}
		}
		times = max(times, 1)
		for i, n := range pattern {
			remaining[i] = max(0, remaining[i]-times*n)
		}
		if k := pattern.key(); !seen[k] {
			seen[k] = true
			ret = append(ret, pattern)
		}
	}
}

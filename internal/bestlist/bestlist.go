// Package bestlist keeps a bounded memory of good candidate solutions and the
// policies that update it and pick from it.
package bestlist

import (
	"math"
	"math/rand"

	"github.com/pfperroni/treasure-hunt-framework/internal/errors"
	"github.com/pfperroni/treasure-hunt-framework/internal/random"
	"github.com/pfperroni/treasure-hunt-framework/internal/solution"
)

// BestList is a bounded sequence of at most Size solutions with
// possibly-empty slots. It owns its solutions.
type BestList struct {
	items []*solution.Solution
	ndims int
}

// New creates an empty best-list of the given size over n dimensions.
func New(size, n int) (*BestList, error) {
	if size <= 0 {
		return nil, errors.InvalidArgument("the best list size is invalid [%d]", size)
	}
	return &BestList{items: make([]*solution.Solution, size), ndims: n}, nil
}

// Copy deep-copies src, including its solutions.
func Copy(src *BestList) *BestList {
	dst := &BestList{items: make([]*solution.Solution, len(src.items)), ndims: src.ndims}
	for i, s := range src.items {
		if s != nil {
			dst.items[i] = s.Clone()
		}
	}
	return dst
}

// Size returns the list capacity.
func (l *BestList) Size() int { return len(l.items) }

// NDimensions returns the dimensionality of the stored solutions.
func (l *BestList) NDimensions() int { return l.ndims }

// At returns the solution at slot idx, or nil for an empty slot.
func (l *BestList) At(idx int) *solution.Solution {
	if idx < 0 || idx >= len(l.items) {
		panic(errors.InvalidArgument("the best list index is invalid [%d]", idx))
	}
	return l.items[idx]
}

func (l *BestList) set(idx int, s *solution.Solution) {
	l.items[idx] = s
}

// UpdatePolicy decides how a candidate enters the best-list.
type UpdatePolicy interface {
	Apply(l *BestList, candidate *solution.Solution, fp solution.FitnessPolicy) error
}

// pairDistance is the distance used to pick the replacement slot: the sum
// over dimensions of the squared per-dimension sum of element differences.
// The relocation dynamics depend on this exact form.
func pairDistance(first, second *solution.Solution) float64 {
	n := first.NDimensions()
	if n != second.NDimensions() {
		panic(errors.ShapeMismatch("the sizes of the solutions do not match [%d != %d]", n, second.NDimensions()))
	}
	dist := 0.0
	tmp := make(solution.Position, len(first.Position(0)))
	for i := 0; i < n; i++ {
		tmp.CopyFrom(second.Position(i))
		tmp.Sub(first.Position(i))
		d := tmp.Sum()
		dist += d * d
	}
	return dist
}

// ConvergentUpdate replaces, among the slots the candidate beats, the one
// farthest from the candidate, collapsing diversity around improving points.
// Empty slots are filled first.
type ConvergentUpdate struct{}

// Apply inserts the candidate according to the convergent policy.
func (ConvergentUpdate) Apply(l *BestList, candidate *solution.Solution, fp solution.FitnessPolicy) error {
	if l == nil || candidate == nil || fp == nil {
		return errors.InvalidArgument("all parameters must be provided to update the best list")
	}
	worst := -1
	largest := -1.0
	for i := 0; i < l.Size(); i++ {
		if l.items[i] == nil {
			worst = i
			break
		}
		if fp.FirstIsBetter(candidate, l.items[i]) {
			if d := pairDistance(candidate, l.items[i]); d > largest {
				largest = d
				worst = i
			}
		}
	}
	if worst > -1 {
		if l.items[worst] == nil {
			l.set(worst, candidate.Clone())
		} else {
			l.items[worst].CopyFrom(candidate)
		}
	}
	return nil
}

// DivergentUpdate replaces, among the slots the candidate beats, the one
// closest to the candidate, maximizing spatial diversity.
type DivergentUpdate struct{}

// Apply inserts the candidate according to the divergent policy.
func (DivergentUpdate) Apply(l *BestList, candidate *solution.Solution, fp solution.FitnessPolicy) error {
	if l == nil || candidate == nil || fp == nil {
		return errors.InvalidArgument("all parameters must be provided to update the best list")
	}
	worst := -1
	smallest := math.MaxFloat64
	for i := 0; i < l.Size(); i++ {
		if l.items[i] == nil {
			worst = i
			break
		}
		if fp.FirstIsBetter(candidate, l.items[i]) {
			if d := pairDistance(candidate, l.items[i]); d < smallest {
				smallest = d
				worst = i
			}
		}
	}
	if worst > -1 {
		if l.items[worst] == nil {
			l.set(worst, candidate.Clone())
		} else {
			l.items[worst].CopyFrom(candidate)
		}
	}
	return nil
}

// SelectionPolicy picks one solution from the best-list.
type SelectionPolicy interface {
	Apply(l *BestList, fp solution.FitnessPolicy) (*solution.Solution, error)
}

// RandomSelection picks a uniformly-random slot, falling forward to the first
// occupied slot when the drawn one is empty.
type RandomSelection struct {
	rng *rand.Rand
}

// NewRandomSelection creates the random selection policy seeded from src.
func NewRandomSelection(src random.SeedSource) *RandomSelection {
	return &RandomSelection{rng: random.New(src)}
}

// Apply returns the selected solution. It fails only when the whole list is
// empty.
func (p *RandomSelection) Apply(l *BestList, fp solution.FitnessPolicy) (*solution.Solution, error) {
	if l == nil || l.Size() == 0 {
		return nil, errors.InvalidArgument("the best list cannot be empty")
	}
	selected := l.items[p.rng.Intn(l.Size())]
	if selected == nil {
		for i := 0; i < l.Size() && selected == nil; i++ {
			selected = l.items[i]
		}
	}
	if selected == nil {
		return nil, errors.InvalidArgument("the best list has no occupied slot")
	}
	return selected, nil
}

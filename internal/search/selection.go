package search

import (
	"github.com/pfperroni/treasure-hunt-framework/internal/errors"
	"github.com/pfperroni/treasure-hunt-framework/internal/solution"
	"github.com/pfperroni/treasure-hunt-framework/internal/topology"
)

// SelectionPolicy picks the next optimizer to run and ranks the one that just
// ran.
type SelectionPolicy interface {
	// Apply returns the method to run for this iteration.
	Apply(id int, tree *topology.Tree, algorithms []*Score) (Search, error)

	// Rank updates the bookkeeping of the method that just ran.
	Rank(id int, tree *topology.Tree, algorithms []*Score,
		current Search, fitness solution.Fitness, currentNEvals int, totalNEvals int64) error
}

// SingleSelection always runs the first registered method.
type SingleSelection struct{}

// Apply returns the first registered method.
func (SingleSelection) Apply(_ int, _ *topology.Tree, algorithms []*Score) (Search, error) {
	if len(algorithms) == 0 {
		return nil, errors.InvalidArgument("the list of algorithms is empty")
	}
	return algorithms[0].Search(), nil
}

// Rank assigns a flat score to the single method.
func (SingleSelection) Rank(_ int, _ *topology.Tree, algorithms []*Score,
	_ Search, _ solution.Fitness, _ int, _ int64) error {
	if len(algorithms) == 0 {
		return errors.InvalidArgument("the list of algorithms is empty")
	}
	algorithms[0].SetValue(1)
	return nil
}

// RoundRobinSelection advances a cursor modulo the list length per call.
type RoundRobinSelection struct {
	cursor int
}

// NewRoundRobinSelection creates the policy with the cursor before the first
// method.
func NewRoundRobinSelection() *RoundRobinSelection {
	return &RoundRobinSelection{cursor: -1}
}

// Apply returns the next method in rotation.
func (p *RoundRobinSelection) Apply(_ int, _ *topology.Tree, algorithms []*Score) (Search, error) {
	if len(algorithms) == 0 {
		return nil, errors.InvalidArgument("the list of algorithms is empty")
	}
	p.cursor++
	if p.cursor == len(algorithms) {
		p.cursor = 0
	}
	return algorithms[p.cursor].Search(), nil
}

// Rank assigns a flat score to the method under the cursor.
func (p *RoundRobinSelection) Rank(_ int, _ *topology.Tree, algorithms []*Score,
	_ Search, _ solution.Fitness, _ int, _ int64) error {
	if len(algorithms) == 0 {
		return errors.InvalidArgument("the list of algorithms is empty")
	}
	algorithms[p.cursor].SetValue(1)
	return nil
}

// Cursor returns the index of the method that Apply returned last.
func (p *RoundRobinSelection) Cursor() int { return p.cursor }

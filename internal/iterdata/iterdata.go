// Package iterdata exposes the read-only per-iteration snapshot shared with
// the relocation strategies.
package iterdata

import (
	"github.com/pfperroni/treasure-hunt-framework/internal/errors"
	"github.com/pfperroni/treasure-hunt-framework/internal/solution"
)

// IterationData is one node's snapshot of the current iteration: a deep copy
// of the population, the current bests, the elapsed counters and the budget
// caps. One instance exists per node and is rewritten in place at the top of
// each iteration.
type IterationData struct {
	population    []*solution.Solution
	generalBest   *solution.Solution
	parentBest    *solution.Solution
	iterationBest *solution.Solution

	n              int
	currSeconds    float64
	currIteration  int64
	currEvaluation int64

	maxSeconds     int64
	maxEvaluations int64
	maxIterations  int64
}

// New creates the snapshot sized for the population, with the given budget
// caps (each cap 0 is ignored).
func New(population []*solution.Solution, maxSeconds, maxEvaluations, maxIterations int64) (*IterationData, error) {
	if len(population) == 0 {
		return nil, errors.InvalidArgument("population size must be greater than zero")
	}
	shape := population[0].Shape()
	it := &IterationData{
		population:     make([]*solution.Solution, len(population)),
		generalBest:    solution.MustNew(shape),
		parentBest:     solution.MustNew(shape),
		iterationBest:  solution.MustNew(shape),
		n:              shape.NDims,
		maxSeconds:     maxSeconds,
		maxEvaluations: maxEvaluations,
		maxIterations:  maxIterations,
	}
	for i, s := range population {
		it.population[i] = s.Clone()
	}
	return it, nil
}

// SetPopulation deep-copies the population into the snapshot.
func (it *IterationData) SetPopulation(population []*solution.Solution) error {
	if len(population) > len(it.population) {
		return errors.InvalidArgument("invalid population size [%d > %d]", len(population), len(it.population))
	}
	for i, s := range population {
		it.population[i].CopyFrom(s)
	}
	return nil
}

// Population returns the snapshot's population copy.
func (it *IterationData) Population() []*solution.Solution { return it.population }

// PopulationSize returns the population size.
func (it *IterationData) PopulationSize() int { return len(it.population) }

// NDimensions returns the dimensionality.
func (it *IterationData) NDimensions() int { return it.n }

// SetGeneralBest copies the general best into the snapshot.
func (it *IterationData) SetGeneralBest(s *solution.Solution) {
	if s != nil {
		it.generalBest.CopyFrom(s)
	}
}

// GeneralBest returns the snapshot's general best.
func (it *IterationData) GeneralBest() *solution.Solution { return it.generalBest }

// SetParentBest copies the parent best into the snapshot.
func (it *IterationData) SetParentBest(s *solution.Solution) {
	if s != nil {
		it.parentBest.CopyFrom(s)
	}
}

// ParentBest returns the snapshot's parent best.
func (it *IterationData) ParentBest() *solution.Solution { return it.parentBest }

// SetIterationBest copies the iteration best into the snapshot.
func (it *IterationData) SetIterationBest(s *solution.Solution) {
	if s != nil {
		it.iterationBest.CopyFrom(s)
	}
}

// IterationBest returns the snapshot's iteration best.
func (it *IterationData) IterationBest() *solution.Solution { return it.iterationBest }

// SetCurrSeconds records the elapsed wall-clock seconds.
func (it *IterationData) SetCurrSeconds(s float64) { it.currSeconds = s }

// CurrSeconds returns the elapsed wall-clock seconds.
func (it *IterationData) CurrSeconds() float64 { return it.currSeconds }

// SetCurrIteration records the current iteration number.
func (it *IterationData) SetCurrIteration(t int64) { it.currIteration = t }

// CurrIteration returns the current iteration number.
func (it *IterationData) CurrIteration() int64 { return it.currIteration }

// SetCurrEvaluation records the cumulative evaluation count.
func (it *IterationData) SetCurrEvaluation(e int64) { it.currEvaluation = e }

// CurrEvaluation returns the cumulative evaluation count.
func (it *IterationData) CurrEvaluation() int64 { return it.currEvaluation }

// MaxSeconds returns the wall-clock cap (0 = ignored).
func (it *IterationData) MaxSeconds() int64 { return it.maxSeconds }

// MaxEvaluations returns the evaluation cap (0 = ignored).
func (it *IterationData) MaxEvaluations() int64 { return it.maxEvaluations }

// MaxIterations returns the iteration cap (0 = ignored).
func (it *IterationData) MaxIterations() int64 { return it.maxIterations }

// PercentageRuntime returns the maximum used/max ratio over the configured
// budgets. Budgets with cap 0 do not contribute.
func (it *IterationData) PercentageRuntime() float64 {
	perc := 0.0
	if it.maxEvaluations > 0 {
		perc = float64(it.currEvaluation) / float64(it.maxEvaluations)
	}
	if it.maxIterations > 0 {
		if p := float64(it.currIteration) / float64(it.maxIterations); p > perc {
			perc = p
		}
	}
	if it.maxSeconds > 0 {
		if p := it.currSeconds / float64(it.maxSeconds); p > perc {
			perc = p
		}
	}
	return perc
}

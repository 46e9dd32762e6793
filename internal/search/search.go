// Package search defines the optimizer contract, the convergence controller
// that drives it and the reference optimizers.
package search

import (
	"github.com/pfperroni/treasure-hunt-framework/internal/random"
	"github.com/pfperroni/treasure-hunt-framework/internal/solution"
	"github.com/pfperroni/treasure-hunt-framework/internal/space"
)

// Search is the contract every optimization method implements. The engine
// installs the shared population, fitness policy and search space before each
// Startup; the convergence controller then alternates Next calls with
// convergence checks and closes the run with Finalize.
type Search interface {
	// Startup resets all counters and computes the initial best index from the
	// fitness already stored on the installed population; it does not evaluate
	// the population. It fails when the population is empty.
	Startup() error

	// Next advances the search until one improvement of the current best is
	// observed, the no-improvement limit is reached (the search then reports
	// itself stuck), or the cumulative evaluation count reaches m. It must
	// never exceed m evaluations.
	Next(m int)

	// Finalize runs any post-processing after the controller stops the run.
	Finalize()

	// IsStuck reports strong stagnation detected by the optimizer.
	IsStuck() bool

	// BestPos returns the population index of the current best individual.
	BestPos() int

	// CurrentNEvals returns the evaluations performed since Startup.
	CurrentNEvals() int

	// BestIndividual returns the best solution found since Startup.
	BestIndividual() *solution.Solution

	// BestFitness returns the fitness of the current best solution.
	BestFitness() solution.Fitness

	// Name identifies the optimization method for tracking.
	Name() string

	// PreferredPopulationSize is the population size the method expects. The
	// engine sizes the shared population with the maximum over all methods.
	PreferredPopulationSize() int

	SetPopulation(pop []*solution.Solution)
	SetFitnessPolicy(fp solution.FitnessPolicy)
	SetSearchSpace(ss *space.SearchSpace)
	SetMaxNoImprove(limit int)
	SetSeedSource(src random.SeedSource)
}

// Base carries the state shared by every Search implementation and provides
// the installer methods of the contract. Embed it and implement the run
// methods.
type Base struct {
	population    []*solution.Solution
	fitnessPolicy solution.FitnessPolicy
	searchSpace   *space.SearchSpace
	seeds         random.SeedSource
	preferredSize int
	maxNoImprove  int
}

// NewBase creates the shared state for a method expecting the given
// population size.
func NewBase(preferredPopulationSize int) Base {
	return Base{
		preferredSize: preferredPopulationSize,
		maxNoImprove:  5,
		seeds:         random.System(),
	}
}

// SetPopulation installs the already-initialized shared population.
func (b *Base) SetPopulation(pop []*solution.Solution) { b.population = pop }

// Population returns the installed population.
func (b *Base) Population() []*solution.Solution { return b.population }

// PopulationSize returns the installed population size, which can differ from
// the preferred size.
func (b *Base) PopulationSize() int { return len(b.population) }

// PreferredPopulationSize returns the population size the method expects.
func (b *Base) PreferredPopulationSize() int { return b.preferredSize }

// SetFitnessPolicy installs the fitness policy used for every evaluation.
func (b *Base) SetFitnessPolicy(fp solution.FitnessPolicy) { b.fitnessPolicy = fp }

// FitnessPolicy returns the installed fitness policy.
func (b *Base) FitnessPolicy() solution.FitnessPolicy { return b.fitnessPolicy }

// SetSearchSpace installs the full search space. The population was placed
// inside the anchor sub-region beforehand, so the anchor is not needed here.
func (b *Base) SetSearchSpace(ss *space.SearchSpace) { b.searchSpace = ss }

// SearchSpace returns the installed search space.
func (b *Base) SearchSpace() *space.SearchSpace { return b.searchSpace }

// SetMaxNoImprove installs the consecutive no-improvement limit.
func (b *Base) SetMaxNoImprove(limit int) {
	if limit > 0 {
		b.maxNoImprove = limit
	}
}

// MaxNoImprove returns the consecutive no-improvement limit.
func (b *Base) MaxNoImprove() int { return b.maxNoImprove }

// SetSeedSource installs the seed source for the method's random generator.
func (b *Base) SetSeedSource(src random.SeedSource) {
	if src != nil {
		b.seeds = src
	}
}

// SeedSource returns the installed seed source.
func (b *Base) SeedSource() random.SeedSource { return b.seeds }

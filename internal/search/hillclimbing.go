package search

import (
	"math/rand"

	"github.com/pfperroni/treasure-hunt-framework/internal/errors"
	"github.com/pfperroni/treasure-hunt-framework/internal/random"
	"github.com/pfperroni/treasure-hunt-framework/internal/solution"
)

// HillClimbing perturbs one dimension at a time, accepting strictly better
// candidates. It doubles as the default local refinement method for child
// reports.
type HillClimbing struct {
	Base

	percMove float64
	step     float64

	rng    *rand.Rand
	nEvals int
	gb     int
	stuck  bool
}

// NewHillClimbing creates a hill climber that, with probability percMove per
// dimension, proposes x' = x + step*U(lo, hi).
func NewHillClimbing(percMove, step float64, populationSize int) *HillClimbing {
	return &HillClimbing{
		Base:     NewBase(populationSize),
		percMove: percMove,
		step:     step,
		gb:       -1,
	}
}

// Startup resets counters and locates the best individual of the installed
// population.
func (h *HillClimbing) Startup() error {
	pop := h.Population()
	if len(pop) == 0 {
		return errors.InvalidArgument("the population size must be greater than zero")
	}
	fp := h.FitnessPolicy()
	h.rng = random.New(h.SeedSource())
	h.nEvals = 0
	h.gb = 0
	h.stuck = false
	for i := 1; i < len(pop); i++ {
		if fp.FirstIsBetter(pop[i], pop[h.gb]) {
			h.gb = i
		}
	}
	return nil
}

// Finalize has no post-processing.
func (h *HillClimbing) Finalize() {}

// Next sweeps the population until the global best improves, the
// no-improvement limit trips, or m evaluations are reached.
func (h *HillClimbing) Next(m int) {
	pop := h.Population()
	fp := h.FitnessPolicy()
	ss := h.SearchSpace()
	n := ss.NDimensions()
	candidate := solution.MustNew(pop[0].Shape())
	noImprove := 0
	found := false
	for !found && noImprove < h.MaxNoImprove() && h.nEvals < m {
		for i := 0; i < len(pop) && h.nEvals < m; i++ {
			for d := 0; d < n && h.nEvals < m; d++ {
				if h.rng.Float64() > h.percMove {
					continue
				}
				candidate.CopyFrom(pop[i])
				dim := ss.Dimension(d)
				candidate.Position(d).AddScalar(h.step * uniformIn(h.rng, dim.Lo, dim.Hi))
				candidate.Position(d).ClampUpper(dim.Hi)
				candidate.Position(d).ClampLower(dim.Lo)
				fp.Apply(candidate)
				h.nEvals++
				if fp.FirstIsBetter(candidate, pop[i]) {
					// Write back the perturbed dimension only; the stored
					// fitness keeps its pre-move value.
					pop[i].Position(d).CopyFrom(candidate.Position(d))
					if i != h.gb && fp.FirstIsBetter(pop[i], pop[h.gb]) {
						found = true
						h.gb = i
					}
				}
			}
		}
		if !found {
			noImprove++
		}
	}
	if noImprove == h.MaxNoImprove() {
		h.stuck = true
	}
}

// IsStuck reports the stagnation flag.
func (h *HillClimbing) IsStuck() bool { return h.stuck }

// BestPos returns the index of the best individual.
func (h *HillClimbing) BestPos() int { return h.gb }

// CurrentNEvals returns the evaluations performed since Startup.
func (h *HillClimbing) CurrentNEvals() int { return h.nEvals }

// BestIndividual returns the best individual of the installed population.
func (h *HillClimbing) BestIndividual() *solution.Solution {
	return h.Population()[h.gb]
}

// BestFitness returns the fitness of the best individual.
func (h *HillClimbing) BestFitness() solution.Fitness {
	return h.BestIndividual().Fitness()
}

// Name identifies the method.
func (h *HillClimbing) Name() string { return "HillClimbing" }

func uniformIn(rng *rand.Rand, a, b float64) float64 {
	if a == b {
		return a
	}
	return a + rng.Float64()*(b-a)
}

package search

import (
	"math/rand"

	"github.com/pfperroni/treasure-hunt-framework/internal/errors"
	"github.com/pfperroni/treasure-hunt-framework/internal/random"
	"github.com/pfperroni/treasure-hunt-framework/internal/solution"
)

// PSO is a standard particle swarm with personal and global bests and inertia
// decaying linearly to zero over the evaluation budget.
type PSO struct {
	Base

	w  float64
	c1 float64
	c2 float64

	pBest []*solution.Solution
	vel   []*solution.Solution

	rng    *rand.Rand
	nEvals int
	gb     int
	stuck  bool
}

// NewPSO creates a swarm with inertia w and acceleration coefficients c1
// (personal) and c2 (global).
func NewPSO(w, c1, c2 float64, populationSize int) *PSO {
	return &PSO{
		Base: NewBase(populationSize),
		w:    w,
		c1:   c1,
		c2:   c2,
		gb:   -1,
	}
}

// Startup resets counters, seeds the velocities and personal bests from the
// installed population and locates the global best.
func (p *PSO) Startup() error {
	pop := p.Population()
	if len(pop) == 0 {
		return errors.InvalidArgument("the population size must be greater than zero")
	}
	fp := p.FitnessPolicy()
	p.rng = random.New(p.SeedSource())
	p.nEvals = 0
	p.gb = 0
	p.stuck = false

	if p.pBest == nil {
		p.pBest = make([]*solution.Solution, len(pop))
		p.vel = make([]*solution.Solution, len(pop))
		for i := range pop {
			p.pBest[i] = solution.MustNew(pop[i].Shape())
			p.vel[i] = solution.MustNew(pop[i].Shape())
		}
	}

	for i := range pop {
		for j := 0; j < pop[i].NDimensions(); j++ {
			p.vel[i].Position(j).Fill(p.rng.Float64())
		}
		p.pBest[i].CopyFrom(pop[i])
		if i != p.gb && fp.FirstIsBetter(pop[i], pop[p.gb]) {
			p.gb = i
		}
	}
	return nil
}

// Finalize overrides the population with the respective personal bests.
func (p *PSO) Finalize() {
	pop := p.Population()
	for i := range pop {
		pop[i].CopyFrom(p.pBest[i])
	}
}

// Next advances the swarm until the global best improves, the no-improvement
// limit trips, or m evaluations are reached.
func (p *PSO) Next(m int) {
	pop := p.Population()
	fp := p.FitnessPolicy()
	ss := p.SearchSpace()
	n := ss.NDimensions()
	pos1 := make(solution.Position, len(pop[0].Position(0)))
	pos2 := make(solution.Position, len(pop[0].Position(0)))
	found := false
	noImprove := 0
	currW := p.w - (p.w/float64(m))*float64(p.nEvals)
	for !found && p.nEvals < m && noImprove < p.MaxNoImprove() {
		for i := 0; i < len(pop) && p.nEvals < m; i++ {
			for j := 0; j < n; j++ {
				dim := ss.Dimension(j)
				// c1 * U(0,1) * (pBest[i][j] - x[i][j])
				pos1.CopyFrom(p.pBest[i].Position(j))
				pos1.Sub(pop[i].Position(j))
				pos1.Scale(p.c1 * p.rng.Float64())
				// c2 * U(0,1) * (gBest[j] - x[i][j])
				pos2.CopyFrom(pop[p.gb].Position(j))
				pos2.Sub(pop[i].Position(j))
				pos2.Scale(p.c2 * p.rng.Float64())

				pos2.Add(pos1)

				pos1.CopyFrom(p.vel[i].Position(j))
				pos1.Scale(currW)
				pos1.Add(pos2)

				p.vel[i].Position(j).CopyFrom(pos1)
				pop[i].Position(j).Add(p.vel[i].Position(j))
				pop[i].Position(j).ClampUpper(dim.Hi)
				pop[i].Position(j).ClampLower(dim.Lo)
			}
			fp.Apply(pop[i])
			p.nEvals++
		}
		for i := range pop {
			if fp.FirstIsBetter(pop[i], p.pBest[i]) {
				p.pBest[i].CopyFrom(pop[i])
				if i != p.gb && fp.FirstIsBetter(pop[i], pop[p.gb]) {
					found = true
					p.gb = i
				}
			}
		}
		if !found {
			noImprove++
		}
		currW -= p.w / float64(m)
	}
	if noImprove == p.MaxNoImprove() {
		p.stuck = true
	}
}

// IsStuck reports the stagnation flag.
func (p *PSO) IsStuck() bool { return p.stuck }

// BestPos returns the index of the global best particle.
func (p *PSO) BestPos() int { return p.gb }

// CurrentNEvals returns the evaluations performed since Startup.
func (p *PSO) CurrentNEvals() int { return p.nEvals }

// BestIndividual returns the global best particle.
func (p *PSO) BestIndividual() *solution.Solution {
	return p.Population()[p.gb]
}

// BestFitness returns the fitness of the global best particle.
func (p *PSO) BestFitness() solution.Fitness {
	return p.BestIndividual().Fitness()
}

// Name identifies the method.
func (p *PSO) Name() string { return "PSO" }

package engine

import (
	"math/rand"

	"go.uber.org/zap"

	"github.com/pfperroni/treasure-hunt-framework/internal/errors"
	"github.com/pfperroni/treasure-hunt-framework/internal/random"
	"github.com/pfperroni/treasure-hunt-framework/internal/search"
	"github.com/pfperroni/treasure-hunt-framework/internal/solution"
	"github.com/pfperroni/treasure-hunt-framework/internal/space"
)

// searchGroup runs the selected optimizer over the shared population and
// maintains the iteration's best.
type searchGroup struct {
	th  *TH
	rng *rand.Rand

	population    []*solution.Solution
	iterationBest *solution.Solution
	bias          *solution.Solution
	lastExecuted  search.Search

	improvedGeneralBest bool
}

func newSearchGroup(th *TH) (*searchGroup, error) {
	cfg := th.cfg
	algorithms := cfg.SearchAlgorithms()
	if len(algorithms) == 0 {
		return nil, errors.InvalidArgument("at least one search algorithm must be provided")
	}
	maxPopulationSize := cfg.MaxPopulationSize()
	if maxPopulationSize <= 0 {
		return nil, errors.InvalidArgument("the population size must be greater than zero")
	}

	// Install the fitness policy and search space on every optimizer so each
	// candidate can be evaluated and compared.
	for _, score := range algorithms {
		if s := score.Search(); s != nil {
			s.SetFitnessPolicy(th.fitness)
			s.SetSearchSpace(cfg.SearchSpace())
			s.SetMaxNoImprove(cfg.maxNoImprove)
			s.SetSeedSource(cfg.SeedSource())
		}
	}

	g := &searchGroup{
		th:            th,
		rng:           random.New(cfg.SeedSource()),
		population:    make([]*solution.Solution, maxPopulationSize),
		iterationBest: solution.MustNew(th.shape),
	}
	for i := range g.population {
		g.population[i] = solution.MustNew(th.shape)
	}

	// Only the root level carries the bias.
	if th.node.IsRoot() {
		g.bias = cfg.Bias()
		if g.bias != nil {
			th.fitness.Apply(g.bias)
			if err := cfg.BestListUpdatePolicy().Apply(th.bestList, g.bias, th.fitness); err != nil {
				return nil, err
			}
			th.incrementEvals(1)
			th.log.Info("bias was set", zap.Float64("fitness", g.bias.Fitness().First()))
		}
	}
	return g, nil
}

// run performs one complete execution of the search group.
func (g *searchGroup) run() error {
	th := g.th
	cfg := th.cfg
	th.log.Debug("executing search group")

	g.improvedGeneralBest = false
	selected, err := cfg.AlgorithmSelectionPolicy().Apply(th.id, th.tree, cfg.SearchAlgorithms())
	if err != nil {
		return err
	}
	selected.SetPopulation(g.population)
	if err := th.convergence.Run(selected); err != nil {
		return err
	}
	th.incrementEvals(int64(selected.CurrentNEvals()))
	g.iterationBest.CopyFrom(selected.BestIndividual())
	if err := cfg.BestListUpdatePolicy().Apply(th.bestList, g.iterationBest, th.fitness); err != nil {
		return err
	}
	if th.fitness.FirstIsBetter(g.iterationBest, th.generalBest) {
		th.generalBest.CopyFrom(g.iterationBest)
		g.improvedGeneralBest = true
	}

	if err := cfg.AlgorithmSelectionPolicy().Rank(th.id, th.tree, cfg.SearchAlgorithms(),
		selected, g.iterationBest.Fitness(), selected.CurrentNEvals(), th.nEvals); err != nil {
		return err
	}
	g.lastExecuted = selected
	return nil
}

// resetPopulation places the population and evaluates every slot: startup
// solutions first on the root, then the bias rules, then uniform placement
// inside the anchor sub-region.
func (g *searchGroup) resetPopulation(anchor *space.Region) error {
	th := g.th
	startup := th.cfg.StartupSolutions()
	hasUsedBias := false
	for i := range g.population {
		switch {
		case th.node.IsRoot() && i < len(startup):
			g.population[i].CopyFrom(startup[i])
		case g.bias != nil:
			if th.node.IsRoot() && !hasUsedBias {
				hasUsedBias = true
				g.population[i].CopyFrom(g.bias)
			} else if g.rng.Float64() < 0.5 {
				g.population[i].ResetNearBias(anchor, g.bias, g.rng)
			} else {
				g.population[i].Reset(anchor, g.rng)
			}
		default:
			g.population[i].Reset(anchor, g.rng)
		}

		th.fitness.Apply(g.population[i])
		if i == 0 || th.fitness.FirstIsBetter(g.population[i], g.iterationBest) {
			g.iterationBest.CopyFrom(g.population[i])
		}
	}
	if th.fitness.FirstIsBetter(g.iterationBest, th.generalBest) {
		th.generalBest.CopyFrom(g.iterationBest)
	}
	if err := th.cfg.BestListUpdatePolicy().Apply(th.bestList, th.generalBest, th.fitness); err != nil {
		return err
	}
	th.incrementEvals(int64(len(g.population)))
	return nil
}

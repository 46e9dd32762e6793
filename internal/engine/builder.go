// Package engine contains the per-node iteration engine, its search group and
// the builder that wires a TH instance together.
package engine

import (
	"time"

	"go.uber.org/zap"

	"github.com/pfperroni/treasure-hunt-framework/internal/bestlist"
	"github.com/pfperroni/treasure-hunt-framework/internal/config"
	"github.com/pfperroni/treasure-hunt-framework/internal/errors"
	"github.com/pfperroni/treasure-hunt-framework/internal/logging"
	"github.com/pfperroni/treasure-hunt-framework/internal/random"
	"github.com/pfperroni/treasure-hunt-framework/internal/region"
	"github.com/pfperroni/treasure-hunt-framework/internal/relocate"
	"github.com/pfperroni/treasure-hunt-framework/internal/search"
	"github.com/pfperroni/treasure-hunt-framework/internal/solution"
	"github.com/pfperroni/treasure-hunt-framework/internal/space"
	"github.com/pfperroni/treasure-hunt-framework/internal/topology"
	"github.com/pfperroni/treasure-hunt-framework/internal/transport"
)

// Builder wires the capabilities of one TH instance. Build consumes the
// builder: afterwards it is owned by the engine and must not be reused.
// Unset capabilities receive their defaults lazily when read.
type Builder struct {
	tree              *topology.Tree
	bus               transport.Bus
	searchSpace       *space.SearchSpace
	fitnessPolicy     solution.FitnessPolicy
	regionSelection   region.SelectionPolicy
	convergence       search.ConvergenceControl
	bestListUpdate    bestlist.UpdatePolicy
	bestListSelection bestlist.SelectionPolicy
	relocation        relocate.Strategy
	relocationData    *relocate.Data
	algSelection      search.SelectionPolicy
	localSearch       search.Search
	algorithms        []*search.Score
	bias              *solution.Solution
	startupSolutions  []*solution.Solution

	logger       *zap.Logger
	seeds        random.SeedSource
	maxNoImprove int
	residualPoll time.Duration

	pWidth, fWidth, vWidth int

	built          bool
	maxEvaluations int64
	maxSeconds     int64
	maxIterations  int64
	bestListSize   int
}

// NewBuilder creates a builder with empty configuration.
func NewBuilder() *Builder {
	return &Builder{
		bestListSize: 1,
		pWidth:       1,
		fWidth:       1,
		vWidth:       1,
		maxNoImprove: 5,
		residualPoll: time.Second,
	}
}

// SetTree installs the tree topology.
func (b *Builder) SetTree(tree *topology.Tree) *Builder {
	if tree != nil {
		b.tree = tree
	}
	return b
}

// Tree returns the configured topology.
func (b *Builder) Tree() *topology.Tree { return b.tree }

// SetBus installs the message bus endpoint of this instance.
func (b *Builder) SetBus(bus transport.Bus) *Builder {
	if bus != nil {
		b.bus = bus
	}
	return b
}

// Bus returns the configured bus.
func (b *Builder) Bus() transport.Bus { return b.bus }

// SetSearchSpace installs the full search space.
func (b *Builder) SetSearchSpace(ss *space.SearchSpace) *Builder {
	if ss != nil {
		b.searchSpace = ss
	}
	return b
}

// SearchSpace returns the configured search space.
func (b *Builder) SearchSpace() *space.SearchSpace { return b.searchSpace }

// SetFitnessPolicy installs the cost capability. No default exists.
func (b *Builder) SetFitnessPolicy(fp solution.FitnessPolicy) *Builder {
	if fp != nil {
		b.fitnessPolicy = fp
	}
	return b
}

// FitnessPolicy returns the configured cost capability.
func (b *Builder) FitnessPolicy() solution.FitnessPolicy { return b.fitnessPolicy }

// SetRegionSelectionPolicy installs the region partitioner.
func (b *Builder) SetRegionSelectionPolicy(p region.SelectionPolicy) *Builder {
	if p != nil {
		b.regionSelection = p
	}
	return b
}

// RegionSelectionPolicy returns the partitioner, defaulting to a
// GroupSelection without any partitioning.
func (b *Builder) RegionSelectionPolicy() region.SelectionPolicy {
	if b.regionSelection == nil {
		b.regionSelection, _ = region.NewGroupSelection(1, 1)
	}
	return b.regionSelection
}

// SetConvergenceControl installs the convergence controller.
func (b *Builder) SetConvergenceControl(c search.ConvergenceControl) *Builder {
	if c != nil {
		b.convergence = c
	}
	return b
}

// ConvergenceControl returns the controller, defaulting to
// CSMOn(3000, 0.2, fitness minimum estimate). The fitness policy must be set
// before the default can materialize.
func (b *Builder) ConvergenceControl() search.ConvergenceControl {
	if b.convergence == nil && b.fitnessPolicy != nil {
		b.convergence = search.NewCSMOn(3000, 0.2, b.fitnessPolicy.MinEstimatedFitnessValue())
	}
	return b.convergence
}

// SetBestListUpdatePolicy installs the best-list update policy.
func (b *Builder) SetBestListUpdatePolicy(p bestlist.UpdatePolicy) *Builder {
	if p != nil {
		b.bestListUpdate = p
	}
	return b
}

// BestListUpdatePolicy returns the update policy, defaulting to the
// convergent one.
func (b *Builder) BestListUpdatePolicy() bestlist.UpdatePolicy {
	if b.bestListUpdate == nil {
		b.bestListUpdate = bestlist.ConvergentUpdate{}
	}
	return b.bestListUpdate
}

// SetBestListSelectionPolicy installs the best-list selection policy.
func (b *Builder) SetBestListSelectionPolicy(p bestlist.SelectionPolicy) *Builder {
	if p != nil {
		b.bestListSelection = p
	}
	return b
}

// BestListSelectionPolicy returns the selection policy, defaulting to the
// random one.
func (b *Builder) BestListSelectionPolicy() bestlist.SelectionPolicy {
	if b.bestListSelection == nil {
		b.bestListSelection = bestlist.NewRandomSelection(b.SeedSource())
	}
	return b.bestListSelection
}

// SetRelocationStrategy installs the relocation strategy.
func (b *Builder) SetRelocationStrategy(s relocate.Strategy) *Builder {
	if s != nil {
		b.relocation = s
	}
	return b
}

// RelocationStrategy returns the strategy, defaulting to the Beta strategy
// with linear displacement.
func (b *Builder) RelocationStrategy() relocate.Strategy {
	if b.relocation == nil {
		b.relocation = relocate.NewBeta(b.SeedSource())
	}
	return b.relocation
}

// SetRelocationData installs the relocation strategy storage.
func (b *Builder) SetRelocationData(d *relocate.Data) *Builder {
	if d != nil {
		b.relocationData = d
	}
	return b
}

// RelocationData returns the storage, defaulting to the Beta parameters of
// the reference implementation.
func (b *Builder) RelocationData() *relocate.Data {
	if b.relocationData == nil {
		b.relocationData = relocate.NewData(0.99, 1, 1, 1)
	}
	return b.relocationData
}

// SetAlgorithmSelectionPolicy installs the optimizer selection policy.
func (b *Builder) SetAlgorithmSelectionPolicy(p search.SelectionPolicy) *Builder {
	if p != nil {
		b.algSelection = p
	}
	return b
}

// AlgorithmSelectionPolicy returns the policy, defaulting to round-robin.
func (b *Builder) AlgorithmSelectionPolicy() search.SelectionPolicy {
	if b.algSelection == nil {
		b.algSelection = search.NewRoundRobinSelection()
	}
	return b.algSelection
}

// SetLocalSearch installs the method used to refine results received from
// children.
func (b *Builder) SetLocalSearch(s search.Search) *Builder {
	if s != nil {
		b.localSearch = s
	}
	return b
}

// LocalSearch returns the refinement method, defaulting to
// HillClimbing(0.05, 1e-3, 1).
func (b *Builder) LocalSearch() search.Search {
	if b.localSearch == nil {
		b.localSearch = search.NewHillClimbing(0.05, 1e-3, 1)
	}
	return b.localSearch
}

// AddSearchAlgorithm registers an optimizer with weight 1.
func (b *Builder) AddSearchAlgorithm(s search.Search) *Builder {
	return b.AddWeightedSearchAlgorithm(s, 1)
}

// AddWeightedSearchAlgorithm registers an optimizer with an explicit weight
// for the scoring metrics.
func (b *Builder) AddWeightedSearchAlgorithm(s search.Search, weight float64) *Builder {
	if s != nil {
		b.algorithms = append(b.algorithms, search.NewScore(s, weight))
	}
	return b
}

// SearchAlgorithms returns the registered optimizers.
func (b *Builder) SearchAlgorithms() []*search.Score { return b.algorithms }

// MaxPopulationSize returns the largest preferred population size over the
// registered optimizers. The engine sizes the shared population with it.
func (b *Builder) MaxPopulationSize() int {
	size := 0
	for _, score := range b.algorithms {
		if s := score.Search(); s != nil && s.PreferredPopulationSize() > size {
			size = s.PreferredPopulationSize()
		}
	}
	return size
}

// SetBias defines a bias for the search. Only the root instance uses it.
func (b *Builder) SetBias(bias *solution.Solution) *Builder {
	if bias != nil {
		b.bias = bias
	}
	return b
}

// Bias returns the configured bias, or nil.
func (b *Builder) Bias() *solution.Solution { return b.bias }

// SetStartupSolution installs a single startup solution for the root.
func (b *Builder) SetStartupSolution(s *solution.Solution) *Builder {
	if s != nil {
		b.startupSolutions = []*solution.Solution{s}
	}
	return b
}

// SetStartupSolutions installs the startup solutions the root seeds its first
// population slots with.
func (b *Builder) SetStartupSolutions(sols []*solution.Solution) *Builder {
	if len(sols) > 0 {
		b.startupSolutions = sols
	}
	return b
}

// StartupSolutions returns the configured startup solutions.
func (b *Builder) StartupSolutions() []*solution.Solution { return b.startupSolutions }

// SetMaxNumberEvaluations caps the fitness evaluations of this instance
// (0 = no cap).
func (b *Builder) SetMaxNumberEvaluations(max int64) *Builder {
	b.maxEvaluations = max
	return b
}

// SetMaxTimeSeconds caps the wall-clock seconds of this instance (0 = no
// cap).
func (b *Builder) SetMaxTimeSeconds(max int64) *Builder {
	b.maxSeconds = max
	return b
}

// SetMaxIterations caps the TH iterations of this instance (0 = no cap).
func (b *Builder) SetMaxIterations(max int64) *Builder {
	b.maxIterations = max
	return b
}

// SetBestListSize sets the best-list capacity.
func (b *Builder) SetBestListSize(size int) *Builder {
	b.bestListSize = size
	return b
}

// SetWidths sets the position, fitness and violation widths of the solution
// shape. They default to 1.
func (b *Builder) SetWidths(pWidth, fWidth, vWidth int) *Builder {
	b.pWidth, b.fWidth, b.vWidth = pWidth, fWidth, vWidth
	return b
}

// SetLogger installs the structured logger.
func (b *Builder) SetLogger(logger *zap.Logger) *Builder {
	if logger != nil {
		b.logger = logger
	}
	return b
}

// Logger returns the logger, defaulting to a no-op one.
func (b *Builder) Logger() *zap.Logger {
	if b.logger == nil {
		b.logger = logging.Nop()
	}
	return b.logger
}

// SetSeedSource installs the seed source feeding every stochastic component.
func (b *Builder) SetSeedSource(src random.SeedSource) *Builder {
	if src != nil {
		b.seeds = src
	}
	return b
}

// SeedSource returns the seed source, defaulting to the system one.
func (b *Builder) SeedSource() random.SeedSource {
	if b.seeds == nil {
		b.seeds = random.System()
	}
	return b.seeds
}

// SetResidualPollInterval sets the sleep between child probes in the
// residual-communication phase.
func (b *Builder) SetResidualPollInterval(d time.Duration) *Builder {
	if d > 0 {
		b.residualPoll = d
	}
	return b
}

// SetSettings applies the process-wide configuration record.
func (b *Builder) SetSettings(cfg *config.Settings) *Builder {
	if cfg == nil {
		return b
	}
	b.maxNoImprove = cfg.MaxNoImprove
	b.residualPoll = cfg.ResidualPollInterval
	b.seeds = random.ForSettings(cfg.Deterministic)
	return b
}

// Build validates the configuration and constructs the engine. It is callable
// at most once; the engine owns the builder afterwards.
func (b *Builder) Build() (*TH, error) {
	if b.built {
		return nil, errors.InvalidArgument("this builder has already constructed an implementation")
	}
	b.built = true
	return newTH(b)
}

package engine

import (
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/pfperroni/treasure-hunt-framework/internal/bestlist"
	"github.com/pfperroni/treasure-hunt-framework/internal/errors"
	"github.com/pfperroni/treasure-hunt-framework/internal/iterdata"
	"github.com/pfperroni/treasure-hunt-framework/internal/metrics"
	"github.com/pfperroni/treasure-hunt-framework/internal/random"
	"github.com/pfperroni/treasure-hunt-framework/internal/search"
	"github.com/pfperroni/treasure-hunt-framework/internal/solution"
	"github.com/pfperroni/treasure-hunt-framework/internal/space"
	"github.com/pfperroni/treasure-hunt-framework/internal/topology"
	"github.com/pfperroni/treasure-hunt-framework/internal/transport"
)

// Child liveness statuses, from the parent's viewpoint.
const (
	statusNotStarted = 0
	statusActive     = 1
	statusResidual   = -1
	statusDone       = -2
)

const finalizeSignal = 1

// TH is one node of the cooperative optimization tree: it runs its own
// search group over its anchor sub-region and exchanges best candidates with
// its parent and children.
type TH struct {
	cfg *Builder
	log *zap.Logger
	rng *rand.Rand

	tree   *topology.Tree
	node   *topology.Node
	region *space.Region
	shape  solution.Shape

	group       *searchGroup
	localSearch search.Search
	convergence search.ConvergenceControl
	fitness     solution.FitnessPolicy

	bestList    *bestlist.BestList
	generalBest *solution.Solution
	parentBest  *solution.Solution
	iteration   *iterdata.IterationData

	bus      transport.Bus
	id       int
	level    int
	parentID int
	children []int

	childStatus []int

	upCh             transport.PeerChannel // child-to-parent data
	downCh           transport.PeerChannel // parent-to-child data
	startupParentCh  transport.PeerChannel
	finalizeParentCh transport.PeerChannel
	childUp          []transport.PeerChannel
	childDown        []transport.PeerChannel
	childStartup     []transport.PeerChannel
	childFinalize    []transport.PeerChannel

	nEvals         int64
	elapsedSeconds float64
	startTime      time.Time

	executed        bool
	generalBestCopy *solution.Solution
	bestListCopy    *bestlist.BestList
}

func newTH(cfg *Builder) (*TH, error) {
	switch {
	case cfg.Tree() == nil:
		return nil, errors.InvalidArgument("the TH tree must be provided")
	case cfg.SearchSpace() == nil:
		return nil, errors.InvalidArgument("the search space must be provided")
	case cfg.FitnessPolicy() == nil:
		return nil, errors.InvalidArgument("the fitness policy must be provided")
	case cfg.Bus() == nil:
		return nil, errors.InvalidArgument("the message bus must be provided")
	case cfg.maxIterations == 0 && cfg.maxEvaluations == 0 && cfg.maxSeconds == 0:
		return nil, errors.InvalidArgument("at least one budget limit must be provided: [iterations, evaluations, seconds]")
	case cfg.bestListSize <= 0:
		return nil, errors.InvalidArgument("the best list size is invalid [%d]", cfg.bestListSize)
	}

	th := &TH{
		cfg:     cfg,
		bus:     cfg.Bus(),
		tree:    cfg.Tree(),
		fitness: cfg.FitnessPolicy(),
		rng:     random.New(cfg.SeedSource()),
	}

	// Tree configuration. Lock avoids updates after TH has begun.
	th.tree.Lock()
	th.id = th.bus.ID()
	th.node = th.tree.Node(th.id)
	if th.node == nil {
		return nil, errors.InvalidArgument("bus id %d has no node in the tree", th.id)
	}
	th.level = th.node.Level()
	n := cfg.SearchSpace().NDimensions()
	th.shape = solution.Shape{PWidth: cfg.pWidth, FWidth: cfg.fWidth, VWidth: cfg.vWidth, NDims: n}
	th.log = cfg.Logger().With(zap.Int("node", th.id), zap.Int("level", th.level))

	th.log.Debug("tree position resolved",
		zap.Int("treeSize", th.tree.Size()), zap.Int("rootLevel", th.tree.RootLevel()))

	// Partition and select the anchor sub-region.
	anchor, err := cfg.RegionSelectionPolicy().Apply(cfg.SearchSpace(), th.tree, th.id)
	if err != nil {
		return nil, err
	}
	th.region = anchor

	// Communication channels for parent and children.
	th.parentID = th.tree.ParentID(th.id)
	th.children = th.tree.ChildrenIDs(th.id)
	th.childStatus = make([]int, len(th.children))
	if th.node.HasParent() {
		if th.upCh, err = th.bus.Channel(th.parentID, transport.TagChild2Parent); err != nil {
			return nil, err
		}
		if th.downCh, err = th.bus.Channel(th.parentID, transport.TagParent2Child); err != nil {
			return nil, err
		}
		if th.startupParentCh, err = th.bus.Channel(th.parentID, transport.TagStartup); err != nil {
			return nil, err
		}
		if th.finalizeParentCh, err = th.bus.Channel(th.parentID, transport.TagFinalize); err != nil {
			return nil, err
		}
	}
	for _, child := range th.children {
		up, err := th.bus.Channel(child, transport.TagChild2Parent)
		if err != nil {
			return nil, err
		}
		down, err := th.bus.Channel(child, transport.TagParent2Child)
		if err != nil {
			return nil, err
		}
		startup, err := th.bus.Channel(child, transport.TagStartup)
		if err != nil {
			return nil, err
		}
		finalize, err := th.bus.Channel(child, transport.TagFinalize)
		if err != nil {
			return nil, err
		}
		th.childUp = append(th.childUp, up)
		th.childDown = append(th.childDown, down)
		th.childStartup = append(th.childStartup, startup)
		th.childFinalize = append(th.childFinalize, finalize)
	}

	// Best solutions. The general best starts at the worst sentinel so the
	// first real candidate always improves it.
	if th.bestList, err = bestlist.New(cfg.bestListSize, n); err != nil {
		return nil, err
	}
	th.generalBest = solution.MustNew(th.shape)
	th.parentBest = solution.MustNew(th.shape)
	th.fitness.SetWorstFitness(th.generalBest)

	// Search group configuration.
	if th.group, err = newSearchGroup(th); err != nil {
		return nil, err
	}
	th.convergence = cfg.ConvergenceControl()
	th.localSearch = cfg.LocalSearch()
	th.localSearch.SetFitnessPolicy(th.fitness)
	th.localSearch.SetSearchSpace(cfg.SearchSpace())
	th.localSearch.SetMaxNoImprove(cfg.maxNoImprove)
	th.localSearch.SetSeedSource(cfg.SeedSource())

	// Configuration for the relocation strategy.
	if th.iteration, err = iterdata.New(th.group.population, cfg.maxSeconds, cfg.maxEvaluations, cfg.maxIterations); err != nil {
		return nil, err
	}
	cfg.RelocationData().SetIterationData(th.iteration)

	th.log.Debug("construction completed", zap.Int("children", len(th.children)))
	return th, nil
}

// ID returns this instance's unique id in the processing grid.
func (th *TH) ID() int { return th.id }

// NEvals returns the number of fitness evaluations performed by this
// instance.
func (th *TH) NEvals() int64 { return th.nEvals }

// Region returns the node's anchor sub-region.
func (th *TH) Region() *space.Region { return th.region }

// BestSolution returns a caller-owned copy of the global best. It returns nil
// before Run has completed.
func (th *TH) BestSolution() *solution.Solution {
	if th.executed && th.generalBestCopy == nil {
		th.generalBestCopy = th.generalBest.Clone()
	}
	return th.generalBestCopy
}

// BestList returns a caller-owned copy of the best-list. It returns nil
// before Run has completed.
func (th *TH) BestList() *bestlist.BestList {
	if th.executed && th.bestListCopy == nil {
		th.bestListCopy = bestlist.Copy(th.bestList)
	}
	return th.bestListCopy
}

func (th *TH) incrementEvals(incr int64) {
	th.nEvals += incr
	metrics.Evaluations.WithLabelValues(metrics.NodeLabel(th.id)).Add(float64(incr))
}

// packet flattens a solution into a bus packet.
func (th *TH) packet(s *solution.Solution, status int) transport.Packet {
	pos := make([]float64, th.shape.NDims*th.shape.PWidth)
	s.FlatPositions(pos)
	fit := make([]float64, th.shape.FWidth)
	copy(fit, s.Fitness())
	return transport.Packet{Positions: pos, Fitness: fit, Status: status}
}

func (th *TH) unpack(pkt transport.Packet, dst *solution.Solution) {
	dst.SetFlatPositions(pkt.Positions)
	dst.SetFitnessValues(pkt.Fitness)
}

func (th *TH) trySend(ch transport.PeerChannel, pkt transport.Packet, tag transport.Tag) bool {
	ok, err := ch.TrySend(pkt)
	if err != nil {
		th.fatal(err, "posting send")
	}
	if ok {
		metrics.MessagesSent.WithLabelValues(metrics.NodeLabel(th.id), tag.String()).Inc()
	}
	return ok
}

// fatal aborts the node: the engine is not designed to recover a dropped peer
// and must not produce silently wrong optima.
func (th *TH) fatal(err error, msg string) {
	th.log.Fatal(msg, zap.Error(errors.TransportFailure(err, msg)))
}

// Run starts the Treasure Hunt mechanisms and blocks until the cooperative
// shutdown completes.
func (th *TH) Run() error {
	th.log.Info("running", zap.String("region", th.region.String()))

	th.startupBarrier()
	th.startTime = time.Now()

	// Initial population.
	if err := th.group.resetPopulation(th.region); err != nil {
		return err
	}

	if err := th.iterate(); err != nil {
		return err
	}
	th.residualCommunication()
	th.finalizeSubTree()

	th.executed = true
	th.log.Info("execution finished",
		zap.Int64("evaluations", th.nEvals),
		zap.Float64("fitness", th.generalBest.Fitness().First()))
	return nil
}

// startupBarrier synchronises the start: leaves signal their parent; every
// internal node waits for all children before forwarding one signal upward.
// No node evaluates before its sub-tree has checked in.
func (th *TH) startupBarrier() {
	if th.tree.Size() <= 1 {
		return
	}
	if th.node.IsLeaf() {
		if err := th.startupParentCh.Send(transport.Packet{Status: statusActive}); err != nil {
			th.fatal(err, "sending startup signal")
		}
		th.log.Debug("sent startup signal to parent", zap.Int("parent", th.parentID))
		return
	}
	for i, child := range th.children {
		pkt, err := th.childStartup[i].Recv()
		if err != nil {
			th.fatal(err, "receiving startup signal")
		}
		th.childStatus[i] = pkt.Status
		th.log.Debug("received startup signal from child", zap.Int("child", child))
	}
	if th.node.HasParent() {
		if err := th.startupParentCh.Send(transport.Packet{Status: statusActive}); err != nil {
			th.fatal(err, "sending startup signal")
		}
		th.log.Debug("sent startup signal to parent", zap.Int("parent", th.parentID))
	}
}

// iterate is the main loop: search group run, upward send, downward read and
// refine, downward select, parent read, bias insertion, budget check and
// relocation.
func (th *TH) iterate() error {
	cfg := th.cfg
	population := th.group.population
	populationSize := len(population)
	childBest := solution.MustNew(th.shape)
	selectedFromBestList := solution.MustNew(th.shape)

	hasChildrenImproved := false
	var t int64 = 1
	runNextIteration := true
	for runNextIteration {
		if err := th.group.run(); err != nil {
			return err
		}

		// Send the global best to the parent. Skipped when the previous send
		// has not completed: only the newest-still-unsent package reaches the
		// parent.
		if th.node.HasParent() {
			if th.group.improvedGeneralBest || hasChildrenImproved {
				th.trySend(th.upCh, th.packet(th.generalBest, statusActive), transport.TagChild2Parent)
			} else {
				th.log.Debug("no improvement to send to the parent")
			}
		}

		// Slot 0 keeps the iteration's own best.
		population[0].CopyFrom(th.group.iterationBest)
		hasChildrenImproved = false
		popSeq := 1

		if th.node.HasChildren() {
			// Read the children's bests and refine them locally.
			for i := 0; i < len(th.children) && popSeq < populationSize; i++ {
				if th.childStatus[i] == statusDone {
					continue
				}
				pkt, got, err := th.childUp[i].TryRecvLatest()
				if err != nil {
					th.fatal(err, "reading child best")
				}
				if got {
					th.childStatus[i] = pkt.Status
					th.log.Debug("obtained best value from child",
						zap.Int("child", th.children[i]), zap.Int("status", pkt.Status))
				}
				// A child that has not started yet is skipped without
				// consuming a slot.
				if !got || th.childStatus[i] == statusNotStarted {
					continue
				}

				th.unpack(pkt, childBest)
				th.refineChildBest(childBest)
				if th.fitness.FirstIsBetter(childBest, th.generalBest) {
					th.generalBest.CopyFrom(childBest)
					hasChildrenImproved = true
				}
				if err := cfg.BestListUpdatePolicy().Apply(th.bestList, childBest, th.fitness); err != nil {
					return err
				}
				population[popSeq].CopyFrom(childBest)
				popSeq++
			}

			// Select one candidate from the best-list and send it downward.
			selected, err := cfg.BestListSelectionPolicy().Apply(th.bestList, th.fitness)
			if err != nil {
				return err
			}
			selectedFromBestList.CopyFrom(selected)
			for i := range th.children {
				if th.childStatus[i] < 0 {
					continue
				}
				th.trySend(th.childDown[i], th.packet(selectedFromBestList, statusActive), transport.TagParent2Child)
			}
		}

		// Read the parent's best. Before the first read ever completes the
		// parent best falls back to the general best.
		if th.node.HasParent() && t > 1 {
			pkt, got, err := th.downCh.TryRecvLatest()
			if err != nil {
				th.fatal(err, "reading parent best")
			}
			if got {
				th.unpack(pkt, th.parentBest)
				th.log.Debug("received parent best", zap.Float64("fitness", th.parentBest.Fitness().First()))
			} else {
				th.parentBest.CopyFrom(th.generalBest)
			}
		} else {
			th.parentBest.CopyFrom(th.generalBest)
		}

		// Bias insertion.
		if th.group.bias != nil && popSeq < populationSize {
			population[popSeq].ResetNearBias(th.region, th.group.bias, th.rng)
			popSeq++
		}

		// Budget check; relocation is skipped on the last iteration.
		th.elapsedSeconds = time.Since(th.startTime).Seconds()
		runNextIteration = (cfg.maxIterations == 0 || t < cfg.maxIterations) &&
			(cfg.maxEvaluations == 0 || th.nEvals < cfg.maxEvaluations) &&
			(cfg.maxSeconds == 0 || th.elapsedSeconds < float64(cfg.maxSeconds))
		if runNextIteration {
			th.iteration.SetCurrIteration(t)
			th.iteration.SetCurrEvaluation(th.nEvals)
			th.iteration.SetCurrSeconds(th.elapsedSeconds)
			if err := th.iteration.SetPopulation(population); err != nil {
				return err
			}
			th.iteration.SetGeneralBest(th.generalBest)
			th.iteration.SetParentBest(th.parentBest)
			th.iteration.SetIterationBest(th.group.iterationBest)

			if popSeq < populationSize {
				// Dynamic region selection, then relocation of the still-free
				// slots.
				region, err := cfg.RegionSelectionPolicy().Recalculate(cfg.SearchSpace(), th.region, th.tree, th.id)
				if err != nil {
					return err
				}
				th.region = region
				if err := cfg.RelocationStrategy().Apply(cfg.RelocationData(), th.region, population[popSeq:]); err != nil {
					return err
				}
				for ; popSeq < populationSize; popSeq++ {
					th.fitness.Apply(population[popSeq])
					th.incrementEvals(1)
				}
			}
		}

		metrics.Iterations.WithLabelValues(metrics.NodeLabel(th.id)).Inc()
		metrics.BestFitness.WithLabelValues(metrics.NodeLabel(th.id)).Set(th.generalBest.Fitness().First())
		th.log.Info("iteration completed",
			zap.String("alg", th.group.lastExecuted.Name()),
			zap.Int64("iter", t),
			zap.Int64("evaluations", th.nEvals),
			zap.Float64("seconds", th.elapsedSeconds),
			zap.Float64("fitness", th.generalBest.Fitness().First()),
			zap.Float64("iterationFitness", th.group.iterationBest.Fitness().First()))

		t++
	}
	return nil
}

// refineChildBest runs the local refinement pass over a child's report.
func (th *TH) refineChildBest(childBest *solution.Solution) {
	th.localSearch.SetPopulation([]*solution.Solution{childBest})
	if err := th.localSearch.Startup(); err != nil {
		th.log.Error("local search startup failed", zap.Error(err))
		return
	}
	budget := th.convergence.BudgetSize() / 100
	if budget < 1 {
		budget = 1
	}
	th.localSearch.Next(budget)
	th.incrementEvals(int64(th.localSearch.CurrentNEvals()))
	childBest.CopyFrom(th.localSearch.BestIndividual())
}

// residualCommunication drains the in-flight data after the budget expires
// without dropping late improvements: discard stale parent traffic, push the
// final best both ways, then poll the children until all have shut down.
func (th *TH) residualCommunication() {
	th.log.Debug("search phase completed, entering residual communication")

	if th.node.HasParent() {
		// Discard remaining data sent by the parent. From this point on this
		// sub-tree focuses only on search intensification.
		if _, _, err := th.downCh.TryRecvLatest(); err != nil {
			th.fatal(err, "discarding parent data")
		}
		// Inform the parent this instance entered the residual phase.
		th.trySend(th.upCh, th.packet(th.generalBest, statusResidual), transport.TagChild2Parent)
	}

	if !th.node.HasChildren() {
		return
	}

	// Send the global best to the still-active children.
	for i := range th.children {
		if th.childStatus[i] < 0 {
			continue
		}
		th.trySend(th.childDown[i], th.packet(th.generalBest, statusActive), transport.TagParent2Child)
	}

	childBest := solution.MustNew(th.shape)
	for {
		time.Sleep(th.cfg.residualPoll)
		inactive := 0
		for i := range th.children {
			if th.childStatus[i] == statusDone {
				inactive++
				continue
			}
			pkt, got, err := th.childUp[i].TryRecvLatest()
			if err != nil {
				th.fatal(err, "reading child best")
			}
			if got {
				th.childStatus[i] = pkt.Status
			}
			if th.childStatus[i] == statusDone {
				inactive++
				th.log.Debug("child is now inactive", zap.Int("child", th.children[i]))
			}
			if !got {
				continue
			}
			th.unpack(pkt, childBest)
			th.refineChildBest(childBest)
			if !th.fitness.FirstIsBetter(childBest, th.generalBest) {
				continue
			}
			th.log.Debug("obtained better information from child",
				zap.Int("child", th.children[i]), zap.Float64("fitness", childBest.Fitness().First()))
			th.generalBest.CopyFrom(childBest)

			// Redirect the improvement to the parent and to the other
			// still-active children.
			if th.node.HasParent() {
				th.trySend(th.upCh, th.packet(th.generalBest, statusResidual), transport.TagChild2Parent)
			}
			for j := range th.children {
				if j == i || th.childStatus[j] < 0 {
					continue
				}
				th.trySend(th.childDown[j], th.packet(th.generalBest, statusActive), transport.TagParent2Child)
			}
		}
		if inactive == len(th.children) {
			return
		}
	}
}

// finalizeSubTree performs the graceful shutdown handshake: the final best
// with the done marker flows upward, FINALIZE propagates from the root
// downward, and the confirmation walks back up.
func (th *TH) finalizeSubTree() {
	if th.node.HasParent() {
		// Wait until the parent has read every message this instance sent,
		// then deliver the final best with the done marker.
		if err := th.upCh.WaitDrain(); err != nil {
			th.fatal(err, "waiting for parent to read the last package")
		}
		if err := th.upCh.Send(th.packet(th.generalBest, statusDone)); err != nil {
			th.fatal(err, "sending final best to parent")
		}
		metrics.MessagesSent.WithLabelValues(metrics.NodeLabel(th.id), transport.TagChild2Parent.String()).Inc()
		th.log.Debug("sent final best to parent", zap.Int("parent", th.parentID))
	}

	// Wait for the children to read every package sent.
	for i := range th.children {
		if err := th.childDown[i].WaitDrain(); err != nil {
			th.fatal(err, "waiting for child to read the last package")
		}
	}

	// Wait for the parent's finalization signal, discarding any residual
	// parent traffic so the channel drains.
	if th.node.HasParent() {
		for {
			if _, _, err := th.downCh.TryRecvLatest(); err != nil {
				th.fatal(err, "discarding parent data")
			}
			pkt, got, err := th.finalizeParentCh.TryRecvLatest()
			if err != nil {
				th.fatal(err, "receiving finalization signal")
			}
			if got && pkt.Status == finalizeSignal {
				break
			}
			time.Sleep(th.cfg.residualPoll)
		}
		th.log.Debug("received finalization signal from parent")
	}

	// Broadcast the finalization signal to the children, root first.
	for i, child := range th.children {
		if err := th.childFinalize[i].Send(transport.Packet{Status: finalizeSignal}); err != nil {
			th.fatal(err, "sending finalization signal")
		}
		metrics.MessagesSent.WithLabelValues(metrics.NodeLabel(th.id), transport.TagFinalize.String()).Inc()
		th.log.Debug("sent finalization signal to child", zap.Int("child", child))
	}

	if th.tree.Size() > 1 {
		if th.node.IsLeaf() {
			// Leaves reply the confirmation for the finalization signal.
			if err := th.finalizeParentCh.Send(transport.Packet{Status: finalizeSignal}); err != nil {
				th.fatal(err, "confirming finalization signal")
			}
		} else {
			// Internal nodes collect every child's confirmation, then reply.
			for i := range th.children {
				if _, err := th.childFinalize[i].Recv(); err != nil {
					th.fatal(err, "receiving finalization confirmation")
				}
			}
			if th.node.HasParent() {
				if err := th.finalizeParentCh.Send(transport.Packet{Status: finalizeSignal}); err != nil {
					th.fatal(err, "confirming finalization signal")
				}
			}
		}
	}
}

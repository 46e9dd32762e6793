package engine

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pfperroni/treasure-hunt-framework/internal/objective"
	"github.com/pfperroni/treasure-hunt-framework/internal/random"
	"github.com/pfperroni/treasure-hunt-framework/internal/region"
	"github.com/pfperroni/treasure-hunt-framework/internal/search"
	"github.com/pfperroni/treasure-hunt-framework/internal/solution"
	"github.com/pfperroni/treasure-hunt-framework/internal/space"
	"github.com/pfperroni/treasure-hunt-framework/internal/topology"
	"github.com/pfperroni/treasure-hunt-framework/internal/transport"
)

// recordingFitness wraps a fitness policy and tracks every evaluation.
type recordingFitness struct {
	solution.FitnessPolicy

	mu         sync.Mutex
	nApplies   int
	minSeen    float64
	firstApply time.Time
}

func newRecordingFitness(inner solution.FitnessPolicy) *recordingFitness {
	return &recordingFitness{FitnessPolicy: inner, minSeen: math.MaxFloat64}
}

func (r *recordingFitness) Apply(s *solution.Solution) {
	r.FitnessPolicy.Apply(s)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.nApplies == 0 {
		r.firstApply = time.Now()
	}
	r.nApplies++
	if v := s.Fitness().First(); v < r.minSeen {
		r.minSeen = v
	}
}

func singleNodeSetup(t *testing.T) (*topology.Tree, transport.Bus) {
	t.Helper()
	tree, err := topology.NewTree(1)
	require.NoError(t, err)
	_, err = tree.AddRootNode(0)
	require.NoError(t, err)
	net, err := transport.NewNetwork(1)
	require.NoError(t, err)
	bus, err := net.Bus(0)
	require.NoError(t, err)
	return tree, bus
}

func TestSingleNodeRunProducesBestSolution(t *testing.T) {
	tree, bus := singleNodeSetup(t)
	ss, err := space.Uniform(3, -5, 5)
	require.NoError(t, err)
	fp := newRecordingFitness(objective.NewSphere())

	th, err := NewBuilder().
		SetTree(tree).
		SetBus(bus).
		SetSearchSpace(ss).
		SetFitnessPolicy(fp).
		SetSeedSource(random.Counter()).
		SetConvergenceControl(search.NewCSMOn(500, 0.2, 0)).
		AddSearchAlgorithm(search.NewHillClimbing(0.8, 0.1, 4)).
		SetBestListSize(2).
		SetMaxIterations(3).
		SetResidualPollInterval(10 * time.Millisecond).
		Build()
	require.NoError(t, err)

	assert.Nil(t, th.BestSolution(), "no best before the run completes")
	assert.Nil(t, th.BestList())

	require.NoError(t, th.Run())

	best := th.BestSolution()
	require.NotNil(t, best)
	assert.GreaterOrEqual(t, best.Fitness().First(), 0.0)
	assert.Greater(t, th.NEvals(), int64(0))

	// Every stored fitness came from an evaluation, so the general best can
	// never undercut the best value the policy ever produced. Equality is not
	// guaranteed: hill climbing keeps the pre-move fitness on accepted moves.
	assert.GreaterOrEqual(t, best.Fitness().First(), fp.minSeen)
	// The worst sentinel must have been displaced by a real candidate.
	assert.Less(t, best.Fitness().First(), math.MaxFloat64)

	// Returned copies are caller-owned.
	best.Position(0).Fill(1234)
	assert.Equal(t, 1234.0, th.BestSolution().Position(0).First())
	list := th.BestList()
	require.NotNil(t, list)
	assert.Equal(t, 2, list.Size())
}

// countingSearch wraps an optimizer and counts its runs.
type countingSearch struct {
	search.Search
	runs int
}

func (c *countingSearch) Startup() error {
	c.runs++
	return c.Search.Startup()
}

func TestRoundRobinInvokesBothOptimizersByIterationTwo(t *testing.T) {
	tree, bus := singleNodeSetup(t)
	ss, err := space.Uniform(2, -5, 5)
	require.NoError(t, err)

	a := &countingSearch{Search: search.NewHillClimbing(0.8, 0.1, 4)}
	b := &countingSearch{Search: search.NewHillClimbing(0.5, 0.2, 4)}

	th, err := NewBuilder().
		SetTree(tree).
		SetBus(bus).
		SetSearchSpace(ss).
		SetFitnessPolicy(objective.NewSphere()).
		SetSeedSource(random.Counter()).
		SetConvergenceControl(search.NewCSMOn(200, 0.2, 0)).
		AddSearchAlgorithm(a).
		AddSearchAlgorithm(b).
		SetMaxIterations(2).
		SetResidualPollInterval(10 * time.Millisecond).
		Build()
	require.NoError(t, err)
	require.NoError(t, th.Run())

	assert.Equal(t, 1, a.runs, "first optimizer runs on iteration 1")
	assert.Equal(t, 1, b.runs, "second optimizer runs on iteration 2")
}

// event is one observed bus operation.
type event struct {
	node   int
	tag    transport.Tag
	status int
	at     time.Time
}

type eventLog struct {
	mu     sync.Mutex
	events []event
}

func (l *eventLog) add(e event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) filter(keep func(event) bool) []event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []event
	for _, e := range l.events {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

type countingBus struct {
	transport.Bus
	log *eventLog
}

func (b *countingBus) Channel(peer int, tag transport.Tag) (transport.PeerChannel, error) {
	ch, err := b.Bus.Channel(peer, tag)
	if err != nil {
		return nil, err
	}
	return &countingChannel{PeerChannel: ch, node: b.ID(), tag: tag, log: b.log}, nil
}

type countingChannel struct {
	transport.PeerChannel
	node int
	tag  transport.Tag
	log  *eventLog
}

func (c *countingChannel) TrySend(p transport.Packet) (bool, error) {
	ok, err := c.PeerChannel.TrySend(p)
	if ok && err == nil {
		c.log.add(event{node: c.node, tag: c.tag, status: p.Status, at: time.Now()})
	}
	return ok, err
}

func (c *countingChannel) Send(p transport.Packet) error {
	// Logged before posting so a receiver acting on the packet can never
	// observe an earlier timestamp than the recorded one.
	c.log.add(event{node: c.node, tag: c.tag, status: p.Status, at: time.Now()})
	return c.PeerChannel.Send(p)
}

func threeNodeTree(t *testing.T) *topology.Tree {
	t.Helper()
	tree, err := topology.NewTree(3)
	require.NoError(t, err)
	_, err = tree.AddRootNode(0)
	require.NoError(t, err)
	_, err = tree.AddNode(1, 0)
	require.NoError(t, err)
	_, err = tree.AddNode(2, 0)
	require.NoError(t, err)
	return tree
}

func runTreeNode(t *testing.T, tree *topology.Tree, bus transport.Bus, fp solution.FitnessPolicy,
	ss *space.SearchSpace) *TH {
	t.Helper()
	partitioner, err := region.NewGroupSelection(1, 2)
	require.NoError(t, err)
	th, err := NewBuilder().
		SetTree(tree).
		SetBus(bus).
		SetSearchSpace(ss).
		SetFitnessPolicy(fp).
		SetSeedSource(random.Counter()).
		SetRegionSelectionPolicy(partitioner).
		SetConvergenceControl(search.NewCSMOn(300, 0.2, 0)).
		AddSearchAlgorithm(search.NewHillClimbing(0.8, 0.1, 4)).
		AddSearchAlgorithm(search.NewPSO(0.9, 0.7, 0.7, 4)).
		SetBestListSize(2).
		SetMaxIterations(3).
		SetResidualPollInterval(10 * time.Millisecond).
		Build()
	require.NoError(t, err)
	return th
}

func TestTreeRunCooperatesAndShutsDownGracefully(t *testing.T) {
	ss, err := space.Uniform(2, -20, 20)
	require.NoError(t, err)
	net, err := transport.NewNetwork(3)
	require.NoError(t, err)
	log := &eventLog{}

	instances := make([]*TH, 3)
	fitness := make([]*recordingFitness, 3)
	var wg sync.WaitGroup
	for id := 0; id < 3; id++ {
		inner, err := net.Bus(id)
		require.NoError(t, err)
		bus := &countingBus{Bus: inner, log: log}
		fitness[id] = newRecordingFitness(objective.NewRosenbrock())
		instances[id] = runTreeNode(t, threeNodeTree(t), bus, fitness[id], ss)
	}
	for id := 0; id < 3; id++ {
		wg.Add(1)
		go func(th *TH) {
			defer wg.Done()
			assert.NoError(t, th.Run())
		}(instances[id])
	}
	wg.Wait()

	rootBest := instances[0].BestSolution()
	require.NotNil(t, rootBest)

	// The root's final best is at least as good as every leaf's.
	for id := 1; id < 3; id++ {
		leafBest := instances[id].BestSolution()
		require.NotNil(t, leafBest)
		assert.LessOrEqual(t, rootBest.Fitness().First(), leafBest.Fitness().First()+1e-9,
			"root must incorporate leaf %d's final best", id)
	}

	// Startup barrier: the root evaluates only after every leaf signalled.
	startups := log.filter(func(e event) bool { return e.tag == transport.TagStartup })
	require.Len(t, startups, 2)
	for _, e := range startups {
		assert.False(t, fitness[0].firstApply.Before(e.at),
			"root evaluated before leaf %d sent its startup signal", e.node)
	}

	// Every non-root emitted exactly one done marker.
	for id := 1; id < 3; id++ {
		done := log.filter(func(e event) bool {
			return e.node == id && e.tag == transport.TagChild2Parent && e.status == statusDone
		})
		assert.Len(t, done, 1, "node %d must emit exactly one done marker", id)
	}

	// The root issued exactly one FINALIZE per child; the leaves confirmed.
	rootFinalize := log.filter(func(e event) bool {
		return e.node == 0 && e.tag == transport.TagFinalize
	})
	assert.Len(t, rootFinalize, 2)
	for id := 1; id < 3; id++ {
		confirm := log.filter(func(e event) bool {
			return e.node == id && e.tag == transport.TagFinalize
		})
		assert.Len(t, confirm, 1, "leaf %d must confirm finalization once", id)
	}
}

func TestTreeRegionsPartitionTheSpace(t *testing.T) {
	ss, err := space.Uniform(2, -20, 20)
	require.NoError(t, err)
	net, err := transport.NewNetwork(3)
	require.NoError(t, err)

	regions := make([]*space.Region, 3)
	for id := 0; id < 3; id++ {
		bus, err := net.Bus(id)
		require.NoError(t, err)
		th := runTreeNode(t, threeNodeTree(t), bus, objective.NewSphere(), ss)
		regions[id] = th.Region()
	}

	assert.Equal(t, -20.0, regions[0].Partition(0).Lo)
	assert.Equal(t, 20.0, regions[0].Partition(0).Hi)
	assert.Equal(t, -20.0, regions[1].Partition(0).Lo)
	assert.Equal(t, 0.0, regions[1].Partition(0).Hi)
	assert.Equal(t, 0.0, regions[2].Partition(0).Lo)
	assert.Equal(t, 20.0, regions[2].Partition(0).Hi)
}

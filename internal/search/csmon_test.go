package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pfperroni/treasure-hunt-framework/internal/objective"
	"github.com/pfperroni/treasure-hunt-framework/internal/random"
	"github.com/pfperroni/treasure-hunt-framework/internal/solution"
	"github.com/pfperroni/treasure-hunt-framework/internal/space"
)

// scriptedSearch replays a fixed improvement curve: every Next consumes
// evalsPerNext evaluations and lowers the best by the scripted decay.
type scriptedSearch struct {
	Base

	curve        []float64
	evalsPerNext int
	stuckAfter   int

	cursor  int
	nEvals  int
	nNext   int
	stuck   bool
	best    *solution.Solution
	started bool
}

func newScriptedSearch(curve []float64, evalsPerNext, stuckAfter int) *scriptedSearch {
	return &scriptedSearch{
		Base:         NewBase(1),
		curve:        curve,
		evalsPerNext: evalsPerNext,
		stuckAfter:   stuckAfter,
	}
}

func (s *scriptedSearch) Startup() error {
	s.cursor = 0
	s.nEvals = 0
	s.nNext = 0
	s.stuck = false
	s.started = true
	s.best = solution.MustNew(solution.DefaultShape(1))
	s.best.SetFitness(s.curve[0])
	return nil
}

func (s *scriptedSearch) Finalize() {}

func (s *scriptedSearch) Next(m int) {
	if s.nEvals+s.evalsPerNext > m {
		s.nEvals = m
		return
	}
	s.nEvals += s.evalsPerNext
	s.nNext++
	if s.stuckAfter > 0 && s.nNext >= s.stuckAfter {
		s.stuck = true
	}
	if s.cursor < len(s.curve)-1 {
		s.cursor++
	}
	s.best.SetFitness(s.curve[s.cursor])
}

func (s *scriptedSearch) IsStuck() bool                       { return s.stuck }
func (s *scriptedSearch) BestPos() int                        { return 0 }
func (s *scriptedSearch) CurrentNEvals() int                  { return s.nEvals }
func (s *scriptedSearch) BestIndividual() *solution.Solution  { return s.best }
func (s *scriptedSearch) BestFitness() solution.Fitness       { return s.best.Fitness() }
func (s *scriptedSearch) Name() string                        { return "scripted" }

func geometricCurve(start, ratio float64, n int) []float64 {
	curve := make([]float64, n)
	v := start
	for i := range curve {
		curve[i] = v
		v *= ratio
	}
	return curve
}

func TestCSMOnNeverExceedsBudget(t *testing.T) {
	s := newScriptedSearch(geometricCurve(100, 0.9, 500), 7, 0)
	c := NewCSMOn(200, 0.2, 0)
	require.NoError(t, c.Run(s))
	assert.LessOrEqual(t, s.CurrentNEvals(), 200)
}

func TestCSMOnHistoryTracksImprovementPulls(t *testing.T) {
	s := newScriptedSearch(geometricCurve(100, 0.9, 500), 5, 0)
	c := NewCSMOn(300, 0.2, 0)
	require.NoError(t, c.Run(s))

	history := c.History()
	// One history point per Next pull; the initial pull is one of them.
	assert.Equal(t, s.nNext, len(history))
	for i := 1; i < len(history); i++ {
		assert.LessOrEqual(t, history[i].Y, history[i-1].Y, "history must be monotone non-increasing")
		assert.Greater(t, history[i].X, history[i-1].X)
	}
}

func TestCSMOnTreatsStuckAsEarlyReturn(t *testing.T) {
	s := newScriptedSearch(geometricCurve(100, 0.5, 500), 5, 4)
	c := NewCSMOn(10000, 0.2, 0)
	require.NoError(t, c.Run(s))
	assert.True(t, s.IsStuck())
	assert.Equal(t, 4, s.nNext)
}

func TestCSMOnPropagatesStartupError(t *testing.T) {
	h := NewHillClimbing(0.5, 0.1, 1)
	h.SetFitnessPolicy(objective.NewSphere())
	// No population installed.
	c := NewCSMOn(100, 0.2, 0)
	assert.Error(t, c.Run(h))
}

func TestCSMOnStopsOnRosenbrock(t *testing.T) {
	fp := objective.NewRosenbrock()
	ss, err := space.Uniform(2, -20, 20)
	require.NoError(t, err)

	pop := make([]*solution.Solution, 6)
	rng := random.New(random.Counter())
	for i := range pop {
		pop[i] = solution.MustNew(solution.DefaultShape(2))
		pop[i].Reset(&ss.Region, rng)
		fp.Apply(pop[i])
	}

	h := NewHillClimbing(0.8, 0.05, len(pop))
	h.SetFitnessPolicy(fp)
	h.SetSearchSpace(ss)
	h.SetSeedSource(random.Counter())
	h.SetPopulation(pop)

	c := NewCSMOn(3000, 0.2, 0)
	require.NoError(t, c.Run(h))

	assert.LessOrEqual(t, h.CurrentNEvals(), 3000)
	history := c.History()
	require.NotEmpty(t, history)
	for i := 1; i < len(history); i++ {
		assert.LessOrEqual(t, history[i].Y, history[i-1].Y)
	}
}

// Package relocate repositions the unfilled population slots each iteration,
// pulling them toward the parent's best by a Beta-quantile factor.
package relocate

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/pfperroni/treasure-hunt-framework/internal/errors"
	"github.com/pfperroni/treasure-hunt-framework/internal/iterdata"
	"github.com/pfperroni/treasure-hunt-framework/internal/random"
	"github.com/pfperroni/treasure-hunt-framework/internal/solution"
	"github.com/pfperroni/treasure-hunt-framework/internal/space"
)

// Strategy repositions population individuals inside the anchor sub-region.
type Strategy interface {
	Apply(data *Data, region *space.Region, population []*solution.Solution) error
}

// Data carries the Beta strategy parameters and the per-iteration snapshot.
type Data struct {
	iteration *iterdata.IterationData

	betaStartingPerc     float64
	betaMax              float64
	displacementRate     float64
	betaAccelerationCoef float64
}

// NewData creates the Beta strategy storage.
func NewData(betaStartingPerc, betaMax, displacementRate, betaAccelerationCoef float64) *Data {
	return &Data{
		betaStartingPerc:     betaStartingPerc,
		betaMax:              betaMax,
		displacementRate:     displacementRate,
		betaAccelerationCoef: betaAccelerationCoef,
	}
}

// SetIterationData installs the per-iteration snapshot.
func (d *Data) SetIterationData(it *iterdata.IterationData) { d.iteration = it }

// IterationData returns the installed snapshot.
func (d *Data) IterationData() *iterdata.IterationData { return d.iteration }

// BetaStartingPerc returns the starting percentage of the Beta shape.
func (d *Data) BetaStartingPerc() float64 { return d.betaStartingPerc }

// BetaMax returns the Beta shape ceiling.
func (d *Data) BetaMax() float64 { return d.betaMax }

// DisplacementRate returns the last displacement rate applied.
func (d *Data) DisplacementRate() float64 { return d.displacementRate }

// SetDisplacementRate records the displacement rate.
func (d *Data) SetDisplacementRate(rate float64) { d.displacementRate = rate }

// BetaAccelerationCoef returns the exponent applied to the displacement rate.
func (d *Data) BetaAccelerationCoef() float64 { return d.betaAccelerationCoef }

// BoostFunc selects the decay shape of the Iterative-Partitioning ceiling.
type BoostFunc byte

const (
	// BoostLinear decays the ceiling linearly with the step.
	BoostLinear BoostFunc = 'L'
	// BoostSigmoid decays the ceiling along a logistic curve.
	BoostSigmoid BoostFunc = 'S'
	// BoostExponential decays the ceiling exponentially.
	BoostExponential BoostFunc = 'E'
)

func boost(f BoostFunc, br, step float64) float64 {
	switch f {
	case BoostLinear:
		return -br*step + br
	case BoostSigmoid:
		return br / (1.0 + math.Exp(12*br*step-6*br))
	default:
		return br / math.Exp(12*br*step)
	}
}

func maxK(step, br float64, f BoostFunc) float64 {
	return math.Min(boost(f, br, step), 1.0)
}

// Beta resets every individual uniformly inside the anchor and then pulls it
// toward the parent best by a quantile of a Beta distribution whose shape
// follows the displacement rate.
type Beta struct {
	rng *rand.Rand

	displacement byte // 'L' linear, 'I' iterative partitioning
	boostType    BoostFunc
	boostRate    float64
	maxTries     int
	nTries       int
	k            float64
	maxKVal      float64
	prevBest     float64
	firstPass    bool
}

// NewBeta creates the strategy with the linear displacement mode.
func NewBeta(src random.SeedSource) *Beta {
	b := &Beta{
		rng:          random.New(src),
		displacement: 'L',
		k:            -1,
		firstPass:    true,
	}
	b.configIPDefaults()
	b.maxTries = 0
	b.nTries = 0
	return b
}

func (b *Beta) configIPDefaults() {
	b.boostType = BoostExponential
	b.boostRate = 1
	b.maxTries = 3
}

// SetIPDisplacement switches to the Iterative-Partitioning displacement mode
// with its default boost configuration.
func (b *Beta) SetIPDisplacement() {
	b.configIPDefaults()
	b.displacement = 'I'
}

// SetIPDisplacementWith switches to the Iterative-Partitioning displacement
// mode with an explicit boost configuration.
func (b *Beta) SetIPDisplacementWith(boostType BoostFunc, boostRate float64, maxTries int) {
	b.boostType = boostType
	b.boostRate = boostRate
	b.maxTries = maxTries
	b.displacement = 'I'
}

// SetLinearDisplacement switches to the linear displacement mode.
func (b *Beta) SetLinearDisplacement() {
	b.displacement = 'L'
}

// attraction evolves the Iterative-Partitioning displacement factor K.
func (b *Beta) attraction(step, currGb, prevGb float64) float64 {
	kr := 1.0 / float64(b.maxTries)
	if b.k <= 0 {
		b.maxKVal = maxK(0, b.boostRate, b.boostType)
		b.k = b.maxKVal
	} else if 1-currGb/prevGb < 5e-5 {
		if int64(b.k*1e4) <= int64(b.maxKVal*kr*1e4) {
			b.nTries++
			if b.nTries == b.maxTries {
				b.maxKVal = maxK(0, b.boostRate, b.boostType)
				b.nTries = 0
			} else {
				b.maxKVal = maxK(step, b.boostRate, b.boostType)
			}
			b.k = b.maxKVal
		} else {
			b.k = b.k - b.maxKVal*kr
		}
		if b.k < 1e-30 {
			// Re-invoke the decision once; the field value afterwards is the
			// one returned.
			b.attraction(step, currGb, prevGb)
		}
	} else {
		b.nTries = 0
	}
	return b.k
}

func (b *Beta) previousBest(best float64) float64 {
	if b.firstPass {
		b.firstPass = false
		b.prevBest = best
		return best
	}
	prev := b.prevBest
	b.prevBest = best
	return prev
}

// Apply relocates every individual in population.
func (b *Beta) Apply(data *Data, region *space.Region, population []*solution.Solution) error {
	if data == nil || region == nil || len(population) == 0 {
		return errors.InvalidArgument("all parameters for relocation strategy must be provided")
	}
	it := data.IterationData()
	if it == nil {
		return errors.InvalidArgument("relocation strategy requires the iteration data snapshot")
	}

	var displacementRate float64
	if b.displacement == 'L' {
		displacementRate = it.PercentageRuntime()
	} else {
		best := it.GeneralBest().Fitness().First()
		displacementRate = b.attraction(it.PercentageRuntime(), best, b.previousBest(best))
	}
	data.SetDisplacementRate(displacementRate)

	betaProb := data.BetaStartingPerc() * data.BetaMax() *
		math.Pow(math.Max(data.DisplacementRate(), 1e-5), data.BetaAccelerationCoef())
	distrib := distuv.Beta{Alpha: data.BetaMax() - betaProb, Beta: betaProb}

	parentBest := it.ParentBest()
	n := population[0].NDimensions()
	tmp := make(solution.Position, len(population[0].Position(0)))
	for _, individual := range population {
		individual.Reset(region, b.rng)
		for j := 0; j < n; j++ {
			dim := region.Dimension(j)
			pos := individual.Position(j)
			tmp.CopyFrom(pos)
			tmp.Sub(parentBest.Position(j))
			tmp.Scale(distrib.Quantile(b.rng.Float64()))
			pos.Sub(tmp)
			pos.ClampUpper(dim.Hi)
			pos.ClampLower(dim.Lo)
		}
	}
	return nil
}

package search

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// ConvergenceControl runs, monitors and limits the convergence of one
// optimizer call during a TH iteration.
type ConvergenceControl interface {
	// Run drives the search until it stabilises, exhausts the budget or
	// reports itself stuck.
	Run(search Search) error

	// BudgetSize is the maximum number of evaluations allowed per call.
	BudgetSize() int
}

// Point is one observed best: cumulative evaluation count and the best
// fitness seen at that count.
type Point struct {
	X int
	Y float64
}

// CSMOn estimates the stop condition of a swarm-based stochastic method by
// tracking the decay of its improvement curve: a first phase detects the
// transition out of exponential decay, a second phase follows the log-log
// slope until it stops decreasing.
type CSMOn struct {
	m            int
	relaxation   float64
	minEstimated float64
	gb           []Point
	s            int
}

// NewCSMOn creates the controller with evaluation budget m, relaxation
// factor r in ]0, 1[ (larger factors stop sooner) and the problem's minimum
// estimated fitness.
func NewCSMOn(m int, r float64, minEstimated float64) *CSMOn {
	return &CSMOn{m: m, relaxation: r, minEstimated: minEstimated, s: -1}
}

// BudgetSize returns the evaluation budget per call.
func (c *CSMOn) BudgetSize() int { return c.m }

// History returns a copy of the observed best sequence of the last run.
func (c *CSMOn) History() []Point {
	return append([]Point(nil), c.gb...)
}

// Run drives one optimizer call to its stabilised best.
func (c *CSMOn) Run(search Search) error {
	c.s = -1
	c.gb = c.gb[:0]
	if err := search.Startup(); err != nil {
		return err
	}

	pT, pS := -1, -1
	r := 0.99
	c.getBest(search, 1)
	for {
		r = math.Max(r*r, c.relaxation)
		if pS == -1 {
			pT = c.adjustExp(search, r)
		}
		if pT > 0 {
			pS = c.adjustLog(search, r, pT)
		}
		if search.CurrentNEvals() >= c.m || (r <= c.relaxation && pS != -1) || search.IsStuck() {
			break
		}
	}

	search.Finalize()
	return nil
}

// getBest pulls up to nBest improvements from the search, recording each.
func (c *CSMOn) getBest(search Search, nBest int) {
	for i := 0; i < nBest && search.CurrentNEvals() < c.m && !search.IsStuck(); i++ {
		search.Next(c.m)
		c.gb = append(c.gb, Point{X: search.CurrentNEvals(), Y: search.BestFitness().First()})
		c.s++
	}
}

// adjustExp pulls improvements until two successive windows pass the decay
// bound and the fitted semi-log slope starts shrinking; the return value is
// the exponential transition point, or -1.
func (c *CSMOn) adjustExp(search Search, r float64) int {
	sPrev := c.s
	c.getBest(search, 2)
	if c.s-sPrev < 2 {
		return -1
	}
	pB := -1
	var alpha1, alpha2 float64
	for search.CurrentNEvals() < c.m && !search.IsStuck() {
		if c.decayE() < r && c.decayL() < r {
			if pB == -1 {
				pB = c.s - 2
				alpha2 = c.alphaE(pB, c.s)
			} else {
				alpha1 = alpha2
				alpha2 = c.alphaE(pB, c.s)
				if alpha2 < alpha1 {
					return c.s
				}
			}
		} else {
			pB = -1
		}
		c.getBest(search, 1)
	}
	return -1
}

// adjustLog follows the log-log slope from the transition point until it
// stops decreasing. A decay above the bound abandons the phase for a later
// retry.
func (c *CSMOn) adjustLog(search Search, r float64, pT int) int {
	sPrev := c.s
	c.getBest(search, 3)
	if c.s-sPrev < 3 {
		return -1
	}
	alpha1 := c.alphaP(pT, c.s-1)
	alpha2 := c.alphaP(pT, c.s)
	for alpha2 >= alpha1 && search.CurrentNEvals() < c.m && !search.IsStuck() {
		if c.decayE() >= r || c.decayL() >= r {
			return -1
		}
		c.getBest(search, 1)
		alpha1 = alpha2
		alpha2 = c.alphaP(pT, c.s)
	}
	return c.s
}

func (c *CSMOn) decayE() float64 {
	return math.Abs(1 - (c.gb[c.s].Y-c.minEstimated)/(c.gb[c.s-1].Y-c.minEstimated))
}

func (c *CSMOn) decayL() float64 {
	return math.Abs(1 - (c.gb[c.s].Y-c.gb[c.s-1].Y)/(c.gb[c.s-1].Y-c.gb[c.s-2].Y))
}

// alphaE fits the window [p1, p2] with x raw and y as ln(y), returning the
// intercept-form estimator of the semi-log regression.
func (c *CSMOn) alphaE(p1, p2 int) float64 {
	n := float64(p2 - p1 + 1)
	var ySumLn, xSum float64
	for i := p1; i <= p2; i++ {
		xSum += float64(c.gb[i].X)
		ySumLn += math.Log(c.gb[i].Y)
	}
	xAvg := xSum / n
	yAvgLn := ySumLn / n
	var s1, s2 float64
	for i := p1; i <= p2; i++ {
		aux := float64(c.gb[i].X) - xAvg
		s1 += aux * (c.gb[i].Y - yAvgLn)
		s2 += aux * aux
	}
	return (ySumLn - (s1/s2)*xSum) / n
}

// alphaP fits the window [p1, p2] on (log10 x, log10 y) and returns the OLS
// intercept.
func (c *CSMOn) alphaP(p1, p2 int) float64 {
	xs := make([]float64, 0, p2-p1+1)
	ys := make([]float64, 0, p2-p1+1)
	for i := p1; i <= p2; i++ {
		xs = append(xs, math.Log10(float64(c.gb[i].X)))
		ys = append(ys, math.Log10(c.gb[i].Y))
	}
	alpha, _ := stat.LinearRegression(xs, ys, nil, false)
	return alpha
}

// Package objective ships the reference cost functions used by the examples
// and tests.
package objective

import (
	"math"

	"github.com/pfperroni/treasure-hunt-framework/internal/solution"
)

// minimizing implements the ordering and sentinel operations shared by every
// cost function that minimizes its headline value.
type minimizing struct{}

func (minimizing) FirstIsBetter(first, second *solution.Solution) bool {
	switch {
	case first != nil && second == nil:
		return true
	case first == nil:
		return false
	}
	return first.Fitness().First() < second.Fitness().First()
}

func (minimizing) FirstFitnessIsBetter(first, second solution.Fitness) bool {
	switch {
	case first != nil && second == nil:
		return true
	case first == nil:
		return false
	}
	return first.First() < second.First()
}

func (minimizing) SetWorstFitness(s *solution.Solution) {
	if s != nil {
		s.SetFitness(math.MaxFloat64)
	}
}

func (minimizing) SetWorstFitnessValue(f solution.Fitness) {
	if f != nil {
		f.Fill(math.MaxFloat64)
	}
}

func (minimizing) SetBestFitness(s *solution.Solution) {
	if s != nil {
		s.SetFitness(0)
	}
}

func (minimizing) SetBestFitnessValue(f solution.Fitness) {
	if f != nil {
		f.Fill(0)
	}
}

func (minimizing) MinEstimatedFitnessValue() float64 { return 0 }

// Rosenbrock is the classic banana-valley function, minimum 0 at (1, ..., 1).
type Rosenbrock struct {
	minimizing
}

// NewRosenbrock creates the Rosenbrock fitness policy.
func NewRosenbrock() *Rosenbrock { return &Rosenbrock{} }

// Apply writes the Rosenbrock value of the solution's headline coordinates.
func (*Rosenbrock) Apply(s *solution.Solution) {
	fitness := 0.0
	for i := 0; i < s.NDimensions()-1; i++ {
		x1 := s.Position(i).First()
		x2 := s.Position(i + 1).First()
		fitness += (1-x1)*(1-x1) + 100*(x2-x1*x1)*(x2-x1*x1)
	}
	s.SetFitness(fitness)
}

// Sphere is the sum of squares, minimum 0 at the origin.
type Sphere struct {
	minimizing
}

// NewSphere creates the Sphere fitness policy.
func NewSphere() *Sphere { return &Sphere{} }

// Apply writes the squared norm of the solution's headline coordinates.
func (*Sphere) Apply(s *solution.Solution) {
	fitness := 0.0
	for i := 0; i < s.NDimensions(); i++ {
		x := s.Position(i).First()
		fitness += x * x
	}
	s.SetFitness(fitness)
}

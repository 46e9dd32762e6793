// Package solution holds the candidate containers: positions, fitness,
// constraint violations and the Solution that owns them.
package solution

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/pfperroni/treasure-hunt-framework/internal/errors"
	"github.com/pfperroni/treasure-hunt-framework/internal/space"
)

// Shape carries the runtime-fixed width parameters of a Solution. Mixing
// incompatible shapes is a programmer error.
type Shape struct {
	PWidth int // scalars per position
	FWidth int // scalars per fitness
	VWidth int // scalars per constraint violation
	NDims  int // dimensions per solution
}

// Validate checks that every width is positive.
func (s Shape) Validate() error {
	if s.PWidth <= 0 || s.FWidth <= 0 || s.VWidth <= 0 || s.NDims <= 0 {
		return errors.InvalidArgument("every shape width must be greater than zero: %+v", s)
	}
	return nil
}

// DefaultShape returns the common scalar shape over n dimensions.
func DefaultShape(n int) Shape {
	return Shape{PWidth: 1, FWidth: 1, VWidth: 1, NDims: n}
}

// Position is a fixed-width vector of scalars representing one coordinate in
// one (possibly multi-valued) dimension.
type Position []float64

func mustSameWidth(a, b []float64, what string) {
	if len(a) != len(b) {
		panic(errors.ShapeMismatch("%s widths are not compatible [%d != %d]", what, len(a), len(b)))
	}
}

// CopyFrom overwrites p with o.
func (p Position) CopyFrom(o Position) {
	mustSameWidth(p, o, "position")
	copy(p, o)
}

// Fill sets every element to v.
func (p Position) Fill(v float64) {
	for i := range p {
		p[i] = v
	}
}

// Add accumulates o into p element-wise.
func (p Position) Add(o Position) {
	mustSameWidth(p, o, "position")
	for i := range p {
		p[i] += o[i]
	}
}

// AddScalar adds v to every element.
func (p Position) AddScalar(v float64) {
	for i := range p {
		p[i] += v
	}
}

// Sub subtracts o from p element-wise.
func (p Position) Sub(o Position) {
	mustSameWidth(p, o, "position")
	for i := range p {
		p[i] -= o[i]
	}
}

// Scale multiplies every element by v.
func (p Position) Scale(v float64) {
	for i := range p {
		p[i] *= v
	}
}

// ClampUpper caps every element at max.
func (p Position) ClampUpper(max float64) {
	for i := range p {
		if p[i] > max {
			p[i] = max
		}
	}
}

// ClampLower raises every element to at least min.
func (p Position) ClampLower(min float64) {
	for i := range p {
		if p[i] < min {
			p[i] = min
		}
	}
}

// First returns the first element.
func (p Position) First() float64 { return p[0] }

// Lower returns the smallest element.
func (p Position) Lower() float64 {
	lower := p[0]
	for _, v := range p[1:] {
		if v < lower {
			lower = v
		}
	}
	return lower
}

// Upper returns the largest element.
func (p Position) Upper() float64 {
	upper := p[0]
	for _, v := range p[1:] {
		if v > upper {
			upper = v
		}
	}
	return upper
}

// Sum returns the sum of the elements.
func (p Position) Sum() float64 {
	sum := 0.0
	for _, v := range p {
		sum += v
	}
	return sum
}

// Equal reports element-wise equality.
func (p Position) Equal(o Position) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}

// Fitness is a fixed-width vector of scored values; the first element is the
// headline value used when a single number is required.
type Fitness []float64

// First returns the headline value.
func (f Fitness) First() float64 { return f[0] }

// Fill sets every element to v.
func (f Fitness) Fill(v float64) {
	for i := range f {
		f[i] = v
	}
}

// CopyFrom overwrites f with o.
func (f Fitness) CopyFrom(o Fitness) {
	mustSameWidth(f, o, "fitness")
	copy(f, o)
}

// Equal reports element-wise equality.
func (f Fitness) Equal(o Fitness) bool {
	return Position(f).Equal(Position(o))
}

// Violation is a fixed-width vector of constraint violation values.
type Violation []float64

// First returns the headline value.
func (v Violation) First() float64 { return v[0] }

// Fill sets every element to val.
func (v Violation) Fill(val float64) {
	for i := range v {
		v[i] = val
	}
}

// CopyFrom overwrites v with o.
func (v Violation) CopyFrom(o Violation) {
	mustSameWidth(v, o, "violation")
	copy(v, o)
}

// Solution owns one position per dimension, one fitness and one violation.
type Solution struct {
	shape     Shape
	positions []Position
	fitness   Fitness
	violation Violation
}

// New creates a zeroed solution of the given shape.
func New(shape Shape) (*Solution, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	s := &Solution{
		shape:     shape,
		positions: make([]Position, shape.NDims),
		fitness:   make(Fitness, shape.FWidth),
		violation: make(Violation, shape.VWidth),
	}
	for i := range s.positions {
		s.positions[i] = make(Position, shape.PWidth)
	}
	return s, nil
}

// MustNew is New for shapes known valid at the call site.
func MustNew(shape Shape) *Solution {
	s, err := New(shape)
	if err != nil {
		panic(err)
	}
	return s
}

// Shape returns the solution's static shape.
func (s *Solution) Shape() Shape { return s.shape }

// NDimensions returns the number of dimensions.
func (s *Solution) NDimensions() int { return s.shape.NDims }

// Position returns the position of dimension i.
func (s *Solution) Position(i int) Position {
	if i < 0 || i >= s.shape.NDims {
		panic(errors.InvalidArgument("invalid index for solution [%d]", i))
	}
	return s.positions[i]
}

// Fitness returns the solution's fitness vector.
func (s *Solution) Fitness() Fitness { return s.fitness }

// Violation returns the solution's constraint violation vector.
func (s *Solution) Violation() Violation { return s.violation }

// SetFitness fills the fitness vector with a single headline value.
func (s *Solution) SetFitness(v float64) { s.fitness.Fill(v) }

// SetFitnessValues overwrites the fitness vector.
func (s *Solution) SetFitnessValues(vals []float64) { s.fitness.CopyFrom(vals) }

// SetViolation fills the violation vector with a single value.
func (s *Solution) SetViolation(v float64) { s.violation.Fill(v) }

func (s *Solution) mustCompatible(o *Solution) {
	if o == nil {
		panic(errors.InvalidArgument("solution can not be empty"))
	}
	if s.shape != o.shape {
		panic(errors.ShapeMismatch("solution shapes are not compatible [%+v != %+v]", s.shape, o.shape))
	}
}

// CopyFrom deep-copies o into s. Shapes must match.
func (s *Solution) CopyFrom(o *Solution) {
	s.mustCompatible(o)
	for i := range s.positions {
		copy(s.positions[i], o.positions[i])
	}
	copy(s.fitness, o.fitness)
	copy(s.violation, o.violation)
}

// Clone returns a newly-allocated deep copy.
func (s *Solution) Clone() *Solution {
	c := MustNew(s.shape)
	c.CopyFrom(s)
	return c
}

// Equal reports whether both solutions carry identical positions, fitness and
// violation.
func (s *Solution) Equal(o *Solution) bool {
	if o == nil || s.shape != o.shape {
		return false
	}
	for i := range s.positions {
		if !s.positions[i].Equal(o.positions[i]) {
			return false
		}
	}
	return s.fitness.Equal(o.fitness) && Position(s.violation).Equal(Position(o.violation))
}

// FlatPositions copies every position into buf, dimension-major. The buffer
// length must be NDims*PWidth.
func (s *Solution) FlatPositions(buf []float64) {
	if len(buf) != s.shape.NDims*s.shape.PWidth {
		panic(errors.ShapeMismatch("position buffer width %d does not fit shape %+v", len(buf), s.shape))
	}
	for i, p := range s.positions {
		copy(buf[i*s.shape.PWidth:], p)
	}
}

// SetFlatPositions overwrites every position from buf, dimension-major.
func (s *Solution) SetFlatPositions(buf []float64) {
	if len(buf) != s.shape.NDims*s.shape.PWidth {
		panic(errors.ShapeMismatch("position buffer width %d does not fit shape %+v", len(buf), s.shape))
	}
	for i, p := range s.positions {
		copy(p, buf[i*s.shape.PWidth:(i+1)*s.shape.PWidth])
	}
}

// Reset repositions the solution uniformly inside the region's partitions.
func (s *Solution) Reset(r *space.Region, rng *rand.Rand) {
	if r == nil {
		panic(errors.InvalidArgument("region cannot be nil"))
	}
	if s.shape.NDims != r.NDimensions() {
		panic(errors.ShapeMismatch("the number of dimensions does not match [%d != %d]", s.shape.NDims, r.NDimensions()))
	}
	for i := range s.positions {
		part := r.Partition(i)
		s.positions[i].Fill(uniform(rng, part.Lo, part.Hi))
		s.positions[i].ClampUpper(part.Hi)
		s.positions[i].ClampLower(part.Lo)
	}
}

// ResetNearBias repositions the solution around the bias: per dimension, half
// of the draws land in a narrow Gaussian neighbourhood of the bias coordinate
// and the other half on the bias coordinate itself. The result is clamped to
// the region's partitions.
func (s *Solution) ResetNearBias(r *space.Region, bias *Solution, rng *rand.Rand) {
	if r == nil {
		panic(errors.InvalidArgument("region cannot be nil"))
	}
	s.mustCompatible(bias)
	if s.shape.NDims != r.NDimensions() {
		panic(errors.ShapeMismatch("the number of dimensions does not match [%d != %d]", s.shape.NDims, r.NDimensions()))
	}
	normal := distuv.Normal{Mu: 0.5, Sigma: 1}
	for i := range s.positions {
		part := r.Partition(i)
		pos := bias.positions[i]
		if rng.Float64() < 0.5 {
			s.positions[i].Fill(gaussianBetween(normal, rng, pos.Lower()*0.99, pos.Upper()*1.01))
		} else {
			s.positions[i].CopyFrom(pos)
		}
		s.positions[i].ClampUpper(part.Hi)
		s.positions[i].ClampLower(part.Lo)
	}
}

func uniform(rng *rand.Rand, a, b float64) float64 {
	if a == b {
		return a
	}
	return a + rng.Float64()*(b-a)
}

// gaussianBetween maps a Normal(0.5, 1) draw x, clamped to [0, 1.1], to
// a + x*(b-a), so the result lies in [a, a+1.1*(b-a)]. The draw is
// taken by inverse transform so the caller's generator stays the only
// randomness source.
func gaussianBetween(normal distuv.Normal, rng *rand.Rand, a, b float64) float64 {
	if a == b {
		return a
	}
	x := normal.Quantile(rng.Float64())
	if x < 0 || math.IsInf(x, -1) {
		x = 0
	} else if x > 1.1 {
		x = 1.1
	}
	return a + x*(b-a)
}

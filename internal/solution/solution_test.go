package solution

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pfperroni/treasure-hunt-framework/internal/random"
	"github.com/pfperroni/treasure-hunt-framework/internal/space"
)

func TestShapeValidate(t *testing.T) {
	assert.NoError(t, Shape{PWidth: 1, FWidth: 1, VWidth: 1, NDims: 3}.Validate())
	assert.Error(t, Shape{PWidth: 0, FWidth: 1, VWidth: 1, NDims: 3}.Validate())
	assert.Error(t, Shape{PWidth: 1, FWidth: 1, VWidth: 1, NDims: 0}.Validate())
}

func TestPositionArithmetic(t *testing.T) {
	p := Position{1, 2, 3}
	p.Add(Position{1, 1, 1})
	assert.Equal(t, Position{2, 3, 4}, p)

	p.Sub(Position{0, 1, 2})
	assert.Equal(t, Position{2, 2, 2}, p)

	p.Scale(3)
	assert.Equal(t, Position{6, 6, 6}, p)

	p.AddScalar(-5)
	p.ClampLower(0)
	assert.Equal(t, Position{1, 1, 1}, p)
	p.ClampUpper(0.5)
	assert.Equal(t, Position{0.5, 0.5, 0.5}, p)

	assert.Equal(t, 1.5, p.Sum())
}

func TestPositionBounds(t *testing.T) {
	p := Position{4, -1, 7}
	assert.Equal(t, 4.0, p.First())
	assert.Equal(t, -1.0, p.Lower())
	assert.Equal(t, 7.0, p.Upper())
}

func TestPositionShapeMismatchPanics(t *testing.T) {
	p := Position{1, 2}
	assert.Panics(t, func() { p.Add(Position{1}) })
}

func TestSolutionCopyRequiresSameShape(t *testing.T) {
	a := MustNew(DefaultShape(3))
	b := MustNew(DefaultShape(4))
	assert.Panics(t, func() { a.CopyFrom(b) })
}

func TestSolutionCloneIsDeep(t *testing.T) {
	a := MustNew(DefaultShape(2))
	a.Position(0).Fill(1.5)
	a.SetFitness(42)

	b := a.Clone()
	require.True(t, a.Equal(b))

	b.Position(0).Fill(9)
	assert.Equal(t, 1.5, a.Position(0).First())
	assert.False(t, a.Equal(b))
}

func TestFlatPositionsRoundTrip(t *testing.T) {
	s := MustNew(Shape{PWidth: 2, FWidth: 1, VWidth: 1, NDims: 3})
	for i := 0; i < 3; i++ {
		s.Position(i).Fill(float64(i + 1))
	}
	buf := make([]float64, 6)
	s.FlatPositions(buf)
	assert.Equal(t, []float64{1, 1, 2, 2, 3, 3}, buf)

	d := MustNew(s.Shape())
	d.SetFlatPositions(buf)
	for i := 0; i < 3; i++ {
		assert.True(t, s.Position(i).Equal(d.Position(i)))
	}
}

func TestResetStaysInsideRegion(t *testing.T) {
	ss, err := space.Uniform(5, -20, 20)
	require.NoError(t, err)
	region := ss.Region.Clone()
	for i := 0; i < 5; i++ {
		require.NoError(t, region.SetPartition(i, space.Partition{ID: i, Lo: -2, Hi: 3}))
	}

	rng := random.New(random.Counter())
	s := MustNew(DefaultShape(5))
	for trial := 0; trial < 50; trial++ {
		s.Reset(region, rng)
		for i := 0; i < 5; i++ {
			v := s.Position(i).First()
			assert.GreaterOrEqual(t, v, -2.0)
			assert.LessOrEqual(t, v, 3.0)
		}
	}
}

func TestResetNearBiasStaysInsideRegion(t *testing.T) {
	ss, err := space.Uniform(3, -10, 10)
	require.NoError(t, err)
	region := ss.Region.Clone()

	bias := MustNew(DefaultShape(3))
	for i := 0; i < 3; i++ {
		bias.Position(i).Fill(2)
	}

	rng := random.New(random.Counter())
	s := MustNew(DefaultShape(3))
	for trial := 0; trial < 50; trial++ {
		s.ResetNearBias(region, bias, rng)
		for i := 0; i < 3; i++ {
			v := s.Position(i).First()
			assert.GreaterOrEqual(t, v, -10.0)
			assert.LessOrEqual(t, v, 10.0)
		}
	}
}

func TestResetRejectsDimensionMismatch(t *testing.T) {
	ss, err := space.Uniform(2, 0, 1)
	require.NoError(t, err)
	s := MustNew(DefaultShape(3))
	assert.Panics(t, func() { s.Reset(&ss.Region, random.New(random.Counter())) })
}

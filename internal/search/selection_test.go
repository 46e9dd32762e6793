package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSingleSelectionAlwaysReturnsFirst(t *testing.T) {
	a := NewHillClimbing(0.5, 0.1, 2)
	b := NewPSO(1, 1, 1, 3)
	algorithms := []*Score{NewScore(a, 1), NewScore(b, 1)}

	policy := SingleSelection{}
	for i := 0; i < 3; i++ {
		selected, err := policy.Apply(0, nil, algorithms)
		require.NoError(t, err)
		assert.Same(t, Search(a), selected)
	}
	require.NoError(t, policy.Rank(0, nil, algorithms, a, nil, 0, 0))
	assert.Equal(t, 1.0, algorithms[0].Value())
}

func TestSingleSelectionRejectsEmptyList(t *testing.T) {
	_, err := SingleSelection{}.Apply(0, nil, nil)
	assert.Error(t, err)
}

func TestRoundRobinAlternatesStrictly(t *testing.T) {
	a := NewHillClimbing(0.5, 0.1, 2)
	b := NewPSO(1, 1, 1, 3)
	algorithms := []*Score{NewScore(a, 1), NewScore(b, 1)}

	policy := NewRoundRobinSelection()
	expected := []Search{a, b, a, b, a}
	for i, want := range expected {
		selected, err := policy.Apply(0, nil, algorithms)
		require.NoError(t, err)
		assert.Same(t, want, selected, "call %d", i)
		assert.Equal(t, i%2, policy.Cursor())
		require.NoError(t, policy.Rank(0, nil, algorithms, selected, nil, 0, 0))
	}
}

func TestScoreBookkeeping(t *testing.T) {
	s := NewScore(NewHillClimbing(1, 1, 1), 2.5)
	assert.Equal(t, 2.5, s.Weight())
	assert.Equal(t, 1.0, s.Value())
	s.SetFrequency(7)
	s.SetDeprecation(3)
	assert.Equal(t, 7.0, s.Frequency())
	assert.Equal(t, 3.0, s.Deprecation())
}

package space

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pfperroni/treasure-hunt-framework/internal/errors"
)

func TestNewRegionValidation(t *testing.T) {
	dims := []Dimension{{ID: 0, Lo: -5, Hi: 5}, {ID: 1, Lo: 0, Hi: 10}}

	tests := []struct {
		name  string
		parts []Partition
		ok    bool
	}{
		{
			name:  "partitions equal dimensions",
			parts: []Partition{{ID: 0, Lo: -5, Hi: 5}, {ID: 1, Lo: 0, Hi: 10}},
			ok:    true,
		},
		{
			name:  "contained sub-intervals",
			parts: []Partition{{ID: 0, Lo: -5, Hi: 0}, {ID: 1, Lo: 2, Hi: 4}},
			ok:    true,
		},
		{
			name:  "partition escapes dimension",
			parts: []Partition{{ID: 0, Lo: -6, Hi: 0}, {ID: 1, Lo: 0, Hi: 10}},
			ok:    false,
		},
		{
			name:  "mismatched ids",
			parts: []Partition{{ID: 1, Lo: -5, Hi: 5}, {ID: 0, Lo: 0, Hi: 10}},
			ok:    false,
		},
		{
			name:  "wrong arity",
			parts: []Partition{{ID: 0, Lo: -5, Hi: 5}},
			ok:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRegion(dims, tt.parts)
			if tt.ok {
				require.NoError(t, err)
				assert.Equal(t, 2, r.NDimensions())
			} else {
				require.Error(t, err)
				assert.Equal(t, errors.KindInvalidArgument, errors.KindOf(err))
			}
		})
	}
}

func TestSetPartitionEnforcesContainment(t *testing.T) {
	ss, err := Uniform(3, -20, 20)
	require.NoError(t, err)
	r := ss.Region.Clone()

	require.NoError(t, r.SetPartition(1, Partition{ID: 1, Lo: 0, Hi: 10}))
	assert.Error(t, r.SetPartition(1, Partition{ID: 1, Lo: 0, Hi: 30}))
	assert.Error(t, r.SetPartition(5, Partition{ID: 5, Lo: 0, Hi: 1}))
	assert.Equal(t, Partition{ID: 1, Lo: 0, Hi: 10}, r.Partition(1))
}

func TestCloneIsIndependent(t *testing.T) {
	ss, err := Uniform(2, 0, 1)
	require.NoError(t, err)
	clone := ss.Region.Clone()
	require.NoError(t, clone.SetPartition(0, Partition{ID: 0, Lo: 0.5, Hi: 1}))

	assert.Equal(t, 0.0, ss.Partition(0).Lo)
	assert.Equal(t, 0.5, clone.Partition(0).Lo)
	assert.False(t, ss.Region.Equal(clone))
}

func TestSearchSpacePartitionsCoincideWithDimensions(t *testing.T) {
	ss, err := Uniform(4, -20, 20)
	require.NoError(t, err)
	for i := 0; i < ss.NDimensions(); i++ {
		dim := ss.Dimension(i)
		part := ss.Partition(i)
		assert.Equal(t, dim.Lo, part.Lo)
		assert.Equal(t, dim.Hi, part.Hi)
		assert.Equal(t, dim.ID, part.ID)
	}
}

func TestUniformRejectsBadInput(t *testing.T) {
	_, err := Uniform(0, 0, 1)
	assert.Error(t, err)
}

// Package space models the bounded product search domain and its sub-regions.
package space

import (
	"fmt"
	"strings"

	"github.com/pfperroni/treasure-hunt-framework/internal/errors"
)

// Dimension is an identified inclusive interval [Lo, Hi] of the search space.
// Immutable after construction.
type Dimension struct {
	ID int
	Lo float64
	Hi float64
}

// Partition is a sub-interval chosen within a dimension. Partitions are
// ordered by identifier only.
type Partition struct {
	ID int
	Lo float64
	Hi float64
}

// Width returns the interval length.
func (p Partition) Width() float64 { return p.Hi - p.Lo }

// Contains reports whether x lies inside the interval.
func (p Partition) Contains(x float64) bool { return x >= p.Lo && x <= p.Hi }

// Region maps every dimension of the space to one partition. Dimensions are
// stored in an arena indexed by position; partitions live in a parallel
// slice, so the map semantics of the original model degenerate to an array
// lookup.
type Region struct {
	dims  []Dimension
	parts []Partition
}

// NewRegion builds a region over dims with the given partitions. Every
// partition must match its dimension's identifier and be contained in its
// dimension's interval.
func NewRegion(dims []Dimension, parts []Partition) (*Region, error) {
	if len(dims) == 0 {
		return nil, errors.InvalidArgument("the partitions that compose a region cannot be empty")
	}
	if len(dims) != len(parts) {
		return nil, errors.InvalidArgument("region requires one partition per dimension [%d != %d]", len(dims), len(parts))
	}
	r := &Region{
		dims:  append([]Dimension(nil), dims...),
		parts: append([]Partition(nil), parts...),
	}
	for i := range r.dims {
		if err := r.check(i, r.parts[i]); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Region) check(i int, p Partition) error {
	d := r.dims[i]
	if p.ID != d.ID {
		return errors.InvalidArgument("partition id %d does not match dimension id %d", p.ID, d.ID)
	}
	if p.Lo > p.Hi || p.Lo < d.Lo || p.Hi > d.Hi {
		return errors.InvalidArgument("partition [%g, %g] escapes dimension %d [%g, %g]", p.Lo, p.Hi, d.ID, d.Lo, d.Hi)
	}
	return nil
}

// Clone returns a deep copy of the region.
func (r *Region) Clone() *Region {
	return &Region{
		dims:  append([]Dimension(nil), r.dims...),
		parts: append([]Partition(nil), r.parts...),
	}
}

// NDimensions returns the number of dimensions.
func (r *Region) NDimensions() int { return len(r.dims) }

// Dimension returns the dimension at position i.
func (r *Region) Dimension(i int) Dimension { return r.dims[i] }

// Partition returns the partition at position i.
func (r *Region) Partition(i int) Partition { return r.parts[i] }

// SetPartition replaces the partition at position i, enforcing containment.
func (r *Region) SetPartition(i int, p Partition) error {
	if i < 0 || i >= len(r.parts) {
		return errors.InvalidArgument("invalid partition index [%d]", i)
	}
	if err := r.check(i, p); err != nil {
		return err
	}
	r.parts[i] = p
	return nil
}

// Equal reports whether two regions have identical dimensions and partitions.
func (r *Region) Equal(o *Region) bool {
	if o == nil || len(r.dims) != len(o.dims) {
		return false
	}
	for i := range r.dims {
		if r.dims[i] != o.dims[i] || r.parts[i] != o.parts[i] {
			return false
		}
	}
	return true
}

// String renders the region intervals, one per dimension.
func (r *Region) String() string {
	var b strings.Builder
	b.WriteString("[ ")
	for i := range r.parts {
		fmt.Fprintf(&b, "{%d: [%g, %g]} ", r.parts[i].ID, r.parts[i].Lo, r.parts[i].Hi)
	}
	b.WriteString("]")
	return b.String()
}

// SearchSpace is the full domain: a region whose partitions coincide with
// their dimensions.
type SearchSpace struct {
	Region
}

// NewSearchSpace builds the full search space over dims.
func NewSearchSpace(dims []Dimension) (*SearchSpace, error) {
	parts := make([]Partition, len(dims))
	for i, d := range dims {
		if d.Lo > d.Hi {
			return nil, errors.InvalidArgument("dimension %d has inverted interval [%g, %g]", d.ID, d.Lo, d.Hi)
		}
		parts[i] = Partition{ID: d.ID, Lo: d.Lo, Hi: d.Hi}
	}
	r, err := NewRegion(dims, parts)
	if err != nil {
		return nil, err
	}
	return &SearchSpace{Region: *r}, nil
}

// Uniform is a convenience constructor for n dimensions sharing the same
// bounds, identified 0..n-1.
func Uniform(n int, lo, hi float64) (*SearchSpace, error) {
	if n <= 0 {
		return nil, errors.InvalidArgument("the number of dimensions must be greater than zero")
	}
	dims := make([]Dimension, n)
	for i := range dims {
		dims[i] = Dimension{ID: i, Lo: lo, Hi: hi}
	}
	return NewSearchSpace(dims)
}

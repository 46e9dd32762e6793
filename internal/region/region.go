// Package region maps a node's tree coordinate to its anchor sub-region of
// the search space.
package region

import (
	"math"

	"github.com/pfperroni/treasure-hunt-framework/internal/errors"
	"github.com/pfperroni/treasure-hunt-framework/internal/space"
	"github.com/pfperroni/treasure-hunt-framework/internal/topology"
)

// SelectionPolicy partitions the search space and selects the sub-region
// belonging to one tree node.
type SelectionPolicy interface {
	// Apply returns a newly-owned region holding the node's anchor
	// sub-region.
	Apply(s *space.SearchSpace, tree *topology.Tree, id int) (*space.Region, error)

	// Recalculate optionally replaces the anchor per iteration. The default
	// returns the same anchor.
	Recalculate(s *space.SearchSpace, current *space.Region, tree *topology.Tree, id int) (*space.Region, error)
}

// GroupSelection splits the dimensions into nGroups contiguous groups sharing
// partition boundaries; each tree level partitions its parent's region into a
// K-ary grid over the groups, laid out in row-major order over the children.
type GroupSelection struct {
	nGroups int
	k       int
}

// NewGroupSelection creates the policy. NewGroupSelection(1, 1) performs no
// partitioning.
func NewGroupSelection(nGroups, k int) (*GroupSelection, error) {
	if nGroups <= 0 || k <= 0 {
		return nil, errors.InvalidArgument("group count and fan-out must be greater than zero [%d, %d]", nGroups, k)
	}
	return &GroupSelection{nGroups: nGroups, k: k}, nil
}

// Apply walks from the root toward the node, refining the region at every
// level by the child index on the node's ancestry.
func (g *GroupSelection) Apply(s *space.SearchSpace, tree *topology.Tree, id int) (*space.Region, error) {
	node := tree.Node(id)
	if node == nil {
		return nil, errors.InvalidArgument("unknown tree node [%d]", id)
	}

	// Ancestry from the node up to (excluding) the root.
	hierarchy := []int{node.ID()}
	root := tree.Root()
	for parent := node.Parent(); parent != nil && parent != root; parent = parent.Parent() {
		hierarchy = append(hierarchy, parent.ID())
	}

	return g.walk(s.Region.Clone(), hierarchy, root, id)
}

// Recalculate keeps the same anchor.
func (g *GroupSelection) Recalculate(_ *space.SearchSpace, current *space.Region, _ *topology.Tree, _ int) (*space.Region, error) {
	return current, nil
}

func (g *GroupSelection) walk(region *space.Region, hierarchy []int, node *topology.Node, id int) (*space.Region, error) {
	if node.ID() == id {
		return region, nil
	}
	top := hierarchy[len(hierarchy)-1]
	for childPos, child := range node.Children() {
		if child.ID() != top {
			continue
		}
		// Decode the child index into group coordinates of the K-ary grid.
		coord := make([]int, g.nGroups)
		pos := childPos
		for grp := g.nGroups - 1; grp >= 0; grp-- {
			base := int(math.Pow(float64(g.k), float64(grp)))
			if base <= pos {
				coord[grp] = pos / base
				pos %= base
			}
		}
		nDim := region.NDimensions()
		dimPerGroup := nDim / g.nGroups
		if dimPerGroup == 0 || childPos >= int(math.Pow(float64(g.k), float64(g.nGroups))) {
			return nil, errors.InvalidTopology("tree does not embed a %d^%d fan-out at node %d", g.k, g.nGroups, node.ID())
		}
		sub := region.Clone()
		for d, grp := 0, 0; d < nDim; d++ {
			part := region.Partition(d)
			delta := part.Width() / float64(g.k)
			minimum := part.Lo + float64(coord[grp])*delta
			hi := minimum + delta
			if coord[grp] == g.k-1 {
				// The last segment keeps the original upper bound to avoid
				// rounding drift.
				hi = part.Hi
			}
			if err := sub.SetPartition(d, space.Partition{ID: part.ID, Lo: minimum, Hi: hi}); err != nil {
				return nil, err
			}
			if (d+1)%dimPerGroup == 0 && grp < g.nGroups-1 {
				grp++
			}
		}
		return g.walk(sub, hierarchy[:len(hierarchy)-1], child, id)
	}
	return nil, errors.InvalidTopology("node %d is not on the ancestry embedded under node %d", top, node.ID())
}

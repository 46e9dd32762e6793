package topology

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockPacksLevels(t *testing.T) {
	tree, err := NewTree(7)
	require.NoError(t, err)
	_, err = tree.AddRootNode(0)
	require.NoError(t, err)
	for _, n := range []struct{ id, parent int }{
		{1, 0}, {2, 0}, {3, 1}, {4, 1}, {5, 2}, {6, 2},
	} {
		_, err = tree.AddNode(n.id, n.parent)
		require.NoError(t, err)
	}
	tree.Lock()

	assert.Equal(t, 3, tree.RootLevel())
	assert.Equal(t, 3, tree.Root().Level())
	for _, leaf := range []int{3, 4, 5, 6} {
		assert.Equal(t, 1, tree.Node(leaf).Level(), "leaf %d", leaf)
	}
	for _, id := range []int{1, 2, 3, 4, 5, 6} {
		node := tree.Node(id)
		assert.Equal(t, node.Parent().Level()-1, node.Level(), "node %d", id)
	}
}

func TestUnbalancedTreePacksLeavesToLevelOne(t *testing.T) {
	tree, err := NewTree(4)
	require.NoError(t, err)
	_, err = tree.AddRootNode(0)
	require.NoError(t, err)
	_, err = tree.AddNode(1, 0)
	require.NoError(t, err)
	_, err = tree.AddNode(2, 1)
	require.NoError(t, err)
	_, err = tree.AddNode(3, 2)
	require.NoError(t, err)
	tree.Lock()

	assert.Equal(t, 4, tree.RootLevel())
	assert.Equal(t, 1, tree.Node(3).Level())
}

func TestMutationAfterLockFails(t *testing.T) {
	tree, err := NewTree(3)
	require.NoError(t, err)
	_, err = tree.AddRootNode(0)
	require.NoError(t, err)
	tree.Lock()

	_, err = tree.AddNode(1, 0)
	assert.Error(t, err)
}

func TestTreeRelations(t *testing.T) {
	tree, err := NewTree(3)
	require.NoError(t, err)
	_, err = tree.AddRootNode(5)
	require.NoError(t, err)
	_, err = tree.AddNode(7, 5)
	require.NoError(t, err)
	_, err = tree.AddNode(9, 5)
	require.NoError(t, err)

	assert.Equal(t, -1, tree.ParentID(5))
	assert.Equal(t, 5, tree.ParentID(7))
	assert.Equal(t, []int{7, 9}, tree.ChildrenIDs(5))
	assert.True(t, tree.Node(5).IsRoot())
	assert.True(t, tree.Node(7).IsLeaf())
	assert.Equal(t, 3, tree.Size())
}

func TestTreeValidation(t *testing.T) {
	_, err := NewTree(0)
	assert.Error(t, err)

	tree, err := NewTree(1)
	require.NoError(t, err)
	_, err = tree.AddRootNode(0)
	require.NoError(t, err)
	_, err = tree.AddRootNode(1)
	assert.Error(t, err)
	_, err = tree.AddNode(1, 42)
	assert.Error(t, err)
}

func TestLoadTopologyDocument(t *testing.T) {
	doc := []byte(`
nodes:
  - id: 0
  - id: 1
    parent: 0
  - id: 2
    parent: 0
`)
	tree, err := Load(doc)
	require.NoError(t, err)
	assert.Equal(t, 3, tree.Size())
	assert.Equal(t, 0, tree.Root().ID())
	assert.Equal(t, []int{1, 2}, tree.ChildrenIDs(0))
}

func TestLoadRejectsEmptyDocument(t *testing.T) {
	_, err := Load([]byte("nodes: []"))
	assert.Error(t, err)
}

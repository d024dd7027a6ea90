package bptree

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNodeFindLeaf(t *testing.T) {
	bt := newTestTree(t)

	leaf, err := bt.getNode(bt.root())
	require.NoError(t, err)
	require.NoError(t, leaf.insert(0, 10, 100))
	require.NoError(t, leaf.insert(1, 20, 200))
	require.NoError(t, leaf.insert(2, 30, 300))

	idx, ok := leaf.find(20)
	require.True(t, ok)
	require.Equal(t, 1, idx)

	idx, ok = leaf.find(25)
	require.False(t, ok)
	require.Equal(t, 2, idx)
}

func TestNodeIsDrainedLeafVsRoot(t *testing.T) {
	bt := newTestTree(t)
	require.NoError(t, bt.SetDegree(1, 3))

	root, err := bt.getNode(bt.root())
	require.NoError(t, err)
	require.True(t, root.isDrained()) // empty root is drained regardless of kind

	require.NoError(t, root.insert(0, 1, 1))
	require.False(t, root.isDrained()) // non-empty root leaf is never drained
}

func TestNodeIsFullAndCanMerge(t *testing.T) {
	bt := newTestTree(t)
	require.NoError(t, bt.SetDegree(1, 3))

	a, err := bt.newLeaf()
	require.NoError(t, err)
	b, err := bt.newLeaf()
	require.NoError(t, err)

	require.NoError(t, a.insert(0, 1, 1))
	require.NoError(t, a.insert(1, 2, 2))
	require.NoError(t, a.insert(2, 3, 3))
	require.True(t, a.isFull())

	require.NoError(t, b.insert(0, 4, 4))
	require.False(t, a.canMerge(b)) // 3+1 > max_degree(3)

	removedKey, removedVal, err := a.remove(2)
	require.NoError(t, err)
	require.EqualValues(t, 3, removedKey)
	require.EqualValues(t, 3, removedVal)
	require.True(t, a.canMerge(b)) // 2+1 <= 3
}

func TestNodeSplitMiddleArithmetic(t *testing.T) {
	bt := newTestTree(t)
	require.NoError(t, bt.SetDegree(1, 3))

	leaf, err := bt.getNode(bt.root())
	require.NoError(t, err)
	require.NoError(t, leaf.insert(0, 1, 1))
	require.NoError(t, leaf.insert(1, 2, 2))
	require.NoError(t, leaf.insert(2, 3, 3))

	// degree=3 before split, middle=(3+1)/2=2. The pending insert targets
	// index 1, which is < middle, so cutIdx=middle-1=1: keys[0:1] stay in
	// leaf, keys[1:3] move to the sibling - leaving leaf with exactly one
	// slot free for the still-pending insert at its own index 1, so the
	// node settles at the same size (2) as the sibling once it lands.
	_, sibling, side, err := leaf.split(1)
	require.NoError(t, err)
	require.Equal(t, []Key{1}, leaf.st.keys)
	require.Equal(t, []Key{2, 3}, sibling.st.keys)
	require.False(t, side.onRight)
	require.Equal(t, 1, side.index)
}

func TestNodeAppendAndPushFrontNFrom(t *testing.T) {
	bt := newTestTree(t)

	a, err := bt.newLeaf()
	require.NoError(t, err)
	b, err := bt.newLeaf()
	require.NoError(t, err)

	for i, k := range []Key{1, 2, 3} {
		require.NoError(t, a.insert(i, k, k*10))
	}
	for i, k := range []Key{4, 5} {
		require.NoError(t, b.insert(i, k, k*10))
	}

	require.NoError(t, a.appendNFrom(b, 0, 1))
	require.Equal(t, []Key{1, 2, 3, 4}, a.st.keys)
	require.Equal(t, []Key{5}, b.st.keys)

	require.NoError(t, b.pushFrontNFrom(a, 2, 4))
	require.Equal(t, []Key{3, 4, 5}, b.st.keys)
	require.Equal(t, []Key{1, 2}, a.st.keys)
}

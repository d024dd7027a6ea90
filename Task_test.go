package bptree

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestRebalanceEmptiedLeafSeparator exercises spec section 9's explicit
// open question: when a merge empties a leaf that still has a right
// sibling, the corrected parent separator must be read from the
// sibling's minimum key, not from the about-to-be-emptied node. Forcing
// the left leaf of a two-leaf, max_degree=3 tree down to zero entries
// (via two single-key removes) triggers exactly that merge path.
func TestRebalanceEmptiedLeafSeparator(t *testing.T) {
	bt := newTestTree(t)

	require.NoError(t, bt.Insert(1, 11))
	require.NoError(t, bt.Insert(2, 22))
	require.NoError(t, bt.Insert(3, 33))
	require.NoError(t, bt.Insert(4, 44)) // splits the root leaf into {1,2} / {3,4}

	root, err := bt.getNode(bt.root())
	require.NoError(t, err)
	require.False(t, root.isLeaf())
	require.Equal(t, []Key{1, 3}, root.st.keys)

	_, err = bt.Remove(1)
	require.NoError(t, err)
	_, err = bt.Remove(2) // empties the left leaf; must merge, not panic or misread a key

	require.NoError(t, err)

	root, err = bt.getNode(bt.root())
	require.NoError(t, err)
	require.True(t, root.isLeaf()) // the internal root collapsed once only one child remained
	require.Equal(t, []Key{3, 4}, root.st.keys)

	_, err = bt.Find(1)
	require.ErrorIs(t, err, ErrKeyNotFound)
	_, err = bt.Find(2)
	require.ErrorIs(t, err, ErrKeyNotFound)

	val, err := bt.Find(3)
	require.NoError(t, err)
	require.EqualValues(t, 33, val)

	val, err = bt.Find(4)
	require.NoError(t, err)
	require.EqualValues(t, 44, val)
}

// TestUpdateUtilRipplesThroughMultipleLevels checks that changing a
// leftmost key corrects every ancestor separator that still mirrors the
// old value, not just the immediate parent.
func TestUpdateUtilRipplesThroughMultipleLevels(t *testing.T) {
	bt := newTestTree(t)

	for k := Key(1); k <= 16; k++ {
		require.NoError(t, bt.Insert(k, k))
	}

	root, err := bt.getNode(bt.root())
	require.NoError(t, err)
	require.False(t, root.isLeaf())

	_, err = bt.Remove(1)
	require.NoError(t, err)

	val, err := bt.Find(2)
	require.NoError(t, err)
	require.EqualValues(t, 2, val)

	_, err = bt.Find(1)
	require.ErrorIs(t, err, ErrKeyNotFound)

	// every separator on the leftmost root-to-leaf path mirrored the old
	// minimum 1 and must now read 2
	node, err := bt.getNode(bt.root())
	require.NoError(t, err)
	for !node.isLeaf() {
		require.EqualValues(t, 2, node.getKey(0))
		node, err = bt.getNode(node.getVal(0))
		require.NoError(t, err)
	}
	require.EqualValues(t, 2, node.getKey(0))
}

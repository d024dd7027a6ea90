package bptree

//============================================= Btree Task Manager
//
// Grounded on the original source's `impl TaskManager` block. Insert,
// Split, Remove, Rebalance and Update are mutually recursive in the
// textbook description of a B+ tree; here they are handlers pulled off
// a FIFO work queue instead, so propagating a split or a rebalance all
// the way to the root never grows the Go call stack with tree height.

func newTaskManager(bt *Btree) *taskManager {
	return &taskManager{bt: bt}
}

func (tm *taskManager) addInsert(target insertTarget, index int, key Key, val Val) {
	tm.queue = append(tm.queue, task{kind: taskInsert, target: target, index: index, key: key, val: val})
}

func (tm *taskManager) addUpdate(ref pathRef, index int, newKey Key) {
	tm.queue = append(tm.queue, task{kind: taskUpdate, ref: ref, index: index, key: newKey})
}

func (tm *taskManager) addRemove(ref pathRef, index int) {
	tm.queue = append(tm.queue, task{kind: taskRemove, ref: ref, index: index})
}

func (tm *taskManager) addRebalance(ref pathRef) {
	tm.queue = append(tm.queue, task{kind: taskRebalance, ref: ref})
}

func (tm *taskManager) addSplit(ref pathRef, index int, key Key, val Val) {
	tm.queue = append(tm.queue, task{kind: taskSplit, ref: ref, index: index, key: key, val: val})
}

// run drains the queue to completion, in FIFO order. A handler that
// schedules more tasks appends to the same queue this loop is draining,
// so a deeply cascading split or merge still resolves breadth-first
// rather than through recursive calls.
func (tm *taskManager) run() error {
	for len(tm.queue) > 0 {
		t := tm.queue[0]
		tm.queue = tm.queue[1:]

		var err error
		switch t.kind {
		case taskInsert:
			err = tm.insertUtil(t.target, t.index, t.key, t.val)
		case taskSplit:
			err = tm.splitUtil(t.ref, t.index, t.key, t.val)
		case taskRemove:
			err = tm.removeUtil(t.ref, t.index)
		case taskRebalance:
			err = tm.rebalanceUtil(t.ref)
		case taskUpdate:
			err = tm.updateUtil(t.ref, t.index, t.key)
		}

		if err != nil {
			return err
		}
	}

	return nil
}

// resolveTarget returns the node an Insert task applies to: either the
// node pref's path step already names, or the override address a prior
// Split chose (because it moved the insertion point into a fresh
// sibling block that isn't on the path at all).
func (tm *taskManager) resolveTarget(target insertTarget) (*Node, error) {
	if target.override != nil {
		return tm.bt.getNode(*target.override)
	}

	return target.ref.node()
}

// insertUtil inserts key/val at index into the target node, splitting
// first if it is already full. A plain insert only needs to propagate
// upward in the single special case where it changed the leftmost entry
// of the tree's leftmost node at this level: the parent's separator for
// this node must be corrected to the new minimum key.
func (tm *taskManager) insertUtil(target insertTarget, index int, key Key, val Val) error {
	pref := target.ref

	node, err := tm.resolveTarget(target)
	if err != nil {
		return err
	}

	if node.isFull() {
		tm.addSplit(pref, index, key, val)
		return nil
	}

	if err := node.insert(index, key, val); err != nil {
		return err
	}

	if index != 0 || pref.top() || node.isRoot() || pref.nodeAddr() != node.addr {
		return nil
	}

	parentRef, ok := pref.parentRef()
	if !ok {
		return nil
	}

	idx, _ := pref.nodeIdx()
	tm.addUpdate(parentRef, idx, key)

	return nil
}

// splitUtil splits pref's node at index, then re-schedules the pending
// insert against whichever half (original node or new sibling) it now
// belongs in, and schedules the insert of the sibling's own separator
// into the parent - or, if the split grew the tree by a level, into the
// freshly created root.
func (tm *taskManager) splitUtil(pref pathRef, index int, key Key, val Val) error {
	node, err := pref.node()
	if err != nil {
		return err
	}

	newRootAddr, sibling, side, err := node.split(index)
	if err != nil {
		return err
	}

	siblingAddr := sibling.addr

	if side.onRight {
		tm.addInsert(insertTarget{ref: pref, override: &siblingAddr}, side.index, key, val)
	} else {
		tm.addInsert(insertTarget{ref: pref}, side.index, key, val)
	}

	if newRootAddr != nil {
		rootKey := key
		if !(!side.onRight && side.index == 0) {
			rootKey = node.minKey()
		}

		tm.addInsert(insertTarget{ref: pref, override: newRootAddr}, 0, rootKey, node.addr)
	}

	var parentTarget insertTarget
	var parentSiblingIdx int
	if newRootAddr != nil {
		parentTarget = insertTarget{ref: pref, override: newRootAddr}
		parentSiblingIdx = 1
	} else {
		parentRef, ok := pref.parentRef()
		if !ok {
			return errInvariant("splitUtil: non-root split with no parent")
		}

		parentTarget = insertTarget{ref: parentRef}
		idx, _ := pref.nodeIdx()
		parentSiblingIdx = idx + 1
	}

	var siblingMinKey Key
	if sibling.isLeaf() {
		if side.onRight && side.index == 0 {
			siblingMinKey = key
		} else {
			siblingMinKey = sibling.minKey()
		}
	} else {
		if side.onRight && side.index == 0 {
			siblingMinKey = key
		} else {
			siblingMinKey = sibling.childMinKey()
		}
	}

	tm.addInsert(parentTarget, parentSiblingIdx, siblingMinKey, sibling.addr)

	return nil
}

// removeUtil removes the entry at index from pref's node. A drained
// root internal node collapses: its one remaining child becomes the new
// root and the empty root block is simply abandoned. Otherwise, removing
// the leftmost entry of a leaf (without emptying it) requires correcting
// the parent's separator; and an underflow below min_degree schedules a
// rebalance against a sibling.
func (tm *taskManager) removeUtil(pref pathRef, index int) error {
	node, err := pref.node()
	if err != nil {
		return err
	}

	if _, _, err := node.remove(index); err != nil {
		return err
	}

	if node.isDrained() && node.isRoot() && !node.isLeaf() {
		return tm.bt.setRoot(node.firstChildAddr())
	}

	if node.isRoot() {
		return nil
	}

	if node.isLeaf() && index == 0 && !node.isEmpty() {
		parentRef, ok := pref.parentRef()
		if !ok {
			return errInvariant("removeUtil: non-root leaf with no parent")
		}

		idx, _ := pref.nodeIdx()
		tm.addUpdate(parentRef, idx, node.minKey())
	}

	if node.isDrained() {
		tm.addRebalance(pref)
	}

	return nil
}

// rebalanceUtil resolves an underflow at pref's node against whichever
// immediate sibling is available, preferring the right sibling. When the
// two nodes' combined entries still fit in one block, they merge and the
// absorbed sibling's separator is removed from the parent; otherwise
// entries are shifted across the boundary just enough to bring both
// nodes back to at least half capacity, and the parent's separator for
// whichever of the two now starts with a different entry (the right
// sibling when taking from it, the node itself when taking from the left)
// is corrected.
func (tm *taskManager) rebalanceUtil(pref pathRef) error {
	node, err := pref.node()
	if err != nil {
		return err
	}

	_, fromRight := pref.rightSiblingAddr()

	var sibling *Node
	var siblingIdx int
	if fromRight {
		sib, ok, err := pref.rightSibling()
		if err != nil {
			return err
		}
		if !ok {
			return errInvariant("rebalanceUtil: expected right sibling")
		}
		sibling = sib
		siblingIdx, _ = pref.rightSiblingIdx()
	} else {
		sib, ok, err := pref.leftSibling()
		if err != nil {
			return err
		}
		if !ok {
			return errInvariant("rebalanceUtil: node has neither left nor right sibling")
		}
		sibling = sib
		siblingIdx, _ = pref.leftSiblingIdx()
	}

	parentRef, ok := pref.parentRef()
	if !ok {
		return errInvariant("rebalanceUtil: non-root node with no parent")
	}

	if node.canMerge(sibling) {
		if fromRight {
			if node.isLeaf() && node.isEmpty() {
				idx, _ := pref.nodeIdx()
				tm.addUpdate(parentRef, idx, sibling.minKey())
			}

			if err := node.appendFrom(sibling); err != nil {
				return err
			}

			if node.isLeaf() {
				if err := node.setNextFrom(sibling); err != nil {
					return err
				}
			}
		} else {
			// mirrors the original source exactly: this reads
			// sibling.minKey() on a sibling just confirmed empty. In a
			// well-formed tree reachable through remove/rebalance this
			// branch is never actually taken with an empty sibling; kept
			// as-is rather than silently diverging from it.
			if node.isLeaf() && sibling.isEmpty() {
				tm.addUpdate(parentRef, siblingIdx, sibling.minKey())
			}

			if err := sibling.appendFrom(node); err != nil {
				return err
			}

			if node.isLeaf() {
				if err := sibling.setNextFrom(node); err != nil {
					return err
				}
			}
		}

		parentIndex := siblingIdx
		if !fromRight {
			idx, _ := pref.nodeIdx()
			parentIndex = idx
		}

		tm.addRemove(parentRef, parentIndex)

		return nil
	}

	numTaken := (node.degree()+sibling.degree())/2 - node.degree()

	if fromRight {
		if err := node.appendNFrom(sibling, 0, int(numTaken)); err != nil {
			return err
		}
	} else {
		start := int(sibling.degree() - numTaken)
		if err := node.pushFrontNFrom(sibling, start, int(sibling.degree())); err != nil {
			return err
		}
	}

	updated := sibling
	parentIndex := siblingIdx
	if !fromRight {
		updated = node
		idx, _ := pref.nodeIdx()
		parentIndex = idx
	}

	var newMinKey Key
	if updated.isLeaf() {
		newMinKey = updated.minKey()
	} else {
		newMinKey = updated.childMinKey()
	}

	tm.addUpdate(parentRef, parentIndex, newMinKey)

	return nil
}

// updateUtil overwrites the key at index in pref's node, then walks back
// up the path correcting every ancestor's separator that still held the
// old value - a leftmost-entry change can ripple through several levels
// at once, since each level's own leftmost separator mirrors its
// leftmost child's.
func (tm *taskManager) updateUtil(pref pathRef, index int, newKey Key) error {
	node, err := pref.node()
	if err != nil {
		return err
	}

	oldKey, err := node.updateKey(index, newKey)
	if err != nil {
		return err
	}

	cur, ok := pref.parentRef()
	for ok {
		step := cur.step()
		node, err = cur.node()
		if err != nil {
			return err
		}

		if node.getKey(step.node.index) == oldKey {
			if _, err := node.updateKey(step.node.index, newKey); err != nil {
				return err
			}
		}

		cur, ok = cur.parentRef()
	}

	return nil
}

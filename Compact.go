package bptree

import "sort"

//============================================= Btree Compaction
//
// Grounded on the original source's `pub fn compact`. Unlike the
// teacher's own Compact.go/CompactUtils.go - which compact by writing an
// entirely new file and swapping it in - this walks the live tree once,
// then relocates only the nodes that need to move: the highest-address
// live node is moved into the lowest free block, repeated until every
// live node sits in the lowest possible contiguous range, and the unused
// tail is truncated.

// compactRef pairs one DFS-visited pathStep (a node plus its immediate
// siblings, as seen from its parent) with that parent's own index/addr -
// nil for the root, which has no parent.
type compactRef struct {
	step   pathStep
	parent *stepInfo
}

// Compact relocates every live node to the lowest possible contiguous
// run of blocks and truncates the unused tail. It flushes and disables
// the node cache for its duration, so every read and write goes
// straight through the mmap and no stale cached address survives the
// relocation; the original capacity is restored before returning.
func (bt *Btree) Compact() error {
	if err := bt.FlushCache(); err != nil {
		return err
	}

	oldCap := bt.cache.setCapacity(0)
	defer bt.cache.setCapacity(oldCap)

	return bt.compactLocked()
}

func (bt *Btree) compactLocked() error {
	refs, err := bt.collectLiveRefs()
	if err != nil {
		return errWrap("compact", err)
	}

	sort.Slice(refs, func(i, j int) bool { return refs[i].step.node.addr < refs[j].step.node.addr })

	blockSize := bt.header.BlockSize
	fileSize, err := bt.fileSize()
	if err != nil {
		return errWrap("compact", err)
	}

	var addrs []Addr
	for a := blockSize; a < fileSize; a += blockSize {
		addrs = append(addrs, a)
	}

	for len(refs) > 0 && len(addrs) > 0 {
		nref := refs[0]
		addr := addrs[0]

		if nref.step.node.addr == addr {
			refs = refs[1:]
			addrs = addrs[1:]
			continue
		}

		addrs = addrs[1:]
		last := refs[len(refs)-1]
		refs = refs[:len(refs)-1]

		if err := bt.relocate(last, addr); err != nil {
			return errWrap("compact", err)
		}

		// later relocations must reach this node at its new address
		oldAddr := last.step.node.addr
		for _, r := range refs {
			if r.parent != nil && r.parent.addr == oldAddr {
				r.parent.addr = addr
			}
			if r.step.left != nil && r.step.left.addr == oldAddr {
				r.step.left.addr = addr
			}
		}
	}

	if len(addrs) > 0 {
		if err := bt.truncateFile(uint32(len(addrs))); err != nil {
			return errWrap("compact", err)
		}
	}

	return nil
}

// collectLiveRefs walks the tree depth-first from the root, recording
// every reachable node's pathStep (its own index/addr plus its immediate
// left/right siblings, as seen from its parent) and that parent's own
// index/addr. Traversal order does not matter - the caller sorts by
// address afterward - only reachability does.
func (bt *Btree) collectLiveRefs() ([]compactRef, error) {
	var refs []compactRef
	stack := []compactRef{{step: pathStep{node: stepInfo{index: 0, addr: bt.root()}}}}

	for len(stack) > 0 {
		entry := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		refs = append(refs, entry)

		node, err := bt.getNode(entry.step.node.addr)
		if err != nil {
			return nil, err
		}

		if node.isLeaf() {
			continue
		}

		vals := node.getVals()
		for i, v := range vals {
			var left, right *stepInfo
			if i > 0 {
				left = &stepInfo{index: i - 1, addr: vals[i-1]}
			}
			if i < len(vals)-1 {
				right = &stepInfo{index: i + 1, addr: vals[i+1]}
			}

			parent := stepInfo{index: i, addr: node.addr}
			stack = append(stack, compactRef{
				step:   pathStep{left: left, right: right, node: stepInfo{index: i, addr: v}},
				parent: &parent,
			})
		}
	}

	return refs, nil
}

// relocate moves the node named by last into addr, a free block lower
// than its current address, and fixes up every reference to it: a left
// leaf sibling's next-leaf pointer, its parent's child pointer, or the
// header's root pointer when it has no parent.
func (bt *Btree) relocate(last compactRef, addr Addr) error {
	node, err := bt.getNode(last.step.node.addr)
	if err != nil {
		return err
	}

	if err := node.setAddr(addr); err != nil {
		return err
	}

	if last.step.left != nil {
		leftSibling, err := bt.getNode(last.step.left.addr)
		if err != nil {
			return err
		}

		// an internal left sibling has no next-leaf pointer to fix up;
		// Node.setNext panics if called on one.
		if leftSibling.isLeaf() {
			if err := leftSibling.setNext(&addr); err != nil {
				return err
			}
		}
	}

	if last.parent == nil {
		return bt.setRoot(addr)
	}

	parent, err := bt.getNode(last.parent.addr)
	if err != nil {
		return err
	}

	_, err = parent.updateVal(last.parent.index, addr)
	return err
}

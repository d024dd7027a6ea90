package bptree

//============================================= Btree Node Store
//
// Spec section 4.1: allocate blocks, serialize/deserialize nodes, flush
// ranges to disk. Reading and writing always goes through the cache
// first (Node.flush, Btree.getNode); this file holds the parts that
// actually touch the mmap.

// readNode deserializes the block at addr into a fresh in-memory node.
// It must succeed on any block previously written by flushNode - the
// only supported failure is a malformed/short block, which is a fatal
// I/O-class error per spec section 7.
func (bt *Btree) readNode(addr Addr) (*Node, error) {
	if addr < bt.header.BlockSize || addr%bt.header.BlockSize != 0 {
		panic("bptree: invalid node address")
	}

	block := bt.mmap[addr:]
	st, err := deserializeNode(block)
	if err != nil {
		return nil, errWrap("read node", err)
	}

	return &Node{st: *st, addr: addr, bt: bt}, nil
}

// getNode returns the node at addr, preferring the cache. While resident
// in the cache, every handle for a given address is the same *Node, so
// in-place mutation is visible to every pathRef holding that address -
// this is what lets multiple PathRef objects share one logical node
// within a single public operation (spec section 9).
func (bt *Btree) getNode(addr Addr) (*Node, error) {
	if n, ok := bt.cache.get(addr); ok {
		return n, nil
	}

	return bt.readNode(addr)
}

// flushNode serializes node and writes it into the mapped region at
// [addr, addr+serialized_len), then durably flushes that range.
func (bt *Btree) flushNode(node *Node) error {
	se := serializeNode(&node.st)
	if len(se) > int(bt.header.BlockSize) {
		panic("bptree: serialized node exceeds block size")
	}

	copy(bt.mmap[node.addr:int(node.addr)+len(se)], se)

	if err := bt.flushRangeToDisk(node.addr, len(se)); err != nil {
		return errWrap("flush node", err)
	}

	return nil
}

// newNode allocates a fresh block at the file tail and returns an empty
// node of the given kind, already flushed (spec section 3: "A node is
// created by allocating one block at file tail").
func (bt *Btree) newNode(isLeaf bool) (*Node, error) {
	addr, err := bt.expandFile()
	if err != nil {
		return nil, errWrap("allocate node", err)
	}

	node := &Node{st: nodeStored{isLeaf: isLeaf}, addr: addr, bt: bt}
	if err := node.flush(); err != nil {
		return nil, err
	}

	return node, nil
}

// newLeaf allocates a fresh, empty leaf.
func (bt *Btree) newLeaf() (*Node, error) {
	return bt.newNode(true)
}

// newSibling allocates a fresh node of the same kind (leaf vs internal)
// as n, for use as its split sibling.
func newSibling(n *Node) (*Node, error) {
	return n.bt.newNode(n.isLeaf())
}

// newRoot allocates a fresh, empty internal node and installs it as the
// tree's root. Used when a split needs to grow the tree by one level.
func (bt *Btree) newRoot() (*Node, error) {
	node, err := bt.newNode(false)
	if err != nil {
		return nil, err
	}

	if err := bt.setRoot(node.addr); err != nil {
		return nil, err
	}

	return node, nil
}

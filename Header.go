package bptree

//============================================= Btree Header

// flushHeader serializes the header at file offset 0 and flushes that
// prefix to disk. Spec section 4.1: "flush_header() serializes the
// header at offset 0 and flushes the corresponding prefix."
func (bt *Btree) flushHeader() error {
	se := serializeHeader(&bt.header)
	copy(bt.mmap[0:HeaderSize], se)

	if err := bt.flushRangeToDisk(0, len(se)); err != nil {
		return errWrap("flush header", err)
	}

	return nil
}

// loadHeader deserializes the header from the start of the memory map.
func (bt *Btree) loadHeader() error {
	h, err := deserializeHeader(bt.mmap[0:HeaderSize])
	if err != nil {
		return errWrap("load header", err)
	}

	bt.header = *h
	return nil
}

// root returns the current root node address.
func (bt *Btree) root() Addr {
	return bt.header.Root
}

// setRoot updates the root address and flushes the header immediately,
// matching spec section 4.5's Remove/Split handlers, which must make the
// new root durable as part of the structural change that created it.
func (bt *Btree) setRoot(addr Addr) error {
	bt.header.Root = addr
	return bt.flushHeader()
}

func (bt *Btree) minDegree() Degree { return bt.header.MinDegree }
func (bt *Btree) maxDegree() Degree { return bt.header.MaxDegree }

// SetDegree overrides the header-derived min/max degree. It is a test
// affordance (spec section 6) for exercising tree shape - splits,
// merges, rebalances - at small, easy-to-reason-about capacities instead
// of whatever a real block size derives.
func (bt *Btree) SetDegree(min, max Degree) error {
	bt.header.MinDegree = min
	bt.header.MaxDegree = max
	return bt.flushHeader()
}

package bptree

import (
	"fmt"
	"os"
	"strings"
)

//============================================= Btree
//
// The public facade: New/Load open or create the backing file and
// return a ready-to-use *Btree; Find/Insert/Remove are the three
// operations spec section 2 names; Compact (Compact.go) and FlushCache
// (Cache.go) are maintenance operations; DumpToString renders the tree
// for tests and debugging.

// New creates (or truncates) the backing file at opts.Path and
// initializes an empty tree: block 0 holds the header, and the very
// first node allocated - an empty leaf - becomes the root.
func New(opts Options) (*Btree, error) {
	if opts.Alpha < 2 {
		panic("bptree: Options.Alpha must be >= 2")
	}

	file, err := os.OpenFile(opts.Path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, errWrap("new", err)
	}

	maxDegree := getMaxDegree(opts.BlockSize)
	minDegree := getMinDegree(maxDegree, opts.Alpha)

	mm, err := mmapFile(file, int(opts.BlockSize)*int(opts.MaxFileSize))
	if err != nil {
		file.Close()
		return nil, errWrap("new", err)
	}

	bt := &Btree{
		path: opts.Path,
		file: file,
		mmap: mm,
		header: Header{
			Root:      opts.BlockSize,
			MinDegree: minDegree,
			MaxDegree: maxDegree,
			BlockSize: opts.BlockSize,
		},
		cache: newNodeCache(opts.CacheSize),
	}

	// reserve block 0 for the header
	if _, err := bt.expandFile(); err != nil {
		return nil, errWrap("new", err)
	}

	if err := bt.flushHeader(); err != nil {
		return nil, errWrap("new", err)
	}

	// the root's block is allocated immediately after, landing at
	// exactly header.Root (BlockSize) as set above
	if _, err := bt.newLeaf(); err != nil {
		return nil, errWrap("new", err)
	}

	cLog.Info(fmt.Sprintf("New: opened %s, max_degree=%d, min_degree=%d", opts.Path, maxDegree, minDegree))

	return bt, nil
}

// Load opens an existing backing file and restores its header. BlockSize
// must match the on-disk header (a mismatch is an error); MaxFileSize
// sizes the memory map and CacheSize the node cache for this session;
// Alpha is ignored (degrees are read back from the header).
func Load(opts Options) (*Btree, error) {
	file, err := os.OpenFile(opts.Path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, errWrap("load", err)
	}

	mm, err := mmapFile(file, int(opts.BlockSize)*int(opts.MaxFileSize))
	if err != nil {
		file.Close()
		return nil, errWrap("load", err)
	}

	bt := &Btree{
		path:  opts.Path,
		file:  file,
		mmap:  mm,
		cache: newNodeCache(opts.CacheSize),
	}

	if err := bt.loadHeader(); err != nil {
		return nil, errWrap("load", err)
	}

	if bt.header.BlockSize != opts.BlockSize {
		return nil, errInvariant("load: block size mismatch between Options and on-disk header")
	}

	cLog.Info(fmt.Sprintf("Load: opened %s, root=%d, max_degree=%d, min_degree=%d",
		opts.Path, bt.header.Root, bt.header.MaxDegree, bt.header.MinDegree))

	return bt, nil
}

// Close unmaps the backing file and closes its handle. It does not
// flush the node cache - call FlushCache first if resident mutations
// must survive.
func (bt *Btree) Close() error {
	if err := bt.mmap.munmap(); err != nil {
		return errWrap("close", err)
	}

	return bt.file.Close()
}

// Find looks up key, returning ErrKeyNotFound on a miss.
func (bt *Btree) Find(key Key) (Val, error) {
	leaf, _, err := bt.findLeaf(key)
	if err != nil {
		return 0, err
	}

	idx, ok := leaf.find(key)
	if !ok {
		return 0, ErrKeyNotFound
	}

	return leaf.getVal(idx), nil
}

// Insert adds key/val, returning ErrKeyExists if key is already present.
// The tree is left unchanged on either error outcome.
func (bt *Btree) Insert(key Key, val Val) error {
	leaf, ref, err := bt.findLeaf(key)
	if err != nil {
		return err
	}

	idx, ok := leaf.find(key)
	if ok {
		return ErrKeyExists
	}

	mgr := newTaskManager(bt)
	leafAddr := leaf.addr
	mgr.addInsert(insertTarget{ref: ref, override: &leafAddr}, idx, key, val)

	return mgr.run()
}

// Remove deletes key, returning its value, or ErrKeyNotFound if key is
// absent. The tree is left unchanged on a miss.
func (bt *Btree) Remove(key Key) (Val, error) {
	leaf, ref, err := bt.findLeaf(key)
	if err != nil {
		return 0, err
	}

	idx, ok := leaf.find(key)
	if !ok {
		return 0, ErrKeyNotFound
	}

	val := leaf.getVal(idx)

	mgr := newTaskManager(bt)
	mgr.addRemove(ref, idx)

	if err := mgr.run(); err != nil {
		return 0, err
	}

	return val, nil
}

// DumpToString renders every reachable node, one per line, in the form
// "Node A=<addr>, R=(+/-), L=(+/-), keys=<keys>, vals=<vals>, N:<next>".
// R is "+" for the root, L is "+" for a leaf; N is the next-leaf address,
// or "-" for a leaf with none and for every internal node.
func (bt *Btree) DumpToString() (string, error) {
	var out strings.Builder

	stack := []Addr{bt.root()}
	for len(stack) > 0 {
		addr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		node, err := bt.getNode(addr)
		if err != nil {
			return "", errWrap("dump to string", err)
		}

		out.WriteString(dumpNode(node))
		out.WriteByte('\n')

		if !node.isLeaf() {
			stack = append(stack, node.getVals()...)
		}
	}

	return out.String(), nil
}

func dumpNode(node *Node) string {
	root := "-"
	if node.isRoot() {
		root = "+"
	}

	leaf := "-"
	if node.isLeaf() {
		leaf = "+"
	}

	next := "-"
	if node.isLeaf() {
		if n := node.next(); n != nil {
			next = fmt.Sprintf("%d", *n)
		}
	}

	return fmt.Sprintf("Node A=%d, R=(%s), L=(%s), keys=%v, vals=%v, N:%s",
		node.addr, root, leaf, node.st.keys, node.st.vals, next)
}

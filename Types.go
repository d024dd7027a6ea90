package bptree

import (
	"os"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"github.com/sirgallo/logger"
)

var cLog = logger.NewCustomLog("Btree")

// Key is a fixed-width unsigned integer key stored in a leaf or used as
// a separator in an internal node.
type Key = uint32

// Val is a fixed-width unsigned integer value. In an internal node, Val
// doubles as the block address of a child node.
type Val = uint32

// Addr is a byte offset into the index file. Every live Addr is a
// multiple of BlockSize and is >= BlockSize (block 0 is the header).
type Addr = uint32

// Degree is the number of key/val entries in a leaf, or the number of
// child pointers in an internal node.
type Degree = uint32

// HeaderSize is the fixed on-disk size, in bytes, of the serialized
// Header. The header always lives at file offset 0, inside block 0.
const HeaderSize = 16

// Options configures New and Load.
type Options struct {
	// Path is the backing file path. New creates or truncates it; Load
	// requires it to already exist.
	Path string
	// BlockSize is the fixed size, in bytes, of block 0 (the header)
	// and of every node block.
	BlockSize uint32
	// Alpha governs min_degree = max(1, max_degree/Alpha). Required by
	// New to be >= 2; ignored by Load (degrees come from the header).
	Alpha uint8
	// MaxFileSize is the number of blocks the memory map is pre-sized
	// for (block_size * max_file_size bytes of virtual address space).
	// The file may grow up to this cap via expandFile.
	MaxFileSize uint32
	// CacheSize is the LRU node cache capacity. 0 bypasses the cache:
	// every node read deserializes from the mmap and every mutation
	// flushes directly to it.
	CacheSize int
}

// Header is the persisted, fixed-size block-0 record: the tree's root
// address and its degree/block-size configuration.
type Header struct {
	Root      Addr
	MinDegree Degree
	MaxDegree Degree
	BlockSize uint32
}

// nodeStored is the persisted form of a Node: the fields that round-trip
// through serializeNode/deserializeNode. See Node for the in-memory
// wrapper.
type nodeStored struct {
	isLeaf bool
	keys   []Key
	vals   []Val
	next   *Addr
}

// Node is the in-memory handle for one B+ tree node (leaf or internal),
// tagged by isLeaf rather than represented as two distinct types, since
// nearly every primitive below touches both kinds.
type Node struct {
	st   nodeStored
	addr Addr
	bt   *Btree
}

// stepInfo pairs an index within a node's vals/keys arrays with a block
// address; see pathStep for what each pair means.
type stepInfo struct {
	index int
	addr  Addr
}

// pathStep is one level of a root-to-leaf path captured by findLeaf: node
// holds this level's own address together with the index of the child
// chosen for descent, and left/right - when present - are that child's
// immediate neighbours within this node (see Path.go). Compact's own
// traversal (collectLiveRefs) fills it differently: node is the visited
// node's index in its parent and its own address, and left/right are its
// own neighbours in that parent.
type pathStep struct {
	left  *stepInfo
	right *stepInfo
	node  stepInfo
}

// path is the full root-to-leaf chain produced by findLeaf, shared by
// every pathRef derived from it.
type path struct {
	steps []pathStep
	bt    *Btree
}

// pathRef names one step within a path by index, giving cheap access to
// that step's parent, siblings, and node without re-walking the tree.
type pathRef struct {
	index int
	path  *path
}

// idxSide records which half of a split a newly inserted entry landed
// in, and its index within that half.
type idxSide struct {
	onRight bool
	index   int
}

// insertTarget names the node an Insert task applies to: either the node
// a pathRef already points at, or an explicit override address used when
// a prior Split moved the insertion point to a fresh sibling block.
type insertTarget struct {
	ref      pathRef
	override *Addr
}

// taskKind discriminates the task union below.
type taskKind int

const (
	taskInsert taskKind = iota
	taskSplit
	taskRemove
	taskRebalance
	taskUpdate
)

// task is one entry in the taskManager's FIFO queue. Only the fields
// relevant to kind are populated.
type task struct {
	kind taskKind

	target insertTarget
	ref    pathRef
	index  int
	key    Key
	val    Val
}

// taskManager is a FIFO queue of structural-change tasks. It replaces
// the mutually recursive insert->split->insert-parent and
// remove->rebalance->update->remove-parent call chains with an explicit
// work queue, so tree height never grows the Go call stack.
type taskManager struct {
	bt    *Btree
	queue []task
}

// btreeNodeCache is the bounded LRU node cache of spec section 4.2. A
// nil backing lru means capacity 0: every mutation bypasses the cache.
type btreeNodeCache struct {
	capacity int
	lru      *simplelru.LRU[Addr, *Node]
	evicted  *Node
}

// Btree is the public facade: it uniquely owns the header, the memory
// map, the file handle and the node cache. All mutation happens through
// its methods; spec section 5 assumes single-threaded, synchronous use.
type Btree struct {
	path   string
	file   *os.File
	header Header
	mmap   MMap
	cache  *btreeNodeCache
}

package bptree

import (
	"encoding/binary"
	"errors"
)

//============================================= Btree Serialization
//
// Binary layout is a free implementation choice (spec section 4.1); this
// project uses little-endian fixed-width fields throughout, matching the
// teacher's own encoding/binary usage in Serialize.go.
//
// Header (HeaderSize=16 bytes), at file offset 0:
//	[0:4]   Root       uint32
//	[4:8]   MinDegree  uint32
//	[8:12]  MaxDegree  uint32
//	[12:16] BlockSize  uint32
//
// Node, at its own block address:
//	[0]     isLeaf     1 byte (0 or 1)
//	[1:5]   count      uint32, number of key/val entries
//	[5:9]   next       uint32, 0 means "none" (0 is never a live node
//	                   address - block 0 is reserved for the header)
//	[9:9+4*count]             keys, uint32 each
//	[9+4*count:9+8*count]     vals, uint32 each

// noAddr is the sentinel "no address" value. Block 0 is reserved for the
// header, so it can never be a live node or next-leaf address.
const noAddr Addr = 0

// serializeHeader encodes h into exactly HeaderSize bytes.
func serializeHeader(h *Header) []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.Root)
	binary.LittleEndian.PutUint32(buf[4:8], h.MinDegree)
	binary.LittleEndian.PutUint32(buf[8:12], h.MaxDegree)
	binary.LittleEndian.PutUint32(buf[12:16], h.BlockSize)
	return buf
}

// deserializeHeader is the exact inverse of serializeHeader.
func deserializeHeader(data []byte) (*Header, error) {
	if len(data) < HeaderSize {
		return nil, errors.New("bptree: header data too short")
	}

	return &Header{
		Root:      binary.LittleEndian.Uint32(data[0:4]),
		MinDegree: binary.LittleEndian.Uint32(data[4:8]),
		MaxDegree: binary.LittleEndian.Uint32(data[8:12]),
		BlockSize: binary.LittleEndian.Uint32(data[12:16]),
	}, nil
}

// serializedLen returns the exact number of bytes serializeNode(st) would
// produce, without allocating.
func (st *nodeStored) serializedLen() int {
	return nodeStoredOverhead + entrySize*len(st.keys)
}

// serializeNode encodes st per the layout above. Required by spec
// section 4.1 to be infallible for any valid Node state - it is, since
// every field has a fixed-width encoding and capacity is enforced by
// Node.isFull before any entry is ever appended.
func serializeNode(st *nodeStored) []byte {
	count := len(st.keys)
	buf := make([]byte, nodeStoredOverhead+entrySize*count)

	if st.isLeaf {
		buf[0] = 1
	}
	binary.LittleEndian.PutUint32(buf[1:5], uint32(count))

	next := noAddr
	if st.next != nil {
		next = *st.next
	}
	binary.LittleEndian.PutUint32(buf[5:9], next)

	keyBase := nodeStoredOverhead
	valBase := keyBase + entrySize/2*count
	for i := 0; i < count; i++ {
		binary.LittleEndian.PutUint32(buf[keyBase+4*i:keyBase+4*i+4], st.keys[i])
		binary.LittleEndian.PutUint32(buf[valBase+4*i:valBase+4*i+4], st.vals[i])
	}

	return buf
}

// deserializeNode is the exact inverse of serializeNode. data must cover
// at least the full serialized record; trailing don't-care bytes (the
// rest of the block) are ignored.
func deserializeNode(data []byte) (*nodeStored, error) {
	if len(data) < nodeStoredOverhead {
		return nil, errors.New("bptree: node data too short")
	}

	isLeaf := data[0] == 1
	count := int(binary.LittleEndian.Uint32(data[1:5]))
	nextRaw := binary.LittleEndian.Uint32(data[5:9])

	keyBase := nodeStoredOverhead
	valBase := keyBase + 4*count
	need := valBase + 4*count
	if len(data) < need {
		return nil, errors.New("bptree: node data truncated")
	}

	keys := make([]Key, count)
	vals := make([]Val, count)
	for i := 0; i < count; i++ {
		keys[i] = binary.LittleEndian.Uint32(data[keyBase+4*i : keyBase+4*i+4])
		vals[i] = binary.LittleEndian.Uint32(data[valBase+4*i : valBase+4*i+4])
	}

	st := &nodeStored{isLeaf: isLeaf, keys: keys, vals: vals}
	if nextRaw != noAddr {
		next := nextRaw
		st.next = &next
	}

	return st, nil
}

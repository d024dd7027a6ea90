package bptree

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

//============================================= Memory Map IO Utils

// MMap is the byte-slice view of the memory mapped index file.
type MMap []byte

const (
	// rdonly maps the memory read-only.
	rdonly = 0
	// rdwr maps the memory as read-write; writes land on the backing file.
	rdwr = 1 << iota
)

// mmapFile memory maps length bytes of file starting at offset 0, read-write.
// The mapping is sized once, up front, to block_size * max_file_size -
// larger than the file itself - so that later file growth (expandFile)
// never requires remapping.
func mmapFile(file *os.File, length int) (MMap, error) {
	if length <= 0 {
		return nil, errors.New("mmap length must be positive")
	}

	data, mmapErr := unix.Mmap(int(file.Fd()), 0, length, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if mmapErr != nil {
		return nil, mmapErr
	}

	return MMap(data), nil
}

// munmap unmaps the mapping from the process's address space.
func (m MMap) munmap() error {
	return unix.Munmap(m)
}

// flush synchronously writes the full mapping back to the backing file.
func (m MMap) flush() error {
	return unix.Msync(m, unix.MS_SYNC)
}

// flushRange synchronously writes [addr, addr+length) back to the
// backing file. Per spec section 4.1, every flush_node/flush_header call
// is immediately followed by a durable flush of just the written range.
func (m MMap) flushRange(addr Addr, length int) error {
	pageSize := os.Getpagesize()
	alignedStart := (int(addr) / pageSize) * pageSize
	end := int(addr) + length
	if end > len(m) {
		end = len(m)
	}

	return unix.Msync(m[alignedStart:end], unix.MS_SYNC)
}

//============================================= Btree File IO

// fileSize returns the current length of the backing file, in bytes.
func (bt *Btree) fileSize() (uint32, error) {
	info, statErr := bt.file.Stat()
	if statErr != nil {
		return 0, statErr
	}

	return uint32(info.Size()), nil
}

// expandFile extends the backing file by exactly one block and returns
// the address of the newly available block (the file length before the
// call). The virtual mapping was pre-sized to MaxFileSize blocks at Open
// time, so growing the file never requires remapping - only extending
// file length via Truncate, which is reflected immediately in the
// already-mapped region.
func (bt *Btree) expandFile() (Addr, error) {
	addr, sizeErr := bt.fileSize()
	if sizeErr != nil {
		return 0, sizeErr
	}

	newSize := int64(addr) + int64(bt.header.BlockSize)
	if truncErr := bt.file.Truncate(newSize); truncErr != nil {
		return 0, truncErr
	}

	return addr, nil
}

// truncateFile shrinks the backing file by n blocks. Used by compact to
// reclaim the tail after relocating live nodes to the front of the file.
func (bt *Btree) truncateFile(n uint32) error {
	size, sizeErr := bt.fileSize()
	if sizeErr != nil {
		return sizeErr
	}

	shrinkBy := uint64(n) * uint64(bt.header.BlockSize)
	return bt.file.Truncate(int64(size) - int64(shrinkBy))
}

// flushRangeToDisk flushes [addr, addr+length) of the memory map to the
// backing file and treats the mmap's own durability guarantee as
// sufficient (spec section 5: "an flush_range call is considered durable
// at that point").
func (bt *Btree) flushRangeToDisk(addr Addr, length int) error {
	if flushErr := bt.mmap.flushRange(addr, length); flushErr != nil {
		return errWrap("flush range to disk", flushErr)
	}

	return nil
}

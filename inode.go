package sfs

import "encoding/binary"

// Inode is the decoded form of one inode record: mode, size, twelve direct
// block pointers, and one single-indirect pointer. A pointer value <= 0
// means "not allocated".
type Inode struct {
	Mode     Mode
	Size     uint32
	Direct   [DirectPointers]int32
	Indirect int32
}

// inodeWordCount is how many little-endian 32-bit words an inode record
// occupies: mode, size, 12 direct pointers, 1 indirect pointer.
const inodeWordCount = 2 + DirectPointers + 1

func (ino *Inode) encodeInto(block []byte) {
	binary.LittleEndian.PutUint32(block[0:4], uint32(ino.Mode))
	binary.LittleEndian.PutUint32(block[4:8], ino.Size)
	for i, p := range ino.Direct {
		off := (2 + i) * 4
		binary.LittleEndian.PutUint32(block[off:off+4], uint32(p))
	}
	off := (2 + DirectPointers) * 4
	binary.LittleEndian.PutUint32(block[off:off+4], uint32(ino.Indirect))
}

func decodeInode(block []byte) Inode {
	var ino Inode
	ino.Mode = Mode(binary.LittleEndian.Uint32(block[0:4]))
	ino.Size = binary.LittleEndian.Uint32(block[4:8])
	for i := range ino.Direct {
		off := (2 + i) * 4
		ino.Direct[i] = int32(binary.LittleEndian.Uint32(block[off : off+4]))
	}
	off := (2 + DirectPointers) * 4
	ino.Indirect = int32(binary.LittleEndian.Uint32(block[off : off+4]))
	return ino
}

// blockCount returns ceil(Size / BlockBytes), the number of blocks the
// file's current size implies.
func (ino *Inode) blockCount() int {
	if ino.Size == 0 {
		return 0
	}
	return int((ino.Size + BlockBytes - 1) / BlockBytes)
}

// loadInodeTable reads block inodeTableBlkNum into the in-memory cache.
func (v *Volume) loadInodeTable() error {
	buf := make([]byte, BlockBytes)
	if err := v.dev.ReadBlocks(inodeTableBlkNum, InodeTableBlocks, buf); err != nil {
		return err
	}
	for i := range v.inodeTable {
		v.inodeTable[i] = int32(binary.LittleEndian.Uint32(buf[i*4 : i*4+4]))
	}
	return nil
}

// flushInodeTable writes the in-memory cache back to block inodeTableBlkNum.
func (v *Volume) flushInodeTable() error {
	buf := make([]byte, BlockBytes)
	for i, n := range v.inodeTable {
		binary.LittleEndian.PutUint32(buf[i*4:i*4+4], uint32(n))
	}
	return v.dev.WriteBlocks(inodeTableBlkNum, InodeTableBlocks, buf)
}

// findFreeInode returns the lowest inode id whose table slot is free
// (value <= 0), or -1 if the table is full.
func (v *Volume) findFreeInode() int {
	for i, n := range v.inodeTable {
		if n <= 0 {
			return i
		}
	}
	return -1
}

// reserveInode records blockNum as the backing block for inode id and
// flushes the inode table. If the flush fails, the in-memory slot is rolled
// back to free so the cache doesn't diverge from what's actually on disk.
func (v *Volume) reserveInode(id int, blockNum int) error {
	v.inodeTable[id] = int32(blockNum)
	if err := v.flushInodeTable(); err != nil {
		v.inodeTable[id] = 0
		return err
	}
	return nil
}

// freeInode clears inode id's table slot and flushes the inode table.
// Callers must not hold any pointer-derived state for this inode after
// calling freeInode.
func (v *Volume) freeInode(id int) error {
	v.inodeTable[id] = 0
	return v.flushInodeTable()
}

// fetchInode reads and decodes the record for inode id. Calling fetchInode
// on a free slot is undefined; callers must gate on a directory lookup or
// on the table being reserved first.
func (v *Volume) fetchInode(id int) (Inode, error) {
	buf := make([]byte, BlockBytes)
	if err := v.dev.ReadBlocks(int(v.inodeTable[id]), 1, buf); err != nil {
		return Inode{}, err
	}
	return decodeInode(buf), nil
}

// storeInode writes inode id's record back to its backing block, preserving
// any bytes beyond the inode's own words.
func (v *Volume) storeInode(id int, ino Inode) error {
	buf := make([]byte, BlockBytes)
	blockNum := int(v.inodeTable[id])
	if err := v.dev.ReadBlocks(blockNum, 1, buf); err != nil {
		return err
	}
	ino.encodeInto(buf)
	return v.dev.WriteBlocks(blockNum, 1, buf)
}

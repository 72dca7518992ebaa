package sfs

import "encoding/binary"

// Superblock describes volume geometry. It is written once, at format
// time, and never changes afterwards — SFS has no online resize.
type Superblock struct {
	BlockBytes       uint32
	BlockCount       uint32
	InodeTableBlocks uint32
	FreeBitmapBlocks uint32
	RootInodeID      uint32
}

func defaultSuperblock() Superblock {
	return Superblock{
		BlockBytes:       BlockBytes,
		BlockCount:       BlockCount,
		InodeTableBlocks: InodeTableBlocks,
		FreeBitmapBlocks: FreeBitmapBlocks,
		RootInodeID:      RootInodeID,
	}
}

func (s Superblock) encode() []byte {
	buf := make([]byte, BlockBytes)
	binary.LittleEndian.PutUint32(buf[0:4], s.BlockBytes)
	binary.LittleEndian.PutUint32(buf[4:8], s.BlockCount)
	binary.LittleEndian.PutUint32(buf[8:12], s.InodeTableBlocks)
	binary.LittleEndian.PutUint32(buf[12:16], s.FreeBitmapBlocks)
	binary.LittleEndian.PutUint32(buf[16:20], s.RootInodeID)
	return buf
}

func decodeSuperblock(buf []byte) Superblock {
	return Superblock{
		BlockBytes:       binary.LittleEndian.Uint32(buf[0:4]),
		BlockCount:       binary.LittleEndian.Uint32(buf[4:8]),
		InodeTableBlocks: binary.LittleEndian.Uint32(buf[8:12]),
		FreeBitmapBlocks: binary.LittleEndian.Uint32(buf[12:16]),
		RootInodeID:      binary.LittleEndian.Uint32(buf[16:20]),
	}
}

// matchesGeometry reports whether s describes the geometry this package
// implements. Mount refuses images that don't match.
func (s Superblock) matchesGeometry() bool {
	return s.BlockBytes == BlockBytes &&
		s.BlockCount == BlockCount &&
		s.InodeTableBlocks == InodeTableBlocks &&
		s.FreeBitmapBlocks == FreeBitmapBlocks &&
		s.RootInodeID == RootInodeID
}

func (v *Volume) writeSuperblock(s Superblock) error {
	return v.dev.WriteBlocks(superBlockNum, 1, s.encode())
}

func (v *Volume) readSuperblock() (Superblock, error) {
	buf := make([]byte, BlockBytes)
	if err := v.dev.ReadBlocks(superBlockNum, 1, buf); err != nil {
		return Superblock{}, err
	}
	return decodeSuperblock(buf), nil
}

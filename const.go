package sfs

// Package sfs implements a single-volume, flat-namespace, indexed-allocation
// file system over a fixed-geometry block device. The volume is always 256
// blocks of 1024 bytes (256 KiB); geometry is not configurable.
//
// A Volume is the single entry point: Format or Mount it, then use its
// OpenFile/Read/Write/Seek*/Close/Remove methods. There is no concurrency
// support — a Volume must only be used from one goroutine at a time.

// Geometry constants, fixed per the on-disk layout.
const (
	BlockBytes = 1024 // size in bytes of one block
	BlockCount = 256  // number of blocks in a volume

	InodeTableBlocks = 1 // blocks occupied by the inode table
	FreeBitmapBlocks = 1 // blocks occupied by the free bitmap

	MaxFiles         = 256 // maximum number of files, including the root directory
	MaxFilenameBytes = 20  // maximum length of a filename, NUL-padded

	DirectPointers           = 12                     // direct block pointers per inode
	IndirectPointersPerBlock = BlockBytes / 4          // 256 pointers in one indirect block
	MaxFileBlocks            = DirectPointers + IndirectPointersPerBlock // 268
	MaxFileBytes             = MaxFileBlocks * BlockBytes                // 274432

	RootInodeID = 0 // inode id of the root directory
)

// Fixed block addresses.
const (
	superBlockNum     = 0 // super block
	inodeTableBlkNum  = 1 // inode table
	freeBitmapBlkNum  = 2 // free bitmap
	rootInodeBlkNum   = 3 // inode 0's record
	rootDataBlkNum    = 4 // inode 0's first data block
	firstGeneralBlock = 5 // start of the general-purpose data region
)

// Inode modes.
type Mode uint32

const (
	ModeDirectory Mode = 1
	ModeRegular   Mode = 2
)

// directoryEntryBytes is the fixed width of one directory entry: a
// MaxFilenameBytes-byte name followed by a 4-byte little-endian inode id.
const directoryEntryBytes = MaxFilenameBytes + 4

// directoryFileBytes is the size in bytes of the root directory's backing
// file: one fixed-width entry per possible file.
const directoryFileBytes = MaxFiles * directoryEntryBytes

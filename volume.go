package sfs

import (
	"log"

	"github.com/gosfs/sfs/blockdev"
)

// logger receives occasional lifecycle and capacity-exhaustion messages.
// It defaults to the standard logger and can be overridden with SetLogger,
// matching how the reference codebase used the unadorned log package
// rather than a structured logging library.
var logger = log.Default()

// SetLogger replaces the package-level logger used for mount/format and
// capacity diagnostics.
func SetLogger(l *log.Logger) {
	logger = l
}

// Volume is a mounted SFS volume: the block device plus the four in-memory
// caches (free bitmap, inode table, directory, open file table) that
// mirror it. A Volume must only be used from one goroutine at a time — see
// spec §5.
type Volume struct {
	dev *blockdev.Device

	bitmap     freeBitmap
	inodeTable [MaxFiles]int32
	directory  [MaxFiles]dirEntry
	oft        [MaxFiles]openFileEntry
	dirCursor  int
}

// Format creates a fresh volume image at path and mounts it, writing the
// super block, free bitmap, root inode record, and inode table exactly as
// described in spec §4.6 — including leaving the root inode's size at 0,
// even though its first data block is pre-reserved (see design note §9).
// No directory data is written: the freshly zeroed image already reads as
// an empty directory.
func Format(path string) (*Volume, error) {
	dev, err := blockdev.Format(path, BlockBytes, BlockCount)
	if err != nil {
		return nil, err
	}

	v := &Volume{dev: dev}

	if err := v.writeSuperblock(defaultSuperblock()); err != nil {
		dev.Close()
		return nil, err
	}

	// Reserve blocks 0..4: super, inode table, free bitmap, root inode
	// record, root directory's first data block.
	for b := 0; b < firstGeneralBlock; b++ {
		v.bitmap.set(b)
	}
	if err := v.flushFreeBitmap(); err != nil {
		dev.Close()
		return nil, err
	}

	rootIno := Inode{Mode: ModeDirectory, Size: 0}
	rootIno.Direct[0] = rootDataBlkNum
	v.inodeTable[RootInodeID] = rootInodeBlkNum
	if err := v.dev.WriteBlocks(rootInodeBlkNum, 1, encodeFreshInode(rootIno)); err != nil {
		dev.Close()
		return nil, err
	}
	if err := v.flushInodeTable(); err != nil {
		dev.Close()
		return nil, err
	}

	if err := v.postMountInit(); err != nil {
		dev.Close()
		return nil, err
	}

	logger.Printf("sfs: formatted fresh volume at %s", path)
	return v, nil
}

// encodeFreshInode encodes an inode into a full, freshly zeroed block —
// used only at format time, when there's no prior block content to
// preserve (contrast with storeInode's read-modify-write).
func encodeFreshInode(ino Inode) []byte {
	buf := make([]byte, BlockBytes)
	ino.encodeInto(buf)
	return buf
}

// Mount opens an existing volume image at path and loads all four caches
// from it. The image's super block must describe the geometry this
// package implements.
func Mount(path string) (*Volume, error) {
	dev, err := blockdev.Mount(path, BlockBytes, BlockCount)
	if err != nil {
		return nil, err
	}

	v := &Volume{dev: dev}

	sb, err := v.readSuperblock()
	if err != nil {
		dev.Close()
		return nil, err
	}
	if !sb.matchesGeometry() {
		logger.Printf("sfs: refusing to mount %s: incompatible volume geometry", path)
		dev.Close()
		return nil, ErrInvalidImage
	}

	if err := v.postMountInit(); err != nil {
		dev.Close()
		return nil, err
	}

	logger.Printf("sfs: mounted volume at %s", path)
	return v, nil
}

// postMountInit runs the common tail of Format and Mount: load the inode
// table, open the root directory on handle 0, mark every other handle
// closed, read the directory cache, and load the free bitmap. Format calls
// this after writing the fresh geometry; Mount calls it after validating
// the super block.
func (v *Volume) postMountInit() error {
	if err := v.loadInodeTable(); err != nil {
		return err
	}

	rootIno, err := v.fetchInode(RootInodeID)
	if err != nil {
		return err
	}
	v.oft[0] = openFileEntry{inodeID: RootInodeID, readPtr: 0, writePtr: rootIno.Size}
	for i := 1; i < MaxFiles; i++ {
		v.oft[i] = openFileEntry{inodeID: -1}
	}

	if err := v.loadDirectory(); err != nil {
		return err
	}

	if err := v.loadFreeBitmap(); err != nil {
		return err
	}

	v.dirCursor = 0
	return nil
}

// Close unmounts the volume, closing the backing device. It does not flush
// anything: every mutator already flushes its own state before returning
// (spec §5), so there is nothing left to write back.
func (v *Volume) Close() error {
	return v.dev.Close()
}

// Usage reports how many blocks are reserved and how many are free, read
// from the free bitmap cache. This has no equivalent call in the original
// implementation; it's a read-only diagnostic that counts the bitmap's set
// bits.
func (v *Volume) Usage() (used, free int) {
	used = v.bitmap.count()
	return used, BlockCount - used
}

package sfs

import "encoding/binary"

// OpenFile opens the file named name, creating it if it does not exist,
// and returns a handle for use with Read/Write/Seek*/CloseFile. It fails if
// name exceeds MaxFilenameBytes, if the file is already open on another
// handle, or if creating a new file exhausts inodes, directory slots, or
// free blocks.
func (v *Volume) OpenFile(name string) (int, error) {
	encoded, err := encodeName(name)
	if err != nil {
		return -1, err
	}

	idx := v.findDirEntry(encoded)
	var inodeID int
	if idx >= 0 {
		inodeID = int(v.directory[idx].InodeID)
		if v.findOpenHandle(inodeID) >= 0 {
			return -1, ErrAlreadyOpen
		}
	} else {
		inodeID, err = v.createFile(encoded)
		if err != nil {
			return -1, err
		}
	}

	ino, err := v.fetchInode(inodeID)
	if err != nil {
		return -1, err
	}

	handle := v.findFreeHandle()
	if handle < 0 {
		return -1, ErrNoFreeHandle
	}

	v.oft[handle] = openFileEntry{inodeID: int32(inodeID), readPtr: 0, writePtr: ino.Size}
	return handle, nil
}

// createFile reserves a fresh inode, a data block for its record, and a
// directory slot, in that order, rolling back whatever it already
// acquired if a later step fails — the reference implementation didn't
// always do this (see design note §9); this one does.
func (v *Volume) createFile(encodedName [MaxFilenameBytes]byte) (int, error) {
	inodeID := v.findFreeInode()
	if inodeID < 0 {
		return -1, ErrNoFreeInode
	}

	if v.findFreeDirSlot() < 0 {
		return -1, ErrNoFreeDirSlot
	}

	blockNum, err := v.allocBlock()
	if err != nil {
		return -1, err
	}

	fresh := Inode{Mode: ModeRegular}
	if err := v.reserveInode(inodeID, blockNum); err != nil {
		v.freeBlock(blockNum)
		return -1, err
	}
	if err := v.dev.WriteBlocks(blockNum, 1, encodeFreshInode(fresh)); err != nil {
		v.freeInode(inodeID)
		v.freeBlock(blockNum)
		return -1, err
	}

	if err := v.insertDirEntry(encodedName, inodeID); err != nil {
		v.freeInode(inodeID)
		v.freeBlock(blockNum)
		return -1, err
	}

	return inodeID, nil
}

// CloseFile closes handle fd. It fails if fd is out of range or already
// closed.
func (v *Volume) CloseFile(fd int) error {
	if !v.validHandle(fd) {
		return ErrBadHandle
	}
	v.oft[fd].inodeID = -1
	return nil
}

// CloseAll closes every open handle, including the root directory's. After
// CloseAll the volume must not be used again without remounting.
func (v *Volume) CloseAll() {
	for i := range v.oft {
		v.oft[i].inodeID = -1
	}
}

// SeekRead sets fd's read pointer. loc beyond the file's current size is
// permitted — reads there return zero bytes up to MaxFileBytes (§4.6).
func (v *Volume) SeekRead(fd int, loc uint32) error {
	if !v.validHandle(fd) {
		return ErrBadHandle
	}
	v.oft[fd].readPtr = loc
	return nil
}

// SeekWrite sets fd's write pointer. loc beyond the file's current size is
// permitted — the next write extends the file.
func (v *Volume) SeekWrite(fd int, loc uint32) error {
	if !v.validHandle(fd) {
		return ErrBadHandle
	}
	v.oft[fd].writePtr = loc
	return nil
}

// Read reads up to len(buf) bytes from fd's read pointer, zero-filling any
// region past the file's allocated blocks, and advances the pointer by the
// number of bytes actually copied. The read is clamped against
// MaxFileBytes, not the file's size — reading past end of file returns
// zeroes rather than stopping at size, matching the reference
// implementation (§9 open question).
func (v *Volume) Read(fd int, buf []byte) (int, error) {
	if !v.validHandle(fd) {
		return 0, nil
	}

	e := &v.oft[fd]
	length := clampLength(e.readPtr, len(buf))
	if length <= 0 {
		return 0, nil
	}

	ino, err := v.fetchInode(int(e.inodeID))
	if err != nil {
		return 0, err
	}

	n, err := v.readAt(&ino, e.readPtr, buf, length)
	e.readPtr += uint32(n)
	return n, err
}

// Write writes up to len(buf) bytes to fd's write pointer, allocating data
// blocks (and an indirect block, if needed) on demand, and advances the
// pointer by the number of bytes actually written. If allocation runs out
// of space partway through, Write returns the partial count rather than an
// error, and does not grow size beyond what was actually written. The
// write is clamped against MaxFileBytes, exactly like Read.
func (v *Volume) Write(fd int, buf []byte) (int, error) {
	if !v.validHandle(fd) {
		return 0, nil
	}

	e := &v.oft[fd]
	length := clampLength(e.writePtr, len(buf))
	if length <= 0 {
		return 0, nil
	}

	ino, err := v.fetchInode(int(e.inodeID))
	if err != nil {
		return 0, err
	}

	n, err := v.writeAt(&ino, e.writePtr, buf, length)
	e.writePtr += uint32(n)
	if err != nil {
		return n, err
	}

	if e.writePtr > ino.Size {
		ino.Size = e.writePtr
	}
	if serr := v.storeInode(int(e.inodeID), ino); serr != nil {
		return n, serr
	}
	return n, nil
}

// clampLength applies the MaxFileBytes clamp shared by Read and Write:
// never let pointer+length run past MaxFileBytes.
func clampLength(ptr uint32, length int) int {
	if uint64(ptr)+uint64(length) > MaxFileBytes {
		length = MaxFileBytes - int(ptr)
	}
	if length < 0 {
		return 0
	}
	return length
}

// ListNames returns every non-empty directory entry's name, in slot order.
// Unlike NextFileName it does not disturb the persistent enumeration
// cursor; it exists for callers that need a full snapshot in one call,
// such as the FUSE bridge's directory listing.
func (v *Volume) ListNames() []string {
	names := make([]string, 0, MaxFiles)
	for _, e := range v.directory {
		if e.Name[0] != 0 {
			names = append(names, nameString(e.Name))
		}
	}
	return names
}

// FileSize returns the size in bytes of the named file.
func (v *Volume) FileSize(name string) (int, error) {
	encoded, err := encodeName(name)
	if err != nil {
		return -1, err
	}
	idx := v.findDirEntry(encoded)
	if idx < 0 {
		return -1, ErrNotFound
	}
	ino, err := v.fetchInode(int(v.directory[idx].InodeID))
	if err != nil {
		return -1, err
	}
	return int(ino.Size), nil
}

// Remove deletes the named file: every allocated direct and indirect data
// block is freed, the indirect block itself is freed if present, the
// inode's record block is freed, its inode table slot is cleared, and its
// directory entry is erased. If the file is currently open, its handle is
// also closed.
func (v *Volume) Remove(name string) error {
	encoded, err := encodeName(name)
	if err != nil {
		return err
	}
	idx := v.findDirEntry(encoded)
	if idx < 0 {
		return ErrNotFound
	}

	inodeID := int(v.directory[idx].InodeID)
	ino, err := v.fetchInode(inodeID)
	if err != nil {
		return err
	}

	for _, p := range ino.Direct {
		if p > 0 {
			if err := v.freeBlock(int(p)); err != nil {
				return err
			}
		}
	}

	if ino.Indirect > 0 {
		buf := make([]byte, BlockBytes)
		if err := v.dev.ReadBlocks(int(ino.Indirect), 1, buf); err != nil {
			return err
		}
		for i := 0; i < IndirectPointersPerBlock; i++ {
			off := i * 4
			p := int32(binary.LittleEndian.Uint32(buf[off : off+4]))
			if p > 0 {
				if err := v.freeBlock(int(p)); err != nil {
					return err
				}
			}
		}
		if err := v.freeBlock(int(ino.Indirect)); err != nil {
			return err
		}
	}

	if err := v.freeBlock(int(v.inodeTable[inodeID])); err != nil {
		return err
	}
	if err := v.freeInode(inodeID); err != nil {
		return err
	}
	if err := v.eraseDirEntry(idx); err != nil {
		return err
	}

	if h := v.findOpenHandle(inodeID); h >= 0 {
		v.oft[h].inodeID = -1
	}
	return nil
}

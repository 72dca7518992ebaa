package sfs

import "encoding/binary"

// dirEntry is the in-memory form of one directory slot. Name[0] == 0 means
// the slot is unused.
type dirEntry struct {
	Name    [MaxFilenameBytes]byte
	InodeID int32
}

func encodeName(name string) ([MaxFilenameBytes]byte, error) {
	var out [MaxFilenameBytes]byte
	if len(name) > MaxFilenameBytes {
		return out, ErrNameTooLong
	}
	copy(out[:], name)
	return out, nil
}

// findDirEntry returns the index of the entry matching name, comparing the
// full MaxFilenameBytes-byte field including NUL padding — two names that
// differ only beyond their first NUL compare equal, matching the reference
// implementation.
func (v *Volume) findDirEntry(name [MaxFilenameBytes]byte) int {
	for i, e := range v.directory {
		if e.Name == name {
			return i
		}
	}
	return -1
}

// findFreeDirSlot returns the lowest index whose entry is unused.
func (v *Volume) findFreeDirSlot() int {
	for i, e := range v.directory {
		if e.Name[0] == 0 {
			return i
		}
	}
	return -1
}

func decodeDirectory(buf []byte) [MaxFiles]dirEntry {
	var entries [MaxFiles]dirEntry
	for i := range entries {
		off := i * directoryEntryBytes
		copy(entries[i].Name[:], buf[off:off+MaxFilenameBytes])
		entries[i].InodeID = int32(binary.LittleEndian.Uint32(buf[off+MaxFilenameBytes : off+directoryEntryBytes]))
	}
	return entries
}

func encodeDirectory(entries [MaxFiles]dirEntry) []byte {
	buf := make([]byte, directoryFileBytes)
	for i, e := range entries {
		off := i * directoryEntryBytes
		copy(buf[off:off+MaxFilenameBytes], e.Name[:])
		binary.LittleEndian.PutUint32(buf[off+MaxFilenameBytes:off+directoryEntryBytes], uint32(e.InodeID))
	}
	return buf
}

// loadDirectory reads the root directory's full contents (through the
// ordinary block-addressing path, starting at offset 0 of the root inode)
// into the in-memory cache. Handle 0's read pointer is not touched.
func (v *Volume) loadDirectory() error {
	rootIno, err := v.fetchInode(RootInodeID)
	if err != nil {
		return err
	}

	buf := make([]byte, directoryFileBytes)
	if _, err := v.readAt(&rootIno, 0, buf, directoryFileBytes); err != nil {
		return err
	}
	v.directory = decodeDirectory(buf)
	return nil
}

// flushDirectory writes the full in-memory directory cache back through
// the root inode, writing from offset 0 and leaving handle 0's write
// pointer at the end of what was written, allocating new data blocks as
// the directory grows past its previously-written extent. This is the self-hosting trick: the directory is an ordinary
// file under inode 0, so this call exercises the same allocator and
// block-addressing path as any other file's write.
func (v *Volume) flushDirectory() error {
	rootIno, err := v.fetchInode(RootInodeID)
	if err != nil {
		return err
	}

	buf := encodeDirectory(v.directory)
	n, err := v.writeAt(&rootIno, 0, buf, directoryFileBytes)
	if err != nil {
		return err
	}
	if uint32(n) > rootIno.Size {
		rootIno.Size = uint32(n)
	}
	if err := v.storeInode(RootInodeID, rootIno); err != nil {
		return err
	}

	v.oft[0].writePtr = uint32(n)
	return nil
}

// insertDirEntry writes name+inodeID into the first free slot and flushes
// the directory. If the flush fails, the slot is cleared again in the cache.
func (v *Volume) insertDirEntry(name [MaxFilenameBytes]byte, inodeID int) error {
	idx := v.findFreeDirSlot()
	if idx < 0 {
		return ErrNoFreeDirSlot
	}
	v.directory[idx] = dirEntry{Name: name, InodeID: int32(inodeID)}
	if err := v.flushDirectory(); err != nil {
		v.directory[idx] = dirEntry{}
		return err
	}
	return nil
}

// eraseDirEntry zeroes the slot at index and flushes the directory.
func (v *Volume) eraseDirEntry(index int) error {
	v.directory[index] = dirEntry{}
	return v.flushDirectory()
}

// NextFileName resumes from the volume's persistent enumeration cursor and
// returns the next non-empty entry's name, advancing the cursor modulo
// MaxFiles. It returns ErrNotFound once a full cycle finds nothing — the
// cursor is reset only by Format/Mount.
func (v *Volume) NextFileName() (string, error) {
	for checked := 0; checked < MaxFiles; checked++ {
		e := v.directory[v.dirCursor]
		v.dirCursor = (v.dirCursor + 1) % MaxFiles
		if e.Name[0] != 0 {
			return nameString(e.Name), nil
		}
	}
	return "", ErrNotFound
}

func nameString(name [MaxFilenameBytes]byte) string {
	n := 0
	for n < len(name) && name[n] != 0 {
		n++
	}
	return string(name[:n])
}

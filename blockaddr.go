package sfs

import (
	"encoding/binary"
	"errors"
)

// resolveRead translates a file offset to the absolute data block that
// backs it, without allocating. Returns 0 (meaning unmapped) if the block
// has never been written.
func (v *Volume) resolveRead(ino *Inode, offset uint32) (int, error) {
	slot := int(offset / BlockBytes)
	if slot < DirectPointers {
		return int(ino.Direct[slot]), nil
	}

	indirectSlot := slot - DirectPointers
	if ino.Indirect <= 0 {
		return 0, nil
	}

	buf := make([]byte, BlockBytes)
	if err := v.dev.ReadBlocks(int(ino.Indirect), 1, buf); err != nil {
		return 0, err
	}
	off := indirectSlot * 4
	return int(int32(binary.LittleEndian.Uint32(buf[off : off+4]))), nil
}

// resolveWrite translates a file offset to the absolute data block that
// backs it, allocating the indirect block and/or the data block on demand.
// It mutates ino's pointers directly; the caller is responsible for
// persisting ino afterwards. A newly allocated indirect block is zeroed
// before use, and a newly populated indirect slot is written back to the
// indirect block immediately (the indirect block lives outside the inode
// record and isn't covered by the caller's later storeInode).
func (v *Volume) resolveWrite(ino *Inode, offset uint32) (int, error) {
	slot := int(offset / BlockBytes)
	if slot < DirectPointers {
		if ino.Direct[slot] <= 0 {
			n, err := v.allocBlock()
			if err != nil {
				return 0, err
			}
			ino.Direct[slot] = int32(n)
		}
		return int(ino.Direct[slot]), nil
	}

	if ino.Indirect <= 0 {
		n, err := v.allocBlock()
		if err != nil {
			return 0, err
		}
		if err := v.dev.WriteBlocks(n, 1, make([]byte, BlockBytes)); err != nil {
			return 0, err
		}
		ino.Indirect = int32(n)
	}

	buf := make([]byte, BlockBytes)
	if err := v.dev.ReadBlocks(int(ino.Indirect), 1, buf); err != nil {
		return 0, err
	}

	indirectSlot := slot - DirectPointers
	off := indirectSlot * 4
	cur := int32(binary.LittleEndian.Uint32(buf[off : off+4]))
	if cur <= 0 {
		n, err := v.allocBlock()
		if err != nil {
			return 0, err
		}
		binary.LittleEndian.PutUint32(buf[off:off+4], uint32(n))
		if err := v.dev.WriteBlocks(int(ino.Indirect), 1, buf); err != nil {
			return 0, err
		}
		cur = int32(n)
	}
	return int(cur), nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// readAt copies length bytes starting at offset out of the file described
// by ino into buf (which must be at least length long), zero-filling any
// unmapped region. It never allocates and never fails except on a device
// error; it returns the number of bytes copied.
func (v *Volume) readAt(ino *Inode, offset uint32, buf []byte, length int) (int, error) {
	n := 0
	for n < length {
		blockNum, err := v.resolveRead(ino, offset)
		if err != nil {
			return n, err
		}

		within := int(offset % BlockBytes)
		chunk := min(BlockBytes-within, length-n)

		if blockNum <= 0 {
			for i := 0; i < chunk; i++ {
				buf[n+i] = 0
			}
		} else {
			block := make([]byte, BlockBytes)
			if err := v.dev.ReadBlocks(blockNum, 1, block); err != nil {
				return n, err
			}
			copy(buf[n:n+chunk], block[within:within+chunk])
		}

		offset += uint32(chunk)
		n += chunk
	}
	return n, nil
}

// writeAt copies length bytes from buf into the file described by ino,
// starting at offset, allocating blocks on demand. It mutates ino's
// pointers as it allocates; the caller must persist ino afterwards. If
// allocation fails partway through, writeAt returns the number of bytes
// successfully written so far and a nil error — running out of space is
// not a write failure, it's a partial write (§7 of the design).
func (v *Volume) writeAt(ino *Inode, offset uint32, buf []byte, length int) (int, error) {
	n := 0
	for n < length {
		blockNum, err := v.resolveWrite(ino, offset)
		if err != nil {
			if errors.Is(err, ErrNoSpace) {
				// out of space mid-transfer: not a failure, a partial write
				return n, nil
			}
			return n, err
		}

		within := int(offset % BlockBytes)
		chunk := min(BlockBytes-within, length-n)

		block := make([]byte, BlockBytes)
		if chunk < BlockBytes {
			if err := v.dev.ReadBlocks(blockNum, 1, block); err != nil {
				return n, err
			}
		}
		copy(block[within:within+chunk], buf[n:n+chunk])
		if err := v.dev.WriteBlocks(blockNum, 1, block); err != nil {
			return n, err
		}

		offset += uint32(chunk)
		n += chunk
	}
	return n, nil
}

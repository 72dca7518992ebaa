// Package blockdev is the block device façade: the sole persistence
// primitive a volume is layered over. It knows nothing about super blocks,
// inodes, or directories — only whole-block I/O against a backing file.
package blockdev

import (
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// ErrOutOfRange is returned when a requested block range falls outside the
// device's block count.
var ErrOutOfRange = errors.New("blockdev: block range out of bounds")

// Device is a fixed-geometry block device backed by a regular file.
type Device struct {
	f           *os.File
	blockBytes  int
	blockCount  int
	locked      bool
}

// Format creates a zero-initialized image of blockCount blocks of
// blockBytes each at name, truncating any existing file, and returns a
// Device over it.
func Format(name string, blockBytes, blockCount int) (*Device, error) {
	f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("blockdev: format %s: %w", name, err)
	}

	d := &Device{f: f, blockBytes: blockBytes, blockCount: blockCount}
	if err := d.lock(); err != nil {
		f.Close()
		return nil, err
	}

	if err := f.Truncate(int64(blockBytes) * int64(blockCount)); err != nil {
		d.Close()
		return nil, fmt.Errorf("blockdev: format %s: %w", name, err)
	}

	return d, nil
}

// Mount opens an existing image at name and returns a Device over it. The
// file must already be exactly blockBytes*blockCount bytes long.
func Mount(name string, blockBytes, blockCount int) (*Device, error) {
	f, err := os.OpenFile(name, os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("blockdev: mount %s: %w", name, err)
	}

	d := &Device{f: f, blockBytes: blockBytes, blockCount: blockCount}
	if err := d.lock(); err != nil {
		f.Close()
		return nil, err
	}

	fi, err := f.Stat()
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("blockdev: mount %s: %w", name, err)
	}
	if fi.Size() != int64(blockBytes)*int64(blockCount) {
		d.Close()
		return nil, fmt.Errorf("blockdev: mount %s: unexpected size %d", name, fi.Size())
	}

	return d, nil
}

// lock takes an advisory exclusive lock on the backing file so that a
// second process cannot mount the same image concurrently, matching the
// single-process model the volume above assumes.
func (d *Device) lock() error {
	if err := unix.Flock(int(d.f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		return fmt.Errorf("blockdev: %s is already mounted: %w", d.f.Name(), err)
	}
	d.locked = true
	return nil
}

// BlockBytes returns the device's block size.
func (d *Device) BlockBytes() int { return d.blockBytes }

// BlockCount returns the device's total block count.
func (d *Device) BlockCount() int { return d.blockCount }

// ReadBlocks reads count blocks starting at block start into buf, which
// must be at least count*BlockBytes() long.
func (d *Device) ReadBlocks(start, count int, buf []byte) error {
	if start < 0 || count < 0 || start+count > d.blockCount {
		return ErrOutOfRange
	}
	if len(buf) < count*d.blockBytes {
		return fmt.Errorf("blockdev: buffer too small: need %d, have %d", count*d.blockBytes, len(buf))
	}
	_, err := d.f.ReadAt(buf[:count*d.blockBytes], int64(start)*int64(d.blockBytes))
	if err != nil && err != io.EOF {
		return fmt.Errorf("blockdev: read blocks %d..%d: %w", start, start+count, err)
	}
	return nil
}

// WriteBlocks writes count blocks from buf to the device starting at block
// start. buf must hold at least count*BlockBytes() bytes.
func (d *Device) WriteBlocks(start, count int, buf []byte) error {
	if start < 0 || count < 0 || start+count > d.blockCount {
		return ErrOutOfRange
	}
	if len(buf) < count*d.blockBytes {
		return fmt.Errorf("blockdev: buffer too small: need %d, have %d", count*d.blockBytes, len(buf))
	}
	_, err := d.f.WriteAt(buf[:count*d.blockBytes], int64(start)*int64(d.blockBytes))
	if err != nil {
		return fmt.Errorf("blockdev: write blocks %d..%d: %w", start, start+count, err)
	}
	return nil
}

// Close releases the lock and closes the backing file.
func (d *Device) Close() error {
	if d.locked {
		unix.Flock(int(d.f.Fd()), unix.LOCK_UN)
	}
	return d.f.Close()
}

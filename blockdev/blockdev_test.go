package blockdev_test

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/gosfs/sfs/blockdev"
)

func TestFormatAndReadWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sfs")

	d, err := blockdev.Format(path, 1024, 256)
	if err != nil {
		t.Fatalf("format: %s", err)
	}
	defer d.Close()

	buf := make([]byte, 1024)
	if err := d.ReadBlocks(0, 1, buf); err != nil {
		t.Fatalf("read: %s", err)
	}
	if !bytes.Equal(buf, make([]byte, 1024)) {
		t.Fatalf("expected fresh block to be zero")
	}

	want := bytes.Repeat([]byte{0x42}, 1024)
	if err := d.WriteBlocks(5, 1, want); err != nil {
		t.Fatalf("write: %s", err)
	}

	got := make([]byte, 1024)
	if err := d.ReadBlocks(5, 1, got); err != nil {
		t.Fatalf("read back: %s", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("read back mismatch")
	}
}

func TestOutOfRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sfs")
	d, err := blockdev.Format(path, 1024, 256)
	if err != nil {
		t.Fatalf("format: %s", err)
	}
	defer d.Close()

	buf := make([]byte, 1024)
	if err := d.ReadBlocks(256, 1, buf); err == nil {
		t.Fatalf("expected out of range error")
	}
	if err := d.WriteBlocks(-1, 1, buf); err == nil {
		t.Fatalf("expected out of range error")
	}
}

func TestMountRejectsWrongSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sfs")
	d, err := blockdev.Format(path, 1024, 128)
	if err != nil {
		t.Fatalf("format: %s", err)
	}
	d.Close()

	if _, err := blockdev.Mount(path, 1024, 256); err == nil {
		t.Fatalf("expected mount to reject mismatched geometry")
	}
}

func TestMountLocksAgainstSecondOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sfs")
	d, err := blockdev.Format(path, 1024, 256)
	if err != nil {
		t.Fatalf("format: %s", err)
	}
	defer d.Close()

	if _, err := blockdev.Mount(path, 1024, 256); err == nil {
		t.Fatalf("expected second mount to fail while first holds the lock")
	}
}

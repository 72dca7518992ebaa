package sfs

import (
	"bytes"
	"path/filepath"
	"testing"
)

func formatTemp(t *testing.T) (*Volume, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "image.sfs")
	v, err := Format(path)
	if err != nil {
		t.Fatalf("Format: %s", err)
	}
	t.Cleanup(func() { v.Close() })
	return v, path
}

func TestFormatAndInspect(t *testing.T) {
	v, _ := formatTemp(t)

	used, free := v.Usage()
	if used != firstGeneralBlock {
		t.Fatalf("used = %d, want %d", used, firstGeneralBlock)
	}
	if free != BlockCount-firstGeneralBlock {
		t.Fatalf("free = %d, want %d", free, BlockCount-firstGeneralBlock)
	}

	if names := v.ListNames(); len(names) != 0 {
		t.Fatalf("fresh volume has names %v, want none", names)
	}
}

func TestSmallWriteAndRead(t *testing.T) {
	v, _ := formatTemp(t)

	fd, err := v.OpenFile("hello.txt")
	if err != nil {
		t.Fatalf("OpenFile: %s", err)
	}

	want := []byte("hello, sfs")
	if n, err := v.Write(fd, want); err != nil || n != len(want) {
		t.Fatalf("Write: n=%d err=%s", n, err)
	}

	if err := v.SeekRead(fd, 0); err != nil {
		t.Fatalf("SeekRead: %s", err)
	}
	buf := make([]byte, len(want))
	if n, err := v.Read(fd, buf); err != nil || n != len(want) {
		t.Fatalf("Read: n=%d err=%s", n, err)
	}
	if !bytes.Equal(buf, want) {
		t.Fatalf("Read = %q, want %q", buf, want)
	}

	if err := v.CloseFile(fd); err != nil {
		t.Fatalf("CloseFile: %s", err)
	}
}

func TestCrossBlockWrite(t *testing.T) {
	v, _ := formatTemp(t)

	fd, err := v.OpenFile("big.bin")
	if err != nil {
		t.Fatalf("OpenFile: %s", err)
	}

	want := bytes.Repeat([]byte{0x5a}, BlockBytes*3+17)
	n, err := v.Write(fd, want)
	if err != nil {
		t.Fatalf("Write: %s", err)
	}
	if n != len(want) {
		t.Fatalf("Write n = %d, want %d", n, len(want))
	}

	if err := v.SeekRead(fd, 0); err != nil {
		t.Fatalf("SeekRead: %s", err)
	}
	got := make([]byte, len(want))
	if n, err := v.Read(fd, got); err != nil || n != len(want) {
		t.Fatalf("Read: n=%d err=%s", n, err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("cross-block round trip mismatch")
	}
}

func TestIndirectPointerWrite(t *testing.T) {
	v, _ := formatTemp(t)

	fd, err := v.OpenFile("huge.bin")
	if err != nil {
		t.Fatalf("OpenFile: %s", err)
	}

	// Past the 12 direct blocks, forcing allocation of the indirect block.
	offset := uint32(DirectPointers * BlockBytes)
	if err := v.SeekWrite(fd, offset); err != nil {
		t.Fatalf("SeekWrite: %s", err)
	}
	want := bytes.Repeat([]byte{0x7e}, BlockBytes*2)
	if n, err := v.Write(fd, want); err != nil || n != len(want) {
		t.Fatalf("Write: n=%d err=%s", n, err)
	}

	if err := v.SeekRead(fd, offset); err != nil {
		t.Fatalf("SeekRead: %s", err)
	}
	got := make([]byte, len(want))
	if n, err := v.Read(fd, got); err != nil || n != len(want) {
		t.Fatalf("Read: n=%d err=%s", n, err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("indirect round trip mismatch")
	}
}

func TestSeekAndOverwrite(t *testing.T) {
	v, _ := formatTemp(t)

	fd, err := v.OpenFile("overwrite.bin")
	if err != nil {
		t.Fatalf("OpenFile: %s", err)
	}

	if _, err := v.Write(fd, []byte("0123456789")); err != nil {
		t.Fatalf("Write: %s", err)
	}
	if err := v.SeekWrite(fd, 3); err != nil {
		t.Fatalf("SeekWrite: %s", err)
	}
	if _, err := v.Write(fd, []byte("XYZ")); err != nil {
		t.Fatalf("Write overwrite: %s", err)
	}

	if err := v.SeekRead(fd, 0); err != nil {
		t.Fatalf("SeekRead: %s", err)
	}
	got := make([]byte, 10)
	if _, err := v.Read(fd, got); err != nil {
		t.Fatalf("Read: %s", err)
	}
	want := []byte("012XYZ6789")
	if !bytes.Equal(got, want) {
		t.Fatalf("Read = %q, want %q", got, want)
	}
}

func TestReadPastEndOfFileZeroFills(t *testing.T) {
	v, _ := formatTemp(t)

	fd, err := v.OpenFile("short.bin")
	if err != nil {
		t.Fatalf("OpenFile: %s", err)
	}
	if _, err := v.Write(fd, []byte("abc")); err != nil {
		t.Fatalf("Write: %s", err)
	}

	if err := v.SeekRead(fd, 0); err != nil {
		t.Fatalf("SeekRead: %s", err)
	}
	buf := make([]byte, 10)
	n, err := v.Read(fd, buf)
	if err != nil {
		t.Fatalf("Read: %s", err)
	}
	if n != len(buf) {
		t.Fatalf("Read n = %d, want %d", n, len(buf))
	}
	want := []byte{'a', 'b', 'c', 0, 0, 0, 0, 0, 0, 0}
	if !bytes.Equal(buf, want) {
		t.Fatalf("Read = %v, want %v", buf, want)
	}
}

func TestRemoveFreesBlocksAndDirSlot(t *testing.T) {
	v, _ := formatTemp(t)

	fd, err := v.OpenFile("gone.bin")
	if err != nil {
		t.Fatalf("OpenFile: %s", err)
	}
	if _, err := v.Write(fd, bytes.Repeat([]byte{1}, BlockBytes*2)); err != nil {
		t.Fatalf("Write: %s", err)
	}
	if err := v.CloseFile(fd); err != nil {
		t.Fatalf("CloseFile: %s", err)
	}

	_, freeBefore := v.Usage()

	if err := v.Remove("gone.bin"); err != nil {
		t.Fatalf("Remove: %s", err)
	}

	_, freeAfter := v.Usage()
	if freeAfter <= freeBefore {
		t.Fatalf("free blocks did not increase after Remove: before=%d after=%d", freeBefore, freeAfter)
	}

	if _, err := v.FileSize("gone.bin"); err != ErrNotFound {
		t.Fatalf("FileSize after Remove: err=%v, want ErrNotFound", err)
	}

	if _, err := v.OpenFile("gone.bin"); err != nil {
		t.Fatalf("re-creating 'gone.bin' after Remove: %s", err)
	}
}

func TestEnumerationRoundTrip(t *testing.T) {
	v, _ := formatTemp(t)

	names := []string{"a.txt", "b.txt", "c.txt"}
	for _, name := range names {
		if _, err := v.OpenFile(name); err != nil {
			t.Fatalf("OpenFile(%s): %s", name, err)
		}
	}

	seen := map[string]bool{}
	for i := 0; i < MaxFiles*2; i++ {
		name, err := v.NextFileName()
		if err != nil {
			t.Fatalf("NextFileName: %s", err)
		}
		seen[name] = true
		if len(seen) == len(names) {
			break
		}
	}
	for _, name := range names {
		if !seen[name] {
			t.Fatalf("enumeration never produced %s", name)
		}
	}
}

func TestPersistenceAcrossRemount(t *testing.T) {
	v, path := formatTemp(t)

	fd, err := v.OpenFile("persist.bin")
	if err != nil {
		t.Fatalf("OpenFile: %s", err)
	}
	want := []byte("durable bytes")
	if _, err := v.Write(fd, want); err != nil {
		t.Fatalf("Write: %s", err)
	}
	if err := v.Close(); err != nil {
		t.Fatalf("Close: %s", err)
	}

	v2, err := Mount(path)
	if err != nil {
		t.Fatalf("Mount: %s", err)
	}
	defer v2.Close()

	fd2, err := v2.OpenFile("persist.bin")
	if err != nil {
		t.Fatalf("OpenFile after remount: %s", err)
	}
	got := make([]byte, len(want))
	if _, err := v2.Read(fd2, got); err != nil {
		t.Fatalf("Read after remount: %s", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("Read after remount = %q, want %q", got, want)
	}
}

func TestAllocatorIsDeterministic(t *testing.T) {
	v, _ := formatTemp(t)

	for i := 0; i < 5; i++ {
		n, err := v.allocBlock()
		if err != nil {
			t.Fatalf("allocBlock: %s", err)
		}
		want := firstGeneralBlock + i
		if n != want {
			t.Fatalf("allocBlock #%d = %d, want %d", i, n, want)
		}
	}
}

func TestNameTooLongRejected(t *testing.T) {
	v, _ := formatTemp(t)

	longName := "this-name-is-far-too-long-for-sfs"
	if _, err := v.OpenFile(longName); err != ErrNameTooLong {
		t.Fatalf("OpenFile(%q): err=%v, want ErrNameTooLong", longName, err)
	}
}

func TestAlreadyOpenRejected(t *testing.T) {
	v, _ := formatTemp(t)

	fd, err := v.OpenFile("dup.bin")
	if err != nil {
		t.Fatalf("OpenFile: %s", err)
	}
	defer v.CloseFile(fd)

	if _, err := v.OpenFile("dup.bin"); err != ErrAlreadyOpen {
		t.Fatalf("second OpenFile: err=%v, want ErrAlreadyOpen", err)
	}
}

func TestMountRejectsWrongGeometry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.sfs")
	v, err := Format(path)
	if err != nil {
		t.Fatalf("Format: %s", err)
	}
	if err := v.writeSuperblock(Superblock{BlockBytes: 4096, BlockCount: BlockCount}); err != nil {
		t.Fatalf("writeSuperblock: %s", err)
	}
	v.Close()

	if _, err := Mount(path); err != ErrInvalidImage {
		t.Fatalf("Mount: err=%v, want ErrInvalidImage", err)
	}
}
